package utils

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
)

// ParallelFactor controls the max level of parallelization. This might be useful
// to set in tests where too much parallelism actually slows tests down in
// aggregate.
var ParallelFactor = runtime.GOMAXPROCS(0)

func init() {
	if ParallelFactor <= 0 {
		ParallelFactor = 1
	}
}

// SimpleFunc is for RunInParallel.
type SimpleFunc func(ctx context.Context) error

// RunInParallel runs all functions in parallel, return is elapsed time and an error.
// Every failure is kept; the first one cancels the context handed to the others.
func RunInParallel(ctx context.Context, fs []SimpleFunc) (time.Duration, error) {
	start := time.Now()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	var bigError error
	var bigErrorMutex sync.Mutex
	storeError := func(err error) {
		bigErrorMutex.Lock()
		defer bigErrorMutex.Unlock()
		if bigError == nil || !errors.Is(err, context.Canceled) {
			bigError = multierr.Combine(bigError, err)
		}
	}

	sem := make(chan struct{}, ParallelFactor)
	helper := func(f SimpleFunc) {
		defer func() {
			if thePanic := recover(); thePanic != nil {
				storeError(errors.Errorf("got panic running something in parallel: %v", thePanic))
				cancel()
			}
			<-sem
			wg.Done()
		}()
		if err := f(ctx); err != nil {
			storeError(err)
			cancel()
		}
	}

	for _, f := range fs {
		wg.Add(1)
		sem <- struct{}{}
		fCopy := f
		goutils.PanicCapturingGo(func() { helper(fCopy) })
	}

	wg.Wait()
	return time.Since(start), bigError
}

// ForEachInParallel calls f once for every index in [0, n) through RunInParallel.
// Each failure is annotated with the index that produced it.
func ForEachInParallel(ctx context.Context, n int, f func(ctx context.Context, i int) error) error {
	fs := make([]SimpleFunc, n)
	for i := 0; i < n; i++ {
		fs[i] = func(ctx context.Context) error {
			if err := f(ctx, i); err != nil {
				return errors.Wrapf(err, "item %d", i)
			}
			return nil
		}
	}
	_, err := RunInParallel(ctx, fs)
	return err
}

// ForEach is the sequential counterpart of ForEachInParallel. It stops at the first failure.
func ForEach(ctx context.Context, n int, f func(ctx context.Context, i int) error) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f(ctx, i); err != nil {
			return errors.Wrapf(err, "item %d", i)
		}
	}
	return nil
}
