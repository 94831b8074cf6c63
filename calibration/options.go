// Package calibration chains registration and pivot calibration into the tracker calibration
// pipelines: predicting EM marker positions from optical readings, and locating probe tips by
// pivoting.
package calibration

import (
	"context"

	"github.com/emguan/CIS-PA2/logging"
	"github.com/emguan/CIS-PA2/registration"
	"github.com/emguan/CIS-PA2/spatialmath"
	"github.com/emguan/CIS-PA2/utils"
)

// Options control how a pipeline runs. The zero value is usable.
type Options struct {
	// DegeneracyEpsilon is handed to registration.Estimate. Zero selects the default.
	DegeneracyEpsilon float64
	// Parallel processes frames concurrently.
	Parallel bool
	// Logger receives per-frame diagnostics. Nil discards them.
	Logger logging.Logger
}

func (o Options) epsilon() float64 {
	if o.DegeneracyEpsilon <= 0 {
		return registration.DefaultDegeneracyEpsilon
	}
	return o.DegeneracyEpsilon
}

func (o Options) logger() logging.Logger {
	if o.Logger == nil {
		return logging.NewBlankLogger("calibration")
	}
	return o.Logger
}

func (o Options) forEachFrame(ctx context.Context, n int, f func(ctx context.Context, k int) error) error {
	if o.Parallel {
		return utils.ForEachInParallel(ctx, n, f)
	}
	return utils.ForEach(ctx, n, f)
}

// register runs registration.Estimate for one frame and logs its diagnostics.
func (o Options) register(what string, k int, a, b []spatialmath.Point) (*registration.Fit, error) {
	fit, err := registration.Estimate(a, b, o.epsilon())
	if err != nil {
		return nil, err
	}
	logger := o.logger()
	if fit.Degenerate {
		logger.Warnw("degenerate registration", "fit", what, "frame", k, "singular_values", fit.SingularValues)
	}
	logger.Debugw("registered frame", "fit", what, "frame", k, "rms", fit.RMS)
	return fit, nil
}

// degenerateFrames returns the sorted indices whose flag is set.
func degenerateFrames(flags []bool) []int {
	var out []int
	for k, flagged := range flags {
		if flagged {
			out = append(out, k)
		}
	}
	return out
}
