package dataio

import (
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrCountMismatch is returned when a record's marker counts disagree with the body it
	// is read against.
	ErrCountMismatch = errors.New("marker counts do not match")
	// ErrTruncated is returned when a record ends before all announced points are read.
	ErrTruncated = errors.New("record truncated")
	// ErrMalformedHeader is returned when a header line does not start with the expected counts.
	ErrMalformedHeader = errors.New("malformed header")
)

// NewCountMismatchError returns an error describing which marker counts differ.
func NewCountMismatchError(want, got []int) error {
	return errors.Wrapf(ErrCountMismatch, "want %v, got %v", want, got)
}

// NewMalformedHeaderError returns an error for a header that lacks numCounts leading integers.
func NewMalformedHeaderError(fields []string, numCounts int) error {
	return errors.Wrapf(ErrMalformedHeader, "expected %d counts in %q", numCounts, strings.Join(fields, ","))
}
