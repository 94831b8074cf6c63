package utils

import (
	"github.com/pkg/errors"
)

// ErrPrecondition is the cause of every error reporting inputs that an estimator cannot use,
// such as too few correspondences or mismatched set sizes.
var ErrPrecondition = errors.New("precondition violated")

// NewPreconditionError returns an error wrapping ErrPrecondition with the formatted reason.
func NewPreconditionError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrPrecondition, format, args...)
}

// NewLengthMismatchError is used when two sequences that must pair up have different lengths.
func NewLengthMismatchError(what string, n1, n2 int) error {
	return NewPreconditionError("%s: lengths differ (%d != %d)", what, n1, n2)
}

// NewTooFewError is used when fewer than min items were supplied.
func NewTooFewError(what string, got, min int) error {
	return NewPreconditionError("%s: need at least %d, got %d", what, min, got)
}
