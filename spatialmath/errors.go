package spatialmath

import "github.com/pkg/errors"

var (
	// ErrShape is returned when a matrix or point array has the wrong dimensions.
	ErrShape = errors.New("invalid shape")
	// ErrDivideByZero is returned when a point is divided by zero.
	ErrDivideByZero = errors.New("division by zero")
	// ErrEmptyPointSet is returned when an operation needs at least one point.
	ErrEmptyPointSet = errors.New("point set is empty")
)

// NewShapeError is used when a matrix of the given dimensions cannot be used where want is expected.
func NewShapeError(rows, cols int, want string) error {
	return errors.Wrapf(ErrShape, "got %dx%d, want %s", rows, cols, want)
}

// NewRotationDataLengthError is used when a rotation is built from a slice that is not 9 long.
func NewRotationDataLengthError(n int) error {
	return errors.Wrapf(ErrShape, "rotation needs 9 values, got %d", n)
}
