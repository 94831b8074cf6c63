package spatialmath

import (
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Transform is the rigid motion p -> R*p + t, tagged with the name of the frame its
// results are expressed in. Transforms are values; every operation returns a new one.
type Transform struct {
	frame string
	rot   Rotation
	trans Point
}

// NewTransform returns the transform with the given rotation and translation.
func NewTransform(frame string, rot Rotation, trans r3.Vector) Transform {
	return Transform{frame: frame, rot: rot, trans: NewPoint(frame, trans)}
}

// NewIdentityTransform returns the transform that leaves every point where it is.
func NewIdentityTransform(frame string) Transform {
	return NewTransform(frame, NewIdentityRotation(), r3.Vector{})
}

// Frame returns the name of the frame in which transformed points are expressed.
func (t Transform) Frame() string {
	return t.frame
}

// InFrame returns a copy of the transform whose results are tagged with the given frame.
func (t Transform) InFrame(frame string) Transform {
	return NewTransform(frame, t.rot, t.trans.vec)
}

// Rotation returns the rotational part.
func (t Transform) Rotation() Rotation {
	return t.rot
}

// Translation returns the translational part.
func (t Transform) Translation() Point {
	return t.trans
}

// Compose returns t ∘ other: other is applied first, then t.
// The result has R = R_t * R_other and p = R_t * p_other + p_t.
func (t Transform) Compose(other Transform) Transform {
	rot := t.rot.Mul(other.rot)
	trans := t.rot.Apply(other.trans.vec).Add(t.trans.vec)
	return NewTransform(t.frame, rot, trans)
}

// Inverse returns the transform undoing t: R' = R^T and p' = -R^T * p.
func (t Transform) Inverse() Transform {
	rotInv := t.rot.Inverse()
	return NewTransform(t.frame, rotInv, rotInv.Apply(t.trans.vec).Mul(-1))
}

// Apply maps a single point. The result is tagged with the transform's frame when it has one.
func (t Transform) Apply(p Point) Point {
	return Point{
		frame: mergeFrames(t.frame, p.frame),
		vec:   t.rot.Apply(p.vec).Add(t.trans.vec),
	}
}

// ApplyAll maps every point of a set, preserving order.
func (t Transform) ApplyAll(pts []Point) []Point {
	out := make([]Point, len(pts))
	for i, p := range pts {
		out[i] = t.Apply(p)
	}
	return out
}

// ApplyMatrix maps either a single 3x1 column vector or an Nx3 matrix whose rows are points.
// The result has the same shape as the input. Any other shape is an error.
func (t Transform) ApplyMatrix(m mat.Matrix) (*mat.Dense, error) {
	rows, cols := m.Dims()
	switch {
	case cols == 3 && rows > 0:
		out := mat.NewDense(rows, 3, nil)
		for i := 0; i < rows; i++ {
			v := t.applyVector(r3.Vector{X: m.At(i, 0), Y: m.At(i, 1), Z: m.At(i, 2)})
			out.SetRow(i, []float64{v.X, v.Y, v.Z})
		}
		return out, nil
	case rows == 3 && cols == 1:
		v := t.applyVector(r3.Vector{X: m.At(0, 0), Y: m.At(1, 0), Z: m.At(2, 0)})
		return mat.NewDense(3, 1, []float64{v.X, v.Y, v.Z}), nil
	default:
		return nil, NewShapeError(rows, cols, "3x1 or Nx3")
	}
}

func (t Transform) applyVector(v r3.Vector) r3.Vector {
	return t.rot.Apply(v).Add(t.trans.vec)
}

// AlmostEqual reports whether both the rotations and translations agree within tol.
// Frame names are not compared.
func (t Transform) AlmostEqual(other Transform, tol float64) bool {
	return t.rot.AlmostEqual(other.rot, tol) && t.trans.AlmostEqual(other.trans, tol)
}

func (t Transform) String() string {
	return fmt.Sprintf("{frame: %q, R: %v, t: %v}", t.frame, t.rot, t.trans.vec)
}
