package spatialmath

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// Rotation is a 3x3 rotation matrix stored in row-major order. Callers are expected to
// supply orthonormal data; no re-orthogonalization is ever performed.
type Rotation struct {
	mat [9]float64
}

// NewIdentityRotation returns the rotation which signifies no rotation.
func NewIdentityRotation() Rotation {
	return Rotation{mat: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}}
}

// NewRotation creates a rotation from 9 row-major values.
func NewRotation(data []float64) (Rotation, error) {
	if len(data) != 9 {
		return Rotation{}, NewRotationDataLengthError(len(data))
	}
	var r Rotation
	copy(r.mat[:], data)
	return r, nil
}

// NewRotationFromDense creates a rotation from a 3x3 gonum matrix.
func NewRotationFromDense(m mat.Matrix) (Rotation, error) {
	rows, cols := m.Dims()
	if rows != 3 || cols != 3 {
		return Rotation{}, NewShapeError(rows, cols, "3x3")
	}
	var r Rotation
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r.mat[3*i+j] = m.At(i, j)
		}
	}
	return r, nil
}

// RotationFromEulerAngles builds Rz(gamma) * Ry(beta) * Rx(alpha) from the elementary
// right-handed rotations about each axis. Angles are in radians.
func RotationFromEulerAngles(alpha, beta, gamma float64) Rotation {
	m := mgl64.Rotate3DZ(gamma).Mul3(mgl64.Rotate3DY(beta)).Mul3(mgl64.Rotate3DX(alpha))
	return rotationFromMat3(m)
}

func rotationFromMat3(m mgl64.Mat3) Rotation {
	var r Rotation
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r.mat[3*i+j] = m.At(i, j)
		}
	}
	return r
}

// At returns the element at the given row and column.
func (r Rotation) At(row, col int) float64 {
	return r.mat[3*row+col]
}

// Row returns the given row as a vector.
func (r Rotation) Row(i int) r3.Vector {
	return r3.Vector{X: r.mat[3*i], Y: r.mat[3*i+1], Z: r.mat[3*i+2]}
}

// Col returns the given column as a vector.
func (r Rotation) Col(j int) r3.Vector {
	return r3.Vector{X: r.mat[j], Y: r.mat[3+j], Z: r.mat[6+j]}
}

// Data returns a row-major copy of the matrix.
func (r Rotation) Data() []float64 {
	out := make([]float64, 9)
	copy(out, r.mat[:])
	return out
}

// Mul returns the product r * other, i.e. other is applied first.
func (r Rotation) Mul(other Rotation) Rotation {
	var out Rotation
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.mat[3*i+j] = r.mat[3*i]*other.mat[j] +
				r.mat[3*i+1]*other.mat[3+j] +
				r.mat[3*i+2]*other.mat[6+j]
		}
	}
	return out
}

// Transpose returns the transpose of the matrix.
func (r Rotation) Transpose() Rotation {
	m := r.mat
	return Rotation{mat: [9]float64{
		m[0], m[3], m[6],
		m[1], m[4], m[7],
		m[2], m[5], m[8],
	}}
}

// Inverse returns the inverse rotation, which for an orthonormal matrix is its transpose.
func (r Rotation) Inverse() Rotation {
	return r.Transpose()
}

// Apply rotates a vector.
func (r Rotation) Apply(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: r.Row(0).Dot(v),
		Y: r.Row(1).Dot(v),
		Z: r.Row(2).Dot(v),
	}
}

// Det returns the determinant. Proper rotations have determinant +1.
func (r Rotation) Det() float64 {
	return r.Row(0).Dot(r.Row(1).Cross(r.Row(2)))
}

// IsOrthonormal reports whether R * R^T is the identity within tol.
func (r Rotation) IsOrthonormal(tol float64) bool {
	return r.Mul(r.Transpose()).AlmostEqual(NewIdentityRotation(), tol)
}

// Dense returns the rotation as a 3x3 gonum matrix.
func (r Rotation) Dense() *mat.Dense {
	return mat.NewDense(3, 3, r.Data())
}

// Mat3 returns the rotation as a column-major mathgl matrix.
func (r Rotation) Mat3() mgl64.Mat3 {
	var m mgl64.Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.Set(i, j, r.mat[3*i+j])
		}
	}
	return m
}

// Quaternion returns the unit quaternion equivalent to a proper rotation.
func (r Rotation) Quaternion() quat.Number {
	q := mgl64.Mat4ToQuat(r.Mat3().Mat4())
	return quat.Number{Real: q.W, Imag: q.V[0], Jmag: q.V[1], Kmag: q.V[2]}
}

// AlmostEqual reports whether every element of the two matrices differs by at most tol.
func (r Rotation) AlmostEqual(other Rotation, tol float64) bool {
	for i := range r.mat {
		if math.Abs(r.mat[i]-other.mat[i]) > tol {
			return false
		}
	}
	return true
}

func (r Rotation) String() string {
	return fmt.Sprintf("[%g %g %g; %g %g %g; %g %g %g]",
		r.mat[0], r.mat[1], r.mat[2], r.mat[3], r.mat[4], r.mat[5], r.mat[6], r.mat[7], r.mat[8])
}

// AngleBetween returns the angle in radians of the rotation taking r1 to r2.
func AngleBetween(r1, r2 Rotation) float64 {
	q := r1.Inverse().Mul(r2).Quaternion()
	imag := math.Sqrt(q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	return 2 * math.Atan2(imag, math.Abs(q.Real))
}
