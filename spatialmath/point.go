// Package spatialmath defines the point, rotation and rigid transform algebra shared by
// registration and pivot calibration.
package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Point is a 3D coordinate tagged with the name of the frame it is expressed in.
// The frame name is diagnostic metadata only and never takes part in equality.
type Point struct {
	frame string
	vec   r3.Vector
}

// NewPoint returns a point in the given frame. An empty frame means unknown.
func NewPoint(frame string, v r3.Vector) Point {
	return Point{frame: frame, vec: v}
}

// NewPointXYZ returns a point in the given frame from raw coordinates.
func NewPointXYZ(frame string, x, y, z float64) Point {
	return Point{frame: frame, vec: r3.Vector{X: x, Y: y, Z: z}}
}

// Frame returns the name of the frame in which the point is expressed.
func (p Point) Frame() string {
	return p.frame
}

// Vector returns the raw coordinates.
func (p Point) Vector() r3.Vector {
	return p.vec
}

// X returns the x coordinate.
func (p Point) X() float64 { return p.vec.X }

// Y returns the y coordinate.
func (p Point) Y() float64 { return p.vec.Y }

// Z returns the z coordinate.
func (p Point) Z() float64 { return p.vec.Z }

// InFrame returns a copy of the point retagged with the given frame.
func (p Point) InFrame(frame string) Point {
	return Point{frame: frame, vec: p.vec}
}

// Add returns p + other. The result keeps p's frame, or other's if p's is unset.
func (p Point) Add(other Point) Point {
	return Point{frame: mergeFrames(p.frame, other.frame), vec: p.vec.Add(other.vec)}
}

// Sub returns p - other, with the same frame rule as Add.
func (p Point) Sub(other Point) Point {
	return Point{frame: mergeFrames(p.frame, other.frame), vec: p.vec.Sub(other.vec)}
}

// Scale multiplies every coordinate by k.
func (p Point) Scale(k float64) Point {
	return Point{frame: p.frame, vec: p.vec.Mul(k)}
}

// Divide divides every coordinate by k.
func (p Point) Divide(k float64) (Point, error) {
	if k == 0 {
		return Point{}, errors.Wrapf(ErrDivideByZero, "cannot divide point %v", p)
	}
	return Point{frame: p.frame, vec: p.vec.Mul(1 / k)}, nil
}

// Negate returns -p.
func (p Point) Negate() Point {
	return p.Scale(-1)
}

// Norm returns the Euclidean length of the point's coordinate vector.
func (p Point) Norm() float64 {
	return p.vec.Norm()
}

// Distance returns the Euclidean distance between two points.
func (p Point) Distance(other Point) float64 {
	return p.vec.Distance(other.vec)
}

// AlmostEqual reports whether every coordinate of the two points differs by at most tol.
func (p Point) AlmostEqual(other Point, tol float64) bool {
	return math.Abs(p.vec.X-other.vec.X) <= tol &&
		math.Abs(p.vec.Y-other.vec.Y) <= tol &&
		math.Abs(p.vec.Z-other.vec.Z) <= tol
}

func (p Point) String() string {
	if p.frame == "" {
		return fmt.Sprintf("(%g, %g, %g)", p.vec.X, p.vec.Y, p.vec.Z)
	}
	return fmt.Sprintf("%s(%g, %g, %g)", p.frame, p.vec.X, p.vec.Y, p.vec.Z)
}

func mergeFrames(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// Centroid returns the arithmetic mean of a point set. The result is tagged with the set's
// frame when every tagged point agrees on it, and left untagged otherwise.
func Centroid(pts []Point) (Point, error) {
	if len(pts) == 0 {
		return Point{}, ErrEmptyPointSet
	}
	var sum r3.Vector
	for _, p := range pts {
		sum = sum.Add(p.vec)
	}
	return Point{frame: CommonFrame(pts), vec: sum.Mul(1 / float64(len(pts)))}, nil
}

// CommonFrame returns the single frame shared by all tagged points, or "" when the
// points are untagged or disagree.
func CommonFrame(pts []Point) string {
	frame := ""
	for _, p := range pts {
		if p.frame == "" {
			continue
		}
		if frame == "" {
			frame = p.frame
			continue
		}
		if frame != p.frame {
			return ""
		}
	}
	return frame
}

// PointsFromVectors tags every vector with the given frame.
func PointsFromVectors(frame string, vs []r3.Vector) []Point {
	pts := make([]Point, len(vs))
	for i, v := range vs {
		pts[i] = Point{frame: frame, vec: v}
	}
	return pts
}

// Vectors strips the frame tags from a point set.
func Vectors(pts []Point) []r3.Vector {
	vs := make([]r3.Vector, len(pts))
	for i, p := range pts {
		vs[i] = p.vec
	}
	return vs
}

// Translate adds offset to every point of the set.
func Translate(pts []Point, offset Point) []Point {
	out := make([]Point, len(pts))
	for i, p := range pts {
		out[i] = p.Add(offset)
	}
	return out
}
