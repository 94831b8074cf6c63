package spatialmath

import (
	"errors"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestPointArithmetic(t *testing.T) {
	a := NewPointXYZ("base", 1, 2, 3)
	b := NewPointXYZ("", 4, 5, 6)

	sum := a.Add(b)
	test.That(t, sum.Vector(), test.ShouldResemble, r3.Vector{X: 5, Y: 7, Z: 9})
	test.That(t, sum.Frame(), test.ShouldEqual, "base")

	diff := b.Sub(a)
	test.That(t, diff.Vector(), test.ShouldResemble, r3.Vector{X: 3, Y: 3, Z: 3})
	test.That(t, diff.Frame(), test.ShouldEqual, "base")

	test.That(t, a.Scale(2).Vector(), test.ShouldResemble, r3.Vector{X: 2, Y: 4, Z: 6})
	test.That(t, a.Negate().Vector(), test.ShouldResemble, r3.Vector{X: -1, Y: -2, Z: -3})

	half, err := a.Divide(2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, half.Vector(), test.ShouldResemble, r3.Vector{X: 0.5, Y: 1, Z: 1.5})
	test.That(t, half.Frame(), test.ShouldEqual, "base")

	// operands are never mutated
	test.That(t, a.Vector(), test.ShouldResemble, r3.Vector{X: 1, Y: 2, Z: 3})
}

func TestPointDivideByZero(t *testing.T) {
	_, err := NewPointXYZ("", 1, 1, 1).Divide(0)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, ErrDivideByZero), test.ShouldBeTrue)
}

func TestPointAlmostEqual(t *testing.T) {
	original := NewPointXYZ("a", 0, 0, 0)
	good := NewPointXYZ("b", 1e-12, -1e-12, 1e-12)
	bad := NewPointXYZ("a", 1e-2, 1e-2, 1e-2)
	test.That(t, original.AlmostEqual(good, 1e-9), test.ShouldBeTrue)
	test.That(t, original.AlmostEqual(bad, 1e-9), test.ShouldBeFalse)
}

func TestPointDistance(t *testing.T) {
	a := NewPointXYZ("", 1, 1, 1)
	b := NewPointXYZ("", 4, 5, 1)
	test.That(t, a.Distance(b), test.ShouldAlmostEqual, 5.)
	test.That(t, b.Sub(a).Norm(), test.ShouldAlmostEqual, 5.)
}

func TestCentroid(t *testing.T) {
	pts := []Point{
		NewPointXYZ("em", 0, 0, 0),
		NewPointXYZ("em", 2, 0, 0),
		NewPointXYZ("", 0, 4, 0),
		NewPointXYZ("em", 2, 4, 8),
	}
	c, err := Centroid(pts)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.Vector(), test.ShouldResemble, r3.Vector{X: 1, Y: 2, Z: 2})
	test.That(t, c.Frame(), test.ShouldEqual, "em")

	mixed := append(pts, NewPointXYZ("optical", 1, 1, 1))
	c, err = Centroid(mixed)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.Frame(), test.ShouldEqual, "")

	_, err = Centroid(nil)
	test.That(t, errors.Is(err, ErrEmptyPointSet), test.ShouldBeTrue)
}

func TestPointsFromVectors(t *testing.T) {
	vs := []r3.Vector{{X: 1}, {Y: 2}, {Z: 3}}
	pts := PointsFromVectors("probe", vs)
	test.That(t, pts, test.ShouldHaveLength, 3)
	for i, p := range pts {
		test.That(t, p.Frame(), test.ShouldEqual, "probe")
		test.That(t, p.Vector(), test.ShouldResemble, vs[i])
	}
	test.That(t, Vectors(pts), test.ShouldResemble, vs)

	moved := Translate(pts, NewPointXYZ("", 1, 1, 1))
	test.That(t, moved[2].Vector(), test.ShouldResemble, r3.Vector{X: 1, Y: 1, Z: 4})
}
