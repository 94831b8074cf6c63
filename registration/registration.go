// Package registration recovers the rigid transform relating two corresponding point sets
// in closed form (absolute orientation via orthogonal Procrustes).
//
// The i-th point of the first set is assumed to be the same physical point as the i-th point
// of the second set. Collinear or otherwise degenerate configurations are not rejected: the
// decomposition still produces an answer, which may be unstable. Fit.Degenerate flags such
// inputs so callers can decide what to do with them.
package registration

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/emguan/CIS-PA2/spatialmath"
	"github.com/emguan/CIS-PA2/utils"
)

// MinCorrespondences is the fewest point pairs that pin down a rotation.
const MinCorrespondences = 3

// DefaultDegeneracyEpsilon is the ratio between the second and first singular values of the
// cross-covariance below which a configuration is considered collinear.
const DefaultDegeneracyEpsilon = 1e-9

// Fit is the result of a registration together with its quality diagnostics.
type Fit struct {
	Transform spatialmath.Transform
	// SingularValues of the cross-covariance matrix, largest first.
	SingularValues []float64
	// RMS is the root mean square distance between the transformed first set and the second set.
	RMS float64
	// Degenerate is set when the points are (nearly) collinear or coincident.
	Degenerate bool
}

// Register returns the transform T minimizing sum ||T(a_i) - b_i||^2.
func Register(a, b []spatialmath.Point) (spatialmath.Transform, error) {
	fit, err := Estimate(a, b, DefaultDegeneracyEpsilon)
	if err != nil {
		return spatialmath.Transform{}, err
	}
	return fit.Transform, nil
}

// Estimate is Register with diagnostics. eps is the relative singular value threshold used
// for the Degenerate flag; it never causes a failure.
func Estimate(a, b []spatialmath.Point, eps float64) (*Fit, error) {
	if len(a) != len(b) {
		return nil, utils.NewLengthMismatchError("registration point sets", len(a), len(b))
	}
	if len(a) < MinCorrespondences {
		return nil, utils.NewTooFewError("registration correspondences", len(a), MinCorrespondences)
	}

	centroidA, err := spatialmath.Centroid(a)
	if err != nil {
		return nil, err
	}
	centroidB, err := spatialmath.Centroid(b)
	if err != nil {
		return nil, err
	}

	// H = A'^T * B'
	var h mat.Dense
	h.Mul(centeredMatrix(a, centroidA).T(), centeredMatrix(b, centroidB))

	var svd mat.SVD
	if ok := svd.Factorize(&h, mat.SVDFull); !ok {
		return nil, errors.New("failed to factorize cross-covariance")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	// R = V * U^T
	var r mat.Dense
	r.Mul(&v, u.T())
	if mat.Det(&r) < 0 {
		// flip the singular vector paired with the smallest singular value
		for i := 0; i < 3; i++ {
			v.Set(i, 2, -v.At(i, 2))
		}
		r.Mul(&v, u.T())
	}
	rot, err := spatialmath.NewRotationFromDense(&r)
	if err != nil {
		return nil, err
	}

	// t = c_B - R * c_A
	trans := centroidB.Vector().Sub(rot.Apply(centroidA.Vector()))
	tf := spatialmath.NewTransform(spatialmath.CommonFrame(b), rot, trans)

	rms, err := ResidualRMS(tf, a, b)
	if err != nil {
		return nil, err
	}
	values := svd.Values(nil)
	return &Fit{
		Transform:      tf,
		SingularValues: values,
		RMS:            rms,
		Degenerate:     isDegenerate(values, eps),
	}, nil
}

func centeredMatrix(pts []spatialmath.Point, centroid spatialmath.Point) *mat.Dense {
	m := mat.NewDense(len(pts), 3, nil)
	for i, p := range pts {
		c := p.Vector().Sub(centroid.Vector())
		m.SetRow(i, []float64{c.X, c.Y, c.Z})
	}
	return m
}

// isDegenerate reports whether the cross-covariance has fewer than two significant singular
// values, in which case the rotation about the remaining axis is undetermined.
func isDegenerate(values []float64, eps float64) bool {
	if len(values) < 2 || values[0] == 0 {
		return true
	}
	return values[1] <= eps*values[0]
}

// Residuals returns the distance ||T(a_i) - b_i|| for every correspondence.
func Residuals(tf spatialmath.Transform, a, b []spatialmath.Point) ([]float64, error) {
	if len(a) != len(b) {
		return nil, utils.NewLengthMismatchError("residual point sets", len(a), len(b))
	}
	out := make([]float64, len(a))
	for i := range a {
		out[i] = tf.Apply(a[i]).Distance(b[i])
	}
	return out, nil
}

// ResidualRMS returns the root mean square of Residuals.
func ResidualRMS(tf spatialmath.Transform, a, b []spatialmath.Point) (float64, error) {
	res, err := Residuals(tf, a, b)
	if err != nil {
		return math.NaN(), err
	}
	return utils.RMS(res), nil
}
