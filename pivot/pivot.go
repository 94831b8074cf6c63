// Package pivot estimates where a tool tip sits relative to a tracked body by sampling the
// body's pose while the tip rests in a fixed divot.
//
// For every sample k with body pose (R_k, p_k) the tip offset t_tip (body frame) and the
// pivot location t_post (reference frame) satisfy
//
//	R_k * t_tip - t_post = -p_k
//
// All samples are stacked into one 3M x 6 linear system and solved in the least squares sense.
package pivot

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/emguan/CIS-PA2/spatialmath"
	"github.com/emguan/CIS-PA2/utils"
)

// MinSamples is the fewest poses accepted; fewer give less than 6 equations.
const MinSamples = 2

// machineEpsilon scales the singular value cutoff used to pick the effective rank.
const machineEpsilon = 2.220446049250313e-16

// Result holds the calibrated offsets and the fit quality.
type Result struct {
	// Tip is the pivot offset in the moving body's local frame.
	Tip spatialmath.Point
	// Post is the fixed pivot location in the reference frame.
	Post spatialmath.Point
	// RMS is sqrt(SSR/M) for the stacked residual A*x - b over M samples: the root mean square
	// of the per-sample tip-to-post distance, in input units.
	RMS float64
	// Rank is the effective rank of the stacked system; less than 6 means the poses did not
	// vary enough and the minimum-norm solution was returned.
	Rank int
}

// Calibrate solves for the tip and post from matching sequences of body rotations and
// translations.
func Calibrate(rotations []spatialmath.Rotation, translations []r3.Vector) (*Result, error) {
	if len(rotations) != len(translations) {
		return nil, utils.NewLengthMismatchError("pivot rotations and translations", len(rotations), len(translations))
	}
	if len(rotations) < MinSamples {
		return nil, utils.NewTooFewError("pivot samples", len(rotations), MinSamples)
	}

	a, b := stack(rotations, translations)

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, errors.New("failed to factorize pivot system")
	}
	rows, cols := a.Dims()
	rank := svd.Rank(machineEpsilon * float64(max(rows, cols)))
	if rank == 0 {
		return nil, errors.New("pivot system has zero rank")
	}

	// minimum-norm least squares solution
	var x mat.VecDense
	svd.SolveVecTo(&x, b, rank)

	var residual mat.VecDense
	residual.MulVec(a, &x)
	residual.SubVec(&residual, b)

	return &Result{
		Tip:  spatialmath.NewPointXYZ("", x.AtVec(0), x.AtVec(1), x.AtVec(2)),
		Post: spatialmath.NewPointXYZ("", x.AtVec(3), x.AtVec(4), x.AtVec(5)),
		RMS:  perSampleRMS(&residual, len(rotations)),
		Rank: rank,
	}, nil
}

func perSampleRMS(residual *mat.VecDense, samples int) float64 {
	r := residual.RawVector().Data
	return math.Sqrt(floats.Dot(r, r) / float64(samples))
}

// CalibrateTransforms calibrates from a sequence of body-to-reference transforms. The post is
// tagged with the frame the transforms map into.
func CalibrateTransforms(tfs []spatialmath.Transform) (*Result, error) {
	rotations := make([]spatialmath.Rotation, len(tfs))
	translations := make([]r3.Vector, len(tfs))
	frame := ""
	for i, tf := range tfs {
		rotations[i] = tf.Rotation()
		translations[i] = tf.Translation().Vector()
		if frame == "" {
			frame = tf.Frame()
		}
	}
	res, err := Calibrate(rotations, translations)
	if err != nil {
		return nil, err
	}
	res.Post = res.Post.InFrame(frame)
	return res, nil
}

// stack builds A = [R_k | -I] and b = -p_k for every sample k.
func stack(rotations []spatialmath.Rotation, translations []r3.Vector) (*mat.Dense, *mat.VecDense) {
	m := len(rotations)
	a := mat.NewDense(3*m, 6, nil)
	b := mat.NewVecDense(3*m, nil)
	for k := 0; k < m; k++ {
		for i := 0; i < 3; i++ {
			row := 3*k + i
			for j := 0; j < 3; j++ {
				a.Set(row, j, rotations[k].At(i, j))
			}
			a.Set(row, 3+i, -1)
		}
		b.SetVec(3*k, -translations[k].X)
		b.SetVec(3*k+1, -translations[k].Y)
		b.SetVec(3*k+2, -translations[k].Z)
	}
	return a, b
}

// Residuals returns, for every sample, the distance between where the calibrated tip lands
// and the calibrated post: ||R_k * tip + p_k - post||.
func Residuals(res *Result, rotations []spatialmath.Rotation, translations []r3.Vector) ([]float64, error) {
	if len(rotations) != len(translations) {
		return nil, utils.NewLengthMismatchError("pivot rotations and translations", len(rotations), len(translations))
	}
	out := make([]float64, len(rotations))
	for k := range rotations {
		tip := rotations[k].Apply(res.Tip.Vector()).Add(translations[k])
		out[k] = tip.Distance(res.Post.Vector())
	}
	return out, nil
}

// IsWellPosed reports whether the poses varied enough to fix all six unknowns.
func (r *Result) IsWellPosed() bool {
	return r.Rank == 6 && !math.IsNaN(r.RMS)
}
