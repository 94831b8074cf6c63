package pivot

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/emguan/CIS-PA2/spatialmath"
	"github.com/emguan/CIS-PA2/utils"
)

func randomRotation(rng *rand.Rand) spatialmath.Rotation {
	return spatialmath.RotationFromEulerAngles(
		(rng.Float64()*2-1)*math.Pi/3,
		(rng.Float64()*2-1)*math.Pi/3,
		(rng.Float64()*2-1)*math.Pi,
	)
}

// synthesize returns poses consistent with R_k * tip - post = -p_k.
func synthesize(rng *rand.Rand, m int, tip, post r3.Vector) ([]spatialmath.Rotation, []r3.Vector) {
	rotations := make([]spatialmath.Rotation, m)
	translations := make([]r3.Vector, m)
	for k := 0; k < m; k++ {
		rotations[k] = randomRotation(rng)
		translations[k] = post.Sub(rotations[k].Apply(tip))
	}
	return rotations, translations
}

func TestCalibrateRecoversTipAndPost(t *testing.T) {
	rng := rand.New(rand.NewSource(20))
	for trial := 0; trial < 10; trial++ {
		tip := r3.Vector{X: rng.Float64()*40 - 20, Y: rng.Float64()*40 - 20, Z: rng.Float64()*200 - 100}
		post := r3.Vector{X: rng.Float64()*400 - 200, Y: rng.Float64()*400 - 200, Z: rng.Float64()*400 - 200}
		rotations, translations := synthesize(rng, 6+rng.Intn(20), tip, post)

		res, err := Calibrate(rotations, translations)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, res.Tip.AlmostEqual(spatialmath.NewPoint("", tip), 1e-6), test.ShouldBeTrue)
		test.That(t, res.Post.AlmostEqual(spatialmath.NewPoint("", post), 1e-6), test.ShouldBeTrue)
		test.That(t, res.RMS, test.ShouldAlmostEqual, 0, 1e-8)
		test.That(t, res.Rank, test.ShouldEqual, 6)
		test.That(t, res.IsWellPosed(), test.ShouldBeTrue)

		residuals, err := Residuals(res, rotations, translations)
		test.That(t, err, test.ShouldBeNil)
		for _, r := range residuals {
			test.That(t, r, test.ShouldAlmostEqual, 0, 1e-6)
		}
	}
}

func TestCalibrateWithNoise(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	tip := r3.Vector{X: 5, Y: -3, Z: 120}
	post := r3.Vector{X: 200, Y: 150, Z: -50}
	rotations, translations := synthesize(rng, 60, tip, post)
	for k := range translations {
		translations[k] = translations[k].Add(r3.Vector{
			X: rng.NormFloat64() * 0.05,
			Y: rng.NormFloat64() * 0.05,
			Z: rng.NormFloat64() * 0.05,
		})
	}

	res, err := Calibrate(rotations, translations)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Tip.Distance(spatialmath.NewPoint("", tip)), test.ShouldBeLessThan, 0.1)
	test.That(t, res.Post.Distance(spatialmath.NewPoint("", post)), test.ShouldBeLessThan, 0.1)
	test.That(t, res.RMS, test.ShouldBeGreaterThan, 0.)
	test.That(t, res.RMS, test.ShouldBeLessThan, 0.15)

	// the score is the RMS of the per-sample tip-to-post distance, not of the 3M stacked entries
	dists, err := Residuals(res, rotations, translations)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.RMS, test.ShouldAlmostEqual, utils.RMS(dists), 1e-9)
	var ssr float64
	for _, d := range dists {
		ssr += d * d
	}
	test.That(t, res.RMS, test.ShouldAlmostEqual, math.Sqrt(ssr/float64(len(rotations))), 1e-9)
	// per-axis noise of 0.05 gives a distance RMS near 0.05*sqrt(3)
	test.That(t, res.RMS, test.ShouldBeGreaterThan, 0.06)
}

func TestCalibrateRankDeficient(t *testing.T) {
	rng := rand.New(rand.NewSource(22))
	tip := r3.Vector{X: 1, Y: 2, Z: 3}
	post := r3.Vector{X: -4, Y: 5, Z: 6}
	rotations, translations := synthesize(rng, 2, tip, post)

	res, err := Calibrate(rotations, translations)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Rank, test.ShouldBeLessThan, 6)
	test.That(t, res.IsWellPosed(), test.ShouldBeFalse)
	// the minimum-norm solution still satisfies every equation
	test.That(t, res.RMS, test.ShouldAlmostEqual, 0, 1e-8)
	tipNorm := res.Tip.Norm()*res.Tip.Norm() + res.Post.Norm()*res.Post.Norm()
	trueNorm := tip.Norm()*tip.Norm() + post.Norm()*post.Norm()
	test.That(t, tipNorm, test.ShouldBeLessThanOrEqualTo, trueNorm+1e-6)

	// identical poses give the same rank deficiency without failing
	same := []spatialmath.Rotation{rotations[0], rotations[0], rotations[0]}
	sameT := []r3.Vector{translations[0], translations[0], translations[0]}
	res, err = Calibrate(same, sameT)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Rank, test.ShouldEqual, 3)
}

func TestCalibratePreconditions(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	rotations, translations := synthesize(rng, 4, r3.Vector{X: 1}, r3.Vector{Y: 1})

	_, err := Calibrate(rotations[:1], translations[:1])
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, utils.ErrPrecondition), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "at least 2")

	_, err = Calibrate(nil, nil)
	test.That(t, errors.Is(err, utils.ErrPrecondition), test.ShouldBeTrue)

	_, err = Calibrate(rotations, translations[:3])
	test.That(t, errors.Is(err, utils.ErrPrecondition), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "lengths differ")
}

func TestCalibrateTransforms(t *testing.T) {
	rng := rand.New(rand.NewSource(24))
	tip := r3.Vector{X: 0, Y: 0, Z: 100}
	post := r3.Vector{X: 10, Y: 20, Z: 30}
	rotations, translations := synthesize(rng, 8, tip, post)
	tfs := make([]spatialmath.Transform, len(rotations))
	for k := range tfs {
		tfs[k] = spatialmath.NewTransform("EM tracker", rotations[k], translations[k])
	}

	res, err := CalibrateTransforms(tfs)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Post.Frame(), test.ShouldEqual, "EM tracker")
	test.That(t, res.Post.AlmostEqual(spatialmath.NewPoint("", post), 1e-6), test.ShouldBeTrue)
	test.That(t, res.Tip.AlmostEqual(spatialmath.NewPoint("", tip), 1e-6), test.ShouldBeTrue)

	// the tip, carried through every pose, lands on the post
	for _, tf := range tfs {
		test.That(t, tf.Apply(res.Tip).AlmostEqual(res.Post, 1e-6), test.ShouldBeTrue)
	}

	_, err = CalibrateTransforms(tfs[:1])
	test.That(t, errors.Is(err, utils.ErrPrecondition), test.ShouldBeTrue)
}
