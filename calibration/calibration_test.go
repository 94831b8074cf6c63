package calibration

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.viam.com/test"

	"github.com/emguan/CIS-PA2/config"
	"github.com/emguan/CIS-PA2/dataio"
	"github.com/emguan/CIS-PA2/logging"
	"github.com/emguan/CIS-PA2/spatialmath"
)

func randomPoints(rng *rand.Rand, n int, frame string, scale float64) []spatialmath.Point {
	pts := make([]spatialmath.Point, n)
	for i := range pts {
		pts[i] = spatialmath.NewPointXYZ(frame,
			(rng.Float64()*2-1)*scale,
			(rng.Float64()*2-1)*scale,
			(rng.Float64()*2-1)*scale,
		)
	}
	return pts
}

func randomTransform(rng *rand.Rand, frame string) spatialmath.Transform {
	rot := spatialmath.RotationFromEulerAngles(
		(rng.Float64()*2-1)*math.Pi/3,
		(rng.Float64()*2-1)*math.Pi/3,
		(rng.Float64()*2-1)*math.Pi,
	)
	trans := r3.Vector{X: rng.Float64()*400 - 200, Y: rng.Float64()*400 - 200, Z: rng.Float64()*400 - 200}
	return spatialmath.NewTransform(frame, rot, trans)
}

type synthetic struct {
	body     *dataio.CalBody
	readings *dataio.CalReadings
	truthC   [][]spatialmath.Point
}

func synthesizeCalibration(rng *rand.Rand, nframes int) synthetic {
	body := &dataio.CalBody{
		Name: "synthetic-calbody.txt",
		D:    randomPoints(rng, 8, dataio.FrameEMBaseModel, 100),
		A:    randomPoints(rng, 8, dataio.FrameCalObjectModel, 50),
		C:    randomPoints(rng, 27, dataio.FrameCalObjectEMModel, 50),
	}
	readings := &dataio.CalReadings{Name: "synthetic-calreadings.txt"}
	truthC := make([][]spatialmath.Point, nframes)
	for k := 0; k < nframes; k++ {
		fd := randomTransform(rng, dataio.FrameOpticalD)
		fa := randomTransform(rng, dataio.FrameOpticalA)
		truthC[k] = fd.Inverse().Compose(fa).InFrame(dataio.FrameEMC).ApplyAll(body.C)
		readings.Frames = append(readings.Frames, dataio.CalFrame{
			D: fd.ApplyAll(body.D),
			A: fa.ApplyAll(body.A),
			C: truthC[k],
		})
	}
	return synthetic{body: body, readings: readings, truthC: truthC}
}

func TestPredictExpectedC(t *testing.T) {
	rng := rand.New(rand.NewSource(30))
	data := synthesizeCalibration(rng, 6)

	for _, parallel := range []bool{false, true} {
		logger := logging.NewTestLogger(t)
		expected, err := PredictExpectedC(context.Background(), data.body, data.readings, Options{Parallel: parallel, Logger: logger})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, expected.Frames, test.ShouldHaveLength, 6)
		test.That(t, expected.Degenerate, test.ShouldBeEmpty)
		for k, frame := range expected.Frames {
			test.That(t, frame.C, test.ShouldHaveLength, 27)
			for i, p := range frame.C {
				test.That(t, p.Frame(), test.ShouldEqual, dataio.FrameEMC)
				test.That(t, p.AlmostEqual(data.truthC[k][i], 1e-6), test.ShouldBeTrue)
			}
		}

		stats, err := CompareFrames(expected.Points(), MeasuredC(data.readings))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, stats.MeanOfMeans, test.ShouldAlmostEqual, 0, 1e-6)
		test.That(t, stats.MeanOfRMS, test.ShouldAlmostEqual, 0, 1e-6)
	}
}

func TestPredictExpectedCErrors(t *testing.T) {
	rng := rand.New(rand.NewSource(31))
	data := synthesizeCalibration(rng, 3)
	data.readings.Frames[1].D = data.readings.Frames[1].D[:2]

	_, err := PredictExpectedC(context.Background(), data.body, data.readings, Options{Parallel: true})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "item 1")
	test.That(t, err.Error(), test.ShouldContainSubstring, "EM base markers")

	_, err = PredictExpectedC(context.Background(), nil, data.readings, Options{})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPredictExpectedCFlagsDegenerateFrames(t *testing.T) {
	rng := rand.New(rand.NewSource(32))
	data := synthesizeCalibration(rng, 2)
	line := make([]spatialmath.Point, 4)
	for i := range line {
		line[i] = spatialmath.NewPointXYZ(dataio.FrameCalObjectModel, float64(i), 0, 0)
	}
	data.body.A = line
	for k := range data.readings.Frames {
		data.readings.Frames[k].A = line
	}

	logger, observed := logging.NewObservedTestLogger(t)
	expected, err := PredictExpectedC(context.Background(), data.body, data.readings, Options{Logger: logger})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, expected.Degenerate, test.ShouldResemble, []int{0, 1})
	test.That(t, observed.FilterMessage("degenerate registration").Len(), test.ShouldEqual, 2)
}

func TestCompareFrames(t *testing.T) {
	predicted := [][]spatialmath.Point{
		{spatialmath.NewPointXYZ("", 0, 0, 0), spatialmath.NewPointXYZ("", 1, 1, 1)},
		{spatialmath.NewPointXYZ("", 0, 0, 0), spatialmath.NewPointXYZ("", 0, 0, 0)},
	}
	measured := [][]spatialmath.Point{
		{spatialmath.NewPointXYZ("", 3, 4, 0), spatialmath.NewPointXYZ("", 1, 1, 1)},
		{spatialmath.NewPointXYZ("", 0, 0, 2), spatialmath.NewPointXYZ("", 0, 2, 0)},
	}
	stats, err := CompareFrames(predicted, measured)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stats.Frames[0].Distances, test.ShouldResemble, []float64{5, 0})
	test.That(t, stats.Frames[0].Mean, test.ShouldAlmostEqual, 2.5)
	test.That(t, stats.Frames[0].RMS, test.ShouldAlmostEqual, math.Sqrt(12.5))
	test.That(t, stats.Frames[0].Max, test.ShouldAlmostEqual, 5)
	test.That(t, stats.Frames[0].Median, test.ShouldAlmostEqual, 2.5)
	test.That(t, stats.Frames[0].StdDev, test.ShouldAlmostEqual, 2.5)
	test.That(t, cmp.Diff(FrameError{Distances: []float64{2, 2}, Mean: 2, Median: 2, RMS: 2, Max: 2}, stats.Frames[1],
		cmpopts.EquateApprox(0, 1e-12)), test.ShouldBeEmpty)
	test.That(t, stats.Frames[1].Mean, test.ShouldAlmostEqual, 2)
	test.That(t, stats.Frames[1].RMS, test.ShouldAlmostEqual, 2)
	test.That(t, stats.MeanOfMeans, test.ShouldAlmostEqual, 2.25)
	test.That(t, stats.MeanOfRMS, test.ShouldAlmostEqual, (math.Sqrt(12.5)+2)/2)

	_, err = CompareFrames(predicted, measured[:1])
	test.That(t, errors.Is(err, dataio.ErrCountMismatch), test.ShouldBeTrue)
	_, err = CompareFrames(predicted, [][]spatialmath.Point{measured[0], measured[1][:1]})
	test.That(t, errors.Is(err, dataio.ErrCountMismatch), test.ShouldBeTrue)
	_, err = CompareFrames(nil, nil)
	test.That(t, err, test.ShouldNotBeNil)

	test.That(t, PlotFrameErrors(nil, "empty", filepath.Join(t.TempDir(), "empty.png")), test.ShouldNotBeNil)
	err = PlotFrameErrors(&ErrorStats{Frames: []FrameError{{Mean: math.NaN()}}}, "nan", filepath.Join(t.TempDir(), "nan.png"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "mean line")
	svg := filepath.Join(t.TempDir(), "errors.svg")
	test.That(t, PlotFrameErrors(stats, "errors", svg), test.ShouldBeNil)
	_, err = os.Stat(svg)
	test.That(t, err, test.ShouldBeNil)
}

// probeFrames moves a probe whose tip, in probe coordinates, is tip so that the tip rests on post.
func probeFrames(rng *rand.Rand, model []spatialmath.Point, tip, post r3.Vector, nframes int, frame string) [][]spatialmath.Point {
	frames := make([][]spatialmath.Point, nframes)
	for k := range frames {
		rot := randomTransform(rng, frame).Rotation()
		pose := spatialmath.NewTransform(frame, rot, post.Sub(rot.Apply(tip)))
		frames[k] = pose.ApplyAll(model)
	}
	return frames
}

func TestEMPivot(t *testing.T) {
	rng := rand.New(rand.NewSource(33))
	tip := r3.Vector{X: 2, Y: -1, Z: 110}
	post := r3.Vector{X: 180, Y: -40, Z: 25}
	model := randomPoints(rng, 6, "", 30)
	piv := &dataio.EMPivot{Frames: probeFrames(rng, model, tip, post, 12, dataio.FrameEMProbe)}

	res, err := EMPivot(context.Background(), piv, Options{Parallel: true, Logger: logging.NewTestLogger(t)})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.IsWellPosed(), test.ShouldBeTrue)
	test.That(t, res.Post.AlmostEqual(spatialmath.NewPoint("", post), 1e-5), test.ShouldBeTrue)
	test.That(t, res.Post.Frame(), test.ShouldEqual, dataio.FrameEMProbe)
	test.That(t, res.Tip.Frame(), test.ShouldEqual, "")
	test.That(t, res.RMS, test.ShouldAlmostEqual, 0, 1e-6)
	test.That(t, res.Poses, test.ShouldHaveLength, 12)
	test.That(t, res.Degenerate, test.ShouldBeEmpty)

	// the local model is centered and the tip is expressed relative to it
	centroid, err := spatialmath.Centroid(res.Model)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, centroid.Norm(), test.ShouldAlmostEqual, 0, 1e-9)
	for _, pose := range res.Poses {
		test.That(t, pose.Apply(res.Tip).AlmostEqual(res.Post, 1e-5), test.ShouldBeTrue)
	}

	_, err = EMPivot(context.Background(), &dataio.EMPivot{}, Options{})
	test.That(t, err, test.ShouldNotBeNil)
	_, err = EMPivot(context.Background(), &dataio.EMPivot{Frames: piv.Frames[:1]}, Options{})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestOptPivot(t *testing.T) {
	rng := rand.New(rand.NewSource(34))
	body := &dataio.CalBody{D: randomPoints(rng, 8, dataio.FrameEMBaseModel, 100)}
	tip := r3.Vector{X: -3, Y: 4, Z: 95}
	post := r3.Vector{X: 50, Y: 60, Z: -70}
	model := randomPoints(rng, 6, "", 25)
	probeInBase := probeFrames(rng, model, tip, post, 10, FrameEMBaseCoordinates)

	piv := &dataio.OptPivot{}
	for _, h := range probeInBase {
		fd := randomTransform(rng, dataio.FrameOptPivotBaseLEDs)
		piv.Frames = append(piv.Frames, dataio.OptPivotFrame{
			D: fd.ApplyAll(body.D),
			H: fd.InFrame(dataio.FrameOptPivotProbeLEDs).ApplyAll(h),
		})
	}

	res, err := OptPivot(context.Background(), body, piv, Options{Logger: logging.NewTestLogger(t)})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.IsWellPosed(), test.ShouldBeTrue)
	test.That(t, res.Post.AlmostEqual(spatialmath.NewPoint("", post), 1e-5), test.ShouldBeTrue)
	test.That(t, res.Post.Frame(), test.ShouldEqual, FrameEMBaseCoordinates)
	for _, pose := range res.Poses {
		test.That(t, pose.Apply(res.Tip).AlmostEqual(res.Post, 1e-5), test.ShouldBeTrue)
	}
	test.That(t, res.RMS, test.ShouldAlmostEqual, 0, 1e-6)

	badBody := &dataio.CalBody{D: body.D[:7]}
	_, err = OptPivot(context.Background(), badBody, piv, Options{})
	test.That(t, errors.Is(err, dataio.ErrCountMismatch), test.ShouldBeTrue)
}

func formatXYZ(p spatialmath.Point) string {
	return fmt.Sprintf("%.6f, %.6f, %.6f", p.X(), p.Y(), p.Z())
}

func TestRunDataset(t *testing.T) {
	rng := rand.New(rand.NewSource(35))
	data := synthesizeCalibration(rng, 4)
	dir := t.TempDir()
	cfg := &config.Config{DataDir: filepath.Join(dir, "data"), OutputDir: filepath.Join(dir, "output")}
	paths := cfg.Paths("synthetic")
	test.That(t, os.MkdirAll(cfg.DataDir, 0o750), test.ShouldBeNil)

	// records are written with the output writer's number format
	writePoints := func(path, header string, groups ...[]spatialmath.Point) {
		t.Helper()
		var all []spatialmath.Point
		for _, g := range groups {
			all = append(all, g...)
		}
		f, err := os.Create(path)
		test.That(t, err, test.ShouldBeNil)
		_, err = f.WriteString(header + "\n")
		test.That(t, err, test.ShouldBeNil)
		for _, p := range all {
			_, err = f.WriteString(formatXYZ(p) + "\n")
			test.That(t, err, test.ShouldBeNil)
		}
		test.That(t, f.Close(), test.ShouldBeNil)
	}

	writePoints(paths.CalBody, "8, 8, 27, synthetic-calbody.txt", data.body.D, data.body.A, data.body.C)
	var groups [][]spatialmath.Point
	for _, f := range data.readings.Frames {
		groups = append(groups, f.D, f.A, f.C)
	}
	writePoints(paths.CalReadings, "8, 8, 27, 4, synthetic-calreadings.txt", groups...)

	logger, observed := logging.NewObservedTestLogger(t)
	report, err := RunDataset(context.Background(), paths, Options{Parallel: true, Logger: logger})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, report.Name, test.ShouldEqual, "synthetic")
	test.That(t, report.Errors.MeanOfRMS, test.ShouldBeLessThan, 1e-4)
	test.That(t, report.EMPivot, test.ShouldBeNil)
	test.That(t, report.OptPivot, test.ShouldBeNil)
	test.That(t, observed.FilterMessage("expected C").Len(), test.ShouldEqual, 1)

	out, err := dataio.ReadOutputFile(paths.Output)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Name, test.ShouldEqual, "synthetic-output-1.txt")
	test.That(t, out.Frames, test.ShouldHaveLength, 4)
	test.That(t, out.Frames[3][26].AlmostEqual(data.truthC[3][26], 1e-5), test.ShouldBeTrue)

	// with an EM pivot recording present it is calibrated too
	model := randomPoints(rng, 6, "", 30)
	frames := probeFrames(rng, model, r3.Vector{Z: 100}, r3.Vector{X: 10, Y: 20, Z: 30}, 8, dataio.FrameEMProbe)
	writePoints(paths.EMPivot, "6, 8, synthetic-empivot.txt", frames...)
	cfg.PlotErrors = true
	paths = cfg.Paths("synthetic")
	report, err = RunDataset(context.Background(), paths, Options{Logger: logger})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, report.EMPivot, test.ShouldNotBeNil)
	test.That(t, report.EMPivot.Post.AlmostEqual(spatialmath.NewPointXYZ("", 10, 20, 30), 1e-4), test.ShouldBeTrue)
	info, err := os.Stat(paths.Plot)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, info.Size(), test.ShouldBeGreaterThan, 0)

	summary := Summary([]*DatasetReport{report, nil})
	test.That(t, summary, test.ShouldContainSubstring, "synthetic")
	test.That(t, summary, test.ShouldContainSubstring, "X:10.00, Y:20.00, Z:30.00")

	_, err = RunDataset(context.Background(), cfg.Paths("missing"), Options{})
	test.That(t, err, test.ShouldNotBeNil)
}
