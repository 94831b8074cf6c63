package calibration

import (
	"context"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/emguan/CIS-PA2/dataio"
	"github.com/emguan/CIS-PA2/spatialmath"
)

// FramePrediction is the predicted EM marker set of one frame and the registrations behind it.
type FramePrediction struct {
	// FD maps the EM base model into optical tracker coordinates.
	FD spatialmath.Transform
	// FA maps the calibration object model into optical tracker coordinates.
	FA spatialmath.Transform
	// C are the calibration object's EM markers in EM base coordinates.
	C []spatialmath.Point
}

// ExpectedC is the result of PredictExpectedC.
type ExpectedC struct {
	Frames []FramePrediction
	// Degenerate lists frames where either registration was flagged as degenerate.
	Degenerate []int
}

// Points returns the predicted marker sets, one slice per frame.
func (e *ExpectedC) Points() [][]spatialmath.Point {
	return lo.Map(e.Frames, func(f FramePrediction, _ int) []spatialmath.Point { return f.C })
}

// PredictExpectedC predicts where the EM tracker should see the calibration object's EM markers
// in every frame. For frame k, F_D registers the body's d markers onto D_k and F_A registers a
// onto A_k; the prediction is C_k = F_D^-1 * F_A * c.
func PredictExpectedC(ctx context.Context, body *dataio.CalBody, readings *dataio.CalReadings, opts Options) (*ExpectedC, error) {
	if body == nil || readings == nil {
		return nil, errors.New("calibration body and readings are required")
	}

	frames := make([]FramePrediction, len(readings.Frames))
	flags := make([]bool, len(readings.Frames))
	err := opts.forEachFrame(ctx, len(readings.Frames), func(ctx context.Context, k int) error {
		frame := readings.Frames[k]
		fitD, err := opts.register("F_D", k, body.D, frame.D)
		if err != nil {
			return errors.Wrap(err, "registering EM base markers")
		}
		fitA, err := opts.register("F_A", k, body.A, frame.A)
		if err != nil {
			return errors.Wrap(err, "registering calibration object markers")
		}

		toEM := fitD.Transform.Inverse().Compose(fitA.Transform).InFrame(dataio.FrameEMC)
		frames[k] = FramePrediction{
			FD: fitD.Transform,
			FA: fitA.Transform,
			C:  toEM.ApplyAll(body.C),
		}
		flags[k] = fitD.Degenerate || fitA.Degenerate
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ExpectedC{Frames: frames, Degenerate: degenerateFrames(flags)}, nil
}
