package calibration

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/emguan/CIS-PA2/dataio"
	"github.com/emguan/CIS-PA2/pivot"
	"github.com/emguan/CIS-PA2/spatialmath"
	"github.com/emguan/CIS-PA2/utils"
)

// Frame names of the probe's local marker models.
const (
	FrameEMProbeLocal      = "EM Probe (local)"
	FrameOptProbeLocal     = "Optical Probe (local)"
	FrameEMBaseCoordinates = "EM Base"
)

// PivotResult is a pivot calibration together with the per-frame probe poses it was built from.
type PivotResult struct {
	*pivot.Result
	// Model is the probe's marker set in its local frame, centered on its centroid.
	Model []spatialmath.Point
	// Poses map the local model onto each frame's markers.
	Poses []spatialmath.Transform
	// Degenerate lists frames whose registration was flagged as degenerate.
	Degenerate []int
}

// localModel centers the first frame's markers on their centroid.
func localModel(first []spatialmath.Point, frame string) ([]spatialmath.Point, error) {
	centroid, err := spatialmath.Centroid(first)
	if err != nil {
		return nil, err
	}
	model := spatialmath.Translate(first, centroid.Negate())
	for i := range model {
		model[i] = model[i].InFrame(frame)
	}
	return model, nil
}

// pivotFromFrames registers model onto every frame and pivot-calibrates the resulting poses.
func pivotFromFrames(
	ctx context.Context,
	what string,
	model []spatialmath.Point,
	frames [][]spatialmath.Point,
	opts Options,
) (*PivotResult, error) {
	poses := make([]spatialmath.Transform, len(frames))
	flags := make([]bool, len(frames))
	err := opts.forEachFrame(ctx, len(frames), func(ctx context.Context, k int) error {
		fit, err := opts.register(what, k, model, frames[k])
		if err != nil {
			return err
		}
		poses[k] = fit.Transform
		flags[k] = fit.Degenerate
		return nil
	})
	if err != nil {
		return nil, err
	}

	res, err := pivot.CalibrateTransforms(poses)
	if err != nil {
		return nil, err
	}
	if !res.IsWellPosed() {
		opts.logger().Warnw("pivot poses do not vary enough, returning minimum norm solution", "fit", what, "rank", res.Rank)
	}
	opts.logger().Debugw("pivot calibrated", "fit", what, "tip", res.Tip, "post", res.Post, "rms", res.RMS,
		"rotation_span_deg", utils.RadToDeg(rotationSpan(poses)))
	return &PivotResult{Result: res, Model: model, Poses: poses, Degenerate: degenerateFrames(flags)}, nil
}

// rotationSpan is the largest angle between the first pose's rotation and any other.
func rotationSpan(poses []spatialmath.Transform) float64 {
	var span float64
	for _, pose := range poses[1:] {
		span = math.Max(span, spatialmath.AngleBetween(poses[0].Rotation(), pose.Rotation()))
	}
	return span
}

// EMPivot calibrates the EM probe. The first frame's markers, centered on their centroid, are
// the probe's local model; registering it onto every frame gives the probe poses that are
// pivot-calibrated. The post is expressed in EM tracker coordinates.
func EMPivot(ctx context.Context, piv *dataio.EMPivot, opts Options) (*PivotResult, error) {
	if piv == nil || len(piv.Frames) == 0 {
		return nil, errors.New("EM pivot recording has no frames")
	}
	model, err := localModel(piv.Frames[0], FrameEMProbeLocal)
	if err != nil {
		return nil, errors.Wrap(err, "building EM probe model")
	}
	return pivotFromFrames(ctx, "F_G", model, piv.Frames, opts)
}

// OptPivot calibrates the optical probe in EM base coordinates. Each frame's probe markers H_k
// are first carried into EM base coordinates through F_D^-1, where F_D registers the body's d
// markers onto the frame's D_k. The rest proceeds as EMPivot.
func OptPivot(ctx context.Context, body *dataio.CalBody, piv *dataio.OptPivot, opts Options) (*PivotResult, error) {
	if body == nil || piv == nil || len(piv.Frames) == 0 {
		return nil, errors.New("optical pivot needs a calibration body and at least one frame")
	}
	if nd := len(piv.Frames[0].D); nd != len(body.D) {
		return nil, dataio.NewCountMismatchError([]int{len(body.D)}, []int{nd})
	}

	inBase := make([][]spatialmath.Point, len(piv.Frames))
	err := opts.forEachFrame(ctx, len(piv.Frames), func(ctx context.Context, k int) error {
		fitD, err := opts.register("F_D", k, body.D, piv.Frames[k].D)
		if err != nil {
			return errors.Wrap(err, "registering EM base markers")
		}
		inBase[k] = fitD.Transform.Inverse().InFrame(FrameEMBaseCoordinates).ApplyAll(piv.Frames[k].H)
		return nil
	})
	if err != nil {
		return nil, err
	}

	model, err := localModel(inBase[0], FrameOptProbeLocal)
	if err != nil {
		return nil, errors.Wrap(err, "building optical probe model")
	}
	return pivotFromFrames(ctx, "F_H", model, inBase, opts)
}
