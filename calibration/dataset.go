package calibration

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/emguan/CIS-PA2/config"
	"github.com/emguan/CIS-PA2/dataio"
	"github.com/emguan/CIS-PA2/spatialmath"
)

// DatasetReport collects everything computed for one dataset.
type DatasetReport struct {
	Name     string
	Expected *ExpectedC
	// Errors compares Expected against the measured C markers.
	Errors *ErrorStats
	// EMPivot and OptPivot are nil when the dataset has no such recording.
	EMPivot  *PivotResult
	OptPivot *PivotResult
}

// RunDataset runs every pipeline on one dataset and writes the predicted C markers to the
// dataset's output path. Pivot recordings that do not exist are skipped.
func RunDataset(ctx context.Context, paths config.DatasetPaths, opts Options) (*DatasetReport, error) {
	logger := opts.logger()
	report := &DatasetReport{Name: paths.Name}

	body, err := dataio.ReadCalBodyFile(paths.CalBody)
	if err != nil {
		return nil, err
	}
	readings, err := dataio.ReadCalReadingsFile(paths.CalReadings, body)
	if err != nil {
		return nil, err
	}

	report.Expected, err = PredictExpectedC(ctx, body, readings, opts)
	if err != nil {
		return nil, errors.Wrap(err, "predicting C")
	}
	report.Errors, err = CompareFrames(report.Expected.Points(), MeasuredC(readings))
	if err != nil {
		return nil, err
	}
	logger.Infow("expected C",
		"frames", len(report.Expected.Frames),
		"mean_error", report.Errors.MeanOfMeans,
		"rms_error", report.Errors.MeanOfRMS,
		"degenerate_frames", report.Expected.Degenerate,
	)

	if err := os.MkdirAll(filepath.Dir(paths.Output), 0o750); err != nil {
		return nil, err
	}
	if err := dataio.WriteOutputFile(paths.Output, filepath.Base(paths.Output), report.Expected.Points()); err != nil {
		return nil, err
	}
	logger.Debugw("wrote output", "path", paths.Output)

	if paths.Plot != "" {
		if err := PlotFrameErrors(report.Errors, paths.Name+" C prediction error", paths.Plot); err != nil {
			return nil, errors.Wrap(err, "plotting frame errors")
		}
		logger.Debugw("wrote error plot", "path", paths.Plot)
	}

	emPiv, err := dataio.ReadEMPivotFile(paths.EMPivot)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Debugw("no EM pivot recording", "path", paths.EMPivot)
	case err != nil:
		return nil, err
	default:
		if report.EMPivot, err = EMPivot(ctx, emPiv, opts); err != nil {
			return nil, errors.Wrap(err, "EM pivot")
		}
		logger.Infow("EM pivot", "tip", report.EMPivot.Tip, "post", report.EMPivot.Post, "rms", report.EMPivot.RMS)
	}

	optPiv, err := dataio.ReadOptPivotFile(paths.OptPivot)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Debugw("no optical pivot recording", "path", paths.OptPivot)
	case err != nil:
		return nil, err
	default:
		if report.OptPivot, err = OptPivot(ctx, body, optPiv, opts); err != nil {
			return nil, errors.Wrap(err, "optical pivot")
		}
		logger.Infow("optical pivot", "tip", report.OptPivot.Tip, "post", report.OptPivot.Post, "rms", report.OptPivot.RMS)
	}

	return report, nil
}

// MeasuredC returns the C markers of every frame of the readings.
func MeasuredC(readings *dataio.CalReadings) [][]spatialmath.Point {
	return lo.Map(readings.Frames, func(f dataio.CalFrame, _ int) []spatialmath.Point { return f.C })
}
