package calibration

import (
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/emguan/CIS-PA2/dataio"
	"github.com/emguan/CIS-PA2/spatialmath"
	"github.com/emguan/CIS-PA2/utils"
)

// FrameError summarizes the marker distances of one frame.
type FrameError struct {
	Distances []float64
	Mean      float64
	Median    float64
	RMS       float64
	Max       float64
	// StdDev is the population standard deviation of Distances.
	StdDev float64
}

// ErrorStats compares predicted marker sets against measured ones.
type ErrorStats struct {
	Frames []FrameError
	// MeanOfMeans is the mean over frames of each frame's mean distance.
	MeanOfMeans float64
	// MeanOfRMS is the mean over frames of each frame's RMS distance.
	MeanOfRMS float64
}

// CompareFrames measures, frame by frame, the Euclidean distance between each predicted marker
// and the measured marker at the same index.
func CompareFrames(predicted, measured [][]spatialmath.Point) (*ErrorStats, error) {
	if len(predicted) != len(measured) {
		return nil, errors.Wrapf(dataio.ErrCountMismatch, "%d predicted frames, %d measured", len(predicted), len(measured))
	}
	if len(predicted) == 0 {
		return nil, errors.New("no frames to compare")
	}

	out := &ErrorStats{Frames: make([]FrameError, len(predicted))}
	means := make([]float64, len(predicted))
	rmss := make([]float64, len(predicted))
	for k := range predicted {
		if len(predicted[k]) != len(measured[k]) {
			return nil, errors.Wrapf(dataio.ErrCountMismatch, "frame %d: %d predicted markers, %d measured",
				k, len(predicted[k]), len(measured[k]))
		}
		dists := make([]float64, len(predicted[k]))
		for i := range predicted[k] {
			dists[i] = predicted[k][i].Distance(measured[k][i])
		}
		fe, err := summarize(dists)
		if err != nil {
			return nil, errors.Wrapf(err, "frame %d", k)
		}
		out.Frames[k] = fe
		means[k] = fe.Mean
		rmss[k] = fe.RMS
	}
	out.MeanOfMeans = utils.Mean(means)
	out.MeanOfRMS = utils.Mean(rmss)
	return out, nil
}

func summarize(dists []float64) (FrameError, error) {
	fe := FrameError{Distances: dists, Mean: utils.Mean(dists), RMS: utils.RMS(dists)}
	if len(dists) == 0 {
		return fe, nil
	}
	fe.Max = floats.Max(dists)

	var err error
	if fe.Median, err = stats.Median(dists); err != nil {
		return fe, err
	}
	if fe.StdDev, err = stats.StandardDeviationPopulation(dists); err != nil {
		return fe, err
	}
	return fe, nil
}
