package dataio

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/emguan/CIS-PA2/spatialmath"
)

// FramePredicted names the frame of points read back from an output record.
const FramePredicted = "Sensor (EM) C expected"

// Output is a set of predicted marker positions, one slice per frame.
type Output struct {
	Name   string
	Frames [][]spatialmath.Point
}

// WriteOutput writes "NC, Nframes, name" followed by every point with six decimals.
// All frames must hold the same number of points.
func WriteOutput(w io.Writer, name string, frames [][]spatialmath.Point) error {
	if len(frames) == 0 {
		return errors.New("no frames to write")
	}
	nc := len(frames[0])
	for k, frame := range frames {
		if len(frame) != nc {
			return errors.Wrapf(ErrCountMismatch, "frame %d has %d points, frame 0 has %d", k, len(frame), nc)
		}
	}

	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "%d, %d, %s\n", nc, len(frames), name); err != nil {
		return err
	}
	for _, frame := range frames {
		for _, p := range frame {
			if _, err := fmt.Fprintf(bw, "%.6f,%.6f,%.6f\n", p.X(), p.Y(), p.Z()); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// WriteOutputFile creates path, truncating any existing file, and writes the output to it.
func WriteOutputFile(path, name string, frames [][]spatialmath.Point) (err error) {
	//nolint:gosec
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
	}()
	return errors.Wrapf(WriteOutput(file, name, frames), "writing %s", path)
}

// ReadOutput reads a record written by WriteOutput.
func ReadOutput(r io.Reader) (*Output, error) {
	rr, err := newRecordReader(r)
	if err != nil {
		return nil, err
	}
	counts, name, err := rr.header(2)
	if err != nil {
		return nil, err
	}
	nc, nframes := counts[0], counts[1]
	out := &Output{Name: name}
	for k := 0; k < nframes; k++ {
		pts, err := rr.points(nc, FramePredicted)
		if err != nil {
			return nil, errors.Wrapf(err, "frame %d", k)
		}
		out.Frames = append(out.Frames, pts)
	}
	return out, nil
}

// ReadOutputFile opens path and reads an output record from it.
func ReadOutputFile(path string) (*Output, error) {
	var out *Output
	err := withFile(path, func(r io.Reader) (err error) {
		out, err = ReadOutput(r)
		return err
	})
	return out, err
}
