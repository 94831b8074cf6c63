// Package dataio reads and writes the comma separated text records exchanged with the
// calibration tooling: calibration bodies, per-frame readings, pivot recordings and
// predicted marker output.
package dataio

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/pkg/errors"

	"github.com/emguan/CIS-PA2/spatialmath"
)

// Frame names attached to the points read from each record type.
const (
	FrameEMBaseModel       = "EM Base (model)"
	FrameCalObjectModel    = "Calib Object (model)"
	FrameCalObjectEMModel  = "Calib Object EM (model)"
	FrameOpticalD          = "Sensor (optical) D"
	FrameOpticalA          = "Sensor (optical) A"
	FrameEMC               = "Sensor (EM) C"
	FrameEMProbe           = "EM Probe (sensor)"
	FrameOptPivotBaseLEDs  = "Optical D (base LEDs)"
	FrameOptPivotProbeLEDs = "Optical H (probe LEDs)"
)

// xyzRecord is one "x,y,z" line.
type xyzRecord struct {
	X float64 `csv:"x"`
	Y float64 `csv:"y"`
	Z float64 `csv:"z"`
}

// trimReader strips surrounding whitespace from every field so values such as " 1.5 "
// decode as numbers.
type trimReader struct {
	r    *csv.Reader
	line int
}

func (tr *trimReader) Read() ([]string, error) {
	rec, err := tr.r.Read()
	if err != nil {
		return nil, err
	}
	tr.line++
	for i := range rec {
		rec[i] = strings.TrimSpace(rec[i])
	}
	return rec, nil
}

// recordReader reads a header line followed by coordinate lines.
type recordReader struct {
	tr  *trimReader
	dec *csvutil.Decoder
}

func newRecordReader(r io.Reader) (*recordReader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	tr := &trimReader{r: cr}
	dec, err := csvutil.NewDecoder(tr, "x", "y", "z")
	if err != nil {
		return nil, err
	}
	return &recordReader{tr: tr, dec: dec}, nil
}

// MaxHeaderCount bounds every count a record header may announce.
const MaxHeaderCount = 1 << 20

// header reads the first line, returning its leading integer counts and the trailing name
// if there is one.
func (rr *recordReader) header(numCounts int) ([]int, string, error) {
	fields, err := rr.tr.Read()
	if err != nil {
		return nil, "", errors.Wrap(err, "reading header")
	}
	if len(fields) < numCounts {
		return nil, "", NewMalformedHeaderError(fields, numCounts)
	}
	counts := make([]int, numCounts)
	for i := 0; i < numCounts; i++ {
		n, err := strconv.Atoi(fields[i])
		if err != nil || n < 0 || n > MaxHeaderCount {
			return nil, "", NewMalformedHeaderError(fields, numCounts)
		}
		counts[i] = n
	}
	name := ""
	if len(fields) > numCounts {
		name = fields[numCounts]
	}
	return counts, name, nil
}

// points reads n coordinate lines tagged with frame.
func (rr *recordReader) points(n int, frame string) ([]spatialmath.Point, error) {
	var pts []spatialmath.Point
	for i := 0; i < n; i++ {
		var rec xyzRecord
		if err := rr.dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.Wrapf(ErrTruncated, "expected %d %q points, got %d", n, frame, i)
			}
			return nil, errors.Wrapf(err, "line %d", rr.tr.line)
		}
		pts = append(pts, spatialmath.NewPointXYZ(frame, rec.X, rec.Y, rec.Z))
	}
	return pts, nil
}

// CalBody holds the marker positions of the calibration body in its own coordinates.
type CalBody struct {
	Name string
	// D are the optical markers on the EM base.
	D []spatialmath.Point
	// A are the optical markers on the calibration object.
	A []spatialmath.Point
	// C are the EM markers on the calibration object.
	C []spatialmath.Point
}

// ReadCalBody reads a "ND, NA, NC, name" record.
func ReadCalBody(r io.Reader) (*CalBody, error) {
	rr, err := newRecordReader(r)
	if err != nil {
		return nil, err
	}
	counts, name, err := rr.header(3)
	if err != nil {
		return nil, err
	}
	body := &CalBody{Name: name}
	if body.D, err = rr.points(counts[0], FrameEMBaseModel); err != nil {
		return nil, err
	}
	if body.A, err = rr.points(counts[1], FrameCalObjectModel); err != nil {
		return nil, err
	}
	if body.C, err = rr.points(counts[2], FrameCalObjectEMModel); err != nil {
		return nil, err
	}
	return body, nil
}

// CalFrame is one frame of calibration readings.
type CalFrame struct {
	D []spatialmath.Point
	A []spatialmath.Point
	C []spatialmath.Point
}

// CalReadings holds every frame of a calibration readings record.
type CalReadings struct {
	Name   string
	Frames []CalFrame
}

// ReadCalReadings reads a "ND, NA, NC, Nframes, name" record. The marker counts must match
// the calibration body the readings were taken with.
func ReadCalReadings(r io.Reader, body *CalBody) (*CalReadings, error) {
	rr, err := newRecordReader(r)
	if err != nil {
		return nil, err
	}
	counts, name, err := rr.header(4)
	if err != nil {
		return nil, err
	}
	nd, na, nc, nframes := counts[0], counts[1], counts[2], counts[3]
	if nd != len(body.D) || na != len(body.A) || nc != len(body.C) {
		return nil, NewCountMismatchError(
			[]int{len(body.D), len(body.A), len(body.C)},
			[]int{nd, na, nc},
		)
	}
	readings := &CalReadings{Name: name}
	for k := 0; k < nframes; k++ {
		var frame CalFrame
		if frame.D, err = rr.points(nd, FrameOpticalD); err != nil {
			return nil, errors.Wrapf(err, "frame %d", k)
		}
		if frame.A, err = rr.points(na, FrameOpticalA); err != nil {
			return nil, errors.Wrapf(err, "frame %d", k)
		}
		if frame.C, err = rr.points(nc, FrameEMC); err != nil {
			return nil, errors.Wrapf(err, "frame %d", k)
		}
		readings.Frames = append(readings.Frames, frame)
	}
	return readings, nil
}

// EMPivot holds the EM probe marker positions for every frame of a pivot recording.
type EMPivot struct {
	Name   string
	Frames [][]spatialmath.Point
}

// ReadEMPivot reads a "NG, Nframes, name" record.
func ReadEMPivot(r io.Reader) (*EMPivot, error) {
	rr, err := newRecordReader(r)
	if err != nil {
		return nil, err
	}
	counts, name, err := rr.header(2)
	if err != nil {
		return nil, err
	}
	ng, nframes := counts[0], counts[1]
	piv := &EMPivot{Name: name}
	for k := 0; k < nframes; k++ {
		g, err := rr.points(ng, FrameEMProbe)
		if err != nil {
			return nil, errors.Wrapf(err, "frame %d", k)
		}
		piv.Frames = append(piv.Frames, g)
	}
	return piv, nil
}

// OptPivotFrame is one frame of an optical pivot recording.
type OptPivotFrame struct {
	// D are the optical markers on the EM base.
	D []spatialmath.Point
	// H are the optical markers on the probe.
	H []spatialmath.Point
}

// OptPivot holds every frame of an optical pivot recording.
type OptPivot struct {
	Name   string
	Frames []OptPivotFrame
}

// ReadOptPivot reads a "ND, NH, Nframes, name" record.
func ReadOptPivot(r io.Reader) (*OptPivot, error) {
	rr, err := newRecordReader(r)
	if err != nil {
		return nil, err
	}
	counts, name, err := rr.header(3)
	if err != nil {
		return nil, err
	}
	nd, nh, nframes := counts[0], counts[1], counts[2]
	piv := &OptPivot{Name: name}
	for k := 0; k < nframes; k++ {
		var frame OptPivotFrame
		if frame.D, err = rr.points(nd, FrameOptPivotBaseLEDs); err != nil {
			return nil, errors.Wrapf(err, "frame %d", k)
		}
		if frame.H, err = rr.points(nh, FrameOptPivotProbeLEDs); err != nil {
			return nil, errors.Wrapf(err, "frame %d", k)
		}
		piv.Frames = append(piv.Frames, frame)
	}
	return piv, nil
}

// ReadCalBodyFile opens path and reads a calibration body from it.
func ReadCalBodyFile(path string) (*CalBody, error) {
	var body *CalBody
	err := withFile(path, func(r io.Reader) (err error) {
		body, err = ReadCalBody(r)
		return err
	})
	return body, err
}

// ReadCalReadingsFile opens path and reads calibration readings for body from it.
func ReadCalReadingsFile(path string, body *CalBody) (*CalReadings, error) {
	var readings *CalReadings
	err := withFile(path, func(r io.Reader) (err error) {
		readings, err = ReadCalReadings(r, body)
		return err
	})
	return readings, err
}

// ReadEMPivotFile opens path and reads an EM pivot recording from it.
func ReadEMPivotFile(path string) (*EMPivot, error) {
	var piv *EMPivot
	err := withFile(path, func(r io.Reader) (err error) {
		piv, err = ReadEMPivot(r)
		return err
	})
	return piv, err
}

// ReadOptPivotFile opens path and reads an optical pivot recording from it.
func ReadOptPivotFile(path string) (*OptPivot, error) {
	var piv *OptPivot
	err := withFile(path, func(r io.Reader) (err error) {
		piv, err = ReadOptPivot(r)
		return err
	})
	return piv, err
}

func withFile(path string, f func(io.Reader) error) error {
	//nolint:gosec
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = file.Close()
	}()
	return errors.Wrapf(f(file), "reading %s", path)
}
