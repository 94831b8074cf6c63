package calibration

import (
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// PlotFrameErrors saves a line plot of each frame's mean, RMS and maximum marker distance to
// path. The image format follows the file extension, e.g. .png or .svg.
func PlotFrameErrors(es *ErrorStats, title, path string) error {
	if es == nil || len(es.Frames) == 0 {
		return errors.New("no frame errors to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Distance (mm)"

	series := []struct {
		name  string
		value func(FrameError) float64
	}{
		{"mean", func(fe FrameError) float64 { return fe.Mean }},
		{"rms", func(fe FrameError) float64 { return fe.RMS }},
		{"max", func(fe FrameError) float64 { return fe.Max }},
	}
	for i, s := range series {
		pts := make(plotter.XYs, len(es.Frames))
		for k, fe := range es.Frames {
			pts[k] = plotter.XY{X: float64(k), Y: s.value(fe)}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return errors.Wrapf(err, "%s line", s.name)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(s.name, line)
	}
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	return p.Save(8*vg.Inch, 4*vg.Inch, path)
}
