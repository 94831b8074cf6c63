package calibration

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/emguan/CIS-PA2/spatialmath"
)

// Summary renders one row per dataset with the C prediction error and both pivot tips.
func Summary(reports []*DatasetReport) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Dataset", "Frames", "Mean error", "RMS error", "Degenerate", "EM post", "Optical post"})
	for _, r := range reports {
		if r == nil {
			continue
		}
		row := table.Row{r.Name, "", "", "", "", "-", "-"}
		if r.Expected != nil {
			row[1] = len(r.Expected.Frames)
			row[4] = len(r.Expected.Degenerate)
		}
		if r.Errors != nil {
			row[2] = fmt.Sprintf("%.4f", r.Errors.MeanOfMeans)
			row[3] = fmt.Sprintf("%.4f", r.Errors.MeanOfRMS)
		}
		if r.EMPivot != nil {
			row[5] = formatPoint(r.EMPivot.Post)
		}
		if r.OptPivot != nil {
			row[6] = formatPoint(r.OptPivot.Post)
		}
		t.AppendRow(row)
	}
	return t.Render()
}

func formatPoint(p spatialmath.Point) string {
	return fmt.Sprintf("X:%.2f, Y:%.2f, Z:%.2f", p.X(), p.Y(), p.Z())
}
