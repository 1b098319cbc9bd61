package report

import (
	"fmt"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/weiihann/framebench/harness"
)

const (
	barWidth    = 18
	chartHeight = 4 * vg.Inch
)

// Chart renders a grouped bar chart of median seconds per operation, one
// bar per engine, to path. The image format follows the file extension
// (png, svg, pdf, jpg, eps, tif). Pairs without a measurement are drawn
// at zero and the engine's legend entry lists them.
func Chart(path string, res *harness.Result) error {
	if res == nil || len(res.Engines) == 0 {
		return fmt.Errorf("no results to chart")
	}

	sums := lookup(Summarize(res))

	p := plot.New()
	p.Title.Text = "Dataframe operation time"
	p.Y.Label.Text = "seconds"
	if res.Runs > 1 {
		p.Y.Label.Text = "seconds (median)"
	}
	p.Legend.Top = true

	w := vg.Points(barWidth)

	for i, name := range res.Engines {
		values := make(plotter.Values, len(res.Operations))

		var missing []string
		for j, op := range res.Operations {
			s := sums[pairKey{name, op}]
			if !s.Defined() {
				missing = append(missing, string(op))
				continue
			}
			values[j] = s.Median
		}

		bars, err := plotter.NewBarChart(values, w)
		if err != nil {
			return fmt.Errorf("bars for %s: %w", name, err)
		}

		bars.LineStyle.Width = vg.Length(0)
		bars.Color = plotutil.Color(i)
		bars.Offset = vg.Length(float64(i)-float64(len(res.Engines)-1)/2) * w

		label := name
		if len(missing) > 0 {
			label = fmt.Sprintf("%s (missing: %s)", name, strings.Join(missing, ", "))
		}

		p.Add(bars)
		p.Legend.Add(label, bars)
	}

	ops := make([]string, len(res.Operations))
	for i, op := range res.Operations {
		ops[i] = string(op)
	}
	p.NominalX(ops...)

	width := vg.Length(len(res.Operations)*(len(res.Engines)+1)) * w
	width = max(width, 6*vg.Inch)

	if err := p.Save(width, chartHeight, path); err != nil {
		return fmt.Errorf("save chart %s: %w", path, err)
	}

	return nil
}
