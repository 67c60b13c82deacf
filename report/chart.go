// Package report renders the cross-validation summary shipped with a
// trained model.
package report

import (
	"bytes"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/YuminosukeSato/bikeshare/pkg/errors"
)

// ChartFileName is the artifact-relative location of the CV chart.
const ChartFileName = "cv_rmse.png"

// Chart size.
var (
	ChartWidth  = 6 * vg.Inch
	ChartHeight = 4 * vg.Inch
)

// CVSummary is what the chart shows: one bar per grid candidate with its
// fold metrics scattered over it.
type CVSummary struct {
	Labels      []string
	AvgMetrics  []float64
	FoldMetrics [][]float64
	BestIndex   int
	Metric      string
}

func (s CVSummary) validate() error {
	if len(s.AvgMetrics) == 0 {
		return errors.NewValueError("report.CVChart", "no candidates to plot")
	}
	if len(s.Labels) != len(s.AvgMetrics) {
		return errors.NewDimensionError("report.CVChart", len(s.AvgMetrics), len(s.Labels), 0)
	}
	if len(s.FoldMetrics) != 0 && len(s.FoldMetrics) != len(s.AvgMetrics) {
		return errors.NewDimensionError("report.CVChart", len(s.AvgMetrics), len(s.FoldMetrics), 0)
	}
	if s.BestIndex < 0 || s.BestIndex >= len(s.AvgMetrics) {
		return errors.NewValidationError("best_index", "out of range", s.BestIndex)
	}
	return nil
}

// CVChart renders s as a PNG image.
func CVChart(s CVSummary) ([]byte, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	metric := s.Metric
	if metric == "" {
		metric = "rmse"
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Cross-validated %s per candidate", metric)
	p.Y.Label.Text = metric
	p.Y.Min = 0

	bars, err := plotter.NewBarChart(plotter.Values(s.AvgMetrics), vg.Points(28))
	if err != nil {
		return nil, errors.Wrap(err, "bar chart")
	}
	bars.Color = color.Gray{Y: 180}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)

	best := make(plotter.Values, len(s.AvgMetrics))
	best[s.BestIndex] = s.AvgMetrics[s.BestIndex]
	highlight, err := plotter.NewBarChart(best, vg.Points(28))
	if err != nil {
		return nil, errors.Wrap(err, "best bar")
	}
	highlight.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	highlight.LineStyle.Width = vg.Length(0)
	p.Add(highlight)

	var pts plotter.XYs
	for c, folds := range s.FoldMetrics {
		for _, m := range folds {
			pts = append(pts, plotter.XY{X: float64(c), Y: m})
		}
	}
	if len(pts) > 0 {
		scatter, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, errors.Wrap(err, "fold scatter")
		}
		scatter.GlyphStyle.Shape = draw.CircleGlyph{}
		scatter.GlyphStyle.Radius = vg.Points(2)
		scatter.GlyphStyle.Color = color.Black
		p.Add(scatter)
	}
	p.NominalX(s.Labels...)

	wt, err := p.WriterTo(ChartWidth, ChartHeight, "png")
	if err != nil {
		return nil, errors.Wrap(err, "render chart")
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, errors.Wrap(err, "encode chart")
	}
	return buf.Bytes(), nil
}
