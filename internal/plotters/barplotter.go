// Package plotters renders dashboard charts to images.
package plotters

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"expensedash/internal/core"
)

const (
	monthlyGraphHeight vg.Length = 3 * vg.Inch
	monthlyGraphWidth  vg.Length = 6 * vg.Inch
)

// ErrNoData is returned for a chart without points.
var ErrNoData = errors.New("plotters: chart has no points")

var barColor = color.RGBA{R: 78, G: 121, B: 167, A: 255}

// BarChartPNG draws chart as a vertical bar chart, one bar per point in
// order, labelled with the point labels.
func BarChartPNG(chart core.Chart) ([]byte, error) {
	if len(chart.Points) == 0 {
		return nil, ErrNoData
	}

	p := plot.New()
	p.Title.Text = chart.Label
	p.Y.Label.Text = "Total (" + core.CurrencySymbol + ")"
	p.Y.Min = 0

	values := make(plotter.Values, len(chart.Points))
	for i, pt := range chart.Points {
		values[i] = pt.Value
	}

	barWidth := monthlyGraphWidth / vg.Length(len(values)+1) * 0.6
	if barWidth > vg.Points(40) {
		barWidth = vg.Points(40)
	}
	bars, err := plotter.NewBarChart(values, barWidth)
	if err != nil {
		return nil, fmt.Errorf("new bar chart: %w", err)
	}
	bars.Color = barColor
	bars.LineStyle.Width = 0

	p.Add(bars, plotter.NewGrid())
	p.NominalX(chart.Labels()...)

	wt, err := p.WriterTo(monthlyGraphWidth, monthlyGraphHeight, "png")
	if err != nil {
		return nil, fmt.Errorf("render bar chart: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode bar chart: %w", err)
	}
	return buf.Bytes(), nil
}
