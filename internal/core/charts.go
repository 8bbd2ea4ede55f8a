package core

import (
	"fmt"
	"strings"
)

const (
	PieChartLabel = "By Category"
	BarChartLabel = "Monthly Total"
)

// chartPalette cycles for pie slices and legend swatches.
var chartPalette = []string{"#4e79a7", "#f28e2b", "#e15759", "#76b7b2", "#59a14f", "#edc948", "#b07aa1", "#ff9da7"}

type (
	ChartPoint struct {
		Label   string
		Value   float64
		Display string
		// Percent is the share of the chart total (pie) or of the largest
		// value (bar), in [0, 100].
		Percent float64
		Color   string
	}

	Chart struct {
		Label  string
		Points []ChartPoint
	}
)

// PieChart projects the category summary into label/value pairs.
func PieChart(s CategorySummary) Chart {
	points := make([]ChartPoint, 0, len(s.ByCategory))
	total := s.SumByCategory()
	for i, e := range s.ByCategory {
		points = append(points, ChartPoint{
			Label:   e.Category,
			Value:   e.Total.Float(),
			Display: FormatCurrency(e.Total),
			Percent: share(e.Total.Cents, total.Cents),
			Color:   chartPalette[i%len(chartPalette)],
		})
	}
	return Chart{Label: PieChartLabel, Points: points}
}

// BarChart projects the monthly summary into label/value pairs with month
// labels in the viewer's locale.
func BarChart(entries []MonthlySummaryEntry, l Locale) Chart {
	points := make([]ChartPoint, 0, len(entries))
	var peak int64
	for _, e := range entries {
		if e.Total.Cents > peak {
			peak = e.Total.Cents
		}
	}
	for i, e := range entries {
		points = append(points, ChartPoint{
			Label:   MonthLabel(e.Month, l),
			Value:   e.Total.Float(),
			Display: FormatCurrency(e.Total),
			Percent: share(e.Total.Cents, peak),
			Color:   chartPalette[i%len(chartPalette)],
		})
	}
	return Chart{Label: BarChartLabel, Points: points}
}

// Labels returns the point labels in order.
func (c Chart) Labels() []string {
	out := make([]string, len(c.Points))
	for i, p := range c.Points {
		out[i] = p.Label
	}
	return out
}

// Values returns the point values in order.
func (c Chart) Values() []float64 {
	out := make([]float64, len(c.Points))
	for i, p := range c.Points {
		out[i] = p.Value
	}
	return out
}

// ConicGradient renders the pie as a CSS conic-gradient. An empty chart
// yields a flat grey disc.
func (c Chart) ConicGradient() string {
	var b strings.Builder
	var from float64
	n := 0
	for _, p := range c.Points {
		if p.Percent <= 0 {
			continue
		}
		to := from + p.Percent
		if n > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s %.2f%% %.2f%%", p.Color, from, to)
		from = to
		n++
	}
	if n == 0 {
		return "conic-gradient(#e0e0e0 0% 100%)"
	}
	return "conic-gradient(" + b.String() + ")"
}

func share(part, whole int64) float64 {
	if whole <= 0 || part <= 0 {
		return 0
	}
	return float64(part) * 100 / float64(whole)
}
