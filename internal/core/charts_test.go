package core

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPieChart(t *testing.T) {
	s := CategorySummary{
		Total: Money{Cents: 4000},
		ByCategory: []CategorySummaryEntry{
			{Category: "Food", Total: Money{Cents: 3000}},
			{Category: "Transport", Total: Money{Cents: 1000}},
		},
	}
	c := PieChart(s)
	if c.Label != "By Category" {
		t.Fatalf("label = %q", c.Label)
	}
	if diff := cmp.Diff([]string{"Food", "Transport"}, c.Labels()); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{30, 10}, c.Values()); diff != "" {
		t.Errorf("values mismatch (-want +got):\n%s", diff)
	}
	if c.Points[0].Percent != 75 || c.Points[1].Percent != 25 {
		t.Errorf("percentages = %v, %v", c.Points[0].Percent, c.Points[1].Percent)
	}
	g := c.ConicGradient()
	if !strings.HasPrefix(g, "conic-gradient(") || !strings.Contains(g, "75.00% 100.00%") {
		t.Errorf("gradient = %q", g)
	}
}

func TestPieChartEmpty(t *testing.T) {
	c := PieChart(EmptyCategorySummary())
	if len(c.Points) != 0 {
		t.Fatalf("expected no points, got %d", len(c.Points))
	}
	if c.ConicGradient() != "conic-gradient(#e0e0e0 0% 100%)" {
		t.Errorf("gradient = %q", c.ConicGradient())
	}
}

func TestBarChart(t *testing.T) {
	entries := []MonthlySummaryEntry{
		{Month: NewDate(2024, 1, 1), Total: Money{Cents: 5000}},
		{Month: NewDate(2024, 2, 1), Total: Money{Cents: 10000}},
	}
	c := BarChart(entries, DefaultLocale())
	if c.Label != "Monthly Total" {
		t.Fatalf("label = %q", c.Label)
	}
	if diff := cmp.Diff([]string{"Jan 2024", "Feb 2024"}, c.Labels()); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
	if c.Points[0].Percent != 50 || c.Points[1].Percent != 100 {
		t.Errorf("bar widths = %v, %v", c.Points[0].Percent, c.Points[1].Percent)
	}
	if c.Points[1].Display != "₹100.00" {
		t.Errorf("display = %q", c.Points[1].Display)
	}
}

func TestByCategoryTotalMatchesEntries(t *testing.T) {
	s := CategorySummary{
		ByCategory: []CategorySummaryEntry{
			{Category: "Food", Total: Money{Cents: 1250}},
			{Category: "Health", Total: Money{Cents: 99}},
			{Category: "Other", Total: Money{Cents: 1}},
		},
	}
	if got := s.SumByCategory().Cents; got != 1350 {
		t.Fatalf("sum = %d, want 1350", got)
	}
}
