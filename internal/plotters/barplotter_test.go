package plotters

import (
	"bytes"
	"errors"
	"image/png"
	"testing"

	"expensedash/internal/core"
)

func TestBarChartPNG(t *testing.T) {
	entries := []core.MonthlySummaryEntry{
		{Month: core.NewDate(2024, 1, 1), Total: core.Money{Cents: 12050}},
		{Month: core.NewDate(2024, 2, 1), Total: core.Money{Cents: 4000}},
	}
	img, err := BarChartPNG(core.BarChart(entries, core.DefaultLocale()))
	if err != nil {
		t.Fatalf("BarChartPNG() error = %v", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		t.Errorf("image size = %dx%d", cfg.Width, cfg.Height)
	}
}

func TestBarChartPNGEmpty(t *testing.T) {
	if _, err := BarChartPNG(core.Chart{Label: core.BarChartLabel}); !errors.Is(err, ErrNoData) {
		t.Errorf("BarChartPNG(empty) error = %v, want ErrNoData", err)
	}
}
