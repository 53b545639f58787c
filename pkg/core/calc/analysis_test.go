package calc

import (
	"math"
	"testing"
	"time"

	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/models"
)

func series(values ...float64) []models.DataPoint {
	out := make([]models.DataPoint, len(values))
	for i, v := range values {
		out[i] = models.DataPoint{Date: time.Date(2015+i, 12, 31, 0, 0, 0, 0, time.UTC), Value: v}
	}
	return out
}

func TestGrowthRate(t *testing.T) {
	r, ok := GrowthRate(110, 100)
	if !ok || math.Abs(r-0.10) > 1e-9 {
		t.Errorf("Expected 0.10, got %f (ok=%v)", r, ok)
	}

	// Negative base: growth is measured against |prior|.
	r, ok = GrowthRate(-50, -100)
	if !ok || math.Abs(r-0.5) > 1e-9 {
		t.Errorf("Expected 0.5 for -100 -> -50, got %f", r)
	}

	if _, ok := GrowthRate(10, 0); ok {
		t.Errorf("Expected undefined growth for zero prior")
	}
}

func TestGrowthRatesLength(t *testing.T) {
	for n := 0; n <= 6; n++ {
		vals := make([]float64, n)
		for i := range vals {
			vals[i] = float64(i + 1)
		}
		got := GrowthRates(series(vals...))
		want := n - 1
		if want < 0 {
			want = 0
		}
		if len(got) != want {
			t.Errorf("n=%d: expected %d growth points, got %d", n, want, len(got))
		}
	}
}

func TestGrowthRatesZeroPriorIsNil(t *testing.T) {
	got := GrowthRates(series(100, 0, 50, 75))
	if len(got) != 3 {
		t.Fatalf("Expected 3 points, got %d", len(got))
	}
	if got[0].Rate == nil || math.Abs(*got[0].Rate+1) > 1e-9 {
		t.Errorf("Expected -1.0 for 100 -> 0, got %v", got[0].Rate)
	}
	if got[1].Rate != nil {
		t.Errorf("Expected nil growth after a zero value, got %f", *got[1].Rate)
	}
	if got[2].Rate == nil || math.Abs(*got[2].Rate-0.5) > 1e-9 {
		t.Errorf("Expected 0.5, got %v", got[2].Rate)
	}
	if got[2].Date != "2018-12-31" {
		t.Errorf("Expected date of the later point, got %s", got[2].Date)
	}
}

func TestTrailingGrowth(t *testing.T) {
	if TrailingGrowth(series(1)) != nil {
		t.Errorf("Expected nil for single point")
	}
	if TrailingGrowth(series(5, 0, 0)) != nil {
		t.Errorf("Expected nil when previous value is zero")
	}
	g := TrailingGrowth(series(1, 100, 120))
	if g == nil || math.Abs(*g-0.2) > 1e-9 {
		t.Errorf("Expected 0.2, got %v", g)
	}
}

func TestCAGR(t *testing.T) {
	v, ok := CAGR(100, 121, 2)
	if !ok || math.Abs(v-0.1) > 1e-9 {
		t.Errorf("CAGR(100, 121, 2) expected 0.1, got %f", v)
	}
	if _, ok := CAGR(0, 121, 2); ok {
		t.Errorf("Expected no CAGR for zero start")
	}
	if _, ok := CAGR(100, -5, 2); ok {
		t.Errorf("Expected no CAGR for negative end")
	}
	if _, ok := CAGR(100, 121, 0); ok {
		t.Errorf("Expected no CAGR for zero years")
	}
}

func TestSeriesCAGRWindow(t *testing.T) {
	// Fewer points than requested years: use the whole series.
	v, ok := SeriesCAGR(series(100, 110, 121), 5)
	if !ok || math.Abs(v-0.1) > 1e-9 {
		t.Errorf("Expected 0.1 over 2 periods, got %f", v)
	}

	// More points than requested: start is `years` positions before the end.
	v, ok = SeriesCAGR(series(1, 2, 100, 110, 121), 2)
	if !ok || math.Abs(v-0.1) > 1e-9 {
		t.Errorf("Expected 0.1 over the last 2 periods, got %f", v)
	}

	// Default horizon is five years: the start is index 2 of 8 points.
	v, ok = SeriesCAGR(series(1, 1, 0, 5, 5, 5, 5, 200), 0)
	if ok {
		t.Errorf("Expected no CAGR when the 5-year start is zero, got %f", v)
	}
	v, ok = SeriesCAGR(series(0, 0, 100, 5, 5, 5, 5, 100), 0)
	if !ok || math.Abs(v) > 1e-9 {
		t.Errorf("Expected 0 CAGR for a flat 5-year window, got %f", v)
	}

	if _, ok := SeriesCAGR(series(100), 5); ok {
		t.Errorf("Expected no CAGR for a single point")
	}
	if SeriesCAGRPtr(series(-1, 10), 1) != nil {
		t.Errorf("Expected nil CAGR for a negative start")
	}
}
