// Package calc holds the pure financial arithmetic: growth rates, CAGR,
// ratio definitions and descriptive statistics. Nothing here does I/O.
package calc

import (
	"math"

	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/models"
)

// DefaultCAGRYears is the horizon used when the caller does not ask for one.
const DefaultCAGRYears = 5

// =============================================================================
// GROWTH
// =============================================================================

// GrowthRate is (current - prior) / |prior|. ok is false when prior is zero,
// where the rate is undefined.
func GrowthRate(current, prior float64) (rate float64, ok bool) {
	if prior == 0 {
		return 0, false
	}
	return (current - prior) / math.Abs(prior), true
}

// GrowthPoint is the growth from the previous point to Date. Rate is nil when
// the previous value was zero.
type GrowthPoint struct {
	Date  string   `json:"date"`
	Rate  *float64 `json:"growth_rate"`
	Value float64  `json:"value"`
}

// GrowthRates computes period-over-period growth for a series sorted
// ascending by date. The result always has len(series)-1 entries (none for
// fewer than two points).
func GrowthRates(series []models.DataPoint) []GrowthPoint {
	if len(series) < 2 {
		return []GrowthPoint{}
	}
	out := make([]GrowthPoint, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		gp := GrowthPoint{
			Date:  series[i].Date.Format(models.DateLayout),
			Value: series[i].Value,
		}
		if r, ok := GrowthRate(series[i].Value, series[i-1].Value); ok {
			gp.Rate = &r
		}
		out = append(out, gp)
	}
	return out
}

// TrailingGrowth is the growth between the last two points of a series.
func TrailingGrowth(series []models.DataPoint) *float64 {
	n := len(series)
	if n < 2 {
		return nil
	}
	if r, ok := GrowthRate(series[n-1].Value, series[n-2].Value); ok {
		return &r
	}
	return nil
}

// =============================================================================
// CAGR
// =============================================================================

// CAGR is (end/start)^(1/years) - 1. ok is false when start or end is not
// positive or years is not positive.
func CAGR(start, end, years float64) (float64, bool) {
	if start <= 0 || end <= 0 || years <= 0 {
		return 0, false
	}
	v := math.Pow(end/start, 1/years) - 1
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// SeriesCAGR computes CAGR over the last min(years, len-1) periods of an
// ascending annual series. years <= 0 means DefaultCAGRYears.
func SeriesCAGR(series []models.DataPoint, years int) (float64, bool) {
	n := len(series)
	if n < 2 {
		return 0, false
	}
	if years <= 0 {
		years = DefaultCAGRYears
	}
	if years > n-1 {
		years = n - 1
	}
	start := series[n-1-years].Value
	end := series[n-1].Value
	return CAGR(start, end, float64(years))
}

// SeriesCAGRPtr is SeriesCAGR with the not-computable case as nil.
func SeriesCAGRPtr(series []models.DataPoint, years int) *float64 {
	if v, ok := SeriesCAGR(series, years); ok {
		return &v
	}
	return nil
}

// safeDiv reports ok=false for a zero denominator or a non-finite result.
func safeDiv(numerator, denominator float64) (float64, bool) {
	if denominator == 0 {
		return 0, false
	}
	v := numerator / denominator
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
