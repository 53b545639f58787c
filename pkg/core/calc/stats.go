package calc

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary holds descriptive statistics of a sample. Std is the population
// standard deviation.
type Summary struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Std    float64 `json:"std"`
	Count  int     `json:"count"`
}

// Describe summarizes values. ok is false for an empty sample.
func Describe(values []float64) (Summary, bool) {
	if len(values) == 0 {
		return Summary{}, false
	}
	mean, std := stat.PopMeanStdDev(values, nil)
	return Summary{
		Mean:   mean,
		Median: median(values),
		Min:    floats.Min(values),
		Max:    floats.Max(values),
		Std:    std,
		Count:  len(values),
	}, true
}

// Map renders the summary with the keys used in API responses.
func (s Summary) Map() map[string]float64 {
	return map[string]float64{
		"mean":   s.Mean,
		"median": s.Median,
		"min":    s.Min,
		"max":    s.Max,
		"std":    s.Std,
		"count":  float64(s.Count),
	}
}

// median averages the two middle values for even-sized samples.
// stat.Quantile uses the lower value instead.
func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
