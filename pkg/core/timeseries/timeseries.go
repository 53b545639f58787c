// Package timeseries turns stored metric observations into ordered series.
package timeseries

import (
	"sort"

	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/models"
)

// Build sorts observations ascending by date and collapses duplicate dates.
// For a shared date the observation with the latest FiledAt survives; on a tie
// the one appearing last in obs wins.
func Build(obs []models.FinancialMetric) []models.DataPoint {
	if len(obs) == 0 {
		return []models.DataPoint{}
	}

	byDate := make(map[int64]models.FinancialMetric, len(obs))
	for _, m := range obs {
		key := m.Date.Unix()
		cur, ok := byDate[key]
		if !ok || !m.FiledAt.Before(cur.FiledAt) {
			byDate[key] = m
		}
	}

	points := make([]models.DataPoint, 0, len(byDate))
	for _, m := range byDate {
		points = append(points, models.DataPoint{Date: m.Date, Value: m.Value})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points
}

// Latest returns the observation with the greatest date (ties: latest filed).
func Latest(obs []models.FinancialMetric) (models.FinancialMetric, bool) {
	if len(obs) == 0 {
		return models.FinancialMetric{}, false
	}
	best := obs[0]
	for _, m := range obs[1:] {
		if m.Date.After(best.Date) || (m.Date.Equal(best.Date) && !m.FiledAt.Before(best.FiledAt)) {
			best = m
		}
	}
	return best, true
}

// Values extracts the values of a series in order.
func Values(points []models.DataPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out
}
