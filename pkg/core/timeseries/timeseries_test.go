package timeseries

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBuildSortsAscending(t *testing.T) {
	obs := []models.FinancialMetric{
		{Date: day(2023, 12, 31), Value: 3},
		{Date: day(2021, 12, 31), Value: 1},
		{Date: day(2022, 12, 31), Value: 2},
	}
	pts := Build(obs)
	require.Len(t, pts, 3)
	assert.Equal(t, []float64{1, 2, 3}, Values(pts))
	for i := 1; i < len(pts); i++ {
		assert.True(t, pts[i-1].Date.Before(pts[i].Date))
	}
}

func TestBuildDedupLatestFiledWins(t *testing.T) {
	obs := []models.FinancialMetric{
		{Date: day(2022, 12, 31), Value: 100, FiledAt: day(2023, 2, 1)},
		{Date: day(2022, 12, 31), Value: 105, FiledAt: day(2024, 2, 1)}, // restated
		{Date: day(2022, 12, 31), Value: 90, FiledAt: day(2023, 1, 1)},
	}
	pts := Build(obs)
	require.Len(t, pts, 1)
	assert.Equal(t, 105.0, pts[0].Value)
}

func TestBuildDedupTieLastWriteWins(t *testing.T) {
	obs := []models.FinancialMetric{
		{Date: day(2022, 12, 31), Value: 1},
		{Date: day(2022, 12, 31), Value: 2},
	}
	pts := Build(obs)
	require.Len(t, pts, 1)
	assert.Equal(t, 2.0, pts[0].Value)
}

func TestBuildEmpty(t *testing.T) {
	pts := Build(nil)
	assert.NotNil(t, pts)
	assert.Empty(t, pts)
}

func TestLatest(t *testing.T) {
	_, ok := Latest(nil)
	assert.False(t, ok)

	m, ok := Latest([]models.FinancialMetric{
		{Date: day(2021, 12, 31), Value: 1},
		{Date: day(2023, 12, 31), Value: 3, FiledAt: day(2024, 1, 1)},
		{Date: day(2023, 12, 31), Value: 4, FiledAt: day(2024, 3, 1)},
		{Date: day(2022, 12, 31), Value: 2},
	})
	require.True(t, ok)
	assert.Equal(t, 4.0, m.Value)
}
