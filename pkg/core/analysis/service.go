// Package analysis answers dashboard questions from stored metrics: time
// series, growth, ratios and cross-company comparisons. Unknown companies or
// metrics produce empty results and a log line, never an error.
package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/calc"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/logging"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/store"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/timeseries"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/models"
)

// Service computes analyses over the company and metric repositories.
type Service struct {
	companies store.CompanyRepository
	metrics   store.MetricRepository
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates an analysis service.
func NewService(companies store.CompanyRepository, metrics store.MetricRepository, opts ...Option) *Service {
	s := &Service{
		companies: companies,
		metrics:   metrics,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func log() *logrus.Entry {
	return logging.Component("analysis")
}

// company looks up ticker and logs when it is unknown.
func (s *Service) company(ctx context.Context, ticker string) (*models.Company, bool) {
	c, err := s.companies.GetByTicker(ctx, ticker)
	if err != nil {
		entry := log().WithField("ticker", ticker)
		if errors.Is(err, store.ErrNotFound) {
			entry.Warn("Company not found")
		} else {
			entry.WithError(err).Error("Company lookup failed")
		}
		return nil, false
	}
	return c, true
}

// =============================================================================
// TIME SERIES & GROWTH
// =============================================================================

// MetricTimeSeries returns the ascending, date-unique series of one metric.
func (s *Service) MetricTimeSeries(ctx context.Context, ticker, metric string, period models.MetricPeriod) []models.DataPoint {
	c, ok := s.company(ctx, ticker)
	if !ok {
		return []models.DataPoint{}
	}
	points, err := s.metrics.GetTimeSeries(ctx, c.Ticker, metric, period)
	if err != nil {
		log().WithFields(logrus.Fields{"ticker": c.Ticker, "metric": metric}).WithError(err).Error("Time series lookup failed")
		return []models.DataPoint{}
	}
	if len(points) == 0 {
		log().WithFields(logrus.Fields{"ticker": c.Ticker, "metric": metric, "period": period}).Debug("No observations")
	}
	return points
}

// GrowthRates returns period-over-period growth for one metric.
func (s *Service) GrowthRates(ctx context.Context, ticker, metric string, period models.MetricPeriod) []calc.GrowthPoint {
	return calc.GrowthRates(s.MetricTimeSeries(ctx, ticker, metric, period))
}

// CAGR returns the compound annual growth of one metric over the last years
// annual observations (fewer when less history exists). years <= 0 means
// calc.DefaultCAGRYears.
func (s *Service) CAGR(ctx context.Context, ticker, metric string, years int) *float64 {
	return calc.SeriesCAGRPtr(s.MetricTimeSeries(ctx, ticker, metric, models.PeriodAnnual), years)
}

// AnalyzeMetric bundles the series, growth rates and (for annual data) CAGR.
func (s *Service) AnalyzeMetric(ctx context.Context, ticker, metric string, period models.MetricPeriod) MetricAnalysis {
	series := s.MetricTimeSeries(ctx, ticker, metric, period)
	out := MetricAnalysis{
		Ticker:      models.NormalizeTicker(ticker),
		MetricName:  metric,
		Period:      string(period),
		TimeSeries:  series,
		GrowthRates: calc.GrowthRates(series),
	}
	if period == models.PeriodAnnual {
		out.CAGR = calc.SeriesCAGRPtr(series, calc.DefaultCAGRYears)
	}
	return out
}

// =============================================================================
// RATIOS
// =============================================================================

// snapshot collects the latest annual value of every metric of a company and
// the date each value refers to.
func (s *Service) snapshot(ctx context.Context, ticker string) (calc.Snapshot, map[string]time.Time) {
	obs, err := s.metrics.FindByCompanyAndMetric(ctx, ticker, "", models.PeriodAnnual)
	if err != nil {
		log().WithField("ticker", ticker).WithError(err).Error("Metric lookup failed")
		return calc.Snapshot{}, map[string]time.Time{}
	}
	byName := make(map[string][]models.FinancialMetric)
	for _, m := range obs {
		byName[m.Name] = append(byName[m.Name], m)
	}
	snap := make(calc.Snapshot, len(byName))
	dates := make(map[string]time.Time, len(byName))
	for name, ms := range byName {
		latest, _ := timeseries.Latest(ms)
		snap[name] = latest.Value
		dates[name] = latest.Date
	}
	return snap, dates
}

// FinancialRatios computes the ratio map from the latest annual values.
// Ratios whose inputs are missing or whose denominator is zero are absent.
func (s *Service) FinancialRatios(ctx context.Context, ticker string) map[string]float64 {
	c, ok := s.company(ctx, ticker)
	if !ok {
		return map[string]float64{}
	}
	snap, _ := s.snapshot(ctx, c.Ticker)
	return calc.ComputeRatios(snap)
}

// RatioReport builds the categorized ratio report. price, when non-nil, adds
// the valuation category. It returns nil for an unknown company.
func (s *Service) RatioReport(ctx context.Context, ticker string, price *float64) *RatioReport {
	c, ok := s.company(ctx, ticker)
	if !ok {
		return nil
	}
	snap, dates := s.snapshot(ctx, c.Ticker)
	yearOf := func(metric string) *int {
		d, ok := dates[metric]
		if !ok {
			return nil
		}
		y := d.Year()
		return &y
	}
	entry := func(r calc.Ratio, v float64, ok bool) RatioEntry {
		e := RatioEntry{
			Description:    r.Description,
			Formula:        r.Formula,
			Interpretation: r.Interpretation,
		}
		if len(r.Inputs) > 0 {
			e.Year = yearOf(r.Inputs[0])
		}
		if ok {
			e.Value = &v
		}
		return e
	}

	report := &RatioReport{
		Ticker:        c.Ticker,
		Name:          c.Name,
		Liquidity:     map[string]RatioEntry{},
		Solvency:      map[string]RatioEntry{},
		Profitability: map[string]RatioEntry{},
		Metadata:      ReportMetadata{CalculatedAt: s.now()},
	}
	for _, r := range calc.Ratios() {
		v, ok := r.Compute(snap)
		if cat := report.Category(r.Category); cat != nil {
			cat[r.ReportKey] = entry(r, v, ok)
		}
	}
	if price != nil {
		v, ok := calc.PE(snap, *price)
		report.Valuation = map[string]RatioEntry{
			calc.PriceToEarnings.ReportKey: entry(calc.PriceToEarnings, v, ok),
		}
	}

	report.Metadata.DataYear = yearOf(calc.Revenue)
	if report.Metadata.DataYear == nil {
		report.Metadata.DataYear = yearOf(calc.TotalAssets)
	}
	return report
}

// =============================================================================
// CROSS-COMPANY
// =============================================================================

// CompareCompanies compares one annual metric across tickers. Tickers with
// no company or no data are skipped.
func (s *Service) CompareCompanies(ctx context.Context, tickers []string, metric string) map[string]Comparison {
	out := make(map[string]Comparison, len(tickers))
	for _, t := range tickers {
		ticker := models.NormalizeTicker(t)
		if ticker == "" {
			continue
		}
		c, ok := s.company(ctx, ticker)
		if !ok {
			continue
		}
		series := s.MetricTimeSeries(ctx, c.Ticker, metric, models.PeriodAnnual)
		if len(series) == 0 {
			log().WithFields(logrus.Fields{"ticker": c.Ticker, "metric": metric}).Warn("No data to compare")
			continue
		}
		last := series[len(series)-1]
		out[c.Ticker] = Comparison{
			CompanyName: c.Name,
			LatestValue: last.Value,
			LatestDate:  last.Date.Format(models.DateLayout),
			GrowthRate:  calc.TrailingGrowth(series),
			CAGR:        calc.SeriesCAGRPtr(series, calc.DefaultCAGRYears),
			TimeSeries:  series,
		}
	}
	return out
}

// SectorAverages summarizes the latest annual value of metric across the
// companies of a sector (mean, median, min, max, population std, count).
// It returns an empty map when no company in the sector reports the metric.
func (s *Service) SectorAverages(ctx context.Context, sector, metric string) map[string]float64 {
	companies, err := s.companies.FindBySector(ctx, sector)
	if err != nil {
		log().WithField("sector", sector).WithError(err).Error("Sector lookup failed")
		return map[string]float64{}
	}
	if len(companies) == 0 {
		log().WithField("sector", sector).Warn("No companies found in sector")
		return map[string]float64{}
	}

	values := make([]float64, 0, len(companies))
	for _, c := range companies {
		obs, err := s.metrics.FindByCompanyAndMetric(ctx, c.Ticker, metric, models.PeriodAnnual)
		if err != nil {
			log().WithField("ticker", c.Ticker).WithError(err).Warn("Skipping company")
			continue
		}
		if latest, ok := timeseries.Latest(obs); ok {
			values = append(values, latest.Value)
		}
	}

	summary, ok := calc.Describe(values)
	if !ok {
		return map[string]float64{}
	}
	return summary.Map()
}

// CompareRatioReports builds a ratio report per ticker, restricted to the
// given categories (all when empty). Unknown tickers carry an error message
// instead of a report.
func (s *Service) CompareRatioReports(ctx context.Context, tickers []string, categories []calc.Category) map[string]RatioComparison {
	out := make(map[string]RatioComparison, len(tickers))
	for _, t := range tickers {
		ticker := models.NormalizeTicker(t)
		if ticker == "" {
			continue
		}
		report := s.RatioReport(ctx, ticker, nil)
		if report == nil {
			out[ticker] = RatioComparison{Error: "company not found"}
			continue
		}
		report.Only(categories...)
		out[ticker] = RatioComparison{Name: report.Name, Ratios: report}
	}
	return out
}
