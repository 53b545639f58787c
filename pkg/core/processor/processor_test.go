package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/edgar"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/store"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/telemetry"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/models"
)

type fakeSource struct {
	tickers     []edgar.TickerEntry
	subs        map[string]*edgar.Submissions
	facts       map[string]*edgar.CompanyFacts
	tickerCalls int
	factsErr    error
}

func (f *fakeSource) CompanyTickers(_ context.Context, _ bool) ([]edgar.TickerEntry, error) {
	f.tickerCalls++
	return f.tickers, nil
}

func (f *fakeSource) Submissions(_ context.Context, cik string, _ bool) (*edgar.Submissions, error) {
	s, ok := f.subs[cik]
	if !ok {
		return nil, edgar.ErrNotFound
	}
	return s, nil
}

func (f *fakeSource) CompanyFacts(_ context.Context, cik string, _ bool) (*edgar.CompanyFacts, error) {
	if f.factsErr != nil {
		return nil, f.factsErr
	}
	fc, ok := f.facts[cik]
	if !ok {
		return nil, edgar.ErrNotFound
	}
	return fc, nil
}

const appleCIK = "0000320193"

func appleSubmissions() *edgar.Submissions {
	s := &edgar.Submissions{
		CIK:            "320193",
		Name:           "Apple Inc.",
		SIC:            "3571",
		SICDescription: "Electronic Computers",
		Exchanges:      []string{"Nasdaq"},
		Website:        "https://www.apple.com",
	}
	s.Filings.Recent = edgar.RecentFilings{
		AccessionNumber: []string{"0000320193-23-000106", "0000320193-23-000077", "0000320193-23-000090", "0000320193-22-000108"},
		FilingDate:      []string{"2023-11-03", "2023-08-04", "2023-08-10", "2022-10-28"},
		ReportDate:      []string{"2023-09-30", "2023-07-01", "", "2022-09-24"},
		Form:            []string{"10-K", "10-Q", "8-K", "10-K/A"},
		PrimaryDocument: []string{"aapl-20230930.htm", "aapl-20230701.htm", "ex.htm", "aapl-20220924.htm"},
	}
	return s
}

func appleFacts() *edgar.CompanyFacts {
	return &edgar.CompanyFacts{
		EntityName: "Apple Inc.",
		Facts: map[string]map[string]edgar.Concept{
			"us-gaap": {
				"Revenues": {Units: map[string][]edgar.FactValue{"USD": {
					{Start: "2021-09-26", End: "2022-09-24", Val: 394328, Accn: "0000320193-22-000108", FY: 2022, FP: "FY", Form: "10-K", Filed: "2022-10-28"},
					{Start: "2022-09-25", End: "2023-09-30", Val: 383285, Accn: "0000320193-23-000106", FY: 2023, FP: "FY", Form: "10-K", Filed: "2023-11-03"},
					{Start: "2023-04-02", End: "2023-07-01", Val: 81797, Accn: "0000320193-23-000077", FY: 2023, FP: "Q3", Form: "10-Q", Filed: "2023-08-04"},
				}}},
				"NetIncomeLoss": {Units: map[string][]edgar.FactValue{"USD": {
					{Start: "2022-09-25", End: "2023-09-30", Val: 96995, Accn: "0000320193-23-000106", FY: 2023, FP: "FY", Form: "10-K", Filed: "2023-11-03"},
				}}},
				"Assets": {Units: map[string][]edgar.FactValue{"USD": {
					{End: "2023-09-30", Val: 352583, Accn: "0000320193-23-000106", FY: 2023, FP: "FY", Form: "10-K", Filed: "2023-11-03"},
				}}},
			},
		},
	}
}

func newFixture() (*fakeSource, *store.Repositories) {
	src := &fakeSource{
		tickers: []edgar.TickerEntry{
			{CIK: 320193, Ticker: "AAPL", Title: "Apple Inc."},
			{CIK: 789019, Ticker: "MSFT", Title: "MICROSOFT CORP"},
			{CIK: 0, Ticker: "BAD"},
		},
		subs:  map[string]*edgar.Submissions{appleCIK: appleSubmissions()},
		facts: map[string]*edgar.CompanyFacts{appleCIK: appleFacts()},
	}
	return src, store.NewMemory()
}

func TestSyncCIKTickerMappings(t *testing.T) {
	ctx := context.Background()
	src, repos := newFixture()
	p := New(src, repos)

	n, err := p.SyncCIKTickerMappings(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	m, err := repos.Mappings.GetByTicker(ctx, "msft")
	require.NoError(t, err)
	assert.Equal(t, "0000789019", m.CIK)
	assert.Equal(t, "MICROSOFT CORP", m.CompanyName)
	assert.True(t, m.IsActive)
}

func TestSyncCompany(t *testing.T) {
	ctx := context.Background()
	src, repos := newFixture()
	reg := prometheus.NewRegistry()
	metrics := telemetry.New(reg)
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	p := New(src, repos, WithMetrics(metrics), WithClock(func() time.Time { return now }))

	report, err := p.SyncCompany(ctx, "aapl", false)
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "AAPL", report.Ticker)
	assert.Equal(t, appleCIK, report.CIK)
	assert.Equal(t, 3, report.FilingsSeen)
	assert.Equal(t, 3, report.FilingsSaved)
	assert.Equal(t, 5, report.MetricsExtracted)
	assert.Equal(t, 5, report.MetricsSaved)
	// Mappings were missing and refreshed on demand.
	assert.Equal(t, 1, src.tickerCalls)

	c, err := repos.Companies.GetByTicker(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", c.Name)
	assert.Equal(t, "Manufacturing", c.Sector)
	assert.Equal(t, "Electronic Computers", c.Industry)
	assert.Equal(t, "3571", c.SICCode)
	assert.Equal(t, "Nasdaq", c.Exchange)

	amended, err := repos.Filings.Get(ctx, "0000320193-22-000108")
	require.NoError(t, err)
	assert.True(t, amended.IsAmended)
	assert.True(t, amended.IsProcessed)
	assert.Equal(t, "https://www.sec.gov/Archives/edgar/data/320193/000032019322000108/aapl-20220924.htm", amended.URL)

	_, err = repos.Filings.Get(ctx, "0000320193-23-000090")
	assert.True(t, errors.Is(err, store.ErrNotFound), "8-K must be skipped")

	revenue, err := repos.Metrics.GetTimeSeries(ctx, "AAPL", "Revenue", models.PeriodAnnual)
	require.NoError(t, err)
	require.Len(t, revenue, 2)
	assert.Equal(t, 394328.0, revenue[0].Value)
	assert.Equal(t, 383285.0, revenue[1].Value)

	quarterly, err := repos.Metrics.GetTimeSeries(ctx, "AAPL", "Revenue", models.PeriodQuarterly)
	require.NoError(t, err)
	require.Len(t, quarterly, 1)

	assets, err := repos.Metrics.FindByCompanyAndMetric(ctx, "AAPL", "TotalAssets", models.PeriodAnnual)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, "Assets", assets[0].XBRLTag)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SyncRuns.WithLabelValues("success")))
	assert.Equal(t, 5.0, testutil.ToFloat64(metrics.MetricsSaved))
}

func TestSyncCompanyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	src, repos := newFixture()
	p := New(src, repos)

	_, err := p.SyncCompany(ctx, "AAPL", false)
	require.NoError(t, err)
	second, err := p.SyncCompany(ctx, "AAPL", false)
	require.NoError(t, err)
	assert.Equal(t, 0, second.FilingsSaved, "known filings are skipped without force")

	all, err := repos.Metrics.FindByCompany(ctx, "AAPL")
	require.NoError(t, err)
	assert.Len(t, all, 5)

	forced, err := p.SyncCompany(ctx, "AAPL", true)
	require.NoError(t, err)
	assert.Equal(t, 3, forced.FilingsSaved)
}

func TestSyncCompanyKeepsCuratedSector(t *testing.T) {
	ctx := context.Background()
	src, repos := newFixture()
	require.NoError(t, repos.Companies.Save(ctx, &models.Company{Ticker: "AAPL", Sector: "Technology", Industry: "Consumer Electronics"}))

	_, err := New(src, repos).SyncCompany(ctx, "AAPL", false)
	require.NoError(t, err)

	c, err := repos.Companies.GetByTicker(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Technology", c.Sector)
	assert.Equal(t, "Consumer Electronics", c.Industry)
}

func TestSyncCompanyUnknownTicker(t *testing.T) {
	src, repos := newFixture()
	reg := prometheus.NewRegistry()
	metrics := telemetry.New(reg)

	_, err := New(src, repos, WithMetrics(metrics)).SyncCompany(context.Background(), "ZZZZ", false)
	assert.True(t, errors.Is(err, ErrNoMapping))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SyncRuns.WithLabelValues("failure")))
}

func TestSyncCompanyFactsFailure(t *testing.T) {
	src, repos := newFixture()
	src.factsErr = errors.New("boom")

	report, err := New(src, repos).SyncCompany(context.Background(), "AAPL", false)
	require.Error(t, err)
	assert.Equal(t, 3, report.FilingsSaved)
	assert.Equal(t, 0, report.MetricsSaved)
}
