package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCompanyRepository(t *testing.T) {
	ctx := context.Background()
	repos := NewMemory()

	require.NoError(t, repos.Companies.Save(ctx, &models.Company{Ticker: "msft", Name: "Microsoft", CIK: "789019", Sector: "Technology", Industry: "Software"}))
	require.NoError(t, repos.Companies.Save(ctx, &models.Company{Ticker: "AAPL", Name: "Apple", CIK: "0000320193", Sector: "Technology", Industry: "Hardware"}))
	require.NoError(t, repos.Companies.Save(ctx, &models.Company{Ticker: "JPM", Name: "JPMorgan", CIK: "19617", Sector: "Finance"}))

	c, err := repos.Companies.GetByTicker(ctx, "MSFT")
	require.NoError(t, err)
	assert.Equal(t, "Microsoft", c.Name)
	assert.False(t, c.CreatedAt.IsZero())

	c, err = repos.Companies.GetByCIK(ctx, "320193")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", c.Ticker)

	tech, err := repos.Companies.FindBySector(ctx, "technology")
	require.NoError(t, err)
	require.Len(t, tech, 2)
	assert.Equal(t, "AAPL", tech[0].Ticker)

	sw, err := repos.Companies.FindByIndustry(ctx, "Software")
	require.NoError(t, err)
	assert.Len(t, sw, 1)

	pageOne, err := repos.Companies.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, pageOne, 1)
	assert.Equal(t, "JPM", pageOne[0].Ticker)

	empty, err := repos.Companies.List(ctx, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = repos.Companies.GetByTicker(ctx, "NOPE")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, repos.Companies.Delete(ctx, "jpm"))
	assert.True(t, errors.Is(repos.Companies.Delete(ctx, "jpm"), ErrNotFound))

	assert.Error(t, repos.Companies.Save(ctx, &models.Company{Name: "no ticker"}))
}

func TestMetricUpsertByIdentity(t *testing.T) {
	ctx := context.Background()
	repos := NewMemory()

	m := models.FinancialMetric{CompanyID: "aapl", Name: "Revenue", Value: 100, Date: day(2022, 9, 24), Period: models.PeriodAnnual}
	require.NoError(t, repos.Metrics.Save(ctx, &m))

	m.Value = 110 // restatement
	require.NoError(t, repos.Metrics.Save(ctx, &m))

	got, err := repos.Metrics.FindByCompanyAndMetric(ctx, "AAPL", "Revenue", models.PeriodAnnual)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 110.0, got[0].Value)

	// Same date, different period is a different identity.
	q := m
	q.Period = models.PeriodQuarterly
	q.Value = 30
	require.NoError(t, repos.Metrics.Save(ctx, &q))

	all, err := repos.Metrics.FindByCompanyAndMetric(ctx, "AAPL", "Revenue", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, repos.Metrics.Delete(ctx, q.Key()))
	assert.True(t, errors.Is(repos.Metrics.Delete(ctx, q.Key()), ErrNotFound))
}

func TestMetricSaveAllAndTimeSeries(t *testing.T) {
	ctx := context.Background()
	repos := NewMemory()

	n, err := repos.Metrics.SaveAll(ctx, []models.FinancialMetric{
		{CompanyID: "MSFT", Name: "NetIncome", Value: 3, Date: day(2023, 6, 30), Period: models.PeriodAnnual},
		{CompanyID: "MSFT", Name: "NetIncome", Value: 1, Date: day(2021, 6, 30), Period: models.PeriodAnnual},
		{CompanyID: "MSFT", Name: "NetIncome", Value: 2, Date: day(2022, 6, 30), Period: models.PeriodAnnual},
		{CompanyID: "MSFT", Name: "NetIncome", Value: 4, Date: day(2023, 6, 30), Period: models.PeriodAnnual},
		{CompanyID: "MSFT", Name: "Revenue", Value: 9, Date: day(2023, 6, 30), Period: models.PeriodAnnual},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	pts, err := repos.Metrics.GetTimeSeries(ctx, "msft", "NetIncome", models.PeriodAnnual)
	require.NoError(t, err)
	require.Len(t, pts, 3)
	assert.Equal(t, 1.0, pts[0].Value)
	assert.Equal(t, 4.0, pts[2].Value)

	byCompany, err := repos.Metrics.FindByCompany(ctx, "MSFT")
	require.NoError(t, err)
	assert.Len(t, byCompany, 4)

	none, err := repos.Metrics.GetTimeSeries(ctx, "MSFT", "Goodwill", models.PeriodAnnual)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFilingRepository(t *testing.T) {
	ctx := context.Background()
	repos := NewMemory()

	for _, f := range []models.Filing{
		{AccessionNumber: "a-1", CompanyID: "aapl", FormType: "10-K", FilingDate: day(2022, 10, 28)},
		{AccessionNumber: "a-2", CompanyID: "AAPL", FormType: "10-Q", FilingDate: day(2023, 2, 3)},
		{AccessionNumber: "a-3", CompanyID: "AAPL", FormType: "10-K", FilingDate: day(2023, 11, 3)},
	} {
		f := f
		require.NoError(t, repos.Filings.Save(ctx, &f))
	}

	tenKs, err := repos.Filings.FindByCompany(ctx, "AAPL", "10-k")
	require.NoError(t, err)
	require.Len(t, tenKs, 2)
	assert.Equal(t, "a-3", tenKs[0].AccessionNumber)

	all, err := repos.Filings.FindByCompany(ctx, "AAPL", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	f, err := repos.Filings.Get(ctx, "a-2")
	require.NoError(t, err)
	assert.Equal(t, "10-Q", f.FormType)

	_, err = repos.Filings.Get(ctx, "zzz")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMappingRepository(t *testing.T) {
	ctx := context.Background()
	repos := NewMemory()

	n, err := repos.Mappings.SaveAll(ctx, []models.CIKTickerMapping{
		{CIK: "1652044", Ticker: "googl", CompanyName: "Alphabet Inc.", IsActive: true},
		{CIK: "1652044", Ticker: "GOOG", CompanyName: "Alphabet Inc.", IsActive: true},
		{CIK: "320193", Ticker: "AAPL", CompanyName: "Apple Inc.", IsActive: true},
		{CIK: "", Ticker: "BAD"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	m, err := repos.Mappings.GetByTicker(ctx, "goog")
	require.NoError(t, err)
	assert.Equal(t, "0001652044", m.CIK)

	m, err = repos.Mappings.GetByCIK(ctx, "1652044")
	require.NoError(t, err)
	assert.Equal(t, "GOOG", m.Ticker)

	list, err := repos.Mappings.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "AAPL", list[0].Ticker)

	_, err = repos.Mappings.GetByCIK(ctx, "1")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestFileBackedPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	repos, err := NewFileBacked(dir)
	require.NoError(t, err)
	require.NoError(t, repos.Companies.Save(ctx, &models.Company{Ticker: "AAPL", Name: "Apple"}))
	_, err = repos.Metrics.SaveAll(ctx, []models.FinancialMetric{
		{CompanyID: "AAPL", Name: "Revenue", Value: 394.3, Date: day(2022, 9, 24), Period: models.PeriodAnnual},
	})
	require.NoError(t, err)

	for _, name := range []string{"companies.json", "metrics.json"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	reopened, err := NewFileBacked(dir)
	require.NoError(t, err)
	c, err := reopened.Companies.GetByTicker(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Apple", c.Name)

	pts, err := reopened.Metrics.GetTimeSeries(ctx, "AAPL", "Revenue", models.PeriodAnnual)
	require.NoError(t, err)
	require.Len(t, pts, 1)
	assert.Equal(t, 394.3, pts[0].Value)
}

func TestFileBackedRepairsTruncatedDocument(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	// Missing closing braces, as left by an interrupted write.
	broken := `{"AAPL": {"ticker": "AAPL", "name": "Apple", "cik": "0000320193"`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "companies.json"), []byte(broken), 0o644))

	repos, err := NewFileBacked(dir)
	require.NoError(t, err)
	c, err := repos.Companies.GetByTicker(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Apple", c.Name)
}

func TestFileBackedFailedWriteKeepsState(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	repos, err := NewFileBacked(dir)
	require.NoError(t, err)
	require.NoError(t, repos.Companies.Save(ctx, &models.Company{Ticker: "AAPL", Name: "Apple"}))

	// A directory where the temp file goes makes every write fail.
	blocker := filepath.Join(dir, "companies.json.tmp")
	require.NoError(t, os.Mkdir(blocker, 0o755))

	assert.Error(t, repos.Companies.Save(ctx, &models.Company{Ticker: "AAPL", Name: "Apple Inc."}))
	assert.Error(t, repos.Companies.Save(ctx, &models.Company{Ticker: "MSFT", Name: "Microsoft"}))
	assert.Error(t, repos.Companies.Delete(ctx, "AAPL"))

	c, err := repos.Companies.GetByTicker(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Apple", c.Name)
	_, err = repos.Companies.GetByTicker(ctx, "MSFT")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, os.Remove(blocker))
	reopened, err := NewFileBacked(dir)
	require.NoError(t, err)
	list, err := reopened.Companies.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Apple", list[0].Name)
}

func TestNewFileBackedRequiresDir(t *testing.T) {
	_, err := NewFileBacked("")
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	mem, err := Open(ctx, Options{Driver: DriverMemory})
	require.NoError(t, err)
	assert.NotNil(t, mem.Companies)

	dir := t.TempDir()
	file, err := Open(ctx, Options{Driver: DriverFile, DataDir: dir})
	require.NoError(t, err)
	require.NoError(t, file.Companies.Save(ctx, &models.Company{Ticker: "AAPL", Name: "Apple"}))
	_, err = os.Stat(filepath.Join(dir, "companies.json"))
	assert.NoError(t, err)

	_, err = Open(ctx, Options{Driver: "sqlite"})
	assert.Error(t, err)
	_, err = Open(ctx, Options{Driver: DriverPostgres})
	assert.Error(t, err, "postgres needs a URL")
}
