package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/timeseries"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/models"
)

// NewMemory returns repositories that live only in process memory.
func NewMemory() *Repositories {
	repos, _ := newDocRepositories("")
	return repos
}

// NewFileBacked returns in-memory repositories mirrored to JSON documents in
// dir (companies.json, metrics.json, filings.json, cik_mappings.json).
func NewFileBacked(dir string) (*Repositories, error) {
	if dir == "" {
		return nil, fmt.Errorf("file store: data dir is required")
	}
	return newDocRepositories(dir)
}

func newDocRepositories(dir string) (*Repositories, error) {
	path := func(name string) string {
		if dir == "" {
			return ""
		}
		return filepath.Join(dir, name)
	}

	companies, err := newDocStore[models.Company](path("companies.json"))
	if err != nil {
		return nil, err
	}
	metrics, err := newDocStore[models.FinancialMetric](path("metrics.json"))
	if err != nil {
		return nil, err
	}
	filings, err := newDocStore[models.Filing](path("filings.json"))
	if err != nil {
		return nil, err
	}
	mappings, err := newDocStore[models.CIKTickerMapping](path("cik_mappings.json"))
	if err != nil {
		return nil, err
	}

	return &Repositories{
		Companies: &memCompanies{docs: companies},
		Metrics:   &memMetrics{docs: metrics},
		Filings:   &memFilings{docs: filings},
		Mappings:  &memMappings{docs: mappings},
	}, nil
}

// =============================================================================
// COMPANIES
// =============================================================================

type memCompanies struct {
	docs *docStore[models.Company]
}

func (r *memCompanies) GetByTicker(_ context.Context, ticker string) (*models.Company, error) {
	c, ok := r.docs.get(models.NormalizeTicker(ticker))
	if !ok {
		return nil, fmt.Errorf("company %s: %w", ticker, ErrNotFound)
	}
	return &c, nil
}

func (r *memCompanies) GetByCIK(_ context.Context, cik string) (*models.Company, error) {
	want := models.PadCIK(cik)
	found := r.docs.filter(func(c models.Company) bool { return models.PadCIK(c.CIK) == want })
	if len(found) == 0 {
		return nil, fmt.Errorf("company with CIK %s: %w", cik, ErrNotFound)
	}
	sortCompanies(found)
	return &found[0], nil
}

func (r *memCompanies) List(_ context.Context, skip, limit int) ([]models.Company, error) {
	all := r.docs.filter(nil)
	sortCompanies(all)
	return page(all, skip, limit), nil
}

func (r *memCompanies) FindBySector(_ context.Context, sector string) ([]models.Company, error) {
	out := r.docs.filter(func(c models.Company) bool { return strings.EqualFold(c.Sector, sector) })
	sortCompanies(out)
	return out, nil
}

func (r *memCompanies) FindByIndustry(_ context.Context, industry string) ([]models.Company, error) {
	out := r.docs.filter(func(c models.Company) bool { return strings.EqualFold(c.Industry, industry) })
	sortCompanies(out)
	return out, nil
}

func (r *memCompanies) Save(_ context.Context, c *models.Company) error {
	if c == nil || strings.TrimSpace(c.Ticker) == "" {
		return fmt.Errorf("company ticker is required")
	}
	cp := *c
	cp.Ticker = models.NormalizeTicker(cp.Ticker)
	now := time.Now().UTC()
	if existing, ok := r.docs.get(cp.Ticker); ok && !existing.CreatedAt.IsZero() {
		cp.CreatedAt = existing.CreatedAt
	} else if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	if err := r.docs.put(cp.Ticker, cp); err != nil {
		return err
	}
	*c = cp
	return nil
}

func (r *memCompanies) Delete(_ context.Context, ticker string) error {
	ok, err := r.docs.remove(models.NormalizeTicker(ticker))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("company %s: %w", ticker, ErrNotFound)
	}
	return nil
}

func sortCompanies(cs []models.Company) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].Ticker < cs[j].Ticker })
}

// =============================================================================
// METRICS
// =============================================================================

type memMetrics struct {
	docs *docStore[models.FinancialMetric]
}

func normalizeMetric(m models.FinancialMetric) models.FinancialMetric {
	m.CompanyID = models.NormalizeTicker(m.CompanyID)
	if m.RecordedAt.IsZero() {
		m.RecordedAt = time.Now().UTC()
	}
	return m
}

func (r *memMetrics) Save(_ context.Context, m *models.FinancialMetric) error {
	if m == nil {
		return fmt.Errorf("metric is nil")
	}
	n := normalizeMetric(*m)
	if err := r.docs.put(n.Key(), n); err != nil {
		return err
	}
	*m = n
	return nil
}

func (r *memMetrics) SaveAll(_ context.Context, ms []models.FinancialMetric) (int, error) {
	if len(ms) == 0 {
		return 0, nil
	}
	batch := make(map[string]models.FinancialMetric, len(ms))
	for _, m := range ms {
		n := normalizeMetric(m)
		// Later entries in the batch overwrite earlier ones with the same identity.
		batch[n.Key()] = n
	}
	if err := r.docs.putMany(batch); err != nil {
		return 0, err
	}
	return len(batch), nil
}

func (r *memMetrics) FindByCompanyAndMetric(_ context.Context, companyID, name string, period models.MetricPeriod) ([]models.FinancialMetric, error) {
	id := models.NormalizeTicker(companyID)
	out := r.docs.filter(func(m models.FinancialMetric) bool {
		return m.CompanyID == id &&
			(name == "" || m.Name == name) &&
			(period == "" || m.Period == period)
	})
	sortMetrics(out)
	return out, nil
}

func (r *memMetrics) FindByCompany(ctx context.Context, companyID string) ([]models.FinancialMetric, error) {
	return r.FindByCompanyAndMetric(ctx, companyID, "", "")
}

func (r *memMetrics) GetTimeSeries(ctx context.Context, companyID, name string, period models.MetricPeriod) ([]models.DataPoint, error) {
	obs, err := r.FindByCompanyAndMetric(ctx, companyID, name, period)
	if err != nil {
		return nil, err
	}
	return timeseries.Build(obs), nil
}

func (r *memMetrics) Delete(_ context.Context, key string) error {
	ok, err := r.docs.remove(key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("metric %s: %w", key, ErrNotFound)
	}
	return nil
}

// =============================================================================
// FILINGS
// =============================================================================

type memFilings struct {
	docs *docStore[models.Filing]
}

func (r *memFilings) Get(_ context.Context, accession string) (*models.Filing, error) {
	f, ok := r.docs.get(accession)
	if !ok {
		return nil, fmt.Errorf("filing %s: %w", accession, ErrNotFound)
	}
	return &f, nil
}

func (r *memFilings) Save(_ context.Context, f *models.Filing) error {
	if f == nil || f.AccessionNumber == "" {
		return fmt.Errorf("filing accession number is required")
	}
	cp := *f
	cp.CompanyID = models.NormalizeTicker(cp.CompanyID)
	if err := r.docs.put(cp.AccessionNumber, cp); err != nil {
		return err
	}
	*f = cp
	return nil
}

func (r *memFilings) FindByCompany(_ context.Context, companyID, formType string) ([]models.Filing, error) {
	id := models.NormalizeTicker(companyID)
	out := r.docs.filter(func(f models.Filing) bool {
		return f.CompanyID == id && (formType == "" || strings.EqualFold(f.FormType, formType))
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].FilingDate.Equal(out[j].FilingDate) {
			return out[i].FilingDate.After(out[j].FilingDate)
		}
		return out[i].AccessionNumber > out[j].AccessionNumber
	})
	return out, nil
}

// =============================================================================
// CIK MAPPINGS
// =============================================================================

type memMappings struct {
	docs *docStore[models.CIKTickerMapping]
}

func (r *memMappings) GetByCIK(_ context.Context, cik string) (*models.CIKTickerMapping, error) {
	want := models.PadCIK(cik)
	found := r.docs.filter(func(m models.CIKTickerMapping) bool { return m.CIK == want })
	if len(found) == 0 {
		return nil, fmt.Errorf("mapping for CIK %s: %w", cik, ErrNotFound)
	}
	// Several share classes can share a CIK; prefer the alphabetically first.
	sort.Slice(found, func(i, j int) bool { return found[i].Ticker < found[j].Ticker })
	return &found[0], nil
}

func (r *memMappings) GetByTicker(_ context.Context, ticker string) (*models.CIKTickerMapping, error) {
	m, ok := r.docs.get(models.NormalizeTicker(ticker))
	if !ok {
		return nil, fmt.Errorf("mapping for ticker %s: %w", ticker, ErrNotFound)
	}
	return &m, nil
}

func normalizeMapping(m models.CIKTickerMapping) models.CIKTickerMapping {
	m.CIK = models.PadCIK(m.CIK)
	m.Ticker = models.NormalizeTicker(m.Ticker)
	if m.LastUpdated.IsZero() {
		m.LastUpdated = time.Now().UTC()
	}
	return m
}

func (r *memMappings) Save(_ context.Context, m *models.CIKTickerMapping) error {
	if m == nil || m.CIK == "" || m.Ticker == "" {
		return fmt.Errorf("mapping CIK and ticker are required")
	}
	n := normalizeMapping(*m)
	if err := r.docs.put(n.Ticker, n); err != nil {
		return err
	}
	*m = n
	return nil
}

func (r *memMappings) SaveAll(_ context.Context, ms []models.CIKTickerMapping) (int, error) {
	batch := make(map[string]models.CIKTickerMapping, len(ms))
	for _, m := range ms {
		if m.CIK == "" || m.Ticker == "" {
			continue
		}
		n := normalizeMapping(m)
		batch[n.Ticker] = n
	}
	if len(batch) == 0 {
		return 0, nil
	}
	if err := r.docs.putMany(batch); err != nil {
		return 0, err
	}
	return len(batch), nil
}

func (r *memMappings) List(_ context.Context) ([]models.CIKTickerMapping, error) {
	out := r.docs.filter(nil)
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out, nil
}
