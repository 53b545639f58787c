// Package store persists companies, filings, metric observations and CIK
// mappings. Three backends share the same interfaces: in-memory, JSON files
// and Postgres.
package store

import (
	"context"
	"errors"
	"sort"

	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/models"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("store: not found")

// CompanyRepository stores companies keyed by ticker.
type CompanyRepository interface {
	GetByTicker(ctx context.Context, ticker string) (*models.Company, error)
	GetByCIK(ctx context.Context, cik string) (*models.Company, error)
	// List returns companies ordered by ticker. limit <= 0 means no limit.
	List(ctx context.Context, skip, limit int) ([]models.Company, error)
	FindBySector(ctx context.Context, sector string) ([]models.Company, error)
	FindByIndustry(ctx context.Context, industry string) ([]models.Company, error)
	// Save inserts or replaces the company.
	Save(ctx context.Context, c *models.Company) error
	Delete(ctx context.Context, ticker string) error
}

// MetricRepository stores metric observations keyed by their identity
// (company, name, period, date). Saving an existing identity overwrites it.
type MetricRepository interface {
	Save(ctx context.Context, m *models.FinancialMetric) error
	// SaveAll upserts a batch and returns how many observations were written.
	SaveAll(ctx context.Context, ms []models.FinancialMetric) (int, error)
	// FindByCompanyAndMetric returns observations ordered by date ascending.
	// An empty period matches every period.
	FindByCompanyAndMetric(ctx context.Context, companyID, name string, period models.MetricPeriod) ([]models.FinancialMetric, error)
	FindByCompany(ctx context.Context, companyID string) ([]models.FinancialMetric, error)
	// GetTimeSeries returns a deduplicated, ascending series.
	GetTimeSeries(ctx context.Context, companyID, name string, period models.MetricPeriod) ([]models.DataPoint, error)
	Delete(ctx context.Context, key string) error
}

// FilingRepository stores filings keyed by accession number.
type FilingRepository interface {
	Get(ctx context.Context, accession string) (*models.Filing, error)
	Save(ctx context.Context, f *models.Filing) error
	// FindByCompany returns filings newest first. An empty formType matches
	// every form.
	FindByCompany(ctx context.Context, companyID, formType string) ([]models.Filing, error)
}

// MappingRepository stores CIK to ticker mappings.
type MappingRepository interface {
	GetByCIK(ctx context.Context, cik string) (*models.CIKTickerMapping, error)
	GetByTicker(ctx context.Context, ticker string) (*models.CIKTickerMapping, error)
	Save(ctx context.Context, m *models.CIKTickerMapping) error
	SaveAll(ctx context.Context, ms []models.CIKTickerMapping) (int, error)
	List(ctx context.Context) ([]models.CIKTickerMapping, error)
}

// Repositories bundles one backend's repositories.
type Repositories struct {
	Companies CompanyRepository
	Metrics   MetricRepository
	Filings   FilingRepository
	Mappings  MappingRepository

	close func()
}

// Close releases backend resources.
func (r *Repositories) Close() {
	if r != nil && r.close != nil {
		r.close()
	}
}

func sortMetrics(ms []models.FinancialMetric) {
	sort.SliceStable(ms, func(i, j int) bool {
		if !ms[i].Date.Equal(ms[j].Date) {
			return ms[i].Date.Before(ms[j].Date)
		}
		return ms[i].FiledAt.Before(ms[j].FiledAt)
	})
}

func page[T any](items []T, skip, limit int) []T {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(items) {
		return []T{}
	}
	items = items[skip:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
