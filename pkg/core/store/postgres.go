package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/timeseries"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/models"
)

// DB is the subset of *pgxpool.Pool used by the Postgres repositories.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// NewPostgres returns repositories backed by pool. Closing the bundle closes
// the pool.
func NewPostgres(pool *pgxpool.Pool) *Repositories {
	repos := newPostgresRepositories(pool)
	repos.close = pool.Close
	return repos
}

func newPostgresRepositories(db DB) *Repositories {
	return &Repositories{
		Companies: &pgCompanies{db: db},
		Metrics:   &pgMetrics{db: db},
		Filings:   &pgFilings{db: db},
		Mappings:  &pgMappings{db: db},
	}
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// =============================================================================
// COMPANIES
// =============================================================================

type pgCompanies struct{ db DB }

const companyColumns = `ticker, name, cik, sector, industry, sic_code, exchange, description, website, founded_year, created_at, updated_at`

func scanCompany(row pgx.Row) (*models.Company, error) {
	var c models.Company
	err := row.Scan(&c.Ticker, &c.Name, &c.CIK, &c.Sector, &c.Industry, &c.SICCode, &c.Exchange,
		&c.Description, &c.Website, &c.FoundedYear, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func collectCompanies(rows pgx.Rows, err error) ([]models.Company, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]models.Company, 0)
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *pgCompanies) GetByTicker(ctx context.Context, ticker string) (*models.Company, error) {
	t := models.NormalizeTicker(ticker)
	c, err := scanCompany(r.db.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE ticker = $1`, t))
	if err != nil {
		return nil, notFound(err, "company %s", t)
	}
	return c, nil
}

func (r *pgCompanies) GetByCIK(ctx context.Context, cik string) (*models.Company, error) {
	padded := models.PadCIK(cik)
	c, err := scanCompany(r.db.QueryRow(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE cik = $1 ORDER BY ticker LIMIT 1`, padded))
	if err != nil {
		return nil, notFound(err, "company with CIK %s", padded)
	}
	return c, nil
}

func (r *pgCompanies) List(ctx context.Context, skip, limit int) ([]models.Company, error) {
	if skip < 0 {
		skip = 0
	}
	var lim any // NULL means no limit
	if limit > 0 {
		lim = limit
	}
	out, err := collectCompanies(r.db.Query(ctx,
		`SELECT `+companyColumns+` FROM companies ORDER BY ticker OFFSET $1 LIMIT $2`, skip, lim))
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	return out, nil
}

func (r *pgCompanies) FindBySector(ctx context.Context, sector string) ([]models.Company, error) {
	out, err := collectCompanies(r.db.Query(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE LOWER(sector) = LOWER($1) ORDER BY ticker`, sector))
	if err != nil {
		return nil, fmt.Errorf("find companies by sector: %w", err)
	}
	return out, nil
}

func (r *pgCompanies) FindByIndustry(ctx context.Context, industry string) ([]models.Company, error) {
	out, err := collectCompanies(r.db.Query(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE LOWER(industry) = LOWER($1) ORDER BY ticker`, industry))
	if err != nil {
		return nil, fmt.Errorf("find companies by industry: %w", err)
	}
	return out, nil
}

func (r *pgCompanies) Save(ctx context.Context, c *models.Company) error {
	if c == nil || c.Ticker == "" {
		return fmt.Errorf("company ticker is required")
	}
	c.Ticker = models.NormalizeTicker(c.Ticker)
	if c.CIK != "" {
		c.CIK = models.PadCIK(c.CIK)
	}
	query := `
		INSERT INTO companies (ticker, name, cik, sector, industry, sic_code, exchange, description, website, founded_year, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		ON CONFLICT (ticker)
		DO UPDATE SET
			name = EXCLUDED.name,
			cik = EXCLUDED.cik,
			sector = EXCLUDED.sector,
			industry = EXCLUDED.industry,
			sic_code = EXCLUDED.sic_code,
			exchange = EXCLUDED.exchange,
			description = EXCLUDED.description,
			website = EXCLUDED.website,
			founded_year = EXCLUDED.founded_year,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, c.Ticker, c.Name, c.CIK, c.Sector, c.Industry, c.SICCode,
		c.Exchange, c.Description, c.Website, c.FoundedYear).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save company %s: %w", c.Ticker, err)
	}
	return nil
}

func (r *pgCompanies) Delete(ctx context.Context, ticker string) error {
	t := models.NormalizeTicker(ticker)
	tag, err := r.db.Exec(ctx, `DELETE FROM companies WHERE ticker = $1`, t)
	if err != nil {
		return fmt.Errorf("delete company %s: %w", t, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("company %s: %w", t, ErrNotFound)
	}
	return nil
}

// =============================================================================
// METRICS
// =============================================================================

type pgMetrics struct{ db DB }

const metricColumns = `company_id, name, value, date, period, unit, decimals, filing_id, xbrl_tag, xbrl_context,
	fiscal_year, fiscal_period, filed_at, is_calculated, calculation_method, confidence_score, recorded_at`

const upsertMetricSQL = `
	INSERT INTO financial_metrics (metric_key, ` + metricColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	ON CONFLICT (metric_key)
	DO UPDATE SET
		value = EXCLUDED.value,
		unit = EXCLUDED.unit,
		decimals = EXCLUDED.decimals,
		filing_id = EXCLUDED.filing_id,
		xbrl_tag = EXCLUDED.xbrl_tag,
		xbrl_context = EXCLUDED.xbrl_context,
		fiscal_year = EXCLUDED.fiscal_year,
		fiscal_period = EXCLUDED.fiscal_period,
		filed_at = EXCLUDED.filed_at,
		is_calculated = EXCLUDED.is_calculated,
		calculation_method = EXCLUDED.calculation_method,
		confidence_score = EXCLUDED.confidence_score,
		recorded_at = EXCLUDED.recorded_at
`

func metricArgs(m models.FinancialMetric) []any {
	return []any{
		m.Key(), m.CompanyID, m.Name, m.Value, m.Date, string(m.Period), m.Unit, m.Decimals,
		m.FilingID, m.XBRLTag, m.XBRLContext, m.FiscalYear, m.FiscalPeriod, nullTime(m.FiledAt),
		m.IsCalculated, m.CalculationMethod, m.ConfidenceScore, m.RecordedAt,
	}
}

func scanMetric(row pgx.Row) (models.FinancialMetric, error) {
	var m models.FinancialMetric
	var period string
	var filedAt *time.Time
	err := row.Scan(&m.CompanyID, &m.Name, &m.Value, &m.Date, &period, &m.Unit, &m.Decimals,
		&m.FilingID, &m.XBRLTag, &m.XBRLContext, &m.FiscalYear, &m.FiscalPeriod, &filedAt,
		&m.IsCalculated, &m.CalculationMethod, &m.ConfidenceScore, &m.RecordedAt)
	if err != nil {
		return m, err
	}
	m.Period = models.MetricPeriod(period)
	if filedAt != nil {
		m.FiledAt = *filedAt
	}
	return m, nil
}

func (r *pgMetrics) Save(ctx context.Context, m *models.FinancialMetric) error {
	if m == nil {
		return fmt.Errorf("metric is nil")
	}
	*m = normalizeMetric(*m)
	if _, err := r.db.Exec(ctx, upsertMetricSQL, metricArgs(*m)...); err != nil {
		return fmt.Errorf("failed to save metric %s: %w", m.Key(), err)
	}
	return nil
}

func (r *pgMetrics) SaveAll(ctx context.Context, ms []models.FinancialMetric) (int, error) {
	if len(ms) == 0 {
		return 0, nil
	}
	// Collapse duplicates first: a batch may not touch the same row twice.
	order := make([]string, 0, len(ms))
	unique := make(map[string]models.FinancialMetric, len(ms))
	for _, m := range ms {
		n := normalizeMetric(m)
		if _, seen := unique[n.Key()]; !seen {
			order = append(order, n.Key())
		}
		unique[n.Key()] = n
	}

	batch := &pgx.Batch{}
	for _, key := range order {
		batch.Queue(upsertMetricSQL, metricArgs(unique[key])...)
	}
	br := r.db.SendBatch(ctx, batch)
	defer br.Close()
	for _, key := range order {
		if _, err := br.Exec(); err != nil {
			return 0, fmt.Errorf("failed to save metric %s: %w", key, err)
		}
	}
	return len(order), nil
}

func (r *pgMetrics) FindByCompanyAndMetric(ctx context.Context, companyID, name string, period models.MetricPeriod) ([]models.FinancialMetric, error) {
	query := `
		SELECT ` + metricColumns + `
		FROM financial_metrics
		WHERE company_id = $1
		  AND ($2::text = '' OR name = $2::text)
		  AND ($3::text = '' OR period = $3::text)
		ORDER BY date ASC, filed_at ASC NULLS FIRST
	`
	rows, err := r.db.Query(ctx, query, models.NormalizeTicker(companyID), name, string(period))
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()

	out := make([]models.FinancialMetric, 0)
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *pgMetrics) FindByCompany(ctx context.Context, companyID string) ([]models.FinancialMetric, error) {
	return r.FindByCompanyAndMetric(ctx, companyID, "", "")
}

func (r *pgMetrics) GetTimeSeries(ctx context.Context, companyID, name string, period models.MetricPeriod) ([]models.DataPoint, error) {
	obs, err := r.FindByCompanyAndMetric(ctx, companyID, name, period)
	if err != nil {
		return nil, err
	}
	return timeseries.Build(obs), nil
}

func (r *pgMetrics) Delete(ctx context.Context, key string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM financial_metrics WHERE metric_key = $1`, key)
	if err != nil {
		return fmt.Errorf("delete metric %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("metric %s: %w", key, ErrNotFound)
	}
	return nil
}

// =============================================================================
// FILINGS
// =============================================================================

type pgFilings struct{ db DB }

const filingColumns = `accession_number, company_id, form_type, filing_date, period_end_date, primary_document,
	url, file_number, is_amended, is_processed, processed_at`

func scanFiling(row pgx.Row) (*models.Filing, error) {
	var f models.Filing
	var periodEnd *time.Time
	err := row.Scan(&f.AccessionNumber, &f.CompanyID, &f.FormType, &f.FilingDate, &periodEnd,
		&f.PrimaryDocument, &f.URL, &f.FileNumber, &f.IsAmended, &f.IsProcessed, &f.ProcessedAt)
	if err != nil {
		return nil, err
	}
	if periodEnd != nil {
		f.PeriodEndDate = *periodEnd
	}
	return &f, nil
}

func (r *pgFilings) Get(ctx context.Context, accession string) (*models.Filing, error) {
	f, err := scanFiling(r.db.QueryRow(ctx, `SELECT `+filingColumns+` FROM filings WHERE accession_number = $1`, accession))
	if err != nil {
		return nil, notFound(err, "filing %s", accession)
	}
	return f, nil
}

func (r *pgFilings) Save(ctx context.Context, f *models.Filing) error {
	if f == nil || f.AccessionNumber == "" {
		return fmt.Errorf("filing accession number is required")
	}
	f.CompanyID = models.NormalizeTicker(f.CompanyID)
	query := `
		INSERT INTO filings (` + filingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (accession_number)
		DO UPDATE SET
			company_id = EXCLUDED.company_id,
			form_type = EXCLUDED.form_type,
			filing_date = EXCLUDED.filing_date,
			period_end_date = EXCLUDED.period_end_date,
			primary_document = EXCLUDED.primary_document,
			url = EXCLUDED.url,
			file_number = EXCLUDED.file_number,
			is_amended = EXCLUDED.is_amended,
			is_processed = EXCLUDED.is_processed,
			processed_at = EXCLUDED.processed_at
	`
	_, err := r.db.Exec(ctx, query, f.AccessionNumber, f.CompanyID, f.FormType, f.FilingDate,
		nullTime(f.PeriodEndDate), f.PrimaryDocument, f.URL, f.FileNumber, f.IsAmended, f.IsProcessed, f.ProcessedAt)
	if err != nil {
		return fmt.Errorf("failed to save filing %s: %w", f.AccessionNumber, err)
	}
	return nil
}

func (r *pgFilings) FindByCompany(ctx context.Context, companyID, formType string) ([]models.Filing, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+filingColumns+`
		FROM filings
		WHERE company_id = $1 AND ($2::text = '' OR UPPER(form_type) = UPPER($2::text))
		ORDER BY filing_date DESC, accession_number DESC`,
		models.NormalizeTicker(companyID), formType)
	if err != nil {
		return nil, fmt.Errorf("query filings: %w", err)
	}
	defer rows.Close()

	out := make([]models.Filing, 0)
	for rows.Next() {
		f, err := scanFiling(rows)
		if err != nil {
			return nil, fmt.Errorf("scan filing: %w", err)
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// =============================================================================
// CIK MAPPINGS
// =============================================================================

type pgMappings struct{ db DB }

const mappingColumns = `ticker, cik, company_name, exchange, is_active, last_updated`

const upsertMappingSQL = `
	INSERT INTO cik_ticker_mappings (` + mappingColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (ticker)
	DO UPDATE SET
		cik = EXCLUDED.cik,
		company_name = EXCLUDED.company_name,
		exchange = EXCLUDED.exchange,
		is_active = EXCLUDED.is_active,
		last_updated = EXCLUDED.last_updated
`

func scanMapping(row pgx.Row) (*models.CIKTickerMapping, error) {
	var m models.CIKTickerMapping
	if err := row.Scan(&m.Ticker, &m.CIK, &m.CompanyName, &m.Exchange, &m.IsActive, &m.LastUpdated); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *pgMappings) GetByCIK(ctx context.Context, cik string) (*models.CIKTickerMapping, error) {
	padded := models.PadCIK(cik)
	m, err := scanMapping(r.db.QueryRow(ctx,
		`SELECT `+mappingColumns+` FROM cik_ticker_mappings WHERE cik = $1 ORDER BY ticker LIMIT 1`, padded))
	if err != nil {
		return nil, notFound(err, "mapping for CIK %s", padded)
	}
	return m, nil
}

func (r *pgMappings) GetByTicker(ctx context.Context, ticker string) (*models.CIKTickerMapping, error) {
	t := models.NormalizeTicker(ticker)
	m, err := scanMapping(r.db.QueryRow(ctx,
		`SELECT `+mappingColumns+` FROM cik_ticker_mappings WHERE ticker = $1`, t))
	if err != nil {
		return nil, notFound(err, "mapping for ticker %s", t)
	}
	return m, nil
}

func (r *pgMappings) Save(ctx context.Context, m *models.CIKTickerMapping) error {
	if m == nil || m.CIK == "" || m.Ticker == "" {
		return fmt.Errorf("mapping CIK and ticker are required")
	}
	*m = normalizeMapping(*m)
	if _, err := r.db.Exec(ctx, upsertMappingSQL, m.Ticker, m.CIK, m.CompanyName, m.Exchange, m.IsActive, m.LastUpdated); err != nil {
		return fmt.Errorf("failed to save mapping %s: %w", m.Ticker, err)
	}
	return nil
}

func (r *pgMappings) SaveAll(ctx context.Context, ms []models.CIKTickerMapping) (int, error) {
	order := make([]string, 0, len(ms))
	unique := make(map[string]models.CIKTickerMapping, len(ms))
	for _, m := range ms {
		if m.CIK == "" || m.Ticker == "" {
			continue
		}
		n := normalizeMapping(m)
		if _, seen := unique[n.Ticker]; !seen {
			order = append(order, n.Ticker)
		}
		unique[n.Ticker] = n
	}
	if len(order) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, t := range order {
		m := unique[t]
		batch.Queue(upsertMappingSQL, m.Ticker, m.CIK, m.CompanyName, m.Exchange, m.IsActive, m.LastUpdated)
	}
	br := r.db.SendBatch(ctx, batch)
	defer br.Close()
	for _, t := range order {
		if _, err := br.Exec(); err != nil {
			return 0, fmt.Errorf("failed to save mapping %s: %w", t, err)
		}
	}
	return len(order), nil
}

func (r *pgMappings) List(ctx context.Context) ([]models.CIKTickerMapping, error) {
	rows, err := r.db.Query(ctx, `SELECT `+mappingColumns+` FROM cik_ticker_mappings ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	defer rows.Close()

	out := make([]models.CIKTickerMapping, 0)
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mapping: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}
