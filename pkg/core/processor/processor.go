// Package processor pulls company data from EDGAR into the repositories:
// ticker mappings, company records, filings and canonical metric
// observations.
package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/edgar"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/logging"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/mapping"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/store"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/telemetry"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/models"
)

// ErrNoMapping is returned when a ticker has no known CIK.
var ErrNoMapping = errors.New("processor: no CIK mapping for ticker")

// FactsSource is the part of the EDGAR client the processor needs.
type FactsSource interface {
	CompanyTickers(ctx context.Context, force bool) ([]edgar.TickerEntry, error)
	Submissions(ctx context.Context, cik string, force bool) (*edgar.Submissions, error)
	CompanyFacts(ctx context.Context, cik string, force bool) (*edgar.CompanyFacts, error)
}

// SyncReport summarizes one company sync.
type SyncReport struct {
	RunID            string    `json:"run_id"`
	Ticker           string    `json:"ticker"`
	CIK              string    `json:"cik"`
	CompanyName      string    `json:"company_name"`
	FilingsSeen      int       `json:"filings_seen"`
	FilingsSaved     int       `json:"filings_saved"`
	MetricsExtracted int       `json:"metrics_extracted"`
	MetricsSaved     int       `json:"metrics_saved"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	ElapsedMS        int64     `json:"elapsed_ms"`
}

// Processor syncs EDGAR data into repositories.
type Processor struct {
	source  FactsSource
	repos   *store.Repositories
	tags    *mapping.TagTable
	metrics *telemetry.Metrics
	now     func() time.Time
}

// Option configures a Processor.
type Option func(*Processor)

// WithTagTable overrides the embedded canonical tag table.
func WithTagTable(t *mapping.TagTable) Option {
	return func(p *Processor) {
		if t != nil {
			p.tags = t
		}
	}
}

// WithMetrics records sync outcomes.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// New creates a processor.
func New(source FactsSource, repos *store.Repositories, opts ...Option) *Processor {
	p := &Processor{
		source: source,
		repos:  repos,
		tags:   mapping.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func componentLog() *logrus.Entry {
	return logging.Component("processor")
}

// Tags returns the canonical tag table in use.
func (p *Processor) Tags() *mapping.TagTable {
	return p.tags
}

// SyncCIKTickerMappings refreshes ticker <-> CIK mappings from the SEC ticker
// list and returns how many were stored.
func (p *Processor) SyncCIKTickerMappings(ctx context.Context, force bool) (int, error) {
	entries, err := p.source.CompanyTickers(ctx, force)
	if err != nil {
		return 0, err
	}
	now := p.now()
	mappings := make([]models.CIKTickerMapping, 0, len(entries))
	for _, e := range entries {
		if e.CIK == 0 || strings.TrimSpace(e.Ticker) == "" {
			continue
		}
		mappings = append(mappings, models.CIKTickerMapping{
			CIK:         e.PaddedCIK(),
			Ticker:      e.Ticker,
			CompanyName: e.Title,
			IsActive:    true,
			LastUpdated: now,
		})
	}
	n, err := p.repos.Mappings.SaveAll(ctx, mappings)
	if err != nil {
		return 0, fmt.Errorf("save mappings: %w", err)
	}
	componentLog().WithField("count", n).Info("Synchronized CIK-ticker mappings")
	return n, nil
}

// resolveMapping finds the stored mapping for ticker, refreshing the mapping
// table once when it is missing.
func (p *Processor) resolveMapping(ctx context.Context, ticker string) (*models.CIKTickerMapping, error) {
	m, err := p.repos.Mappings.GetByTicker(ctx, ticker)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if _, err := p.SyncCIKTickerMappings(ctx, false); err != nil {
		return nil, fmt.Errorf("refresh mappings: %w", err)
	}
	m, err = p.repos.Mappings.GetByTicker(ctx, ticker)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNoMapping, ticker)
	}
	return m, err
}

// SyncCompany refreshes one company: its record, its 10-K/10-Q filings and
// its canonical metrics. Saving is idempotent; re-running a sync overwrites
// observations with the same identity.
func (p *Processor) SyncCompany(ctx context.Context, ticker string, force bool) (*SyncReport, error) {
	ticker = models.NormalizeTicker(ticker)
	report := &SyncReport{
		RunID:     uuid.NewString(),
		Ticker:    ticker,
		StartedAt: p.now(),
	}
	log := componentLog().WithFields(logrus.Fields{"ticker": ticker, "run_id": report.RunID})

	err := p.syncCompany(ctx, report, force)
	report.FinishedAt = p.now()
	report.ElapsedMS = report.FinishedAt.Sub(report.StartedAt).Milliseconds()
	p.metrics.SyncOutcome(err == nil, report.MetricsSaved)
	if err != nil {
		log.WithError(err).Error("Company sync failed")
		return report, err
	}
	log.WithFields(logrus.Fields{
		"filings": report.FilingsSaved,
		"metrics": report.MetricsSaved,
		"elapsed": report.ElapsedMS,
	}).Info("Company sync finished")
	return report, nil
}

func (p *Processor) syncCompany(ctx context.Context, report *SyncReport, force bool) error {
	m, err := p.resolveMapping(ctx, report.Ticker)
	if err != nil {
		return err
	}
	report.CIK = m.CIK

	subs, err := p.source.Submissions(ctx, m.CIK, force)
	if err != nil {
		return fmt.Errorf("submissions for %s: %w", report.Ticker, err)
	}

	company, err := p.upsertCompany(ctx, report.Ticker, m, subs)
	if err != nil {
		return err
	}
	report.CompanyName = company.Name

	fresh, seen, err := p.processFilings(ctx, company, subs, force)
	if err != nil {
		return err
	}
	report.FilingsSeen = seen
	report.FilingsSaved = len(fresh)

	facts, err := p.source.CompanyFacts(ctx, m.CIK, force)
	if err != nil {
		return fmt.Errorf("company facts for %s: %w", report.Ticker, err)
	}
	extracted := ExtractMetrics(facts, company.Ticker, p.tags)
	report.MetricsExtracted = len(extracted)
	if len(extracted) == 0 {
		componentLog().WithField("ticker", company.Ticker).Warn("No canonical facts found")
	}

	saved, err := p.repos.Metrics.SaveAll(ctx, extracted)
	if err != nil {
		return fmt.Errorf("save metrics for %s: %w", report.Ticker, err)
	}
	report.MetricsSaved = saved

	return p.markProcessed(ctx, fresh, extracted)
}

func (p *Processor) upsertCompany(ctx context.Context, ticker string, m *models.CIKTickerMapping, subs *edgar.Submissions) (*models.Company, error) {
	company, err := p.repos.Companies.GetByTicker(ctx, ticker)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		company = &models.Company{Ticker: ticker}
	}

	company.CIK = m.CIK
	company.Name = m.CompanyName
	if company.Name == "" {
		company.Name = subs.Name
	}
	if subs.SIC != "" {
		company.SICCode = subs.SIC
	}
	// Sector and industry may have been curated by hand; only fill gaps.
	if company.Sector == "" {
		company.Sector = SectorForSIC(subs.SIC)
	}
	if company.Industry == "" {
		company.Industry = subs.SICDescription
	}
	if company.Exchange == "" && len(subs.Exchanges) > 0 {
		company.Exchange = subs.Exchanges[0]
	}
	if company.Description == "" {
		company.Description = subs.Description
	}
	if company.Website == "" {
		company.Website = subs.Website
	}

	if err := p.repos.Companies.Save(ctx, company); err != nil {
		return nil, fmt.Errorf("save company %s: %w", ticker, err)
	}
	return company, nil
}

// processFilings stores the 10-K and 10-Q filings (amendments included) not
// already known. With force every filing is rewritten. It returns the filings
// written and the number of periodic filings seen.
func (p *Processor) processFilings(ctx context.Context, company *models.Company, subs *edgar.Submissions, force bool) ([]models.Filing, int, error) {
	records := subs.Filings.Recent.Records()
	if len(records) == 0 {
		componentLog().WithField("ticker", company.Ticker).Warn("No recent filings found")
		return nil, 0, nil
	}

	var fresh []models.Filing
	seen := 0
	for _, rec := range records {
		f := models.Filing{
			AccessionNumber: rec.AccessionNumber,
			CompanyID:       company.Ticker,
			FormType:        rec.Form,
			FilingDate:      rec.FilingDate,
			PeriodEndDate:   rec.ReportDate,
			PrimaryDocument: rec.PrimaryDocument,
			FileNumber:      rec.FileNumber,
			IsAmended:       strings.HasSuffix(strings.ToUpper(rec.Form), "/A"),
		}
		if !f.IsAnnual() && !f.IsQuarterly() {
			continue
		}
		seen++

		existing, err := p.repos.Filings.Get(ctx, f.AccessionNumber)
		switch {
		case err == nil && !force:
			continue
		case err == nil:
			f.IsProcessed = existing.IsProcessed
			f.ProcessedAt = existing.ProcessedAt
		case !errors.Is(err, store.ErrNotFound):
			return nil, seen, err
		}

		if f.PrimaryDocument != "" {
			f.URL = edgar.DocumentURL(company.CIK, f.AccessionNumber, f.PrimaryDocument)
		}
		if err := p.repos.Filings.Save(ctx, &f); err != nil {
			return nil, seen, fmt.Errorf("save filing %s: %w", f.AccessionNumber, err)
		}
		fresh = append(fresh, f)
	}
	componentLog().WithFields(logrus.Fields{"ticker": company.Ticker, "saved": len(fresh), "seen": seen}).
		Info("Processed filings")
	return fresh, seen, nil
}

// markProcessed flags the filings that contributed at least one observation.
func (p *Processor) markProcessed(ctx context.Context, filings []models.Filing, extracted []models.FinancialMetric) error {
	if len(filings) == 0 {
		return nil
	}
	used := make(map[string]bool, len(extracted))
	for _, m := range extracted {
		if m.XBRLContext != "" {
			used[m.XBRLContext] = true
		}
	}
	now := p.now()
	for _, f := range filings {
		if !used[f.AccessionNumber] || f.IsProcessed {
			continue
		}
		f.IsProcessed = true
		f.ProcessedAt = &now
		if err := p.repos.Filings.Save(ctx, &f); err != nil {
			return fmt.Errorf("mark filing %s processed: %w", f.AccessionNumber, err)
		}
	}
	return nil
}
