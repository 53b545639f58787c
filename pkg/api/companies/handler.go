// Package companies serves company data, metric analysis, filings and sync
// triggers over HTTP.
package companies

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/api/respond"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/analysis"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/edgar"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/export"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/processor"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/report"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/store"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/models"
)

const (
	defaultListLimit  = 100
	defaultTenKLimit  = 5
	xlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	markdownMediaType = "text/markdown; charset=utf-8"
)

// Syncer pulls fresh data from EDGAR into the repositories.
type Syncer interface {
	SyncCIKTickerMappings(ctx context.Context, force bool) (int, error)
	SyncCompany(ctx context.Context, ticker string, force bool) (*processor.SyncReport, error)
}

// FilingSource reads filings and XBRL facts straight from EDGAR.
type FilingSource interface {
	LookupCIK(ctx context.Context, ticker string) (string, error)
	Submissions(ctx context.Context, cik string, force bool) (*edgar.Submissions, error)
	FilingDocuments(ctx context.Context, cik, accession string) ([]edgar.FilingDocument, error)
	CompanyFacts(ctx context.Context, cik string, force bool) (*edgar.CompanyFacts, error)
	CompanyConcept(ctx context.Context, cik, tag string, force bool) (*edgar.CompanyConcept, error)
}

// Handler serves /companies, /sectors and /cik-mappings/sync.
type Handler struct {
	companies store.CompanyRepository
	stored    store.FilingRepository
	analysis  *analysis.Service
	filings   FilingSource
	syncer    Syncer
	now       func() time.Time
}

// NewHandler wires a handler. stored, filings and syncer may be nil, in which
// case the routes that need them answer 503.
func NewHandler(companies store.CompanyRepository, stored store.FilingRepository, svc *analysis.Service, filings FilingSource, syncer Syncer) *Handler {
	return &Handler{
		companies: companies,
		stored:    stored,
		analysis:  svc,
		filings:   filings,
		syncer:    syncer,
		now:       time.Now,
	}
}

// Routes mounts the handler on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/companies", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Get("/compare/{metric}", h.HandleCompare)
		r.Route("/{ticker}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Get("/metrics/{metric}", h.HandleMetric)
			r.Get("/ratios", h.HandleRatios)
			r.Get("/10k", h.HandleTenK)
			r.Get("/facts", h.HandleFacts)
			r.Get("/filings", h.HandleFilings)
			r.Get("/filings/{accession}/documents", h.HandleDocuments)
			r.Get("/report", h.HandleReport)
			r.Post("/sync", h.HandleSync)
		})
	})
	r.Get("/sectors/{sector}/averages/{metric}", h.HandleSectorAverages)
	r.Post("/cik-mappings/sync", h.HandleSyncMappings)
}

func queryBool(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

// company loads the path ticker or writes a 404 and returns nil.
func (h *Handler) company(w http.ResponseWriter, r *http.Request) *models.Company {
	ticker := models.NormalizeTicker(chi.URLParam(r, "ticker"))
	c, err := h.companies.GetByTicker(r.Context(), ticker)
	switch {
	case errors.Is(err, store.ErrNotFound):
		respond.Error(w, r, http.StatusNotFound, "Company with ticker %s not found", ticker)
		return nil
	case err != nil:
		respond.Error(w, r, http.StatusInternalServerError, "load company %s: %v", ticker, err)
		return nil
	}
	return c
}

// HandleList handles GET /companies?skip=&limit=[&sector=|&industry=]
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	skip, err := respond.QueryInt(r, "skip", 0)
	if err != nil {
		respond.Error(w, r, http.StatusBadRequest, "%v", err)
		return
	}
	limit, err := respond.QueryInt(r, "limit", defaultListLimit)
	if err != nil {
		respond.Error(w, r, http.StatusBadRequest, "%v", err)
		return
	}

	var list []models.Company
	q := r.URL.Query()
	switch {
	case q.Get("industry") != "":
		list, err = h.companies.FindByIndustry(r.Context(), q.Get("industry"))
		list = respond.Paginate(list, skip, limit)
	case q.Get("sector") != "":
		list, err = h.companies.FindBySector(r.Context(), q.Get("sector"))
		list = respond.Paginate(list, skip, limit)
	default:
		list, err = h.companies.List(r.Context(), skip, limit)
	}
	if err != nil {
		respond.Error(w, r, http.StatusInternalServerError, "list companies: %v", err)
		return
	}
	if list == nil {
		list = []models.Company{}
	}
	respond.JSON(w, r, list)
}

// HandleGet handles GET /companies/{ticker}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if c := h.company(w, r); c != nil {
		respond.JSON(w, r, c)
	}
}

// HandleMetric handles GET /companies/{ticker}/metrics/{metric}?period=
func (h *Handler) HandleMetric(w http.ResponseWriter, r *http.Request) {
	period := models.PeriodAnnual
	if raw := r.URL.Query().Get("period"); raw != "" {
		p, err := models.ParsePeriod(raw)
		if err != nil {
			respond.Error(w, r, http.StatusBadRequest, "%v", err)
			return
		}
		period = p
	}
	ticker := models.NormalizeTicker(chi.URLParam(r, "ticker"))
	metric := chi.URLParam(r, "metric")

	a := h.analysis.AnalyzeMetric(r.Context(), ticker, metric, period)
	if len(a.TimeSeries) == 0 {
		respond.Error(w, r, http.StatusNotFound, "No data found for %s %s (%s)", ticker, metric, period)
		return
	}
	respond.JSON(w, r, a)
}

// HandleRatios handles GET /companies/{ticker}/ratios
func (h *Handler) HandleRatios(w http.ResponseWriter, r *http.Request) {
	c := h.company(w, r)
	if c == nil {
		return
	}
	respond.JSON(w, r, h.analysis.FinancialRatios(r.Context(), c.Ticker))
}

type tenKResponse struct {
	Ticker  string             `json:"ticker"`
	Name    string             `json:"name"`
	CIK     string             `json:"cik"`
	Filings []edgar.FilingLink `json:"filings"`
	Message string             `json:"message,omitempty"`
}

// HandleTenK handles GET /companies/{ticker}/10k?limit=
func (h *Handler) HandleTenK(w http.ResponseWriter, r *http.Request) {
	if h.filings == nil {
		respond.Error(w, r, http.StatusServiceUnavailable, "EDGAR access is not configured")
		return
	}
	limit, err := respond.QueryInt(r, "limit", defaultTenKLimit)
	if err != nil {
		respond.Error(w, r, http.StatusBadRequest, "%v", err)
		return
	}
	c := h.company(w, r)
	if c == nil {
		return
	}
	if c.CIK == "" {
		respond.Error(w, r, http.StatusNotFound, "CIK not found for %s", c.Ticker)
		return
	}

	subs, err := h.filings.Submissions(r.Context(), c.CIK, false)
	if err != nil {
		respond.Error(w, r, http.StatusBadGateway, "Error fetching 10-K filings: %v", err)
		return
	}
	resp := tenKResponse{Ticker: c.Ticker, Name: c.Name, CIK: c.CIK, Filings: edgar.TenKFilings(subs, limit, h.now())}
	if len(resp.Filings) == 0 {
		resp.Filings = []edgar.FilingLink{}
		resp.Message = "No valid 10-K filings found."
	}
	respond.JSON(w, r, resp)
}

// resolveCIK returns the stored company's CIK, falling back to the SEC ticker
// list for companies that were never synced.
func (h *Handler) resolveCIK(ctx context.Context, ticker string) (string, error) {
	c, err := h.companies.GetByTicker(ctx, ticker)
	switch {
	case err == nil && c.CIK != "":
		return c.CIK, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return "", err
	}
	return h.filings.LookupCIK(ctx, ticker)
}

// HandleFacts handles GET /companies/{ticker}/facts[?tag=&force_refresh=]
//
// Without tag the whole companyfacts document is returned; with tag only the
// us-gaap concept.
func (h *Handler) HandleFacts(w http.ResponseWriter, r *http.Request) {
	if h.filings == nil {
		respond.Error(w, r, http.StatusServiceUnavailable, "EDGAR access is not configured")
		return
	}
	ticker := models.NormalizeTicker(chi.URLParam(r, "ticker"))
	force := queryBool(r, "force_refresh")

	cik, err := h.resolveCIK(r.Context(), ticker)
	switch {
	case errors.Is(err, edgar.ErrNotFound):
		respond.Error(w, r, http.StatusNotFound, "CIK not found for %s", ticker)
		return
	case err != nil:
		respond.Error(w, r, http.StatusBadGateway, "resolve CIK for %s: %v", ticker, err)
		return
	}

	var body any
	tag := strings.TrimSpace(r.URL.Query().Get("tag"))
	if tag != "" {
		body, err = h.filings.CompanyConcept(r.Context(), cik, tag, force)
	} else {
		body, err = h.filings.CompanyFacts(r.Context(), cik, force)
	}
	switch {
	case errors.Is(err, edgar.ErrNotFound) && tag != "":
		respond.Error(w, r, http.StatusNotFound, "No %s facts reported by %s", tag, ticker)
		return
	case errors.Is(err, edgar.ErrNotFound):
		respond.Error(w, r, http.StatusNotFound, "No company facts found for %s", ticker)
		return
	case err != nil:
		respond.Error(w, r, http.StatusBadGateway, "Error fetching company facts: %v", err)
		return
	}
	respond.JSON(w, r, body)
}

type filingView struct {
	models.Filing
	FiscalYear    int `json:"fiscal_year"`
	FiscalQuarter int `json:"fiscal_quarter,omitempty"`
}

// HandleFilings handles GET /companies/{ticker}/filings?form= over the
// filings recorded by previous syncs.
func (h *Handler) HandleFilings(w http.ResponseWriter, r *http.Request) {
	if h.stored == nil {
		respond.Error(w, r, http.StatusServiceUnavailable, "filing storage is not configured")
		return
	}
	c := h.company(w, r)
	if c == nil {
		return
	}
	fs, err := h.stored.FindByCompany(r.Context(), c.Ticker, r.URL.Query().Get("form"))
	if err != nil {
		respond.Error(w, r, http.StatusInternalServerError, "list filings for %s: %v", c.Ticker, err)
		return
	}
	out := make([]filingView, 0, len(fs))
	for _, f := range fs {
		out = append(out, filingView{Filing: f, FiscalYear: f.FiscalYear(), FiscalQuarter: f.FiscalQuarter()})
	}
	respond.JSON(w, r, out)
}

// HandleDocuments handles GET /companies/{ticker}/filings/{accession}/documents
func (h *Handler) HandleDocuments(w http.ResponseWriter, r *http.Request) {
	if h.filings == nil {
		respond.Error(w, r, http.StatusServiceUnavailable, "EDGAR access is not configured")
		return
	}
	c := h.company(w, r)
	if c == nil {
		return
	}
	accession := chi.URLParam(r, "accession")
	docs, err := h.filings.FilingDocuments(r.Context(), c.CIK, accession)
	switch {
	case errors.Is(err, edgar.ErrNotFound):
		respond.Error(w, r, http.StatusNotFound, "Filing %s not found", accession)
		return
	case err != nil:
		respond.Error(w, r, http.StatusBadGateway, "fetch filing index: %v", err)
		return
	}
	respond.JSON(w, r, map[string]any{
		"ticker":           c.Ticker,
		"accession_number": accession,
		"index_url":        edgar.IndexURL(c.CIK, accession),
		"documents":        docs,
	})
}

// HandleReport handles GET /companies/{ticker}/report?format=md|html
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	c := h.company(w, r)
	if c == nil {
		return
	}
	md := report.CompanyMarkdown(report.Collect(r.Context(), h.analysis, *c, respond.CSV(r.URL.Query().Get("metrics"))))

	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "", "md", "markdown":
		w.Header().Set("Content-Type", markdownMediaType)
		_, _ = w.Write([]byte(md))
	case "html":
		html, err := report.RenderHTML(md)
		if err != nil {
			respond.Error(w, r, http.StatusInternalServerError, "%v", err)
			return
		}
		render.HTML(w, r, html)
	default:
		respond.Error(w, r, http.StatusBadRequest, "format must be md or html")
	}
}

// HandleSync handles POST /companies/{ticker}/sync?force_refresh=
func (h *Handler) HandleSync(w http.ResponseWriter, r *http.Request) {
	if h.syncer == nil {
		respond.Error(w, r, http.StatusServiceUnavailable, "EDGAR access is not configured")
		return
	}
	ticker := models.NormalizeTicker(chi.URLParam(r, "ticker"))
	rep, err := h.syncer.SyncCompany(r.Context(), ticker, queryBool(r, "force_refresh"))
	switch {
	case errors.Is(err, processor.ErrNoMapping), errors.Is(err, edgar.ErrNotFound):
		respond.Error(w, r, http.StatusNotFound, "Failed to synchronize data for %s: %v", ticker, err)
		return
	case err != nil:
		respond.Error(w, r, http.StatusBadGateway, "Failed to synchronize data for %s: %v", ticker, err)
		return
	}
	respond.JSON(w, r, map[string]any{
		"ticker":            rep.Ticker,
		"name":              rep.CompanyName,
		"cik":               rep.CIK,
		"status":            "synchronized",
		"timestamp":         h.now().UTC().Format(time.RFC3339),
		"run_id":            rep.RunID,
		"filings_saved":     rep.FilingsSaved,
		"metrics_extracted": rep.MetricsExtracted,
		"metrics_saved":     rep.MetricsSaved,
	})
}

// HandleSyncMappings handles POST /cik-mappings/sync?force_refresh=
func (h *Handler) HandleSyncMappings(w http.ResponseWriter, r *http.Request) {
	if h.syncer == nil {
		respond.Error(w, r, http.StatusServiceUnavailable, "EDGAR access is not configured")
		return
	}
	n, err := h.syncer.SyncCIKTickerMappings(r.Context(), queryBool(r, "force_refresh"))
	if err != nil {
		respond.Error(w, r, http.StatusBadGateway, "Failed to synchronize CIK-ticker mappings: %v", err)
		return
	}
	respond.JSON(w, r, map[string]any{
		"count":     n,
		"status":    "synchronized",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// HandleCompare handles GET /companies/compare/{metric}?tickers=A,B[&format=xlsx]
func (h *Handler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	metric := chi.URLParam(r, "metric")
	tickers := respond.CSV(r.URL.Query().Get("tickers"))
	if len(tickers) == 0 {
		respond.Error(w, r, http.StatusBadRequest, "tickers query parameter is required")
		return
	}

	cmp := h.analysis.CompareCompanies(r.Context(), tickers, metric)
	if len(cmp) == 0 {
		respond.Error(w, r, http.StatusNotFound, "No comparison data found for %s across %s", metric, strings.Join(tickers, ","))
		return
	}

	if strings.EqualFold(r.URL.Query().Get("format"), "xlsx") {
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", metric+"_comparison.xlsx"))
		if err := export.WriteComparison(w, metric, cmp); err != nil {
			respond.Error(w, r, http.StatusInternalServerError, "%v", err)
		}
		return
	}
	respond.JSON(w, r, cmp)
}

// HandleSectorAverages handles GET /sectors/{sector}/averages/{metric}
func (h *Handler) HandleSectorAverages(w http.ResponseWriter, r *http.Request) {
	sector := chi.URLParam(r, "sector")
	metric := chi.URLParam(r, "metric")
	stats := h.analysis.SectorAverages(r.Context(), sector, metric)
	if len(stats) == 0 {
		respond.Error(w, r, http.StatusNotFound, "No %s data for sector %s", metric, sector)
		return
	}
	respond.JSON(w, r, map[string]any{
		"sector":     sector,
		"metric":     metric,
		"statistics": stats,
	})
}
