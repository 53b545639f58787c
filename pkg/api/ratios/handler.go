// Package ratios serves categorized financial ratio reports.
package ratios

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/api/respond"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/analysis"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/calc"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/models"
)

// Handler serves /financial-analysis.
type Handler struct {
	analysis *analysis.Service
}

func NewHandler(svc *analysis.Service) *Handler {
	return &Handler{analysis: svc}
}

// Routes mounts the handler on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/financial-analysis/ratios", func(r chi.Router) {
		r.Get("/compare", h.HandleCompare)
		r.Get("/definitions", h.HandleDefinitions)
		r.Get("/definitions/{key}", h.HandleDefinition)
		r.Get("/{ticker}", h.HandleReport)
	})
}

// HandleReport handles GET /financial-analysis/ratios/{ticker}?price=
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	ticker := models.NormalizeTicker(chi.URLParam(r, "ticker"))

	var price *float64
	if raw := r.URL.Query().Get("price"); raw != "" {
		p, err := strconv.ParseFloat(raw, 64)
		if err != nil || p <= 0 {
			respond.Error(w, r, http.StatusBadRequest, "price must be a positive number")
			return
		}
		price = &p
	}

	rep := h.analysis.RatioReport(r.Context(), ticker, price)
	if rep == nil {
		respond.Error(w, r, http.StatusNotFound, "Company with ticker %s not found", ticker)
		return
	}
	respond.JSON(w, r, rep)
}

// HandleCompare handles GET /financial-analysis/ratios/compare?tickers=&ratio_types=
func (h *Handler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	var tickers []string
	for _, t := range respond.CSV(r.URL.Query().Get("tickers")) {
		tickers = append(tickers, models.NormalizeTicker(t))
	}
	if len(tickers) == 0 {
		respond.Error(w, r, http.StatusBadRequest, "tickers query parameter is required")
		return
	}

	var categories []calc.Category
	for _, raw := range respond.CSV(r.URL.Query().Get("ratio_types")) {
		c, ok := parseCategory(raw)
		if !ok {
			respond.Error(w, r, http.StatusBadRequest, "unknown ratio type %q", raw)
			return
		}
		categories = append(categories, c)
	}

	respond.JSON(w, r, map[string]any{
		"comparison": h.analysis.CompareRatioReports(r.Context(), tickers, categories),
		"tickers":    tickers,
	})
}

// parseCategory accepts "liquidity_ratios" as well as the bare "liquidity".
func parseCategory(s string) (calc.Category, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !strings.HasSuffix(s, "_ratios") {
		s += "_ratios"
	}
	for _, c := range []calc.Category{calc.Liquidity, calc.Solvency, calc.Profitability, calc.Valuation} {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

type definition struct {
	Key            string              `json:"key"`
	ReportKey      string              `json:"report_key"`
	Category       calc.Category       `json:"category"`
	Description    string              `json:"description"`
	Formula        string              `json:"formula"`
	Interpretation calc.Interpretation `json:"interpretation"`
}

func newDefinition(r calc.Ratio) definition {
	return definition{
		Key:            r.Key,
		ReportKey:      r.ReportKey,
		Category:       r.Category,
		Description:    r.Description,
		Formula:        r.Formula,
		Interpretation: r.Interpretation,
	}
}

// HandleDefinitions handles GET /financial-analysis/ratios/definitions
func (h *Handler) HandleDefinitions(w http.ResponseWriter, r *http.Request) {
	keys := calc.RatioKeys()
	out := make([]definition, 0, len(keys))
	for _, k := range keys {
		if ratio, ok := calc.RatioByKey(k); ok {
			out = append(out, newDefinition(ratio))
		}
	}
	respond.JSON(w, r, out)
}

// HandleDefinition handles GET /financial-analysis/ratios/definitions/{key}.
// key is either the short key (ROE) or the report key (return_on_equity).
func (h *Handler) HandleDefinition(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	ratio, ok := calc.RatioByKey(key)
	if !ok {
		respond.Error(w, r, http.StatusNotFound, "Unknown ratio %s", key)
		return
	}
	respond.JSON(w, r, newDefinition(ratio))
}
