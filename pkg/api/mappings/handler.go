// Package mappings serves the stored CIK-ticker mappings and the XBRL tag
// table used to normalize metrics.
package mappings

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/api/respond"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/mapping"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/store"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/models"
)

const defaultListLimit = 100

type Handler struct {
	mappings  store.MappingRepository
	companies store.CompanyRepository
	tags      *mapping.TagTable
}

// NewHandler wires a handler. A nil tags falls back to the built-in table.
func NewHandler(mappings store.MappingRepository, companies store.CompanyRepository, tags *mapping.TagTable) *Handler {
	if tags == nil {
		tags = mapping.Default()
	}
	return &Handler{mappings: mappings, companies: companies, tags: tags}
}

// Routes mounts the handler on r. POST /cik-mappings/sync lives with the
// company sync routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/cik-mappings", h.HandleList)
	r.Get("/cik-mappings/{cik}", h.HandleGet)
	r.Get("/mappings", h.HandleTags)
	r.Get("/mappings/{metric}", h.HandleMetric)
}

type mappingView struct {
	models.CIKTickerMapping
	EDGARURL string `json:"edgar_url"`
}

func view(m models.CIKTickerMapping) mappingView {
	return mappingView{CIKTickerMapping: m, EDGARURL: m.EDGARURL()}
}

// HandleList handles GET /cik-mappings?skip=&limit=
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
	all, err := h.mappings.List(r.Context())
	if err != nil {
		respond.Error(w, r, http.StatusInternalServerError, "list CIK mappings: %v", err)
		return
	}
	items := make([]mappingView, 0, len(all))
	for _, m := range respond.Paginate(all, skip, limit) {
		items = append(items, view(m))
	}
	respond.JSON(w, r, map[string]any{
		"total":    len(all),
		"mappings": items,
	})
}

// HandleGet handles GET /cik-mappings/{cik}. The synced company, when there is
// one, is included.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	cik := chi.URLParam(r, "cik")
	m, err := h.mappings.GetByCIK(r.Context(), cik)
	switch {
	case errors.Is(err, store.ErrNotFound):
		respond.Error(w, r, http.StatusNotFound, "No mapping for CIK %s", cik)
		return
	case err != nil:
		respond.Error(w, r, http.StatusInternalServerError, "load mapping %s: %v", cik, err)
		return
	}

	resp := map[string]any{"mapping": view(*m)}
	c, err := h.companies.GetByCIK(r.Context(), m.CIK)
	switch {
	case err == nil:
		resp["company"] = c
	case !errors.Is(err, store.ErrNotFound):
		respond.Error(w, r, http.StatusInternalServerError, "load company for CIK %s: %v", cik, err)
		return
	}
	respond.JSON(w, r, resp)
}

// HandleTags handles GET /mappings[?tag=]. With tag, only the metric the tag
// normalizes to is returned.
func (h *Handler) HandleTags(w http.ResponseWriter, r *http.Request) {
	if tag := strings.TrimSpace(r.URL.Query().Get("tag")); tag != "" {
		name, ok := h.tags.Canonical(tag)
		if !ok {
			respond.Error(w, r, http.StatusNotFound, "Tag %s is not mapped to a metric", tag)
			return
		}
		m, _ := h.tags.Metric(name)
		respond.JSON(w, r, m)
		return
	}
	respond.JSON(w, r, h.tags.Metrics)
}

// HandleMetric handles GET /mappings/{metric}
func (h *Handler) HandleMetric(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "metric")
	tags := h.tags.Tags(name)
	if tags == nil {
		respond.Error(w, r, http.StatusNotFound, "Unknown metric %s", name)
		return
	}
	respond.JSON(w, r, map[string]any{
		"metric": name,
		"tags":   tags,
		"units":  h.tags.UnitsFor(name),
		"flow":   h.tags.IsFlow(name),
	})
}
