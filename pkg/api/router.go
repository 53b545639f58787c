// Package api assembles the HTTP router.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/api/companies"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/api/mappings"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/api/ratios"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/api/respond"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/analysis"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/logging"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/mapping"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/store"
)

// Deps are the services the routes call into. StoredFilings, Filings, Syncer,
// Tags and Gatherer are optional.
type Deps struct {
	Companies     store.CompanyRepository
	StoredFilings store.FilingRepository
	Mappings      store.MappingRepository
	Analysis      *analysis.Service
	Filings       companies.FilingSource
	Syncer        companies.Syncer
	Tags          *mapping.TagTable
	Gatherer      prometheus.Gatherer
}

// NewRouter builds the chi router with every route mounted.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(respond.CORS)

	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			respond.JSON(w, r, map[string]string{"status": "ok"})
		})
		companies.NewHandler(d.Companies, d.StoredFilings, d.Analysis, d.Filings, d.Syncer).Routes(r)
		mappings.NewHandler(d.Mappings, d.Companies, d.Tags).Routes(r)
		ratios.NewHandler(d.Analysis).Routes(r)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, r, http.StatusNotFound, "route %s not found", r.URL.Path)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		entry := logging.Component("http").WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		})
		if ww.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request served")
	})
}
