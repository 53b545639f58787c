// Package app wires configuration into the long-lived services shared by the
// API server and the sync CLI.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/analysis"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/config"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/edgar"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/logging"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/mapping"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/processor"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/store"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/telemetry"
)

// App holds the wired services.
type App struct {
	Config    *config.Config
	Registry  *prometheus.Registry
	Metrics   *telemetry.Metrics
	Repos     *store.Repositories
	EDGAR     *edgar.Client
	Processor *processor.Processor
	Analysis  *analysis.Service

	logCloser io.Closer
}

// New configures logging and builds every service from cfg. It refuses to
// start without an SEC contact identity.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.SEC.ValidateIdentity(); err != nil {
		return nil, err
	}
	closer, err := logging.Configure(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	a := &App{Config: cfg, logCloser: closer}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector())
	a.Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = telemetry.New(a.Registry)

	tags, err := mapping.Load(cfg.Mapping.File)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load tag table: %w", err)
	}

	a.EDGAR = edgar.NewClient(cfg.SEC.FullUserAgent(),
		edgar.WithHTTPClient(&http.Client{Timeout: cfg.SEC.Timeout}),
		edgar.WithRateLimit(cfg.SEC.RequestsPerSecond),
		edgar.WithTTLs(edgar.TTLs{
			Tickers:     cfg.SEC.TickersTTL,
			Submissions: cfg.SEC.SubmissionsTTL,
			Facts:       cfg.SEC.FactsTTL,
			Concept:     cfg.SEC.ConceptTTL,
		}),
		edgar.WithCacheDir(cfg.SEC.CacheDir),
		edgar.WithMetrics(a.Metrics),
	)

	a.Repos, err = store.Open(ctx, store.Options{
		Driver:      cfg.Storage.Driver,
		DataDir:     cfg.Storage.DataDir,
		DatabaseURL: cfg.Storage.DatabaseURL,
		Migrate:     cfg.Storage.Migrate,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Driver, err)
	}

	a.Processor = processor.New(a.EDGAR, a.Repos,
		processor.WithTagTable(tags),
		processor.WithMetrics(a.Metrics),
	)
	a.Analysis = analysis.NewService(a.Repos.Companies, a.Repos.Metrics)

	logging.Component("app").WithFields(logrus.Fields{
		"storage": cfg.Storage.Driver,
		"metrics": len(tags.Names()),
		"rps":     cfg.SEC.RequestsPerSecond,
	}).Info("services ready")
	return a, nil
}

// Close persists EDGAR caches and releases storage and log files.
func (a *App) Close() {
	if a.EDGAR != nil {
		if err := a.EDGAR.SaveCaches(); err != nil {
			logging.Component("app").WithError(err).Warn("saving EDGAR caches failed")
		}
	}
	a.Repos.Close()
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}
