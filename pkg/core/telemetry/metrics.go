// Package telemetry exposes Prometheus instruments for EDGAR traffic, cache
// efficiency and sync runs. A nil *Metrics is valid and records nothing.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "secdash"

// Metrics groups the collectors used across the service.
type Metrics struct {
	EDGARRequests *prometheus.CounterVec
	EDGARLatency  *prometheus.HistogramVec
	CacheLookups  *prometheus.CounterVec
	SyncRuns      *prometheus.CounterVec
	MetricsSaved  prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EDGARRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edgar_requests_total",
			Help:      "Requests sent to SEC EDGAR by endpoint and HTTP status.",
		}, []string{"endpoint", "status"}),
		EDGARLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "edgar_request_duration_seconds",
			Help:      "Latency of SEC EDGAR requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Response cache lookups by cache and result (hit, miss, bypass).",
		}, []string{"cache", "result"}),
		SyncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Company sync runs by outcome.",
		}, []string{"outcome"}),
		MetricsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metrics_saved_total",
			Help:      "Financial metric observations written to the repository.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.EDGARRequests, m.EDGARLatency, m.CacheLookups, m.SyncRuns, m.MetricsSaved)
	}
	return m
}

// ObserveRequest records one EDGAR round trip.
func (m *Metrics) ObserveRequest(endpoint, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.EDGARRequests.WithLabelValues(endpoint, status).Inc()
	m.EDGARLatency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// CacheResult records a cache lookup outcome.
func (m *Metrics) CacheResult(cache, result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(cache, result).Inc()
}

// SyncOutcome records a finished company sync.
func (m *Metrics) SyncOutcome(ok bool, saved int) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.SyncRuns.WithLabelValues(outcome).Inc()
	m.MetricsSaved.Add(float64(saved))
}
