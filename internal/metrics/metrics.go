// Package metrics provides Prometheus metrics for clinote.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics.
type Metrics struct {
	registry *prometheus.Registry

	AssistantRequests   *prometheus.CounterVec
	AssistantDuration   *prometheus.HistogramVec
	BreakerState        *prometheus.GaugeVec
	PersistenceFailures *prometheus.CounterVec
	PersistenceDegraded prometheus.Gauge
	HistoryEntries      prometheus.Gauge
	Exports             *prometheus.CounterVec
	PayloadsIngested    *prometheus.CounterVec
}

// New creates all metrics on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		AssistantRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clinote_assistant_requests_total",
			Help: "Assistant requests by operation and outcome",
		}, []string{"operation", "outcome"}),
		AssistantDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clinote_assistant_request_duration_seconds",
			Help:    "Assistant request duration",
			Buckets: []float64{.25, .5, 1, 2, 4, 8, 16, 32},
		}, []string{"operation"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "clinote_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
		PersistenceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clinote_persistence_failures_total",
			Help: "Store operations that failed and were swallowed",
		}, []string{"operation"}),
		PersistenceDegraded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "clinote_persistence_degraded",
			Help: "1 when the session fell back to in-memory storage",
		}),
		HistoryEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "clinote_history_entries",
			Help: "Notes currently held in history",
		}),
		Exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clinote_exports_total",
			Help: "Exports by format",
		}, []string{"format"}),
		PayloadsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clinote_payloads_ingested_total",
			Help: "Transfer payloads by outcome (merged or ignored)",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.AssistantRequests,
		m.AssistantDuration,
		m.BreakerState,
		m.PersistenceFailures,
		m.PersistenceDegraded,
		m.HistoryEntries,
		m.Exports,
		m.PayloadsIngested,
	)

	return m
}

// Registry exposes the underlying registry for tests and custom collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
