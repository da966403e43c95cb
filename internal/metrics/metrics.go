// Package metrics holds the Prometheus instrumentation for the
// acquisition rounds and the read API.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the snapshot pipeline.
type Metrics struct {
	registry *prometheus.Registry

	RoundsTotal   prometheus.Counter
	RoundFailures prometheus.Counter
	RoundDuration prometheus.Histogram

	// Per-method fetch outcomes, labels: method (text|vision), result (ok|failed).
	TargetsTotal *prometheus.CounterVec

	ObservationsWritten prometheus.Counter
	RecordsUpserted     prometheus.Counter
	HighConfidence      prometheus.Counter

	HTTPRequests *prometheus.CounterVec
}

// New registers and returns all pipeline metrics on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RoundsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bullion_rounds_total",
			Help: "Total acquisition rounds started",
		}),
		RoundFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bullion_round_failures_total",
			Help: "Acquisition rounds that ended in error",
		}),
		RoundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bullion_round_duration_seconds",
			Help:    "Wall-clock duration of a full acquisition round",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		TargetsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bullion_targets_total",
			Help: "Per-target fetch outcomes by extraction method",
		}, []string{"method", "result"}),
		ObservationsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bullion_observations_written_total",
			Help: "Raw observations appended to the store",
		}),
		RecordsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bullion_daily_records_upserted_total",
			Help: "Reconciled daily records written",
		}),
		HighConfidence: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bullion_high_confidence_total",
			Help: "Reconciled prices scoring at or above the trust threshold",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bullion_http_requests_total",
			Help: "Read API requests by route and status",
		}, []string{"route", "status"}),
	}

	m.registry.MustRegister(
		m.RoundsTotal,
		m.RoundFailures,
		m.RoundDuration,
		m.TargetsTotal,
		m.ObservationsWritten,
		m.RecordsUpserted,
		m.HighConfidence,
		m.HTTPRequests,
	)

	return m
}

// Handler exposes the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
