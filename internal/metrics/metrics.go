// Package metrics exposes Prometheus collectors for the screening pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the Prometheus collectors registered by Shrike. All
// collectors live on a private registry so tests can create multiple
// instances without duplicate-registration panics.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	ChecksTotal     *prometheus.CounterVec
	AnalysesTotal   *prometheus.CounterVec
	FraudsDetected  *prometheus.CounterVec
	RecordsScreened prometheus.Counter
}

// New creates and registers all collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shrike",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, path, and status code.",
		}, []string{"method", "path", "status"}),

		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shrike",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		ChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shrike",
			Name:      "checks_total",
			Help:      "Single-transaction checks by verdict.",
		}, []string{"verdict"}),

		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shrike",
			Name:      "analyses_total",
			Help:      "Batch analyses by path (exact, sampled, fallback).",
		}, []string{"path"}),

		FraudsDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shrike",
			Name:      "frauds_detected_total",
			Help:      "Fraudulent transactions flagged, by source.",
		}, []string{"source"}),

		RecordsScreened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shrike",
			Name:      "records_screened_total",
			Help:      "Total transaction records screened.",
		}),
	}

	registry.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.ChecksTotal,
		m.AnalysesTotal,
		m.FraudsDetected,
		m.RecordsScreened,
	)

	return m
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveAnalysis records the outcome of one batch analysis.
func (m *Metrics) ObserveAnalysis(path string, total, fraudulent int) {
	m.AnalysesTotal.WithLabelValues(path).Inc()
	m.RecordsScreened.Add(float64(total))
	m.FraudsDetected.WithLabelValues("batch").Add(float64(fraudulent))
}
