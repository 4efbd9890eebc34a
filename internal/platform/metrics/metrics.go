// Copyright (c) 2026 Apphub. All rights reserved.

/*
Package metrics wires the service's Prometheus collectors and satisfies the
small metrics interfaces internal/stream, internal/schemacache and
internal/namespace each declare for themselves: a package depends only on
the handful of methods it needs, not on this whole struct.
*/
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus collector the service registers.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	StreamSubscribers *prometheus.GaugeVec

	SchemaCacheHits   *prometheus.CounterVec
	SchemaCacheMisses *prometheus.CounterVec

	NamespaceRecords        *prometheus.GaugeVec
	NamespaceDeletedRecords *prometheus.GaugeVec

	FilestoreProcessingFailures prometheus.Counter
	FilestoreConnectRetries     prometheus.Counter

	registry *prometheus.Registry
}

// New constructs a Metrics instance with all collectors registered.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metastore_http_requests_total",
			Help: "Total number of HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)
	m.RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metastore_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	m.StreamSubscribers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "metastore_stream_subscribers",
			Help: "Current number of live record stream subscribers by transport.",
		},
		[]string{"transport"},
	)

	m.SchemaCacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metastore_schema_cache_hits_total",
			Help: "Total schema cache hits by kind (positive, negative).",
		},
		[]string{"kind"},
	)
	m.SchemaCacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metastore_schema_cache_misses_total",
			Help: "Total schema cache misses by reason (cold, expired).",
		},
		[]string{"reason"},
	)

	m.NamespaceRecords = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "metastore_namespace_records",
			Help: "Total record count (including soft-deleted) per namespace, as of the last unscoped listNamespaces call.",
		},
		[]string{"namespace"},
	)
	m.NamespaceDeletedRecords = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "metastore_namespace_deleted_records",
			Help: "Soft-deleted record count per namespace, as of the last unscoped listNamespaces call.",
		},
		[]string{"namespace"},
	)

	m.FilestoreProcessingFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "metastore_filestore_processing_failures_total",
			Help: "Total filestore events that failed to reconcile into a record.",
		},
	)
	m.FilestoreConnectRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "metastore_filestore_connect_retries_total",
			Help: "Total reconnect attempts made by the filestore event subscription.",
		},
	)

	m.registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.StreamSubscribers,
		m.SchemaCacheHits,
		m.SchemaCacheMisses,
		m.NamespaceRecords,
		m.NamespaceDeletedRecords,
		m.FilestoreProcessingFailures,
		m.FilestoreConnectRetries,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return m
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Middleware records request count and latency for every request it wraps.
func (m *Metrics) Middleware(routeLabel func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			route := r.URL.Path
			if routeLabel != nil {
				route = routeLabel(r)
			}
			m.RequestsTotal.WithLabelValues(r.Method, route, statusClass(wrapped.statusCode)).Inc()
			m.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// # Adapter methods satisfying the domain packages' own Metrics interfaces.

// SetStreamSubscribers satisfies internal/stream.Metrics.
func (m *Metrics) SetStreamSubscribers(transport string, count int) {
	m.StreamSubscribers.WithLabelValues(transport).Set(float64(count))
}

// IncSchemaCacheHit satisfies internal/schemacache.Metrics.
func (m *Metrics) IncSchemaCacheHit(kind string) {
	m.SchemaCacheHits.WithLabelValues(kind).Inc()
}

// IncSchemaCacheMiss satisfies internal/schemacache.Metrics.
func (m *Metrics) IncSchemaCacheMiss(reason string) {
	m.SchemaCacheMisses.WithLabelValues(reason).Inc()
}

// SetNamespaceRecords satisfies internal/namespace.Metrics.
func (m *Metrics) SetNamespaceRecords(namespace string, count int) {
	m.NamespaceRecords.WithLabelValues(namespace).Set(float64(count))
}

// SetNamespaceDeletedRecords satisfies internal/namespace.Metrics.
func (m *Metrics) SetNamespaceDeletedRecords(namespace string, count int) {
	m.NamespaceDeletedRecords.WithLabelValues(namespace).Set(float64(count))
}

// IncFilestoreProcessingFailure records one failed filestore event reconciliation.
func (m *Metrics) IncFilestoreProcessingFailure() {
	m.FilestoreProcessingFailures.Inc()
}

// IncFilestoreConnectRetry records one filestore subscription reconnect attempt.
func (m *Metrics) IncFilestoreConnectRetry() {
	m.FilestoreConnectRetries.Inc()
}
