// Package metrics exposes Prometheus collectors for the scoring pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "healthscore"

type Metrics struct {
	registry       *prometheus.Registry
	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	cacheErrors    *prometheus.CounterVec
	sourceFailures *prometheus.CounterVec
	computeSeconds *prometheus.HistogramVec
	scored         prometheus.Gauge
	alerts         prometheus.Counter
	httpRequests   *prometheus.CounterVec
}

// New registers every collector on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Cache lookups served from the backend.",
		}, []string{"view"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Cache lookups that required a computation.",
		}, []string{"view"}),
		cacheErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_errors_total",
			Help:      "Cache backend failures absorbed by direct computation.",
		}, []string{"op"}),
		sourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_failures_total",
			Help:      "Failed or timed out source queries.",
		}, []string{"source"}),
		computeSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compute_seconds",
			Help:      "Time spent computing a view on cache miss.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"view"}),
		scored: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "customers_scored",
			Help:      "Customers scored by the last health score computation.",
		}),
		alerts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "at_risk_alerts_total",
			Help:      "At-risk alerts published by the monitor.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"route", "method", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cacheHits,
		m.cacheMisses,
		m.cacheErrors,
		m.sourceFailures,
		m.computeSeconds,
		m.scored,
		m.alerts,
		m.httpRequests,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) CacheHit(view string) {
	if m != nil {
		m.cacheHits.WithLabelValues(view).Inc()
	}
}

func (m *Metrics) CacheMiss(view string) {
	if m != nil {
		m.cacheMisses.WithLabelValues(view).Inc()
	}
}

func (m *Metrics) CacheError(op string) {
	if m != nil {
		m.cacheErrors.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) SourceFailure(source string) {
	if m != nil {
		m.sourceFailures.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) ObserveCompute(view string, d time.Duration) {
	if m != nil {
		m.computeSeconds.WithLabelValues(view).Observe(d.Seconds())
	}
}

func (m *Metrics) SetScored(n int) {
	if m != nil {
		m.scored.Set(float64(n))
	}
}

func (m *Metrics) AlertPublished() {
	if m != nil {
		m.alerts.Inc()
	}
}

func (m *Metrics) HTTPRequest(route, method string, status int) {
	if m != nil {
		m.httpRequests.WithLabelValues(route, method, statusClass(status)).Inc()
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
