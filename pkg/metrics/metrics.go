// Package metrics defines the Prometheus collectors for catalog searches,
// backend calls and the stats service, and exposes an HTTP handler for
// scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the catalog.
type Metrics struct {
	HTTPRequestsTotal      *prometheus.CounterVec
	HTTPRequestDuration    *prometheus.HistogramVec
	HTTPRequestsInFlight   prometheus.Gauge
	SearchesTotal          *prometheus.CounterVec
	SearchTerms            prometheus.Histogram
	SearchTotalHits        *prometheus.HistogramVec
	BackendRequestsTotal   *prometheus.CounterVec
	BackendLatency         *prometheus.HistogramVec
	CacheHitsTotal         *prometheus.CounterVec
	CacheMissesTotal       *prometheus.CounterVec
	CircuitBreakerState    *prometheus.GaugeVec
	ScreenTransitionsTotal *prometheus.CounterVec
	AnalyticsEventsTotal   *prometheus.CounterVec
}

// New creates all collectors and registers them with reg. Passing
// prometheus.DefaultRegisterer exposes them on the default scrape handler.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		SearchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opac_searches_total",
				Help: "Patron searches by backend, search type and outcome (counted, zero_result, rejected, failed).",
			},
			[]string{"backend", "search_type", "outcome"},
		),
		SearchTerms: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "opac_search_terms",
				Help:    "Number of recall terms per search.",
				Buckets: []float64{1, 2, 3, 4, 5, 8, 12},
			},
		),
		SearchTotalHits: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "opac_search_total_hits",
				Help:    "Final running count per search.",
				Buckets: []float64{0, 1, 5, 10, 30, 100, 500, 1000, 10000},
			},
			[]string{"backend"},
		),
		BackendRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opac_backend_requests_total",
				Help: "Backend calls by backend, operation and status.",
			},
			[]string{"backend", "op", "status"},
		),
		BackendLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "opac_backend_latency_seconds",
				Help:    "Backend call latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"backend", "op"},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opac_cache_hits_total",
				Help: "Backend result cache hits.",
			},
			[]string{"backend"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opac_cache_misses_total",
				Help: "Backend result cache misses.",
			},
			[]string{"backend"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
		ScreenTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opac_screen_transitions_total",
				Help: "Screen transitions by source and destination screen.",
			},
			[]string{"from", "to"},
		),
		AnalyticsEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opac_analytics_events_total",
				Help: "Analytics events consumed by type.",
			},
			[]string{"type"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.SearchesTotal,
		m.SearchTerms,
		m.SearchTotalHits,
		m.BackendRequestsTotal,
		m.BackendLatency,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CircuitBreakerState,
		m.ScreenTransitionsTotal,
		m.AnalyticsEventsTotal,
	)

	return m
}

// Handler returns the scrape handler for the given gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
