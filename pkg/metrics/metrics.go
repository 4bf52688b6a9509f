// Package metrics defines the Prometheus metric collectors used by the CLI
// and the rank service, and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Adithya-Monish-Kumar-K/linerank/internal/stream"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	RankRequestsTotal    *prometheus.CounterVec
	RankLatency          *prometheus.HistogramVec
	LinesTotal           *prometheus.CounterVec
	LineScore            prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	EventsDroppedTotal   prometheus.Counter
}

// New creates all collectors and registers them with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates all collectors and registers them with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
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
		RankRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rank_requests_total",
				Help: "Total rank requests by result type (ok, zero_result, invalid, error).",
			},
			[]string{"result_type"},
		),
		RankLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rank_latency_seconds",
				Help:    "Rank request latency in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"cache_status"},
		),
		LinesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lines_total",
				Help: "Lines seen by the stream driver by outcome (read, scored, admitted, empty, truncated).",
			},
			[]string{"outcome"},
		),
		LineScore: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "line_score",
				Help:    "Distribution of relevance scores of scored lines.",
				Buckets: []float64{0, 0.1, 0.25, 0.5, 0.75, 1, 1.5, 2, 3},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of rank cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of rank cache misses.",
			},
		),
		EventsDroppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "analytics_events_dropped_total",
				Help: "Rank events dropped because the collector buffer was full.",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.RankRequestsTotal,
		m.RankLatency,
		m.LinesTotal,
		m.LineScore,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.EventsDroppedTotal,
	)

	return m
}

// ObserveRun adds the counters of one stream run.
func (m *Metrics) ObserveRun(stats stream.Stats) {
	m.LinesTotal.WithLabelValues("read").Add(float64(stats.LinesRead))
	m.LinesTotal.WithLabelValues("scored").Add(float64(stats.LinesScored))
	m.LinesTotal.WithLabelValues("admitted").Add(float64(stats.LinesAdmitted))
	m.LinesTotal.WithLabelValues("empty").Add(float64(stats.EmptySkipped))
	m.LinesTotal.WithLabelValues("truncated").Add(float64(stats.LinesTruncated))
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
