// Package metrics defines the Prometheus collectors used by the catalog, the
// query layer and the HTTP server, and serves them for scraping.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for fifadex.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	QueriesTotal         *prometheus.CounterVec
	QueryLatency         *prometheus.HistogramVec
	QueryResultsCount    *prometheus.HistogramVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	IndexOccupancy       *prometheus.GaugeVec
	IndexItems           *prometheus.GaugeVec
	BuildStageDuration   *prometheus.GaugeVec
	RecordsRejectedTotal *prometheus.CounterVec
}

// New creates all metrics and registers them with the default registerer.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all metrics and registers them with reg. Tests pass
// a fresh prometheus.NewRegistry() so repeated construction does not panic.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
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
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fifadex_queries_total",
				Help: "Total catalog queries by kind and outcome (hit, zero_result, error).",
			},
			[]string{"kind", "outcome"},
		),
		QueryLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fifadex_query_latency_seconds",
				Help:    "Catalog query latency in seconds.",
				Buckets: []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
			[]string{"kind", "cache_status"},
		),
		QueryResultsCount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fifadex_query_results_count",
				Help:    "Number of rows returned per query.",
				Buckets: []float64{0, 1, 5, 10, 20, 50, 100, 1000},
			},
			[]string{"kind"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of query cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of query cache misses.",
			},
		),
		IndexOccupancy: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fifadex_index_occupancy_ratio",
				Help: "Fraction of non-empty hash buckets per index.",
			},
			[]string{"index"},
		),
		IndexItems: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fifadex_index_items",
				Help: "Number of items stored per index.",
			},
			[]string{"index"},
		),
		BuildStageDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fifadex_build_stage_duration_seconds",
				Help: "Wall time of the last run of each catalog build stage.",
			},
			[]string{"stage"},
		),
		RecordsRejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fifadex_records_rejected_total",
				Help: "Records dropped during load by stream and reason.",
			},
			[]string{"stream", "reason"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.QueriesTotal,
		m.QueryLatency,
		m.QueryResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.IndexOccupancy,
		m.IndexItems,
		m.BuildStageDuration,
		m.RecordsRejectedTotal,
	)

	return m
}
