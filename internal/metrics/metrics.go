// Package metrics holds the Prometheus collectors of the query engine.
//
// Every collector lives on a private registry owned by Metrics, so several
// engines (and parallel tests) never collide on registration. All methods
// accept a nil receiver and do nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ninmem"

// Query status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics groups the engine's collectors.
type Metrics struct {
	registry *prometheus.Registry

	queries       *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter
	buildDuration *prometheus.HistogramVec
	graphVertices *prometheus.GaugeVec
	reloads       *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Total number of queries by operation and status",
		}, []string{"op", "status"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Query duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"op"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stat_cache",
			Name:      "hits_total",
			Help:      "Total stat tree cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stat_cache",
			Name:      "misses_total",
			Help:      "Total stat tree cache misses",
		}),
		buildDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "build",
			Name:      "duration_seconds",
			Help:      "Engine build phase duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}, []string{"phase"}),
		graphVertices: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "vertices",
			Help:      "Number of vertices in the live graph by label",
		}, []string{"label"}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reloads_total",
			Help:      "Total engine reloads by status",
		}, []string{"status"}),
	}

	m.registry.MustRegister(
		m.queries,
		m.queryDuration,
		m.cacheHits,
		m.cacheMisses,
		m.buildDuration,
		m.graphVertices,
		m.reloads,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveQuery records one query of op that started at start.
func (m *Metrics) ObserveQuery(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	m.queries.WithLabelValues(op, status).Inc()
	m.queryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// CacheHit counts a stat tree cache hit.
func (m *Metrics) CacheHit() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

// CacheMiss counts a stat tree cache miss.
func (m *Metrics) CacheMiss() {
	if m != nil {
		m.cacheMisses.Inc()
	}
}

// ObserveBuild records the duration of an engine build phase.
func (m *Metrics) ObserveBuild(phase string, d time.Duration) {
	if m != nil {
		m.buildDuration.WithLabelValues(phase).Observe(d.Seconds())
	}
}

// SetGraphVertices publishes per-label vertex counts of the live graph.
func (m *Metrics) SetGraphVertices(counts map[string]int) {
	if m == nil {
		return
	}
	m.graphVertices.Reset()
	for label, n := range counts {
		m.graphVertices.WithLabelValues(label).Set(float64(n))
	}
}

// Reload counts an engine reload attempt.
func (m *Metrics) Reload(err error) {
	if m == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	m.reloads.WithLabelValues(status).Inc()
}
