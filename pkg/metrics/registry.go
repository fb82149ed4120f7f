// Package metrics owns the process metrics registry.
//
// A Metrics value is built once at startup and handed to the request
// middleware (which records into it) and to the /metrics handler (which
// only reads it). Tests build a fresh one per case; nothing here touches
// the Prometheus default registry.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric names exposed on /metrics.
const (
	RequestsTotalName   = "http_request_total"
	RequestDurationName = "http_request_duration_seconds"
	RequestSeriesName   = "http_request_series"
)

// Label names shared by the request counter and histogram.
const (
	LabelMethod     = "method"
	LabelRoute      = "route"
	LabelStatusCode = "status_code"
)

// Metrics holds the request collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	// requestsTotal counts completed requests by method, route and status
	requestsTotal *prometheus.CounterVec
	// requestDuration tracks request latency in seconds
	requestDuration *prometheus.HistogramVec

	series *SeriesTracker
}

// New creates a registry with the request collectors plus the Go runtime
// and process collectors registered.
func New() *Metrics {
	labels := []string{LabelMethod, LabelRoute, LabelStatusCode}
	series := NewSeriesTracker()

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: RequestsTotalName,
				Help: "Total number of completed HTTP requests.",
			},
			labels,
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    RequestDurationName,
				Help:    "Duration of HTTP requests in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			labels,
		),
		series: series,
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: RequestSeriesName,
				Help: "Distinct method/route/status_code label sets recorded.",
			},
			func() float64 { return float64(series.Len()) },
		),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveRequest records one completed request.
func (m *Metrics) ObserveRequest(method, route string, status int, seconds float64) {
	code := strconv.Itoa(status)

	m.requestsTotal.WithLabelValues(method, route, code).Inc()
	m.requestDuration.WithLabelValues(method, route, code).Observe(seconds)
	m.series.Observe(method, route, code)
}

// Handler serves the registry in the Prometheus text exposition format.
// Serving is read-only: it never touches the request collectors.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for registering extra
// process-level collectors and for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SeriesStats reports label cardinality of the request collectors.
func (m *Metrics) SeriesStats() SeriesStats {
	return m.series.Stats()
}
