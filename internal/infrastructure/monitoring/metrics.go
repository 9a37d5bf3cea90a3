package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "webview_mcp"

// Outcome label for invocations that returned data.
const OutcomeSuccess = "success"

// Metrics holds all Prometheus metrics. Each instance owns its registry, so
// several can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Invocation metrics
	InvocationsTotal   *prometheus.CounterVec
	InvocationDuration *prometheus.HistogramVec

	// Result store metrics
	ResultsStored prometheus.Counter
	ResultsReaped prometheus.Counter
	ResultsEvict  prometheus.Counter

	// Event stream metrics
	StreamClients prometheus.Gauge
	StreamEvents  prometheus.Counter

	startTime time.Time
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_size_bytes",
				Help:      "HTTP request size in bytes",
				Buckets:   []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_response_size_bytes",
				Help:      "HTTP response size in bytes",
				Buckets:   []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),

		// Invocation metrics
		InvocationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invocations_total",
				Help:      "Tool and command invocations by outcome",
			},
			[]string{"kind", "outcome"},
		),
		InvocationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "invocation_duration_seconds",
				Help:      "Time from dispatch to outcome",
				Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"kind"},
		),

		// Result store metrics
		ResultsStored: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "results_stored_total",
				Help:      "Results written by surface callbacks",
			},
		),
		ResultsReaped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "results_reaped_total",
				Help:      "Unconsumed results removed after their TTL",
			},
		),
		ResultsEvict: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "results_evicted_total",
				Help:      "Unconsumed results evicted to respect the entry cap",
			},
		),

		// Event stream metrics
		StreamClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stream_clients",
				Help:      "Connected event stream clients",
			},
		),
		StreamEvents: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_events_total",
				Help:      "Events written to stream clients",
			},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Bridge uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))
}

// RecordInvocation records one finished invocation. A nil receiver
// discards it.
func (m *Metrics) RecordInvocation(kind, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.InvocationsTotal.WithLabelValues(kind, outcome).Inc()
	m.InvocationDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// IncResultsStored counts a result written to the store
func (m *Metrics) IncResultsStored() {
	if m == nil {
		return
	}
	m.ResultsStored.Inc()
}

// AddResultsReaped counts results removed by the janitor
func (m *Metrics) AddResultsReaped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ResultsReaped.Add(float64(n))
}

// IncResultsEvicted counts a result dropped for the entry cap
func (m *Metrics) IncResultsEvicted() {
	if m == nil {
		return
	}
	m.ResultsEvict.Inc()
}

// IncStreamClients increments connected stream clients
func (m *Metrics) IncStreamClients() {
	if m == nil {
		return
	}
	m.StreamClients.Inc()
}

// DecStreamClients decrements connected stream clients
func (m *Metrics) DecStreamClients() {
	if m == nil {
		return
	}
	m.StreamClients.Dec()
}

// IncStreamEvents counts an event written to a stream client
func (m *Metrics) IncStreamEvents() {
	if m == nil {
		return
	}
	m.StreamEvents.Inc()
}

// RegisterPending exposes a gauge reading the current number of pending
// results from fn.
func (m *Metrics) RegisterPending(fn func() int) {
	promauto.With(m.registry).NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "results_pending",
			Help:      "Results stored and not yet consumed",
		},
		func() float64 { return float64(fn()) },
	)
}
