// Package metrics holds the Prometheus collectors exported by lngraph serve.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alfredjeanlab/lngraph/internal/model"
)

const namespace = "lngraph"

// Metrics owns a registry and the collectors registered on it. All methods
// are safe on a nil *Metrics, which records nothing.
type Metrics struct {
	registry *prometheus.Registry

	decodes       *prometheus.CounterVec
	decodeBytes   prometheus.Histogram
	imports       *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	streamClients prometheus.Gauge
}

// New creates a Metrics with its own registry, including the Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		decodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decodes_total",
			Help:      "Graph documents decoded, by result (ok or the decode error kind).",
		}, []string{"result"}),
		decodeBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decode_input_bytes",
			Help:      "Size of graph documents submitted for decoding.",
			Buckets:   prometheus.ExponentialBuckets(1<<10, 4, 10),
		}),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "Background snapshot imports, by result.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		streamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_stream_clients",
			Help:      "Connected GET /v1/events/stream clients.",
		}),
	}
	m.registry.MustRegister(
		m.decodes,
		m.decodeBytes,
		m.imports,
		m.httpRequests,
		m.httpDuration,
		m.streamClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
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

// InstrumentHandler counts and times requests served by next.
func (m *Metrics) InstrumentHandler(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return promhttp.InstrumentHandlerDuration(m.httpDuration,
		promhttp.InstrumentHandlerCounter(m.httpRequests, next))
}

// ObserveDecode records the outcome of decoding size bytes.
func (m *Metrics) ObserveDecode(size int, err error) {
	if m == nil {
		return
	}
	m.decodeBytes.Observe(float64(size))
	m.decodes.WithLabelValues(resultLabel(err)).Inc()
}

// ObserveImport records the outcome of one background import.
func (m *Metrics) ObserveImport(err error) {
	if m == nil {
		return
	}
	m.imports.WithLabelValues(resultLabel(err)).Inc()
}

// StreamClientConnected adjusts the stream client gauge by +1 and returns
// the matching decrement.
func (m *Metrics) StreamClientConnected() (disconnected func()) {
	if m == nil {
		return func() {}
	}
	m.streamClients.Inc()
	return m.streamClients.Dec
}

// resultLabel is "ok", the decode error kind, or "error".
func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var de *model.DecodeError
	if errors.As(err, &de) && de.Kind != "" {
		return string(de.Kind)
	}
	return "error"
}
