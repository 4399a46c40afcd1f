// Package metrics exposes flow outcomes and HTTP traffic to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use through a nil pointer; every method is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	flowOutcomes   *prometheus.CounterVec
	lookups        *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDurations  *prometheus.HistogramVec
	socketsCurrent prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		flowOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatooz",
			Name:      "flow_outcomes_total",
			Help:      "Completed user flows by flow name and outcome.",
		}, []string{"flow", "outcome"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatooz",
			Name:      "directory_lookups_total",
			Help:      "Profile directory email lookups by result.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatooz",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		}, []string{"route", "code"}),
		httpDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chatooz",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		socketsCurrent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatooz",
			Name:      "chat_sockets",
			Help:      "Open realtime chat sockets on this instance.",
		}),
	}
	m.registry.MustRegister(
		m.flowOutcomes,
		m.lookups,
		m.httpRequests,
		m.httpDurations,
		m.socketsCurrent,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Flow records how a user flow ended, e.g. Flow("signin", "ok").
func (m *Metrics) Flow(flow, outcome string) {
	if m == nil {
		return
	}
	m.flowOutcomes.WithLabelValues(flow, outcome).Inc()
}

// Lookup records one directory lookup: "found", "not_found" or "error".
func (m *Metrics) Lookup(result string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveHTTP(route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.httpDurations.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *Metrics) SocketOpened() {
	if m != nil {
		m.socketsCurrent.Inc()
	}
}

func (m *Metrics) SocketClosed() {
	if m != nil {
		m.socketsCurrent.Dec()
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
