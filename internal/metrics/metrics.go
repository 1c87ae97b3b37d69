// Package metrics exports request, rate-limit, and bridge instrumentation
// for Prometheus scraping.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the runtime's instrument set over its own registry, so tests
// can create isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	rateLimitRejections *prometheus.CounterVec
	bridgeCalls         *prometheus.CounterVec
	shadowCycles        prometheus.Counter
	sessionsStarted     prometheus.Counter
}

// New creates and registers the instrument set.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "razy_requests_total",
		Help: "Requests served, by distributor, method, and status.",
	}, []string{"distributor", "method", "status"})

	m.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "razy_request_duration_seconds",
		Help:    "Request handling latency, by distributor.",
		Buckets: prometheus.DefBuckets,
	}, []string{"distributor"})

	m.rateLimitRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "razy_ratelimit_rejections_total",
		Help: "Requests rejected by a named rate limiter.",
	}, []string{"limiter"})

	m.bridgeCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "razy_bridge_calls_total",
		Help: "Bridge calls, by transport and result code.",
	}, []string{"transport", "code"})

	m.shadowCycles = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "razy_shadow_cycles_total",
		Help: "Requests failed on a shadow route cycle.",
	})

	m.sessionsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "razy_sessions_started_total",
		Help: "Sessions started.",
	})

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.rateLimitRejections,
		m.bridgeCalls,
		m.shadowCycles,
		m.sessionsStarted,
	)
	return m
}

// RecordRequest records a completed request.
func (m *Metrics) RecordRequest(distributor, method string, status int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(distributor, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(distributor).Observe(duration.Seconds())
}

// RecordRateLimitRejection records a throttled request.
func (m *Metrics) RecordRateLimitRejection(limiter string) {
	m.rateLimitRejections.WithLabelValues(limiter).Inc()
}

// RecordBridgeCall records a bridge call result. An empty code means success.
func (m *Metrics) RecordBridgeCall(transport, code string) {
	if code == "" {
		code = "OK"
	}
	m.bridgeCalls.WithLabelValues(transport, code).Inc()
}

// RecordShadowCycle records a dispatch failed on a route cycle.
func (m *Metrics) RecordShadowCycle() {
	m.shadowCycles.Inc()
}

// RecordSessionStarted records a session start.
func (m *Metrics) RecordSessionStarted() {
	m.sessionsStarted.Inc()
}

// Handler exposes the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
