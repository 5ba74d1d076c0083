// Package observability provides Prometheus metrics for the alert engine.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"token-alerts/internal/alerting"
	"token-alerts/internal/balance"
	"token-alerts/internal/chain"
)

// Invocation outcomes.
const (
	OutcomeProcessed   = "processed"
	OutcomeSkipped     = "skipped"
	OutcomeFailed      = "failed"
	OutcomeUnsupported = "unsupported"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	registry *prometheus.Registry

	// Invocation metrics
	Invocations *prometheus.CounterVec
	Candidates  *prometheus.CounterVec

	// Delivery metrics
	NotificationsSent   *prometheus.CounterVec
	NotificationsFailed *prometheus.CounterVec

	// RPC metrics
	RPCCallLatency *prometheus.HistogramVec
	RPCCallErrors  *prometheus.CounterVec

	// Health metrics
	HeartbeatCount     prometheus.Gauge
	LastInvocationTime prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered on its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "token_alerts"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Invocations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "invocations_total",
			Help:      "Total number of transaction events handled by outcome",
		}, []string{"outcome"}),
		Candidates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "alert_candidates_total",
			Help:      "Total number of balances found at or below threshold",
		}, []string{"chain"}),

		NotificationsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "sent_total",
			Help:      "Total number of notifications delivered by kind",
		}, []string{"kind"}),
		NotificationsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "failed_total",
			Help:      "Total number of failed notification deliveries by kind",
		}, []string{"kind"}),

		RPCCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_latency_seconds",
			Help:      "RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"chain", "method"}),
		RPCCallErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "call_errors_total",
			Help:      "Total number of failed RPC calls",
		}, []string{"chain", "method"}),

		HeartbeatCount: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "heartbeat_count",
			Help:      "Last observed value of the heartbeat counter",
		}),
		LastInvocationTime: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "last_invocation_timestamp",
			Help:      "Unix timestamp of the last handled event",
		}),
	}
}

// RecordInvocation counts one handled event.
func (m *Metrics) RecordInvocation(outcome string) {
	if m == nil {
		return
	}
	m.Invocations.WithLabelValues(outcome).Inc()
	m.LastInvocationTime.SetToCurrentTime()
}

// RecordCandidates counts alert candidates found on a chain.
func (m *Metrics) RecordCandidates(id chain.ID, n int) {
	if m == nil || n == 0 {
		return
	}
	m.Candidates.WithLabelValues(id.String()).Add(float64(n))
}

// RecordHeartbeat stores the latest counter value.
func (m *Metrics) RecordHeartbeat(count uint64) {
	if m == nil {
		return
	}
	m.HeartbeatCount.Set(float64(count))
}

// ObserveRPC implements balance.Observer.
func (m *Metrics) ObserveRPC(id chain.ID, method string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.RPCCallLatency.WithLabelValues(id.String(), method).Observe(elapsed.Seconds())
	if err != nil {
		m.RPCCallErrors.WithLabelValues(id.String(), method).Inc()
	}
}

// NotificationSent implements alerting.FailureRecorder.
func (m *Metrics) NotificationSent(kind string) {
	if m == nil {
		return
	}
	m.NotificationsSent.WithLabelValues(kind).Inc()
}

// NotificationFailed implements alerting.FailureRecorder.
func (m *Metrics) NotificationFailed(kind string) {
	if m == nil {
		return
	}
	m.NotificationsFailed.WithLabelValues(kind).Inc()
}

// Registry exposes the underlying registry for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

var (
	_ balance.Observer         = (*Metrics)(nil)
	_ alerting.FailureRecorder = (*Metrics)(nil)
)
