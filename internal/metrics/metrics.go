// Package metrics exposes the engine's Prometheus instrumentation:
// action executions by outcome and remote action-server call latency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the engine's collectors.
type Metrics struct {
	ActionsTotal   *prometheus.CounterVec
	RemoteDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "espalier",
			Name:      "actions_executed_total",
			Help:      "Action executions by action name and outcome.",
		}, []string{"action", "outcome"}),
		RemoteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "espalier",
			Name:      "action_server_call_seconds",
			Help:      "Latency of action server calls by outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.ActionsTotal, m.RemoteDuration)
	}
	return m
}

// ObserveAction records one action execution.
func (m *Metrics) ObserveAction(action, outcome string) {
	if m == nil {
		return
	}
	m.ActionsTotal.WithLabelValues(action, outcome).Inc()
}

// ObserveRemote records one action-server round trip.
func (m *Metrics) ObserveRemote(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RemoteDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}
