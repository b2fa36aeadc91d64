// Package telemetry exposes the process's Prometheus metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every counter/gauge/histogram the core updates.
type Metrics struct {
	RequestsTotal        *prometheus.CounterVec
	RiskScoreHistogram   prometheus.Histogram
	AuditBufferDepth     prometheus.Gauge
	CircuitBreakerOpen   *prometheus.GaugeVec
	EffectorExecDuration *prometheus.HistogramVec
}

// New registers every metric against reg and returns the bundle.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentgate_requests_total",
			Help: "Action requests created, labeled by capability type and outcome.",
		}, []string{"type", "outcome"}),
		RiskScoreHistogram: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "agentgate_plan_risk_score",
			Help:    "Distribution of computed plan risk scores.",
			Buckets: []float64{0, 10, 30, 50, 70, 85, 95, 100},
		}),
		AuditBufferDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "agentgate_audit_buffer_depth",
			Help: "Number of audit events pending durable persistence.",
		}),
		CircuitBreakerOpen: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "agentgate_circuit_breaker_open",
			Help: "1 if the named circuit breaker is open, else 0.",
		}, []string{"name"}),
		EffectorExecDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name: "agentgate_effector_execute_seconds",
			Help: "Wall-clock duration of effector Execute calls.",
		}, []string{"capability"}),
	}
}
