// Package metrics holds the prometheus collectors for a pipeline run.
// The registry is private to the run and exposed through the status
// server's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the run-level prometheus collectors.
type Metrics struct {
	Registry *prometheus.Registry

	// LayersTotal counts completed layers by result (success, failure, skipped).
	LayersTotal *prometheus.CounterVec

	// ToolsTotal counts tool executions by result (success, failure).
	ToolsTotal *prometheus.CounterVec

	// ToolDuration observes per-tool wall-clock execution time.
	ToolDuration prometheus.Histogram

	// RollbackActionsTotal counts rollback actions by result.
	RollbackActionsTotal *prometheus.CounterVec
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		LayersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "layerrun_layers_total",
			Help: "Completed layers by result.",
		}, []string{"result"}),
		ToolsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "layerrun_tools_total",
			Help: "Tool executions by result.",
		}, []string{"result"}),
		ToolDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "layerrun_tool_duration_seconds",
			Help:    "Per-tool wall-clock execution time.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		RollbackActionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "layerrun_rollback_actions_total",
			Help: "Rollback actions by result.",
		}, []string{"result"}),
	}
}

// ObserveTool records one tool outcome.
func (m *Metrics) ObserveTool(success bool, seconds float64) {
	if m == nil {
		return
	}
	m.ToolsTotal.WithLabelValues(resultLabel(success)).Inc()
	m.ToolDuration.Observe(seconds)
}

// ObserveLayer records one layer outcome.
func (m *Metrics) ObserveLayer(success, skipped bool) {
	if m == nil {
		return
	}
	label := resultLabel(success)
	if skipped {
		label = "skipped"
	}
	m.LayersTotal.WithLabelValues(label).Inc()
}

// ObserveRollbackAction records one rollback action outcome.
func (m *Metrics) ObserveRollbackAction(success bool) {
	if m == nil {
		return
	}
	m.RollbackActionsTotal.WithLabelValues(resultLabel(success)).Inc()
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
