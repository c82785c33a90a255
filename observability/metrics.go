package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for agent runs. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// RunsTotal counts finished runs.
	// Labels: outcome (complete|error|abandoned)
	RunsTotal *prometheus.CounterVec

	// RunSteps observes the number of steps a run produced.
	RunSteps prometheus.Histogram

	// PlannerRequests counts planner calls.
	// Labels: provider, model, status (success|error)
	PlannerRequests *prometheus.CounterVec

	// PlannerDuration measures planner call latency in seconds.
	// Labels: provider, model
	PlannerDuration *prometheus.HistogramVec

	// PlannerTokens tracks token consumption.
	// Labels: provider, model, type (input|output)
	PlannerTokens *prometheus.CounterVec

	// ToolExecutions counts tool dispatches.
	// Labels: tool, status (success|failure|invalid|unknown)
	ToolExecutions *prometheus.CounterVec

	// ToolDuration measures tool execution time in seconds.
	// Labels: tool
	ToolDuration *prometheus.HistogramVec
}

// NewMetrics registers the collectors on reg. Pass prometheus.NewRegistry()
// in tests to avoid clashing with the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskagent_runs_total",
				Help: "Total number of agent runs by outcome",
			},
			[]string{"outcome"},
		),
		RunSteps: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "deskagent_run_steps",
				Help:    "Number of steps produced per agent run",
				Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
			},
		),
		PlannerRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskagent_planner_requests_total",
				Help: "Total number of planner requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),
		PlannerDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "deskagent_planner_request_duration_seconds",
				Help:    "Duration of planner requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),
		PlannerTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskagent_planner_tokens_total",
				Help: "Total number of tokens used by provider, model, and type",
			},
			[]string{"provider", "model", "type"},
		),
		ToolExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskagent_tool_executions_total",
				Help: "Total number of tool executions by tool and status",
			},
			[]string{"tool", "status"},
		),
		ToolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "deskagent_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"tool"},
		),
	}
}

// RecordRun records a finished run.
func (m *Metrics) RecordRun(outcome string, steps int) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.RunSteps.Observe(float64(steps))
}

// RecordPlannerRequest records one planner round trip.
func (m *Metrics) RecordPlannerRequest(provider, model, status string, durationSeconds float64, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.PlannerRequests.WithLabelValues(provider, model, status).Inc()
	m.PlannerDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	if inputTokens > 0 {
		m.PlannerTokens.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.PlannerTokens.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
	}
}

// RecordToolExecution records one tool dispatch.
func (m *Metrics) RecordToolExecution(tool, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.ToolExecutions.WithLabelValues(tool, status).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(durationSeconds)
}
