package observability

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordToolExecution(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordToolExecution("run_command", "success", 0.2)
	m.RecordToolExecution("run_command", "success", 0.3)
	m.RecordToolExecution("read_file", "error", 0.01)

	expected := `
		# HELP deskagent_tool_executions_total Total number of tool executions by tool and status
		# TYPE deskagent_tool_executions_total counter
		deskagent_tool_executions_total{status="error",tool="read_file"} 1
		deskagent_tool_executions_total{status="success",tool="run_command"} 2
	`
	if err := testutil.CollectAndCompare(m.ToolExecutions, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metric value: %v", err)
	}
	if count := testutil.CollectAndCount(m.ToolDuration); count != 2 {
		t.Errorf("expected 2 duration series, got %d", count)
	}
}

func TestRecordPlannerRequest(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordPlannerRequest("openai", "gpt-4o", "success", 1.5, 100, 40)
	m.RecordPlannerRequest("openai", "gpt-4o", "error", 0.2, 0, 0)

	if got := testutil.ToFloat64(m.PlannerRequests.WithLabelValues("openai", "gpt-4o", "success")); got != 1 {
		t.Errorf("expected 1 successful request, got %v", got)
	}
	if got := testutil.ToFloat64(m.PlannerTokens.WithLabelValues("openai", "gpt-4o", "input")); got != 100 {
		t.Errorf("expected 100 input tokens, got %v", got)
	}
	if got := testutil.ToFloat64(m.PlannerTokens.WithLabelValues("openai", "gpt-4o", "output")); got != 40 {
		t.Errorf("expected 40 output tokens, got %v", got)
	}
}

func TestRecordRun(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.RecordRun("complete", 4)
	m.RecordRun("error", 20)

	if got := testutil.ToFloat64(m.RunsTotal.WithLabelValues("complete")); got != 1 {
		t.Errorf("expected 1 complete run, got %v", got)
	}
	if count := testutil.CollectAndCount(m.RunSteps); count != 1 {
		t.Errorf("expected run steps histogram, got %d series", count)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordRun("complete", 1)
	m.RecordPlannerRequest("p", "m", "success", 1, 1, 1)
	m.RecordToolExecution("t", "success", 1)
}

func TestNewMetricsRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected duplicate registration to panic")
		}
	}()
	NewMetrics(reg)
}
