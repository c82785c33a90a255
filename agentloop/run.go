package agentloop

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/martinemde/deskagent/observability"
	"github.com/martinemde/deskagent/unifiedllm"
)

// Run outcomes reported by RunStats.
const (
	OutcomeComplete  = "complete"
	OutcomeError     = "error"
	OutcomeAbandoned = "abandoned"
)

// RunStats summarizes a run.
type RunStats struct {
	RunID        string           `json:"run_id"`
	Steps        int              `json:"steps"`
	Rounds       int              `json:"rounds"`
	PlannerCalls int              `json:"planner_calls"`
	ToolCalls    int              `json:"tool_calls"`
	Usage        unifiedllm.Usage `json:"usage"`
	Outcome      string           `json:"outcome,omitempty"`
	Duration     time.Duration    `json:"duration"`
}

// Run is a single pass of the agent loop. Its steps are produced lazily
// and can be consumed once.
type Run struct {
	id         string
	ctx        context.Context
	agent      *Agent
	req        RunRequest
	maxSteps   int
	session    *Session
	dispatcher *Dispatcher
	conv       *Conversation

	mu       sync.Mutex
	consumed bool
	released bool
	stats    RunStats
}

func newRun(ctx context.Context, a *Agent, req RunRequest, maxSteps int, session *Session, d *Dispatcher, conv *Conversation) *Run {
	id := uuid.New().String()
	return &Run{
		id:         id,
		ctx:        ctx,
		agent:      a,
		req:        req,
		maxSteps:   maxSteps,
		session:    session,
		dispatcher: d,
		conv:       conv,
		stats:      RunStats{RunID: id},
	}
}

// ID returns the run identifier.
func (r *Run) ID() string { return r.id }

// Session returns the run's session.
func (r *Run) Session() *Session { return r.session }

// Messages returns a copy of the conversation so far.
func (r *Run) Messages() []unifiedllm.Message { return r.conv.Messages() }

// Stats returns a snapshot of the run statistics.
func (r *Run) Stats() RunStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Steps returns the step sequence. Each step is produced only after the
// previous one has been handed to the consumer. The sequence ends with a
// complete or error step; it can be ranged over once, and later calls yield
// nothing. Stopping early ends the run.
func (r *Run) Steps() iter.Seq[Step] {
	return func(yield func(Step) bool) {
		r.mu.Lock()
		if r.consumed {
			r.mu.Unlock()
			return
		}
		r.consumed = true
		r.mu.Unlock()
		defer r.Close()

		r.loop(yield)
	}
}

// Collect consumes the run and returns every step.
func (r *Run) Collect() []Step {
	var steps []Step
	for s := range r.Steps() {
		steps = append(steps, s)
	}
	return steps
}

// Close releases the agent for another run. It is called automatically
// when the step sequence finishes.
func (r *Run) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consumed = true
	if !r.released {
		r.released = true
		r.agent.release()
	}
}

func (r *Run) loop(yield func(Step) bool) {
	a := r.agent
	ctx := observability.WithRunID(r.ctx, r.id)
	ctx = observability.WithSessionID(ctx, r.session.ID())
	start := time.Now()

	a.logger.Info(ctx, "run started",
		"model", r.req.Model,
		"provider", r.req.Provider,
		"max_steps", r.maxSteps,
		"working_dir", r.session.WorkingDir(),
	)

	outcome := OutcomeAbandoned
	defer func() {
		r.mu.Lock()
		r.stats.Outcome = outcome
		r.stats.Duration = time.Since(start)
		stats := r.stats
		r.mu.Unlock()

		a.metrics.RecordRun(outcome, stats.Rounds)
		a.logger.Info(ctx, "run finished",
			"outcome", outcome,
			"steps", stats.Steps,
			"rounds", stats.Rounds,
			"tool_calls", stats.ToolCalls,
			"total_tokens", stats.Usage.TotalTokens,
			"duration_ms", stats.Duration.Milliseconds(),
		)
	}()

	emit := func(s Step) bool {
		r.mu.Lock()
		r.stats.Steps++
		r.mu.Unlock()
		if s.Terminal() {
			outcome = string(s.Kind)
		}
		if r.req.OnStep != nil {
			r.req.OnStep(s)
		}
		return yield(s)
	}

	textResponses := 0
	step := 0
	for step < r.maxSteps {
		step++
		r.mu.Lock()
		r.stats.Rounds = step
		r.mu.Unlock()

		if ctx.Err() != nil {
			emit(errorStep(step, "Task cancelled"))
			return
		}

		resp, err := r.plan(ctx)
		if err != nil {
			a.logger.Error(ctx, "planner request failed", "step", step, "error", err)
			emit(errorStep(step, "Error: "+err.Error()))
			return
		}

		text := resp.Text()
		calls := ensureCallIDs(resp.ToolCallsFromResponse())

		if len(calls) > 0 {
			textResponses = 0
			r.conv.AppendAssistant(text, calls)
			if text != "" && !emit(thinkingStep(step, text)) {
				return
			}

			for _, tc := range calls {
				args, err := ParseToolArguments(tc.Arguments)
				if err != nil {
					a.logger.Warn(ctx, "malformed tool arguments", "tool", tc.Name, "error", err)
				}
				if !emit(toolCallStep(step, tc.Name, args)) {
					return
				}

				result := r.dispatcher.Execute(ctx, tc.Name, args)
				r.mu.Lock()
				r.stats.ToolCalls++
				r.mu.Unlock()
				r.conv.AppendToolResult(tc.ID, r.conversationText(tc.Name, result), !result.Success)

				if !emit(toolResultStep(step, tc.Name, result)) {
					return
				}
				if tc.Name == ToolTaskComplete.String() {
					emit(completeStep(step, result.Output))
					return
				}
			}

			if a.config.EnableLoopDetection && DetectLoop(r.conv, a.config.LoopDetectionWindow) {
				a.logger.Warn(ctx, "tool call loop detected", "window", a.config.LoopDetectionWindow)
				r.conv.AppendSteering(loopWarning(a.config.LoopDetectionWindow))
			}
			continue
		}

		textResponses++
		if strings.TrimSpace(text) == "" {
			emit(errorStep(step, "Received empty response from model"))
			return
		}
		if a.isCompletionText(text) || textResponses >= a.config.MaxTextResponses {
			emit(completeStep(step, text))
			return
		}
		if !emit(thinkingStep(step, text)) {
			return
		}
		r.conv.AppendAssistant(text, nil)
	}

	emit(errorStep(step, fmt.Sprintf("Maximum steps (%d) reached without completing the task", r.maxSteps)))
}

// plan sends the whole conversation and the tool catalog to the planner.
func (r *Run) plan(ctx context.Context) (*unifiedllm.Response, error) {
	a := r.agent
	req := unifiedllm.Request{
		Model:      r.req.Model,
		Provider:   r.req.Provider,
		Messages:   r.conv.Messages(),
		ToolDefs:   a.toolDefs,
		ToolChoice: &unifiedllm.ToolChoice{Mode: "auto"},
		Metadata:   map[string]string{"run_id": r.id},
	}

	start := time.Now()
	resp, err := a.planner.Complete(ctx, req)
	elapsed := time.Since(start)

	r.mu.Lock()
	r.stats.PlannerCalls++
	r.mu.Unlock()

	if err != nil {
		a.metrics.RecordPlannerRequest(r.req.Provider, r.req.Model, "error", elapsed.Seconds(), 0, 0)
		return nil, err
	}
	if resp == nil {
		a.metrics.RecordPlannerRequest(r.req.Provider, r.req.Model, "error", elapsed.Seconds(), 0, 0)
		return nil, fmt.Errorf("planner returned no response")
	}

	provider := resp.Provider
	if provider == "" {
		provider = r.req.Provider
	}
	a.metrics.RecordPlannerRequest(provider, r.req.Model, "success", elapsed.Seconds(),
		resp.Usage.InputTokens, resp.Usage.OutputTokens)
	r.mu.Lock()
	r.stats.Usage = r.stats.Usage.Add(resp.Usage)
	r.mu.Unlock()

	a.logger.Debug(ctx, "planner responded",
		"provider", provider,
		"latency_ms", elapsed.Milliseconds(),
		"tool_calls", len(resp.ToolCallsFromResponse()),
		"finish_reason", resp.FinishReason.Reason,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
	)
	return resp, nil
}

// conversationText is the bounded copy of a result that enters the
// conversation.
func (r *Run) conversationText(name string, result ToolResult) string {
	text := result.ConversationText()
	kind, ok := ParseToolKind(name)
	if !ok {
		return TruncateOutput(text, fallbackCharLimit, TruncateHeadTail)
	}
	return TruncateToolOutput(text, kind, r.agent.config.ToolOutputLimits)
}

// ensureCallIDs gives every call a unique correlation id so each tool
// result can be matched to its call.
func ensureCallIDs(calls []unifiedllm.ToolCall) []unifiedllm.ToolCall {
	seen := make(map[string]bool, len(calls))
	for i := range calls {
		if calls[i].ID == "" || seen[calls[i].ID] {
			calls[i].ID = "call_" + uuid.New().String()[:8]
		}
		seen[calls[i].ID] = true
	}
	return calls
}
