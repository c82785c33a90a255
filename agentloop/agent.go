package agentloop

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/martinemde/deskagent/observability"
	"github.com/martinemde/deskagent/unifiedllm"
)

// Planner proposes the next action given the conversation so far.
// *unifiedllm.Client satisfies it.
type Planner interface {
	Complete(ctx context.Context, req unifiedllm.Request) (*unifiedllm.Response, error)
}

// Defaults for Config.
const (
	DefaultMaxSteps         = 20
	DefaultMaxTextResponses = 2
)

// DefaultCompletionPhrases are matched case-insensitively against text-only
// planner replies; a match ends the run as complete. The check is a plain
// substring test, so "done" also matches "abandoned" and a reply that
// merely quotes the task can end the run early.
var DefaultCompletionPhrases = []string{
	"completed",
	"done",
	"finished",
	"task complete",
	"let me know",
	"anything else",
	"help you with",
}

// Run parameter errors returned by Agent.Run.
var (
	ErrEmptyTask       = errors.New("agentloop: task must not be empty")
	ErrMissingModel    = errors.New("agentloop: model is required")
	ErrInvalidMaxSteps = errors.New("agentloop: max steps must be at least 1")
	ErrRunInProgress   = errors.New("agentloop: a run is already in progress")
)

// Config bounds and tunes the loop. Step count, consecutive text replies and
// command timeouts are capped independently.
type Config struct {
	// MaxSteps is the planner round budget.
	MaxSteps int `json:"max_steps"`
	// MaxTextResponses is how many consecutive text-only replies end a run.
	MaxTextResponses int `json:"max_text_responses"`
	// CompletionPhrases replaces DefaultCompletionPhrases when non-nil. An
	// empty, non-nil slice turns the phrase check off.
	CompletionPhrases []string `json:"completion_phrases,omitempty"`

	CommandTimeout       time.Duration `json:"command_timeout"`
	MaxCommandTimeout    time.Duration `json:"max_command_timeout"`
	DisableCommandSafety bool          `json:"disable_command_safety"`

	EnableLoopDetection bool `json:"enable_loop_detection"`
	LoopDetectionWindow int  `json:"loop_detection_window"`

	// ToolOutputLimits override the per-tool character limits applied to
	// the conversation copy of tool results.
	ToolOutputLimits map[ToolKind]int `json:"tool_output_limits,omitempty"`

	// WorkingDir is where each run's session starts. Empty means the home
	// directory.
	WorkingDir string `json:"working_dir,omitempty"`
	// UserInstructions are appended to the system prompt.
	UserInstructions string `json:"user_instructions,omitempty"`
}

// DefaultConfig returns the default loop configuration.
func DefaultConfig() Config {
	return Config{
		MaxSteps:            DefaultMaxSteps,
		MaxTextResponses:    DefaultMaxTextResponses,
		CommandTimeout:      DefaultCommandTimeout,
		MaxCommandTimeout:   MaxCommandTimeout,
		LoopDetectionWindow: DefaultLoopDetectionWindow,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxSteps == 0 {
		c.MaxSteps = def.MaxSteps
	}
	if c.MaxTextResponses <= 0 {
		c.MaxTextResponses = def.MaxTextResponses
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = def.CommandTimeout
	}
	if c.MaxCommandTimeout <= 0 {
		c.MaxCommandTimeout = def.MaxCommandTimeout
	}
	if c.LoopDetectionWindow <= 0 {
		c.LoopDetectionWindow = def.LoopDetectionWindow
	}
	if c.CompletionPhrases == nil {
		c.CompletionPhrases = DefaultCompletionPhrases
	}
	return c
}

// Agent drives a planner through the tool loop. One run may be active at a
// time; each run gets a fresh Session.
type Agent struct {
	planner     Planner
	config      Config
	logger      *observability.Logger
	metrics     *observability.Metrics
	runner      CommandRunner
	resolver    *PathResolver
	sessionOpts []SessionOption
	toolDefs    []unifiedllm.ToolDefinition
	running     atomic.Bool
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithLogger sets the structured logger.
func WithLogger(l *observability.Logger) AgentOption {
	return func(a *Agent) { a.logger = l }
}

// WithMetrics records runs, planner requests and tool executions.
func WithMetrics(m *observability.Metrics) AgentOption {
	return func(a *Agent) { a.metrics = m }
}

// WithRunner replaces the shell used by run_command.
func WithRunner(r CommandRunner) AgentOption {
	return func(a *Agent) { a.runner = r }
}

// WithResolver replaces the platform path resolver.
func WithResolver(r *PathResolver) AgentOption {
	return func(a *Agent) { a.resolver = r }
}

// WithSessionOptions adds options applied to every run's Session.
func WithSessionOptions(opts ...SessionOption) AgentOption {
	return func(a *Agent) { a.sessionOpts = append(a.sessionOpts, opts...) }
}

// NewAgent creates an Agent.
func NewAgent(planner Planner, cfg Config, opts ...AgentOption) *Agent {
	a := &Agent{
		planner:  planner,
		config:   cfg.withDefaults(),
		toolDefs: ToolDefinitions(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.runner == nil {
		a.runner = LocalRunner{}
	}
	if a.resolver == nil {
		a.resolver = NewPathResolver()
	}
	return a
}

// Config returns the effective configuration.
func (a *Agent) Config() Config { return a.config }

// RunRequest holds the caller-supplied parameters of one run.
type RunRequest struct {
	Task string
	// Context is optional free text appended to the task.
	Context string
	Model   string
	// Provider routes the request when the planner serves several.
	Provider string
	// MaxSteps overrides the configured budget when positive.
	MaxSteps int
	// OnStep, when set, sees every step before the sequence yields it.
	OnStep func(Step)
}

// Run validates req and prepares a run. No planner call is made until the
// returned Run's steps are consumed. The caller must drain Steps or call
// Close, otherwise the agent stays busy.
func (a *Agent) Run(ctx context.Context, req RunRequest) (*Run, error) {
	if strings.TrimSpace(req.Task) == "" {
		return nil, ErrEmptyTask
	}
	if req.Model == "" {
		return nil, ErrMissingModel
	}
	maxSteps := a.config.MaxSteps
	if req.MaxSteps != 0 {
		maxSteps = req.MaxSteps
	}
	if maxSteps < 1 {
		return nil, ErrInvalidMaxSteps
	}
	if !a.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}

	opts := append([]SessionOption{}, a.sessionOpts...)
	if a.config.WorkingDir != "" {
		opts = append(opts, WithWorkingDir(a.config.WorkingDir))
	}
	session, err := NewSession(opts...)
	if err != nil {
		a.running.Store(false)
		return nil, err
	}

	dispatcher := NewDispatcher(session,
		WithCommandRunner(a.runner),
		WithPathResolver(a.resolver),
		WithCommandTimeouts(a.config.CommandTimeout, a.config.MaxCommandTimeout),
		WithCommandSafety(!a.config.DisableCommandSafety),
		WithDispatcherLogger(a.logger),
		WithDispatcherMetrics(a.metrics),
	)

	prompt := BuildSystemPrompt(PromptContext{WorkingDir: session.WorkingDir(), Model: req.Model})
	if a.config.UserInstructions != "" {
		prompt += "\n\n# User Instructions\n\n" + a.config.UserInstructions
	}

	return newRun(ctx, a, req, maxSteps, session, dispatcher,
		NewConversation(prompt, BuildUserMessage(req.Task, req.Context))), nil
}

// isCompletionText applies the completion phrase heuristic.
func (a *Agent) isCompletionText(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range a.config.CompletionPhrases {
		if phrase != "" && strings.Contains(lower, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}

func (a *Agent) release() {
	a.running.Store(false)
}
