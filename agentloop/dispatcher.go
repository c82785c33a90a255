package agentloop

import (
	"context"
	"fmt"
	"time"

	"github.com/martinemde/deskagent/observability"
)

// Default bounds for run_command timeouts.
const (
	DefaultCommandTimeout = 60 * time.Second
	MaxCommandTimeout     = 600 * time.Second
)

// Dispatcher validates tool invocations and runs them against a Session.
// Every failure, including a panic inside a handler, comes back as a failed
// ToolResult.
type Dispatcher struct {
	session        *Session
	runner         CommandRunner
	resolver       *PathResolver
	defaultTimeout time.Duration
	maxTimeout     time.Duration
	commandSafety  bool
	logger         *observability.Logger
	metrics        *observability.Metrics
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithCommandRunner replaces the shell used by run_command.
func WithCommandRunner(r CommandRunner) DispatcherOption {
	return func(d *Dispatcher) { d.runner = r }
}

// WithPathResolver replaces the platform path resolver.
func WithPathResolver(r *PathResolver) DispatcherOption {
	return func(d *Dispatcher) { d.resolver = r }
}

// WithCommandTimeouts sets the default run_command timeout and the largest
// timeout a caller may request. Non-positive values keep the defaults.
func WithCommandTimeouts(def, limit time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if def > 0 {
			d.defaultTimeout = def
		}
		if limit > 0 {
			d.maxTimeout = limit
		}
	}
}

// WithCommandSafety toggles the dangerous-command blocklist. It is on by
// default.
func WithCommandSafety(enabled bool) DispatcherOption {
	return func(d *Dispatcher) { d.commandSafety = enabled }
}

// WithDispatcherLogger sets the logger used for dispatch records.
func WithDispatcherLogger(l *observability.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// WithDispatcherMetrics records tool executions.
func WithDispatcherMetrics(m *observability.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher creates a Dispatcher bound to session.
func NewDispatcher(session *Session, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		session:        session,
		runner:         LocalRunner{},
		defaultTimeout: DefaultCommandTimeout,
		maxTimeout:     MaxCommandTimeout,
		commandSafety:  true,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.resolver == nil {
		d.resolver = NewPathResolver()
	}
	if d.maxTimeout < d.defaultTimeout {
		d.maxTimeout = d.defaultTimeout
	}
	return d
}

// Session returns the session the dispatcher mutates.
func (d *Dispatcher) Session() *Session { return d.session }

// Execute runs the tool called name. Unknown names and arguments that do
// not match the tool's schema are rejected without running anything.
func (d *Dispatcher) Execute(ctx context.Context, name string, args map[string]any) ToolResult {
	kind, ok := ParseToolKind(name)
	if !ok {
		d.logger.Warn(ctx, "unknown tool requested", "tool", name)
		d.metrics.RecordToolExecution(name, "unknown", 0)
		return failure("unknown tool: " + name)
	}
	if args == nil {
		args = map[string]any{}
	}
	if err := ValidateArguments(kind, args); err != nil {
		d.metrics.RecordToolExecution(name, "invalid", 0)
		return failure(fmt.Sprintf("Invalid arguments for %s: %v", name, err))
	}

	start := time.Now()
	result := d.run(ctx, kind, args)
	elapsed := time.Since(start)

	status := "success"
	if !result.Success {
		status = "failure"
	}
	d.metrics.RecordToolExecution(name, status, elapsed.Seconds())
	d.logger.Debug(ctx, "tool executed",
		"tool", name,
		"success", result.Success,
		"duration_ms", elapsed.Milliseconds(),
	)
	return result
}

func (d *Dispatcher) run(ctx context.Context, kind ToolKind, args map[string]any) (result ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error(ctx, "tool panicked", "tool", kind.String(), "panic", fmt.Sprint(r))
			result = failure(fmt.Sprintf("Tool error (%s): %v", kind, r))
		}
	}()

	switch kind {
	case ToolRunCommand:
		return d.runCommand(ctx, args)
	case ToolReadFile:
		return d.readFile(args)
	case ToolWriteFile:
		return d.writeFile(args)
	case ToolListDirectory:
		return d.listDirectory(args)
	case ToolGetCurrentDirectory:
		return ToolResult{Success: true, Output: d.session.WorkingDir()}
	case ToolChangeDirectory:
		return d.changeDirectory(args)
	case ToolTaskComplete:
		return taskComplete(args)
	}
	return failure("unknown tool: " + kind.String())
}

// resolve interprets a path argument against the session working directory.
func (d *Dispatcher) resolve(raw string) string {
	return d.resolver.Resolve(raw, d.session.WorkingDir())
}
