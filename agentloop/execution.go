package agentloop

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"time"
)

// ExecResult holds the result of a command execution.
type ExecResult struct {
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ExitCode   int    `json:"exit_code"`
	TimedOut   bool   `json:"timed_out"`
	DurationMs int64  `json:"duration_ms"`
}

// Output returns combined stdout and stderr.
func (r ExecResult) Output() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// CommandRunner runs shell commands for run_command.
type CommandRunner interface {
	ExecCommand(ctx context.Context, command string, timeout time.Duration, dir string, env []string) (*ExecResult, error)
}

// LocalRunner runs commands through the host shell: bash -c on Unix and
// cmd /C on Windows.
type LocalRunner struct{}

// shellCommand returns the interpreter and flag used to run a command line.
func shellCommand() (string, string) {
	if runtime.GOOS == "windows" {
		return "cmd", "/C"
	}
	return "bash", "-c"
}

// ExecCommand runs command in dir with exactly env. A timeout kills the whole
// process tree and returns the output captured so far with TimedOut set.
// A non-zero exit is reported through ExitCode, not as an error.
func (LocalRunner) ExecCommand(ctx context.Context, command string, timeout time.Duration, dir string, env []string) (*ExecResult, error) {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shell, flag := shellCommand()
	cmd := exec.CommandContext(runCtx, shell, flag, command)
	cmd.Dir = dir
	cmd.Env = env
	configureProcessGroup(cmd)
	// Grandchildren may hold the pipes open after the group is killed.
	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	result := &ExecResult{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		DurationMs: duration.Milliseconds(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
			result.TimedOut = true
			result.ExitCode = -1
		case ctx.Err() != nil:
			return result, fmt.Errorf("exec_command: %w", ctx.Err())
		case errors.As(err, &exitErr):
			result.ExitCode = exitErr.ExitCode()
		default:
			return nil, fmt.Errorf("exec_command: %w", err)
		}
	}

	return result, nil
}
