package agentloop

import (
	"context"
	"fmt"
	"strings"
	"time"
)

func (d *Dispatcher) runCommand(ctx context.Context, args map[string]any) ToolResult {
	command, _ := GetStringArg(args, "command")
	if strings.TrimSpace(command) == "" {
		return failure("command must not be empty")
	}
	if d.commandSafety {
		if ok, reason := CheckCommandSafety(command); !ok {
			return failure(reason)
		}
	}

	dir := d.session.WorkingDir()
	if wd, ok := GetStringArg(args, "working_dir"); ok && wd != "" {
		dir = d.resolve(wd)
	}

	timeout := d.defaultTimeout
	if secs, ok := GetIntArg(args, "timeout"); ok && secs > 0 {
		// Clamp in seconds so a huge request cannot overflow the Duration.
		if secs >= int(d.maxTimeout/time.Second) {
			timeout = d.maxTimeout
		} else {
			timeout = time.Duration(secs) * time.Second
		}
	}
	if timeout > d.maxTimeout {
		timeout = d.maxTimeout
	}

	res, err := d.runner.ExecCommand(ctx, command, timeout, dir, d.session.Environ())
	if err != nil {
		d.session.recordCommand(command, dir, -1)
		out := ToolResult{Success: false, Error: err.Error()}
		if res != nil {
			out.Output = res.Output()
		}
		return out
	}
	d.session.recordCommand(command, dir, res.ExitCode)

	if res.TimedOut {
		return ToolResult{
			Success: false,
			Output:  res.Output(),
			Error:   fmt.Sprintf("Command timed out after %d seconds", int(timeout/time.Second)),
		}
	}
	if res.ExitCode != 0 {
		msg := fmt.Sprintf("Command failed with exit code %d", res.ExitCode)
		if stderr := strings.TrimRight(res.Stderr, "\r\n"); stderr != "" {
			msg += "\n" + stderr
		}
		return ToolResult{Success: false, Output: res.Stdout, Error: msg}
	}
	return ToolResult{Success: true, Output: strings.TrimRight(res.Output(), "\r\n")}
}

func taskComplete(args map[string]any) ToolResult {
	summary, _ := GetStringArg(args, "summary")

	var sb strings.Builder
	sb.WriteString("✅ Task completed!\n\n")
	sb.WriteString(summary)
	if files := GetStringSliceArg(args, "files_modified"); len(files) > 0 {
		sb.WriteString("\n\nFiles modified:\n")
		for _, f := range files {
			fmt.Fprintf(&sb, "  • %s\n", f)
		}
	}
	return ToolResult{Success: true, Output: sb.String()}
}
