package agentloop

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// OSInstructions returns the shell guidance for goos.
func OSInstructions(goos string) string {
	switch goos {
	case "darwin":
		return "The user is on macOS, so use Unix-compatible commands (mv, cp, rm, ls, etc.) or Python scripts."
	case "windows":
		return "The user is on Windows, so use Windows-compatible commands (dir, copy, del, etc.), PowerShell commands, or Python scripts."
	default:
		return "The user is on Linux, so use Unix-compatible commands (mv, cp, rm, ls, etc.) or Python scripts."
	}
}

// PromptContext is the runtime information placed in the system prompt.
type PromptContext struct {
	WorkingDir string
	Platform   string
	Model      string
	Date       time.Time
}

// BuildSystemPrompt renders the system prompt: the tool list, the rules the
// planner must follow, OS guidance and an environment block.
func BuildSystemPrompt(pc PromptContext) string {
	if pc.Platform == "" {
		pc.Platform = runtime.GOOS
	}
	if pc.Date.IsZero() {
		pc.Date = time.Now()
	}

	var sb strings.Builder
	sb.WriteString("You are an AI assistant that helps users accomplish tasks by executing commands and managing files.\n\n")
	sb.WriteString("You have access to the following tools:\n")
	for _, spec := range catalog {
		fmt.Fprintf(&sb, "- %s: %s\n", spec.Name, spec.Description)
	}

	sb.WriteString(`
CRITICAL RULES:
1. You MUST call task_complete when you have finished the user's task
2. Do NOT output multiple text responses - always make a tool call
3. After getting a tool result that completes the task, immediately call task_complete
4. Break complex tasks into smaller steps
5. If a command fails, try to understand why and fix it
6. Be careful with destructive operations - list files before deleting

`)
	sb.WriteString(OSInstructions(pc.Platform))
	sb.WriteString(`

WORKFLOW:
1. Analyze the task
2. Call appropriate tools to complete it
3. Once done, ALWAYS call task_complete with a summary

`)
	sb.WriteString(BuildEnvironmentContext(pc))
	return sb.String()
}

// BuildEnvironmentContext generates the structured environment context block.
func BuildEnvironmentContext(pc PromptContext) string {
	var sb strings.Builder
	sb.WriteString("<environment>\n")
	fmt.Fprintf(&sb, "Working directory: %s\n", pc.WorkingDir)
	fmt.Fprintf(&sb, "Platform: %s\n", pc.Platform)
	fmt.Fprintf(&sb, "Today's date: %s\n", pc.Date.Format("2006-01-02"))
	if pc.Model != "" {
		fmt.Fprintf(&sb, "Model: %s\n", pc.Model)
	}
	sb.WriteString("</environment>")
	return sb.String()
}
