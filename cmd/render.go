package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/martinemde/deskagent/agentloop"
)

const maxRenderedResultLines = 20

var (
	thinkingStyle = lipgloss.NewStyle().Faint(true).Italic(true)
	toolCallStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69"))
	argsStyle     = lipgloss.NewStyle().Faint(true)
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failureStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	bannerStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1).Border(lipgloss.RoundedBorder())
	statsStyle    = lipgloss.NewStyle().Faint(true)
)

// renderStep formats one step for a terminal.
func renderStep(s agentloop.Step) string {
	prefix := fmt.Sprintf("[%d] ", s.Number)
	switch s.Kind {
	case agentloop.StepThinking:
		return prefix + thinkingStyle.Render(s.Content)
	case agentloop.StepToolCall:
		line := prefix + toolCallStyle.Render("→ "+s.ToolName)
		if len(s.ToolArguments) > 0 {
			if data, err := json.Marshal(s.ToolArguments); err == nil {
				line += " " + argsStyle.Render(string(data))
			}
		}
		return line
	case agentloop.StepToolResult:
		body := clipLines(s.Content, maxRenderedResultLines)
		if s.Result != nil && !s.Result.Success {
			return prefix + failureStyle.Render("✗ "+body)
		}
		return prefix + successStyle.Render("✓ "+body)
	case agentloop.StepComplete:
		return bannerStyle.BorderForeground(lipgloss.Color("42")).Render(s.Content)
	case agentloop.StepError:
		return bannerStyle.BorderForeground(lipgloss.Color("196")).Render(s.Content)
	}
	return prefix + s.Content
}

func renderStats(stats agentloop.RunStats) string {
	return statsStyle.Render(fmt.Sprintf("%d rounds · %d tool calls · %d tokens · %s",
		stats.Rounds, stats.ToolCalls, stats.Usage.TotalTokens, stats.Duration.Round(time.Millisecond)))
}

func clipLines(s string, limit int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= limit {
		return s
	}
	return strings.Join(lines[:limit], "\n") + fmt.Sprintf("\n… %d more lines", len(lines)-limit)
}
