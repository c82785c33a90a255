package agentloop

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// TruncationMode specifies how output is truncated.
type TruncationMode string

const (
	TruncateHeadTail TruncationMode = "head_tail"
	TruncateTail     TruncationMode = "tail"
)

// Character limits for the copy of a tool result that enters the
// conversation. Steps always carry the full result.
var DefaultToolCharLimits = map[ToolKind]int{
	ToolRunCommand:    30000,
	ToolReadFile:      50000,
	ToolListDirectory: 20000,
	ToolWriteFile:     1000,
}

var defaultTruncationModes = map[ToolKind]TruncationMode{
	ToolRunCommand:    TruncateHeadTail,
	ToolReadFile:      TruncateHeadTail,
	ToolListDirectory: TruncateHeadTail,
	ToolWriteFile:     TruncateTail,
}

// DefaultToolLineLimits apply after character truncation.
var DefaultToolLineLimits = map[ToolKind]int{
	ToolRunCommand:    256,
	ToolListDirectory: 500,
}

const fallbackCharLimit = 30000

// TruncateOutput applies character-based truncation to output. Cut points
// move to rune boundaries, so the result stays valid UTF-8.
func TruncateOutput(output string, maxChars int, mode TruncationMode) string {
	if maxChars <= 0 || len(output) <= maxChars {
		return output
	}

	switch mode {
	case TruncateTail:
		start := runeStartAfter(output, len(output)-maxChars)
		return fmt.Sprintf("[WARNING: Tool output was truncated. First %d characters were removed.]\n\n", start) +
			output[start:]
	default:
		half := maxChars / 2
		head := runeStartBefore(output, half)
		tail := runeStartAfter(output, len(output)-half)
		return output[:head] +
			fmt.Sprintf("\n\n[WARNING: Tool output was truncated. %d characters were removed from the middle. "+
				"If you need to see specific parts, re-run the tool with more targeted parameters.]\n\n",
				tail-head) +
			output[tail:]
	}
}

// runeStartBefore returns the last rune boundary at or before i.
func runeStartBefore(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// runeStartAfter returns the first rune boundary at or after i.
func runeStartAfter(s string, i int) int {
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}

// TruncateLines applies line-based truncation using head/tail split.
func TruncateLines(output string, maxLines int) string {
	if maxLines <= 0 {
		return output
	}
	lines := strings.Split(output, "\n")
	if len(lines) <= maxLines {
		return output
	}

	headCount := maxLines / 2
	tailCount := maxLines - headCount
	omitted := len(lines) - headCount - tailCount

	return strings.Join(lines[:headCount], "\n") +
		fmt.Sprintf("\n[... %d lines omitted ...]\n", omitted) +
		strings.Join(lines[len(lines)-tailCount:], "\n")
}

// TruncateToolOutput bounds the text of one tool result for the
// conversation: characters first, then lines. Tools without an entry in
// charLimits use the package defaults.
func TruncateToolOutput(output string, kind ToolKind, charLimits map[ToolKind]int) string {
	maxChars, ok := charLimits[kind]
	if !ok {
		maxChars, ok = DefaultToolCharLimits[kind]
		if !ok {
			maxChars = fallbackCharLimit
		}
	}
	mode, ok := defaultTruncationModes[kind]
	if !ok {
		mode = TruncateHeadTail
	}

	result := TruncateOutput(output, maxChars, mode)
	if maxLines, ok := DefaultToolLineLimits[kind]; ok {
		result = TruncateLines(result, maxLines)
	}
	return result
}
