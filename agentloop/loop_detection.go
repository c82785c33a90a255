package agentloop

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// DefaultLoopDetectionWindow is the number of recent tool calls inspected.
const DefaultLoopDetectionWindow = 10

// toolCallSignature computes a deterministic signature for a tool call
// (name + hash of arguments).
func toolCallSignature(name string, arguments json.RawMessage) string {
	h := sha256.Sum256(arguments)
	return fmt.Sprintf("%s:%x", name, h[:8])
}

// DetectLoop checks if the last windowSize tool calls in the conversation
// follow a repeating pattern of length 1, 2, or 3.
func DetectLoop(conv *Conversation, windowSize int) bool {
	if windowSize <= 0 {
		return false
	}
	calls := conv.RecentToolCalls(windowSize)
	if len(calls) < windowSize {
		return false
	}
	sigs := make([]string, len(calls))
	for i, tc := range calls {
		sigs[i] = toolCallSignature(tc.Name, tc.Arguments)
	}

	for patternLen := 1; patternLen <= 3; patternLen++ {
		if windowSize%patternLen != 0 {
			continue
		}
		if repeats(sigs, patternLen) {
			return true
		}
	}
	return false
}

func repeats(sigs []string, patternLen int) bool {
	for i := patternLen; i < len(sigs); i++ {
		if sigs[i] != sigs[i%patternLen] {
			return false
		}
	}
	return true
}

func loopWarning(window int) string {
	return fmt.Sprintf("Loop detected: the last %d tool calls follow a repeating pattern. Try a different approach, or call task_complete if the task is finished.", window)
}
