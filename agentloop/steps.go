package agentloop

import "fmt"

// StepKind identifies what an agent step reports.
type StepKind string

const (
	StepThinking   StepKind = "thinking"
	StepToolCall   StepKind = "tool_call"
	StepToolResult StepKind = "tool_result"
	StepComplete   StepKind = "complete"
	StepError      StepKind = "error"
)

// Step is one observable action of a run. Steps are never modified after
// they are emitted.
type Step struct {
	// Number is the planner round that produced the step, starting at 1.
	Number        int            `json:"step_number"`
	Kind          StepKind       `json:"kind"`
	Content       string         `json:"content"`
	ToolName      string         `json:"tool_name,omitempty"`
	ToolArguments map[string]any `json:"tool_arguments,omitempty"`
	Result        *ToolResult    `json:"result,omitempty"`
}

// Terminal reports whether the step ends a run.
func (s Step) Terminal() bool {
	return s.Kind == StepComplete || s.Kind == StepError
}

func thinkingStep(n int, text string) Step {
	return Step{Number: n, Kind: StepThinking, Content: text}
}

func toolCallStep(n int, name string, args map[string]any) Step {
	return Step{
		Number:        n,
		Kind:          StepToolCall,
		Content:       fmt.Sprintf("Calling %s", name),
		ToolName:      name,
		ToolArguments: args,
	}
}

func toolResultStep(n int, name string, result ToolResult) Step {
	return Step{
		Number:   n,
		Kind:     StepToolResult,
		Content:  result.ConversationText(),
		ToolName: name,
		Result:   &result,
	}
}

func completeStep(n int, text string) Step {
	return Step{Number: n, Kind: StepComplete, Content: text}
}

func errorStep(n int, text string) Step {
	return Step{Number: n, Kind: StepError, Content: text}
}
