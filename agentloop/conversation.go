package agentloop

import (
	"github.com/martinemde/deskagent/unifiedllm"
)

// Conversation is the append-only message log sent to the planner on every
// round. Tool messages always answer a call recorded earlier in the log.
type Conversation struct {
	messages []unifiedllm.Message
	pending  map[string]bool
}

// NewConversation seeds a conversation with a system prompt and the user's
// request.
func NewConversation(systemPrompt, userMessage string) *Conversation {
	c := &Conversation{pending: make(map[string]bool)}
	if systemPrompt != "" {
		c.messages = append(c.messages, unifiedllm.SystemMessage(systemPrompt))
	}
	c.messages = append(c.messages, unifiedllm.UserMessage(userMessage))
	return c
}

// BuildUserMessage joins the task and optional free-text context into the
// seed user message.
func BuildUserMessage(task, context string) string {
	if context == "" {
		return task
	}
	return task + "\n\n" + context
}

// AppendAssistant records a planner turn and the tool calls it proposed.
func (c *Conversation) AppendAssistant(text string, calls []unifiedllm.ToolCall) {
	msg := unifiedllm.AssistantMessage(text)
	for _, tc := range calls {
		msg.Content = append(msg.Content, unifiedllm.ToolCallPart(tc.ID, tc.Name, tc.Arguments))
		c.pending[tc.ID] = true
	}
	c.messages = append(c.messages, msg)
}

// AppendToolResult answers the tool call with the given id. It reports
// false, and appends nothing, when no such call is outstanding.
func (c *Conversation) AppendToolResult(callID, content string, isError bool) bool {
	if !c.pending[callID] {
		return false
	}
	delete(c.pending, callID)
	c.messages = append(c.messages, unifiedllm.ToolResultMessage(callID, content, isError))
	return true
}

// AppendSteering adds an instruction from the loop itself. It is sent as a
// user message so the planner treats it as guidance.
func (c *Conversation) AppendSteering(text string) {
	c.messages = append(c.messages, unifiedllm.UserMessage(text))
}

// Messages returns a copy of the log.
func (c *Conversation) Messages() []unifiedllm.Message {
	out := make([]unifiedllm.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages.
func (c *Conversation) Len() int { return len(c.messages) }

// RecentToolCalls returns up to count of the most recent tool calls in
// chronological order.
func (c *Conversation) RecentToolCalls(count int) []unifiedllm.ToolCallData {
	var calls []unifiedllm.ToolCallData
	for i := len(c.messages) - 1; i >= 0 && len(calls) < count; i-- {
		msg := c.messages[i]
		if msg.Role != unifiedllm.RoleAssistant {
			continue
		}
		tcs := msg.ToolCalls()
		for j := len(tcs) - 1; j >= 0 && len(calls) < count; j-- {
			calls = append(calls, tcs[j])
		}
	}
	for i, j := 0, len(calls)-1; i < j; i, j = i+1, j-1 {
		calls[i], calls[j] = calls[j], calls[i]
	}
	return calls
}
