package unifiedllm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestAnthropicAdapter(t *testing.T, handler http.HandlerFunc) *AnthropicAdapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	adapter, err := NewAnthropicAdapter(AnthropicConfig{
		APIKey:  "sk-ant-test",
		BaseURL: server.URL,
		Model:   "claude-sonnet-4-5",
	})
	if err != nil {
		t.Fatalf("NewAnthropicAdapter: %v", err)
	}
	return adapter
}

func TestAnthropicAdapterComplete(t *testing.T) {
	var captured map[string]any
	adapter := newTestAnthropicAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/messages") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "sk-ant-test" {
			t.Error("missing x-api-key header")
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-5",
			"content": [
				{"type": "text", "text": "Listing now."},
				{"type": "tool_use", "id": "toolu_1", "name": "list_directory", "input": {"path": "~"}}
			],
			"stop_reason": "tool_use",
			"usage": {"input_tokens": 12, "output_tokens": 7}
		}`)
	})

	resp, err := adapter.Complete(context.Background(), Request{
		Messages: []Message{
			SystemMessage("you are a desktop agent"),
			UserMessage("list home"),
			{Role: RoleAssistant, Content: []ContentPart{
				ToolCallPart("toolu_0", "change_directory", json.RawMessage(`{"path":"~"}`)),
				ToolCallPart("toolu_9", "read_file", json.RawMessage(`{"path":"x"}`)),
			}},
			ToolResultMessage("toolu_0", "Changed directory to: /home/u", false),
			ToolResultMessage("toolu_9", "File not found: x", true),
		},
		ToolDefs: []ToolDefinition{{
			Name:        "list_directory",
			Description: "List a directory",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"path": map[string]any{"type": "string"}},
			},
		}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Text() != "Listing now." {
		t.Errorf("unexpected text %q", resp.Text())
	}
	calls := resp.ToolCallsFromResponse()
	if len(calls) != 1 || calls[0].ID != "toolu_1" || calls[0].Name != "list_directory" {
		t.Fatalf("unexpected tool calls %+v", calls)
	}
	if resp.FinishReason.Reason != "tool_calls" || resp.FinishReason.Raw != "tool_use" {
		t.Errorf("unexpected finish reason %+v", resp.FinishReason)
	}
	if resp.Usage.TotalTokens != 19 {
		t.Errorf("expected 19 total tokens, got %d", resp.Usage.TotalTokens)
	}

	system, _ := captured["system"].([]any)
	if len(system) != 1 {
		t.Errorf("expected system prompt to be sent separately, got %v", captured["system"])
	}
	msgs, _ := captured["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("expected user/assistant/user turns, got %d messages", len(msgs))
	}
	last, _ := msgs[2].(map[string]any)
	content, _ := last["content"].([]any)
	if len(content) != 2 {
		t.Errorf("expected both tool results merged into one user turn, got %d blocks", len(content))
	}
}

func TestAnthropicAdapterError(t *testing.T) {
	adapter := newTestAnthropicAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"type": "error", "error": {"type": "authentication_error", "message": "invalid x-api-key"}}`)
	})

	_, err := adapter.Complete(context.Background(), Request{Messages: []Message{UserMessage("hi")}})
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %T (%v)", err, err)
	}
	if authErr.Message != "invalid x-api-key" {
		t.Errorf("expected provider message, got %q", authErr.Message)
	}
	if authErr.ErrorCode != "authentication_error" {
		t.Errorf("expected error code, got %q", authErr.ErrorCode)
	}
	if IsRetryable(err) {
		t.Error("authentication errors must not be retryable")
	}
}

func TestToAnthropicMessagesRejectsBadArguments(t *testing.T) {
	_, err := toAnthropicMessages([]Message{{Role: RoleAssistant, Content: []ContentPart{
		ToolCallPart("t", "read_file", json.RawMessage(`not json`)),
	}}})
	if err == nil {
		t.Fatal("expected error for malformed tool arguments")
	}
}

func TestNewAnthropicAdapterRequiresKey(t *testing.T) {
	if _, err := NewAnthropicAdapter(AnthropicConfig{}); err == nil {
		t.Fatal("expected error without API key")
	}
}
