package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/martinemde/deskagent/agentloop"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	session, err := agentloop.NewSession(agentloop.WithWorkingDir(dir), agentloop.WithEnv(map[string]string{}))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	d := agentloop.NewDispatcher(session, agentloop.WithPathResolver(agentloop.NewPathResolverWith(dir, nil)))
	s, err := NewServer(d, WithServerInfo("deskagent-test", "1.2.3"))
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s, session.WorkingDir()
}

type decodedResponse struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
}

// serve feeds lines to the server and decodes every response it writes.
func serve(t *testing.T, s *Server, lines ...string) []decodedResponse {
	t.Helper()
	var out strings.Builder
	if err := s.Serve(context.Background(), strings.NewReader(strings.Join(lines, "\n")+"\n"), &out); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	var responses []decodedResponse
	scanner := bufio.NewScanner(strings.NewReader(out.String()))
	for scanner.Scan() {
		var resp decodedResponse
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			t.Fatalf("decode %q: %v", scanner.Text(), err)
		}
		responses = append(responses, resp)
	}
	return responses
}

func decodeToolResult(t *testing.T, resp decodedResponse) ToolCallResult {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected protocol error %+v", resp.Error)
	}
	var result ToolCallResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("decode tool result: %v", err)
	}
	if len(result.Content) != 1 || result.Content[0].Type != "text" {
		t.Fatalf("unexpected content %+v", result.Content)
	}
	return result
}

func TestInitializeAndNotifications(t *testing.T) {
	s, _ := newTestServer(t)
	responses := serve(t, s,
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26"}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":"two","method":"ping"}`,
	)
	if len(responses) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(responses))
	}

	var init InitializeResult
	if err := json.Unmarshal(responses[0].Result, &init); err != nil {
		t.Fatal(err)
	}
	if init.ProtocolVersion != "2025-03-26" || init.ServerInfo.Name != "deskagent-test" || init.Capabilities.Tools == nil {
		t.Errorf("unexpected initialize result %+v", init)
	}
	if string(responses[0].ID) != "1" || string(responses[1].ID) != `"two"` {
		t.Errorf("ids not echoed: %s, %s", responses[0].ID, responses[1].ID)
	}
}

func TestToolsList(t *testing.T) {
	s, _ := newTestServer(t)
	responses := serve(t, s, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)

	var list ListToolsResult
	if err := json.Unmarshal(responses[0].Result, &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Tools) != 7 {
		t.Fatalf("expected 7 tools, got %d", len(list.Tools))
	}
	for _, tool := range list.Tools {
		var schema map[string]any
		if err := json.Unmarshal(tool.InputSchema, &schema); err != nil {
			t.Fatalf("%s: bad schema: %v", tool.Name, err)
		}
		if schema["type"] != "object" {
			t.Errorf("%s: expected object schema, got %v", tool.Name, schema["type"])
		}
	}
}

func TestToolsCallSharesSession(t *testing.T) {
	s, dir := newTestServer(t)
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	responses := serve(t, s,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"change_directory","arguments":{"path":"sub"}}}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"get_current_directory","arguments":{}}}`,
	)
	if got := decodeToolResult(t, responses[1]); got.IsError || got.Content[0].Text != filepath.Join(dir, "sub") {
		t.Errorf("expected cwd to persist, got %+v", got)
	}
}

func TestToolsCallFailures(t *testing.T) {
	s, _ := newTestServer(t)
	responses := serve(t, s,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"delete_file","arguments":{"path":"x"}}}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"read_file","arguments":{"path":"missing.txt"}}}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"read_file","arguments":"oops"}}`,
	)

	unknown := decodeToolResult(t, responses[0])
	if !unknown.IsError || !strings.Contains(unknown.Content[0].Text, "unknown tool") {
		t.Errorf("unexpected unknown tool result %+v", unknown)
	}
	missing := decodeToolResult(t, responses[1])
	if !missing.IsError || !strings.HasPrefix(missing.Content[0].Text, "\n\nError: File not found") {
		t.Errorf("unexpected missing file result %+v", missing)
	}
	bad := decodeToolResult(t, responses[2])
	if !bad.IsError {
		t.Errorf("expected malformed arguments to fail, got %+v", bad)
	}
}

func TestProtocolErrors(t *testing.T) {
	s, _ := newTestServer(t)
	responses := serve(t, s,
		`{not json`,
		`{"jsonrpc":"2.0","id":1,"method":"resources/list"}`,
		`{"jsonrpc":"1.0","id":2,"method":"ping"}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{}}`,
	)
	want := []int{ErrCodeParseError, ErrCodeMethodNotFound, ErrCodeInvalidRequest, ErrCodeInvalidParams}
	if len(responses) != len(want) {
		t.Fatalf("expected %d responses, got %d", len(want), len(responses))
	}
	for i, code := range want {
		if responses[i].Error == nil || responses[i].Error.Code != code {
			t.Errorf("response %d: expected code %d, got %+v", i, code, responses[i].Error)
		}
	}
	if id := string(responses[0].ID); id != "" && id != "null" {
		t.Errorf("expected null id for parse error, got %s", responses[0].ID)
	}
}
