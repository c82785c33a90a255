package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/martinemde/deskagent/agentloop"
	"github.com/martinemde/deskagent/observability"
)

const maxMessageSize = 1024 * 1024

// Server exposes a Dispatcher's tools over MCP. All calls share the
// dispatcher's Session, so change_directory persists between calls.
type Server struct {
	dispatcher *agentloop.Dispatcher
	logger     *observability.Logger
	info       ServerInfo
	tools      []MCPTool

	writeMu sync.Mutex
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Logs must not go to the protocol stream.
func WithLogger(l *observability.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithServerInfo sets the name and version reported by initialize.
func WithServerInfo(name, version string) Option {
	return func(s *Server) { s.info = ServerInfo{Name: name, Version: version} }
}

// NewServer creates a Server that runs tools through d.
func NewServer(d *agentloop.Dispatcher, opts ...Option) (*Server, error) {
	s := &Server{
		dispatcher: d,
		info:       ServerInfo{Name: "deskagent", Version: "dev"},
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, spec := range agentloop.Catalog() {
		schema, err := json.Marshal(spec.JSONSchema())
		if err != nil {
			return nil, fmt.Errorf("encode schema for %s: %w", spec.Name, err)
		}
		s.tools = append(s.tools, MCPTool{
			Name:        spec.Name,
			Description: spec.Description,
			InputSchema: schema,
		})
	}
	return s, nil
}

// Serve reads one JSON-RPC message per line from in and writes responses
// to out until in is exhausted or ctx is done. Requests are handled in
// order.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxMessageSize)

	s.logger.Info(ctx, "mcp server started", "session_id", s.dispatcher.Session().ID())
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		resp := s.handle(ctx, line)
		if resp == nil {
			continue
		}
		if err := s.write(out, resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	return nil
}

func (s *Server) write(out io.Writer, resp *Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err = out.Write(append(data, '\n'))
	return err
}

func (s *Server) handle(ctx context.Context, line []byte) *Response {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return errorResponse(nil, ErrCodeParseError, "parse error: "+err.Error())
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		if req.IsNotification() {
			return nil
		}
		return errorResponse(req.ID, ErrCodeInvalidRequest, "invalid request")
	}

	s.logger.Debug(ctx, "mcp request", "method", req.Method)

	if req.IsNotification() {
		// notifications/initialized and friends need no answer.
		return nil
	}

	switch req.Method {
	case "initialize":
		return s.initialize(req)
	case "ping":
		return resultResponse(req.ID, struct{}{})
	case "tools/list":
		return resultResponse(req.ID, ListToolsResult{Tools: s.tools})
	case "tools/call":
		return s.callTool(ctx, req)
	default:
		return errorResponse(req.ID, ErrCodeMethodNotFound, "method not found: "+req.Method)
	}
}

func (s *Server) initialize(req Request) *Response {
	var params InitializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, ErrCodeInvalidParams, "invalid initialize params: "+err.Error())
		}
	}
	version := params.ProtocolVersion
	if version == "" {
		version = ProtocolVersion
	}
	return resultResponse(req.ID, InitializeResult{
		ProtocolVersion: version,
		Capabilities:    Capabilities{Tools: &ToolsCapability{}},
		ServerInfo:      s.info,
	})
}

func (s *Server) callTool(ctx context.Context, req Request) *Response {
	var params CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		return errorResponse(req.ID, ErrCodeInvalidParams, "tools/call requires a tool name")
	}

	args, err := agentloop.ParseToolArguments(params.Arguments)
	if err != nil {
		return resultResponse(req.ID, textResult("Invalid arguments for "+params.Name+": "+err.Error(), true))
	}

	result := s.dispatcher.Execute(ctx, params.Name, args)
	s.logger.Debug(ctx, "mcp tool call", "tool", params.Name, "success", result.Success)
	return resultResponse(req.ID, textResult(result.ConversationText(), !result.Success))
}

func resultResponse(id json.RawMessage, result any) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Result: result}
}

func errorResponse(id json.RawMessage, code int, msg string) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Error: &Error{Code: code, Message: msg}}
}
