package unifiedllm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicMaxTokens = 4096

// AnthropicConfig configures an AnthropicAdapter.
type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// MaxTokens is sent when a request leaves it unset; the Messages API
	// requires a value.
	MaxTokens int
}

// AnthropicAdapter implements ProviderAdapter over the Anthropic Messages API.
type AnthropicAdapter struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

// NewAnthropicAdapter creates an adapter for Anthropic.
func NewAnthropicAdapter(cfg AnthropicConfig) (*AnthropicAdapter, error) {
	if cfg.APIKey == "" {
		return nil, &ConfigurationError{SDKError: SDKError{Message: "anthropic: API key is required"}}
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultAnthropicMaxTokens
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0), // callers decide whether to retry
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicAdapter{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

// Name returns the provider identifier.
func (a *AnthropicAdapter) Name() string {
	return "anthropic"
}

// SupportsToolChoice reports whether the adapter supports a particular tool choice mode.
func (a *AnthropicAdapter) SupportsToolChoice(mode string) bool {
	switch mode {
	case "auto", "none", "required", "named":
		return true
	default:
		return false
	}
}

// Complete sends a blocking Messages request.
func (a *AnthropicAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	params, err := a.translateRequest(req)
	if err != nil {
		return nil, err
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, a.translateError(err)
	}
	return buildAnthropicResponse(msg), nil
}

// ListModels returns the model identifiers available to the API key.
func (a *AnthropicAdapter) ListModels(ctx context.Context) ([]string, error) {
	page, err := a.client.Models.List(ctx, anthropic.ModelListParams{})
	if err != nil {
		return nil, a.translateError(err)
	}
	ids := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (a *AnthropicAdapter) translateRequest(req Request) (anthropic.MessageNewParams, error) {
	model := req.Model
	if model == "" {
		model = a.model
	}
	if model == "" {
		return anthropic.MessageNewParams{}, &ConfigurationError{SDKError: SDKError{Message: "anthropic: no model specified"}}
	}

	messages, err := toAnthropicMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, &InvalidRequestError{ProviderError: ProviderError{
			SDKError: SDKError{Message: "anthropic: failed to convert messages", Cause: err},
			Provider: "anthropic",
		}}
	}

	maxTokens := a.maxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if system := req.SystemPrompt(); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	if len(req.ToolDefs) > 0 {
		tools, err := toAnthropicTools(req.ToolDefs)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		params.Tools = tools

		if req.ToolChoice != nil {
			switch req.ToolChoice.Mode {
			case "auto":
				params.ToolChoice = anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}
			case "required":
				params.ToolChoice = anthropic.ToolChoiceUnionParam{OfAny: &anthropic.ToolChoiceAnyParam{}}
			case "none":
				params.ToolChoice = anthropic.ToolChoiceUnionParam{OfNone: &anthropic.ToolChoiceNoneParam{}}
			case "named":
				params.ToolChoice = anthropic.ToolChoiceParamOfTool(req.ToolChoice.ToolName)
			}
		}
	}

	return params, nil
}

// toAnthropicMessages maps the unified conversation onto Messages API turns.
// System messages are carried separately. Tool results travel in user turns,
// and consecutive user-side messages are merged because the API requires
// roles to alternate.
func toAnthropicMessages(messages []Message) ([]anthropic.MessageParam, error) {
	var result []anthropic.MessageParam
	var pending []anthropic.ContentBlockParamUnion
	pendingRole := RoleUser

	flush := func() {
		if len(pending) == 0 {
			return
		}
		if pendingRole == RoleAssistant {
			result = append(result, anthropic.NewAssistantMessage(pending...))
		} else {
			result = append(result, anthropic.NewUserMessage(pending...))
		}
		pending = nil
	}

	for _, msg := range messages {
		if msg.Role == RoleSystem {
			continue
		}
		role := RoleUser
		if msg.Role == RoleAssistant {
			role = RoleAssistant
		}
		if role != pendingRole {
			flush()
			pendingRole = role
		}

		switch msg.Role {
		case RoleUser:
			if text := msg.TextContent(); text != "" {
				pending = append(pending, anthropic.NewTextBlock(text))
			}
		case RoleTool:
			if tr := msg.ToolResult(); tr != nil {
				pending = append(pending, anthropic.NewToolResultBlock(tr.ToolCallID, tr.Content, tr.IsError))
			}
		case RoleAssistant:
			if text := msg.TextContent(); text != "" {
				pending = append(pending, anthropic.NewTextBlock(text))
			}
			for _, call := range msg.ToolCalls() {
				input := map[string]any{}
				if len(call.Arguments) > 0 {
					if err := json.Unmarshal(call.Arguments, &input); err != nil {
						return nil, fmt.Errorf("invalid tool call input for %s: %w", call.Name, err)
					}
				}
				pending = append(pending, anthropic.NewToolUseBlock(call.ID, input, call.Name))
			}
		}
	}
	flush()
	return result, nil
}

func toAnthropicTools(defs []ToolDefinition) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		raw, err := json.Marshal(def.Parameters)
		if err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", def.Name, err)
		}
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(raw, &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", def.Name, err)
		}
		param := anthropic.ToolUnionParamOfTool(schema, def.Name)
		if param.OfTool == nil {
			return nil, fmt.Errorf("invalid tool schema for %s: missing tool definition", def.Name)
		}
		param.OfTool.Description = anthropic.String(def.Description)
		result = append(result, param)
	}
	return result, nil
}

func buildAnthropicResponse(msg *anthropic.Message) *Response {
	out := &Response{
		ID:       msg.ID,
		Model:    string(msg.Model),
		Provider: "anthropic",
		Message:  Message{Role: RoleAssistant},
		Usage: Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
			TotalTokens:  int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}

	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			out.Message.Content = append(out.Message.Content, TextPart(block.Text))
		case "thinking":
			out.Message.Content = append(out.Message.Content, ThinkingPart(block.Thinking, block.Signature))
		case "tool_use":
			args := block.Input
			if len(args) == 0 {
				args = json.RawMessage(`{}`)
			}
			out.Message.Content = append(out.Message.Content, ToolCallPart(block.ID, block.Name, args))
		}
	}

	raw := string(msg.StopReason)
	out.FinishReason = FinishReason{Reason: normalizeFinishReason(raw), Raw: raw}
	return out
}

type anthropicErrorPayload struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// translateError converts anthropic-sdk-go errors into the unified error hierarchy.
func (a *AnthropicAdapter) translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &AbortError{SDKError: SDKError{Message: "request cancelled", Cause: err}}
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		message := "anthropic request failed"
		code := ""
		var payload anthropicErrorPayload
		if raw := apiErr.RawJSON(); raw != "" && json.Unmarshal([]byte(raw), &payload) == nil {
			if payload.Error.Message != "" {
				message = payload.Error.Message
			}
			code = payload.Error.Type
		}
		return wrapCause(ErrorFromStatusCode(apiErr.StatusCode, message, "anthropic", code, nil), err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &NetworkError{SDKError: SDKError{Message: err.Error(), Cause: err}}
	}
	return &ProviderError{SDKError: SDKError{Message: err.Error(), Cause: err}, Provider: "anthropic", Retryable: true}
}
