package unifiedllm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Default endpoints for OpenAI-compatible providers.
const (
	OpenRouterBaseURL      = "https://openrouter.ai/api/v1"
	LMStudioBaseURL        = "http://localhost:1234/v1"
	DefaultAzureAPIVersion = "2024-02-15-preview"
)

// OpenAIConfig configures an OpenAIAdapter.
type OpenAIConfig struct {
	// Provider is the name the adapter reports: openai, openrouter, lmstudio
	// or azure.
	Provider string
	APIKey   string
	// BaseURL overrides the provider's default endpoint. Required for azure,
	// where it is the resource endpoint.
	BaseURL string
	// APIVersion is only used for azure.
	APIVersion string
	// Model is used when a request does not name one.
	Model string
}

// OpenAIAdapter implements ProviderAdapter over the Chat Completions API,
// covering OpenAI itself and the services that speak the same protocol.
type OpenAIAdapter struct {
	provider string
	model    string
	client   *openai.Client
}

// NewOpenAIAdapter creates an adapter for an OpenAI-compatible provider.
func NewOpenAIAdapter(cfg OpenAIConfig) (*OpenAIAdapter, error) {
	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}

	var clientConfig openai.ClientConfig
	switch cfg.Provider {
	case "azure":
		if cfg.BaseURL == "" {
			return nil, &ConfigurationError{SDKError: SDKError{Message: "azure: endpoint is required"}}
		}
		if cfg.APIKey == "" {
			return nil, &ConfigurationError{SDKError: SDKError{Message: "azure: API key is required"}}
		}
		if cfg.APIVersion == "" {
			cfg.APIVersion = DefaultAzureAPIVersion
		}
		clientConfig = openai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
		clientConfig.APIVersion = cfg.APIVersion
	case "openrouter":
		clientConfig = openai.DefaultConfig(cfg.APIKey)
		clientConfig.BaseURL = OpenRouterBaseURL
	case "lmstudio":
		// LM Studio ignores the key but the client always sends a header.
		key := cfg.APIKey
		if key == "" {
			key = "lm-studio"
		}
		clientConfig = openai.DefaultConfig(key)
		clientConfig.BaseURL = LMStudioBaseURL
	default:
		if cfg.APIKey == "" {
			return nil, &ConfigurationError{SDKError: SDKError{
				Message: fmt.Sprintf("%s: API key is required", cfg.Provider),
			}}
		}
		clientConfig = openai.DefaultConfig(cfg.APIKey)
	}
	if cfg.BaseURL != "" && cfg.Provider != "azure" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return &OpenAIAdapter{
		provider: cfg.Provider,
		model:    cfg.Model,
		client:   openai.NewClientWithConfig(clientConfig),
	}, nil
}

// Name returns the provider identifier.
func (a *OpenAIAdapter) Name() string {
	return a.provider
}

// SupportsToolChoice reports whether the adapter supports a particular tool choice mode.
func (a *OpenAIAdapter) SupportsToolChoice(mode string) bool {
	switch mode {
	case "auto", "none", "required", "named":
		return true
	default:
		return false
	}
}

// Complete sends a blocking chat completion request.
func (a *OpenAIAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	chatReq, err := a.translateRequest(req)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, a.translateError(err)
	}
	return a.buildResponse(resp), nil
}

// ListModels returns the model identifiers the endpoint reports, sorted.
func (a *OpenAIAdapter) ListModels(ctx context.Context) ([]string, error) {
	list, err := a.client.ListModels(ctx)
	if err != nil {
		return nil, a.translateError(err)
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (a *OpenAIAdapter) translateRequest(req Request) (openai.ChatCompletionRequest, error) {
	model := req.Model
	if model == "" {
		model = a.model
	}
	if model == "" {
		return openai.ChatCompletionRequest{}, &ConfigurationError{SDKError: SDKError{
			Message: fmt.Sprintf("%s: no model specified", a.provider),
		}}
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: toOpenAIMessages(req.Messages),
	}
	if req.MaxTokens != nil {
		chatReq.MaxTokens = *req.MaxTokens
	}
	if req.Temperature != nil {
		chatReq.Temperature = float32(*req.Temperature)
	}

	if len(req.ToolDefs) > 0 {
		chatReq.Tools = make([]openai.Tool, 0, len(req.ToolDefs))
		for _, t := range req.ToolDefs {
			chatReq.Tools = append(chatReq.Tools, openai.Tool{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
		if req.ToolChoice != nil {
			switch req.ToolChoice.Mode {
			case "auto", "none", "required":
				chatReq.ToolChoice = req.ToolChoice.Mode
			case "named":
				chatReq.ToolChoice = openai.ToolChoice{
					Type:     openai.ToolTypeFunction,
					Function: openai.ToolFunction{Name: req.ToolChoice.ToolName},
				}
			}
		}
	}

	return chatReq, nil
}

// toOpenAIMessages maps the unified conversation onto chat messages. System
// messages stay inline; each tool result becomes its own tool message.
func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			result = append(result, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: msg.TextContent(),
			})
		case RoleUser:
			result = append(result, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: msg.TextContent(),
			})
		case RoleAssistant:
			out := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: msg.TextContent(),
			}
			for _, call := range msg.ToolCalls() {
				args := string(call.Arguments)
				if args == "" {
					args = "{}"
				}
				out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
					ID:   call.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      call.Name,
						Arguments: args,
					},
				})
			}
			result = append(result, out)
		case RoleTool:
			content := ""
			if tr := msg.ToolResult(); tr != nil {
				content = tr.Content
			}
			result = append(result, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    content,
				ToolCallID: msg.ToolCallID,
			})
		}
	}
	return result
}

func (a *OpenAIAdapter) buildResponse(resp openai.ChatCompletionResponse) *Response {
	out := &Response{
		ID:       resp.ID,
		Model:    resp.Model,
		Provider: a.provider,
		Message:  Message{Role: RoleAssistant},
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}
	if len(resp.Choices) == 0 {
		out.FinishReason = FinishReason{Reason: "other"}
		return out
	}

	choice := resp.Choices[0]
	if choice.Message.ReasoningContent != "" {
		out.Message.Content = append(out.Message.Content, ThinkingPart(choice.Message.ReasoningContent, ""))
	}
	if choice.Message.Content != "" {
		out.Message.Content = append(out.Message.Content, TextPart(choice.Message.Content))
	}
	for _, tc := range choice.Message.ToolCalls {
		args := json.RawMessage(tc.Function.Arguments)
		if len(args) == 0 {
			args = json.RawMessage(`{}`)
		}
		out.Message.Content = append(out.Message.Content, ToolCallPart(tc.ID, tc.Function.Name, args))
	}

	raw := string(choice.FinishReason)
	out.FinishReason = FinishReason{Reason: normalizeFinishReason(raw), Raw: raw}
	return out
}

func normalizeFinishReason(raw string) string {
	switch raw {
	case "stop", "end_turn", "stop_sequence":
		return "stop"
	case "length", "max_tokens":
		return "length"
	case "tool_calls", "function_call", "tool_use":
		return "tool_calls"
	case "content_filter", "refusal":
		return "content_filter"
	default:
		return "other"
	}
}

// translateError converts go-openai errors into the unified error hierarchy.
func (a *OpenAIAdapter) translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &AbortError{SDKError: SDKError{Message: "request cancelled", Cause: err}}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := ""
		if s, ok := apiErr.Code.(string); ok {
			code = s
		}
		return wrapCause(ErrorFromStatusCode(apiErr.HTTPStatusCode, apiErr.Message, a.provider, code, nil), err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := "request failed"
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return wrapCause(ErrorFromStatusCode(reqErr.HTTPStatusCode, msg, a.provider, "", nil), err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &NetworkError{SDKError: SDKError{Message: err.Error(), Cause: err}}
	}
	return &ProviderError{SDKError: SDKError{Message: err.Error(), Cause: err}, Provider: a.provider, Retryable: true}
}

// wrapCause records the SDK error as the cause of a classified error.
func wrapCause(classified, cause error) error {
	switch e := classified.(type) {
	case *InvalidRequestError:
		e.Cause = cause
	case *AuthenticationError:
		e.Cause = cause
	case *AccessDeniedError:
		e.Cause = cause
	case *NotFoundError:
		e.Cause = cause
	case *ContextLengthError:
		e.Cause = cause
	case *RateLimitError:
		e.Cause = cause
	case *ServerError:
		e.Cause = cause
	case *RequestTimeoutError:
		e.Cause = cause
	case *ProviderError:
		e.Cause = cause
	}
	return classified
}
