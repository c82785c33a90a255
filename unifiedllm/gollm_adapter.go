package unifiedllm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/teilomillet/gollm"
)

// GollmAdapter wraps a gollm.LLM and implements ProviderAdapter for the
// providers reached through gollm (ollama, groq, mistral). gollm exchanges
// plain text, so the conversation is rendered as a transcript and tool calls
// are recovered from the generated text.
type GollmAdapter struct {
	provider  string
	model     string
	generate  func(ctx context.Context, prompt *gollm.Prompt) (string, error)
	setOption func(key string, value any)
}

// GollmAdapterOption configures a GollmAdapter.
type GollmAdapterOption func(*gollmAdapterConfig)

type gollmAdapterConfig struct {
	apiKey      string
	model       string
	baseURL     string
	maxTokens   int
	temperature float64
	extraOpts   []gollm.ConfigOption
}

// WithAPIKey sets the API key for the adapter.
func WithAPIKey(key string) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.apiKey = key
	}
}

// WithModel sets the default model for the adapter.
func WithModel(model string) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.model = model
	}
}

// WithBaseURL points the adapter at a non-default endpoint (e.g. a remote
// ollama host).
func WithBaseURL(url string) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.baseURL = url
	}
}

// WithMaxTokens sets the default max tokens.
func WithMaxTokens(n int) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.maxTokens = n
	}
}

// WithTemperature sets the default temperature.
func WithTemperature(t float64) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.temperature = t
	}
}

// WithGollmOptions adds extra gollm configuration options.
func WithGollmOptions(opts ...gollm.ConfigOption) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.extraOpts = append(c.extraOpts, opts...)
	}
}

// NewGollmAdapter creates a new GollmAdapter for the given provider.
// If apiKey is empty, gollm reads it from the provider's environment variable.
func NewGollmAdapter(provider string, apiKey string, opts ...GollmAdapterOption) (*GollmAdapter, error) {
	cfg := &gollmAdapterConfig{
		apiKey:      apiKey,
		maxTokens:   4096,
		temperature: 0.2,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	model := cfg.model
	if model == "" {
		if info := DefaultModel(provider); info != nil {
			model = info.ID
		}
	}
	if model == "" {
		return nil, &ConfigurationError{SDKError: SDKError{
			Message: fmt.Sprintf("no model configured for provider %s", provider),
		}}
	}

	gollmOpts := []gollm.ConfigOption{
		gollm.SetProvider(provider),
		gollm.SetModel(model),
		gollm.SetMaxTokens(cfg.maxTokens),
		gollm.SetTemperature(cfg.temperature),
		gollm.SetMaxRetries(0), // callers decide whether to retry
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if cfg.apiKey != "" {
		gollmOpts = append(gollmOpts, gollm.SetAPIKey(cfg.apiKey))
	}
	if cfg.baseURL != "" && provider == "ollama" {
		gollmOpts = append(gollmOpts, gollm.SetOllamaEndpoint(cfg.baseURL))
	}
	gollmOpts = append(gollmOpts, cfg.extraOpts...)

	llm, err := gollm.NewLLM(gollmOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gollm LLM for provider %s: %w", provider, err)
	}

	return NewGollmAdapterFromLLM(provider, model, llm), nil
}

// NewGollmAdapterFromLLM wraps an existing gollm.LLM instance.
func NewGollmAdapterFromLLM(provider, model string, llm gollm.LLM) *GollmAdapter {
	return &GollmAdapter{
		provider: provider,
		model:    model,
		generate: func(ctx context.Context, prompt *gollm.Prompt) (string, error) {
			return llm.Generate(ctx, prompt)
		},
		setOption: llm.SetOption,
	}
}

// Name returns the provider identifier.
func (a *GollmAdapter) Name() string {
	return a.provider
}

// Complete sends a blocking request and returns the full response.
func (a *GollmAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	prompt := a.translateRequest(req)
	a.applyRequestOptions(req)

	text, err := a.generate(ctx, prompt)
	if err != nil {
		return nil, a.translateError(err)
	}
	return a.buildResponse(req, text), nil
}

// SupportsToolChoice reports whether the adapter supports a particular tool choice mode.
func (a *GollmAdapter) SupportsToolChoice(mode string) bool {
	switch mode {
	case "auto", "none":
		return true
	default:
		return false
	}
}

// renderTranscript flattens the conversation into the single prompt string
// gollm sends. System messages are returned separately.
func renderTranscript(req Request) (system, transcript string) {
	var sys []string
	var lines []string

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			sys = append(sys, msg.TextContent())
		case RoleUser:
			lines = append(lines, msg.TextContent())
		case RoleAssistant:
			if text := msg.TextContent(); text != "" {
				lines = append(lines, "[Assistant]: "+text)
			}
			for _, call := range msg.ToolCalls() {
				lines = append(lines, fmt.Sprintf("[Assistant called %s]: %s", call.Name, string(call.Arguments)))
			}
		case RoleTool:
			if result := msg.ToolResult(); result != nil {
				prefix := "[Tool Result]"
				if result.IsError {
					prefix = "[Tool Error]"
				}
				lines = append(lines, prefix+": "+result.Content)
			}
		}
	}

	return strings.Join(sys, "\n\n"), strings.Join(lines, "\n")
}

// translateRequest converts a unified Request into a gollm Prompt.
func (a *GollmAdapter) translateRequest(req Request) *gollm.Prompt {
	system, transcript := renderTranscript(req)
	if transcript == "" {
		transcript = "Hello"
	}

	var promptOpts []gollm.PromptOption
	if system != "" {
		promptOpts = append(promptOpts, gollm.WithSystemPrompt(system, gollm.CacheTypeEphemeral))
	}
	if req.MaxTokens != nil {
		promptOpts = append(promptOpts, gollm.WithMaxLength(*req.MaxTokens))
	}

	if len(req.ToolDefs) > 0 {
		tools := make([]gollm.Tool, 0, len(req.ToolDefs))
		for _, t := range req.ToolDefs {
			tools = append(tools, gollm.Tool{
				Type: "function",
				Function: gollm.Function{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
		promptOpts = append(promptOpts, gollm.WithTools(tools))
	}

	if req.ToolChoice != nil && a.SupportsToolChoice(req.ToolChoice.Mode) {
		promptOpts = append(promptOpts, gollm.WithToolChoice(req.ToolChoice.Mode))
	}

	return gollm.NewPrompt(transcript, promptOpts...)
}

// applyRequestOptions applies request-level parameters to the gollm LLM.
func (a *GollmAdapter) applyRequestOptions(req Request) {
	if a.setOption == nil {
		return
	}
	if req.Model != "" {
		a.setOption("model", req.Model)
	}
	if req.Temperature != nil {
		a.setOption("temperature", *req.Temperature)
	}
	if req.MaxTokens != nil {
		a.setOption("max_tokens", *req.MaxTokens)
	}
}

// buildResponse constructs a unified Response from the generated text.
func (a *GollmAdapter) buildResponse(req Request, text string) *Response {
	model := req.Model
	if model == "" {
		model = a.model
	}

	calls, remaining := parseToolCalls(text)

	var parts []ContentPart
	if remaining != "" {
		parts = append(parts, TextPart(remaining))
	}
	for i := range calls {
		parts = append(parts, ContentPart{Kind: ContentToolCall, ToolCall: &calls[i]})
	}

	finishReason := FinishReason{Reason: "stop", Raw: "stop"}
	if len(calls) > 0 {
		finishReason = FinishReason{Reason: "tool_calls", Raw: "tool_calls"}
	}

	input := estimateTokens(req)
	output := len(text) / 4
	return &Response{
		ID:           "resp_" + uuid.New().String()[:8],
		Model:        model,
		Provider:     a.provider,
		Message:      Message{Role: RoleAssistant, Content: parts},
		FinishReason: finishReason,
		// gollm does not expose provider usage; estimate from text length.
		Usage: Usage{InputTokens: input, OutputTokens: output, TotalTokens: input + output},
	}
}

var functionCallTag = regexp.MustCompile(`(?s)<function_call>\s*(\{.*?\})\s*</function_call>`)

type rawToolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// parseToolCalls extracts tool calls embedded in generated text and returns
// them along with the text that remains once they are removed. Recognised
// forms are gollm's <function_call>{...}</function_call> tags, a JSON array
// [{"name": ..., "arguments": ...}] and an object {"tool_calls": [...]}.
func parseToolCalls(text string) ([]ToolCallData, string) {
	var raws []rawToolCall
	remaining := text

	if matches := functionCallTag.FindAllStringSubmatch(text, -1); len(matches) > 0 {
		for _, m := range matches {
			var rc rawToolCall
			if err := json.Unmarshal([]byte(m[1]), &rc); err == nil && rc.Name != "" {
				raws = append(raws, rc)
			}
		}
		remaining = functionCallTag.ReplaceAllString(text, "")
	} else if idx := strings.Index(text, `{"tool_calls"`); idx != -1 {
		var wrapper struct {
			ToolCalls []rawToolCall `json:"tool_calls"`
		}
		if err := json.NewDecoder(strings.NewReader(text[idx:])).Decode(&wrapper); err == nil {
			raws = wrapper.ToolCalls
			remaining = text[:idx]
		}
	} else if idx := strings.Index(text, `[{"name"`); idx != -1 {
		if err := json.NewDecoder(strings.NewReader(text[idx:])).Decode(&raws); err == nil {
			remaining = text[:idx]
		}
	}

	calls := make([]ToolCallData, 0, len(raws))
	for _, rc := range raws {
		args := rc.Arguments
		if len(args) == 0 || string(args) == "null" {
			args = json.RawMessage(`{}`)
		}
		// Some models double-encode arguments as a JSON string.
		var encoded string
		if json.Unmarshal(args, &encoded) == nil {
			args = json.RawMessage(encoded)
		}
		calls = append(calls, ToolCallData{
			ID:        "call_" + uuid.New().String()[:8],
			Name:      rc.Name,
			Arguments: args,
		})
	}
	if len(calls) == 0 {
		return nil, strings.TrimSpace(text)
	}
	return calls, strings.TrimSpace(remaining)
}

// translateError converts a gollm error into the unified error hierarchy.
// gollm surfaces provider failures as formatted strings only.
func (a *GollmAdapter) translateError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	base := SDKError{Message: msg, Cause: err}

	switch {
	case strings.Contains(lower, "401") || strings.Contains(lower, "unauthorized") || strings.Contains(lower, "invalid api key"):
		return &AuthenticationError{ProviderError: ProviderError{SDKError: base, Provider: a.provider, StatusCode: 401}}
	case strings.Contains(lower, "403") || strings.Contains(lower, "forbidden"):
		return &AccessDeniedError{ProviderError: ProviderError{SDKError: base, Provider: a.provider, StatusCode: 403}}
	case strings.Contains(lower, "404") || strings.Contains(lower, "not found"):
		return &NotFoundError{ProviderError: ProviderError{SDKError: base, Provider: a.provider, StatusCode: 404}}
	case strings.Contains(lower, "429") || strings.Contains(lower, "rate limit"):
		return &RateLimitError{ProviderError: ProviderError{SDKError: base, Provider: a.provider, StatusCode: 429, Retryable: true}}
	case strings.Contains(lower, "context length") || strings.Contains(lower, "too many tokens"):
		return &ContextLengthError{ProviderError: ProviderError{SDKError: base, Provider: a.provider, StatusCode: 413}}
	case strings.Contains(lower, "500") || strings.Contains(lower, "502") || strings.Contains(lower, "503") || strings.Contains(lower, "internal server"):
		return &ServerError{ProviderError: ProviderError{SDKError: base, Provider: a.provider, StatusCode: 500, Retryable: true}}
	case strings.Contains(lower, "timeout"):
		return &RequestTimeoutError{SDKError: base}
	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host"):
		return &NetworkError{SDKError: base}
	default:
		return &ProviderError{SDKError: base, Provider: a.provider, Retryable: true}
	}
}

// estimateTokens provides a rough token count estimate from request messages.
func estimateTokens(req Request) int {
	total := 0
	for _, msg := range req.Messages {
		for _, part := range msg.Content {
			switch part.Kind {
			case ContentText:
				total += len(part.Text) / 4
			case ContentToolResult:
				total += len(part.ToolResult.Content) / 4
			}
		}
	}
	if total == 0 {
		total = 10
	}
	return total
}
