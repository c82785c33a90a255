// Package unifiedllm is the provider-agnostic planner client used by the
// agent loop. It defines a small conversation model (messages made of text,
// tool-call, tool-result and thinking parts), a Client that routes requests
// to registered ProviderAdapters through middleware, and adapters for the
// backends deskagent supports:
//
//   - OpenAIAdapter (github.com/sashabaranov/go-openai): openai, openrouter,
//     lmstudio and azure
//   - AnthropicAdapter (github.com/anthropics/anthropic-sdk-go): anthropic
//   - GollmAdapter (github.com/teilomillet/gollm): ollama, groq and mistral
//
// # Using the Client
//
//	adapter, _ := unifiedllm.NewOpenAIAdapter(unifiedllm.OpenAIConfig{
//	    Provider: "openai",
//	    APIKey:   os.Getenv("OPENAI_API_KEY"),
//	})
//	client := unifiedllm.NewClient(
//	    unifiedllm.WithProvider("openai", adapter),
//	)
//
//	resp, _ := client.Complete(ctx, unifiedllm.Request{
//	    Model:    "gpt-4o",
//	    Messages: []unifiedllm.Message{unifiedllm.UserMessage("Hello")},
//	})
//	fmt.Println(resp.Text())
//
// # Errors
//
// Adapters translate SDK failures into a typed hierarchy rooted at SDKError.
// IsRetryable classifies any error in that hierarchy; Retry uses it to
// decide whether another attempt is worthwhile.
//
// # Model Catalog
//
// A built-in catalog of known models backs provider defaults and model
// listing for providers that cannot enumerate their own:
//
//	info := unifiedllm.GetModelInfo("sonnet")
//	models := unifiedllm.ListModels("groq")
package unifiedllm
