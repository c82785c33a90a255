package unifiedllm

import (
	"context"
	"fmt"
	"time"
)

// ProbeResult reports the outcome of a connection probe.
type ProbeResult struct {
	Provider string
	Model    string
	OK       bool
	Latency  time.Duration
	Message  string
}

// Probe checks that adapter can serve model by sending one short completion.
// Retryable failures are retried according to policy. A failed probe is
// reported in the result rather than as an error.
func Probe(ctx context.Context, adapter ProviderAdapter, model string, policy RetryPolicy) ProbeResult {
	result := ProbeResult{Provider: adapter.Name(), Model: model}
	maxTokens := 16

	start := time.Now()
	_, err := Retry(ctx, policy, func(ctx context.Context) (*Response, error) {
		return adapter.Complete(ctx, Request{
			Model:     model,
			Provider:  adapter.Name(),
			Messages:  []Message{UserMessage("Hi")},
			MaxTokens: &maxTokens,
		})
	})
	result.Latency = time.Since(start)

	if err != nil {
		result.Message = "Connection failed: " + err.Error()
		return result
	}
	result.OK = true
	result.Message = fmt.Sprintf("Connected successfully to %s (%s)", adapter.Name(), model)
	return result
}

// AvailableModels lists the models a provider serves. Adapters that can
// enumerate models are asked first; otherwise, or when that call fails, the
// built-in catalog entries for the provider are returned. The boolean reports
// whether the list came from the provider itself.
func AvailableModels(ctx context.Context, adapter ProviderAdapter, policy RetryPolicy) ([]string, bool, error) {
	if lister, ok := adapter.(ModelLister); ok {
		ids, err := Retry(ctx, policy, lister.ListModels)
		if err == nil && len(ids) > 0 {
			return ids, true, nil
		}
		if err != nil && len(ListModels(adapter.Name())) == 0 {
			return nil, false, err
		}
	}

	var ids []string
	for _, m := range ListModels(adapter.Name()) {
		ids = append(ids, m.ID)
	}
	return ids, false, nil
}
