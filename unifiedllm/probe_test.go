package unifiedllm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestProbeSuccess(t *testing.T) {
	mock := newMockAdapter("openai", "Hello")
	result := Probe(context.Background(), mock, "gpt-4o", RetryPolicy{})
	if !result.OK {
		t.Fatalf("expected OK, got %+v", result)
	}
	if !strings.Contains(result.Message, "openai") {
		t.Errorf("unexpected message %q", result.Message)
	}
	if len(mock.requests) != 1 || mock.requests[0].Model != "gpt-4o" {
		t.Errorf("expected one probe request for gpt-4o, got %+v", mock.requests)
	}
}

func TestProbeFailure(t *testing.T) {
	mock := &mockAdapter{name: "anthropic", err: &AuthenticationError{ProviderError: ProviderError{
		SDKError: SDKError{Message: "bad key"}, Provider: "anthropic", StatusCode: 401,
	}}}
	result := Probe(context.Background(), mock, "claude-sonnet-4-5", RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, Multiplier: 1, MaxDelay: time.Millisecond})
	if result.OK {
		t.Fatal("expected failed probe")
	}
	if !strings.HasPrefix(result.Message, "Connection failed: ") {
		t.Errorf("unexpected message %q", result.Message)
	}
	if len(mock.requests) != 1 {
		t.Errorf("non-retryable failure should not retry, got %d requests", len(mock.requests))
	}
}

type listingAdapter struct {
	mockAdapter
	ids []string
	err error
}

func (l *listingAdapter) ListModels(ctx context.Context) ([]string, error) {
	return l.ids, l.err
}

func TestAvailableModelsFromProvider(t *testing.T) {
	adapter := &listingAdapter{mockAdapter: mockAdapter{name: "lmstudio"}, ids: []string{"local-model"}}
	ids, live, err := AvailableModels(context.Background(), adapter, RetryPolicy{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !live || len(ids) != 1 || ids[0] != "local-model" {
		t.Errorf("unexpected result %v live=%v", ids, live)
	}
}

func TestAvailableModelsFallsBackToCatalog(t *testing.T) {
	adapter := &listingAdapter{mockAdapter: mockAdapter{name: "groq"}, err: &AuthenticationError{}}
	ids, live, err := AvailableModels(context.Background(), adapter, RetryPolicy{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if live {
		t.Error("expected catalog fallback")
	}
	if len(ids) != 1 || ids[0] != "llama-3.3-70b-versatile" {
		t.Errorf("unexpected catalog ids %v", ids)
	}
}

func TestAvailableModelsNoFallback(t *testing.T) {
	listErr := errors.New("connection refused")
	adapter := &listingAdapter{mockAdapter: mockAdapter{name: "lmstudio"}, err: listErr}
	_, _, err := AvailableModels(context.Background(), adapter, RetryPolicy{})
	if !errors.Is(err, listErr) {
		t.Fatalf("expected list error, got %v", err)
	}
}
