package cmd

import (
	"fmt"

	"github.com/martinemde/deskagent/config"
	"github.com/martinemde/deskagent/unifiedllm"
)

// app holds the dependencies commands reach outside the process for.
type app struct {
	newAdapter func(p config.Provider, model string) (unifiedllm.ProviderAdapter, error)
	// probePolicy applies to provider probes and model listing only. Planner
	// calls made during a run are never retried.
	probePolicy unifiedllm.RetryPolicy
}

func wireApp() *app {
	return &app{
		newAdapter:  newProviderAdapter,
		probePolicy: unifiedllm.DefaultRetryPolicy(),
	}
}

// newProviderAdapter maps a provider type onto the SDK that speaks its
// protocol.
func newProviderAdapter(p config.Provider, model string) (unifiedllm.ProviderAdapter, error) {
	switch p.Type {
	case "openai", "openrouter", "lmstudio", "azure":
		adapter, err := unifiedllm.NewOpenAIAdapter(unifiedllm.OpenAIConfig{
			Provider:   p.Type,
			APIKey:     p.ResolvedAPIKey(),
			BaseURL:    p.BaseURL,
			APIVersion: p.ResolvedAPIVersion(),
			Model:      model,
		})
		if err != nil {
			return nil, err
		}
		return adapter, nil
	case "anthropic":
		adapter, err := unifiedllm.NewAnthropicAdapter(unifiedllm.AnthropicConfig{
			APIKey:  p.ResolvedAPIKey(),
			BaseURL: p.BaseURL,
			Model:   model,
		})
		if err != nil {
			return nil, err
		}
		return adapter, nil
	case "ollama", "groq", "mistral":
		opts := []unifiedllm.GollmAdapterOption{unifiedllm.WithModel(model)}
		if p.BaseURL != "" {
			opts = append(opts, unifiedllm.WithBaseURL(p.BaseURL))
		}
		adapter, err := unifiedllm.NewGollmAdapter(p.Type, p.ResolvedAPIKey(), opts...)
		if err != nil {
			return nil, err
		}
		return adapter, nil
	default:
		return nil, fmt.Errorf("unsupported provider type %q", p.Type)
	}
}

// newClient registers the provider under its configured name. A failed
// planner call ends the run, so the client carries no retry middleware.
func (a *app) newClient(p config.Provider, model string) (*unifiedllm.Client, error) {
	adapter, err := a.newAdapter(p, model)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", p.Name, err)
	}
	return unifiedllm.NewClient(
		unifiedllm.WithProvider(p.Name, adapter),
		unifiedllm.WithDefaultProvider(p.Name),
	), nil
}

// providerAndModel picks the provider named by flag, or the active one, and
// the model to use with it.
func providerAndModel(cfg *config.Config, providerFlag, modelFlag string) (config.Provider, string, error) {
	var (
		p     config.Provider
		model string
		err   error
	)
	if providerFlag != "" {
		p, err = cfg.Provider(providerFlag)
		if err == nil {
			model = p.DefaultModel()
			if providerFlag == cfg.ActiveProvider && cfg.ActiveModel != "" {
				model = cfg.ActiveModel
			}
		}
	} else {
		p, model, err = cfg.Active()
	}
	if err != nil {
		return config.Provider{}, "", err
	}
	if modelFlag != "" {
		model = modelFlag
	}
	if model == "" {
		return config.Provider{}, "", fmt.Errorf("no model configured for provider %s; pass --model or set active_model", p.Name)
	}
	return p, model, nil
}
