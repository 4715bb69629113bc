// Package factory assembles the protected LLM client from configuration:
// provider transport wrapped in metrics, circuit breaker, retry, and
// per-attempt timeout middleware.
package factory

import (
	"fmt"
	"time"

	"estimator/internal/llmimpl/anthropic"
	"estimator/internal/llmimpl/google"
	"estimator/internal/llmimpl/ollama"
	"estimator/internal/llmimpl/openai"
	"estimator/pkg/budget"
	"estimator/pkg/config"
	"estimator/pkg/llm"
	"estimator/pkg/llm/middleware/circuit"
	"estimator/pkg/llm/middleware/metrics"
	"estimator/pkg/llm/middleware/retry"
	"estimator/pkg/llm/middleware/timeout"
)

// secretNameFor maps a provider to the secret holding its API key.
func secretNameFor(provider string) string {
	switch provider {
	case config.ProviderOpenAI:
		return config.SecretOpenAIKey
	case config.ProviderAnthropic:
		return config.SecretAnthropicKey
	case config.ProviderGoogle:
		return config.SecretGoogleKey
	default:
		return ""
	}
}

// newRawClient creates the unprotected provider transport for the configured
// model.
func newRawClient(cfg *config.Config) (llm.Client, error) {
	provider := cfg.LLM.Provider
	model := cfg.LLM.Model

	if provider == config.ProviderOllama {
		return ollama.New(cfg.LLM.OllamaHost, model), nil
	}

	apiKey, err := config.GetSecret(secretNameFor(provider))
	if err != nil {
		return nil, fmt.Errorf("missing API key for provider %s: %w", provider, err)
	}

	switch provider {
	case config.ProviderOpenAI:
		return openai.New(apiKey, model), nil
	case config.ProviderAnthropic:
		return anthropic.New(apiKey, model), nil
	case config.ProviderGoogle:
		return google.New(apiKey, model), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", provider)
	}
}

// NewProtectedClient builds the full middleware chain around the configured
// provider.
func NewProtectedClient(
	cfg *config.Config,
	recorder metrics.Recorder,
	tracker *budget.Tracker,
	breakers *circuit.Registry,
) (llm.Client, error) {
	raw, err := newRawClient(cfg)
	if err != nil {
		return nil, err
	}
	return protect(raw, cfg, recorder, tracker, breakers), nil
}

// protect wraps a transport in the middleware chain. Call order, outermost
// first: metrics and budget accounting, circuit breaker, retry, timeout,
// transport. The timeout sits inside retry so every attempt gets its own
// deadline and a hung call counts as one failed attempt; the breaker sits
// outside retry so a tripped circuit fails fast instead of burning retry
// attempts.
func protect(
	raw llm.Client,
	cfg *config.Config,
	recorder metrics.Recorder,
	tracker *budget.Tracker,
	breakers *circuit.Registry,
) llm.Client {
	retryPolicy := retry.NewPolicy(retry.Config{
		MaxAttempts:   cfg.Resilience.MaxAttempts,
		InitialDelay:  time.Duration(cfg.Resilience.InitialDelayMS) * time.Millisecond,
		MaxDelay:      time.Duration(cfg.Resilience.MaxDelayMS) * time.Millisecond,
		BackoffFactor: cfg.Resilience.BackoffFactor,
		Jitter:        true,
	}, retry.ShouldRetry)

	breaker := breakers.Get(cfg.LLM.Provider)

	return llm.Chain(raw,
		metrics.Middleware(recorder, tracker),
		circuit.Middleware(breaker),
		retry.Middleware(retryPolicy),
		timeout.Middleware(cfg.RequestTimeout()),
	)
}

// NewBreakerRegistry creates the per-provider circuit breaker registry from
// the resilience config.
func NewBreakerRegistry(cfg *config.Config) *circuit.Registry {
	return circuit.NewRegistry(circuit.Config{
		FailureThreshold: cfg.Resilience.FailureThreshold,
		Timeout:          time.Duration(cfg.Resilience.BreakerTimeout) * time.Second,
	})
}
