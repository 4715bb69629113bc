package factory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estimator/pkg/budget"
	"estimator/pkg/config"
	"estimator/pkg/llm"
	"estimator/pkg/llm/llmerrors"
	"estimator/pkg/llm/middleware/metrics"
)

type nopRecorder struct{}

func (nopRecorder) ObserveRequest(string, string, string, int, int, float64, bool, string, time.Duration) {
}

// deadlineClient fails every call and records each attempt's context deadline.
type deadlineClient struct {
	mu        sync.Mutex
	deadlines []time.Time
	err       error
}

func (c *deadlineClient) Complete(ctx context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
	d, _ := ctx.Deadline()
	c.mu.Lock()
	c.deadlines = append(c.deadlines, d)
	c.mu.Unlock()
	return llm.CompletionResponse{}, c.err
}

func (c *deadlineClient) ModelName() string { return "mock-model" }

func TestNewProtectedClient_Ollama(t *testing.T) {
	cfg := config.Default(config.LanguageJapanese)
	cfg.LLM.Provider = config.ProviderOllama
	cfg.LLM.Model = "qwen2.5:7b"

	tracker := budget.NewTracker(cfg.LLM.Model, cfg.Budget)
	breakers := NewBreakerRegistry(&cfg)

	client, err := NewProtectedClient(&cfg, nopRecorder{}, tracker, breakers)
	require.NoError(t, err)
	assert.Equal(t, "qwen2.5:7b", client.ModelName())
}

func TestNewProtectedClient_WithSecret(t *testing.T) {
	config.SetDecryptedSecrets(map[string]string{"OPENAI_API_KEY": "sk-test"})
	t.Cleanup(func() { config.SetDecryptedSecrets(nil) })

	cfg := config.Default(config.LanguageEnglish)
	cfg.LLM.Provider = config.ProviderOpenAI
	cfg.LLM.Model = "gpt-4o-mini"

	tracker := budget.NewTracker(cfg.LLM.Model, cfg.Budget)
	client, err := NewProtectedClient(&cfg, nopRecorder{}, tracker, NewBreakerRegistry(&cfg))
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", client.ModelName())
}

func TestNewRawClient_UnknownProvider(t *testing.T) {
	cfg := config.Default(config.LanguageJapanese)
	cfg.LLM.Provider = "mystery"

	_, err := newRawClient(&cfg)
	require.Error(t, err)
}

// A retryable failure must be attempted MaxAttempts times, each attempt under
// its own fresh deadline. A deadline shared across attempts would expire
// during the backoff sleep and cut the retry loop short.
func TestProtect_RetriesWithPerAttemptTimeout(t *testing.T) {
	cfg := config.Default(config.LanguageJapanese)
	cfg.LLM.Provider = config.ProviderOllama
	cfg.LLM.RequestTimeout = 1
	cfg.Resilience.MaxAttempts = 3
	cfg.Resilience.InitialDelayMS = 30
	cfg.Resilience.MaxDelayMS = 60
	cfg.Resilience.BackoffFactor = 2.0
	cfg.Resilience.FailureThreshold = 10

	raw := &deadlineClient{err: llmerrors.NewError(llmerrors.ErrorTypeRateLimit, "throttled")}
	tracker := budget.NewTracker("mock-model", cfg.Budget)
	client := protect(raw, &cfg, nopRecorder{}, tracker, NewBreakerRegistry(&cfg))

	_, err := client.Complete(context.Background(), llm.CompletionRequest{})
	require.Error(t, err)
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeServiceUnavailable),
		"exhausted retries should surface as service unavailability, got: %v", err)

	require.Len(t, raw.deadlines, 3)
	// Later attempts start later, so per-attempt deadlines move forward.
	assert.True(t, raw.deadlines[2].After(raw.deadlines[0]),
		"attempt deadlines should advance: first %v, last %v", raw.deadlines[0], raw.deadlines[2])
}

var _ metrics.Recorder = nopRecorder{}
