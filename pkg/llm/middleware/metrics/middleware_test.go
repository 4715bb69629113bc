package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"estimator/pkg/budget"
	"estimator/pkg/config"
	"estimator/pkg/llm"
)

// captureRecorder records observations for assertions.
type captureRecorder struct {
	mu           sync.Mutex
	observations []observation
}

type observation struct {
	model, operation, taskID string
	inputTokens              int
	outputTokens             int
	cost                     float64
	success                  bool
	errorType                string
}

func (c *captureRecorder) ObserveRequest(model, operation, taskID string,
	inputTokens, outputTokens int, cost float64, success bool, errorType string,
	_ time.Duration,
) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observations = append(c.observations, observation{
		model: model, operation: operation, taskID: taskID,
		inputTokens: inputTokens, outputTokens: outputTokens,
		cost: cost, success: success, errorType: errorType,
	})
}

func TestMiddleware_RecordsSuccessWithCost(t *testing.T) {
	rec := &captureRecorder{}
	tracker := budget.NewTracker("gpt-4o-mini", config.BudgetConfig{MonthlyLimitUSD: 100})

	mock := llm.NewMockClient(llm.MockResponse("ok"))
	mock.SetModelName("gpt-4o-mini")
	client := llm.Chain(mock, Middleware(rec, tracker))

	ctx := llm.WithOperation(llm.WithTaskID(context.Background(), "task-9"), "estimate")
	if _, err := client.Complete(ctx, llm.CompletionRequest{}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if len(rec.observations) != 1 {
		t.Fatalf("observations = %d, want 1", len(rec.observations))
	}
	obs := rec.observations[0]
	if !obs.success || obs.errorType != "" {
		t.Errorf("Expected success observation, got %+v", obs)
	}
	if obs.operation != "estimate" || obs.taskID != "task-9" {
		t.Errorf("Labels = (%s, %s), want (estimate, task-9)", obs.operation, obs.taskID)
	}
	// MockResponse reports 100 input / 50 output tokens.
	if obs.inputTokens != 100 || obs.outputTokens != 50 {
		t.Errorf("Tokens = (%d, %d), want (100, 50)", obs.inputTokens, obs.outputTokens)
	}
	if obs.cost <= 0 {
		t.Errorf("Expected positive cost, got %v", obs.cost)
	}
	if tracker.Summary().CallCount != 1 {
		t.Error("Expected the tracker to account for the call")
	}
}

func TestMiddleware_RecordsFailureWithoutCost(t *testing.T) {
	rec := &captureRecorder{}
	tracker := budget.NewTracker("gpt-4o-mini", config.BudgetConfig{MonthlyLimitUSD: 100})

	mock := llm.NewMockClient(llm.MockError(errors.New("timeout")))
	client := llm.Chain(mock, Middleware(rec, tracker))

	if _, err := client.Complete(context.Background(), llm.CompletionRequest{}); err == nil {
		t.Fatal("Expected error")
	}

	if len(rec.observations) != 1 {
		t.Fatalf("observations = %d, want 1", len(rec.observations))
	}
	if rec.observations[0].success {
		t.Error("Expected failure observation")
	}
	if tracker.Summary().CallCount != 0 {
		t.Error("Failed calls must not accrue cost")
	}
}

func TestMiddleware_RejectsWhenBudgetExhausted(t *testing.T) {
	rec := &captureRecorder{}
	tracker := budget.NewTracker("gpt-4o-mini", config.BudgetConfig{MonthlyLimitUSD: 0.0001})
	_, _ = tracker.Record(1000, 500) // Push over the limit

	mock := llm.NewMockClient(llm.MockResponse("should not be reached"))
	client := llm.Chain(mock, Middleware(rec, tracker))

	_, err := client.Complete(context.Background(), llm.CompletionRequest{})
	if !errors.Is(err, budget.ErrBudgetExceeded) {
		t.Fatalf("Expected ErrBudgetExceeded, got: %v", err)
	}
	if mock.CallCount() != 0 {
		t.Errorf("CallCount = %d, want 0 (rejected before provider)", mock.CallCount())
	}
	if rec.observations[0].errorType != "budget_exceeded" {
		t.Errorf("errorType = %q, want budget_exceeded", rec.observations[0].errorType)
	}
}

func TestMiddleware_CrossingCallSurfacesBudgetError(t *testing.T) {
	rec := &captureRecorder{}
	// MockResponse spends 0.00045 USD on gpt-4o-mini pricing, crossing this
	// limit on the very first call.
	tracker := budget.NewTracker("gpt-4o-mini", config.BudgetConfig{MonthlyLimitUSD: 0.0003})

	mock := llm.NewMockClient(llm.MockResponse("ok"))
	mock.SetModelName("gpt-4o-mini")
	client := llm.Chain(mock, Middleware(rec, tracker))

	_, err := client.Complete(context.Background(), llm.CompletionRequest{})
	if !errors.Is(err, budget.ErrBudgetExceeded) {
		t.Fatalf("Expected ErrBudgetExceeded from the crossing call, got: %v", err)
	}
	if mock.CallCount() != 1 {
		t.Errorf("CallCount = %d, want 1 (the crossing call did run)", mock.CallCount())
	}
	// The spend still gets accounted and observed.
	if len(rec.observations) != 1 || !rec.observations[0].success {
		t.Fatalf("Expected one success observation, got %+v", rec.observations)
	}
	if tracker.Summary().CallCount != 1 {
		t.Error("Expected the tracker to account for the crossing call")
	}
}

func TestNewPrometheusRecorderWith_CustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorderWith(reg)

	rec.ObserveRequest("gpt-4o-mini", "estimate", "task-1", 100, 50, 0.001, true, "", time.Second)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"llm_requests_total", "llm_tokens_total", "llm_costs_total", "llm_request_duration_seconds",
	} {
		if !names[want] {
			t.Errorf("Missing metric family %q", want)
		}
	}
}
