package circuit

import (
	"context"
	"errors"
	"testing"
	"time"

	"estimator/pkg/llm"
)

func TestBreaker_OpensAtFailureThreshold(t *testing.T) {
	b := New(Config{FailureThreshold: 5, Timeout: time.Minute})

	for i := 0; i < 4; i++ {
		b.Record(false)
		if b.GetState() != Closed {
			t.Fatalf("State after %d failures = %v, want CLOSED", i+1, b.GetState())
		}
	}

	b.Record(false)
	if b.GetState() != Open {
		t.Errorf("State after 5 failures = %v, want OPEN", b.GetState())
	}
	if b.Allow() {
		t.Error("Expected Allow() = false while open")
	}
}

func TestBreaker_SuccessResetsConsecutiveCount(t *testing.T) {
	b := New(Config{FailureThreshold: 3, Timeout: time.Minute})

	b.Record(false)
	b.Record(false)
	b.Record(true) // Resets the consecutive failure count
	b.Record(false)
	b.Record(false)

	if b.GetState() != Closed {
		t.Errorf("State = %v, want CLOSED (failures were not consecutive)", b.GetState())
	}
}

func TestBreaker_HalfOpenAfterTimeout(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	b := NewWithClock(Config{FailureThreshold: 1, Timeout: 30 * time.Second}, clock)

	b.Record(false)
	if b.GetState() != Open {
		t.Fatalf("State = %v, want OPEN", b.GetState())
	}
	if b.Allow() {
		t.Fatal("Expected rejection before timeout")
	}

	// Advance past the recovery timeout
	now = now.Add(31 * time.Second)
	if !b.Allow() {
		t.Fatal("Expected trial call permitted after timeout")
	}
	if b.GetState() != HalfOpen {
		t.Errorf("State = %v, want HALF_OPEN", b.GetState())
	}

	// Only one trial call is admitted
	if b.Allow() {
		t.Error("Expected second call rejected while trial is in flight")
	}
}

func TestBreaker_TimeoutBoundaryStaysOpen(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	b := NewWithClock(Config{FailureThreshold: 1, Timeout: 30 * time.Second}, clock)

	b.Record(false)

	// Exactly at the timeout the window has not fully elapsed yet
	now = now.Add(30 * time.Second)
	if b.Allow() {
		t.Fatal("Expected rejection at exactly the recovery timeout")
	}
	if b.GetState() != Open {
		t.Errorf("State = %v, want OPEN", b.GetState())
	}

	now = now.Add(time.Nanosecond)
	if !b.Allow() {
		t.Fatal("Expected trial call permitted just past the timeout")
	}
}

func TestBreaker_HalfOpenSuccessCloses(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	b := NewWithClock(Config{FailureThreshold: 1, Timeout: time.Second}, clock)

	b.Record(false)
	now = now.Add(2 * time.Second)
	if !b.Allow() {
		t.Fatal("Expected trial call permitted")
	}

	b.Record(true)
	if b.GetState() != Closed {
		t.Errorf("State = %v, want CLOSED after successful trial", b.GetState())
	}
	if !b.Allow() {
		t.Error("Expected normal operation after close")
	}
}

func TestBreaker_HalfOpenFailureReopensWithTimerReset(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	b := NewWithClock(Config{FailureThreshold: 1, Timeout: 10 * time.Second}, clock)

	b.Record(false)
	now = now.Add(11 * time.Second)
	if !b.Allow() {
		t.Fatal("Expected trial call permitted")
	}

	b.Record(false)
	if b.GetState() != Open {
		t.Fatalf("State = %v, want OPEN after failed trial", b.GetState())
	}

	// Timer restarted at the trial failure, so 5s later is still open.
	now = now.Add(5 * time.Second)
	if b.Allow() {
		t.Error("Expected rejection: recovery timer should restart on trial failure")
	}

	now = now.Add(6 * time.Second)
	if !b.Allow() {
		t.Error("Expected trial permitted after full timeout from trial failure")
	}
}

func TestBreaker_ManualReset(t *testing.T) {
	b := New(Config{FailureThreshold: 1, Timeout: time.Hour})

	b.Record(false)
	if b.GetState() != Open {
		t.Fatalf("State = %v, want OPEN", b.GetState())
	}

	b.Reset()
	if b.GetState() != Closed {
		t.Errorf("State after Reset = %v, want CLOSED", b.GetState())
	}
	if !b.Allow() {
		t.Error("Expected Allow() = true after reset")
	}
}

func TestMiddleware_RejectsWhenOpen(t *testing.T) {
	b := New(Config{FailureThreshold: 1, Timeout: time.Hour})
	mock := llm.NewMockClient(llm.MockError(errors.New("boom")))
	client := llm.Chain(mock, Middleware(b))

	// First call fails and opens the circuit
	_, err := client.Complete(context.Background(), llm.CompletionRequest{})
	if err == nil {
		t.Fatal("Expected first call to fail")
	}

	// Second call is rejected without touching the provider
	_, err = client.Complete(context.Background(), llm.CompletionRequest{})
	var circuitErr *Error
	if !errors.As(err, &circuitErr) {
		t.Fatalf("Expected circuit error, got: %v", err)
	}
	if mock.CallCount() != 1 {
		t.Errorf("CallCount = %d, want 1 (open circuit short-circuits)", mock.CallCount())
	}
}

func TestRegistry_SeparateBreakersPerDependency(t *testing.T) {
	r := NewRegistry(Config{FailureThreshold: 1, Timeout: time.Hour})

	r.Get("openai").Record(false)

	if r.Get("openai").GetState() != Open {
		t.Error("Expected openai breaker open")
	}
	if r.Get("anthropic").GetState() != Closed {
		t.Error("Expected anthropic breaker unaffected")
	}

	states := r.States()
	if len(states) != 2 {
		t.Errorf("States() returned %d entries, want 2", len(states))
	}

	r.ResetAll()
	if r.Get("openai").GetState() != Closed {
		t.Error("Expected all breakers closed after ResetAll")
	}
}
