package budget

import (
	"errors"
	"math"
	"testing"
	"time"

	"estimator/pkg/config"
)

func testLimits() config.BudgetConfig {
	return config.BudgetConfig{DailyLimitUSD: 10.0, MonthlyLimitUSD: 200.0}
}

func TestCost_KnownModelPricing(t *testing.T) {
	tr := NewTracker("gpt-4o-mini", testLimits())

	// 1000 input at $0.15/1M + 500 output at $0.60/1M
	got := tr.Cost(1000, 500)
	want := 0.00045
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Cost(1000, 500) = %v, want %v", got, want)
	}
}

func TestCost_UnknownModelIsZero(t *testing.T) {
	tr := NewTracker("no-such-model", testLimits())
	if got := tr.Cost(1_000_000, 1_000_000); got != 0 {
		t.Errorf("Cost for unknown model = %v, want 0", got)
	}
}

func TestRecord_Accumulates(t *testing.T) {
	tr := NewTracker("gpt-4o-mini", testLimits())

	cost, err := tr.Record(1000, 500)
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if math.Abs(cost-0.00045) > 1e-9 {
		t.Errorf("Record returned %v, want 0.00045", cost)
	}
	_, _ = tr.Record(1000, 500)

	s := tr.Summary()
	if math.Abs(s.DailyCostUSD-0.0009) > 1e-9 {
		t.Errorf("DailyCostUSD = %v, want 0.0009", s.DailyCostUSD)
	}
	if math.Abs(s.MonthlyCostUSD-0.0009) > 1e-9 {
		t.Errorf("MonthlyCostUSD = %v, want 0.0009", s.MonthlyCostUSD)
	}
	if s.DailyTokens != 3000 {
		t.Errorf("DailyTokens = %d, want 3000", s.DailyTokens)
	}
	if s.CallCount != 2 {
		t.Errorf("CallCount = %d, want 2", s.CallCount)
	}
}

func TestCheckLimit_MonthlyLimitIsFatal(t *testing.T) {
	limits := config.BudgetConfig{DailyLimitUSD: 10.0, MonthlyLimitUSD: 0.0003}
	tr := NewTracker("gpt-4o-mini", limits)

	if err := tr.CheckLimit(); err != nil {
		t.Fatalf("CheckLimit before spend = %v, want nil", err)
	}

	_, _ = tr.Record(1000, 500) // 0.00045 USD, over the 0.0003 limit

	err := tr.CheckLimit()
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("CheckLimit = %v, want ErrBudgetExceeded", err)
	}
}

func TestRecord_CrossingMonthlyLimitIsFatal(t *testing.T) {
	limits := config.BudgetConfig{DailyLimitUSD: 10.0, MonthlyLimitUSD: 0.0003}
	tr := NewTracker("gpt-4o-mini", limits)

	// The call that crosses the limit must itself report the breach, not just
	// poison the next CheckLimit.
	cost, err := tr.Record(1000, 500)
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("Record crossing the limit = %v, want ErrBudgetExceeded", err)
	}
	if math.Abs(cost-0.00045) > 1e-9 {
		t.Errorf("Record cost = %v, want 0.00045 (spend still accounted)", cost)
	}
	if got := tr.Summary().MonthlyCostUSD; math.Abs(got-0.00045) > 1e-9 {
		t.Errorf("MonthlyCostUSD = %v, want 0.00045", got)
	}
}

func TestCheckLimit_DailyLimitOnlyWarns(t *testing.T) {
	// Daily over its limit but monthly still fine: calls remain allowed.
	limits := config.BudgetConfig{DailyLimitUSD: 0.0001, MonthlyLimitUSD: 200.0}
	tr := NewTracker("gpt-4o-mini", limits)

	if _, err := tr.Record(1000, 500); err != nil {
		t.Fatalf("Record() error = %v, want nil (daily limit is advisory)", err)
	}

	if err := tr.CheckLimit(); err != nil {
		t.Errorf("CheckLimit = %v, want nil (daily limit is advisory)", err)
	}
}

func TestRollover_DailyResets(t *testing.T) {
	now := time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	tr := NewTrackerWithClock("gpt-4o-mini", testLimits(), clock)

	_, _ = tr.Record(1000, 500)

	now = now.Add(2 * time.Hour) // Crosses midnight, same month
	s := tr.Summary()
	if s.DailyCostUSD != 0 {
		t.Errorf("DailyCostUSD after day rollover = %v, want 0", s.DailyCostUSD)
	}
	if s.MonthlyCostUSD == 0 {
		t.Error("MonthlyCostUSD should survive a day rollover")
	}
}

func TestRollover_MonthlyResets(t *testing.T) {
	now := time.Date(2026, 3, 31, 23, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	limits := config.BudgetConfig{DailyLimitUSD: 10.0, MonthlyLimitUSD: 0.0001}
	tr := NewTrackerWithClock("gpt-4o-mini", limits, clock)

	_, _ = tr.Record(1000, 500)
	if err := tr.CheckLimit(); !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("Expected budget exceeded before rollover, got %v", err)
	}

	now = now.Add(2 * time.Hour) // New month
	if err := tr.CheckLimit(); err != nil {
		t.Errorf("CheckLimit after month rollover = %v, want nil", err)
	}
}
