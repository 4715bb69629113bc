// Package budget tracks LLM spend against daily and monthly limits.
package budget

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"estimator/pkg/config"
	"estimator/pkg/logx"
)

// ErrBudgetExceeded is returned when the monthly cost limit has been reached.
// Requests must not be sent once this is hit.
var ErrBudgetExceeded = errors.New("monthly cost limit exceeded")

const dailyWarnRatio = 0.8

// Tracker accumulates per-call costs with lazy day/month rollover. The daily
// limit is advisory (warning only); the monthly limit is a hard stop.
type Tracker struct {
	mu sync.Mutex

	model        string
	pricing      config.ModelInfo
	dailyLimit   float64
	monthlyLimit float64

	dailyCost    float64
	monthlyCost  float64
	dailyTokens  int
	currentDay   string // "2006-01-02"
	currentMonth string // "2006-01"

	callCount int
	now       func() time.Time
	logger    *logx.Logger
}

// Summary is a point-in-time projection of accumulated spend.
type Summary struct {
	Model           string  `json:"model"`
	DailyCostUSD    float64 `json:"daily_cost_usd"`
	MonthlyCostUSD  float64 `json:"monthly_cost_usd"`
	DailyLimitUSD   float64 `json:"daily_limit_usd"`
	MonthlyLimitUSD float64 `json:"monthly_limit_usd"`
	DailyTokens     int     `json:"daily_tokens"`
	CallCount       int     `json:"call_count"`
	DailyUsedPct    float64 `json:"daily_used_pct"`
	MonthlyUsedPct  float64 `json:"monthly_used_pct"`
}

// NewTracker creates a tracker for the given model using its registry pricing.
// Unknown models are tracked at zero cost with a warning.
func NewTracker(model string, limits config.BudgetConfig) *Tracker {
	return NewTrackerWithClock(model, limits, time.Now)
}

// NewTrackerWithClock creates a tracker with an injectable clock for tests.
func NewTrackerWithClock(model string, limits config.BudgetConfig, now func() time.Time) *Tracker {
	logger := logx.NewLogger("budget")

	pricing, ok := config.PricingFor(model)
	if !ok {
		logger.Warn("no pricing for model %q, tracking at zero cost", model)
	}

	t := &Tracker{
		model:        model,
		pricing:      pricing,
		dailyLimit:   limits.DailyLimitUSD,
		monthlyLimit: limits.MonthlyLimitUSD,
		now:          now,
		logger:       logger,
	}
	ts := now()
	t.currentDay = ts.Format("2006-01-02")
	t.currentMonth = ts.Format("2006-01")
	return t
}

// Cost computes the USD cost of a call from its token usage.
func (t *Tracker) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1e6*t.pricing.InputCPM +
		float64(outputTokens)/1e6*t.pricing.OutputCPM
}

// CheckLimit reports whether another call is allowed. Returns
// ErrBudgetExceeded when the monthly limit has been reached; a daily limit
// breach only logs a warning.
func (t *Tracker) CheckLimit() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollover()

	if t.monthlyLimit > 0 && t.monthlyCost >= t.monthlyLimit {
		return fmt.Errorf("%w: spent %.4f USD of %.2f USD this month",
			ErrBudgetExceeded, t.monthlyCost, t.monthlyLimit)
	}
	return nil
}

// Record accumulates the cost of a completed call and returns it. When this
// call pushes the monthly total to or past the hard limit, ErrBudgetExceeded
// is returned alongside the cost; the spend is still accounted.
func (t *Tracker) Record(inputTokens, outputTokens int) (float64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollover()

	cost := float64(inputTokens)/1e6*t.pricing.InputCPM +
		float64(outputTokens)/1e6*t.pricing.OutputCPM
	t.dailyCost += cost
	t.monthlyCost += cost
	t.dailyTokens += inputTokens + outputTokens
	t.callCount++

	if t.dailyLimit > 0 && t.dailyCost >= t.dailyLimit*dailyWarnRatio {
		t.logger.Warn("daily cost %.4f USD has reached %.0f%% of the %.2f USD limit",
			t.dailyCost, t.dailyCost/t.dailyLimit*100, t.dailyLimit)
	}

	if t.monthlyLimit > 0 && t.monthlyCost >= t.monthlyLimit {
		return cost, fmt.Errorf("%w: spent %.4f USD of %.2f USD this month",
			ErrBudgetExceeded, t.monthlyCost, t.monthlyLimit)
	}
	return cost, nil
}

// Summary returns a snapshot of the tracked spend.
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollover()

	s := Summary{
		Model:           t.model,
		DailyCostUSD:    t.dailyCost,
		MonthlyCostUSD:  t.monthlyCost,
		DailyLimitUSD:   t.dailyLimit,
		MonthlyLimitUSD: t.monthlyLimit,
		DailyTokens:     t.dailyTokens,
		CallCount:       t.callCount,
	}
	if t.dailyLimit > 0 {
		s.DailyUsedPct = t.dailyCost / t.dailyLimit * 100
	}
	if t.monthlyLimit > 0 {
		s.MonthlyUsedPct = t.monthlyCost / t.monthlyLimit * 100
	}
	return s
}

// rollover resets accumulators when the day or month has changed since the
// last call. Caller must hold t.mu.
func (t *Tracker) rollover() {
	ts := t.now()
	day := ts.Format("2006-01-02")
	month := ts.Format("2006-01")

	if day != t.currentDay {
		t.currentDay = day
		t.dailyCost = 0
		t.dailyTokens = 0
	}
	if month != t.currentMonth {
		t.currentMonth = month
		t.monthlyCost = 0
	}
}
