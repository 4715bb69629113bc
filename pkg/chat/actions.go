package chat

import (
	"fmt"
	"math"
	"strings"

	"estimator/pkg/estimate"
)

// fitBudget scales every estimate so the taxed total fits under cap. The
// scale factor never drops below 0.1; a total already within the cap is a
// no-op. Each item keeps its own effective daily rate.
func (e *Engine) fitBudget(ests []estimate.Estimate, cap float64) ([]estimate.Estimate, string) {
	current := estimate.CalculateTotals(ests, e.taxRate).Total
	if current <= cap {
		return ests, e.bundle.T("messages.fit_budget_within",
			"current", groupDigits(current), "cap", groupDigits(cap))
	}

	ratio := math.Max(0.1, cap/current)
	out := make([]estimate.Estimate, len(ests))
	for i, est := range ests {
		rate := e.unitCost
		if est.PersonDays > 0 {
			rate = est.Amount / est.PersonDays
		}
		est.PersonDays = round1(est.PersonDays * ratio)
		est.Amount = est.PersonDays * rate
		out[i] = est
	}

	newTotal := estimate.CalculateTotals(out, e.taxRate).Total
	return out, e.bundle.T("messages.fit_budget_adjusted",
		"cap", groupDigits(cap),
		"current", groupDigits(current),
		"new", groupDigits(newTotal),
		"ratio", fmt.Sprintf("%.2f", ratio))
}

// unitCostChange recomputes every amount as person-days times the new rate.
func (e *Engine) unitCostChange(ests []estimate.Estimate, newCost float64) ([]estimate.Estimate, string) {
	out := make([]estimate.Estimate, len(ests))
	for i, est := range ests {
		est.Amount = est.PersonDays * newCost
		out[i] = est
	}
	return out, e.bundle.T("messages.unit_cost_changed", "unit_cost", groupDigits(newCost))
}

// riskBuffer adds a percentage on top of every amount. Effort is unchanged.
func (e *Engine) riskBuffer(ests []estimate.Estimate, percent float64) ([]estimate.Estimate, string) {
	factor := 1.0 + percent/100.0
	out := make([]estimate.Estimate, len(ests))
	for i, est := range ests {
		est.Amount *= factor
		out[i] = est
	}
	return out, e.bundle.T("messages.risk_buffer_added", "percent", percent)
}

// scopeReduce drops every estimate whose name contains any keyword,
// case-insensitive.
func (e *Engine) scopeReduce(ests []estimate.Estimate, keywords []string) ([]estimate.Estimate, string) {
	var kws []string
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			kws = append(kws, strings.ToLower(k))
		}
	}
	if len(kws) == 0 {
		return ests, e.bundle.T("messages.scope_no_match")
	}

	out := make([]estimate.Estimate, 0, len(ests))
	var removed []string
	for _, est := range ests {
		if containsAny(strings.ToLower(est.DeliverableName), kws) {
			removed = append(removed, est.DeliverableName)
			continue
		}
		out = append(out, est)
	}
	if len(removed) == 0 {
		return ests, e.bundle.T("messages.scope_no_match")
	}
	return out, e.bundle.T("messages.scope_reduced", "keywords", strings.Join(removed, ", "))
}
