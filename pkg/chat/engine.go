package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"estimator/pkg/budget"
	"estimator/pkg/estimate"
	"estimator/pkg/i18n"
	"estimator/pkg/llm"
	"estimator/pkg/logx"
)

// Config tunes the adjustment engine.
type Config struct {
	DailyUnitCost float64
	TaxRate       float64

	// Amounts used by the generic suggestion chips.
	SuggestionUnitCost  float64
	SuggestionBudgetCap float64
}

// Engine processes adjustment turns. A nil client disables the model-assisted
// paths (proposal generation and free-text refinement); the rule-based and
// quick-action paths keep working without it.
type Engine struct {
	client    llm.Client
	bundle    *i18n.Bundle
	estimates EstimateStore
	messages  MessageStore
	proposals *ProposalCache

	unitCost         float64
	taxRate          float64
	suggestUnitCost  float64
	suggestBudgetCap float64
	logger           *logx.Logger
}

// New creates an adjustment engine. estimates and messages may be nil when
// the caller always supplies the current view and does not keep history.
func New(client llm.Client, bundle *i18n.Bundle, estimates EstimateStore, messages MessageStore, cfg Config) *Engine {
	suggestUnitCost := cfg.SuggestionUnitCost
	if suggestUnitCost <= 0 {
		suggestUnitCost = 35000
	}
	suggestBudgetCap := cfg.SuggestionBudgetCap
	if suggestBudgetCap <= 0 {
		suggestBudgetCap = 1000000
	}
	return &Engine{
		client:           client,
		bundle:           bundle,
		estimates:        estimates,
		messages:         messages,
		proposals:        NewProposalCache(),
		unitCost:         cfg.DailyUnitCost,
		taxRate:          cfg.TaxRate,
		suggestUnitCost:  suggestUnitCost,
		suggestBudgetCap: suggestBudgetCap,
		logger:           logx.NewLogger("chat"),
	}
}

// Proposals exposes the proposal cache, mainly for wiring and inspection.
func (e *Engine) Proposals() *ProposalCache {
	return e.proposals
}

// Process handles one adjustment turn: resolve the working estimate set,
// dispatch on intent or detected amount expressions, and render the reply
// with totals and suggestion chips.
func (e *Engine) Process(ctx context.Context, req Request) (Response, error) {
	ests := req.Estimates
	if len(ests) == 0 {
		if e.estimates != nil {
			loaded, err := e.estimates.EstimatesByTask(ctx, req.TaskID)
			if err != nil {
				return Response{}, fmt.Errorf("failed to load estimates for task %s: %w", req.TaskID, err)
			}
			ests = loaded
		}
		if len(ests) == 0 {
			return Response{Reply: e.bundle.T("messages.no_estimates")}, nil
		}
	}

	if req.Intent == IntentApplyProposal {
		return e.applyProposal(req, ests), nil
	}

	if adj := DetectAdjustment(req.Message); adj != nil {
		return e.proposalTurn(ctx, req, ests, adj)
	}

	return e.adjustTurn(ctx, req, ests)
}

func (e *Engine) applyProposal(req Request, ests []estimate.Estimate) Response {
	p, ok := e.proposals.Get(req.TaskID, req.Params.ProposalID)
	if req.Params.ProposalID == "" || !ok {
		return Response{
			Reply:       e.bundle.T("messages.proposal_not_found"),
			Estimates:   ests,
			Totals:      e.totals(ests),
			Suggestions: e.suggestions(ests),
		}
	}
	return Response{
		Reply:       e.bundle.T("messages.proposal_applied", "title", p.Title),
		Estimates:   p.NewEstimates,
		Totals:      e.totals(p.NewEstimates),
		Suggestions: e.suggestions(p.NewEstimates),
	}
}

// proposalTurn handles a quantified amount request: generate alternatives and
// return them without mutating the estimate set. The user applies one
// explicitly in a later turn.
func (e *Engine) proposalTurn(ctx context.Context, req Request, ests []estimate.Estimate, adj *Adjustment) (Response, error) {
	e.saveMessage(ctx, req.TaskID, "user", req.Message)

	proposals, err := e.generateProposals(ctx, req.TaskID, adj.Amount, adj.Direction, ests)
	if err != nil {
		return Response{}, fmt.Errorf("proposal generation aborted: %w", err)
	}
	if len(proposals) == 0 {
		return Response{
			Reply:     e.bundle.T("messages.proposal_generation_failed"),
			Estimates: ests,
			Totals:    e.totals(ests),
		}, nil
	}

	directionText := e.bundle.T("messages.direction_reduce")
	if adj.Direction == DirectionIncrease {
		directionText = e.bundle.T("messages.direction_increase")
	}
	return Response{
		Reply: e.bundle.T("messages.proposals_generated",
			"amount", groupDigits(adj.Amount), "direction", directionText),
		Proposals: proposals,
		Estimates: ests,
		Totals:    e.totals(ests),
	}, nil
}

func (e *Engine) adjustTurn(ctx context.Context, req Request, ests []estimate.Estimate) (Response, error) {
	var parts []string
	if req.Message != "" {
		e.saveMessage(ctx, req.TaskID, "user", req.Message)
		parts = append(parts, e.bundle.T("messages.ai_request_received"))
	}

	updated := ests
	var note string
	switch req.Intent {
	case IntentFitBudget:
		updated, note = e.fitBudget(updated, req.Params.Cap)
	case IntentUnitCostChange:
		cost := req.Params.UnitCost
		if cost <= 0 {
			cost = e.unitCost
		}
		updated, note = e.unitCostChange(updated, cost)
	case IntentRiskBuffer:
		percent := req.Params.Percent
		if percent <= 0 {
			percent = 10
		}
		updated, note = e.riskBuffer(updated, percent)
	case IntentScopeReduce:
		updated, note = e.scopeReduce(updated, req.Params.Keywords)
	default:
		outcome := e.applyRules(updated, req.Message)
		var err error
		updated, note, err = e.refineWithModel(ctx, req.Message, outcome)
		if err != nil {
			return Response{}, err
		}
	}

	totals := e.totals(updated)
	parts = append(parts, "- "+note, "- "+e.summaryLine(totals))
	reply := strings.Join(parts, "\n\n")

	e.saveMessage(ctx, req.TaskID, "assistant", reply)

	return Response{
		Reply:       reply,
		Estimates:   updated,
		Totals:      totals,
		Suggestions: e.suggestions(updated),
	}, nil
}

// adjustmentPayload is the JSON contract for the free-text refinement call.
type adjustmentPayload struct {
	Reply     string              `json:"reply_md"`
	Estimates []estimate.Estimate `json:"estimates"`
}

// refineWithModel asks the model for a fully reconciled estimate set after
// the rules ran. Adoption policy: when the rules changed nothing, a differing
// model result is adopted unconditionally; when the rules did change
// something, the model result is adopted only if its total is strictly lower.
// Model failures are non-fatal and annotated in the reply, except budget
// exhaustion, which aborts the turn.
func (e *Engine) refineWithModel(ctx context.Context, message string, outcome ruleOutcome) ([]estimate.Estimate, string, error) {
	if e.client == nil || message == "" {
		return outcome.estimates, outcome.note, nil
	}
	ctx = llm.WithOperation(ctx, "adjustment")

	resp, err := e.client.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.CompletionMessage{
			llm.NewSystemMessage(e.chatSystemPrompt()),
			llm.NewUserMessage(e.buildAdjustmentPrompt(message, outcome.estimates)),
		},
		MaxTokens:   1000,
		Temperature: 0.2,
	})
	if err != nil {
		if errors.Is(err, budget.ErrBudgetExceeded) {
			return nil, "", fmt.Errorf("adjustment aborted: %w", err)
		}
		e.logger.Warn("adjustment model call failed: %v", err)
		return outcome.estimates, strings.TrimSpace(outcome.note + "\n\n" + e.bundle.T("messages.adjustment_ai_failed")), nil
	}

	var payload adjustmentPayload
	if decodeErr := estimate.DecodeObject(resp.Content, &payload); decodeErr != nil || len(payload.Estimates) == 0 {
		return outcome.estimates, outcome.note, nil
	}

	norm := e.normalizeModelEstimates(payload.Estimates)
	result := outcome.estimates
	if differs(norm, result) {
		switch {
		case !outcome.changed:
			result = norm
		default:
			modelTotal := e.totals(norm).Total
			ruleTotal := e.totals(result).Total
			if modelTotal < ruleTotal-1e-3 {
				result = norm
			}
		}
	}

	note := outcome.note
	if payload.Reply != "" {
		note = strings.TrimSpace(note + "\n\n" + payload.Reply)
	}
	return result, note, nil
}

// normalizeModelEstimates fills derived fields the model may omit.
func (e *Engine) normalizeModelEstimates(ests []estimate.Estimate) []estimate.Estimate {
	out := make([]estimate.Estimate, len(ests))
	for i, est := range ests {
		if est.Amount <= 0 && est.PersonDays > 0 {
			est.Amount = est.PersonDays * e.unitCost
		}
		out[i] = est
	}
	return out
}

// differs reports whether two estimate sets are materially different:
// person-day deltas of 0.05 or more, amount deltas of 0.5 or more, or any
// name present in only one set.
func differs(a, b []estimate.Estimate) bool {
	if len(a) != len(b) {
		return true
	}
	byName := make(map[string]estimate.Estimate, len(a))
	for _, x := range a {
		byName[strings.ToLower(x.DeliverableName)] = x
	}
	for _, y := range b {
		x, ok := byName[strings.ToLower(y.DeliverableName)]
		if !ok {
			return true
		}
		if math.Abs(x.PersonDays-y.PersonDays) >= 0.05 {
			return true
		}
		if math.Abs(x.Amount-y.Amount) >= 0.5 {
			return true
		}
	}
	return false
}

func (e *Engine) chatSystemPrompt() string {
	return e.bundle.T("prompts.chat_system") + "\n\n" +
		e.bundle.T("prompts.chat_language_instruction") + "\n\n" +
		"Respond with JSON only, no code fences."
}

func (e *Engine) buildAdjustmentPrompt(message string, current []estimate.Estimate) string {
	currentJSON, _ := json.Marshal(current)
	unit := e.bundle.T("ui.unit_yen")

	var b strings.Builder
	b.WriteString(e.bundle.T("prompts.chat_language_instruction"))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Adjust the estimate below according to the request. Keep person_days and amount consistent at a daily unit cost of %s %s.\n", groupDigits(e.unitCost), unit)
	b.WriteString("Respond with exactly one JSON object, no code fences, with fields reply_md and estimates.\n")
	b.WriteString("Each element of estimates is {deliverable_id, deliverable_name, deliverable_description, person_days (one decimal), amount (number), reasoning (short Markdown)}.\n\n")
	fmt.Fprintf(&b, "Request:\n%s\n\n", message)
	fmt.Fprintf(&b, "Current estimate (JSON):\n%s\n", currentJSON)
	return b.String()
}

func (e *Engine) summaryLine(totals estimate.Totals) string {
	return fmt.Sprintf("%s: %s / %s: %s / %s: %s",
		e.bundle.T("messages.summary_subtotal"), e.currency(totals.Subtotal),
		e.bundle.T("messages.summary_tax"), e.currency(totals.Tax),
		e.bundle.T("messages.summary_total"), e.currency(totals.Total))
}

func (e *Engine) currency(v float64) string {
	return e.bundle.T("ui.currency_format", "amount", groupDigits(v))
}

func (e *Engine) totals(ests []estimate.Estimate) estimate.Totals {
	return estimate.CalculateTotals(ests, e.taxRate)
}

// suggestions builds the quick-reply chips: reduce/exclude for the three
// highest-amount deliverables plus the generic reduce-all, unit-cost, and
// budget-fit chips.
func (e *Engine) suggestions(ests []estimate.Estimate) []Suggestion {
	sorted := make([]estimate.Estimate, len(ests))
	copy(sorted, ests)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Amount > sorted[j].Amount })

	var names []string
	seen := make(map[string]bool)
	for _, est := range sorted {
		if est.DeliverableName == "" || seen[est.DeliverableName] {
			continue
		}
		names = append(names, est.DeliverableName)
		seen[est.DeliverableName] = true
		if len(names) == 3 {
			break
		}
	}

	var out []Suggestion
	for _, name := range names {
		out = append(out,
			Suggestion{
				Label:   e.bundle.T("messages.suggestion_reduce", "name", name),
				Message: e.bundle.T("messages.suggestion_message_reduce", "name", name),
			},
			Suggestion{
				Label:   e.bundle.T("messages.suggestion_exclude", "name", name),
				Message: e.bundle.T("messages.suggestion_message_exclude", "name", name),
			},
		)
	}
	out = append(out,
		Suggestion{
			Label:   e.bundle.T("messages.suggestion_reduce_all"),
			Message: e.bundle.T("messages.suggestion_message_reduce_all"),
		},
		Suggestion{
			Label:  e.bundle.T("messages.suggestion_set_unit_cost"),
			Intent: IntentUnitCostChange,
			Params: &Params{UnitCost: e.suggestUnitCost},
		},
		Suggestion{
			Label:  e.bundle.T("messages.suggestion_fit_budget"),
			Intent: IntentFitBudget,
			Params: &Params{Cap: e.suggestBudgetCap},
		},
	)
	return out
}

func (e *Engine) saveMessage(ctx context.Context, taskID, role, content string) {
	if e.messages == nil || taskID == "" {
		return
	}
	if err := e.messages.SaveMessage(ctx, taskID, role, redactSecrets(content)); err != nil {
		e.logger.Warn("failed to save %s message for task %s: %v", role, taskID, err)
	}
}
