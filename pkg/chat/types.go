// Package chat implements the estimate adjustment engine: structured quick
// actions, a bilingual rule-based interpreter for free-text requests, model
// assisted refinement with a cost-minimizing reconciliation policy, and
// budget-targeted proposal generation held for explicit user approval.
package chat

import (
	"context"

	"estimator/pkg/estimate"
)

// Intent identifies a structured quick action in an adjustment request.
type Intent string

const (
	IntentNone           Intent = ""
	IntentFitBudget      Intent = "fit_budget"
	IntentUnitCostChange Intent = "unit_cost_change"
	IntentRiskBuffer     Intent = "risk_buffer"
	IntentScopeReduce    Intent = "scope_reduce"
	IntentApplyProposal  Intent = "apply_proposal"
)

// Params carries the arguments for structured intents.
type Params struct {
	Cap        float64  `json:"cap,omitempty"`
	UnitCost   float64  `json:"unit_cost,omitempty"`
	Percent    float64  `json:"percent,omitempty"`
	Keywords   []string `json:"keywords,omitempty"`
	ProposalID string   `json:"proposal_id,omitempty"`
}

// Request is one adjustment turn. Estimates is the caller's current view;
// when empty the persisted set for TaskID is loaded instead.
type Request struct {
	TaskID    string              `json:"task_id"`
	Message   string              `json:"message"`
	Intent    Intent              `json:"intent,omitempty"`
	Params    Params              `json:"params,omitempty"`
	Estimates []estimate.Estimate `json:"estimates,omitempty"`
}

// ProposalChange is one per-deliverable before/after entry inside a proposal.
// DeliverableID is matched first when present; the name is the fallback join
// key for items the model introduces.
type ProposalChange struct {
	DeliverableID    string  `json:"deliverable_id,omitempty"`
	DeliverableName  string  `json:"deliverable_name"`
	Description      string  `json:"description,omitempty"`
	PersonDaysBefore float64 `json:"person_days_before"`
	PersonDaysAfter  float64 `json:"person_days_after"`
	AmountBefore     float64 `json:"amount_before"`
	AmountAfter      float64 `json:"amount_after"`
	Reasoning        string  `json:"reasoning"`
}

// Proposal is a complete alternative estimate set generated for a quantified
// adjustment request. AmountChange is recomputed from the actual estimate
// sets, never taken from the model's self-reported delta.
type Proposal struct {
	ID           string              `json:"id"`
	Title        string              `json:"title"`
	Description  string              `json:"description"`
	AmountChange float64             `json:"amount_change"`
	Changes      []ProposalChange    `json:"changes"`
	NewEstimates []estimate.Estimate `json:"new_estimates"`
}

// Suggestion is a quick-reply chip shown after each turn. Either Message or
// Intent+Params is set, never both.
type Suggestion struct {
	Label   string  `json:"label"`
	Message string  `json:"message,omitempty"`
	Intent  Intent  `json:"intent,omitempty"`
	Params  *Params `json:"params,omitempty"`
}

// Response is the outcome of one adjustment turn.
type Response struct {
	Reply       string              `json:"reply_md"`
	Estimates   []estimate.Estimate `json:"estimates"`
	Totals      estimate.Totals     `json:"totals"`
	Proposals   []Proposal          `json:"proposals,omitempty"`
	Suggestions []Suggestion        `json:"suggestions,omitempty"`
}

// MessageStore persists conversation history, append-only.
type MessageStore interface {
	SaveMessage(ctx context.Context, taskID, role, content string) error
}

// EstimateStore loads the persisted estimate set for a task.
type EstimateStore interface {
	EstimatesByTask(ctx context.Context, taskID string) ([]estimate.Estimate, error)
}
