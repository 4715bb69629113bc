package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"estimator/pkg/budget"
	"estimator/pkg/estimate"
	"estimator/pkg/llm"
)

// maxProposals is the number of alternatives generated per request.
const maxProposals = 3

// ProposalCache holds generated proposals per task until one is applied.
// Process-wide; concurrent writes for the same task are last-writer-wins,
// which matches the single-user-per-task UI flow.
type ProposalCache struct {
	mu     sync.RWMutex
	byTask map[string][]Proposal
}

// NewProposalCache creates an empty cache.
func NewProposalCache() *ProposalCache {
	return &ProposalCache{byTask: make(map[string][]Proposal)}
}

// Put replaces the cached proposals for a task.
func (c *ProposalCache) Put(taskID string, proposals []Proposal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byTask[taskID] = proposals
}

// Get looks up one proposal by id within a task's cached set.
func (c *ProposalCache) Get(taskID, proposalID string) (Proposal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.byTask[taskID] {
		if p.ID == proposalID {
			return p, true
		}
	}
	return Proposal{}, false
}

// List returns the cached proposals for a task.
func (c *ProposalCache) List(taskID string) []Proposal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byTask[taskID]
}

type proposalPayload struct {
	Title              string           `json:"title"`
	Description        string           `json:"description"`
	TargetAmountChange float64          `json:"target_amount_change"`
	Changes            []ProposalChange `json:"changes"`
}

type proposalsPayload struct {
	Proposals []proposalPayload `json:"proposals"`
}

// generateProposals asks the model for three alternative restructurings that
// approximate the requested delta, recomputes the real amount change for each
// from the resulting estimate sets, and caches them under proposal_<task>_<n>
// ids. Returns nil on any model or parse failure.
func (e *Engine) generateProposals(
	ctx context.Context,
	taskID string,
	target float64,
	direction Direction,
	current []estimate.Estimate,
) ([]Proposal, error) {
	if e.client == nil {
		return nil, nil
	}
	ctx = llm.WithOperation(ctx, "proposal")

	resp, err := e.client.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.CompletionMessage{
			llm.NewSystemMessage(e.chatSystemPrompt()),
			llm.NewUserMessage(e.buildProposalPrompt(target, direction, current)),
		},
		MaxTokens:   2000,
		Temperature: llm.TemperatureCreative,
	})
	if err != nil {
		if errors.Is(err, budget.ErrBudgetExceeded) {
			return nil, err
		}
		e.logger.Warn("proposal generation failed for task %s: %v", taskID, err)
		return nil, nil
	}

	var payload proposalsPayload
	if err := estimate.DecodeObject(resp.Content, &payload); err != nil {
		e.logger.Warn("unparseable proposal response for task %s: %v", taskID, err)
		return nil, nil
	}

	currentSubtotal := estimate.CalculateTotals(current, 0).Subtotal
	var out []Proposal
	for i, p := range payload.Proposals {
		if i >= maxProposals {
			break
		}
		newEstimates := applyProposalChanges(current, p.Changes)
		actual := estimate.CalculateTotals(newEstimates, 0).Subtotal - currentSubtotal

		title := p.Title
		if title == "" {
			title = fmt.Sprintf("Proposal %d", i+1)
		}
		out = append(out, Proposal{
			ID:           fmt.Sprintf("proposal_%s_%d", taskID, i+1),
			Title:        title,
			Description:  p.Description,
			AmountChange: actual,
			Changes:      p.Changes,
			NewEstimates: newEstimates,
		})
	}
	if len(out) > 0 {
		e.proposals.Put(taskID, out)
	}
	return out, nil
}

// applyProposalChanges applies per-deliverable changes to a copy of the
// current set. Changes join by deliverable id first, then by name; unmatched
// changes with positive effort become new line items. Zero-amount rows are
// dropped from the result.
func applyProposalChanges(current []estimate.Estimate, changes []ProposalChange) []estimate.Estimate {
	next := make([]estimate.Estimate, len(current))
	copy(next, current)

	for _, ch := range changes {
		idx := -1
		if ch.DeliverableID != "" {
			for i := range next {
				if next[i].DeliverableID == ch.DeliverableID {
					idx = i
					break
				}
			}
		}
		if idx < 0 {
			for i := range next {
				if next[i].DeliverableName == ch.DeliverableName {
					idx = i
					break
				}
			}
		}

		if idx >= 0 {
			next[idx].PersonDays = ch.PersonDaysAfter
			next[idx].Amount = ch.AmountAfter
			if ch.Reasoning != "" {
				notes := next[idx].ReasoningNotes
				if notes == "" {
					notes = next[idx].Reasoning
				}
				next[idx].ReasoningNotes = strings.TrimSpace(notes + "\n\n" + ch.Reasoning)
			}
			continue
		}
		if ch.PersonDaysAfter > 0 {
			next = append(next, estimate.Estimate{
				DeliverableID:          uuid.New().String(),
				DeliverableName:        ch.DeliverableName,
				DeliverableDescription: ch.Description,
				PersonDays:             ch.PersonDaysAfter,
				Amount:                 ch.AmountAfter,
				Reasoning:              ch.Reasoning,
				ReasoningBreakdown:     ch.Reasoning,
				ReasoningNotes:         ch.Reasoning,
			})
		}
	}

	out := next[:0:0]
	for _, est := range next {
		if est.Amount > 0 {
			out = append(out, est)
		}
	}
	return out
}

// buildProposalPrompt renders the proposal-generation prompt: the current
// estimate set, the target delta, and the JSON contract the model must follow.
func (e *Engine) buildProposalPrompt(target float64, direction Direction, current []estimate.Estimate) string {
	type item struct {
		DeliverableID   string  `json:"deliverable_id"`
		DeliverableName string  `json:"deliverable_name"`
		PersonDays      float64 `json:"person_days"`
		Amount          float64 `json:"amount"`
	}
	items := make([]item, len(current))
	for i, est := range current {
		items[i] = item{est.DeliverableID, est.DeliverableName, est.PersonDays, est.Amount}
	}
	summary, _ := json.MarshalIndent(items, "", "  ")

	directionText := e.bundle.T("messages.direction_reduce")
	if direction == DirectionIncrease {
		directionText = e.bundle.T("messages.direction_increase")
	}
	unit := e.bundle.T("ui.unit_yen")

	var b strings.Builder
	b.WriteString(e.bundle.T("prompts.chat_language_instruction"))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Create exactly %d adjustment proposals that move the estimate below in the %q direction by approximately %s %s.\n\n",
		maxProposals, directionText, groupDigits(target), unit)
	fmt.Fprintf(&b, "Current estimate:\n%s\n\n", summary)
	b.WriteString("Respond with exactly one JSON object, no code fences:\n" +
		"{\n" +
		"  \"proposals\": [\n" +
		"    {\n" +
		"      \"title\": \"<short title>\",\n" +
		"      \"description\": \"<summary of the proposal>\",\n" +
		"      \"target_amount_change\": <signed number>,\n" +
		"      \"changes\": [\n" +
		"        {\n" +
		"          \"deliverable_id\": \"<id from the current estimate, empty for new items>\",\n" +
		"          \"deliverable_name\": \"<name>\",\n" +
		"          \"person_days_before\": <number>,\n" +
		"          \"person_days_after\": <number>,\n" +
		"          \"amount_before\": <number>,\n" +
		"          \"amount_after\": <number>,\n" +
		"          \"reasoning\": \"<short reason for the change>\"\n" +
		"        }\n" +
		"      ]\n" +
		"    }\n" +
		"  ]\n" +
		"}\n\n")
	b.WriteString("Constraints:\n")
	fmt.Fprintf(&b, "1. Each proposal's net change must be within 20%% of the target of %s %s.\n", groupDigits(target), unit)
	b.WriteString("2. When reducing, start with low-priority, low-risk items (manuals, testing, documentation).\n")
	b.WriteString("3. When increasing, add or strengthen high-value items (security, performance, quality); new items are allowed.\n")
	b.WriteString("4. When reducing, only use deliverables that exist in the current estimate.\n")
	fmt.Fprintf(&b, "5. Compute amounts at the daily unit cost of %s %s.\n", groupDigits(e.unitCost), unit)
	return b.String()
}
