// Package estimate holds the domain model for effort estimation: deliverables,
// per-deliverable estimates, totals, and the parsing/validation helpers shared
// by the estimation and chat engines.
package estimate

import "github.com/google/uuid"

// Deliverable is one unit of work to be estimated. ID is generated at intake
// and stays stable through adjustments; Name remains the join key for estimate
// sets supplied by external callers that carry no ids.
type Deliverable struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// NewDeliverable creates a deliverable with a generated id.
func NewDeliverable(name, description string) Deliverable {
	return Deliverable{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
	}
}

// QAPair is one clarifying question with its answer, fed into the estimation
// prompt as additional context.
type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Estimate is the effort/cost result for one deliverable.
//
// Reasoning keeps the combined text for backward compatibility;
// ReasoningBreakdown carries the bulleted per-phase numbers and
// ReasoningNotes the prose assumptions and risks.
type Estimate struct {
	DeliverableID          string  `json:"deliverable_id,omitempty"`
	DeliverableName        string  `json:"deliverable_name"`
	DeliverableDescription string  `json:"deliverable_description"`
	PersonDays             float64 `json:"person_days"`
	Amount                 float64 `json:"amount"`
	Reasoning              string  `json:"reasoning"`
	ReasoningBreakdown     string  `json:"reasoning_breakdown"`
	ReasoningNotes         string  `json:"reasoning_notes"`
}

// Totals is the aggregate over an estimate set.
type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

// CalculateTotals sums the amounts and applies the tax rate. Pure function:
// same inputs always produce the same totals.
func CalculateTotals(estimates []Estimate, taxRate float64) Totals {
	var subtotal float64
	for i := range estimates {
		subtotal += estimates[i].Amount
	}
	tax := subtotal * taxRate
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal + tax,
	}
}
