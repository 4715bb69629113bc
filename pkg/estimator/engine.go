// Package estimator generates per-deliverable effort estimates through a
// protected LLM client, falling back to keyword heuristics when the model is
// unreachable.
package estimator

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"estimator/pkg/budget"
	"estimator/pkg/estimate"
	"estimator/pkg/i18n"
	"estimator/pkg/llm"
	"estimator/pkg/logx"
	"estimator/pkg/tokens"
)

// DefaultMaxParallel bounds concurrent model calls per estimation run.
const DefaultMaxParallel = 5

// maxPromptTokens bounds the per-deliverable prompt. Oversized prompts skip
// the model call and use the keyword fallback directly.
const maxPromptTokens = 12000

// Config tunes the estimation engine.
type Config struct {
	DailyUnitCost float64
	TaxRate       float64
	MaxTokens     int
	MaxParallel   int
}

// Engine runs estimation for a set of deliverables.
type Engine struct {
	client      llm.Client
	bundle      *i18n.Bundle
	unitCost    float64
	taxRate     float64
	maxTokens   int
	maxParallel int
	counter     *tokens.Counter
	logger      *logx.Logger
}

// New creates an estimation engine. The client is expected to already carry
// the protection middleware (timeout, metrics, circuit breaker, retry).
func New(client llm.Client, bundle *i18n.Bundle, cfg Config) *Engine {
	maxParallel := cfg.MaxParallel
	if maxParallel <= 0 {
		maxParallel = DefaultMaxParallel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 800
	}
	// A nil counter falls back to character-based approximation.
	counter, err := tokens.NewCounter(client.ModelName())
	if err != nil {
		counter = nil
	}
	return &Engine{
		client:      client,
		bundle:      bundle,
		unitCost:    cfg.DailyUnitCost,
		taxRate:     cfg.TaxRate,
		maxTokens:   maxTokens,
		maxParallel: maxParallel,
		counter:     counter,
		logger:      logx.NewLogger("estimator"),
	}
}

// estimateResponse is the JSON contract the model must return.
type estimateResponse struct {
	PersonDays         float64 `json:"person_days"`
	Reasoning          string  `json:"reasoning"`
	ReasoningBreakdown string  `json:"reasoning_breakdown"`
	ReasoningNotes     string  `json:"reasoning_notes"`
}

// GenerateEstimates estimates every deliverable, running up to MaxParallel
// model calls concurrently. Results come back in submission order. Individual
// failures do not fail the run: each falls back to the keyword heuristic with
// the triggering error recorded in the notes. Budget exhaustion is the
// exception: it aborts the run so the caller can surface it.
func (e *Engine) GenerateEstimates(
	ctx context.Context,
	deliverables []estimate.Deliverable,
	requirements string,
	qaPairs []estimate.QAPair,
) ([]estimate.Estimate, error) {
	if len(deliverables) == 0 {
		return nil, fmt.Errorf("no deliverables to estimate")
	}

	ctx = llm.WithOperation(ctx, "estimate")
	results := make([]estimate.Estimate, len(deliverables))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxParallel)

	for i := range deliverables {
		g.Go(func() error {
			est, err := e.estimateOne(gctx, deliverables[i], requirements, qaPairs)
			if err != nil {
				return err
			}
			results[i] = est
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("estimation cancelled: %w", err)
	}
	return results, nil
}

// Totals aggregates an estimate set with the engine's tax rate.
func (e *Engine) Totals(estimates []estimate.Estimate) estimate.Totals {
	return estimate.CalculateTotals(estimates, e.taxRate)
}

func (e *Engine) estimateOne(
	ctx context.Context,
	d estimate.Deliverable,
	requirements string,
	qaPairs []estimate.QAPair,
) (estimate.Estimate, error) {
	userPrompt := buildEstimatePrompt(e.bundle, d, requirements, qaPairs)
	if !e.counter.WithinLimit(userPrompt, maxPromptTokens) {
		cause := fmt.Errorf("prompt is %d tokens, over the %d token limit",
			e.counter.Count(userPrompt), maxPromptTokens)
		e.logger.Warn("oversized prompt for %q, using keyword fallback: %v", d.Name, cause)
		return e.fallbackEstimate(d, cause), nil
	}
	e.logger.Debug("estimating %q: prompt is %d tokens", d.Name, e.counter.Count(userPrompt))

	req := llm.CompletionRequest{
		Messages: []llm.CompletionMessage{
			llm.NewSystemMessage(buildSystemPrompt(e.bundle)),
			llm.NewUserMessage(userPrompt),
		},
		MaxTokens:   e.maxTokens,
		Temperature: llm.TemperatureDefault,
	}

	resp, err := e.client.Complete(ctx, req)
	if err != nil {
		// Spending past the budget must reach the user, never a silent fallback.
		if errors.Is(err, budget.ErrBudgetExceeded) {
			return estimate.Estimate{}, err
		}
		e.logger.Warn("model call failed for %q, using keyword fallback: %v", d.Name, err)
		return e.fallbackEstimate(d, err), nil
	}

	var parsed estimateResponse
	if decodeErr := estimate.DecodeObject(resp.Content, &parsed); decodeErr != nil {
		// Malformed output: keep the raw text as breakdown, default effort.
		e.logger.Warn("unparseable response for %q: %v", d.Name, decodeErr)
		parsed = estimateResponse{
			PersonDays:         fallbackDefaultDays,
			Reasoning:          resp.Content,
			ReasoningBreakdown: resp.Content,
		}
	}
	if parsed.PersonDays <= 0 {
		parsed.PersonDays = fallbackDefaultDays
	}

	breakdown, notes := estimate.SeparateReasoning(parsed.ReasoningBreakdown, parsed.ReasoningNotes)
	reasoning := parsed.Reasoning
	if reasoning == "" {
		reasoning = joinReasoning(breakdown, notes)
	}

	return estimate.Estimate{
		DeliverableID:          d.ID,
		DeliverableName:        d.Name,
		DeliverableDescription: d.Description,
		PersonDays:             parsed.PersonDays,
		Amount:                 parsed.PersonDays * e.unitCost,
		Reasoning:              reasoning,
		ReasoningBreakdown:     breakdown,
		ReasoningNotes:         notes,
	}, nil
}

func (e *Engine) fallbackEstimate(d estimate.Deliverable, cause error) estimate.Estimate {
	days := fallbackPersonDays(d.Name, d.Description)
	notes := e.bundle.T("messages.fallback_used", "error", cause.Error())

	return estimate.Estimate{
		DeliverableID:          d.ID,
		DeliverableName:        d.Name,
		DeliverableDescription: d.Description,
		PersonDays:             days,
		Amount:                 days * e.unitCost,
		Reasoning:              notes,
		ReasoningBreakdown:     "",
		ReasoningNotes:         notes,
	}
}

func joinReasoning(breakdown, notes string) string {
	switch {
	case breakdown == "":
		return notes
	case notes == "":
		return breakdown
	default:
		return breakdown + "\n\n" + notes
	}
}
