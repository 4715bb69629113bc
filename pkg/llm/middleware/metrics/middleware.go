package metrics

import (
	"context"
	"time"

	"estimator/pkg/budget"
	"estimator/pkg/llm"
	"estimator/pkg/llm/llmerrors"
)

// Middleware returns a middleware that records request metrics and accounts
// spend on the budget tracker. When the monthly budget is exhausted, requests
// are rejected before reaching the provider; the call that crosses the limit
// returns ErrBudgetExceeded itself, after its cost has been accounted.
func Middleware(recorder Recorder, tracker *budget.Tracker) llm.Middleware {
	return func(next llm.Client) llm.Client {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				model := next.ModelName()
				operation := llm.OperationFrom(ctx)
				taskID := llm.TaskIDFrom(ctx)

				if err := tracker.CheckLimit(); err != nil {
					recorder.ObserveRequest(model, operation, taskID, 0, 0, 0,
						false, "budget_exceeded", 0)
					return llm.CompletionResponse{}, err
				}

				start := time.Now()
				resp, err := next.Complete(ctx, req)
				duration := time.Since(start)

				if err != nil {
					recorder.ObserveRequest(model, operation, taskID, 0, 0, 0,
						false, llmerrors.TypeOf(err).String(), duration)
					return resp, err
				}

				cost, budgetErr := tracker.Record(resp.Usage.InputTokens, resp.Usage.OutputTokens)
				recorder.ObserveRequest(model, operation, taskID,
					resp.Usage.InputTokens, resp.Usage.OutputTokens, cost,
					true, "", duration)
				if budgetErr != nil {
					return resp, budgetErr
				}

				return resp, nil
			},
			next.ModelName,
		)
	}
}
