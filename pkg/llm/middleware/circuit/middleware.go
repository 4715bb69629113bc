package circuit

import (
	"context"

	"estimator/pkg/llm"
)

// Middleware returns a middleware function that wraps an LLM client with circuit breaker logic.
// If the circuit is OPEN, requests are rejected immediately without calling the underlying client.
// This prevents cascading failures and gives the downstream service time to recover.
func Middleware(breaker Breaker) llm.Middleware {
	return func(next llm.Client) llm.Client {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				if !breaker.Allow() {
					return llm.CompletionResponse{}, &Error{State: breaker.GetState()}
				}

				resp, err := next.Complete(ctx, req)
				breaker.Record(err == nil)

				return resp, err //nolint:wrapcheck // Middleware should pass through errors unchanged
			},
			next.ModelName,
		)
	}
}
