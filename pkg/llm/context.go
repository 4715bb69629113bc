package llm

import "context"

type contextKey int

const (
	operationKey contextKey = iota
	taskIDKey
)

// WithOperation tags the context with the logical operation making the call
// (e.g. "estimate", "chat", "questions"). Middleware uses it as a metric label.
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, operationKey, operation)
}

// OperationFrom returns the operation tag, or "unknown" if unset.
func OperationFrom(ctx context.Context) string {
	if v, ok := ctx.Value(operationKey).(string); ok && v != "" {
		return v
	}
	return "unknown"
}

// WithTaskID tags the context with the estimation task id the call belongs to.
func WithTaskID(ctx context.Context, taskID string) context.Context {
	return context.WithValue(ctx, taskIDKey, taskID)
}

// TaskIDFrom returns the task id tag, or "" if unset.
func TaskIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(taskIDKey).(string); ok {
		return v
	}
	return ""
}
