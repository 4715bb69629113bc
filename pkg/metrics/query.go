// Package metrics provides services for querying and aggregating metrics data.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// TaskMetrics represents aggregated LLM usage for one estimation task.
type TaskMetrics struct {
	TaskID       string  `json:"task_id"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	TotalTokens  int64   `json:"total_tokens"`
	TotalCost    float64 `json:"total_cost_usd"`
}

// QueryService provides methods to query metrics from Prometheus.
type QueryService struct {
	client   api.Client
	queryAPI v1.API
}

// NewQueryService creates a new metrics query service.
func NewQueryService(prometheusURL string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{
		Address: prometheusURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	return &QueryService{
		client:   client,
		queryAPI: v1.NewAPI(client),
	}, nil
}

// scalar runs an instant query and returns the first sample, or 0 when the
// series does not exist yet.
func (q *QueryService) scalar(ctx context.Context, query string) (float64, error) {
	result, _, err := q.queryAPI.Query(ctx, query, time.Now())
	if err != nil {
		return 0, err
	}
	if vector, ok := result.(model.Vector); ok && len(vector) > 0 {
		return float64(vector[0].Value), nil
	}
	return 0, nil
}

// GetTaskMetrics retrieves aggregated token and cost metrics for a specific
// task, summed across every operation (estimation, questions, adjustments,
// proposals) that ran against it.
func (q *QueryService) GetTaskMetrics(ctx context.Context, taskID string) (*TaskMetrics, error) {
	metrics := &TaskMetrics{
		TaskID: taskID,
	}

	input, err := q.scalar(ctx, fmt.Sprintf(`sum(llm_tokens_total{task_id=%q, type="input"})`, taskID))
	if err != nil {
		return nil, fmt.Errorf("failed to query input tokens: %w", err)
	}
	metrics.InputTokens = int64(input)

	output, err := q.scalar(ctx, fmt.Sprintf(`sum(llm_tokens_total{task_id=%q, type="output"})`, taskID))
	if err != nil {
		return nil, fmt.Errorf("failed to query output tokens: %w", err)
	}
	metrics.OutputTokens = int64(output)

	metrics.TotalTokens = metrics.InputTokens + metrics.OutputTokens

	cost, err := q.scalar(ctx, fmt.Sprintf(`sum(llm_costs_total{task_id=%q})`, taskID))
	if err != nil {
		return nil, fmt.Errorf("failed to query total cost: %w", err)
	}
	metrics.TotalCost = cost

	return metrics, nil
}

// GetTaskMetricsByOperation retrieves metrics broken down by operation for a
// specific task, showing how much of the spend went to estimation versus the
// chat adjustment flow.
func (q *QueryService) GetTaskMetricsByOperation(ctx context.Context, taskID string) (map[string]*TaskMetrics, error) {
	result := make(map[string]*TaskMetrics)

	opsQuery := fmt.Sprintf(`group by (operation) (llm_tokens_total{task_id=%q})`, taskID)
	opsResult, _, err := q.queryAPI.Query(ctx, opsQuery, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query operations: %w", err)
	}

	var operations []string
	if vector, ok := opsResult.(model.Vector); ok {
		for _, sample := range vector {
			if op, ok := sample.Metric["operation"]; ok {
				operations = append(operations, string(op))
			}
		}
	}

	for _, op := range operations {
		metrics := &TaskMetrics{
			TaskID: taskID,
		}

		input, err := q.scalar(ctx,
			fmt.Sprintf(`sum(llm_tokens_total{task_id=%q, operation=%q, type="input"})`, taskID, op))
		if err != nil {
			return nil, fmt.Errorf("failed to query input tokens for operation %s: %w", op, err)
		}
		metrics.InputTokens = int64(input)

		output, err := q.scalar(ctx,
			fmt.Sprintf(`sum(llm_tokens_total{task_id=%q, operation=%q, type="output"})`, taskID, op))
		if err != nil {
			return nil, fmt.Errorf("failed to query output tokens for operation %s: %w", op, err)
		}
		metrics.OutputTokens = int64(output)

		metrics.TotalTokens = metrics.InputTokens + metrics.OutputTokens

		cost, err := q.scalar(ctx,
			fmt.Sprintf(`sum(llm_costs_total{task_id=%q, operation=%q})`, taskID, op))
		if err != nil {
			return nil, fmt.Errorf("failed to query cost for operation %s: %w", op, err)
		}
		metrics.TotalCost = cost

		result[op] = metrics
	}

	return result, nil
}
