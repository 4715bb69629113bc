// Package metrics provides Prometheus-based metrics recording for LLM operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder records the outcome of LLM requests for observability backends.
type Recorder interface {
	ObserveRequest(
		model, operation, taskID string,
		inputTokens, outputTokens int,
		cost float64,
		success bool,
		errorType string,
		duration time.Duration,
	)
}

// PrometheusRecorder implements the Recorder interface using Prometheus metrics.
type PrometheusRecorder struct {
	requestsTotal   *prometheus.CounterVec
	tokensTotal     *prometheus.CounterVec
	costsTotal      *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a new Prometheus-based metrics recorder
// registered on the default registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	return newPrometheusRecorder(promauto.With(prometheus.DefaultRegisterer))
}

// NewPrometheusRecorderWith creates a recorder registered on a caller-supplied
// registry. Tests use this to avoid duplicate registration panics.
func NewPrometheusRecorderWith(reg prometheus.Registerer) *PrometheusRecorder {
	return newPrometheusRecorder(promauto.With(reg))
}

func newPrometheusRecorder(factory promauto.Factory) *PrometheusRecorder {
	return &PrometheusRecorder{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_requests_total",
				Help: "Total number of LLM requests by model, operation, and status",
			},
			[]string{"model", "operation", "task_id", "status", "error_type"},
		),
		tokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_tokens_total",
				Help: "Total number of tokens used in LLM requests",
			},
			[]string{"model", "operation", "task_id", "type"},
		),
		costsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_costs_total",
				Help: "Total cost in USD for LLM requests",
			},
			[]string{"model", "operation", "task_id"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_request_duration_seconds",
				Help:    "Duration of LLM requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model", "operation", "task_id"},
		),
	}
}

// ObserveRequest records metrics for a completed LLM request.
func (p *PrometheusRecorder) ObserveRequest(
	model, operation, taskID string,
	inputTokens, outputTokens int,
	cost float64,
	success bool,
	errorType string,
	duration time.Duration,
) {
	status := "success"
	if !success {
		status = "error"
	}

	p.requestsTotal.WithLabelValues(model, operation, taskID, status, errorType).Inc()

	// Tokens and costs only accrue on success
	if success {
		p.tokensTotal.WithLabelValues(model, operation, taskID, "input").Add(float64(inputTokens))
		p.tokensTotal.WithLabelValues(model, operation, taskID, "output").Add(float64(outputTokens))
		p.costsTotal.WithLabelValues(model, operation, taskID).Add(cost)
	}

	p.requestDuration.WithLabelValues(model, operation, taskID).Observe(duration.Seconds())
}
