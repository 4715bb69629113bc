package main

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"

	"estimator/pkg/budget"
	"estimator/pkg/chat"
	"estimator/pkg/estimate"
	"estimator/pkg/llm"
	"estimator/pkg/loopguard"
	"estimator/pkg/metrics"
	"estimator/pkg/persistence"
	"estimator/pkg/ratelimit"
)

type estimateRequest struct {
	TaskID       string                 `json:"task_id"`
	Title        string                 `json:"title"`
	Requirements string                 `json:"requirements"`
	Deliverables []estimate.Deliverable `json:"deliverables"`
	QAPairs      []estimate.QAPair      `json:"qa_pairs,omitempty"`
}

type estimateResponse struct {
	TaskID    string              `json:"task_id"`
	Estimates []estimate.Estimate `json:"estimates"`
	Totals    estimate.Totals     `json:"totals"`
}

type questionsRequest struct {
	Requirements string                 `json:"requirements"`
	Deliverables []estimate.Deliverable `json:"deliverables"`
}

type questionsResponse struct {
	Questions []string `json:"questions"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// routes attaches the JSON API to the mux. These are plain stdlib handlers;
// the engines do all the work.
func (s *Service) routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/estimate", s.withLimits(s.handleEstimate))
	mux.HandleFunc("POST /api/questions", s.withLimits(s.handleQuestions))
	mux.HandleFunc("POST /api/chat", s.withLimits(s.handleChat))
	mux.HandleFunc("GET /api/budget", s.handleBudget)
	mux.HandleFunc("GET /api/ratelimit", s.handleRateLimitStatus)
	mux.HandleFunc("GET /api/tasks/{id}/metrics", s.handleTaskMetrics)
}

// withLimits applies the per-client rate limit before the handler runs.
func (s *Service) withLimits(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.limiter.Check(clientID(r)); err != nil {
			var limitErr *ratelimit.LimitError
			if errors.As(err, &limitErr) {
				w.Header().Set("Retry-After", strconv.Itoa(int(limitErr.RetryAfter.Seconds())+1))
			}
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: err.Error()})
			return
		}
		next(w, r)
	}
}

// clientID identifies the caller for rate limiting: explicit header first,
// remote address otherwise.
func clientID(r *http.Request) string {
	if id := r.Header.Get("X-Client-ID"); id != "" {
		return id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Service) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if len(req.Deliverables) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "deliverables cannot be empty"})
		return
	}

	if req.TaskID != "" {
		if err := s.loops.Check(req.TaskID, "estimate"); err != nil {
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: err.Error()})
			return
		}
	}

	// Deliverables may arrive without ids when the caller builds them by hand.
	for i := range req.Deliverables {
		if req.Deliverables[i].ID == "" {
			req.Deliverables[i] = estimate.NewDeliverable(
				req.Deliverables[i].Name, req.Deliverables[i].Description)
		}
	}

	ctx := r.Context()
	if req.TaskID != "" {
		ctx = llm.WithTaskID(ctx, req.TaskID)
	}

	estimates, err := s.estimator.GenerateEstimates(ctx, req.Deliverables, req.Requirements, req.QAPairs)
	if err != nil {
		writeError(w, err)
		return
	}

	if req.TaskID != "" {
		s.persistEstimation(r, &req, estimates)
	}

	writeJSON(w, http.StatusOK, estimateResponse{
		TaskID:    req.TaskID,
		Estimates: estimates,
		Totals:    s.estimator.Totals(estimates),
	})
}

// persistEstimation saves the task and its estimation inputs and outputs.
// Persistence failures are logged, not surfaced: the caller already has the
// result.
func (s *Service) persistEstimation(r *http.Request, req *estimateRequest, estimates []estimate.Estimate) {
	ctx := r.Context()
	task := &persistence.Task{
		ID:           req.TaskID,
		Title:        req.Title,
		Requirements: req.Requirements,
		Language:     s.cfg.Language,
	}
	if err := s.store.UpsertTask(ctx, task); err != nil {
		s.logger.Warn("failed to persist task %s: %v", req.TaskID, err)
		return
	}
	if err := s.store.SaveDeliverables(ctx, req.TaskID, req.Deliverables); err != nil {
		s.logger.Warn("failed to persist deliverables for %s: %v", req.TaskID, err)
	}
	if err := s.store.SaveQAPairs(ctx, req.TaskID, req.QAPairs); err != nil {
		s.logger.Warn("failed to persist qa pairs for %s: %v", req.TaskID, err)
	}
	if err := s.store.SaveEstimates(ctx, req.TaskID, estimates); err != nil {
		s.logger.Warn("failed to persist estimates for %s: %v", req.TaskID, err)
	}
}

func (s *Service) handleQuestions(w http.ResponseWriter, r *http.Request) {
	var req questionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	questions := s.questions.Generate(r.Context(), req.Deliverables, req.Requirements)
	writeJSON(w, http.StatusOK, questionsResponse{Questions: questions})
}

func (s *Service) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.TaskID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "task_id is required"})
		return
	}

	if err := s.loops.Check(req.TaskID, "chat"); errors.Is(err, loopguard.ErrTooManyIterations) {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: err.Error()})
		return
	}

	resp, err := s.chat.Process(llm.WithTaskID(r.Context(), req.TaskID), req)
	if err != nil {
		writeError(w, err)
		return
	}

	// Adjusted estimate sets replace the stored ones so the next turn starts
	// from the latest state.
	if len(resp.Estimates) > 0 {
		if err := s.store.SaveEstimates(r.Context(), req.TaskID, resp.Estimates); err != nil {
			s.logger.Warn("failed to persist adjusted estimates for %s: %v", req.TaskID, err)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) handleBudget(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Summary())
}

// taskMetricsResponse aggregates a task's Prometheus-recorded spend, total and
// per operation.
type taskMetricsResponse struct {
	Task       *metrics.TaskMetrics            `json:"task"`
	Operations map[string]*metrics.TaskMetrics `json:"operations"`
}

func (s *Service) handleTaskMetrics(w http.ResponseWriter, r *http.Request) {
	if s.taskMetrics == nil {
		writeJSON(w, http.StatusServiceUnavailable,
			errorResponse{Error: "metrics backend is not configured"})
		return
	}

	taskID := r.PathValue("id")
	total, err := s.taskMetrics.GetTaskMetrics(r.Context(), taskID)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	byOp, err := s.taskMetrics.GetTaskMetricsByOperation(r.Context(), taskID)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, taskMetricsResponse{Task: total, Operations: byOp})
}

func (s *Service) handleRateLimitStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.limiter.Status())
}

// writeError maps engine failures to responses. Budget exhaustion gets its
// own status so clients can tell "stop spending" apart from a server fault.
func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, budget.ErrBudgetExceeded) {
		writeJSON(w, http.StatusPaymentRequired, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
