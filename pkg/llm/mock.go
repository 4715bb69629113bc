package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockResult is one scripted outcome for a MockClient call.
type MockResult struct {
	Response CompletionResponse
	Err      error
}

// MockClient is a scriptable Client for tests. Results are returned in order;
// when the script is exhausted the last result repeats. All calls are recorded.
type MockClient struct {
	mu       sync.Mutex
	results  []MockResult
	requests []CompletionRequest
	model    string
}

// NewMockClient creates a mock client with the given scripted results.
func NewMockClient(results ...MockResult) *MockClient {
	return &MockClient{results: results, model: "mock-model"}
}

// MockResponse is a convenience constructor for a successful text result.
func MockResponse(content string) MockResult {
	return MockResult{Response: CompletionResponse{
		Content:    content,
		StopReason: "end_turn",
		Usage:      Usage{InputTokens: 100, OutputTokens: 50},
	}}
}

// MockError is a convenience constructor for a failed result.
func MockError(err error) MockResult {
	return MockResult{Err: err}
}

// Complete returns the next scripted result.
func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return CompletionResponse{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	if len(m.results) == 0 {
		return CompletionResponse{}, fmt.Errorf("mock client has no scripted results")
	}

	idx := len(m.requests) - 1
	if idx >= len(m.results) {
		idx = len(m.results) - 1
	}
	r := m.results[idx]
	return r.Response, r.Err
}

// ModelName returns the configured mock model name.
func (m *MockClient) ModelName() string {
	return m.model
}

// SetModelName overrides the reported model name.
func (m *MockClient) SetModelName(name string) {
	m.model = name
}

// CallCount returns the number of Complete calls made.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of the recorded requests.
func (m *MockClient) Requests() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CompletionRequest, len(m.requests))
	copy(out, m.requests)
	return out
}
