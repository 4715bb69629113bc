// Package ratelimit provides per-client sliding-window request limiting.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"estimator/pkg/config"
	"estimator/pkg/logx"
)

// ErrLimited is the sentinel for rejected requests. Use errors.Is to detect
// it; errors.As with *LimitError yields the retry-after hint.
var ErrLimited = errors.New("rate limit exceeded")

// LimitError carries the retry-after hint for a rejected request.
type LimitError struct {
	ClientID   string
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for client %s, retry after %v", e.ClientID, e.RetryAfter)
}

// Unwrap lets errors.Is(err, ErrLimited) match.
func (e *LimitError) Unwrap() error {
	return ErrLimited
}

// Limiter enforces a fixed number of requests per sliding window, tracked per
// client id. State is in-memory; a restart clears all windows.
type Limiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	clients     map[string][]time.Time
	now         func() time.Time
	logger      *logx.Logger
}

// Status is an administrative snapshot of the limiter.
type Status struct {
	MaxRequests   int            `json:"max_requests"`
	WindowSeconds int            `json:"window_seconds"`
	ActiveClients int            `json:"active_clients"`
	Clients       map[string]int `json:"clients"` // requests in window per client
}

// New creates a limiter from config.
func New(cfg config.RateLimitConfig) *Limiter {
	return NewWithClock(cfg, time.Now)
}

// NewWithClock creates a limiter with an injectable clock for tests.
func NewWithClock(cfg config.RateLimitConfig, now func() time.Time) *Limiter {
	return &Limiter{
		maxRequests: cfg.MaxRequests,
		window:      time.Duration(cfg.WindowSeconds) * time.Second,
		clients:     make(map[string][]time.Time),
		now:         now,
		logger:      logx.NewLogger("ratelimit"),
	}
}

// Check admits or rejects a request for the given client. Admitted requests
// are recorded immediately; rejected ones return a *LimitError whose
// RetryAfter says when the oldest recorded request leaves the window.
func (l *Limiter) Check(clientID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent := l.prune(clientID, now)

	if len(recent) >= l.maxRequests {
		retryAfter := l.window - now.Sub(recent[0])
		if retryAfter < 0 {
			retryAfter = 0
		}
		l.logger.Warn("client %s exceeded %d requests per %v, retry after %v",
			clientID, l.maxRequests, l.window, retryAfter)
		return &LimitError{ClientID: clientID, RetryAfter: retryAfter}
	}

	l.clients[clientID] = append(recent, now)
	return nil
}

// Remaining returns how many requests the client can still make in the
// current window.
func (l *Limiter) Remaining(clientID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.prune(clientID, l.now())
	remaining := l.maxRequests - len(recent)
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// ResetClient clears the recorded requests for one client.
func (l *Limiter) ResetClient(clientID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.clients, clientID)
}

// Status returns an administrative snapshot of all active clients.
func (l *Limiter) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	clients := make(map[string]int)
	for id := range l.clients {
		if recent := l.prune(id, now); len(recent) > 0 {
			clients[id] = len(recent)
		}
	}

	return Status{
		MaxRequests:   l.maxRequests,
		WindowSeconds: int(l.window / time.Second),
		ActiveClients: len(clients),
		Clients:       clients,
	}
}

// prune drops timestamps outside the window and stores the result.
// Caller must hold l.mu.
func (l *Limiter) prune(clientID string, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	stamps := l.clients[clientID]

	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	recent := stamps[i:]

	if len(recent) == 0 {
		delete(l.clients, clientID)
		return nil
	}
	l.clients[clientID] = recent
	return recent
}
