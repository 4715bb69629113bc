// Package loopguard caps iteration counts for LLM-driven flows so a
// misbehaving model cannot spin a conversation or agent loop forever.
package loopguard

import (
	"errors"
	"fmt"
	"sync"

	"estimator/pkg/logx"
)

// ErrTooManyIterations is the sentinel returned once a context exceeds its
// iteration limit.
var ErrTooManyIterations = errors.New("too many iterations")

// DefaultMaxIterations bounds a flow when no explicit limit is configured.
const DefaultMaxIterations = 10

// Detector counts iterations for a single context (a task, a chat session).
type Detector struct {
	mu            sync.Mutex
	contextID     string
	maxIterations int
	counts        map[string]int
	logger        *logx.Logger
}

// NewDetector creates a detector for one context id.
func NewDetector(contextID string, maxIterations int) *Detector {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &Detector{
		contextID:     contextID,
		maxIterations: maxIterations,
		counts:        make(map[string]int),
		logger:        logx.NewLogger("loopguard"),
	}
}

// Check increments the iteration count for an operation and returns
// ErrTooManyIterations once the count exceeds the limit. Hitting the limit
// exactly logs a warning but still succeeds.
func (d *Detector) Check(operation string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.counts[operation]++
	count := d.counts[operation]

	switch {
	case count > d.maxIterations:
		return fmt.Errorf("%w: context %s operation %s ran %d times (limit %d)",
			ErrTooManyIterations, d.contextID, operation, count, d.maxIterations)
	case count == d.maxIterations:
		d.logger.Warn("context %s operation %s reached the iteration limit (%d)",
			d.contextID, operation, d.maxIterations)
	}
	return nil
}

// Count returns the current count for an operation.
func (d *Detector) Count(operation string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counts[operation]
}

// Reset clears all counts for this context.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.counts = make(map[string]int)
}

// Manager hands out one detector per context id, creating them lazily.
type Manager struct {
	mu            sync.Mutex
	maxIterations int
	detectors     map[string]*Detector
}

// NewManager creates a manager whose detectors share one iteration limit.
func NewManager(maxIterations int) *Manager {
	return &Manager{
		maxIterations: maxIterations,
		detectors:     make(map[string]*Detector),
	}
}

// Get returns the detector for a context id, creating it on first use.
func (m *Manager) Get(contextID string) *Detector {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.detectors[contextID]
	if !ok {
		d = NewDetector(contextID, m.maxIterations)
		m.detectors[contextID] = d
	}
	return d
}

// Check is a convenience for Get(contextID).Check(operation).
func (m *Manager) Check(contextID, operation string) error {
	return m.Get(contextID).Check(operation)
}

// ResetContext clears the counts for one context without removing it.
func (m *Manager) ResetContext(contextID string) {
	m.mu.Lock()
	d, ok := m.detectors[contextID]
	m.mu.Unlock()

	if ok {
		d.Reset()
	}
}

// Remove forgets a context entirely, typically when its task completes.
func (m *Manager) Remove(contextID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.detectors, contextID)
}

// CleanupAll forgets every context.
func (m *Manager) CleanupAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detectors = make(map[string]*Detector)
}

// Active returns the number of tracked contexts.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.detectors)
}
