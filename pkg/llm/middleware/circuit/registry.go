package circuit

import "sync"

// Registry holds one named breaker per external dependency so that a failing
// provider does not trip the breaker of a healthy one.
type Registry struct {
	mu       sync.Mutex
	config   Config
	breakers map[string]Breaker
}

// NewRegistry creates a registry that builds breakers with the given config.
func NewRegistry(config Config) *Registry {
	return &Registry{
		config:   config,
		breakers: make(map[string]Breaker),
	}
}

// Get returns the breaker for the named dependency, creating it on first use.
func (r *Registry) Get(name string) Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[name]
	if !ok {
		b = New(r.config)
		r.breakers[name] = b
	}
	return b
}

// States returns a snapshot of all breaker states by name.
func (r *Registry) States() map[string]State {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]State, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.GetState()
	}
	return out
}

// ResetAll resets every breaker in the registry to closed.
func (r *Registry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range r.breakers {
		b.Reset()
	}
}
