package breaker

import "sync"

// Registry owns the process-wide breakers, one per guarded operation. It is
// constructed once at startup and injected; nothing in this package is a
// package-level singleton.
type Registry struct {
	mu       sync.RWMutex
	cfg      Config
	breakers map[string]*Breaker
}

func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:      cfg,
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker for name, creating it on first use.
func (r *Registry) Get(name string) *Breaker {
	r.mu.RLock()
	if b, ok := r.breakers[name]; ok {
		r.mu.RUnlock()
		return b
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	b := New(name, r.cfg)
	r.breakers[name] = b
	return b
}

func (r *Registry) Snapshot() []Metrics {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Metrics, 0, len(r.breakers))
	for _, b := range r.breakers {
		out = append(out, b.Snapshot())
	}
	return out
}
