package router

import (
	"sort"
	"strings"
	"sync"

	"splitstream/native/strategy"
)

// Registry is the catalogue of economic strategies available to the router.
// Registration is append-only: a strategy id can never be rebound to a
// different implementation while the process is running.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]strategy.Strategy
}

// NewRegistry constructs an empty strategy registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]strategy.Strategy)}
}

// Register adds a strategy under its own id. Duplicate ids are rejected.
func (r *Registry) Register(s strategy.Strategy) error {
	if s == nil {
		return ErrNilStrategy
	}
	id := strings.ToLower(strings.TrimSpace(s.ID()))
	if id == "" {
		return ErrEmptyStrategyID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.strategies[id]; ok {
		return ErrStrategyExists
	}
	r.strategies[id] = s
	return nil
}

// Get returns the strategy registered under the supplied id.
func (r *Registry) Get(id string) (strategy.Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return nil, ErrUnknownStrategy
	}
	return s, nil
}

// IDs lists the registered strategy ids in lexical order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.strategies))
	for id := range r.strategies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
