package engine

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds engines by name.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]Engine
}

// NewRegistry creates an empty engine registry.
func NewRegistry() *Registry {
	return &Registry{
		engines: make(map[string]Engine),
	}
}

// Register adds e under e.Name(). Names must be unique.
func (r *Registry) Register(e Engine) error {
	name := e.Name()
	if name == "" {
		return fmt.Errorf("engine has empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.engines[name]; ok {
		return fmt.Errorf("engine %q is already registered", name)
	}

	r.engines[name] = e

	return nil
}

// Get returns the engine registered under name.
func (r *Registry) Get(name string) (Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.engines[name]
	if !ok {
		return nil, fmt.Errorf("engine %q is not registered", name)
	}

	return e, nil
}

// Select resolves names in order. An empty list selects every engine,
// sorted by name.
func (r *Registry) Select(names []string) ([]Engine, error) {
	if len(names) == 0 {
		names = r.Names()
	}

	seen := make(map[string]bool, len(names))
	engines := make([]Engine, 0, len(names))

	for _, name := range names {
		if seen[name] {
			return nil, fmt.Errorf("engine %q selected twice", name)
		}
		seen[name] = true

		e, err := r.Get(name)
		if err != nil {
			return nil, err
		}

		engines = append(engines, e)
	}

	return engines, nil
}

// Names returns all registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
