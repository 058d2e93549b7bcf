package scrape

import (
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownSource is returned when a caller names an adapter that is
// not registered.
type ErrUnknownSource struct {
	Source string
}

func (e *ErrUnknownSource) Error() string {
	return fmt.Sprintf("unknown source: %s", e.Source)
}

// Registry maps source ids to adapter instances. It replaces any
// hard-coded dispatch on source names.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[name]
	if !ok {
		return nil, &ErrUnknownSource{Source: name}
	}
	return a, nil
}

// Resolve returns the adapters for the named sources, or every
// registered adapter when names is empty.
func (r *Registry) Resolve(names []string) ([]Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(names) == 0 {
		out := make([]Adapter, 0, len(r.adapters))
		for _, name := range r.sortedNames() {
			out = append(out, r.adapters[name])
		}
		return out, nil
	}

	out := make([]Adapter, 0, len(names))
	for _, name := range names {
		a, ok := r.adapters[name]
		if !ok {
			return nil, &ErrUnknownSource{Source: name}
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedNames()
}

// sortedNames must be called with the lock held.
func (r *Registry) sortedNames() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
