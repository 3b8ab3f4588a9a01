package widget

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps widget type names to adapters. Each engine gets its own
// registry; there is no package-level default.
//
// Thread-safe: registration may happen while engines look adapters up.
type Registry struct {
	adapters map[string]Adapter
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
	}
}

// Register adds an adapter under name. Registering a name twice is an error.
func (r *Registry) Register(name string, adapter Adapter) error {
	if name == "" {
		return fmt.Errorf("widget name cannot be empty")
	}
	if adapter == nil {
		return fmt.Errorf("adapter for %q cannot be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adapters[name]; exists {
		return fmt.Errorf("widget %q already registered", name)
	}
	r.adapters[name] = adapter
	return nil
}

// MustRegister is Register that panics on error, for static setup.
func (r *Registry) MustRegister(name string, adapter Adapter) {
	if err := r.Register(name, adapter); err != nil {
		panic(err)
	}
}

// Lookup returns the adapter registered under name.
func (r *Registry) Lookup(name string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, ok := r.adapters[name]
	return adapter, ok
}

// Names returns the registered widget type names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
