package collectors

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the plugins known to a run, keyed by name.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]*Plugin
}

func NewRegistry(plugins ...*Plugin) (*Registry, error) {
	r := &Registry{plugins: make(map[string]*Plugin)}
	for _, p := range plugins {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(p *Plugin) error {
	if p == nil {
		return &ConfigError{Field: "plugin", Reason: "must not be nil"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.plugins[p.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicatePlugin, p.Name())
	}
	r.plugins[p.Name()] = p
	return nil
}

func (r *Registry) Get(name string) (*Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	return p, ok
}

// All returns every plugin sorted by name.
func (r *Registry) All() []*Plugin {
	r.mu.RLock()
	out := make([]*Plugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		out = append(out, p)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Select narrows the registry. An empty only list means every plugin; skip is
// applied afterwards. Naming an unregistered plugin in either list is an error.
func (r *Registry) Select(only, skip []string) ([]*Plugin, error) {
	for _, n := range append(append([]string(nil), only...), skip...) {
		if _, ok := r.Get(n); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPlugin, n)
		}
	}

	want := make(map[string]bool, len(only))
	for _, n := range only {
		want[n] = true
	}
	drop := make(map[string]bool, len(skip))
	for _, n := range skip {
		drop[n] = true
	}

	var out []*Plugin
	for _, p := range r.All() {
		if len(want) > 0 && !want[p.Name()] {
			continue
		}
		if drop[p.Name()] {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
