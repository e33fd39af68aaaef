// Package registry resolves manifest targets into connection-ready target
// records: an address (from a configured property) and a client-interface
// executable (target override, or the coordinator default).
package registry

import (
	"fmt"
	"sort"
	"sync"

	"disnix/internal/config"
	"disnix/internal/manifest"
)

// Registry is an indexed map from target key to target record. Lookups are
// O(1); a secondary sorted index supports binary search when iterating in
// canonical order.
type Registry struct {
	mu      sync.RWMutex
	targets map[string]*manifest.Target
	keys    []string // sorted
}

// Build resolves each target's connection address from cfg.TargetProperty
// and client-interface executable (target override, else
// cfg.ClientInterface), returning a ready-to-use Registry.
func Build(m *manifest.Manifest, cfg config.Config) (*Registry, error) {
	r := &Registry{
		targets: make(map[string]*manifest.Target, len(m.Targets)),
	}

	for key, target := range m.Targets {
		copied := *target
		address, ok := copied.Properties[cfg.TargetProperty]
		if !ok || address == "" {
			return nil, fmt.Errorf("registry: target %s has no %q property to resolve an address", key, cfg.TargetProperty)
		}
		copied.Address = address

		if copied.ClientInterface == "" {
			copied.ClientInterface = cfg.ClientInterface
		}

		r.targets[key] = &copied
		r.keys = append(r.keys, key)
	}
	sort.Strings(r.keys)

	return r, nil
}

// Get returns the resolved target record for key, or false if unknown.
func (r *Registry) Get(key string) (*manifest.Target, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.targets[key]
	return t, ok
}

// Keys returns the sorted target keys, supporting binary-search iteration
// in canonical order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of targets in the registry.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.targets)
}

// All returns every resolved target record, in canonical (sorted-key) order.
func (r *Registry) All() []*manifest.Target {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*manifest.Target, 0, len(r.keys))
	for _, k := range r.keys {
		out = append(out, r.targets[k])
	}
	return out
}
