package bookmark

import (
	"sort"
	"sync"
)

// Registry maps database names to their stores.
// It is created once at process start and injected where needed.
type Registry struct {
	mu     sync.RWMutex
	stores map[string]*Store
}

// NewRegistry creates a registry with an empty store for each name
func NewRegistry(names ...string) *Registry {
	r := &Registry{stores: make(map[string]*Store, len(names))}
	for _, name := range names {
		if name == "" {
			continue
		}
		r.stores[name] = NewStore(name)
	}
	return r
}

// Get returns the store for name, if the database is configured
func (r *Registry) Get(name string) (*Store, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stores[name]
	return s, ok
}

// Ensure returns the store for name, creating it when missing
func (r *Registry) Ensure(name string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[name]; ok {
		return s
	}
	s := NewStore(name)
	r.stores[name] = s
	return s
}

// Remove forgets the store for name. A later Ensure starts from an empty set.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stores, name)
}

// Names returns the configured database names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.stores))
	for name := range r.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sync makes the registry hold exactly names, keeping the state of stores
// that stay. It returns the added and removed names, sorted.
func (r *Registry) Sync(names []string) (added, removed []string) {
	want := make(map[string]bool, len(names))
	for _, name := range names {
		if name != "" {
			want[name] = true
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for name := range r.stores {
		if !want[name] {
			delete(r.stores, name)
			removed = append(removed, name)
		}
	}
	for name := range want {
		if _, ok := r.stores[name]; !ok {
			r.stores[name] = NewStore(name)
			added = append(added, name)
		}
	}

	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}
