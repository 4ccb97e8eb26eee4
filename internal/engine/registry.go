package engine

import (
	"sort"
	"sync"

	"query-insights/internal/domain"
)

// Registry resolves data sources by name.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]domain.DataSource
}

var _ domain.DataSourceRegistry = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]domain.DataSource)}
}

// Register adds or replaces the data source called name.
func (r *Registry) Register(name string, ds domain.DataSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[name] = ds
}

// Get returns the data source called name.
func (r *Registry) Get(name string) (domain.DataSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ds, ok := r.sources[name]
	if !ok {
		return nil, domain.ErrNotFound("data source %q not found", name)
	}
	return ds, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
