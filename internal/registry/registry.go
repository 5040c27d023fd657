// Package registry holds the static (category, operation) -> upstream tool
// mapping table that the dispatcher and the meta-tool surface both read
// from. The table never changes for the lifetime of a process; it is the
// sole source of truth for routing and cache eligibility.
package registry

import "fmt"

// BatchCategory is the synthetic category handled by the batch executor
// rather than routed to any single upstream. It never appears as a key in
// the mapping table; dispatch special-cases it before consulting Resolve.
const BatchCategory = "batch"

// Mapping describes how one (category, operation) pair is routed.
type Mapping struct {
	Category     string
	Operation    string
	UpstreamName string
	UpstreamTool string
	Cacheable    bool
	Description  string
}

// Registry is an immutable lookup table built once at startup.
type Registry struct {
	byKey      map[string]Mapping
	byCategory map[string][]Mapping
}

func key(category, operation string) string {
	return category + "\x00" + operation
}

// New builds a Registry from a flat list of mappings. Later entries with a
// duplicate (category, operation) key overwrite earlier ones, mirroring how
// LoadOverrides layers customizations on top of the compiled-in defaults.
func New(mappings []Mapping) *Registry {
	r := &Registry{
		byKey:      make(map[string]Mapping, len(mappings)),
		byCategory: make(map[string][]Mapping),
	}
	for _, m := range mappings {
		r.byKey[key(m.Category, m.Operation)] = m
	}
	for _, m := range r.byKey {
		r.byCategory[m.Category] = append(r.byCategory[m.Category], m)
	}
	return r
}

// Resolve looks up the mapping for (category, operation). The bool reports
// whether the entry exists.
func (r *Registry) Resolve(category, operation string) (Mapping, bool) {
	m, ok := r.byKey[key(category, operation)]
	return m, ok
}

// ListOperations returns the operation names registered under category, in
// no particular order. Used to populate meta-tool enum schemas so the agent
// only ever sees valid values.
func (r *Registry) ListOperations(category string) []string {
	mappings := r.byCategory[category]
	ops := make([]string, 0, len(mappings))
	for _, m := range mappings {
		ops = append(ops, m.Operation)
	}
	return ops
}

// Categories returns every distinct category name in the table, excluding
// the synthetic batch category (which never appears in the table itself).
func (r *Registry) Categories() []string {
	cats := make([]string, 0, len(r.byCategory))
	for c := range r.byCategory {
		cats = append(cats, c)
	}
	return cats
}

// CacheableFor returns the operation names under upstreamName whose mapping
// is cacheable, used by cache invalidation to scope a sweep to one
// upstream's entries.
func (r *Registry) CacheableFor(upstreamName string) []string {
	var ops []string
	for _, m := range r.byKey {
		if m.UpstreamName == upstreamName && m.Cacheable {
			ops = append(ops, m.Operation)
		}
	}
	return ops
}

// All returns every mapping in the table, in no particular order.
func (r *Registry) All() []Mapping {
	all := make([]Mapping, 0, len(r.byKey))
	for _, m := range r.byKey {
		all = append(all, m)
	}
	return all
}

// Validate checks that every mapping has a non-empty category, operation,
// upstream name, and upstream tool, and that no mapping names the reserved
// batch category (batch recursion is rejected at dispatch, not here, but a
// table that declares it is a configuration bug worth catching early).
func Validate(mappings []Mapping) error {
	for i, m := range mappings {
		if m.Category == "" {
			return fmt.Errorf("mapping %d: category is required", i)
		}
		if m.Category == BatchCategory {
			return fmt.Errorf("mapping %d: %q is a reserved category name", i, BatchCategory)
		}
		if m.Operation == "" {
			return fmt.Errorf("mapping %d: operation is required", i)
		}
		if m.UpstreamName == "" {
			return fmt.Errorf("mapping %d (%s/%s): upstreamName is required", i, m.Category, m.Operation)
		}
		if m.UpstreamTool == "" {
			return fmt.Errorf("mapping %d (%s/%s): upstreamTool is required", i, m.Category, m.Operation)
		}
	}
	return nil
}
