package schema

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps node type names to their schemas.
// It is safe for concurrent use; lookups take a read lock only.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*TypeSchema
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		types: make(map[string]*TypeSchema),
	}
}

// Register adds a type schema. A name that is already registered is
// rejected with ErrDuplicateType.
func (r *Registry) Register(ts *TypeSchema) error {
	if err := ts.check(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.types[ts.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateType, ts.Name)
	}
	r.types[ts.Name] = ts
	return nil
}

// RegisterMany registers every schema, stopping at the first rejected one.
// Schemas registered before the failure stay registered.
func (r *Registry) RegisterMany(types []*TypeSchema) error {
	for _, ts := range types {
		if err := r.Register(ts); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the schema for typeName.
// Returns an error wrapping ErrUnknownType when the name is not registered.
// A nil registry knows no types.
func (r *Registry) Lookup(typeName string) (*TypeSchema, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typeName)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	ts, ok := r.types[typeName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typeName)
	}
	return ts, nil
}

// Has reports whether typeName is registered.
func (r *Registry) Has(typeName string) bool {
	_, err := r.Lookup(typeName)
	return err == nil
}

// KindOf returns the kind of typeName, or KindDynamic for unknown types.
func (r *Registry) KindOf(typeName string) Kind {
	ts, err := r.Lookup(typeName)
	if err != nil {
		return KindDynamic
	}
	return ts.Kind
}

// Names returns all registered type names, sorted.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered types.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.types)
}
