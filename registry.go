package composed

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Registry maps composed-schema names to their descriptors. It follows a
// two-phase lifecycle: Register everything during startup, Freeze, then
// serve concurrent read-only lookups. Entries are never removed or
// replaced.
type Registry struct {
	mu      sync.RWMutex
	frozen  bool
	entries map[string]*CompositionDescriptor
}

// NewRegistry returns an empty, unfrozen registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*CompositionDescriptor)}
}

// Register adds a descriptor under its name. It fails on a nil
// descriptor, after Freeze, and on duplicate names.
func (r *Registry) Register(desc *CompositionDescriptor) error {
	if desc == nil {
		return fmt.Errorf("composed: cannot register a nil descriptor")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return fmt.Errorf("composed: registry is frozen; cannot register %q", desc.Name)
	}
	if _, exists := r.entries[desc.Name]; exists {
		return fmt.Errorf("composed: %q is already registered", desc.Name)
	}
	r.entries[desc.Name] = desc
	return nil
}

// MustRegister is Register panicking on error, for init blocks in
// generated code.
func (r *Registry) MustRegister(desc *CompositionDescriptor) {
	if err := r.Register(desc); err != nil {
		panic(err)
	}
}

// Freeze ends the registration phase. Idempotent.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Frozen reports whether the registration phase has ended.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (*CompositionDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.entries[name]
	return d, ok
}

// Names returns every registered schema name in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for k := range r.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Decode resolves data against the composition registered under name. A
// lookup miss is an error: the registry is frozen before serving, so a
// missing entry is a programming error, not an input-shape failure.
func (r *Registry) Decode(ctx context.Context, name string, data []byte) (Value, error) {
	desc, ok := r.Lookup(name)
	if !ok {
		return Value{}, fmt.Errorf("composed: no descriptor registered for %q", name)
	}
	return Decode(ctx, desc, data)
}

// defaultRegistry backs the package-level registration API used by
// generated model code.
var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry { return defaultRegistry }

// Register adds a descriptor to the default registry.
func Register(desc *CompositionDescriptor) error { return defaultRegistry.Register(desc) }

// MustRegister adds a descriptor to the default registry, panicking on
// error.
func MustRegister(desc *CompositionDescriptor) { defaultRegistry.MustRegister(desc) }

// Lookup consults the default registry.
func Lookup(name string) (*CompositionDescriptor, bool) { return defaultRegistry.Lookup(name) }
