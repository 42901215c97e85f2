package tool

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Registry maps stable tool names to adapters. Registration happens once at
// startup; lookups and invocations are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	order    []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
	}
}

// Register adds an adapter. Invalid schemas are rejected, and so is a name
// that is already registered: entries are never overwritten.
func (r *Registry) Register(adapter Adapter) error {
	if adapter == nil {
		return fmt.Errorf("tool: register nil adapter")
	}
	schema := adapter.Schema()
	if diags := ValidateSchema(schema); diags.HasErrors() {
		first := diags.Errors()[0]
		return fmt.Errorf("tool: invalid schema for %q: %s: %s", schema.Name, first.Code, first.Message)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[schema.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, schema.Name)
	}
	r.adapters[schema.Name] = adapter
	r.order = append(r.order, schema.Name)
	return nil
}

// MustRegister is Register for static catalogues built at process start.
func (r *Registry) MustRegister(adapters ...Adapter) {
	for _, adapter := range adapters {
		if err := r.Register(adapter); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the adapter registered under name.
func (r *Registry) Lookup(name string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[strings.TrimSpace(name)]
	return adapter, ok
}

// ListSchemas returns every registered schema in registration order.
func (r *Registry) ListSchemas() []Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schemas := make([]Schema, 0, len(r.order))
	for _, name := range r.order {
		schemas = append(schemas, r.adapters[name].Schema())
	}
	return schemas
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Invoke is the calling-layer entry point: it resolves name, validates args
// against the schema and only then dispatches to the adapter.
//
// The returned error is non-nil only for caller contract violations
// (ErrToolNotFound, *ArgumentError). Adapter failures are reported as a
// failure Result with a nil error.
func (r *Registry) Invoke(ctx context.Context, name string, inv Invocation) (Result, error) {
	adapter, ok := r.Lookup(name)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	schema := adapter.Schema()
	if inv.Args == nil {
		inv.Args = Args{}
	}
	if diags := ValidateArgs(schema, inv.Args); diags.HasErrors() {
		return Result{}, &ArgumentError{Tool: schema.Name, Diagnostics: diags.Errors()}
	}
	return adapter.Invoke(ctx, inv), nil
}
