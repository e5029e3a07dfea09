// Package processor holds the static registry of task processors.
//
// Processors are typed Go functions registered under (kind, operation).
// Nothing is ever compiled or evaluated from task payloads; a task can only
// name a processor that the program registered at startup.
package processor

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Iron-Ham/edgeshift/internal/errors"
)

// Func computes a result from a task payload. Returning an error marks the
// attempt as a local execution failure.
type Func func(ctx context.Context, payload any) (any, error)

// Registry maps "kind.operation" keys to processors.
// It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	processors map[string]Func
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{processors: make(map[string]Func)}
}

// Key returns the registry key for kind and operation.
func Key(kind, operation string) string {
	return kind + "." + operation
}

// Register adds or replaces the processor for (kind, operation).
// Registering a nil Func is allowed; lookups of it fail with
// errors.ErrInvalidProcessor.
func (r *Registry) Register(kind, operation string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processors[Key(kind, operation)] = fn
}

// Unregister removes the processor for (kind, operation).
func (r *Registry) Unregister(kind, operation string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.processors, Key(kind, operation))
}

// Lookup resolves the processor for (kind, operation).
func (r *Registry) Lookup(kind, operation string) (Func, error) {
	r.mu.RLock()
	fn, ok := r.processors[Key(kind, operation)]
	r.mu.RUnlock()

	switch {
	case !ok:
		return nil, errors.NewTaskError(fmt.Sprintf("no processor for %s", Key(kind, operation)), errors.ErrProcessorNotFound).
			WithProcessor(kind, operation)
	case fn == nil:
		return nil, errors.NewTaskError(fmt.Sprintf("processor %s is not callable", Key(kind, operation)), errors.ErrInvalidProcessor).
			WithProcessor(kind, operation)
	}
	return fn, nil
}

// Keys returns the registered keys, sorted.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.processors))
	for k := range r.processors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
