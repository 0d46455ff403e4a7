// Package registry holds the custom actions a host makes available to
// workflows as "custom:<name>".
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/chatflow/pkg/domain"
)

// ActionFunc defines the signature for a custom action implementation.
// It receives the templated "with" payload and the run it is called from.
// A nil result records nothing for the step.
type ActionFunc func(ctx context.Context, args any, ac domain.ActionContext) (*domain.ActionResult, error)

// Registry manages the available custom actions.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]ActionFunc
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		actions: make(map[string]ActionFunc),
	}
}

// Register adds an action to the registry.
// If an action with the same name exists, it is overwritten.
func (r *Registry) Register(name string, fn ActionFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[name] = fn
}

// Lookup returns the action registered under name.
func (r *Registry) Lookup(name string) (ActionFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.actions[name]
	return fn, ok
}

// Execute looks up an action by name and executes it.
// Returns an error wrapping domain.ErrUnknownAction if the action is not found.
func (r *Registry) Execute(ctx context.Context, name string, args any, ac domain.ActionContext) (*domain.ActionResult, error) {
	fn, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: custom:%s", domain.ErrUnknownAction, name)
	}
	return fn(ctx, args, ac)
}

// Names returns the registered action names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.actions))
	for n := range r.actions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
