package task

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry maps stable names to capture-free functions. A context locates
// the function to run by looking its name up in a registry holding the
// same registrations as the orchestrator's.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{
		funcs: make(map[string]Func),
	}
}

// Register adds fn under name.
//
// fn must not depend on variables captured from its defining scope. A
// process-isolated context rebuilds the registry from scratch, so captured
// state is not carried over and the function silently sees its zero or
// initial value there. Only the input message reaches the function.
func (r *Registry) Register(name string, fn Func) error {
	if strings.TrimSpace(name) == "" || name != strings.TrimSpace(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if fn == nil {
		return fmt.Errorf("%w: %q", ErrNilFunc, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.funcs[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateFunc, name)
	}
	r.funcs[name] = fn
	return nil
}

// MustRegister is like Register but panics on error. Intended for
// package-level registration at program start.
func (r *Registry) MustRegister(name string, fn Func) {
	if err := r.Register(name, fn); err != nil {
		panic(err)
	}
}

// Lookup returns the function registered under name
func (r *Registry) Lookup(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

// Names returns the registered names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
