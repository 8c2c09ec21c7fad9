// Package registry re-architects the "global cache-manager singleton" redesign
// flag: rather than a package-level mutable global, process-wide Cache
// instances live behind an atomically replaceable handle with explicit
// init/get/reset operations, so tests can isolate themselves instead of
// fighting shared global state.
package registry

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Handle is the narrow interface a registered instance must satisfy —
// deliberately just io.Closer-shaped so registry has no import-cycle
// dependency on the root twotier package.
type Handle interface {
	Close() error
}

// Registry holds zero or more named singletons of type T behind an
// atomically replaceable map, so Get is a lock-free read in the common case
// and Init/Reset are the only operations that take the write lock.
type Registry[T Handle] struct {
	mu    sync.Mutex
	store atomic.Pointer[map[string]T]
}

// New builds an empty Registry.
func New[T Handle]() *Registry[T] {
	r := &Registry[T]{}
	empty := make(map[string]T)
	r.store.Store(&empty)
	return r
}

// Init registers instance under name. It returns an error if name is already
// registered — callers that want replace-semantics must Reset first, so a
// double Init is always a caller bug surfaced immediately rather than a
// silently overwritten instance.
func (r *Registry[T]) Init(name string, instance T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := *r.store.Load()
	if _, exists := current[name]; exists {
		return fmt.Errorf("registry: %q already initialized", name)
	}
	next := make(map[string]T, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	next[name] = instance
	r.store.Store(&next)
	return nil
}

// Get returns the instance registered under name, if any.
func (r *Registry[T]) Get(name string) (T, bool) {
	current := *r.store.Load()
	instance, ok := current[name]
	return instance, ok
}

// Reset closes and deregisters name, if present — the explicit operation
// test isolation calls between cases instead of relying on process exit to
// clean up global state.
func (r *Registry[T]) Reset(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := *r.store.Load()
	instance, exists := current[name]
	if !exists {
		return nil
	}
	next := make(map[string]T, len(current)-1)
	for k, v := range current {
		if k != name {
			next[k] = v
		}
	}
	r.store.Store(&next)
	return instance.Close()
}

// ResetAll closes and deregisters every instance — used at process shutdown
// and between test suites that share a package-level Registry.
func (r *Registry[T]) ResetAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := *r.store.Load()
	empty := make(map[string]T)
	r.store.Store(&empty)

	var firstErr error
	for _, instance := range current {
		if err := instance.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
