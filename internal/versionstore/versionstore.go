// Package versionstore wraps the L2 backend's version-bearing operations
// and separately tracks the per-process provisional version counters the
// Two-Tier Coordinator assigns on the write path before L2 has confirmed
// the authoritative version.
package versionstore

import (
	"context"
	"sync"
	"time"

	"github.com/kirky-x/twotier/internal/l2"
)

// Store is the thinnest possible wrapper over l2.Backend's versioned
// operations, used by the Coordinator's read, write, delete, manual and
// warmup paths (the Lock Service and WAL replay call l2.Backend directly).
// It is the natural seam for the rule that a version is never
// synthesized locally when L2 is unreachable.
type Store struct {
	backend l2.Backend
}

// New wraps backend.
func New(backend l2.Backend) *Store {
	return &Store{backend: backend}
}

// GetWithVersion returns the current (value, version) for key.
func (s *Store) GetWithVersion(ctx context.Context, key string) (l2.VersionedValue, bool, error) {
	return s.backend.GetWithVersion(ctx, key)
}

// SetWithVersion writes value and returns the new, authoritative version.
func (s *Store) SetWithVersion(ctx context.Context, key string, value []byte, ttl time.Duration) (uint64, error) {
	return s.backend.SetWithVersion(ctx, key, value, ttl)
}

// Delete removes key's value and version counter.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

// Local tracks per-key provisional version counters entirely within this
// process — used by the Coordinator to stamp an L1 entry with a
// provisional version certain to be greater than anything this process
// has previously observed locally for that key, before L2 has had a
// chance to confirm the real version.
type Local struct {
	mu       sync.Mutex
	counters map[string]uint64
}

// NewLocal builds an empty Local counter table.
func NewLocal() *Local {
	return &Local{counters: make(map[string]uint64)}
}

// Next returns a value strictly greater than any value previously returned
// by Next or observed via Observe for key.
func (l *Local) Next(key string) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counters[key]++
	return l.counters[key]
}

// Observe records that version v has been seen for key (e.g. the
// authoritative version L2 returned), so a subsequent Next never goes
// backwards relative to it.
func (l *Local) Observe(key string, v uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if v > l.counters[key] {
		l.counters[key] = v
	}
}

// Forget drops the counter for key — called on delete, since a
// provisional counter has no meaning once its key no longer exists.
func (l *Local) Forget(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.counters, key)
}
