// Package lock implements the Lock Service: short-lived, fencing-token-
// bearing locks built on l2.Backend's NX-set/compare-delete primitives,
// used to serialize concurrent refills of a single hot key. The fencing
// token is a UUID (github.com/google/uuid) rather than a monotonic
// counter, since twotier has no single authority to hand out sequence
// numbers cheaply — the token only needs to be unguessable and unique, not
// ordered.
package lock

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kirky-x/twotier/internal/l2"
	"github.com/kirky-x/twotier/internal/metrics"
)

// Handle is a held lock; Release must be called exactly once.
type Handle struct {
	key     string
	token   string
	backend l2.Backend
	metrics metrics.Hooks
	service string
}

// Service acquires and releases fencing-token locks over an l2.Backend.
type Service struct {
	backend l2.Backend
	metrics metrics.Hooks
	service string
	ttl     time.Duration
}

// New builds a Service. ttl bounds how long a lock survives if its holder
// crashes before releasing it.
func New(service string, backend l2.Backend, ttl time.Duration, m metrics.Hooks) *Service {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &Service{backend: backend, metrics: m, service: service, ttl: ttl}
}

// TryAcquire attempts to acquire key's lock once, returning ok=false
// immediately if already held rather than waiting.
func (s *Service) TryAcquire(ctx context.Context, key string) (*Handle, bool, error) {
	token := uuid.NewString()
	ok, err := s.backend.Lock(ctx, lockKey(key), token, s.ttl)
	s.metrics.LockAcquire(s.service, ok)
	if err != nil || !ok {
		return nil, false, err
	}
	return &Handle{key: key, token: token, backend: s.backend, metrics: s.metrics, service: s.service}, true, nil
}

// Acquire polls TryAcquire until it succeeds, it returns an error, or ctx is
// cancelled, waiting pollInterval between attempts. Used by the refill path: a caller that loses
// the race waits for the winner, then reads its result.
func (s *Service) Acquire(ctx context.Context, key string, pollInterval time.Duration) (*Handle, error) {
	if pollInterval <= 0 {
		pollInterval = 20 * time.Millisecond
	}
	t := time.NewTicker(pollInterval)
	defer t.Stop()
	for {
		h, ok, err := s.TryAcquire(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			return h, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

// Release deletes the lock if and only if it's still held by this handle's
// token, so a lock this process let expire (e.g. a long GC pause) is never
// released out from under whoever acquired it next.
func (h *Handle) Release(ctx context.Context) error {
	ok, err := h.backend.Unlock(ctx, lockKey(h.key), h.token)
	h.metrics.LockRelease(h.service, ok)
	return err
}

func lockKey(key string) string {
	return "lock:{" + key + "}"
}
