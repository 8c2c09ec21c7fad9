package twotier

import (
	"context"
	"time"

	"github.com/kirky-x/twotier/internal/lock"
)

// Lock is a held distributed lock handle returned by TryLock/AcquireLock.
type Lock struct {
	handle *lock.Handle
}

// TryLock attempts to acquire key's lock once without waiting.
func (c *Cache) TryLock(ctx context.Context, key string) (*Lock, bool, error) {
	h, ok, err := c.lock.TryAcquire(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &Lock{handle: h}, true, nil
}

// AcquireLock polls until key's lock is acquired or ctx is cancelled —
// the "caller that loses the race waits for the winner" pattern from spec
// §4.8.
func (c *Cache) AcquireLock(ctx context.Context, key string, pollInterval time.Duration) (*Lock, error) {
	h, err := c.lock.Acquire(ctx, key, pollInterval)
	if err != nil {
		return nil, err
	}
	return &Lock{handle: h}, nil
}

// Release compare-and-deletes the lock, a no-op returning nil (not an
// error) if another holder's token is now stored there.
func (l *Lock) Release(ctx context.Context) error {
	return l.handle.Release(ctx)
}
