package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kirky-x/twotier/internal/l2/fake"
)

func TestTryAcquireSucceedsWhenUnheld(t *testing.T) {
	backend := fake.New()
	svc := New("svc", backend, time.Second, nil)

	h, ok, err := svc.TryAcquire(context.Background(), "hot-key")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, h)
}

func TestTryAcquireFailsWhenAlreadyHeld(t *testing.T) {
	backend := fake.New()
	svc := New("svc", backend, time.Second, nil)

	_, ok, err := svc.TryAcquire(context.Background(), "hot-key")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = svc.TryAcquire(context.Background(), "hot-key")
	require.NoError(t, err)
	require.False(t, ok, "a second concurrent acquirer must not win the same key")
}

func TestReleaseIsFencedByToken(t *testing.T) {
	backend := fake.New()
	svc := New("svc", backend, time.Second, nil)

	first, ok, err := svc.TryAcquire(context.Background(), "hot-key")
	require.NoError(t, err)
	require.True(t, ok)

	// Simulate the first holder's lock having already expired and been
	// re-acquired by a second caller before the first holder's Release call
	// finally runs (e.g. after a long GC pause).
	_, err = backend.Unlock(context.Background(), "lock:{hot-key}", first.token)
	require.NoError(t, err)
	second, ok, err := svc.TryAcquire(context.Background(), "hot-key")
	require.NoError(t, err)
	require.True(t, ok)

	err = first.Release(context.Background())
	require.NoError(t, err)

	_, stillHeld, err := svc.TryAcquire(context.Background(), "hot-key")
	require.NoError(t, err)
	require.False(t, stillHeld, "first holder's stale Release must not evict second holder's lock")

	require.NoError(t, second.Release(context.Background()))
}

func TestAcquireWaitsForReleaseThenWins(t *testing.T) {
	backend := fake.New()
	svc := New("svc", backend, time.Second, nil)

	first, ok, err := svc.TryAcquire(context.Background(), "hot-key")
	require.NoError(t, err)
	require.True(t, ok)

	done := make(chan struct{})
	go func() {
		defer close(done)
		time.Sleep(20 * time.Millisecond)
		require.NoError(t, first.Release(context.Background()))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	h, err := svc.Acquire(ctx, "hot-key", 5*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, h)
	<-done
}

func TestAcquireRespectsContextCancellation(t *testing.T) {
	backend := fake.New()
	svc := New("svc", backend, time.Second, nil)

	_, ok, err := svc.TryAcquire(context.Background(), "hot-key")
	require.NoError(t, err)
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = svc.Acquire(ctx, "hot-key", 5*time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
