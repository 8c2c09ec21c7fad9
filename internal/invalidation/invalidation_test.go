package invalidation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kirky-x/twotier/internal/l1"
	"github.com/kirky-x/twotier/internal/l2/fake"
)

func TestDefaultChannelNaming(t *testing.T) {
	require.Equal(t, "cache:invalidate:sessions", DefaultChannel("sessions"))
}

func TestListenDeletesKeyOnPublish(t *testing.T) {
	backend := fake.New()
	store := l1.NewMemoryStore(10, 0)
	store.Set("user-42", l1.Entry{Value: []byte("cached")})

	bus := New(backend, DefaultChannel("sessions"), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	started := make(chan struct{})
	go func() {
		// Give Listen a moment to subscribe before we publish, since a
		// publish before the subscription exists would be lost.
		close(started)
		_ = bus.Listen(ctx, store)
	}()
	<-started
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, bus.Publish(context.Background(), "user-42"))

	require.Eventually(t, func() bool {
		_, ok := store.Get("user-42")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestResubscribeFlushesEntireL1(t *testing.T) {
	backend := fake.New()
	store := l1.NewMemoryStore(10, 0)
	store.Set("a", l1.Entry{Value: []byte("1")})
	store.Set("b", l1.Entry{Value: []byte("2")})

	bus := New(backend, DefaultChannel("sessions"), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = bus.Listen(ctx, store) }()

	// Let Listen's Subscribe call register before triggering the
	// resubscribe edge.
	time.Sleep(10 * time.Millisecond)

	backend.SimulateResubscribe()

	require.Eventually(t, func() bool {
		return store.Len() == 0
	}, time.Second, 5*time.Millisecond, "a detected resubscribe must conservatively flush all of L1, not just the missed key")
}

func TestListenStopsOnContextCancellation(t *testing.T) {
	backend := fake.New()
	store := l1.NewMemoryStore(10, 0)
	bus := New(backend, DefaultChannel("sessions"), nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- bus.Listen(ctx, store) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Listen did not return after context cancellation")
	}
}
