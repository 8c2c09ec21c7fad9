package twotier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kirky-x/twotier/internal/health"
	"github.com/kirky-x/twotier/internal/l1"
	"github.com/kirky-x/twotier/internal/l2/fake"
)

func TestSetWritesBothTiers(t *testing.T) {
	backend := fake.New()
	c := newTestCache(t, backend)

	require.NoError(t, c.Set(context.Background(), "k", []byte("v"), 0))

	e, ok := c.l1.Get("k")
	require.True(t, ok)
	require.Equal(t, []byte("v"), e.Value)

	vv, ok, err := backend.GetWithVersion(context.Background(), "svc:k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), vv.Value)
}

func TestSetPublishesInvalidationToOtherProcesses(t *testing.T) {
	backend := fake.New()
	writer := newTestCache(t, backend)
	reader := newTestCache(t, backend)

	// Both "processes" share the fake L2, as two real processes would share
	// Redis. Seed reader's L1 directly (bypassing Set, so no publish of its
	// own races the assertion below) with a stale copy, then have writer
	// overwrite the key: reader's L1 should drop its stale copy.
	reader.l1.Set("k", l1.Entry{Value: []byte("stale")})

	require.NoError(t, writer.Set(context.Background(), "k", []byte("fresh"), 0))

	require.Eventually(t, func() bool {
		_, ok := reader.l1.Get("k")
		return !ok
	}, time.Second, 5*time.Millisecond, "writer's Set must invalidate reader's stale L1 copy")
}

func TestSetFallsBackToWALWhileDegraded(t *testing.T) {
	backend := fake.New()
	c := newTestCacheWithWAL(t, backend)
	backend.Failing = true
	c.mon.ReportFailure(health.FailureHard)
	require.Equal(t, health.Degraded, c.mon.State())

	err := c.Set(context.Background(), "k", []byte("v"), 0)
	require.NoError(t, err, "a write that fails while Degraded must be durably hedged, not surfaced as an error")

	n, err := c.wal.Len()
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestSetPropagatesErrorWhenHealthyAndL2Fails(t *testing.T) {
	backend := fake.New()
	c := newTestCache(t, backend)
	backend.Failing = true

	err := c.Set(context.Background(), "k", []byte("v"), 0)
	require.Error(t, err, "a write failure while still Healthy must surface to the caller, not be silently hedged")
}

func TestSetRecoveryReplaysWALOnceL2IsHealthyAgain(t *testing.T) {
	backend := fake.New()
	c := newTestCacheWithWAL(t, backend)
	backend.Failing = true
	c.mon.ReportFailure(health.FailureHard)

	require.NoError(t, c.Set(context.Background(), "k", []byte("v"), 0))
	n, err := c.wal.Len()
	require.NoError(t, err)
	require.Equal(t, 1, n)

	backend.Failing = false
	replayed, err := c.ReplayWAL(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, replayed)

	vv, ok, err := backend.GetWithVersion(context.Background(), "svc:k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), vv.Value)
}
