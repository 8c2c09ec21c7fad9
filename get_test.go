package twotier

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kirky-x/twotier/internal/health"
	"github.com/kirky-x/twotier/internal/l2/fake"
)

func TestGetMissOnBothTiers(t *testing.T) {
	backend := fake.New()
	c := newTestCache(t, backend)

	_, ok, err := c.Get(context.Background(), "missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGetHitsL1WithoutTouchingL2(t *testing.T) {
	backend := fake.New()
	c := newTestCache(t, backend)
	require.NoError(t, c.Set(context.Background(), "k", []byte("v"), 0))

	backend.Calls = map[string]int{}
	val, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), val)
	require.Zero(t, backend.Calls["GetWithVersion"], "an L1 hit must not fall through to L2")
}

func TestGetFallsThroughToL2AndPromotes(t *testing.T) {
	backend := fake.New()
	backend.Seed("svc:k", []byte("from-l2"), 1)
	c := newTestCache(t, backend)

	val, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("from-l2"), val)

	e, ok := c.l1.Get("k")
	require.True(t, ok, "an L2 hit must be promoted into L1")
	require.Equal(t, []byte("from-l2"), e.Value)
}

func TestGetReturnsCleanMissWhileDegraded(t *testing.T) {
	backend := fake.New()
	c := newTestCache(t, backend)
	c.mon.ReportFailure(health.FailureHard)
	require.Equal(t, health.Degraded, c.mon.State())

	val, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err, "a Degraded L2 skip must not surface as an error")
	require.False(t, ok)
	require.Nil(t, val)
}

func TestGetDeduplicatesConcurrentLoadsForSameKey(t *testing.T) {
	backend := fake.New()
	backend.Seed("svc:k", []byte("v"), 1)
	c := newTestCache(t, backend)

	var wg sync.WaitGroup
	var hits int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := c.Get(context.Background(), "k")
			require.NoError(t, err)
			if ok {
				atomic.AddInt32(&hits, 1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(20), atomic.LoadInt32(&hits))
	require.LessOrEqual(t, backend.Calls["GetWithVersion"], 2, "concurrent loads for the same key must be single-flight deduplicated")
}

func TestGetPropagatesHardFailureAndFlipsToDegraded(t *testing.T) {
	backend := fake.New()
	backend.Failing = true
	c := newTestCache(t, backend)

	_, _, err := c.Get(context.Background(), "k")
	require.Error(t, err)
	require.Equal(t, health.Degraded, c.mon.State())
}
