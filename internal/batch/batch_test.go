package batch

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kirky-x/twotier/internal/health"
	"github.com/kirky-x/twotier/internal/l2"
	"github.com/kirky-x/twotier/internal/l2/fake"
	"github.com/kirky-x/twotier/internal/wal"
)

type alwaysEmpty struct{}

func (alwaysEmpty) Empty() bool { return true }

func TestFlushTriggeredBySizeCoalescesPerKey(t *testing.T) {
	backend := fake.New()
	w := New("svc", backend, nil, nil, Config{Size: 2, Interval: time.Hour}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	w.Enqueue(Entry{Op: l2.OpSet, Key: "a", Value: []byte("v1")})
	w.Enqueue(Entry{Op: l2.OpSet, Key: "a", Value: []byte("v2")})
	w.Enqueue(Entry{Op: l2.OpSet, Key: "b", Value: []byte("v3")})

	require.Eventually(t, func() bool {
		return backend.Len() == 2
	}, time.Second, 5*time.Millisecond)

	vv, ok, err := backend.GetWithVersion(context.Background(), "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v2"), vv.Value, "only the last queued write per key should survive coalescing")
}

func TestFlushTriggeredByIntervalWhenBelowSize(t *testing.T) {
	backend := fake.New()
	w := New("svc", backend, nil, nil, Config{Size: 100, Interval: 10 * time.Millisecond}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	w.Enqueue(Entry{Op: l2.OpSet, Key: "a", Value: []byte("v1")})

	require.Eventually(t, func() bool {
		return backend.Len() == 1
	}, time.Second, 5*time.Millisecond, "a single entry below batch_size must still flush once batch_interval elapses")
}

func TestDegradedFlushFailureHedgesToWAL(t *testing.T) {
	backend := fake.New()
	backend.Failing = true

	f, err := os.CreateTemp(t.TempDir(), "batch-*.wal")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	log, err := wal.Open(f.Name(), "svc", nil, nil)
	require.NoError(t, err)
	defer log.Close()

	mon := health.New("svc", backend, alwaysEmpty{}, health.Config{}, nil, nil)
	mon.ReportFailure(health.FailureHard)
	require.Equal(t, health.Degraded, mon.State())

	w := New("svc", backend, mon, log, Config{Size: 1, Interval: time.Hour}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	w.Enqueue(Entry{Op: l2.OpSet, Key: "a", Value: []byte("v1")})

	require.Eventually(t, func() bool {
		n, err := log.Len()
		return err == nil && n == 1
	}, time.Second, 5*time.Millisecond, "a write that fails while Degraded must be hedged into the WAL")
}

func TestHealthyFlushFailureIsNotHedged(t *testing.T) {
	backend := fake.New()
	backend.Failing = true

	f, err := os.CreateTemp(t.TempDir(), "batch-*.wal")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	log, err := wal.Open(f.Name(), "svc", nil, nil)
	require.NoError(t, err)
	defer log.Close()

	mon := health.New("svc", backend, alwaysEmpty{}, health.Config{}, nil, nil)
	require.Equal(t, health.Healthy, mon.State())

	w := New("svc", backend, mon, log, Config{Size: 1, Interval: time.Hour}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	w.Enqueue(Entry{Op: l2.OpSet, Key: "a", Value: []byte("v1")})

	// Give the writer a moment to attempt and fail the flush, then confirm
	// it left the WAL untouched — a failure while still Healthy is expected
	// to be retried by the normal write path, not hedged here.
	time.Sleep(50 * time.Millisecond)
	n, err := log.Len()
	require.NoError(t, err)
	require.Equal(t, 0, n)
}
