package wal

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kirky-x/twotier/internal/l2/fake"
)

func openTemp(t *testing.T) *WAL {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.wal")
	w, err := Open(path, "test-service", nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w
}

func TestAppendAndReplay(t *testing.T) {
	w := openTemp(t)
	backend := fake.New()

	require.NoError(t, w.Append(Record{Timestamp: time.Now(), Op: OpSet, Key: "a", Value: []byte("1")}))
	require.NoError(t, w.Append(Record{Timestamp: time.Now(), Op: OpSet, Key: "b", Value: []byte("2")}))

	n, err := w.ReplayInto(context.Background(), backend, 100)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.True(t, w.Empty())

	v, ok, err := backend.GetWithVersion(context.Background(), "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("1"), v.Value)
}

func TestCoalescesPerKeyLastWriteWins(t *testing.T) {
	w := openTemp(t)
	backend := fake.New()

	require.NoError(t, w.Append(Record{Op: OpSet, Key: "a", Value: []byte("1")}))
	require.NoError(t, w.Append(Record{Op: OpSet, Key: "a", Value: []byte("2")}))
	require.NoError(t, w.Append(Record{Op: OpSet, Key: "a", Value: []byte("3")}))

	n, err := w.ReplayInto(context.Background(), backend, 100)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	v, ok, err := backend.GetWithVersion(context.Background(), "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("3"), v.Value)
}

func TestReplayFailureLeavesFailedChunkIntact(t *testing.T) {
	w := openTemp(t)
	backend := fake.New()
	backend.Failing = true

	require.NoError(t, w.Append(Record{Op: OpSet, Key: "a", Value: []byte("1")}))

	n, err := w.ReplayInto(context.Background(), backend, 100)
	require.Error(t, err)
	require.Equal(t, 0, n)
	require.False(t, w.Empty())

	backend.Failing = false
	n, err = w.ReplayInto(context.Background(), backend, 100)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestTruncatedTailIsDiscarded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "truncated.wal")
	w, err := Open(path, "svc", nil, nil)
	require.NoError(t, err)

	require.NoError(t, w.Append(Record{Op: OpSet, Key: "a", Value: []byte("1")}))
	require.NoError(t, w.Close())

	// Simulate a crash mid-write by appending a few garbage bytes after a
	// well-framed record.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte{0x00, 0x00, 0x00, 0x10, 0x01, 0x02})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	w2, err := Open(path, "svc", nil, nil)
	require.NoError(t, err)
	defer w2.Close()

	n, err := w2.Len()
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
