package l1

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetSetRoundTrip(t *testing.T) {
	s := NewMemoryStore(10, 0)
	s.Set("a", Entry{Value: []byte("1"), Version: 1})

	e, ok := s.Get("a")
	require.True(t, ok)
	require.Equal(t, []byte("1"), e.Value)
}

func TestGetMissingIsNotOK(t *testing.T) {
	s := NewMemoryStore(10, 0)
	_, ok := s.Get("missing")
	require.False(t, ok)
}

func TestEvictsLeastRecentlyUsedAtCapacity(t *testing.T) {
	s := NewMemoryStore(2, 0)
	s.Set("a", Entry{Value: []byte("1")})
	s.Set("b", Entry{Value: []byte("2")})

	// touch "a" so "b" becomes the least recently used entry.
	_, _ = s.Get("a")
	s.Set("c", Entry{Value: []byte("3")})

	require.Equal(t, 2, s.Len())
	_, ok := s.Get("b")
	require.False(t, ok, "b should have been evicted")
	_, ok = s.Get("a")
	require.True(t, ok)
	_, ok = s.Get("c")
	require.True(t, ok)
}

func TestGetHidesExpiredEntry(t *testing.T) {
	s := NewMemoryStore(10, 0)
	s.Set("a", Entry{Value: []byte("1"), InsertedAt: time.Now().Add(-time.Hour), TTL: time.Millisecond})

	_, ok := s.Get("a")
	require.False(t, ok)
	require.Equal(t, 0, s.Len(), "expired entry should be evicted on access, not just hidden")
}

func TestSetIfNewerRejectsStaleVersion(t *testing.T) {
	s := NewMemoryStore(10, 0)
	s.Set("a", Entry{Value: []byte("new"), Version: 5})

	updated := s.SetIfNewer("a", Entry{Value: []byte("old"), Version: 3})
	require.False(t, updated)

	e, _ := s.Get("a")
	require.Equal(t, []byte("new"), e.Value)
}

func TestSetIfNewerAcceptsHigherVersion(t *testing.T) {
	s := NewMemoryStore(10, 0)
	s.Set("a", Entry{Value: []byte("old"), Version: 3})

	updated := s.SetIfNewer("a", Entry{Value: []byte("new"), Version: 5})
	require.True(t, updated)

	e, _ := s.Get("a")
	require.Equal(t, []byte("new"), e.Value)
}

func TestSetIfNewerAcceptsAbsentKey(t *testing.T) {
	s := NewMemoryStore(10, 0)
	updated := s.SetIfNewer("a", Entry{Value: []byte("first"), Version: 1})
	require.True(t, updated)
}

func TestSetIfNewerTreatsExpiredExistingAsAbsent(t *testing.T) {
	s := NewMemoryStore(10, 0)
	s.Set("a", Entry{Value: []byte("stale"), Version: 99, InsertedAt: time.Now().Add(-time.Hour), TTL: time.Millisecond})

	updated := s.SetIfNewer("a", Entry{Value: []byte("fresh"), Version: 1})
	require.True(t, updated, "an expired entry's version must not block a lower-versioned fresh write")
}

func TestDeleteIsNoopOnMissingKey(t *testing.T) {
	s := NewMemoryStore(10, 0)
	s.Delete("missing")
	require.Equal(t, 0, s.Len())
}

func TestFlushClearsEverything(t *testing.T) {
	s := NewMemoryStore(10, 0)
	s.Set("a", Entry{Value: []byte("1")})
	s.Set("b", Entry{Value: []byte("2")})

	s.Flush()
	require.Equal(t, 0, s.Len())
	_, ok := s.Get("a")
	require.False(t, ok)
}

func TestSweepLoopEvictsExpiredEntriesInBackground(t *testing.T) {
	s := NewMemoryStore(10, 5*time.Millisecond)
	defer s.Close()
	s.Set("a", Entry{Value: []byte("1"), TTL: time.Millisecond})

	require.Eventually(t, func() bool {
		return s.Len() == 0
	}, 200*time.Millisecond, 5*time.Millisecond)
}
