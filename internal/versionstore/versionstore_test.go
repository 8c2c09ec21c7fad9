package versionstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextIsMonotonicallyIncreasing(t *testing.T) {
	l := NewLocal()
	require.Equal(t, uint64(1), l.Next("k"))
	require.Equal(t, uint64(2), l.Next("k"))
	require.Equal(t, uint64(3), l.Next("k"))
}

func TestNextIsIndependentPerKey(t *testing.T) {
	l := NewLocal()
	require.Equal(t, uint64(1), l.Next("a"))
	require.Equal(t, uint64(1), l.Next("b"))
}

func TestObserveRaisesFloorForSubsequentNext(t *testing.T) {
	l := NewLocal()
	l.Next("k")
	l.Observe("k", 10)
	require.Equal(t, uint64(11), l.Next("k"))
}

func TestObserveNeverLowersTheCounter(t *testing.T) {
	l := NewLocal()
	l.Next("k")
	l.Next("k")
	l.Next("k")
	l.Observe("k", 1)
	require.Equal(t, uint64(4), l.Next("k"), "observing a lower version must not roll the counter back")
}

func TestForgetDropsTheCounter(t *testing.T) {
	l := NewLocal()
	l.Next("k")
	l.Next("k")
	l.Forget("k")
	require.Equal(t, uint64(1), l.Next("k"), "after Forget, Next must restart from 1 as if the key were new")
}
