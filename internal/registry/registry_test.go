package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	closed bool
	err    error
}

func (h *fakeHandle) Close() error {
	h.closed = true
	return h.err
}

func TestInitThenGet(t *testing.T) {
	r := New[*fakeHandle]()
	h := &fakeHandle{}
	require.NoError(t, r.Init("sessions", h))

	got, ok := r.Get("sessions")
	require.True(t, ok)
	require.Same(t, h, got)
}

func TestGetMissingReturnsFalse(t *testing.T) {
	r := New[*fakeHandle]()
	_, ok := r.Get("missing")
	require.False(t, ok)
}

func TestDoubleInitIsRejected(t *testing.T) {
	r := New[*fakeHandle]()
	require.NoError(t, r.Init("sessions", &fakeHandle{}))

	err := r.Init("sessions", &fakeHandle{})
	require.Error(t, err)
}

func TestResetClosesAndDeregisters(t *testing.T) {
	r := New[*fakeHandle]()
	h := &fakeHandle{}
	require.NoError(t, r.Init("sessions", h))

	require.NoError(t, r.Reset("sessions"))
	require.True(t, h.closed)

	_, ok := r.Get("sessions")
	require.False(t, ok)
}

func TestResetMissingIsNoop(t *testing.T) {
	r := New[*fakeHandle]()
	require.NoError(t, r.Reset("missing"))
}

func TestResetPropagatesCloseError(t *testing.T) {
	r := New[*fakeHandle]()
	boom := errors.New("boom")
	require.NoError(t, r.Init("sessions", &fakeHandle{err: boom}))

	err := r.Reset("sessions")
	require.ErrorIs(t, err, boom)
}

func TestResetAllClosesEveryInstance(t *testing.T) {
	r := New[*fakeHandle]()
	a, b := &fakeHandle{}, &fakeHandle{}
	require.NoError(t, r.Init("a", a))
	require.NoError(t, r.Init("b", b))

	require.NoError(t, r.ResetAll())
	require.True(t, a.closed)
	require.True(t, b.closed)

	_, ok := r.Get("a")
	require.False(t, ok)
}

func TestAfterResetInitCanReuseName(t *testing.T) {
	r := New[*fakeHandle]()
	require.NoError(t, r.Init("sessions", &fakeHandle{}))
	require.NoError(t, r.Reset("sessions"))

	h2 := &fakeHandle{}
	require.NoError(t, r.Init("sessions", h2))
	got, ok := r.Get("sessions")
	require.True(t, ok)
	require.Same(t, h2, got)
}
