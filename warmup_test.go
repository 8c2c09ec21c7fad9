package twotier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kirky-x/twotier/internal/l2/fake"
)

func TestWarmupLoadsOnlyMissingKeys(t *testing.T) {
	backend := fake.New()
	backend.Seed("svc:already-there", []byte("cached"), 1)
	c := newTestCache(t, backend)

	var loadedKeys []string
	loader := func(_ context.Context, missing []string) (map[string][]byte, error) {
		loadedKeys = append(loadedKeys, missing...)
		out := make(map[string][]byte, len(missing))
		for _, k := range missing {
			out[k] = []byte("loaded:" + k)
		}
		return out, nil
	}

	err := c.Warmup(context.Background(), []string{"already-there", "new-key"}, loader, time.Minute)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"new-key"}, loadedKeys)

	val, ok, err := c.Get(context.Background(), "new-key")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("loaded:new-key"), val)
}

func TestWarmupNoopWhenAllKeysPresent(t *testing.T) {
	backend := fake.New()
	backend.Seed("svc:k", []byte("cached"), 1)
	c := newTestCache(t, backend)

	called := false
	loader := func(_ context.Context, missing []string) (map[string][]byte, error) {
		called = true
		return nil, nil
	}

	err := c.Warmup(context.Background(), []string{"k"}, loader, time.Minute)
	require.NoError(t, err)
	require.False(t, called, "loader must not be invoked when nothing is missing")
}

func TestWarmupPropagatesLoaderError(t *testing.T) {
	backend := fake.New()
	c := newTestCache(t, backend)

	sentinel := errWarmup("boom")
	loader := func(_ context.Context, missing []string) (map[string][]byte, error) {
		return nil, sentinel
	}

	err := c.Warmup(context.Background(), []string{"k"}, loader, time.Minute)
	require.ErrorIs(t, err, sentinel)
}

type errWarmup string

func (e errWarmup) Error() string { return string(e) }
