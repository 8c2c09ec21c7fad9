package twotier

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirky-x/twotier/internal/l1"
	"github.com/kirky-x/twotier/internal/singleflight"
)

// Loader fetches the values for a batch of keys not currently present on
// L2, in bulk, returning a map of only the keys it could resolve.
type Loader func(ctx context.Context, missingKeys []string) (map[string][]byte, error)

// Warmup runs the bulk population path: for each key not already present
// on L2, loader is invoked and the result is written into both tiers.
// Concurrent Warmup calls whose missing keys form the same set are
// coalesced through the single-flight table; calls with different sets of
// missing keys each run their own load, even where the sets overlap.
func (c *Cache) Warmup(ctx context.Context, keys []string, loader Loader, ttl time.Duration) error {
	if err := c.validateTTL(ttl); err != nil {
		return err
	}
	ttl = c.resolveTTL(ttl)

	var mu missingCollector
	var g errgroup.Group
	for _, userKey := range keys {
		userKey := userKey
		g.Go(func() error {
			if err := c.validateKey(userKey); err != nil {
				return err
			}
			key := c.prefixedKey(userKey)
			_, ok, err := c.vstore.GetWithVersion(ctx, key)
			if err != nil {
				return err
			}
			if !ok {
				mu.add(userKey)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	missing := mu.keys()
	if len(missing) == 0 {
		return nil
	}

	_, err := c.sf.Do(warmupKey(c.service, missing), func() (singleflight.Result, error) {
		values, err := loader(ctx, missing)
		if err != nil {
			return singleflight.Result{}, err
		}
		for userKey, value := range values {
			key := c.prefixedKey(userKey)
			version, err := c.vstore.SetWithVersion(ctx, key, value, ttl)
			if err != nil {
				return singleflight.Result{}, err
			}
			c.versions.Observe(userKey, version)
			c.l1.Set(userKey, l1.Entry{Value: value, Version: version, InsertedAt: time.Now(), TTL: ttl})
		}
		return singleflight.Result{}, nil
	})
	return err
}

// warmupKey builds a stable dedup key for a batch of missing keys so two
// concurrent warmups over the identical key set coalesce; different key
// sets never collide in the single-flight table.
func warmupKey(service string, missing []string) string {
	sorted := append([]string(nil), missing...)
	sort.Strings(sorted)
	key := "warmup:" + service + ":"
	for _, k := range sorted {
		key += k + ","
	}
	return key
}

// missingCollector accumulates missing keys from concurrent goroutines
// behind a plain mutex.
type missingCollector struct {
	mu   sync.Mutex
	list []string
}

func (m *missingCollector) add(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.list = append(m.list, key)
}

func (m *missingCollector) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.list
}
