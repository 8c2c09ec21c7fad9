package twotier

import (
	"context"
	"time"

	"github.com/kirky-x/twotier/internal/l1"
	"github.com/kirky-x/twotier/internal/tracing"
)

// GetL1Only bypasses L2 and the single-flight table entirely — the
// session-local read pattern: callers that manage their own staleness
// tolerance read L1 directly without ever consulting L2.
func (c *Cache) GetL1Only(userKey string) ([]byte, bool, error) {
	if err := c.validateKey(userKey); err != nil {
		return nil, false, err
	}
	e, ok := c.l1.Get(userKey)
	if !ok {
		c.metrics.L1Miss(c.service)
		return nil, false, nil
	}
	c.metrics.L1Hit(c.service)
	return e.Value, true, nil
}

// SetL1Only writes L1 only, bypassing L2, the Batch Writer, and the
// invalidation bus.
func (c *Cache) SetL1Only(userKey string, value []byte, ttl time.Duration) error {
	if err := c.validateKey(userKey); err != nil {
		return err
	}
	if err := c.validateValue(value); err != nil {
		return err
	}
	if err := c.validateTTL(ttl); err != nil {
		return err
	}
	ttl = c.resolveTTL(ttl)
	c.l1.Set(userKey, l1.Entry{
		Value:      value,
		Version:    c.versions.Next(userKey),
		InsertedAt: time.Now(),
		TTL:        ttl,
	})
	return nil
}

// GetL2Only bypasses L1 and the single-flight table — the shared-config
// pattern, for values every caller should always re-fetch.
func (c *Cache) GetL2Only(ctx context.Context, userKey string) ([]byte, bool, error) {
	if err := c.validateKey(userKey); err != nil {
		return nil, false, err
	}
	key := c.prefixedKey(userKey)

	ctx, end := tracing.StartSpan(ctx, "l2.get_with_version")
	vv, ok, err := c.vstore.GetWithVersion(ctx, key)
	end(err)
	if err != nil {
		c.mon.ReportFailure(classifyFailure(err))
		c.metrics.L2Error(c.service, "get_l2_only")
		return nil, false, err
	}
	c.mon.ReportSuccess()
	if !ok {
		c.metrics.L2Miss(c.service)
		return nil, false, nil
	}
	c.metrics.L2Hit(c.service)
	return vv.Value, true, nil
}

// SetL2Only writes L2 directly, bypassing L1 and the Batch Writer.
func (c *Cache) SetL2Only(ctx context.Context, userKey string, value []byte, ttl time.Duration) error {
	if err := c.validateKey(userKey); err != nil {
		return err
	}
	if err := c.validateValue(value); err != nil {
		return err
	}
	if err := c.validateTTL(ttl); err != nil {
		return err
	}
	ttl = c.resolveTTL(ttl)
	key := c.prefixedKey(userKey)

	ctx, end := tracing.StartSpan(ctx, "l2.set_with_version")
	version, err := c.vstore.SetWithVersion(ctx, key, value, ttl)
	end(err)
	if err != nil {
		c.mon.ReportFailure(classifyFailure(err))
		c.metrics.L2Error(c.service, "set_l2_only")
		return err
	}
	c.mon.ReportSuccess()
	c.versions.Observe(userKey, version)
	return nil
}
