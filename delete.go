package twotier

import (
	"context"
	"time"

	"github.com/kirky-x/twotier/internal/health"
	"github.com/kirky-x/twotier/internal/redact"
	"github.com/kirky-x/twotier/internal/tracing"
	"github.com/kirky-x/twotier/internal/wal"
)

// Delete evicts L1, publishes an invalidation, then removes the key from
// L2 directly. If that L2 call fails while Health is not Healthy and a WAL
// is configured, a Delete WAL entry is appended instead; otherwise the L2
// error is returned.
func (c *Cache) Delete(ctx context.Context, userKey string) error {
	if err := c.validateKey(userKey); err != nil {
		return err
	}

	c.l1.Delete(userKey)
	c.versions.Forget(userKey)

	if c.bus != nil {
		if err := c.bus.Publish(ctx, userKey); err != nil {
			c.logger.Warn("twotier: invalidation publish failed", "service", c.service, "key", redact.CacheKey(userKey), "error", err.Error())
		}
	}

	key := c.prefixedKey(userKey)
	state := c.mon.State()

	ctx, end := tracing.StartSpan(ctx, "l2.delete")
	err := c.vstore.Delete(ctx, key)
	end(err)

	if err == nil {
		c.mon.ReportSuccess()
		return nil
	}

	c.mon.ReportFailure(classifyFailure(err))
	c.metrics.L2Error(c.service, "delete")

	if state != health.Healthy && c.wal != nil {
		return c.wal.Append(wal.Record{Timestamp: time.Now(), Op: wal.OpDelete, Key: key})
	}

	return err
}
