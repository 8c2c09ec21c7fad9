package twotier

import (
	"context"
	"time"

	"github.com/kirky-x/twotier/internal/batch"
	"github.com/kirky-x/twotier/internal/health"
	"github.com/kirky-x/twotier/internal/l1"
	"github.com/kirky-x/twotier/internal/l2"
	"github.com/kirky-x/twotier/internal/redact"
	"github.com/kirky-x/twotier/internal/tracing"
	"github.com/kirky-x/twotier/internal/wal"
)

// Set runs the write path: L1 is written first with a fresh
// provisional version, an invalidation is published so peers drop their L1
// copy, and then L2 is updated — either through the Batch Writer, directly,
// or (when the direct write fails while not Healthy) via the WAL. Set never
// returns success unless at
// least one of those three L2-facing actions happened.
func (c *Cache) Set(ctx context.Context, userKey string, value []byte, ttl time.Duration) error {
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

	provisional := c.versions.Next(userKey)
	c.l1.Set(userKey, l1.Entry{Value: value, Version: provisional, InsertedAt: time.Now(), TTL: ttl})

	if c.bus != nil {
		if err := c.bus.Publish(ctx, userKey); err != nil {
			c.logger.Warn("twotier: invalidation publish failed", "service", c.service, "key", redact.CacheKey(userKey), "error", err.Error())
		}
	}

	key := c.prefixedKey(userKey)

	if c.writer != nil {
		c.writer.Enqueue(batch.Entry{Op: l2.OpSet, Key: key, Value: value, TTL: ttl})
		return nil
	}

	return c.writeThrough(ctx, userKey, key, value, ttl)
}

// writeThrough performs the direct (non-batched) L2 write. If it fails
// while Health is not Healthy and a WAL is configured, the write is
// appended to the WAL instead and succeeds; otherwise the L2 error is
// returned.
func (c *Cache) writeThrough(ctx context.Context, userKey, key string, value []byte, ttl time.Duration) error {
	state := c.mon.State()

	ctx, end := tracing.StartSpan(ctx, "l2.set_with_version")
	version, err := c.vstore.SetWithVersion(ctx, key, value, ttl)
	end(err)

	if err == nil {
		c.mon.ReportSuccess()
		c.versions.Observe(userKey, version)
		c.l1.SetIfNewer(userKey, l1.Entry{Value: value, Version: version, InsertedAt: time.Now(), TTL: ttl})
		return nil
	}

	c.mon.ReportFailure(classifyFailure(err))
	c.metrics.L2Error(c.service, "set")

	if state != health.Healthy && c.wal != nil {
		walErr := c.wal.Append(wal.Record{Timestamp: time.Now(), Op: wal.OpSet, Key: key, Value: value, TTL: ttl})
		if walErr != nil {
			return walErr
		}
		return nil
	}

	return err
}
