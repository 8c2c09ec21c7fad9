package twotier

import (
	"context"
	"fmt"
)

// ReplayWAL drains any entries the WAL is currently holding into L2,
// returning the count successfully replayed. Start already attempts one
// replay at launch; ReplayWAL exists for operator-triggered re-attempts
// (e.g. the twotier-bench replay-wal subcommand) after a chunk failure left
// entries behind.
func (c *Cache) ReplayWAL(ctx context.Context) (int, error) {
	if c.wal == nil {
		return 0, fmt.Errorf("twotier: service %q has no WAL configured", c.service)
	}
	return c.wal.ReplayInto(ctx, c.l2, 0)
}
