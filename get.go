package twotier

import (
	"context"
	"errors"
	"time"

	"github.com/kirky-x/twotier/internal/cerror"
	"github.com/kirky-x/twotier/internal/health"
	"github.com/kirky-x/twotier/internal/l1"
	"github.com/kirky-x/twotier/internal/singleflight"
	"github.com/kirky-x/twotier/internal/tracing"
)

// Get runs the read path: an L1 hit returns immediately;
// otherwise, unless L2 is Degraded, a single-flight-deduplicated L2 load
// runs, and a hit is scheduled for promotion into L1. Returns ok=false on a
// clean miss (absent on both tiers), and a non-nil error only for an actual
// failure (validation, or an L2 error while Healthy/Recovering, propagated
// as the backend returned it).
func (c *Cache) Get(ctx context.Context, userKey string) ([]byte, bool, error) {
	if err := c.validateKey(userKey); err != nil {
		return nil, false, err
	}

	if e, ok := c.l1.Get(userKey); ok {
		c.metrics.L1Hit(c.service)
		return e.Value, true, nil
	}
	c.metrics.L1Miss(c.service)

	if c.mon.State() == health.Degraded {
		return nil, false, nil
	}

	key := c.prefixedKey(userKey)
	res, err := c.sf.Do(key, func() (singleflight.Result, error) {
		ctx, end := tracing.StartSpan(context.WithoutCancel(ctx), "l2.get_with_version")
		vv, hit, err := c.vstore.GetWithVersion(ctx, key)
		end(err)
		if err != nil {
			c.mon.ReportFailure(classifyFailure(err))
			return singleflight.Result{}, err
		}
		c.mon.ReportSuccess()
		return singleflight.FromVersioned(vv, hit), nil
	})
	if err != nil {
		c.metrics.L2Error(c.service, "get")
		return nil, false, err
	}
	if !res.Hit {
		c.metrics.L2Miss(c.service)
		return nil, false, nil
	}
	c.metrics.L2Hit(c.service)

	c.promote(userKey, res)
	return res.Value, true, nil
}

// promote inserts an L2 hit into L1, but only if no L1 entry with a version
// at least as new has appeared since the load started, enforced by
// l1.Store.SetIfNewer.
func (c *Cache) promote(userKey string, res singleflight.Result) {
	c.l1.SetIfNewer(userKey, l1.Entry{
		Value:      res.Value,
		Version:    res.Version,
		InsertedAt: time.Now(),
		TTL:        c.defaultTTL,
	})
	c.versions.Observe(userKey, res.Version)
}

func classifyFailure(err error) health.FailureKind {
	if cerrIsHard(err) {
		return health.FailureHard
	}
	return health.FailureTransient
}

func cerrIsHard(err error) bool {
	return errors.Is(err, cerror.ErrBackendUnavailable)
}
