package twotier

import (
	"context"
	"time"

	"github.com/kirky-x/twotier/internal/serialize"
)

// Memoize re-architects the source project's attribute-style `cached`
// function decorator as an explicit wrapper: given
// a key-builder closure and a loader closure, it checks the cache first and
// falls through to load+Set on a miss. Go has no function decorators, so
// callers wrap the call site directly instead of annotating a declaration.
//
//	result, err := twotier.Memoize(ctx, cache, serializer, keyFor(userID), ttl,
//	    func(ctx context.Context) (*Profile, error) { return db.LoadProfile(ctx, userID) })
func Memoize[T any](ctx context.Context, c *Cache, s serialize.Serializer, key string, ttl time.Duration, load func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if raw, ok, err := c.Get(ctx, key); err != nil {
		return zero, err
	} else if ok {
		var v T
		if err := s.Deserialize(raw, &v); err != nil {
			return zero, err
		}
		return v, nil
	}

	v, err := load(ctx)
	if err != nil {
		return zero, err
	}

	raw, err := s.Serialize(v)
	if err != nil {
		return zero, err
	}
	if err := c.Set(ctx, key, raw, ttl); err != nil {
		return zero, err
	}
	return v, nil
}
