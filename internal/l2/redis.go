package l2

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kirky-x/twotier/internal/cerror"
)

// setWithVersionScript atomically writes the value and bumps the version
// counter. KEYS[1] and KEYS[2] are hash-tagged together (braced on the same
// substring) so Redis Cluster colocates them on one slot — the script only
// ever executes against keys guaranteed to live on the same shard.
var setWithVersionScript = redis.NewScript(`
local ttl_ms = tonumber(ARGV[2])
if ttl_ms > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ttl_ms)
else
	redis.call('SET', KEYS[1], ARGV[1])
end
local v = redis.call('INCR', KEYS[2])
if ttl_ms > 0 then
	redis.call('PEXPIRE', KEYS[2], ttl_ms)
end
return v
`)

var getWithVersionScript = redis.NewScript(`
local val = redis.call('GET', KEYS[1])
if val == false then
	return {0, 0}
end
local ver = redis.call('GET', KEYS[2])
if ver == false then
	ver = 0
end
return {val, tonumber(ver)}
`)

var unlockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
else
	return 0
end
`)

// Redis is the go-redis-backed Backend. It works against standalone,
// sentinel, or cluster topologies transparently via redis.UniversalClient.
type Redis struct {
	client redis.UniversalClient
}

// NewRedis wraps an already-constructed UniversalClient. Topology
// resolution (standalone/sentinel/cluster, TLS, auth) is the caller's
// concern — see internal/config for how twotier builds opts from
// ServiceConfig.L2.
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

// taggedKeys returns the braced value key and its derived version key,
// sharing one hash tag so cluster mode pins both to the same slot.
func taggedKeys(key string) (valueKey, versionKey string) {
	tagged := "{" + key + "}"
	return tagged, tagged + ":version"
}

func (r *Redis) GetWithVersion(ctx context.Context, key string) (VersionedValue, bool, error) {
	valueKey, versionKey := taggedKeys(key)
	res, err := getWithVersionScript.Run(ctx, r.client, []string{valueKey, versionKey}).Result()
	if err != nil {
		return VersionedValue{}, false, classify(err)
	}
	arr, ok := res.([]any)
	if !ok || len(arr) != 2 {
		return VersionedValue{}, false, fmt.Errorf("l2: unexpected get_with_version reply %T", res)
	}
	// The script returns {0, 0} (two Lua integers) on a miss and
	// {string, integer} on a hit, so a hit is recognized by arr[0] being a
	// string at all — this also correctly distinguishes a miss from a
	// genuine empty-string value.
	valStr, isHit := arr[0].(string)
	if !isHit {
		return VersionedValue{}, false, nil
	}
	ver, _ := toInt64(arr[1])
	return VersionedValue{Value: []byte(valStr), Version: uint64(ver)}, true, nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	default:
		return 0, false
	}
}

func (r *Redis) SetWithVersion(ctx context.Context, key string, value []byte, ttl time.Duration) (uint64, error) {
	valueKey, versionKey := taggedKeys(key)
	res, err := setWithVersionScript.Run(ctx, r.client, []string{valueKey, versionKey}, string(value), ttl.Milliseconds()).Result()
	if err != nil {
		return 0, classify(err)
	}
	v, ok := toInt64(res)
	if !ok {
		return 0, fmt.Errorf("l2: unexpected set_with_version reply %T", res)
	}
	return uint64(v), nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	valueKey, versionKey := taggedKeys(key)
	if err := r.client.Del(ctx, valueKey, versionKey).Err(); err != nil {
		return classify(err)
	}
	return nil
}

func (r *Redis) Lock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return false, classify(err)
	}
	return ok, nil
}

func (r *Redis) Unlock(ctx context.Context, key, token string) (bool, error) {
	res, err := unlockScript.Run(ctx, r.client, []string{key}, token).Result()
	if err != nil {
		return false, classify(err)
	}
	n, _ := toInt64(res)
	return n == 1, nil
}

func (r *Redis) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		return classify(err)
	}
	return nil
}

func (r *Redis) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	ps := r.client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, classify(err)
	}
	return newRedisSubscription(ps), nil
}

func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return classify(err)
	}
	return nil
}

func (r *Redis) Pipeline(ctx context.Context, ops []PipelineOp) ([]error, error) {
	pipe := r.client.Pipeline()
	cmds := make([]redis.Cmder, len(ops))
	for i, op := range ops {
		switch op.Op {
		case OpSet:
			valueKey, versionKey := taggedKeys(op.Key)
			cmds[i] = setWithVersionScript.Run(ctx, pipe, []string{valueKey, versionKey}, string(op.Value), op.TTL.Milliseconds())
		case OpDelete:
			valueKey, versionKey := taggedKeys(op.Key)
			cmds[i] = pipe.Del(ctx, valueKey, versionKey)
		}
	}
	_, err := pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, classify(err)
	}
	errs := make([]error, len(cmds))
	for i, c := range cmds {
		if e := c.Err(); e != nil && !errors.Is(e, redis.Nil) {
			errs[i] = classify(e)
		}
	}
	return errs, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// classify normalizes go-redis errors into the cerror taxonomy so callers
// can use errors.Is against cerror sentinels without knowing about
// go-redis's own error types.
func classify(err error) error {
	if err == nil || errors.Is(err, redis.Nil) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return cerror.Wrap(cerror.ErrBackendTimeout, "l2", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return cerror.Wrap(cerror.ErrBackendTimeout, "l2", err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return cerror.Wrap(cerror.ErrBackendUnavailable, "l2", err)
	}
	return cerror.Wrap(cerror.ErrBackendUnavailable, "l2", err)
}
