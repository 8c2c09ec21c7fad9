// Package l2 defines the remote cache tier's contract: a Redis-compatible
// key/value store reached over RESP. The connection pooling and
// cluster/sentinel topology resolution are external collaborators; Backend
// is the narrow surface the rest of twotier programs against, and Redis is
// the go-redis-backed implementation of it.
package l2

import (
	"context"
	"time"
)

// VersionedValue is what get_with_version returns on a hit.
type VersionedValue struct {
	Value   []byte
	Version uint64
}

// Backend is the contract the Two-Tier Coordinator, Version Store, Lock
// Service, and Invalidation Bus all program against. A single Backend is
// shared (not locked) across all callers; the underlying client is
// expected to multiplex connections itself.
type Backend interface {
	// GetWithVersion returns the current (value, version) for key, or
	// ok=false if absent. Atomicity is backend-specific: the Redis
	// implementation uses a server-side script.
	GetWithVersion(ctx context.Context, key string) (VersionedValue, bool, error)

	// SetWithVersion writes value with ttl (0 = backend default/no
	// expiry) and atomically increments key's version counter, returning
	// the new version. The returned version is guaranteed strictly
	// greater than any version a reader could previously have observed
	// for this key on this backend.
	SetWithVersion(ctx context.Context, key string, value []byte, ttl time.Duration) (uint64, error)

	// Delete removes both the value and its version counter.
	Delete(ctx context.Context, key string) error

	// Lock sets key to token with NX semantics and the given ttl,
	// returning whether the lock was acquired.
	Lock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)

	// Unlock deletes key only if its current value equals token,
	// returning whether the deletion happened.
	Unlock(ctx context.Context, key, token string) (bool, error)

	// Publish sends payload on channel, for the invalidation bus.
	Publish(ctx context.Context, channel string, payload []byte) error

	// Subscribe opens a long-lived subscription to channel. The returned
	// Subscription must be closed by the caller.
	Subscribe(ctx context.Context, channel string) (Subscription, error)

	// Ping performs the minimal round-trip the Health Monitor probes
	// with.
	Ping(ctx context.Context) error

	// Pipeline batches the operations in ops into one round trip,
	// returning one error per operation in submission order. Used by the
	// Batch Writer and WAL replay for chunked fan-out.
	Pipeline(ctx context.Context, ops []PipelineOp) ([]error, error)

	// Close releases underlying connections.
	Close() error
}

// PipelineOp describes one operation to run inside a Pipeline call.
type PipelineOp struct {
	Key   string
	Value []byte        // ignored for OpDelete
	TTL   time.Duration // ignored for OpDelete
	Op    OpKind
}

// OpKind distinguishes pipelined operation types.
type OpKind int

const (
	OpSet OpKind = iota
	OpDelete
)

// Message is one item received from a Subscription.
type Message struct {
	Payload []byte
}

// Subscription is a live pub/sub subscription. Resubscribed receives a
// signal after a detected reconnect; it is a separate one-slot channel, so
// signals that arrive before the previous one is read merge into one, and
// their order relative to Messages is not fixed. The Invalidation Bus uses
// this signal to trigger a conservative local flush.
type Subscription interface {
	Messages() <-chan Message
	Resubscribed() <-chan struct{}
	Close() error
}
