// Package fake provides an in-memory l2.Backend double for tests that
// would otherwise need a live Redis, including an injectable failure mode
// for exercising degraded-mode behavior deterministically.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/kirky-x/twotier/internal/cerror"
	"github.com/kirky-x/twotier/internal/l2"
)

type record struct {
	value   []byte
	version uint64
}

// Backend is a fully functional, in-memory l2.Backend. It supports an
// injectable failure mode (Failing) so tests can exercise the Health
// Monitor's Degraded transitions deterministically.
type Backend struct {
	mu   sync.Mutex
	data map[string]record
	locks map[string]string

	// Failing, when true, makes every operation return
	// cerror.ErrBackendUnavailable.
	Failing bool

	subs []*subscription

	// Calls counts invocations per method name, for single-flight and
	// other dedup assertions.
	Calls map[string]int
}

// New builds an empty Backend.
func New() *Backend {
	return &Backend{
		data:  make(map[string]record),
		locks: make(map[string]string),
		Calls: make(map[string]int),
	}
}

func (b *Backend) count(method string) {
	b.Calls[method]++
}

func (b *Backend) failIfNeeded() error {
	if b.Failing {
		return cerror.Wrap(cerror.ErrBackendUnavailable, "fake l2", errFailing)
	}
	return nil
}

var errFailing = fakeErr("fake backend forced failure")

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

func (b *Backend) GetWithVersion(_ context.Context, key string) (l2.VersionedValue, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count("GetWithVersion")
	if err := b.failIfNeeded(); err != nil {
		return l2.VersionedValue{}, false, err
	}
	r, ok := b.data[key]
	if !ok {
		return l2.VersionedValue{}, false, nil
	}
	return l2.VersionedValue{Value: append([]byte(nil), r.value...), Version: r.version}, true, nil
}

func (b *Backend) SetWithVersion(_ context.Context, key string, value []byte, _ time.Duration) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count("SetWithVersion")
	if err := b.failIfNeeded(); err != nil {
		return 0, err
	}
	r := b.data[key]
	r.version++
	r.value = append([]byte(nil), value...)
	b.data[key] = r
	return r.version, nil
}

func (b *Backend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count("Delete")
	if err := b.failIfNeeded(); err != nil {
		return err
	}
	delete(b.data, key)
	return nil
}

func (b *Backend) Lock(_ context.Context, key, token string, _ time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count("Lock")
	if err := b.failIfNeeded(); err != nil {
		return false, err
	}
	if _, held := b.locks[key]; held {
		return false, nil
	}
	b.locks[key] = token
	return true, nil
}

func (b *Backend) Unlock(_ context.Context, key, token string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count("Unlock")
	if err := b.failIfNeeded(); err != nil {
		return false, err
	}
	if held, ok := b.locks[key]; ok && held == token {
		delete(b.locks, key)
		return true, nil
	}
	return false, nil
}

func (b *Backend) Publish(_ context.Context, _ string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count("Publish")
	if err := b.failIfNeeded(); err != nil {
		return err
	}
	for _, s := range b.subs {
		s.deliver(payload)
	}
	return nil
}

func (b *Backend) Subscribe(_ context.Context, _ string) (l2.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count("Subscribe")
	if err := b.failIfNeeded(); err != nil {
		return nil, err
	}
	s := newSubscription()
	b.subs = append(b.subs, s)
	return s, nil
}

func (b *Backend) Ping(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count("Ping")
	return b.failIfNeeded()
}

func (b *Backend) Pipeline(_ context.Context, ops []l2.PipelineOp) ([]error, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count("Pipeline")
	if err := b.failIfNeeded(); err != nil {
		return nil, err
	}
	errs := make([]error, len(ops))
	for i, op := range ops {
		switch op.Op {
		case l2.OpSet:
			r := b.data[op.Key]
			r.version++
			r.value = append([]byte(nil), op.Value...)
			b.data[op.Key] = r
		case l2.OpDelete:
			delete(b.data, op.Key)
		}
	}
	return errs, nil
}

func (b *Backend) Close() error { return nil }

// Len returns the number of distinct keys currently stored, for test
// assertions.
func (b *Backend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Seed directly injects a (value, version) pair, bypassing SetWithVersion —
// used to simulate another process having written directly to L2.
func (b *Backend) Seed(key string, value []byte, version uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = record{value: append([]byte(nil), value...), version: version}
}

// SimulateResubscribe marks every currently-live subscription as having
// just resubscribed, letting tests exercise the Invalidation Bus's
// conservative-flush path without a real network disconnect.
func (b *Backend) SimulateResubscribe() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		s.SimulateResubscribe()
	}
}
