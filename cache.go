// Package twotier is a two-tier cache library: a fast in-process local
// tier (L1) layered over a shared remote tier (L2, a Redis-compatible
// store). Cache is the coordination engine — the read path with L1->L2
// fallback, single-flight deduplication, and promotion; the write path
// with dual-tier update, versioning, and cross-process invalidation; the
// batch writer; the WAL; and the health state machine gating L2 access.
package twotier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kirky-x/twotier/internal/batch"
	"github.com/kirky-x/twotier/internal/cerror"
	"github.com/kirky-x/twotier/internal/config"
	"github.com/kirky-x/twotier/internal/health"
	"github.com/kirky-x/twotier/internal/invalidation"
	"github.com/kirky-x/twotier/internal/l1"
	"github.com/kirky-x/twotier/internal/l2"
	"github.com/kirky-x/twotier/internal/lock"
	"github.com/kirky-x/twotier/internal/logging"
	"github.com/kirky-x/twotier/internal/metrics"
	"github.com/kirky-x/twotier/internal/redact"
	"github.com/kirky-x/twotier/internal/serialize"
	"github.com/kirky-x/twotier/internal/singleflight"
	"github.com/kirky-x/twotier/internal/versionstore"
	"github.com/kirky-x/twotier/internal/wal"
)

// Cache is one named service's two-tier cache instance. It exclusively owns
// its L1 store handle, Batch Writer, WAL, and Invalidation Bus
// subscription; the Health Monitor's backend
// and L2 connection are shared collaborators passed in at construction.
type Cache struct {
	service string
	cfg     config.ServiceConfig

	l1   l1.Store
	l2   l2.Backend
	wal  *wal.WAL
	mon  *health.Monitor
	sf   singleflight.Group
	lock *lock.Service

	vstore   *versionstore.Store
	versions *versionstore.Local
	writer   *batch.Writer
	bus      *invalidation.Bus

	serializer serialize.Serializer
	logger     logging.Logger
	metrics    metrics.Hooks

	maxKeyLength int
	maxValueSize int
	defaultTTL   time.Duration

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// Options bundles a Cache's out-of-process collaborators (everything spec
// §1 calls an external collaborator): the L1 store, the L2 backend, a WAL,
// a serializer, and observability hooks. Construct these with
// internal/config's helpers and pass them in here rather than having Cache
// build them itself, so tests can substitute fakes for any of them.
type Options struct {
	L1         l1.Store
	L2         l2.Backend
	WAL        *wal.WAL
	Serializer serialize.Serializer
	Logger     logging.Logger
	Metrics    metrics.Hooks
}

// New builds a Cache for service, wiring cfg's quotas and tier selection
// against the supplied collaborators. It does not start any background
// tasks; call Start for that.
func New(service string, cfg config.ServiceConfig, opts Options) (*Cache, error) {
	if opts.L2 == nil {
		return nil, fmt.Errorf("twotier: l2 backend required")
	}
	if opts.L1 == nil {
		opts.L1 = l1.NewMemoryStore(cfg.L1.MaxCapacity, cfg.L1.CleanupInterval.AsDuration())
	}
	if opts.Serializer == nil {
		opts.Serializer = serialize.Bytes{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}

	maxKeyLength := cfg.L2.MaxKeyLength
	if maxKeyLength <= 0 {
		maxKeyLength = 256
	}
	maxValueSize := cfg.L2.MaxValueSize
	if maxValueSize <= 0 {
		maxValueSize = 10 << 20
	}
	defaultTTL := cfg.TTL.AsDuration()
	if defaultTTL <= 0 {
		defaultTTL = cfg.L2.DefaultTTL.AsDuration()
	}

	c := &Cache{
		service:      service,
		cfg:          cfg,
		l1:           opts.L1,
		l2:           opts.L2,
		wal:          opts.WAL,
		serializer:   opts.Serializer,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		vstore:       versionstore.New(opts.L2),
		versions:     versionstore.NewLocal(),
		maxKeyLength: maxKeyLength,
		maxValueSize: maxValueSize,
		defaultTTL:   defaultTTL,
		lock:         lock.New(service, opts.L2, cfg.L2.CommandTimeout.AsDuration(), opts.Metrics),
	}

	var drainer health.Drainer
	if c.wal != nil {
		drainer = c.wal
	}
	c.mon = health.New(service, opts.L2, drainer, health.Config{
		ProbeTimeout: cfg.L2.CommandTimeout.AsDuration(),
	}, opts.Logger, opts.Metrics)

	if cfg.CacheType == config.CacheTypeTwoLevel {
		channel := cfg.InvalidationChannel(service)
		c.bus = invalidation.New(opts.L2, channel, opts.Logger)

		if cfg.TwoLevel.EnableBatchWrite && c.wal != nil {
			c.writer = batch.New(service, opts.L2, c.mon, c.wal, batch.Config{
				Size:     cfg.TwoLevel.BatchSize,
				Interval: cfg.TwoLevel.BatchInterval.AsDuration(),
			}, opts.Logger, opts.Metrics)
		}
	}

	return c, nil
}

// Start launches the Cache's background tasks (health probe, invalidation
// subscriber, batch writer) under ctx. Cancelling ctx or calling Close stops
// them. Start also attempts one WAL replay immediately, in case writes were
// durably logged by a previous process instance that never got to retire
// them.
func (c *Cache) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	if c.wal != nil {
		if _, err := c.wal.ReplayInto(runCtx, c.l2, 0); err != nil {
			c.logger.Warn("twotier: startup wal replay incomplete", "service", c.service, "error", err.Error())
		}
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.mon.Run(runCtx)
	}()

	if c.bus != nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if err := c.bus.Listen(runCtx, c.l1); err != nil && runCtx.Err() == nil {
				c.logger.Error("twotier: invalidation bus stopped", err, "service", c.service)
			}
		}()
	}

	if c.writer != nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.writer.Run(runCtx)
		}()
	}

	return nil
}

// Close stops all background tasks, waits for them to exit, and releases
// the L2 connection. L1 state and the WAL file are left intact.
func (c *Cache) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	if closer, ok := c.l1.(interface{ Close() }); ok {
		closer.Close()
	}
	return c.l2.Close()
}

func (c *Cache) prefixedKey(userKey string) string {
	return config.PrefixKey(c.service, userKey)
}

func (c *Cache) validateKey(key string) error {
	if len(key) == 0 || len(key) > c.maxKeyLength {
		return cerror.Wrap(cerror.ErrKeyTooLong, "twotier: key length out of bounds", fmt.Errorf("key=%q len=%d max=%d", redact.CacheKey(key), len(key), c.maxKeyLength))
	}
	return nil
}

func (c *Cache) validateValue(value []byte) error {
	if len(value) > c.maxValueSize {
		return cerror.Wrap(cerror.ErrValueTooLarge, "twotier: value too large", fmt.Errorf("len=%d max=%d", len(value), c.maxValueSize))
	}
	return nil
}

func (c *Cache) resolveTTL(ttl time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	return c.defaultTTL
}

// validateTTL rejects a negative TTL outright; zero is left alone, since it
// means "use the service default" to resolveTTL.
func (c *Cache) validateTTL(ttl time.Duration) error {
	if ttl < 0 {
		return cerror.Wrap(cerror.ErrTTLInvalid, "twotier: ttl must be non-negative", fmt.Errorf("ttl=%s", ttl))
	}
	return nil
}
