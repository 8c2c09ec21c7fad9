// Package batch implements the Batch Writer: a bounded queue of pending
// writes that coalesces by key and flushes on whichever of three triggers
// comes first: reaching batch_size, batch_interval_ms elapsing, or an
// explicit Flush call. Modeled on a microbatch coalescing pattern — a
// buffered channel plus a single timer goroutine — adapted here to fan
// flushed chunks out concurrently with golang.org/x/sync/errgroup.
package batch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirky-x/twotier/internal/health"
	"github.com/kirky-x/twotier/internal/l2"
	"github.com/kirky-x/twotier/internal/logging"
	"github.com/kirky-x/twotier/internal/metrics"
	"github.com/kirky-x/twotier/internal/redact"
	"github.com/kirky-x/twotier/internal/wal"
)

// Entry is one pending write or delete.
type Entry struct {
	Op    l2.OpKind
	Key   string
	Value []byte
	TTL   time.Duration
}

// Config bundles Writer's tunables.
type Config struct {
	Size       int           // flush once this many distinct keys are queued
	Interval   time.Duration // flush at most this long after the previous flush
	Fanout     int           // concurrent Pipeline calls per flush, default 4
	QueueDepth int           // bounded channel capacity, default 4*Size
}

// Writer coalesces Enqueue calls and flushes them to an l2.Backend, handing
// failed-while-Degraded entries to a WAL instead of dropping them.
type Writer struct {
	backend l2.Backend
	health  *health.Monitor
	wal     *wal.WAL
	logger  logging.Logger
	metrics metrics.Hooks
	service string

	size     int
	interval time.Duration
	fanout   int

	entries  chan Entry
	done     chan struct{}
	flushReq chan chan struct{}
	wg       sync.WaitGroup
}

// New builds a Writer. Call Run in its own goroutine to start flushing, and
// Shutdown to drain and stop.
func New(service string, backend l2.Backend, mon *health.Monitor, w *wal.WAL, cfg Config, logger logging.Logger, m metrics.Hooks) *Writer {
	if cfg.Size <= 0 {
		cfg.Size = 100
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 50 * time.Millisecond
	}
	if cfg.Fanout <= 0 {
		cfg.Fanout = 4
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = cfg.Size * 4
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &Writer{
		backend:  backend,
		health:   mon,
		wal:      w,
		logger:   logger,
		metrics:  m,
		service:  service,
		size:     cfg.Size,
		interval: cfg.Interval,
		fanout:   cfg.Fanout,
		entries:  make(chan Entry, cfg.QueueDepth),
		done:     make(chan struct{}),
		flushReq: make(chan chan struct{}),
	}
}

// Enqueue queues e for the next flush. It blocks only if the internal queue
// is full, which signals the flush loop is falling behind.
func (w *Writer) Enqueue(e Entry) {
	w.entries <- e
}

// Flush forces an immediate drain of whatever is currently queued, the
// third trigger alongside size and interval. It blocks until Run has
// processed the request, or until ctx is cancelled first.
func (w *Writer) Flush(ctx context.Context) error {
	ack := make(chan struct{})
	select {
	case w.flushReq <- ack:
	case <-ctx.Done():
		return ctx.Err()
	case <-w.done:
		return nil
	}
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the coalesce/flush loop until ctx is cancelled or Shutdown is
// called. It is intended to run in its own goroutine.
func (w *Writer) Run(ctx context.Context) {
	pending := make(map[string]Entry)
	order := make([]string, 0, w.size)

	timer := time.NewTimer(w.interval)
	defer timer.Stop()
	timerArmed := true

	flush := func() {
		if len(order) == 0 {
			return
		}
		batch := make([]Entry, len(order))
		for i, k := range order {
			batch[i] = pending[k]
		}
		pending = make(map[string]Entry)
		order = order[:0]
		w.flush(ctx, batch)
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-w.done:
			for {
				select {
				case e := <-w.entries:
					if _, seen := pending[e.Key]; !seen {
						order = append(order, e.Key)
					}
					pending[e.Key] = e
				default:
					flush()
					return
				}
			}
		case ack := <-w.flushReq:
			if timerArmed && !timer.Stop() {
				<-timer.C
			}
			flush()
			timer.Reset(w.interval)
			timerArmed = true
			close(ack)
		case e, ok := <-w.entries:
			if !ok {
				flush()
				return
			}
			if _, seen := pending[e.Key]; !seen {
				order = append(order, e.Key)
			}
			pending[e.Key] = e
			if len(order) >= w.size {
				if timerArmed && !timer.Stop() {
					<-timer.C
				}
				flush()
				timer.Reset(w.interval)
				timerArmed = true
				continue
			}
			if !timerArmed {
				timer.Reset(w.interval)
				timerArmed = true
			}
		case <-timer.C:
			timerArmed = false
			flush()
			timer.Reset(w.interval)
			timerArmed = true
		}
	}
}

// flush fans entries out across at most w.fanout concurrent Pipeline calls. Any
// entry that fails while health is Degraded is hedged into the WAL instead
// of being dropped; a failure while Healthy/Recovering is just counted,
// since a transient error there is expected to be retried by the caller
// through the normal write path, not silently re-attempted here.
func (w *Writer) flush(ctx context.Context, entries []Entry) {
	start := time.Now()
	defer func() {
		w.metrics.BatchFlush(w.service, len(entries), time.Since(start))
	}()

	chunks := chunk(entries, max(1, len(entries)/w.fanout))

	var g errgroup.Group
	g.SetLimit(w.fanout)
	for _, c := range chunks {
		c := c
		g.Go(func() error {
			return w.flushChunk(ctx, c)
		})
	}
	_ = g.Wait()
}

func (w *Writer) flushChunk(ctx context.Context, entries []Entry) error {
	ops := make([]l2.PipelineOp, len(entries))
	for i, e := range entries {
		ops[i] = l2.PipelineOp{Key: e.Key, Value: e.Value, TTL: e.TTL, Op: e.Op}
	}
	errs, err := w.backend.Pipeline(ctx, ops)
	if err != nil {
		w.hedgeAll(entries)
		return err
	}
	for i, opErr := range errs {
		if opErr != nil {
			w.hedgeOne(entries[i])
		}
	}
	return nil
}

func (w *Writer) hedgeAll(entries []Entry) {
	for _, e := range entries {
		w.hedgeOne(e)
	}
}

// hedgeOne hands a failed entry to the WAL when the backend is known to be
// degraded; otherwise it just records an error metric, since retrying a
// transient failure is the caller's responsibility on the next write.
func (w *Writer) hedgeOne(e Entry) {
	degraded := w.health != nil && w.health.State() == health.Degraded
	if !degraded || w.wal == nil {
		w.metrics.L2Error(w.service, "batch_flush")
		return
	}
	rec := wal.Record{Timestamp: time.Now(), Key: e.Key, Value: e.Value, TTL: e.TTL}
	if e.Op == l2.OpDelete {
		rec.Op = wal.OpDelete
	} else {
		rec.Op = wal.OpSet
	}
	if err := w.wal.Append(rec); err != nil {
		w.logger.Error("batch: failed entry could not be WAL-hedged", err, "service", w.service, "key", redact.CacheKey(e.Key))
	}
}

// Shutdown makes Run flush whatever remains queued and return. It returns
// without waiting for that flush, and ctx is not used: the final flush has
// no deadline of its own, and entries that fail in it are handled like any
// other flush failure (WAL-hedged only while Degraded).
func (w *Writer) Shutdown(ctx context.Context) {
	close(w.done)
}

func chunk(entries []Entry, size int) [][]Entry {
	if size <= 0 {
		size = len(entries)
	}
	var out [][]Entry
	for i := 0; i < len(entries); i += size {
		end := i + size
		if end > len(entries) {
			end = len(entries)
		}
		out = append(out, entries[i:end])
	}
	return out
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
