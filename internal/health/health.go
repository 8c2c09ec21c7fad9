// Package health implements the three-state machine gating which
// operations attempt L2: Healthy, Degraded, Recovering. It is the
// one piece of shared, mutable, cross-goroutine state in twotier — a
// single probe goroutine writes it on a timer, and hot paths contribute
// observations via ReportFailure/ReportSuccess without waiting for the
// next tick.
package health

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/kirky-x/twotier/internal/l2"
	"github.com/kirky-x/twotier/internal/logging"
	"github.com/kirky-x/twotier/internal/metrics"
	"github.com/kirky-x/twotier/internal/wal"
)

// State is one of the three health states.
type State int

const (
	Healthy State = iota
	Degraded
	Recovering
)

func (s State) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case Recovering:
		return "recovering"
	default:
		return "unknown"
	}
}

// FailureKind distinguishes the hard failures that can flip Healthy straight
// to Degraded without waiting for K consecutive probe failures.
type FailureKind int

const (
	// FailureTransient is a generic observed failure, counted toward K.
	FailureTransient FailureKind = iota
	// FailureHard is a connection-refused or a timeout on a non-idempotent
	// operation — it flips Healthy to Degraded immediately.
	FailureHard
)

// Drainer reports whether the WAL has been fully drained, a precondition
// for Recovering -> Healthy. *wal.WAL satisfies it directly; a nil Drainer
// (no WAL configured) counts as drained.
type Drainer interface {
	Empty() bool
}

var _ Drainer = (*wal.WAL)(nil)

// Monitor runs the health state machine for one service.
type Monitor struct {
	backend l2.Backend
	wal     Drainer
	logger  logging.Logger
	metrics metrics.Hooks
	service string

	probeInterval time.Duration
	probeTimeout  time.Duration
	k             int // consecutive failures Healthy -> Degraded
	m             int // consecutive successes Recovering -> Healthy

	state           atomic.Int32
	consecFail      atomic.Int32
	consecSucc      atomic.Int32
}

// Config bundles Monitor's tunables.
type Config struct {
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration
	K             int // default 3
	M             int // default 2
}

// New builds a Monitor in the Healthy state.
func New(service string, backend l2.Backend, w Drainer, cfg Config, logger logging.Logger, m metrics.Hooks) *Monitor {
	if cfg.K <= 0 {
		cfg.K = 3
	}
	if cfg.M <= 0 {
		cfg.M = 2
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = 5 * time.Second
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	if m == nil {
		m = metrics.Nop{}
	}
	mon := &Monitor{
		backend:       backend,
		wal:           w,
		logger:        logger,
		metrics:       m,
		service:       service,
		probeInterval: cfg.ProbeInterval,
		probeTimeout:  cfg.ProbeTimeout,
		k:             cfg.K,
		m:             cfg.M,
	}
	mon.state.Store(int32(Healthy))
	return mon
}

// State returns the current state, a lock-free read safe from any
// goroutine.
func (mon *Monitor) State() State {
	return State(mon.state.Load())
}

// Run starts the probe loop; it blocks until ctx is cancelled.
func (mon *Monitor) Run(ctx context.Context) {
	t := time.NewTicker(mon.probeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			mon.probe(ctx)
		}
	}
}

func (mon *Monitor) probe(ctx context.Context) {
	timeout := mon.probeTimeout
	if timeout <= 0 {
		timeout = mon.probeInterval
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := mon.backend.Ping(pctx)
	if err != nil {
		mon.ReportFailure(FailureTransient)
		return
	}
	mon.ReportSuccess()
}

// ReportFailure lets hot paths contribute an observation without waiting
// for the next probe tick.
func (mon *Monitor) ReportFailure(kind FailureKind) {
	mon.consecSucc.Store(0)
	from := mon.State()

	if kind == FailureHard {
		mon.transition(from, Degraded)
		return
	}

	switch from {
	case Healthy:
		n := mon.consecFail.Add(1)
		if int(n) >= mon.k {
			mon.transition(from, Degraded)
		}
	case Recovering:
		mon.transition(from, Degraded)
	case Degraded:
		// already degraded, nothing to do
	}
}

// ReportSuccess lets hot paths (and the probe loop) contribute a success
// observation.
func (mon *Monitor) ReportSuccess() {
	mon.consecFail.Store(0)
	from := mon.State()

	switch from {
	case Degraded:
		mon.transition(from, Recovering)
		mon.consecSucc.Store(0)
	case Recovering:
		n := mon.consecSucc.Add(1)
		if int(n) >= mon.m && (mon.wal == nil || mon.wal.Empty()) {
			mon.transition(from, Healthy)
			mon.consecSucc.Store(0)
		}
	case Healthy:
		// already healthy, nothing to do
	}
}

func (mon *Monitor) transition(from, to State) {
	if from == to {
		return
	}
	if !mon.state.CompareAndSwap(int32(from), int32(to)) {
		return // lost the race to another observer; consistent either way
	}
	mon.consecFail.Store(0)
	mon.metrics.HealthTransition(mon.service, from.String(), to.String())
	mon.logger.Info("health state transition", "service", mon.service, "from", from.String(), "to", to.String())
}
