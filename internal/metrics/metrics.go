// Package metrics defines the counter/histogram hooks the rest of twotier
// calls at well-defined points. The default implementation is backed by
// prometheus/client_golang; when
// enable_metrics is false in config, callers wire in Nop instead so every
// call site stays a cheap no-op.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Hooks is the surface every other package calls into. It never returns an
// error: a metrics backend that can't record an observation should not be
// able to fail a cache operation.
type Hooks interface {
	L1Hit(service string)
	L1Miss(service string)
	L2Hit(service string)
	L2Miss(service string)
	L2Error(service, op string)
	WALAppend(service string)
	WALReplay(service string, count int)
	BatchFlush(service string, size int, d time.Duration)
	HealthTransition(service, from, to string)
	LockAcquire(service string, ok bool)
	LockRelease(service string, ok bool)
}

// Nop implements Hooks as a no-op; used when enable_metrics is false.
type Nop struct{}

func (Nop) L1Hit(string)                                  {}
func (Nop) L1Miss(string)                                 {}
func (Nop) L2Hit(string)                                  {}
func (Nop) L2Miss(string)                                 {}
func (Nop) L2Error(string, string)                        {}
func (Nop) WALAppend(string)                              {}
func (Nop) WALReplay(string, int)                         {}
func (Nop) BatchFlush(string, int, time.Duration)         {}
func (Nop) HealthTransition(string, string, string)       {}
func (Nop) LockAcquire(string, bool)                      {}
func (Nop) LockRelease(string, bool)                      {}

// Prometheus implements Hooks on top of a prometheus.Registerer. Construct
// one per process (it registers global-ish collector names) and share it
// across every Cache instance.
type Prometheus struct {
	cacheResult   *prometheus.CounterVec // tier={l1,l2}, outcome={hit,miss,error:<op>}
	walOps        *prometheus.CounterVec // op={append,replay}
	walReplayed   *prometheus.CounterVec
	batchFlush    *prometheus.HistogramVec
	batchSize     *prometheus.HistogramVec
	healthTrans   *prometheus.CounterVec
	lockResult    *prometheus.CounterVec
}

// NewPrometheus registers all collectors against reg and returns a ready
// Hooks implementation.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		cacheResult: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "twotier",
			Name:      "cache_result_total",
			Help:      "Cache operation outcomes by tier.",
		}, []string{"service", "tier", "outcome"}),
		walOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "twotier",
			Name:      "wal_ops_total",
			Help:      "WAL operations performed.",
		}, []string{"service", "op"}),
		walReplayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "twotier",
			Name:      "wal_replayed_entries_total",
			Help:      "Entries successfully replayed from the WAL.",
		}, []string{"service"}),
		batchFlush: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "twotier",
			Name:      "batch_flush_duration_seconds",
			Help:      "Duration of batch writer flushes.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service"}),
		batchSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "twotier",
			Name:      "batch_flush_size",
			Help:      "Number of entries per batch writer flush.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}, []string{"service"}),
		healthTrans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "twotier",
			Name:      "health_transitions_total",
			Help:      "Health state machine transitions.",
		}, []string{"service", "from", "to"}),
		lockResult: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "twotier",
			Name:      "lock_result_total",
			Help:      "Lock acquire/release outcomes.",
		}, []string{"service", "op", "outcome"}),
	}
	for _, c := range []prometheus.Collector{
		p.cacheResult, p.walOps, p.walReplayed, p.batchFlush, p.batchSize,
		p.healthTrans, p.lockResult,
	} {
		reg.MustRegister(c)
	}
	return p
}

func (p *Prometheus) L1Hit(service string)  { p.cacheResult.WithLabelValues(service, "l1", "hit").Inc() }
func (p *Prometheus) L1Miss(service string) { p.cacheResult.WithLabelValues(service, "l1", "miss").Inc() }
func (p *Prometheus) L2Hit(service string)  { p.cacheResult.WithLabelValues(service, "l2", "hit").Inc() }
func (p *Prometheus) L2Miss(service string) { p.cacheResult.WithLabelValues(service, "l2", "miss").Inc() }

func (p *Prometheus) L2Error(service, op string) {
	p.cacheResult.WithLabelValues(service, "l2", "error:"+op).Inc()
}

func (p *Prometheus) WALAppend(service string) {
	p.walOps.WithLabelValues(service, "append").Inc()
}

func (p *Prometheus) WALReplay(service string, count int) {
	p.walOps.WithLabelValues(service, "replay").Inc()
	p.walReplayed.WithLabelValues(service).Add(float64(count))
}

func (p *Prometheus) BatchFlush(service string, size int, d time.Duration) {
	p.batchFlush.WithLabelValues(service).Observe(d.Seconds())
	p.batchSize.WithLabelValues(service).Observe(float64(size))
}

func (p *Prometheus) HealthTransition(service, from, to string) {
	p.healthTrans.WithLabelValues(service, from, to).Inc()
}

func (p *Prometheus) LockAcquire(service string, ok bool) {
	p.lockResult.WithLabelValues(service, "acquire", outcome(ok)).Inc()
}

func (p *Prometheus) LockRelease(service string, ok bool) {
	p.lockResult.WithLabelValues(service, "release", outcome(ok)).Inc()
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
