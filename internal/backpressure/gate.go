// README: Admission gate. Bounds in-flight searches; a bounded queue absorbs bursts.
package backpressure

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"scout/internal/metrics"
)

// ErrCapacityExceeded is returned when a task cannot be admitted: the queue
// was full, or the wait for a slot ran past the queue timeout or the
// caller's deadline.
var ErrCapacityExceeded = errors.New("backpressure: capacity exceeded")

const defaultQueueTimeout = 2 * time.Second

// Options size the gate.
type Options struct {
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	QueueDepth    int           `mapstructure:"queue_depth"`
	QueueTimeout  time.Duration `mapstructure:"queue_timeout"`
}

// Stats is a snapshot for tuning.
type Stats struct {
	InFlight    int64   `json:"inFlight"`
	Queued      int64   `json:"queued"`
	Capacity    int64   `json:"capacity"`
	QueueDepth  int64   `json:"queueDepth"`
	Admitted    uint64  `json:"admitted"`
	Rejected    uint64  `json:"rejected"`
	TimedOut    uint64  `json:"timedOut"`
	Utilization float64 `json:"utilization"`
}

// Gate admits at most MaxConcurrent tasks at once. Waiters are served in
// arrival order.
type Gate struct {
	sem          *semaphore.Weighted
	capacity     int64
	queueDepth   int64
	queueTimeout time.Duration

	inFlight atomic.Int64
	queued   atomic.Int64
	admitted atomic.Uint64
	rejected atomic.Uint64
	timedOut atomic.Uint64
}

// NewGate creates a gate. MaxConcurrent below one is raised to one.
func NewGate(opts Options) *Gate {
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	if opts.QueueDepth < 0 {
		opts.QueueDepth = 0
	}
	if opts.QueueTimeout <= 0 {
		opts.QueueTimeout = defaultQueueTimeout
	}
	return &Gate{
		sem:          semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		capacity:     int64(opts.MaxConcurrent),
		queueDepth:   int64(opts.QueueDepth),
		queueTimeout: opts.QueueTimeout,
	}
}

// Do runs task once admitted. The task's own error is returned unchanged.
func (g *Gate) Do(ctx context.Context, task func(context.Context) error) error {
	if err := g.acquire(ctx); err != nil {
		return err
	}
	g.inFlight.Add(1)
	metrics.GateInFlight.Inc()
	defer func() {
		g.inFlight.Add(-1)
		metrics.GateInFlight.Dec()
		g.sem.Release(1)
	}()
	return task(ctx)
}

// Run is Do for tasks that produce a value.
func Run[T any](ctx context.Context, g *Gate, task func(context.Context) (T, error)) (T, error) {
	var out T
	err := g.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = task(ctx)
		return err
	})
	return out, err
}

func (g *Gate) acquire(ctx context.Context) error {
	if g.sem.TryAcquire(1) {
		g.admitted.Add(1)
		return nil
	}

	for {
		q := g.queued.Load()
		if q >= g.queueDepth {
			g.rejected.Add(1)
			metrics.GateRejected.WithLabelValues("queue_full").Inc()
			return fmt.Errorf("%w: queue full (%d waiting)", ErrCapacityExceeded, q)
		}
		if g.queued.CompareAndSwap(q, q+1) {
			break
		}
	}
	metrics.GateQueued.Inc()
	defer func() {
		g.queued.Add(-1)
		metrics.GateQueued.Dec()
	}()

	waitCtx, cancel := context.WithTimeout(ctx, g.queueTimeout)
	defer cancel()
	if err := g.sem.Acquire(waitCtx, 1); err != nil {
		g.timedOut.Add(1)
		metrics.GateRejected.WithLabelValues("timeout").Inc()
		return fmt.Errorf("%w: no slot within %s: %w", ErrCapacityExceeded, g.queueTimeout, err)
	}
	g.admitted.Add(1)
	return nil
}

// Utilization is the share of slots in use, in [0,1].
func (g *Gate) Utilization() float64 {
	return float64(g.inFlight.Load()) / float64(g.capacity)
}

// Stats returns a snapshot of the counters.
func (g *Gate) Stats() Stats {
	return Stats{
		InFlight:    g.inFlight.Load(),
		Queued:      g.queued.Load(),
		Capacity:    g.capacity,
		QueueDepth:  g.queueDepth,
		Admitted:    g.admitted.Load(),
		Rejected:    g.rejected.Load(),
		TimedOut:    g.timedOut.Load(),
		Utilization: g.Utilization(),
	}
}
