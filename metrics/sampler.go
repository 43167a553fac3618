package metrics

import (
	"context"
	"database/sql"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/scrapeloop/queue"
	"github.com/scrapeloop/queue/internal"
)

const (
	stopped = iota
	started
)

// Sampler periodically pushes a Queue's Snapshot (and, if PoolStats is
// set, the store's connection pool stats) into a Collector. Grounded
// on the teacher's CleanWorker/internal.TimerTask periodic-task shape.
type Sampler struct {
	state atomic.Int32

	q         *queue.Queue
	collector *Collector
	interval  time.Duration
	log       *slog.Logger

	// PoolStats, if set, is consulted each tick to populate the pool
	// gauges. Typically bunstore.Store.DB().DB.Stats.
	PoolStats func() sql.DBStats

	task internal.TimerTask
}

// NewSampler builds a Sampler pushing q's snapshots into collector
// every interval.
func NewSampler(q *queue.Queue, collector *Collector, interval time.Duration, log *slog.Logger) *Sampler {
	return &Sampler{q: q, collector: collector, interval: interval, log: log}
}

func (s *Sampler) tick(ctx context.Context) {
	counts, err := s.q.Snapshot(ctx)
	if err != nil {
		s.log.Error("metrics snapshot failed", "err", err)
	} else {
		s.collector.Observe(counts)
	}
	if s.PoolStats != nil {
		s.collector.ObservePool(s.PoolStats())
	}
}

// Start begins the periodic sampling loop.
func (s *Sampler) Start(ctx context.Context) error {
	if !s.state.CompareAndSwap(stopped, started) {
		return queue.ErrDoubleStarted
	}
	s.task.Start(ctx, s.tick, s.interval)
	return nil
}

// Stop terminates the periodic sampling loop.
func (s *Sampler) Stop(timeout time.Duration) error {
	if !s.state.CompareAndSwap(started, stopped) {
		return queue.ErrDoubleStopped
	}
	done := s.task.Stop()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		return queue.ErrStopTimeout
	}
}
