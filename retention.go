package queue

import (
	"context"
	"time"

	"github.com/scrapeloop/queue/internal"
	"github.com/scrapeloop/queue/job"
)

// Retention periodically purges terminal jobs older than
// Config.RetentionAge. It exists because spec.md's Non-goals push
// long-term result storage onto the caller; a short bounded window is
// still this package's job, since an unbounded jobs table would
// otherwise grow forever under at-least-once retry traffic.
//
// Only started when Config.RetentionAge > 0 (see Queue.Start); a
// RetentionAge of 0 disables the sweep entirely and jobs are retained
// until the caller deletes them some other way.
//
// Grounded on the teacher's CleanWorker/Cleaner pairing: the same
// periodic-delete shape, redirected at DeleteTerminal instead of a
// status-based in-process cleanup callback.
type Retention struct {
	lcBase
	q    *Queue
	task internal.TimerTask
}

func newRetention(q *Queue) *Retention {
	return &Retention{q: q}
}

func (r *Retention) tick(ctx context.Context) {
	cutoff := time.Now().Add(-r.q.config.RetentionAge)
	n, err := r.q.store.DeleteTerminal(ctx, job.Unknown, &cutoff)
	if err != nil {
		r.q.log.Error("retention sweep failed", "err", err)
		return
	}
	if n > 0 {
		r.q.log.Info("purged terminal jobs", "count", n)
	}
}

// Start begins the periodic retention sweep.
func (r *Retention) Start(ctx context.Context) error {
	if err := r.tryStart(); err != nil {
		return err
	}
	r.task.Start(ctx, r.tick, r.q.config.RetentionInterval)
	return nil
}

// Stop terminates the periodic retention sweep.
func (r *Retention) Stop(timeout time.Duration) error {
	return r.tryStop(timeout, r.task.Stop)
}
