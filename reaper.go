package queue

import (
	"context"
	"time"

	"github.com/scrapeloop/queue/internal"
)

// Reaper periodically reclaims jobs past their deadline: Active jobs
// whose lease has expired without a RenewLock or terminal call — the
// worker holding them is presumed dead — go back to Queued; Active
// jobs whose own TimesOutAt has passed are instead forced to Failed;
// and Backlog jobs whose TimesOutAt has passed are promoted to Queued.
// See store.Store.ReapExpired for the per-path detail.
//
// Grounded on the teacher's CleanWorker: same lcBase + TimerTask
// periodic-sweep shape, narrowed to a single store call.
type Reaper struct {
	lcBase
	q    *Queue
	task internal.TimerTask
}

func newReaper(q *Queue) *Reaper {
	return &Reaper{q: q}
}

func (r *Reaper) tick(ctx context.Context) {
	n, err := r.q.store.ReapExpired(ctx, r.q.config.Lease)
	if err != nil {
		r.q.log.Error("reap expired jobs failed", "err", err)
		return
	}
	if n > 0 {
		r.q.log.Info("reclaimed expired jobs", "count", n)
	}
}

// Start begins the periodic reap loop.
func (r *Reaper) Start(ctx context.Context) error {
	if err := r.tryStart(); err != nil {
		return err
	}
	r.task.Start(ctx, r.tick, r.q.config.ReapInterval)
	return nil
}

// Stop terminates the periodic reap loop.
func (r *Reaper) Stop(timeout time.Duration) error {
	return r.tryStop(timeout, r.task.Stop)
}
