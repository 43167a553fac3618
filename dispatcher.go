package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/scrapeloop/queue/internal"
	"github.com/scrapeloop/queue/job"
)

// Dispatcher implements spec.md §4.C's public contract: PrefetchJobs
// (a best-effort background batch) and GetJobToProcess (the call a
// worker process actually makes). Both ultimately call
// store.Store.Dispatch; PrefetchJobs additionally tries to publish
// each dispatched job onto the Bridge so GetJobToProcess can avoid a
// DB round trip under load.
//
// Grounded on the teacher's Worker: same lcBase + internal.TimerTask
// periodic-pull shape, but with the MessageHandler dispatch loop
// removed entirely — there is no in-process handler here, only the
// Worker API workers call themselves.
type Dispatcher struct {
	lcBase
	q    *Queue
	task internal.TimerTask
	log  *slog.Logger
}

func newDispatcher(q *Queue) *Dispatcher {
	return &Dispatcher{q: q, log: q.log}
}

// PrefetchJobs pulls up to PrefetchBatch newly-active jobs and, if a
// Bridge is configured, publishes each onto it. It returns the number
// of jobs dispatched. A publish failure for an individual job is
// logged and otherwise ignored: the job is still Active in the store,
// so a worker calling GetJobToProcess will pick it up via the CTE
// fallback regardless of whether the bus delivery succeeded.
func (d *Dispatcher) PrefetchJobs(ctx context.Context) int {
	jobs, err := d.q.store.Dispatch(ctx, d.q.config.PrefetchBatch, d.q.config.Lease, d.q.config.Limit)
	if err != nil {
		d.log.Error("prefetch dispatch failed", "err", err)
		return 0
	}
	if d.q.bridge != nil {
		for _, j := range jobs {
			if err := d.q.bridge.Publish(j.ID.String()); err != nil {
				d.log.Warn("bridge publish failed, falling back to poll path", "id", j.ID, "err", err)
			}
		}
	}
	return len(jobs)
}

// GetJobToProcess returns a single job to process, or nil if none is
// immediately available. It never blocks on an empty queue (spec.md
// §9): a caller wanting to wait for new work must re-poll.
//
// If a Bridge is configured, GetJobToProcess first attempts a
// non-blocking TryGet on it. A bus miss (empty, or the bus itself
// erroring) always falls back to the direct CTE selector, so an absent
// or unreachable bus degrades to polling rather than starving workers.
func (d *Dispatcher) GetJobToProcess(ctx context.Context) (*job.Job, error) {
	if d.q.bridge != nil {
		if id, ok, err := d.q.bridge.TryGet(); err == nil && ok {
			if parsed, err := uuid.Parse(id); err == nil {
				if j, err := d.q.store.GetJob(ctx, parsed); err == nil && j != nil {
					return j, nil
				}
			}
			// Bus handed back an id the store doesn't recognize, or one
			// that failed to parse; don't fail the call, fall through
			// to the CTE path.
		}
	}
	jobs, err := d.q.store.Dispatch(ctx, 1, d.q.config.Lease, d.q.config.Limit)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return jobs[0], nil
}

func (d *Dispatcher) prefetchTick(ctx context.Context) {
	n := d.PrefetchJobs(ctx)
	if n > 0 {
		d.log.Debug("prefetched jobs", "count", n)
	}
}

// Start begins the periodic PrefetchJobs loop. Returns ErrDoubleStarted
// if already running.
func (d *Dispatcher) Start(ctx context.Context) error {
	if err := d.tryStart(); err != nil {
		return err
	}
	d.task.Start(ctx, d.prefetchTick, d.q.config.PrefetchInterval)
	return nil
}

// Stop terminates the periodic PrefetchJobs loop, waiting up to
// timeout for it to finish.
func (d *Dispatcher) Stop(timeout time.Duration) error {
	return d.tryStop(timeout, d.task.Stop)
}
