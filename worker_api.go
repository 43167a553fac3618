package queue

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/scrapeloop/queue/job"
)

// GetJobToProcess returns a single job for a worker to process, or nil
// if none is immediately available. See Dispatcher.GetJobToProcess for
// the Bridge-then-store fallback behavior.
func (q *Queue) GetJobToProcess(ctx context.Context) (*job.Job, error) {
	return q.dispatcher.GetJobToProcess(ctx)
}

// PrefetchJobs runs one out-of-band PrefetchJobs pass immediately,
// returning the number of jobs dispatched. Normally this happens on
// Dispatcher's own background interval once Queue.Start is called;
// this is for callers (tests, an admin command) that want to force a
// pass without waiting on the timer.
func (q *Queue) PrefetchJobs(ctx context.Context) int {
	return q.dispatcher.PrefetchJobs(ctx)
}

// RenewLock extends an Active job's visibility timeout. Call this
// periodically from a worker still processing a long-running job so
// Reaper does not reclaim it out from under the worker. Returns false
// if the lock no longer matches — the worker has lost ownership and
// must stop processing.
func (q *Queue) RenewLock(ctx context.Context, id uuid.UUID, lock uuid.UUID) (bool, error) {
	return q.store.RenewLock(ctx, id, lock)
}

// JobFinish marks id Completed and stores returnValue, provided lock
// still matches. On success, if a Notifier is configured, it notifies
// the queue-wide "<Name>_job_done" channel so waiters in listen mode
// wake immediately rather than on their next poll. The job's
// ListenChannelID is not consulted.
func (q *Queue) JobFinish(ctx context.Context, id uuid.UUID, lock uuid.UUID, returnValue map[string]any) (bool, error) {
	ok, err := q.store.JobFinish(ctx, id, lock, returnValue)
	if err != nil || !ok {
		return ok, err
	}
	q.notifyDone(ctx, id, job.Completed)
	return true, nil
}

// JobFail marks id Failed with failedReason, provided lock still
// matches. Notification behaves as in JobFinish.
func (q *Queue) JobFail(ctx context.Context, id uuid.UUID, lock uuid.UUID, failedReason string) (bool, error) {
	ok, err := q.store.JobFail(ctx, id, lock, failedReason)
	if err != nil || !ok {
		return ok, err
	}
	q.notifyDone(ctx, id, job.Failed)
	return true, nil
}

// notifyDone best-effort publishes a completion notice shaped
// "<jobId>|<status>", matching the payload format spec.md §6 defines
// for the DB notification channel. The bus notifier carries the same
// string as its message body, since Notifier's contract has only the
// one payload field. A notifier failure is logged, never
// returned: the terminal transition already committed, and a missed
// notification only costs a waiter the next poll interval.
func (q *Queue) notifyDone(ctx context.Context, id uuid.UUID, status job.Status) {
	if q.notify == nil {
		return
	}
	channel := fmt.Sprintf("%s_job_done", q.config.Name)
	payload := fmt.Sprintf("%s|%s", id, status)
	if err := q.notify.Notify(ctx, channel, payload); err != nil {
		q.log.Warn("job-done notify failed", "id", id, "err", err)
	}
}
