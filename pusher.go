package queue

import (
	"context"
	"errors"

	"github.com/scrapeloop/queue/job"
	"github.com/scrapeloop/queue/store"
)

// AddJob durably enqueues j. Returns ErrDuplicateJob (matching it with
// errors.Is) if j.ID already exists.
func (q *Queue) AddJob(ctx context.Context, j *job.Job) error {
	if err := q.store.AddJob(ctx, j); err != nil {
		if store.IsConflict(err) {
			return errors.Join(ErrDuplicateJob, err)
		}
		return err
	}
	return nil
}

// AddJobs enqueues all of jobs in a single transaction: either all
// rows are inserted or none are.
func (q *Queue) AddJobs(ctx context.Context, jobs []*job.Job) error {
	return q.store.AddJobs(ctx, jobs)
}

// TryAddJob behaves like AddJob but reports a duplicate id as (false,
// nil) instead of an error, for callers doing idempotent enqueue
// retries.
func (q *Queue) TryAddJob(ctx context.Context, j *job.Job) (bool, error) {
	return q.store.TryAddJob(ctx, j)
}
