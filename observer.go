package queue

import (
	"context"

	"github.com/google/uuid"

	"github.com/scrapeloop/queue/job"
	"github.com/scrapeloop/queue/store"
)

// GetJob returns the job identified by id, or (nil, nil) if no job
// with that id exists. The returned Job is an immutable snapshot;
// mutating it has no effect on the underlying queue.
func (q *Queue) GetJob(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	return q.store.GetJob(ctx, id)
}

// ListJobs returns up to limit jobs matching status. status ==
// job.Unknown means no filter; limit <= 0 means no limit. Intended for
// inspection and administrative tooling, not the consumption path.
func (q *Queue) ListJobs(ctx context.Context, status job.Status, limit int) ([]*job.Job, error) {
	return q.store.ListJobs(ctx, status, limit)
}

// Snapshot returns job counts by status plus the concurrency-limited
// count, for metrics exposition (see the metrics package).
func (q *Queue) Snapshot(ctx context.Context) (store.JobCounts, error) {
	return q.store.Snapshot(ctx, q.config.Limit)
}
