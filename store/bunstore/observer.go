package bunstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/scrapeloop/queue/job"
	storepkg "github.com/scrapeloop/queue/store"
)

// GetJob returns the job by id, checking jobs then jobs_backlog, or
// (nil, nil) if absent from both.
func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*job.Job, error) {
	var m jobModel
	err := s.db.NewSelect().Model(&m).Where("id = ?", id).Scan(ctx)
	if err == nil {
		return m.toJob(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	var b jobBacklogModel
	err = s.db.NewSelect().Model(&b).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return b.toJob(), nil
}

// ListJobs returns up to limit jobs filtered by status. Backlog jobs
// are served from jobs_backlog; every other status queries jobs.
// status == job.Unknown queries jobs with no filter (jobs_backlog rows
// are not included, since "no filter" for the main queue view does not
// imply cross-table scanning).
func (s *Store) ListJobs(ctx context.Context, status job.Status, limit int) ([]*job.Job, error) {
	if status == job.Backlog {
		var rows []*jobBacklogModel
		q := s.db.NewSelect().Model(&rows)
		if limit > 0 {
			q = q.Limit(limit)
		}
		if err := q.Scan(ctx); err != nil {
			return nil, err
		}
		ret := make([]*job.Job, len(rows))
		for i, r := range rows {
			ret[i] = r.toJob()
		}
		return ret, nil
	}
	var rows []*jobModel
	q := s.db.NewSelect().Model(&rows)
	if status != job.Unknown {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	ret := make([]*job.Job, len(rows))
	for i, r := range rows {
		ret[i] = r.toJob()
	}
	return ret, nil
}

// Snapshot returns per-status counts across jobs and jobs_backlog, plus
// the synthetic concurrency-limited count computed the same way
// Dispatch computes per-partition slots, but read-only.
func (s *Store) Snapshot(ctx context.Context, limit storepkg.ConcurrencyLimit) (storepkg.JobCounts, error) {
	ret := storepkg.JobCounts{Counts: make(map[job.Status]int64)}

	for _, status := range []job.Status{job.Queued, job.Active, job.Completed, job.Failed} {
		count, err := s.db.NewSelect().Model((*jobModel)(nil)).Where("status = ?", status).Count(ctx)
		if err != nil {
			return ret, err
		}
		ret.Counts[status] = int64(count)
	}
	backlogCount, err := s.db.NewSelect().Model((*jobBacklogModel)(nil)).Count(ctx)
	if err != nil {
		return ret, err
	}
	ret.Counts[job.Backlog] = int64(backlogCount)

	if limit == storepkg.ConcurrencyOff {
		return ret, nil
	}

	limited, err := s.countConcurrencyLimited(ctx, limit)
	if err != nil {
		return ret, err
	}
	ret.ConcurrencyLimited = limited
	return ret, nil
}

type partitionCount struct {
	OwnerID uuid.UUID  `bun:"owner_id"`
	GroupID *uuid.UUID `bun:"group_id"`
	Count   int64      `bun:"count"`
}

// countConcurrencyLimited sums, over every (owner[, group]) partition
// with at least one queued job, the amount by which queued count
// exceeds available slots (clamped at zero per-partition, so a
// partition with slack never contributes a negative count).
func (s *Store) countConcurrencyLimited(ctx context.Context, limit storepkg.ConcurrencyLimit) (int64, error) {
	var partitions []partitionCount
	q := s.db.NewSelect().
		Model((*jobModel)(nil)).
		ColumnExpr("owner_id, group_id, count(*) AS count").
		Where("status = ?", job.Queued).
		GroupExpr("owner_id, group_id")
	if err := q.Scan(ctx, &partitions); err != nil {
		return 0, err
	}

	var total int64
	for _, p := range partitions {
		slots, err := s.partitionSlots(ctx, p.OwnerID, p.GroupID, limit)
		if err != nil {
			return 0, err
		}
		if slots < 0 {
			slots = 0
		}
		if p.Count > slots {
			total += p.Count - slots
		}
	}
	return total, nil
}
