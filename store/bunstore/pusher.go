package bunstore

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/scrapeloop/queue/job"
	storepkg "github.com/scrapeloop/queue/store"
)

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate") || strings.Contains(msg, "pkey")
}

func (s *Store) insertJob(ctx context.Context, j *job.Job) error {
	fields := fromJob(j)
	var err error
	if fields.Status == job.Backlog {
		model := &jobBacklogModel{jobFields: fields}
		_, err = s.db.NewInsert().Model(model).Exec(ctx)
	} else {
		model := &jobModel{jobFields: fields}
		_, err = s.db.NewInsert().Model(model).Exec(ctx)
	}
	if isUniqueViolation(err) {
		return storepkg.ErrConflict
	}
	return err
}

// AddJob inserts j with status Queued (or Backlog, if the caller set
// j.Status to job.Backlog for admission-delayed jobs).
func (s *Store) AddJob(ctx context.Context, j *job.Job) error {
	return s.insertJob(ctx, j)
}

// AddJobs inserts all jobs in one statement per destination table
// (Queued jobs and Backlog jobs are partitioned and each inserted in a
// single bulk INSERT inside one transaction), so either all rows land
// or none do.
func (s *Store) AddJobs(ctx context.Context, jobs []*job.Job) error {
	if len(jobs) == 0 {
		return nil
	}
	var queued []*jobModel
	var backlog []*jobBacklogModel
	for _, j := range jobs {
		fields := fromJob(j)
		if fields.Status == job.Backlog {
			backlog = append(backlog, &jobBacklogModel{jobFields: fields})
		} else {
			queued = append(queued, &jobModel{jobFields: fields})
		}
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if len(queued) > 0 {
			if _, err := tx.NewInsert().Model(&queued).Exec(ctx); err != nil {
				if isUniqueViolation(err) {
					return storepkg.ErrConflict
				}
				return err
			}
		}
		if len(backlog) > 0 {
			if _, err := tx.NewInsert().Model(&backlog).Exec(ctx); err != nil {
				if isUniqueViolation(err) {
					return storepkg.ErrConflict
				}
				return err
			}
		}
		return nil
	})
}

// TryAddJob behaves like AddJob but reports a duplicate id as (false,
// nil) rather than surfacing a conflict error, per spec.md §7.
func (s *Store) TryAddJob(ctx context.Context, j *job.Job) (bool, error) {
	err := s.insertJob(ctx, j)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storepkg.ErrConflict) {
		return false, nil
	}
	return false, err
}

// PromoteBacklog promotes up to batch Backlog jobs to Queued, ordered
// (priority, created_at, id) ascending to match the main queue's
// tie-break rule, moving each row from jobs_backlog into jobs.
func (s *Store) PromoteBacklog(ctx context.Context, batch int) (int64, error) {
	var rows []*jobBacklogModel
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewSelect().
			Model(&rows).
			Order("priority ASC", "created_at ASC", "id ASC").
			Limit(batch).
			Scan(ctx); err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		promoted := make([]*jobModel, 0, len(rows))
		ids := make([]uuid.UUID, 0, len(rows))
		for _, r := range rows {
			fields := r.jobFields
			fields.Status = job.Queued
			promoted = append(promoted, &jobModel{jobFields: fields})
			ids = append(ids, r.ID)
		}
		if _, err := tx.NewInsert().Model(&promoted).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().
			Model((*jobBacklogModel)(nil)).
			Where("id IN (?)", bun.In(ids)).
			Exec(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}
