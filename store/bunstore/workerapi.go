package bunstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/scrapeloop/queue/job"
)

// RenewLock extends the visibility lease of an Active job, identified
// by the lock token the worker was handed at dispatch time. A
// mismatched or cleared lock affects zero rows, reported as (false,
// nil): a lost lease is an expected outcome, not an error, per
// spec.md §7.
//
// Grounded on the teacher's sql.Puller.ExtendLock.
func (s *Store) RenewLock(ctx context.Context, id uuid.UUID, lock uuid.UUID) (bool, error) {
	res, err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("locked_at = ?", time.Now()).
		Where("id = ?", id).
		Where("status = ?", job.Active).
		Where("lock = ?", lock).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	return isAffected(res), nil
}

// JobFinish atomically transitions id from Active to Completed,
// clears the lock, stamps FinishedAt, stores returnValue and
// decrements the owner/group counters the matching Dispatch call
// incremented. Returns false if the lock no longer matches.
func (s *Store) JobFinish(ctx context.Context, id uuid.UUID, lock uuid.UUID, returnValue map[string]any) (bool, error) {
	return s.terminate(ctx, id, lock, job.Completed, returnValue, "")
}

// JobFail is symmetric with JobFinish, storing failedReason instead of
// a return value.
func (s *Store) JobFail(ctx context.Context, id uuid.UUID, lock uuid.UUID, failedReason string) (bool, error) {
	return s.terminate(ctx, id, lock, job.Failed, nil, failedReason)
}

func (s *Store) terminate(ctx context.Context, id uuid.UUID, lock uuid.UUID, status job.Status, returnValue map[string]any, failedReason string) (bool, error) {
	var ok bool
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now()
		var updated jobModel
		res, err := tx.NewUpdate().
			Model(&updated).
			Set("status = ?", status).
			Set("lock = NULL").
			Set("locked_at = NULL").
			Set("finished_at = ?", now).
			Set("return_value = ?", returnValue).
			Set("failed_reason = ?", failedReason).
			Where("id = ?", id).
			Where("status = ?", job.Active).
			Where("lock = ?", lock).
			Returning("*").
			Exec(ctx)
		if err != nil {
			return err
		}
		if !isAffected(res) {
			ok = false
			return nil
		}
		ok = true
		return s.decrementCounters(ctx, tx, updated.OwnerID, updated.GroupID)
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

// ReapExpired reclaims jobs in the two ways spec.md §3's lifecycle
// names: Active rows whose LockedAt predates now-leaseTTL go back to
// Queued (a worker crash mid-lease is not the job's fault, per
// spec.md §7's lost-lock semantics); Active rows whose TimesOutAt has
// passed instead are forced to Failed, since a timeout is the job's
// own deadline rather than a lost worker; and Backlog rows whose
// TimesOutAt has passed are promoted to Queued, becoming eligible for
// dispatch now that their admission delay has expired. All three
// paths run in one transaction and the total count reclaimed across
// them is returned.
func (s *Store) ReapExpired(ctx context.Context, leaseTTL time.Duration) (int64, error) {
	now := time.Now()
	leaseCutoff := now.Add(-leaseTTL)
	var reclaimed int64
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var leaseExpired []jobModel
		err := tx.NewUpdate().
			Model((*jobModel)(nil)).
			Set("status = ?", job.Queued).
			Set("lock = NULL").
			Set("locked_at = NULL").
			Where("status = ?", job.Active).
			Where("locked_at < ?", leaseCutoff).
			Returning("*").
			Scan(ctx, &leaseExpired)
		if err != nil {
			return err
		}
		for _, r := range leaseExpired {
			if err := s.decrementCounters(ctx, tx, r.OwnerID, r.GroupID); err != nil {
				return err
			}
		}

		var timedOut []jobModel
		err = tx.NewUpdate().
			Model((*jobModel)(nil)).
			Set("status = ?", job.Failed).
			Set("lock = NULL").
			Set("locked_at = NULL").
			Set("finished_at = ?", now).
			Set("failed_reason = ?", "TIMED_OUT").
			Where("status = ?", job.Active).
			Where("times_out_at IS NOT NULL").
			Where("times_out_at < ?", now).
			Returning("*").
			Scan(ctx, &timedOut)
		if err != nil {
			return err
		}
		for _, r := range timedOut {
			if err := s.decrementCounters(ctx, tx, r.OwnerID, r.GroupID); err != nil {
				return err
			}
		}

		var expiredBacklog []jobBacklogModel
		err = tx.NewSelect().
			Model(&expiredBacklog).
			Where("times_out_at IS NOT NULL").
			Where("times_out_at < ?", now).
			Scan(ctx)
		if err != nil {
			return err
		}
		if len(expiredBacklog) > 0 {
			promoted := make([]*jobModel, 0, len(expiredBacklog))
			ids := make([]uuid.UUID, 0, len(expiredBacklog))
			for _, r := range expiredBacklog {
				fields := r.jobFields
				fields.Status = job.Queued
				promoted = append(promoted, &jobModel{jobFields: fields})
				ids = append(ids, r.ID)
			}
			if _, err := tx.NewInsert().Model(&promoted).Exec(ctx); err != nil {
				return err
			}
			if _, err := tx.NewDelete().
				Model((*jobBacklogModel)(nil)).
				Where("id IN (?)", bun.In(ids)).
				Exec(ctx); err != nil {
				return err
			}
		}

		reclaimed = int64(len(leaseExpired) + len(timedOut) + len(expiredBacklog))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return reclaimed, nil
}
