package bunstore

import (
	"context"
	"time"

	"github.com/scrapeloop/queue/job"
	storepkg "github.com/scrapeloop/queue/store"
)

// DeleteTerminal deletes Completed/Failed jobs, optionally restricted
// to rows finished at or before `before`, bounding storage to the
// short retention window spec.md's Non-goals describe (long-term
// result storage is left to the caller).
//
// Grounded on the teacher's sql.Cleaner.Clean.
func (s *Store) DeleteTerminal(ctx context.Context, status job.Status, before *time.Time) (int64, error) {
	if status != job.Unknown && status != job.Completed && status != job.Failed {
		return 0, storepkg.ErrBadStatus
	}
	q := s.db.NewDelete().Model((*jobModel)(nil))
	if status != job.Unknown {
		q = q.Where("status = ?", status)
	} else {
		q = q.Where("status IN (?, ?)", job.Completed, job.Failed)
	}
	if before != nil {
		q = q.Where("finished_at <= ?", *before)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return getAffected(res), nil
}
