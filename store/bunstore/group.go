package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/scrapeloop/queue/group"
	"github.com/scrapeloop/queue/job"
	storepkg "github.com/scrapeloop/queue/store"
)

// AddGroup transactionally inserts the group row plus one
// group_concurrency row per entry in settings (one per side-queue
// name, per spec.md §1/§4.B).
func (s *Store) AddGroup(ctx context.Context, g *group.Group, settings []group.ConcurrencySetting) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		m := fromGroup(g)
		if _, err := tx.NewInsert().Model(m).Exec(ctx); err != nil {
			if isUniqueViolation(err) {
				return storepkg.ErrConflict
			}
			return err
		}
		if len(settings) == 0 {
			return nil
		}
		rows := make([]*groupConcurrencyModel, 0, len(settings))
		for _, setting := range settings {
			rows = append(rows, &groupConcurrencyModel{
				GroupID:        g.ID,
				Queue:          setting.Queue,
				MaxConcurrency: setting.Max,
			})
		}
		_, err := tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
}

// GetGroup returns the group by id, or (nil, nil) if absent.
func (s *Store) GetGroup(ctx context.Context, id uuid.UUID) (*group.Group, error) {
	var m groupModel
	err := s.db.NewSelect().Model(&m).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m.toGroup(), nil
}

// GetOngoingByOwner returns Active groups owned by ownerID, used by
// clients that want to discover their own in-flight crawls without
// tracking group ids client-side.
func (s *Store) GetOngoingByOwner(ctx context.Context, ownerID uuid.UUID) ([]*group.Group, error) {
	var rows []*groupModel
	err := s.db.NewSelect().Model(&rows).
		Where("owner_id = ?", ownerID).
		Where("status = ?", group.Active).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	ret := make([]*group.Group, len(rows))
	for i, r := range rows {
		ret[i] = r.toGroup()
	}
	return ret, nil
}

// CancelGroup transactionally flips the group Active -> Cancelled and
// bulk-fails every still-Queued member job with reason "CANCELLED".
// Active (already-dispatched) member jobs are left alone: a worker may
// already be running them, and spec.md §4.G only promises that no
// further work from a cancelled group is dispatched, not that
// in-flight work is interrupted. Returns false if the group does not
// exist or was already terminal.
func (s *Store) CancelGroup(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now()
		var g groupModel
		res, err := tx.NewUpdate().
			Model(&g).
			Set("status = ?", group.Cancelled).
			Set("finished_at = ?", now).
			Where("id = ?", id).
			Where("status = ?", group.Active).
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

		// Queued members were never dispatched, so Dispatch never
		// incremented owner/group counters for them: failing them here
		// must not decrement either, or the counters drift below the
		// true active count (spec.md §4.G: only active terminations
		// decrement counters).
		_, err = tx.NewUpdate().
			Model((*jobModel)(nil)).
			Set("status = ?", job.Failed).
			Set("finished_at = ?", now).
			Set("failed_reason = ?", "CANCELLED").
			Where("group_id = ?", id).
			Where("status = ?", job.Queued).
			Exec(ctx)
		return err
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

// SweepExpiredGroups deletes groups whose ExpiresAt has passed and
// which have no Queued, Active or Backlog member jobs, along with
// their group_concurrency rows; the group's own status is not
// consulted. It never touches a group with such members still
// outstanding, regardless of ExpiresAt, so a sweep never silently
// drops in-flight work.
func (s *Store) SweepExpiredGroups(ctx context.Context, now time.Time) (int64, error) {
	var deleted int64
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var candidates []groupModel
		err := tx.NewSelect().Model(&candidates).
			Where("expires_at <= ?", now).
			Scan(ctx)
		if err != nil {
			return err
		}
		for _, g := range candidates {
			outstanding, err := tx.NewSelect().
				Model((*jobModel)(nil)).
				Where("group_id = ?", g.ID).
				Where("status IN (?, ?)", job.Queued, job.Active).
				Count(ctx)
			if err != nil {
				return err
			}
			backlogged, err := tx.NewSelect().
				Model((*jobBacklogModel)(nil)).
				Where("group_id = ?", g.ID).
				Count(ctx)
			if err != nil {
				return err
			}
			if outstanding+backlogged > 0 {
				continue
			}
			if _, err := tx.NewDelete().Model((*groupConcurrencyModel)(nil)).
				Where("group_id = ?", g.ID).Exec(ctx); err != nil {
				return err
			}
			res, err := tx.NewDelete().Model((*groupModel)(nil)).
				Where("id = ?", g.ID).Exec(ctx)
			if err != nil {
				return err
			}
			deleted += getAffected(res)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}
