package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/scrapeloop/queue/job"
	storepkg "github.com/scrapeloop/queue/store"
)

const infiniteSlots = int64(math.MaxInt64 / 2)

type partitionRow struct {
	OwnerID uuid.UUID  `bun:"owner_id"`
	GroupID *uuid.UUID `bun:"group_id"`
}

// Dispatch implements spec.md §4.C steps 1-5: compute available slots
// per partition, skip partitions whose advisory lock is contended,
// SELECT ... FOR UPDATE SKIP LOCKED the partition's share ordered by
// (priority, created_at, id), flip them to Active and increment
// counters — all inside one transaction.
func (s *Store) Dispatch(ctx context.Context, batch int, lease time.Duration, limit storepkg.ConcurrencyLimit) ([]*job.Job, error) {
	if batch <= 0 {
		return nil, nil
	}
	var result []*job.Job
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		partitions, err := s.candidatePartitions(ctx, tx)
		if err != nil {
			return err
		}
		remaining := batch
		for _, p := range partitions {
			if remaining <= 0 {
				break
			}
			key := partitionKey{owner: p.OwnerID, group: partitionGroup(p.GroupID, limit)}
			locked, err := s.tryPartitionLock(ctx, tx, key)
			if err != nil {
				return err
			}
			if !locked {
				continue // contended this round; jobs stay queued
			}
			slots, err := s.partitionSlotsTx(ctx, tx, p.OwnerID, p.GroupID, limit)
			if err != nil {
				return err
			}
			n := slots
			if int64(remaining) < n {
				n = int64(remaining)
			}
			if n <= 0 {
				continue
			}
			picked, err := s.selectForDispatch(ctx, tx, p.OwnerID, p.GroupID, limit, int(n))
			if err != nil {
				return err
			}
			if len(picked) == 0 {
				continue
			}
			now := time.Now()
			dispatched, err := s.activateJobs(ctx, tx, picked, now, lease)
			if err != nil {
				return err
			}
			if err := s.incrementCounters(ctx, tx, p.OwnerID, p.GroupID, limit, int64(len(dispatched))); err != nil {
				return err
			}
			result = append(result, dispatched...)
			remaining -= len(dispatched)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func partitionGroup(groupID *uuid.UUID, limit storepkg.ConcurrencyLimit) *uuid.UUID {
	if limit != storepkg.ConcurrencyPerOwnerPerGroup {
		return nil
	}
	return groupID
}

// candidatePartitions returns every distinct (owner_id, group_id) pair
// with at least one Queued job. No ordering is promised across
// partitions, per spec.md §4.C.
func (s *Store) candidatePartitions(ctx context.Context, tx bun.Tx) ([]partitionRow, error) {
	var rows []partitionRow
	err := tx.NewSelect().
		Model((*jobModel)(nil)).
		ColumnExpr("DISTINCT owner_id, group_id").
		Where("status = ?", job.Queued).
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// tryPartitionLock acquires the transaction-scoped advisory lock
// serializing concurrent dispatchers over this partition; Postgres
// releases it when the dispatch transaction ends. On SQLite
// (test-only, single pooled connection) this is a no-op that always
// succeeds, since there is no cross-connection contention to guard
// against.
func (s *Store) tryPartitionLock(ctx context.Context, tx bun.Tx, key partitionKey) (bool, error) {
	if s.dialect != dialectPostgres {
		_ = fnvHash64(key.lockKey()) // keep the hash path exercised identically across dialects
		return true, nil
	}
	var locked bool
	err := tx.NewRaw("SELECT pg_try_advisory_xact_lock(hashtext(?))", key.lockKey()).Scan(ctx, &locked)
	if err != nil {
		return false, err
	}
	return locked, nil
}

// partitionSlotsTx computes the effective pick limit for a partition
// inside an existing transaction, self-healing a missing
// owner_concurrency row via resolveMaxConcurrency.
func (s *Store) partitionSlotsTx(ctx context.Context, tx bun.Tx, ownerID uuid.UUID, groupID *uuid.UUID, limit storepkg.ConcurrencyLimit) (int64, error) {
	if limit == storepkg.ConcurrencyOff {
		return infiniteSlots, nil
	}
	if ownerID == uuid.Nil {
		return infiniteSlots, nil
	}
	ownerSlots, err := s.ownerSlots(ctx, tx, ownerID)
	if err != nil {
		return 0, err
	}
	if limit == storepkg.ConcurrencyPerOwner || groupID == nil {
		return ownerSlots, nil
	}
	groupSlots, err := s.groupSlots(ctx, tx, *groupID)
	if err != nil {
		return 0, err
	}
	if groupSlots < ownerSlots {
		return groupSlots, nil
	}
	return ownerSlots, nil
}

// partitionSlots is the read-only counterpart used by Snapshot: it
// never self-heals a missing owner_concurrency row (a metrics read
// must not mutate state), treating an unresolved owner as zero slots.
func (s *Store) partitionSlots(ctx context.Context, ownerID uuid.UUID, groupID *uuid.UUID, limit storepkg.ConcurrencyLimit) (int64, error) {
	if limit == storepkg.ConcurrencyOff {
		return infiniteSlots, nil
	}
	if ownerID == uuid.Nil {
		return infiniteSlots, nil
	}
	var row ownerConcurrencyModel
	err := s.db.NewSelect().Model(&row).Where("id = ?", ownerID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	ownerSlots := slotsFor(row.MaxConcurrency, row.CurrentConcurrency)
	if limit == storepkg.ConcurrencyPerOwner || groupID == nil {
		return ownerSlots, nil
	}
	var g groupConcurrencyModel
	err = s.db.NewSelect().Model(&g).
		Where("group_id = ?", *groupID).
		Where("queue_name = ?", s.queue).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ownerSlots, nil
		}
		return 0, err
	}
	groupSlots := slotsFor(g.MaxConcurrency, g.CurrentConcurrency)
	if groupSlots < ownerSlots {
		return groupSlots, nil
	}
	return ownerSlots, nil
}

func slotsFor(max *int, current int) int64 {
	if max == nil {
		return infiniteSlots
	}
	slots := int64(*max) - int64(current)
	if slots < 0 {
		return 0
	}
	return slots
}

func (s *Store) ownerSlots(ctx context.Context, tx bun.Tx, ownerID uuid.UUID) (int64, error) {
	row, err := s.ensureOwnerConcurrency(ctx, tx, ownerID)
	if err != nil {
		return 0, err
	}
	return slotsFor(row.MaxConcurrency, row.CurrentConcurrency), nil
}

func (s *Store) groupSlots(ctx context.Context, tx bun.Tx, groupID uuid.UUID) (int64, error) {
	var row groupConcurrencyModel
	err := tx.NewSelect().Model(&row).
		Where("group_id = ?", groupID).
		Where("queue_name = ?", s.queue).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return infiniteSlots, nil
		}
		return 0, err
	}
	return slotsFor(row.MaxConcurrency, row.CurrentConcurrency), nil
}

// ensureOwnerConcurrency fetches the owner_concurrency row for
// ownerID, inserting it via resolveMaxConcurrency on first encounter
// (or re-resolving if an admin reset max_concurrency to NULL), per
// spec.md §4.B.
func (s *Store) ensureOwnerConcurrency(ctx context.Context, tx bun.Tx, ownerID uuid.UUID) (*ownerConcurrencyModel, error) {
	var row ownerConcurrencyModel
	err := tx.NewSelect().Model(&row).Where("id = ?", ownerID).Scan(ctx)
	if err == nil && row.MaxConcurrency != nil {
		return &row, nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	resolved, err := s.resolveMaxConcurrency(ctx, tx, ownerID)
	if err != nil {
		return nil, err
	}
	row = ownerConcurrencyModel{ID: ownerID, MaxConcurrency: resolved, CurrentConcurrency: row.CurrentConcurrency}
	_, err = tx.NewInsert().Model(&row).
		On("CONFLICT (id) DO UPDATE").
		Set("max_concurrency = EXCLUDED.max_concurrency").
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// resolveMaxConcurrency calls the installed stored procedure on
// Postgres (SELECT <queue>_owner_resolve_max_concurrency($1)) or the
// Go-side ResolveMaxConcurrency hook on SQLite (test-only, since there
// is no stored-procedure layer to call). A NULL/nil result fails
// closed: the caller treats it as max_concurrency=0, admitting
// nothing, per spec.md's stated safe default.
func (s *Store) resolveMaxConcurrency(ctx context.Context, tx bun.Tx, ownerID uuid.UUID) (*int, error) {
	if s.dialect == dialectPostgres {
		var resolved sql.NullInt64
		q := "SELECT " + s.resolveProcName() + "(?)"
		if err := tx.NewRaw(q, ownerID).Scan(ctx, &resolved); err != nil {
			return nil, err
		}
		if !resolved.Valid {
			zero := 0
			return &zero, nil
		}
		v := int(resolved.Int64)
		return &v, nil
	}
	if s.ResolveMaxConcurrency != nil {
		v, err := s.ResolveMaxConcurrency(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		if v == nil {
			zero := 0
			return &zero, nil
		}
		return v, nil
	}
	zero := 0
	return &zero, nil
}

// selectForDispatch picks up to n Queued job ids for the given
// partition, locking the rows FOR UPDATE SKIP LOCKED on Postgres so
// concurrent dispatchers never double-pick a row.
func (s *Store) selectForDispatch(ctx context.Context, tx bun.Tx, ownerID uuid.UUID, groupID *uuid.UUID, limit storepkg.ConcurrencyLimit, n int) ([]uuid.UUID, error) {
	q := tx.NewSelect().
		Model((*jobModel)(nil)).
		Column("id").
		Where("status = ?", job.Queued).
		Where("owner_id = ?", ownerID)
	if limit == storepkg.ConcurrencyPerOwnerPerGroup {
		if groupID == nil {
			q = q.Where("group_id IS NULL")
		} else {
			q = q.Where("group_id = ?", *groupID)
		}
	}
	q = q.Order("priority ASC", "created_at ASC", "id ASC").Limit(n)
	if s.dialect == dialectPostgres {
		q = q.For("UPDATE SKIP LOCKED")
	}
	var ids []uuid.UUID
	if err := q.Scan(ctx, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// activateJobs flips each picked id from Queued to Active under a
// fresh random lock, guarding with "status = 'queued'" defensively even
// though the row lock already makes the race impossible within one
// transaction.
func (s *Store) activateJobs(ctx context.Context, tx bun.Tx, ids []uuid.UUID, now time.Time, lease time.Duration) ([]*job.Job, error) {
	_ = lease // lease length governs reaping, not the value stored on the row
	var result []*job.Job
	for _, id := range ids {
		lock := uuid.New()
		var updated jobModel
		_, err := tx.NewUpdate().
			Model(&updated).
			Set("status = ?", job.Active).
			Set("lock = ?", lock).
			Set("locked_at = ?", now).
			Where("id = ?", id).
			Where("status = ?", job.Queued).
			Returning("*").
			Exec(ctx)
		if err != nil {
			return nil, err
		}
		result = append(result, updated.toJob())
	}
	return result, nil
}

// incrementCounters adds n to the owner's (and, in per-owner-per-group
// mode, the group's) current_concurrency, piggybacking on the same
// transaction as the status flip so counters never drift from live
// active counts.
func (s *Store) incrementCounters(ctx context.Context, tx bun.Tx, ownerID uuid.UUID, groupID *uuid.UUID, limit storepkg.ConcurrencyLimit, n int64) error {
	if limit == storepkg.ConcurrencyOff || ownerID == uuid.Nil || n == 0 {
		return nil
	}
	if _, err := tx.NewUpdate().
		Model((*ownerConcurrencyModel)(nil)).
		Set("current_concurrency = current_concurrency + ?", n).
		Where("id = ?", ownerID).
		Exec(ctx); err != nil {
		return err
	}
	if limit == storepkg.ConcurrencyPerOwnerPerGroup && groupID != nil {
		_, err := tx.NewUpdate().
			Model((*groupConcurrencyModel)(nil)).
			Set("current_concurrency = current_concurrency + ?", n).
			Where("group_id = ?", *groupID).
			Where("queue_name = ?", s.queue).
			Exec(ctx)
		if err != nil {
			return err
		}
	}
	return nil
}

// decrementCounters mirrors incrementCounters for job termination
// (JobFinish/JobFail/ReapExpired). Unlike incrementCounters it does not
// take a ConcurrencyLimit: the terminating job already carries its
// OwnerID/GroupID, and the concurrency mode is assumed static for a
// queue instance's lifetime (set once at configuration time, not
// re-evaluated per call the way Dispatch/Snapshot allow for tests), so
// a counter that the configured mode never increments stays at zero.
// GREATEST clamps at zero, so decrementing such a counter is a
// harmless no-op rather than drift.
func (s *Store) decrementCounters(ctx context.Context, tx bun.Tx, ownerID uuid.UUID, groupID *uuid.UUID) error {
	if ownerID == uuid.Nil {
		return nil
	}
	if _, err := tx.NewUpdate().
		Model((*ownerConcurrencyModel)(nil)).
		Set("current_concurrency = GREATEST(0, current_concurrency - 1)").
		Where("id = ?", ownerID).
		Exec(ctx); err != nil {
		return err
	}
	if groupID != nil {
		_, err := tx.NewUpdate().
			Model((*groupConcurrencyModel)(nil)).
			Set("current_concurrency = GREATEST(0, current_concurrency - 1)").
			Where("group_id = ?", *groupID).
			Where("queue_name = ?", s.queue).
			Exec(ctx)
		if err != nil {
			return err
		}
	}
	return nil
}
