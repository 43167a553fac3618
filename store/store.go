// Package store defines the durable-storage contract the queue package
// is built on (component A/B in SPEC_FULL.md: the Durable Store and the
// Concurrency Accountant counter updates that run in the same
// transaction as every dispatch and termination).
//
// store.Store is implemented by store/bunstore against both Postgres
// (production) and SQLite (tests), using github.com/uptrace/bun for
// both, the way the teacher repo used bun against SQLite throughout its
// own test suite.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/scrapeloop/queue/group"
	"github.com/scrapeloop/queue/job"
)

// ConcurrencyLimit selects which concurrency ceilings the Concurrency
// Accountant enforces during Dispatch.
type ConcurrencyLimit int

const (
	// ConcurrencyOff ignores counters entirely.
	ConcurrencyOff ConcurrencyLimit = iota
	// ConcurrencyPerOwner enforces owner_concurrency.max_concurrency.
	ConcurrencyPerOwner
	// ConcurrencyPerOwnerPerGroup enforces both the owner's cap and,
	// if set, the job's group cap; the effective partition limit is
	// min(owner_slots, group_slots).
	ConcurrencyPerOwnerPerGroup
)

// JobCounts is a snapshot of job counts by status, plus the synthetic
// "concurrency-limited" count: per (owner[, group]) partition, the
// number of queued jobs beyond its currently available dispatch slots
// (all of them when the partition has zero slots).
type JobCounts struct {
	Counts              map[job.Status]int64
	ConcurrencyLimited  int64
}

// Store is the durable-storage contract. Each multi-row mutation it
// performs runs inside one database transaction, so live counters move
// atomically with status; a mutation is issued as several statements
// within that transaction, not as one single statement.
type Store interface {
	// AddJob durably inserts j with status Queued (or Backlog if
	// j.Status is already set to Backlog by the caller). Returns a
	// conflict-shaped error (see store.IsConflict) if j.ID already
	// exists.
	AddJob(ctx context.Context, j *job.Job) error

	// AddJobs inserts all of jobs in one transaction. Either all rows
	// are inserted or none are.
	AddJobs(ctx context.Context, jobs []*job.Job) error

	// TryAddJob behaves like AddJob but reports a duplicate id as
	// (false, nil) instead of an error.
	TryAddJob(ctx context.Context, j *job.Job) (bool, error)

	// Dispatch selects up to batch Queued jobs honoring priority,
	// arrival order and the concurrency ceilings implied by limit,
	// flips them to Active under a fresh random lock, and increments
	// the relevant counters — all atomically per spec.md §4.B/§4.C.
	Dispatch(ctx context.Context, batch int, lease time.Duration, limit ConcurrencyLimit) ([]*job.Job, error)

	// RenewLock extends the lease of an Active job. Returns false if
	// the lock no longer matches (lost-lock, not an error).
	RenewLock(ctx context.Context, id uuid.UUID, lock uuid.UUID) (bool, error)

	// JobFinish atomically transitions id to Completed, clears the
	// lock, stamps FinishedAt, stores returnValue and decrements
	// counters. Returns false on a lost lock.
	JobFinish(ctx context.Context, id uuid.UUID, lock uuid.UUID, returnValue map[string]any) (bool, error)

	// JobFail is symmetric with JobFinish, storing failedReason.
	JobFail(ctx context.Context, id uuid.UUID, lock uuid.UUID, failedReason string) (bool, error)

	// ReapExpired reclaims jobs past their deadline three ways: any
	// Active row whose LockedAt predates now-leaseTTL goes back to
	// Queued; any Active row whose TimesOutAt has passed is forced to
	// Failed; any Backlog row whose TimesOutAt has passed is promoted
	// to Queued. Counters are decremented for the first two (they were
	// dispatched) but not the third (it was never dispatched). Returns
	// the total number of rows reclaimed across all three paths.
	ReapExpired(ctx context.Context, leaseTTL time.Duration) (int64, error)

	// PromoteBacklog promotes up to batch Backlog jobs to Queued, in
	// the same (priority, created_at, id) order the main queue uses,
	// and returns the number promoted.
	PromoteBacklog(ctx context.Context, batch int) (int64, error)

	// GetJob returns the job by id, or (nil, nil) if it does not
	// exist.
	GetJob(ctx context.Context, id uuid.UUID) (*job.Job, error)

	// ListJobs returns up to limit jobs matching status. status ==
	// job.Unknown means no filter. limit <= 0 means no limit.
	ListJobs(ctx context.Context, status job.Status, limit int) ([]*job.Job, error)

	// AddGroup transactionally inserts the group row plus one
	// group_concurrency row per entry in settings.
	AddGroup(ctx context.Context, g *group.Group, settings []group.ConcurrencySetting) error

	// GetGroup returns the group by id, or (nil, nil) if absent.
	GetGroup(ctx context.Context, id uuid.UUID) (*group.Group, error)

	// GetOngoingByOwner returns Active groups owned by ownerID.
	GetOngoingByOwner(ctx context.Context, ownerID uuid.UUID) ([]*group.Group, error)

	// CancelGroup transactionally flips the group Active -> Cancelled
	// and bulk-fails every still-Queued member job with reason
	// "CANCELLED". Returns false if the group was already terminal or
	// does not exist.
	CancelGroup(ctx context.Context, id uuid.UUID) (bool, error)

	// SweepExpiredGroups deletes groups whose ExpiresAt has passed and
	// whose member jobs have all terminated, returning the count
	// deleted. It does not cancel in-flight work.
	SweepExpiredGroups(ctx context.Context, now time.Time) (int64, error)

	// DeleteTerminal permanently removes Completed/Failed jobs matching
	// status (job.Unknown means both), optionally restricted to rows
	// finished at or before `before`. It exists to bound the "short
	// retention window" spec.md's Non-goals call for (long-term result
	// storage is the caller's concern, not this store's). Returns
	// ErrBadStatus if status names a non-terminal state.
	DeleteTerminal(ctx context.Context, status job.Status, before *time.Time) (int64, error)

	// Snapshot returns job counts by status plus the
	// concurrency-limited synthetic count (evaluated under limit), for
	// metrics exposition.
	Snapshot(ctx context.Context, limit ConcurrencyLimit) (JobCounts, error)

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error

	// Close releases underlying connections/pools.
	Close() error
}
