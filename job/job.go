package job

import (
	"time"

	"github.com/google/uuid"
)

// Job represents a scrape job as stored by the queue.
//
// CreatedAt records when the job was first enqueued. FinishedAt is set
// iff Status is Completed or Failed.
//
// Priority orders dispatch: smaller values dispatch first. Data carries
// the opaque, JSON-shaped payload a worker needs to perform the scrape.
// ReturnValue and FailedReason are mutually exclusive and only populated
// once the job reaches a terminal state.
//
// Lock is a random token set when a worker acquires the job and cleared
// on completion; its absence means the job is not currently owned.
// LockedAt is the instant the current lock was set or last renewed via
// RenewLock.
//
// OwnerID is the normalized (see package owner) identifier of the team
// that owns the job, used by the concurrency accountant. GroupID, if
// set, binds the job to a Group sharing a TTL and cancellation.
//
// ListenChannelID, if set, names the logical channel completion should
// be published on so the producing process can be woken.
//
// TimesOutAt is the instant after which the row may be reclaimed from
// Backlog or Active by background maintenance.
//
// Job values are snapshots: mutating them does not affect the
// underlying queue. Transitions must go through the Queue interface.
type Job struct {
	ID         uuid.UUID
	Status     Status
	CreatedAt  time.Time
	FinishedAt *time.Time

	Priority int
	Data     map[string]any

	ReturnValue  map[string]any
	FailedReason string

	Lock     *uuid.UUID
	LockedAt *time.Time

	OwnerID uuid.UUID
	GroupID *uuid.UUID

	ListenChannelID string
	TimesOutAt      *time.Time
}

// IsTerminal reports whether Status is Completed or Failed.
func (j *Job) IsTerminal() bool {
	return j.Status == Completed || j.Status == Failed
}
