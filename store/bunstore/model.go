package bunstore

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/scrapeloop/queue/group"
	"github.com/scrapeloop/queue/job"
)

// jobFields is the column set shared by jobs and jobs_backlog; both
// tables have the same shape per spec.md §6.
type jobFields struct {
	ID     uuid.UUID  `bun:"id,pk,type:uuid"`
	Status job.Status `bun:"status,notnull"`

	Priority int            `bun:"priority,notnull,default:0"`
	Data     map[string]any `bun:"data,type:jsonb"`

	CreatedAt  time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	FinishedAt *time.Time `bun:"finished_at"`

	ReturnValue  map[string]any `bun:"return_value,type:jsonb"`
	FailedReason string         `bun:"failed_reason"`

	Lock     *uuid.UUID `bun:"lock,type:uuid"`
	LockedAt *time.Time `bun:"locked_at"`

	OwnerID uuid.UUID  `bun:"owner_id,type:uuid"`
	GroupID *uuid.UUID `bun:"group_id,type:uuid"`

	ListenChannelID string     `bun:"listen_channel_id"`
	TimesOutAt      *time.Time `bun:"times_out_at"`
}

type jobModel struct {
	bun.BaseModel `bun:"table:jobs,alias:j"`
	jobFields
}

type jobBacklogModel struct {
	bun.BaseModel `bun:"table:jobs_backlog,alias:jb"`
	jobFields
}

func (f *jobFields) toJob() *job.Job {
	return &job.Job{
		ID:              f.ID,
		Status:          f.Status,
		CreatedAt:       f.CreatedAt,
		FinishedAt:      f.FinishedAt,
		Priority:        f.Priority,
		Data:            f.Data,
		ReturnValue:     f.ReturnValue,
		FailedReason:    f.FailedReason,
		Lock:            f.Lock,
		LockedAt:        f.LockedAt,
		OwnerID:         f.OwnerID,
		GroupID:         f.GroupID,
		ListenChannelID: f.ListenChannelID,
		TimesOutAt:      f.TimesOutAt,
	}
}

func fromJob(j *job.Job) jobFields {
	status := j.Status
	if status == job.Unknown {
		status = job.Queued
	}
	return jobFields{
		ID:              j.ID,
		Status:          status,
		Priority:        j.Priority,
		Data:            j.Data,
		CreatedAt:       j.CreatedAt,
		FinishedAt:      j.FinishedAt,
		ReturnValue:     j.ReturnValue,
		FailedReason:    j.FailedReason,
		Lock:            j.Lock,
		LockedAt:        j.LockedAt,
		OwnerID:         j.OwnerID,
		GroupID:         j.GroupID,
		ListenChannelID: j.ListenChannelID,
		TimesOutAt:      j.TimesOutAt,
	}
}

type groupModel struct {
	bun.BaseModel `bun:"table:groups,alias:g"`

	ID         uuid.UUID    `bun:"id,pk,type:uuid"`
	OwnerID    uuid.UUID    `bun:"owner_id,type:uuid"`
	Status     group.Status `bun:"status,notnull"`
	CreatedAt  time.Time    `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	FinishedAt *time.Time   `bun:"finished_at"`
	ExpiresAt  time.Time    `bun:"expires_at,notnull"`
	TTLMillis  int64        `bun:"ttl,notnull"`
}

func (m *groupModel) toGroup() *group.Group {
	return &group.Group{
		ID:         m.ID,
		OwnerID:    m.OwnerID,
		Status:     m.Status,
		CreatedAt:  m.CreatedAt,
		FinishedAt: m.FinishedAt,
		ExpiresAt:  m.ExpiresAt,
		TTL:        time.Duration(m.TTLMillis) * time.Millisecond,
	}
}

func fromGroup(g *group.Group) *groupModel {
	status := g.Status
	if status == group.Unknown {
		status = group.Active
	}
	return &groupModel{
		ID:         g.ID,
		OwnerID:    g.OwnerID,
		Status:     status,
		CreatedAt:  g.CreatedAt,
		FinishedAt: g.FinishedAt,
		ExpiresAt:  g.ExpiresAt,
		TTLMillis:  g.TTL.Milliseconds(),
	}
}

// ownerConcurrencyModel is the one-row-per-owner counter table the
// Accountant consults and updates atomically with every dispatch and
// termination statement.
type ownerConcurrencyModel struct {
	bun.BaseModel `bun:"table:owner_concurrency,alias:oc"`

	ID                 uuid.UUID `bun:"id,pk,type:uuid"`
	MaxConcurrency     *int      `bun:"max_concurrency"`
	CurrentConcurrency int       `bun:"current_concurrency,notnull,default:0"`
}

// groupConcurrencyModel is keyed by (group_id, queue_name) so that the
// side-queues spec.md §1 mentions (billing/index/webhook) can reuse the
// same group_concurrency table without colliding on caps.
type groupConcurrencyModel struct {
	bun.BaseModel `bun:"table:group_concurrency,alias:gc"`

	GroupID            uuid.UUID `bun:"group_id,pk,type:uuid"`
	Queue              string    `bun:"queue_name,pk"`
	MaxConcurrency     *int      `bun:"max_concurrency"`
	CurrentConcurrency int       `bun:"current_concurrency,notnull,default:0"`
}
