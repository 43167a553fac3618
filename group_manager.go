package queue

import (
	"context"

	"github.com/google/uuid"

	"github.com/scrapeloop/queue/group"
)

// AddGroup registers g along with any per-queue concurrency caps
// declared in settings. Member jobs join the group by setting
// job.Job.GroupID before calling AddJob/AddJobs.
func (q *Queue) AddGroup(ctx context.Context, g *group.Group, settings []group.ConcurrencySetting) error {
	return q.store.AddGroup(ctx, g, settings)
}

// GetGroup returns g by id, or (nil, nil) if it does not exist.
func (q *Queue) GetGroup(ctx context.Context, id uuid.UUID) (*group.Group, error) {
	return q.store.GetGroup(ctx, id)
}

// GetOngoingByOwner lists ownerID's still-Active groups.
func (q *Queue) GetOngoingByOwner(ctx context.Context, ownerID uuid.UUID) ([]*group.Group, error) {
	return q.store.GetOngoingByOwner(ctx, ownerID)
}

// CancelGroup flips id from Active to Cancelled and fails every
// still-Queued member job with CancelledReason. Active (already
// dispatched) members are left to run to completion or lease expiry;
// cancellation only withdraws work that has not started. Returns false
// if the group was already terminal or does not exist.
func (q *Queue) CancelGroup(ctx context.Context, id uuid.UUID) (bool, error) {
	return q.store.CancelGroup(ctx, id)
}
