package group

import (
	"time"

	"github.com/google/uuid"
)

// ConcurrencySetting declares a per-queue concurrency cap to install
// for a group at creation time. A nil Max means unlimited.
type ConcurrencySetting struct {
	Queue string
	Max   *int
}

// Group is a logical batch of related jobs sharing a TTL and an owner.
//
// Expiry (ExpiresAt) is informational for the garbage collector; Status
// drives behavior. FinishedAt is set once Status leaves Active.
type Group struct {
	ID         uuid.UUID
	OwnerID    uuid.UUID
	Status     Status
	CreatedAt  time.Time
	FinishedAt *time.Time
	ExpiresAt  time.Time
	TTL        time.Duration
}
