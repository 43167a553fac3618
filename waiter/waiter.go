package waiter

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/scrapeloop/queue/job"
)

// Waiter blocks until a job reaches a terminal state (Completed or
// Failed) or timeout elapses, whichever comes first.
type Waiter interface {
	// WaitForJob returns the terminal job once it is Completed or
	// Failed. It returns queue.ErrTimeout if timeout elapses first, or
	// (nil, nil) if no job with that id exists.
	WaitForJob(ctx context.Context, id uuid.UUID, timeout time.Duration) (*job.Job, error)
}

// Store is the minimal store.Store surface a Waiter needs: a
// read-only job lookup. store.Store satisfies this directly.
type Store interface {
	GetJob(ctx context.Context, id uuid.UUID) (*job.Job, error)
}
