package waiter

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/scrapeloop/queue"
	"github.com/scrapeloop/queue/job"
)

// DefaultPollInterval is used when Poller is constructed with a
// zero interval.
const DefaultPollInterval = 500 * time.Millisecond

// Poller implements Waiter by re-reading the job from store on a fixed
// tick until it reaches a terminal state or the wait times out.
// Grounded on the same periodic-recheck idiom the teacher's
// CleanWorker runs in the background, here run synchronously inline
// in WaitForJob rather than as a started background task, since a
// single wait call has no independent lifecycle of its own.
type Poller struct {
	store    Store
	interval time.Duration
}

// NewPoller builds a Poller reading from store, ticking every
// interval. interval <= 0 uses DefaultPollInterval.
func NewPoller(store Store, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{store: store, interval: interval}
}

func (p *Poller) WaitForJob(ctx context.Context, id uuid.UUID, timeout time.Duration) (*job.Job, error) {
	j, err := p.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if j == nil || j.IsTerminal() {
		return j, nil
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, queue.ErrTimeout
		case <-ticker.C:
			j, err := p.store.GetJob(ctx, id)
			if err != nil {
				return nil, err
			}
			if j == nil || j.IsTerminal() {
				return j, nil
			}
		}
	}
}

var _ Waiter = (*Poller)(nil)
