package queue

import (
	"context"
	"time"

	"github.com/scrapeloop/queue/internal"
)

// GroupSweeper periodically deletes Group rows whose TTL has elapsed
// and whose member jobs have all reached a terminal state. A group
// with outstanding Queued or Active members is left alone regardless
// of age: SweepExpiredGroups never cancels in-flight work, it only
// garbage-collects bookkeeping for groups that are already done.
//
// Grounded on the teacher's CleanWorker, same as Reaper.
type GroupSweeper struct {
	lcBase
	q    *Queue
	task internal.TimerTask
}

func newGroupSweeper(q *Queue) *GroupSweeper {
	return &GroupSweeper{q: q}
}

func (s *GroupSweeper) tick(ctx context.Context) {
	n, err := s.q.store.SweepExpiredGroups(ctx, time.Now())
	if err != nil {
		s.q.log.Error("sweep expired groups failed", "err", err)
		return
	}
	if n > 0 {
		s.q.log.Info("swept expired groups", "count", n)
	}
}

// Start begins the periodic sweep loop.
func (s *GroupSweeper) Start(ctx context.Context) error {
	if err := s.tryStart(); err != nil {
		return err
	}
	s.task.Start(ctx, s.tick, s.q.config.GroupSweepInterval)
	return nil
}

// Stop terminates the periodic sweep loop.
func (s *GroupSweeper) Stop(timeout time.Duration) error {
	return s.tryStop(timeout, s.task.Stop)
}
