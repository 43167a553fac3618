package queue_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/scrapeloop/queue"
	"github.com/scrapeloop/queue/store"
	"github.com/scrapeloop/queue/store/bunstore"
)

func newTestStore(t *testing.T) *bunstore.Store {
	t.Helper()
	s, err := bunstore.NewSQLiteStore("", "testqueue")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestQueue builds a Queue with fast-ticking background tasks
// suitable for exercising Reaper/GroupSweeper/Retention within a test
// timeout, wired against an in-memory SQLite store. bridge/notify may
// be nil.
func newTestQueue(t *testing.T, bridge queue.Bridge, notify queue.Notifier) (*queue.Queue, *bunstore.Store) {
	t.Helper()
	s := newTestStore(t)
	q := queue.New(s, bridge, notify, queue.Config{
		Name:               "testqueue",
		Limit:              store.ConcurrencyOff,
		Lease:              50 * time.Millisecond,
		PrefetchInterval:   10 * time.Millisecond,
		PrefetchBatch:      10,
		ReapInterval:       10 * time.Millisecond,
		GroupSweepInterval: 10 * time.Millisecond,
		RetentionInterval:  10 * time.Millisecond,
		RetentionAge:       0,
	}, testLogger())
	return q, s
}
