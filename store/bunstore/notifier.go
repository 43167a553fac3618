package bunstore

import (
	"context"
	"time"

	"github.com/lib/pq"

	"github.com/scrapeloop/queue"
)

// Notifier wraps *pq.Listener to back the waiter package's listen mode
// (spec.md §4.F) with Postgres LISTEN/NOTIFY instead of polling. It
// satisfies waiter.Source directly, pumping pq.Notification.Extra
// (the "<jobId>|<status>" payload Queue.notifyDone stamps via
// Store.Notify) into a plain string channel.
//
// Grounded on the pack's worker-coordinator note that running-job
// cancellation/completion signals travel over "LISTEN/NOTIFY" to a
// channel workers select on.
type Notifier struct {
	listener *pq.Listener
	out      chan string
}

// NewNotifier opens a dedicated LISTEN connection against dsn and
// subscribes to channel immediately. minReconnect/maxReconnect mirror
// pq.NewListener's own backoff knobs; callers outside tests should
// pass something like (10s, time.Minute).
func NewNotifier(dsn, channel string, minReconnect, maxReconnect time.Duration) (*Notifier, error) {
	listener := pq.NewListener(dsn, minReconnect, maxReconnect, nil)
	if err := listener.Listen(channel); err != nil {
		_ = listener.Close()
		return nil, err
	}
	n := &Notifier{
		listener: listener,
		out:      make(chan string, 64),
	}
	go n.pump()
	return n, nil
}

func (n *Notifier) pump() {
	defer close(n.out)
	for note := range n.listener.Notify {
		if note == nil {
			// pq.Listener sends a nil notification after it
			// reconnects, to tell callers they may have missed
			// notifications in between. There is nothing
			// actionable to forward; waiters simply rely on their
			// own store re-read on subscribe to close that gap.
			continue
		}
		n.out <- note.Extra
	}
}

// Notifications satisfies waiter.Source, delivering each NOTIFY
// payload as a plain string.
func (n *Notifier) Notifications() <-chan string {
	return n.out
}

// Close releases the dedicated LISTEN connection.
func (n *Notifier) Close() error {
	return n.listener.Close()
}

// Notify issues NOTIFY channel, payload over the store's regular
// connection pool. A no-op on the SQLite test dialect, which has no
// LISTEN/NOTIFY equivalent; waiter falls back to poll mode there.
func (s *Store) Notify(ctx context.Context, channel string, payload string) error {
	if s.dialect != dialectPostgres {
		return nil
	}
	_, err := s.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", channel, payload)
	return err
}

var _ queue.Notifier = (*Store)(nil)
