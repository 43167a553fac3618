package waiter

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/scrapeloop/queue"
	"github.com/scrapeloop/queue/internal"
	"github.com/scrapeloop/queue/job"
)

const (
	stopped = iota
	started
)

// Source delivers out-of-band job-done notifications, keyed by job
// id. Two concrete implementations back it: bus.Listener (consuming
// an exclusive AMQP queue bound to a fanout exchange) and
// bunstore.Notifier (wrapping pq.Listener over Postgres
// LISTEN/NOTIFY). A nil Source is never passed to NewListener;
// callers without either transport should use Poller instead.
type Source interface {
	// Notifications returns a channel emitting "<jobId>|<status>"
	// payloads as jobs finish (only the part before "|" is used). The
	// channel is closed when the source itself is closed.
	Notifications() <-chan string
}

// Listener implements Waiter by keeping an in-process registry of
// channels keyed by job id, woken by a background goroutine draining
// Source.Notifications. This is new relative to the teacher (which
// had no waiter at all), modeled on the ordinary fan-out registry
// idiom rather than any one teacher file.
//
// Registration always re-reads the store once immediately after
// subscribing, closing the race between a job finishing and
// WaitForJob's subscription: a notification published between the
// first store read and the subscribe would otherwise be missed
// forever, since Source delivers live events only, not history.
type Listener struct {
	state  atomic.Int32
	store  Store
	source Source
	log    *slog.Logger

	mu      sync.Mutex
	waiters map[uuid.UUID][]chan struct{}

	cancel context.CancelFunc
	done   internal.DoneChan
}

// NewListener builds a Listener reading job state from store and
// waking on notifications from source.
func NewListener(store Store, source Source, log *slog.Logger) *Listener {
	return &Listener{
		store:   store,
		source:  source,
		log:     log,
		waiters: make(map[uuid.UUID][]chan struct{}),
	}
}

// Start begins draining Source.Notifications in the background.
// Returns queue.ErrDoubleStarted if already running.
func (l *Listener) Start(ctx context.Context) error {
	if !l.state.CompareAndSwap(stopped, started) {
		return queue.ErrDoubleStarted
	}
	ctx, l.cancel = context.WithCancel(ctx)
	l.done = make(internal.DoneChan)
	go l.pump(ctx)
	return nil
}

// Stop terminates the background drain loop, waiting up to timeout.
// Returns queue.ErrDoubleStopped if not running, or queue.ErrStopTimeout
// if the drain loop does not exit in time.
func (l *Listener) Stop(timeout time.Duration) error {
	if !l.state.CompareAndSwap(started, stopped) {
		return queue.ErrDoubleStopped
	}
	l.cancel()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-l.done:
		return nil
	case <-timer.C:
		return queue.ErrStopTimeout
	}
}

func (l *Listener) pump(ctx context.Context) {
	defer close(l.done)
	notifications := l.source.Notifications()
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-notifications:
			if !ok {
				return
			}
			rawID, _, _ := strings.Cut(raw, "|")
			id, err := uuid.Parse(rawID)
			if err != nil {
				l.log.Warn("waiter: malformed notification payload", "payload", raw, "err", err)
				continue
			}
			l.wake(id)
		}
	}
}

func (l *Listener) wake(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ch := range l.waiters[id] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	delete(l.waiters, id)
}

func (l *Listener) register(id uuid.UUID) chan struct{} {
	ch := make(chan struct{}, 1)
	l.mu.Lock()
	l.waiters[id] = append(l.waiters[id], ch)
	l.mu.Unlock()
	return ch
}

func (l *Listener) unregister(id uuid.UUID, ch chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	subs := l.waiters[id]
	for i, c := range subs {
		if c == ch {
			l.waiters[id] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(l.waiters[id]) == 0 {
		delete(l.waiters, id)
	}
}

func (l *Listener) WaitForJob(ctx context.Context, id uuid.UUID, timeout time.Duration) (*job.Job, error) {
	j, err := l.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if j == nil || j.IsTerminal() {
		return j, nil
	}

	ch := l.register(id)
	defer l.unregister(id, ch)

	// Close the subscribe race: the job may have finished between the
	// read above and this subscription taking effect.
	j, err = l.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if j == nil || j.IsTerminal() {
		return j, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, queue.ErrTimeout
	case <-ch:
		return l.store.GetJob(ctx, id)
	}
}

var _ Waiter = (*Listener)(nil)
