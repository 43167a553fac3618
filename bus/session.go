package bus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/scrapeloop/queue"
)

// DefaultBackoff mirrors spec.md §4.H's "250ms initial, ~3s cap"
// reconnect shape, the same config the teacher's worker retry path
// used for handler retries.
var DefaultBackoff = queue.BackoffConfig{
	MaxRetries:          0,
	InitialInterval:     250 * time.Millisecond,
	MaxInterval:         3 * time.Second,
	Multiplier:          2,
	RandomizationFactor: 0.2,
}

// Session owns one reconnecting AMQP connection/channel pair. Bridge
// and Listener both hold a *Session rather than dialing for
// themselves, so a single queue can share one connection across both
// roles.
type Session struct {
	url     string
	backoff queue.BackoffConfig
	log     *slog.Logger

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSession builds a Session against the given AMQP url. Dial is not
// attempted until Start is called.
func NewSession(url string, backoff queue.BackoffConfig, log *slog.Logger) *Session {
	return &Session{url: url, backoff: backoff, log: log}
}

// Start connects and begins the background reconnect-on-close watcher.
func (s *Session) Start(ctx context.Context) error {
	if err := s.connect(); err != nil {
		return err
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.watch(ctx)
	return nil
}

// Stop closes the underlying connection and stops the watcher.
func (s *Session) Stop() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *Session) connect() error {
	conn, err := amqp.Dial(s.url)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}
	s.mu.Lock()
	s.conn = conn
	s.channel = ch
	s.mu.Unlock()
	return nil
}

// Channel returns the current channel. Callers must re-fetch it after
// an operation fails with amqp.ErrClosed rather than caching it across
// a reconnect.
func (s *Session) Channel() *amqp.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channel
}

func (s *Session) watch(ctx context.Context) {
	defer close(s.done)
	var attempt uint32
	for {
		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()
		closeNotify := conn.NotifyClose(make(chan *amqp.Error, 1))
		select {
		case <-ctx.Done():
			return
		case err, ok := <-closeNotify:
			if !ok {
				return
			}
			s.log.Warn("bus connection closed, reconnecting", "err", err)
		}
		counter := queue.BackoffCounter{BackoffConfig: s.backoff}
		for {
			attempt++
			delay, more := counter.Next(attempt)
			if !more {
				s.log.Error("bus reconnect retries exhausted")
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			if err := s.connect(); err != nil {
				s.log.Warn("bus reconnect attempt failed", "attempt", attempt, "err", err)
				continue
			}
			attempt = 0
			break
		}
	}
}
