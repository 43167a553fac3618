package bus

import (
	"context"

	"github.com/streadway/amqp"

	"github.com/scrapeloop/queue/waiter"
)

// listenQueueArgs gives each Listener's private queue a TTL so an
// abandoned Listener (process crashed without calling Stop) doesn't
// leave an orphaned binding alive on the broker forever.
var listenQueueArgs = amqp.Table{
	"x-message-ttl": int32(60000),
}

// Listener implements waiter.Source over the fanout exchange a
// Notifier publishes job-done events to: an exclusive, auto-delete
// queue bound to that exchange, consumed into a single output channel
// shared by every concurrent waiter.Listener.WaitForJob call in this
// process (the fan-out across individual job ids happens in-process,
// in waiter.Listener's registry, not via separate AMQP queues per
// channel id).
type Listener struct {
	session  *Session
	exchange string

	out    chan string
	cancel context.CancelFunc
	done   chan struct{}
}

// NewListener builds a Listener consuming exchange over session.
func NewListener(session *Session, exchange string) *Listener {
	return &Listener{session: session, exchange: exchange, out: make(chan string, 64)}
}

// Start declares the exchange/queue/binding and begins consuming.
func (l *Listener) Start(ctx context.Context) error {
	ch := l.session.Channel()
	if err := ch.ExchangeDeclare(l.exchange, "fanout", true, false, false, false, nil); err != nil {
		return err
	}
	q, err := ch.QueueDeclare("", false, true, true, false, listenQueueArgs)
	if err != nil {
		return err
	}
	if err := ch.QueueBind(q.Name, "", l.exchange, false, nil); err != nil {
		return err
	}
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return err
	}
	ctx, l.cancel = context.WithCancel(ctx)
	l.done = make(chan struct{})
	go l.pump(ctx, deliveries)
	return nil
}

func (l *Listener) pump(ctx context.Context, deliveries <-chan amqp.Delivery) {
	defer close(l.done)
	defer close(l.out)
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			select {
			case l.out <- string(d.Body):
			case <-ctx.Done():
				return
			}
		}
	}
}

// Notifications satisfies waiter.Source.
func (l *Listener) Notifications() <-chan string {
	return l.out
}

// Stop cancels the consume loop.
func (l *Listener) Stop() {
	if l.cancel != nil {
		l.cancel()
		<-l.done
	}
}

var _ waiter.Source = (*Listener)(nil)
