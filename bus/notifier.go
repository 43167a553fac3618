package bus

import (
	"context"

	"github.com/streadway/amqp"

	"github.com/scrapeloop/queue"
)

// Notifier implements queue.Notifier by publishing to a fanout
// exchange named after the channel, the AMQP counterpart to
// bunstore.Store.Notify's pg_notify. Queue.JobFinish/JobFail call this
// after a terminal transition commits.
type Notifier struct {
	session *Session
}

// NewNotifier builds a Notifier publishing over session.
func NewNotifier(session *Session) *Notifier {
	return &Notifier{session: session}
}

// Notify declares (idempotently) a durable fanout exchange named
// channel and publishes payload to it with no routing key, so every
// bound Listener queue receives a copy. ctx is accepted for interface
// symmetry with store.Notify but unused: the underlying amqp.Channel
// API has no context-aware publish call.
func (n *Notifier) Notify(ctx context.Context, channel string, payload string) error {
	ch := n.session.Channel()
	if err := ch.ExchangeDeclare(channel, "fanout", true, false, false, false, nil); err != nil {
		return err
	}
	return ch.Publish(channel, "", false, false, amqp.Publishing{
		Body: []byte(payload),
	})
}

var _ queue.Notifier = (*Notifier)(nil)
