package bus

import (
	"github.com/streadway/amqp"

	"github.com/scrapeloop/queue"
)

// queueArgs are the durable quorum-queue arguments spec.md §4.D calls
// for: quorum replication for durability across broker restarts, and a
// bounded length so a stalled consumer fleet can't grow the queue
// without limit.
var queueArgs = amqp.Table{
	"x-queue-type": "quorum",
	"x-max-length": int32(20000),
}

// messageExpiration is the per-message TTL (ms, as AMQP requires a
// string) applied to every published job id: a job waiting this long
// in the bus without being picked up is presumed already served by the
// CTE fallback path, so the bus copy is simply dropped.
const messageExpiration = "15000"

// Sender implements queue.Bridge against a durable AMQP work queue: it
// is the "publish" half of component H (Listener/Sender sessions).
// Grounded on the teacher's Puller pump shape, repointed at publishing
// instead of pulling for a local handler.
type Sender struct {
	session   *Session
	queueName string
}

// NewSender builds a Sender publishing to, and popping from, queueName
// over session.
func NewSender(session *Session, queueName string) *Sender {
	return &Sender{session: session, queueName: queueName}
}

func (s *Sender) declareQueue(ch *amqp.Channel) error {
	_, err := ch.QueueDeclare(s.queueName, true, false, false, false, queueArgs)
	return err
}

// Publish pushes id onto the durable work queue. A failure here must
// never fail the caller's dispatch (spec.md §9): the job is already
// Active in the store, so the worst case is a worker finding it via
// the CTE fallback instead of the bus.
func (s *Sender) Publish(id string) error {
	ch := s.session.Channel()
	if err := s.declareQueue(ch); err != nil {
		return err
	}
	return ch.Publish("", s.queueName, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Expiration:   messageExpiration,
		Body:         []byte(id),
	})
}

// TryGet performs a non-blocking basic.get against the work queue.
// Acknowledgment is immediate (autoAck): the bus is a prefetch hint,
// not the system of record — job ownership and visibility timeout are
// enforced entirely by store.Store.Dispatch, which already flipped
// this job to Active before it was ever published.
func (s *Sender) TryGet() (string, bool, error) {
	ch := s.session.Channel()
	if err := s.declareQueue(ch); err != nil {
		return "", false, err
	}
	msg, ok, err := ch.Get(s.queueName, true)
	if err != nil || !ok {
		return "", false, err
	}
	return string(msg.Body), true, nil
}

var _ queue.Bridge = (*Sender)(nil)
