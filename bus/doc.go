// Package bus implements the Prefetch Bridge and Waiter Source backed
// by github.com/streadway/amqp. It is deliberately small: a Session
// owns one reconnecting AMQP connection/channel pair, Bridge publishes
// dispatched job ids onto a durable work queue and pops them back off
// non-blockingly, and Listener consumes a per-producer listen queue to
// feed waiter.Listener.
//
// Nothing here is grounded on a concrete teacher or pack AMQP
// implementation — the pack's own manifest for punitwa-newsss lists
// streadway/amqp as a dependency but none of the retrieved pack files
// contain its usage, so the wiring below follows the client's own
// idiomatic usage patterns. The reconnect/backoff shape is grounded on
// the teacher's backoff.go (BackoffConfig/backoffCounter), and the
// session lifecycle on the teacher's lcBase + internal.TimerTask guard.
package bus
