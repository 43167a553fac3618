// Package waiter lets a producer block until a job it enqueued reaches
// a terminal state, without the caller having to poll the Worker API
// itself.
//
// Two implementations satisfy Waiter:
//
//   - Poller ticks on an interval and re-reads the job from the store
//     until it is terminal or the wait times out. It works against any
//     store.Store and needs no extra infrastructure, at the cost of up
//     to one tick of added latency.
//
//   - Listener wakes immediately on an out-of-band notification (AMQP
//     listen queue or Postgres LISTEN/NOTIFY, see Source), falling
//     back to a single re-read of the store to close the race between
//     a job finishing and the waiter subscribing.
package waiter
