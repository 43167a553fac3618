package queue

import "context"

// Health reports whether the underlying store is reachable, issuing a
// trivial round trip (store.Store.Ping, "SELECT 1" in the bun-backed
// implementation).
func (q *Queue) Health(ctx context.Context) error {
	return q.store.Ping(ctx)
}
