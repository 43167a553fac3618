// Package queue implements a durable, storage-backed job queue for a
// distributed web-scraping platform.
//
// # Overview
//
// queue models a durable job queue with explicit state transitions
// and at-least-once delivery semantics. Unlike an in-process worker
// pool, the consumers here are external scrape-worker processes: they
// call the Worker API (GetJobToProcess, RenewLock, JobFinish,
// JobFail) themselves, rather than registering a handler with the
// queue. The Queue's job is to pick, lease, and account for work, not
// to run it.
//
// The package does not mandate any particular storage backend; it is
// built against the store.Store interface, implemented for Postgres
// (production) and SQLite (tests) in store/bunstore.
//
// # Delivery semantics
//
// queue provides at-least-once processing guarantees. A job may be
// delivered more than once if a worker crashes before finishing it or
// its lease expires before RenewLock is called. Worker logic must
// therefore be idempotent.
//
// # Visibility timeout (lease model)
//
// When a job is dispatched it transitions Queued -> Active and
// receives a lease: Lock identifies the current owner, LockedAt marks
// when the lease was last renewed. While the lease is valid the job
// is not eligible for re-dispatch. Reaper flips expired leases back to
// Queued.
//
// # Concurrency accounting
//
// Dispatch honors per-owner and, optionally, per-owner-per-group
// concurrency ceilings maintained in owner_concurrency/
// group_concurrency, so that one tenant's backlog cannot starve
// others' dispatch slots. See store.ConcurrencyLimit.
//
// # Groups and cancellation
//
// Jobs may belong to a Group (a crawl). CancelGroup transactionally
// fails every still-Queued member with reason "CANCELLED"; Active
// members run to completion. Groups expire on their own TTL and are
// swept once all member jobs have terminated.
//
// # Background tasks
//
// Queue owns three independent periodic tasks, each following the
// start/stop lifecycle defined by lcBase: Dispatcher (prefetches
// dispatched jobs), Reaper (reclaims expired leases), GroupSweeper
// (deletes expired, fully-terminated groups). A fourth, Retention,
// trims completed/failed jobs past a short retention window.
package queue
