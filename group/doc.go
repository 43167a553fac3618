// Package group defines the logical grouping of related jobs (typically
// all scrapes belonging to one crawl).
//
// A Group shares a TTL and an owner across its member jobs and supports
// bulk, transactional cancellation of its still-queued members via the
// queue package's CancelGroup.
package group
