// Package job defines the stateful representation of a scrape job within
// the queue lifecycle.
//
// A Job is a single unit of scrape work: an opaque payload (Data) plus
// delivery state (Status, Lock, LockedAt) and scheduling metadata
// (Priority, TimesOutAt, GroupID, OwnerID). It is the authoritative row
// shape returned by Dispatch, GetJob and ListJobs.
//
// Job is not intended to be constructed manually by caller code beyond
// AddJob/AddJobs; its fields reflect storage state maintained by the
// queue backend.
package job
