package bunstore_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/scrapeloop/queue/job"
	"github.com/scrapeloop/queue/store"
)

func TestStoreGetJobChecksBacklogToo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner := uuid.New()
	backlog := &job.Job{ID: uuid.New(), Status: job.Backlog, OwnerID: owner}
	if err := s.AddJob(ctx, backlog); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetJob(ctx, backlog.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Status != job.Backlog {
		t.Fatalf("got %+v, want Backlog job", got)
	}
}

func TestStoreGetJobMissingReturnsNilNil(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetJob(context.Background(), uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}

func TestStoreListJobsFiltersByStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := uuid.New()

	queued := &job.Job{ID: uuid.New(), Status: job.Queued, OwnerID: owner}
	backlog := &job.Job{ID: uuid.New(), Status: job.Backlog, OwnerID: owner}
	if err := s.AddJob(ctx, queued); err != nil {
		t.Fatal(err)
	}
	if err := s.AddJob(ctx, backlog); err != nil {
		t.Fatal(err)
	}

	queuedRows, err := s.ListJobs(ctx, job.Queued, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(queuedRows) != 1 || queuedRows[0].ID != queued.ID {
		t.Fatalf("ListJobs(Queued) = %+v, want just %s", queuedRows, queued.ID)
	}

	backlogRows, err := s.ListJobs(ctx, job.Backlog, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(backlogRows) != 1 || backlogRows[0].ID != backlog.ID {
		t.Fatalf("ListJobs(Backlog) = %+v, want just %s", backlogRows, backlog.ID)
	}
}

func TestStoreListJobsRespectsLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := uuid.New()

	for i := 0; i < 3; i++ {
		j := &job.Job{ID: uuid.New(), Status: job.Queued, OwnerID: owner}
		if err := s.AddJob(ctx, j); err != nil {
			t.Fatal(err)
		}
	}

	rows, err := s.ListJobs(ctx, job.Queued, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("ListJobs limit=2 returned %d rows", len(rows))
	}
}

func TestStoreSnapshotCountsAcrossTables(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := uuid.New()

	queued := &job.Job{ID: uuid.New(), Status: job.Queued, OwnerID: owner}
	backlog := &job.Job{ID: uuid.New(), Status: job.Backlog, OwnerID: owner}
	if err := s.AddJob(ctx, queued); err != nil {
		t.Fatal(err)
	}
	if err := s.AddJob(ctx, backlog); err != nil {
		t.Fatal(err)
	}

	snap, err := s.Snapshot(ctx, store.ConcurrencyOff)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Counts[job.Queued] != 1 {
		t.Errorf("Queued count = %d, want 1", snap.Counts[job.Queued])
	}
	if snap.Counts[job.Backlog] != 1 {
		t.Errorf("Backlog count = %d, want 1", snap.Counts[job.Backlog])
	}
	if snap.ConcurrencyLimited != 0 {
		t.Errorf("ConcurrencyLimited = %d, want 0 when limit is off", snap.ConcurrencyLimited)
	}
}

func TestStoreSnapshotConcurrencyLimitedCountsOverflow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := uuid.New()

	for i := 0; i < 3; i++ {
		j := &job.Job{ID: uuid.New(), Status: job.Queued, OwnerID: owner}
		if err := s.AddJob(ctx, j); err != nil {
			t.Fatal(err)
		}
	}

	snap, err := s.Snapshot(ctx, store.ConcurrencyPerOwner)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Counts[job.Queued] != 3 {
		t.Errorf("Queued count = %d, want 3", snap.Counts[job.Queued])
	}
	// The owner has never been dispatched, so it has no
	// owner_concurrency row; partitionSlots treats that as zero slots
	// rather than self-healing (a read-only snapshot must not mutate
	// state), so every queued job for this owner counts as limited.
	if snap.ConcurrencyLimited != 3 {
		t.Errorf("ConcurrencyLimited = %d, want 3 (owner has no resolved slots yet)", snap.ConcurrencyLimited)
	}
}
