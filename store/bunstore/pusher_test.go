package bunstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/scrapeloop/queue/job"
	storepkg "github.com/scrapeloop/queue/store"
)

func TestTryAddJobReportsConflictWithoutError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := uuid.New()
	j := &job.Job{ID: id, Status: job.Queued, CreatedAt: time.Now()}

	ok, err := s.TryAddJob(ctx, j)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected first insert to succeed")
	}

	dup := &job.Job{ID: id, Status: job.Queued, CreatedAt: time.Now()}
	ok, err = s.TryAddJob(ctx, dup)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected duplicate id to be reported as (false, nil)")
	}
}

func TestAddJobRejectsConflictAsError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := uuid.New()
	if err := s.AddJob(ctx, &job.Job{ID: id, Status: job.Queued, CreatedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}

	err := s.AddJob(ctx, &job.Job{ID: id, Status: job.Queued, CreatedAt: time.Now()})
	if err == nil {
		t.Fatal("expected a conflict error")
	}
	if !storepkg.IsConflict(err) {
		t.Fatalf("expected IsConflict(err) to be true, got %v", err)
	}
}

func TestPromoteBacklogOrdersAndMoves(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	a := &job.Job{ID: uuid.New(), Status: job.Backlog, Priority: 5, CreatedAt: now}
	b := &job.Job{ID: uuid.New(), Status: job.Backlog, Priority: 1, CreatedAt: now.Add(time.Second)}
	if err := s.AddJob(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := s.AddJob(ctx, b); err != nil {
		t.Fatal(err)
	}

	counts, err := s.Snapshot(ctx, storepkg.ConcurrencyOff)
	if err != nil {
		t.Fatal(err)
	}
	if counts.Counts[job.Backlog] != 2 {
		t.Fatalf("expected 2 backlog jobs, got %d", counts.Counts[job.Backlog])
	}

	n, err := s.PromoteBacklog(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 job promoted, got %d", n)
	}

	promoted, err := s.GetJob(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if promoted == nil || promoted.Status != job.Queued {
		t.Fatalf("expected the lower-priority-number job (b) promoted to Queued, got %+v", promoted)
	}

	stillBacklog, err := s.GetJob(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stillBacklog == nil || stillBacklog.Status != job.Backlog {
		t.Fatalf("expected a to remain in backlog, got %+v", stillBacklog)
	}
}

func TestAddJobsIsAllOrNothing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	dupID := uuid.New()
	if err := s.AddJob(ctx, &job.Job{ID: dupID, Status: job.Queued, CreatedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}

	jobs := []*job.Job{
		{ID: uuid.New(), Status: job.Queued, CreatedAt: time.Now()},
		{ID: dupID, Status: job.Queued, CreatedAt: time.Now()}, // conflicts
	}
	err := s.AddJobs(ctx, jobs)
	if err == nil {
		t.Fatal("expected a conflict error for the batch")
	}

	got, err := s.GetJob(ctx, jobs[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("expected the whole batch to be rolled back, including the non-conflicting row")
	}
}
