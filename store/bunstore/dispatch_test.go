package bunstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/scrapeloop/queue/job"
	storepkg "github.com/scrapeloop/queue/store"
)

func TestDispatchOrdersByPriorityThenCreatedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := uuid.New()
	now := time.Now()

	low := &job.Job{ID: uuid.New(), Status: job.Queued, Priority: 5, OwnerID: owner, CreatedAt: now}
	high := &job.Job{ID: uuid.New(), Status: job.Queued, Priority: 1, OwnerID: owner, CreatedAt: now.Add(time.Second)}
	if err := s.AddJob(ctx, low); err != nil {
		t.Fatal(err)
	}
	if err := s.AddJob(ctx, high); err != nil {
		t.Fatal(err)
	}

	picked, err := s.Dispatch(ctx, 1, time.Minute, storepkg.ConcurrencyOff)
	if err != nil {
		t.Fatal(err)
	}
	if len(picked) != 1 {
		t.Fatalf("expected 1 job, got %d", len(picked))
	}
	if picked[0].ID != high.ID {
		t.Fatalf("expected lower-priority-number job dispatched first, got %v", picked[0].ID)
	}
	if picked[0].Status != job.Active {
		t.Fatalf("expected Active, got %v", picked[0].Status)
	}
	if picked[0].Lock == nil {
		t.Fatal("expected a lock to be assigned")
	}
}

func TestDispatchRespectsPerOwnerConcurrency(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := uuid.New()

	for i := 0; i < 3; i++ {
		j := &job.Job{ID: uuid.New(), Status: job.Queued, OwnerID: owner, CreatedAt: time.Now()}
		if err := s.AddJob(ctx, j); err != nil {
			t.Fatal(err)
		}
	}

	// First dispatch self-heals the owner_concurrency row via the
	// SQLite ResolveMaxConcurrency hook, which defaults to nil (fail
	// closed to zero) unless set, so wire an explicit cap for this test.
	s.ResolveMaxConcurrency = func(ctx context.Context, ownerID uuid.UUID) (*int, error) {
		v := 2
		return &v, nil
	}

	picked, err := s.Dispatch(ctx, 10, time.Minute, storepkg.ConcurrencyPerOwner)
	if err != nil {
		t.Fatal(err)
	}
	if len(picked) != 2 {
		t.Fatalf("expected dispatch capped at 2 by owner_concurrency, got %d", len(picked))
	}

	// With all slots consumed, a second dispatch call picks up nothing
	// more until a job finishes and decrements the counter.
	more, err := s.Dispatch(ctx, 10, time.Minute, storepkg.ConcurrencyPerOwner)
	if err != nil {
		t.Fatal(err)
	}
	if len(more) != 0 {
		t.Fatalf("expected 0 further dispatches while owner is at capacity, got %d", len(more))
	}

	ok, err := s.JobFinish(ctx, picked[0].ID, *picked[0].Lock, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected JobFinish to succeed")
	}

	freed, err := s.Dispatch(ctx, 10, time.Minute, storepkg.ConcurrencyPerOwner)
	if err != nil {
		t.Fatal(err)
	}
	if len(freed) != 1 {
		t.Fatalf("expected 1 slot freed after JobFinish, got %d", len(freed))
	}
}

func TestDispatchFailsClosedWithNoResolver(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := uuid.New()
	j := &job.Job{ID: uuid.New(), Status: job.Queued, OwnerID: owner, CreatedAt: time.Now()}
	if err := s.AddJob(ctx, j); err != nil {
		t.Fatal(err)
	}

	picked, err := s.Dispatch(ctx, 10, time.Minute, storepkg.ConcurrencyPerOwner)
	if err != nil {
		t.Fatal(err)
	}
	if len(picked) != 0 {
		t.Fatalf("expected fail-closed (0 slots) for an unresolved owner with no resolver configured, got %d", len(picked))
	}
}

func TestDispatchHonorsBatchCapAcrossCalls(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		j := &job.Job{ID: uuid.New(), Status: job.Queued, OwnerID: uuid.Nil, CreatedAt: time.Now()}
		if err := s.AddJob(ctx, j); err != nil {
			t.Fatal(err)
		}
	}

	picked, err := s.Dispatch(ctx, 3, time.Minute, storepkg.ConcurrencyOff)
	if err != nil {
		t.Fatal(err)
	}
	if len(picked) != 3 {
		t.Fatalf("expected batch cap of 3, got %d", len(picked))
	}

	rest, err := s.Dispatch(ctx, 3, time.Minute, storepkg.ConcurrencyOff)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 2 {
		t.Fatalf("expected remaining 2 jobs dispatched, got %d", len(rest))
	}
}
