package queue_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/scrapeloop/queue"
	"github.com/scrapeloop/queue/job"
)

func TestAddJobThenGetJob(t *testing.T) {
	q, _ := newTestQueue(t, nil, nil)
	ctx := context.Background()

	j := &job.Job{ID: uuid.New(), Status: job.Queued, OwnerID: uuid.New()}
	if err := q.AddJob(ctx, j); err != nil {
		t.Fatal(err)
	}

	got, err := q.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected job, got nil")
	}
	if got.Status != job.Queued {
		t.Errorf("Status = %v, want Queued", got.Status)
	}
}

func TestAddJobDuplicateReturnsErrDuplicateJob(t *testing.T) {
	q, _ := newTestQueue(t, nil, nil)
	ctx := context.Background()

	id := uuid.New()
	first := &job.Job{ID: id, Status: job.Queued, OwnerID: uuid.New()}
	if err := q.AddJob(ctx, first); err != nil {
		t.Fatal(err)
	}

	second := &job.Job{ID: id, Status: job.Queued, OwnerID: uuid.New()}
	err := q.AddJob(ctx, second)
	if err == nil {
		t.Fatal("expected an error for duplicate job id")
	}
	if !errors.Is(err, queue.ErrDuplicateJob) {
		t.Errorf("expected errors.Is(err, queue.ErrDuplicateJob), got %v", err)
	}
}

func TestTryAddJobReportsDuplicateWithoutError(t *testing.T) {
	q, _ := newTestQueue(t, nil, nil)
	ctx := context.Background()

	id := uuid.New()
	j := &job.Job{ID: id, Status: job.Queued, OwnerID: uuid.New()}
	ok, err := q.TryAddJob(ctx, j)
	if err != nil || !ok {
		t.Fatalf("first TryAddJob: ok=%v err=%v", ok, err)
	}

	dup := &job.Job{ID: id, Status: job.Queued, OwnerID: uuid.New()}
	ok, err = q.TryAddJob(ctx, dup)
	if err != nil {
		t.Fatalf("second TryAddJob returned error: %v", err)
	}
	if ok {
		t.Error("expected ok=false for duplicate id")
	}
}

func TestAddJobsInsertsAll(t *testing.T) {
	q, _ := newTestQueue(t, nil, nil)
	ctx := context.Background()
	owner := uuid.New()

	jobs := []*job.Job{
		{ID: uuid.New(), Status: job.Queued, OwnerID: owner},
		{ID: uuid.New(), Status: job.Queued, OwnerID: owner},
	}
	if err := q.AddJobs(ctx, jobs); err != nil {
		t.Fatal(err)
	}

	for _, j := range jobs {
		got, err := q.GetJob(ctx, j.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got == nil {
			t.Errorf("job %s not found after AddJobs", j.ID)
		}
	}
}
