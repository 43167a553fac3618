package queue_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/scrapeloop/queue"
	"github.com/scrapeloop/queue/job"
)

// fakeBridge is an in-memory stand-in for bus.Sender, letting
// dispatcher tests exercise the Bridge-then-store fallback path
// without a real AMQP broker.
type fakeBridge struct {
	mu    sync.Mutex
	ids   []string
	fails bool
}

func (b *fakeBridge) Publish(id string) error {
	if b.fails {
		return errFakePublish
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ids = append(b.ids, id)
	return nil
}

func (b *fakeBridge) TryGet() (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.ids) == 0 {
		return "", false, nil
	}
	id := b.ids[0]
	b.ids = b.ids[1:]
	return id, true, nil
}

var errFakePublish = fakePublishError{}

type fakePublishError struct{}

func (fakePublishError) Error() string { return "fake publish failure" }

func TestGetJobToProcessPrefersBridge(t *testing.T) {
	bridge := &fakeBridge{}
	q, _ := newTestQueue(t, bridge, nil)
	ctx := context.Background()

	owner := uuid.New()
	j := &job.Job{ID: uuid.New(), Status: job.Queued, OwnerID: owner}
	if err := q.AddJob(ctx, j); err != nil {
		t.Fatal(err)
	}

	if n := q.PrefetchJobs(ctx); n != 1 {
		t.Fatalf("PrefetchJobs = %d, want 1", n)
	}

	got, err := q.GetJobToProcess(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected a job from the bridge")
	}
	if got.ID != j.ID {
		t.Errorf("got job %s, want %s", got.ID, j.ID)
	}
}

func TestGetJobToProcessFallsBackToStoreWithoutBridge(t *testing.T) {
	q, _ := newTestQueue(t, nil, nil)
	ctx := context.Background()

	owner := uuid.New()
	j := &job.Job{ID: uuid.New(), Status: job.Queued, OwnerID: owner}
	if err := q.AddJob(ctx, j); err != nil {
		t.Fatal(err)
	}

	got, err := q.GetJobToProcess(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != j.ID {
		t.Fatalf("expected job %s via store fallback, got %+v", j.ID, got)
	}
}

func TestGetJobToProcessNilWhenEmpty(t *testing.T) {
	q, _ := newTestQueue(t, nil, nil)
	got, err := q.GetJobToProcess(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("expected nil job on empty queue, got %+v", got)
	}
}

func TestPrefetchJobsContinuesOnPublishFailure(t *testing.T) {
	bridge := &fakeBridge{fails: true}
	q, _ := newTestQueue(t, bridge, nil)
	ctx := context.Background()

	owner := uuid.New()
	j := &job.Job{ID: uuid.New(), Status: job.Queued, OwnerID: owner}
	if err := q.AddJob(ctx, j); err != nil {
		t.Fatal(err)
	}

	// A publish failure must not fail the dispatch itself: the job is
	// already Active in the store, just unreachable via the bridge.
	if n := q.PrefetchJobs(ctx); n != 1 {
		t.Fatalf("PrefetchJobs = %d, want 1 even though publish failed", n)
	}

	got, err := q.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != job.Active {
		t.Errorf("Status = %v, want Active", got.Status)
	}
}

var _ queue.Bridge = (*fakeBridge)(nil)
