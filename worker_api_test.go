package queue_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/scrapeloop/queue/job"
	"github.com/scrapeloop/queue/store"
)

const dispatchLease = time.Minute

// fakeNotifier records every Notify call for assertions instead of
// talking to a real bus or database channel.
type fakeNotifier struct {
	mu    sync.Mutex
	calls []struct{ channel, payload string }
}

func (f *fakeNotifier) Notify(ctx context.Context, channel string, payload string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, struct{ channel, payload string }{channel, payload})
	return nil
}

func (f *fakeNotifier) last() (string, string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return "", "", false
	}
	c := f.calls[len(f.calls)-1]
	return c.channel, c.payload, true
}

func TestJobFinishNotifiesWithCompletedPayload(t *testing.T) {
	notify := &fakeNotifier{}
	q, s := newTestQueue(t, nil, notify)
	ctx := context.Background()

	owner := uuid.New()
	j := &job.Job{ID: uuid.New(), Status: job.Queued, OwnerID: owner}
	if err := q.AddJob(ctx, j); err != nil {
		t.Fatal(err)
	}

	picked, err := s.Dispatch(ctx, 1, dispatchLease, store.ConcurrencyOff)
	if err != nil {
		t.Fatal(err)
	}
	if len(picked) != 1 {
		t.Fatalf("expected 1 dispatched job, got %d", len(picked))
	}

	ok, err := q.JobFinish(ctx, picked[0].ID, *picked[0].Lock, map[string]any{"ok": true})
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected JobFinish to succeed")
	}

	channel, payload, got := notify.last()
	if !got {
		t.Fatal("expected a Notify call")
	}
	if channel != "testqueue_job_done" {
		t.Errorf("channel = %q, want testqueue_job_done", channel)
	}
	want := fmt.Sprintf("%s|completed", picked[0].ID)
	if payload != want {
		t.Errorf("payload = %q, want %q", payload, want)
	}
}

func TestJobFailNotifiesWithFailedPayload(t *testing.T) {
	notify := &fakeNotifier{}
	q, s := newTestQueue(t, nil, notify)
	ctx := context.Background()

	owner := uuid.New()
	j := &job.Job{ID: uuid.New(), Status: job.Queued, OwnerID: owner}
	if err := q.AddJob(ctx, j); err != nil {
		t.Fatal(err)
	}
	picked, err := s.Dispatch(ctx, 1, dispatchLease, store.ConcurrencyOff)
	if err != nil {
		t.Fatal(err)
	}

	ok, err := q.JobFail(ctx, picked[0].ID, *picked[0].Lock, "boom")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected JobFail to succeed")
	}

	channel, payload, got := notify.last()
	if !got {
		t.Fatal("expected a Notify call")
	}
	want := fmt.Sprintf("%s|failed", picked[0].ID)
	if payload != want || channel != "testqueue_job_done" {
		t.Errorf("got channel=%q payload=%q", channel, payload)
	}
}

func TestJobFinishLostLockDoesNotNotify(t *testing.T) {
	notify := &fakeNotifier{}
	q, s := newTestQueue(t, nil, notify)
	ctx := context.Background()

	owner := uuid.New()
	j := &job.Job{ID: uuid.New(), Status: job.Queued, OwnerID: owner}
	if err := q.AddJob(ctx, j); err != nil {
		t.Fatal(err)
	}
	picked, err := s.Dispatch(ctx, 1, dispatchLease, store.ConcurrencyOff)
	if err != nil {
		t.Fatal(err)
	}

	ok, err := q.JobFinish(ctx, picked[0].ID, uuid.New(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected JobFinish with wrong lock to report false")
	}
	if _, _, got := notify.last(); got {
		t.Error("expected no Notify call on lost-lock JobFinish")
	}
}

func TestRenewLockExtendsLease(t *testing.T) {
	q, s := newTestQueue(t, nil, nil)
	ctx := context.Background()

	owner := uuid.New()
	j := &job.Job{ID: uuid.New(), Status: job.Queued, OwnerID: owner}
	if err := q.AddJob(ctx, j); err != nil {
		t.Fatal(err)
	}
	picked, err := s.Dispatch(ctx, 1, dispatchLease, store.ConcurrencyOff)
	if err != nil {
		t.Fatal(err)
	}

	ok, err := q.RenewLock(ctx, picked[0].ID, *picked[0].Lock)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected RenewLock to succeed with the correct lock")
	}

	ok, err = q.RenewLock(ctx, picked[0].ID, uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected RenewLock with a wrong lock to report false")
	}
}
