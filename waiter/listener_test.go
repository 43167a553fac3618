package waiter_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/scrapeloop/queue"
	"github.com/scrapeloop/queue/job"
	"github.com/scrapeloop/queue/waiter"
)

// fakeSource is an in-memory waiter.Source, letting listener tests
// push notification payloads without a real bus/DB connection.
type fakeSource struct {
	ch chan string
}

func newFakeSource() *fakeSource {
	return &fakeSource{ch: make(chan string, 16)}
}

func (s *fakeSource) Notifications() <-chan string {
	return s.ch
}

func (s *fakeSource) push(payload string) {
	s.ch <- payload
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestListenerReturnsImmediatelyForTerminalJob(t *testing.T) {
	store := newFakeStore()
	id := uuid.New()
	store.put(&job.Job{ID: id, Status: job.Failed})

	l := waiter.NewListener(store, newFakeSource(), testLogger())
	got, err := l.WaitForJob(context.Background(), id, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Status != job.Failed {
		t.Fatalf("got %+v, want Failed job", got)
	}
}

func TestListenerWakesOnNotification(t *testing.T) {
	store := newFakeStore()
	id := uuid.New()
	store.put(&job.Job{ID: id, Status: job.Active})

	source := newFakeSource()
	l := waiter.NewListener(store, source, testLogger())
	if err := l.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer l.Stop(time.Second)

	go func() {
		time.Sleep(30 * time.Millisecond)
		store.setStatus(id, job.Completed)
		source.push(id.String() + "|completed")
	}()

	got, err := l.WaitForJob(context.Background(), id, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Status != job.Completed {
		t.Fatalf("got %+v, want Completed job", got)
	}
}

func TestListenerIgnoresMalformedPayload(t *testing.T) {
	store := newFakeStore()
	id := uuid.New()
	store.put(&job.Job{ID: id, Status: job.Active})

	source := newFakeSource()
	l := waiter.NewListener(store, source, testLogger())
	if err := l.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer l.Stop(time.Second)

	source.push("not-a-uuid|completed")

	go func() {
		time.Sleep(30 * time.Millisecond)
		store.setStatus(id, job.Completed)
		source.push(id.String() + "|completed")
	}()

	got, err := l.WaitForJob(context.Background(), id, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Status != job.Completed {
		t.Fatalf("got %+v, want Completed job despite a malformed payload first", got)
	}
}

func TestListenerTimesOutWithoutNotification(t *testing.T) {
	store := newFakeStore()
	id := uuid.New()
	store.put(&job.Job{ID: id, Status: job.Active})

	source := newFakeSource()
	l := waiter.NewListener(store, source, testLogger())
	if err := l.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer l.Stop(time.Second)

	_, err := l.WaitForJob(context.Background(), id, 30*time.Millisecond)
	if err != queue.ErrTimeout {
		t.Fatalf("err = %v, want queue.ErrTimeout", err)
	}
}

func TestListenerStartTwiceReturnsErrDoubleStarted(t *testing.T) {
	l := waiter.NewListener(newFakeStore(), newFakeSource(), testLogger())
	if err := l.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer l.Stop(time.Second)

	if err := l.Start(context.Background()); err != queue.ErrDoubleStarted {
		t.Fatalf("err = %v, want queue.ErrDoubleStarted", err)
	}
}

func TestListenerStopWithoutStartReturnsErrDoubleStopped(t *testing.T) {
	l := waiter.NewListener(newFakeStore(), newFakeSource(), testLogger())
	if err := l.Stop(time.Second); err != queue.ErrDoubleStopped {
		t.Fatalf("err = %v, want queue.ErrDoubleStopped", err)
	}
}
