package queue_test

import (
	"testing"
	"time"

	"github.com/scrapeloop/queue"
)

func TestBackoffCounterCapsAtMaxInterval(t *testing.T) {
	bc := &queue.BackoffCounter{BackoffConfig: queue.BackoffConfig{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      4,
	}}
	delay, more := bc.Next(10)
	if !more {
		t.Fatal("expected Next to report more retries with MaxRetries == 0")
	}
	if delay > time.Second {
		t.Errorf("delay = %v, want capped at %v", delay, time.Second)
	}
}

func TestBackoffCounterGrowsWithAttempt(t *testing.T) {
	bc := &queue.BackoffCounter{BackoffConfig: queue.BackoffConfig{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Multiplier:      2,
	}}
	first, _ := bc.Next(1)
	second, _ := bc.Next(2)
	if second <= first {
		t.Errorf("Next(2) = %v, want greater than Next(1) = %v", second, first)
	}
}

func TestBackoffCounterStopsAfterMaxRetries(t *testing.T) {
	bc := &queue.BackoffCounter{BackoffConfig: queue.BackoffConfig{
		MaxRetries:      3,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2,
	}}
	if _, more := bc.Next(3); !more {
		t.Error("Next(3) should still be within MaxRetries == 3")
	}
	if _, more := bc.Next(4); more {
		t.Error("Next(4) should exceed MaxRetries == 3")
	}
}

func TestBackoffCounterJitterStaysWithinBounds(t *testing.T) {
	bc := &queue.BackoffCounter{BackoffConfig: queue.BackoffConfig{
		InitialInterval:     time.Second,
		MaxInterval:         time.Minute,
		Multiplier:          1,
		RandomizationFactor: 0.5,
	}}
	for i := 0; i < 20; i++ {
		delay, _ := bc.Next(1)
		if delay < 500*time.Millisecond || delay > 1500*time.Millisecond {
			t.Fatalf("delay = %v, want within [0.5s, 1.5s]", delay)
		}
	}
}
