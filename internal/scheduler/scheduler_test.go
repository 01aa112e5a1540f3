package scheduler

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduleFiresAfterDelay(t *testing.T) {
	timers := New()
	var fired atomic.Bool
	start := time.Now()

	timers.Schedule(20*time.Millisecond, func() { fired.Store(true) })
	timers.Wait()

	if !fired.Load() {
		t.Fatalf("task did not fire")
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("task fired too early: %v", elapsed)
	}
}

func TestScheduleZeroDelayIsImmediate(t *testing.T) {
	timers := New()
	var count atomic.Int32

	for i := 0; i < 10; i++ {
		timers.Schedule(0, func() { count.Add(1) })
	}
	timers.Wait()

	if count.Load() != 10 {
		t.Fatalf("expected 10 tasks, got %d", count.Load())
	}
}

func TestScheduleNeverBlocksCaller(t *testing.T) {
	timers := New()
	done := make(chan struct{})

	start := time.Now()
	timers.Schedule(50*time.Millisecond, func() { close(done) })
	if time.Since(start) > 10*time.Millisecond {
		t.Fatalf("Schedule blocked the caller")
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("task never fired")
	}
}
