package timer

import (
	"sync/atomic"
	"testing"
	"time"
)

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

func TestTimerCountsAndStops(t *testing.T) {
	t.Parallel()

	var ticks atomic.Int32
	tm := NewWithInterval(time.Millisecond, func(int) { ticks.Add(1) })

	tm.Start()
	waitUntil(t, func() bool { return tm.Elapsed() >= 3 })

	tm.Stop()
	if tm.Running() {
		t.Fatalf("expected stopped timer")
	}

	frozen := tm.Elapsed()
	time.Sleep(10 * time.Millisecond)
	if tm.Elapsed() != frozen {
		t.Fatalf("stopped timer kept counting: %d -> %d", frozen, tm.Elapsed())
	}
	if int(ticks.Load()) != frozen {
		t.Fatalf("expected %d tick callbacks, got %d", frozen, ticks.Load())
	}
}

func TestTimerResumeIsMonotonic(t *testing.T) {
	t.Parallel()

	tm := NewWithInterval(time.Millisecond, nil)
	tm.Start()
	waitUntil(t, func() bool { return tm.Elapsed() >= 2 })
	tm.Stop()

	before := tm.Elapsed()
	tm.Start()
	waitUntil(t, func() bool { return tm.Elapsed() > before })
	tm.Stop()
}

func TestTimerReset(t *testing.T) {
	t.Parallel()

	tm := NewWithInterval(time.Millisecond, nil)
	tm.Start()
	waitUntil(t, func() bool { return tm.Elapsed() >= 1 })

	tm.Reset()
	if tm.Elapsed() != 0 || tm.Running() {
		t.Fatalf("expected reset timer, got elapsed=%d running=%v", tm.Elapsed(), tm.Running())
	}
}

func TestTimerClose(t *testing.T) {
	t.Parallel()

	tm := NewWithInterval(time.Millisecond, nil)
	tm.Start()
	tm.Close()

	if tm.Running() {
		t.Fatalf("closed timer must not run")
	}

	tm.Start()
	if tm.Running() {
		t.Fatalf("start after close must be a no-op")
	}
}

func TestTimerDefaultInterval(t *testing.T) {
	t.Parallel()

	tm := New(nil)
	if tm.interval != time.Second {
		t.Fatalf("expected one second ticks, got %s", tm.interval)
	}
	tm.Start()
	tm.Start()
	tm.Stop()
	if tm.Elapsed() != 0 {
		t.Fatalf("expected no ticks, got %d", tm.Elapsed())
	}
}
