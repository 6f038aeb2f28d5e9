// Package timer counts the seconds a question has been on screen.
package timer

import (
	"context"
	"sync"
	"time"
)

// Timer is a per-question elapsed-seconds counter driven by a background ticker.
type Timer struct {
	interval time.Duration
	onTick   func(seconds int)

	mu      sync.Mutex
	elapsed int
	cancel  context.CancelFunc
	done    chan struct{}
	closed  bool
}

// New returns a stopped timer. onTick may be nil and is called outside the lock.
func New(onTick func(seconds int)) *Timer {
	return &Timer{interval: time.Second, onTick: onTick}
}

// NewWithInterval is New with a custom tick length, which tests use to run fast.
func NewWithInterval(interval time.Duration, onTick func(seconds int)) *Timer {
	t := New(onTick)
	if interval > 0 {
		t.interval = interval
	}
	return t
}

// Start begins counting from the current value. It is a no-op when running or closed.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || t.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done

	go t.loop(ctx, done)
}

func (t *Timer) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.mu.Lock()
			if ctx.Err() != nil {
				t.mu.Unlock()
				return
			}
			t.elapsed++
			seconds := t.elapsed
			t.mu.Unlock()

			if t.onTick != nil {
				t.onTick(seconds)
			}
		}
	}
}

// Stop freezes the counter and waits for the ticker goroutine to exit.
func (t *Timer) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Reset stops the timer and zeroes the counter.
func (t *Timer) Reset() {
	t.Stop()
	t.mu.Lock()
	t.elapsed = 0
	t.mu.Unlock()
}

// Close stops the timer for good; later Start calls do nothing.
func (t *Timer) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.Stop()
}

// Elapsed returns the counted seconds.
func (t *Timer) Elapsed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsed
}

// Running reports whether the ticker goroutine is active.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}
