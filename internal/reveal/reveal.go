// Package reveal renders a message incrementally, one rune at a time, at a constant rate.
package reveal

import (
	"context"
	"iter"
	"sync"
	"time"
)

// Sequence yields increasing rune prefixes of a fixed string, from the empty
// string through the full string. It is single-pass: once exhausted it stays exhausted.
type Sequence struct {
	runes []rune
	next  int
}

// NewSequence returns a fresh sequence for text.
func NewSequence(text string) *Sequence {
	return &Sequence{runes: []rune(text)}
}

// Next returns the next prefix and true, or "" and false once the full string was returned.
func (s *Sequence) Next() (string, bool) {
	if s.next > len(s.runes) {
		return "", false
	}
	prefix := string(s.runes[:s.next])
	s.next++
	return prefix, true
}

// Exhausted reports whether the full string has already been returned.
func (s *Sequence) Exhausted() bool {
	return s.next > len(s.runes)
}

// Len is the number of states the sequence produces in total.
func (s *Sequence) Len() int {
	return len(s.runes) + 1
}

// Prefixes is an untimed view of the states of text.
func Prefixes(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		seq := NewSequence(text)
		for {
			prefix, ok := seq.Next()
			if !ok || !yield(prefix) {
				return
			}
		}
	}
}

// Handle controls one timed reveal run.
type Handle struct {
	cancel    context.CancelFunc
	done      chan struct{}
	mu        sync.Mutex
	completed bool
	last      string
}

// Start reveals text at one rune per interval, calling onFrame with every state
// starting with the empty string. onFrame runs on the reveal goroutine.
// A zero interval emits all states without waiting.
func Start(ctx context.Context, text string, interval time.Duration, onFrame func(string)) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}

	go h.run(ctx, NewSequence(text), interval, onFrame)

	return h
}

func (h *Handle) run(ctx context.Context, seq *Sequence, interval time.Duration, onFrame func(string)) {
	defer close(h.done)
	defer h.cancel()

	var ticker *time.Ticker
	if interval > 0 {
		ticker = time.NewTicker(interval)
		defer ticker.Stop()
	}

	first := true
	for {
		if !first {
			if ticker != nil {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			} else if ctx.Err() != nil {
				return
			}
		}
		first = false

		prefix, _ := seq.Next()

		h.mu.Lock()
		h.last = prefix
		h.mu.Unlock()

		if onFrame != nil {
			onFrame(prefix)
		}

		if seq.Exhausted() {
			h.mu.Lock()
			h.completed = true
			h.mu.Unlock()
			return
		}
	}
}

// Done is closed when the run finishes, either completed or cancelled.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Completed reports whether the full string was revealed.
func (h *Handle) Completed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.completed
}

// Current is the most recently emitted state.
func (h *Handle) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// Cancel stops the run without completing it and waits for the goroutine to exit.
func (h *Handle) Cancel() {
	h.cancel()
	<-h.done
}
