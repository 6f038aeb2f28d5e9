package capture

import (
	"sync"
	"time"

	"github.com/spigell/hh-interviewer/internal/conversation"
)

// DefaultSyncDelay is how long the editing flag outlives a blur.
const DefaultSyncDelay = 300 * time.Millisecond

// schedule runs f after d and returns a stop function.
type schedule func(d time.Duration, f func()) func() bool

func afterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Field is the answer text box shared by the keyboard and the recognizer.
// The editing flag and the last transcript guard every write.
type Field struct {
	mu             sync.Mutex
	value          string
	lastTranscript string
	editing        bool
	typed          bool
	spoken         bool

	syncDelay time.Duration
	schedule  schedule
	blurGen   int
	stopBlur  func() bool
}

func NewField(syncDelay time.Duration) *Field {
	if syncDelay < 0 {
		syncDelay = 0
	}
	return &Field{syncDelay: syncDelay, schedule: afterFunc}
}

// Focus marks the field as being edited by hand.
func (f *Field) Focus() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beginEditLocked()
}

// Type replaces the value with hand-typed text.
func (f *Field) Type(value string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.beginEditLocked()
	if value != f.value {
		f.typed = true
	}
	f.value = value
}

func (f *Field) beginEditLocked() {
	f.editing = true
	f.blurGen++
	if f.stopBlur != nil {
		f.stopBlur()
		f.stopBlur = nil
	}
}

// Blur clears the editing flag once the sync delay has passed without a new edit.
func (f *Field) Blur() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.editing {
		return
	}

	f.blurGen++
	gen := f.blurGen
	if f.syncDelay == 0 {
		f.editing = false
		return
	}

	f.stopBlur = f.schedule(f.syncDelay, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.blurGen == gen {
			f.editing = false
			f.stopBlur = nil
		}
	})
}

// ApplyTranscript writes recognizer output into the field. While the user is
// editing only a final result may write, and only if the field still holds the
// previous transcript.
func (f *Field) ApplyTranscript(text string, final bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.editing && (!final || f.value != f.lastTranscript) {
		return false
	}

	f.value = text
	f.lastTranscript = text
	if text != "" {
		f.spoken = true
	}
	return true
}

func (f *Field) Value() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

func (f *Field) Editing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.editing
}

// Source reports how the current answer was produced.
func (f *Field) Source() conversation.Source {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case f.typed && f.spoken:
		return conversation.SourceMixed
	case f.spoken:
		return conversation.SourceSpoken
	default:
		return conversation.SourceTyped
	}
}

// Reset empties the field and forgets its history.
func (f *Field) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.blurGen++
	if f.stopBlur != nil {
		f.stopBlur()
		f.stopBlur = nil
	}
	f.value = ""
	f.lastTranscript = ""
	f.editing = false
	f.typed = false
	f.spoken = false
}
