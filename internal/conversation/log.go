package conversation

import "sync"

// Log is an append-only list of entries. The only removal it allows is of the
// typing indicator, of which at most one exists at a time.
type Log struct {
	mu        sync.Mutex
	entries   []Entry
	questions map[string]struct{}
}

func NewLog() *Log {
	return &Log{questions: make(map[string]struct{})}
}

// AppendQuestion adds a question once per id and reports whether it was added.
func (l *Log) AppendQuestion(id, text string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.questions[id]; ok {
		return false
	}
	l.questions[id] = struct{}{}
	l.entries = append(l.entries, NewQuestion(id, text))
	return true
}

// Append adds any non-question, non-typing entry.
func (l *Log) Append(e Entry) {
	switch v := e.(type) {
	case Question:
		l.AppendQuestion(v.QuestionID, v.Text)
		return
	case Typing:
		l.ShowTyping(v.QuestionID)
		return
	}

	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
}

// ShowTyping appends the typing indicator unless one is already shown.
func (l *Log) ShowTyping(questionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.typingIndex() >= 0 {
		return false
	}
	l.entries = append(l.entries, NewTyping(questionID))
	return true
}

// ReplaceTyping removes the typing indicator and appends e in one step.
func (l *Log) ReplaceTyping(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.removeTyping()
	if _, ok := e.(Typing); ok {
		return
	}
	l.entries = append(l.entries, e)
}

// RemoveTyping drops the typing indicator if present.
func (l *Log) RemoveTyping() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.removeTyping()
}

func (l *Log) removeTyping() bool {
	i := l.typingIndex()
	if i < 0 {
		return false
	}
	l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
	return true
}

func (l *Log) typingIndex() int {
	for i, e := range l.entries {
		if e.Kind() == KindTyping {
			return i
		}
	}
	return -1
}

// Entries returns a snapshot in append order.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) CountKind(kind Kind) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, e := range l.entries {
		if e.Kind() == kind {
			n++
		}
	}
	return n
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Reset empties the log and forgets seen question ids.
func (l *Log) Reset() {
	l.mu.Lock()
	l.entries = nil
	l.questions = make(map[string]struct{})
	l.mu.Unlock()
}
