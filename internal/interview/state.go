package interview

import (
	"github.com/spigell/hh-interviewer/internal/conversation"
	"github.com/spigell/hh-interviewer/internal/qa"
)

// State is the phase of the interview.
type State int

const (
	Idle State = iota
	Initializing
	Presenting
	AwaitingAnswer
	Submitting
	// Reviewing means feedback for the current question is shown.
	Reviewing
	Finalizing
	Completed
)

var stateNames = map[State]string{
	Idle:           "idle",
	Initializing:   "initializing",
	Presenting:     "presenting",
	AwaitingAnswer: "awaiting_answer",
	Submitting:     "submitting",
	Reviewing:      "reviewing",
	Finalizing:     "finalizing",
	Completed:      "completed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Events are called without the controller lock held, possibly from
// background goroutines. Any of them may be nil.
type Events struct {
	OnStateChange func(from, to State)
	// OnReveal receives every intermediate rendering of a question.
	OnReveal     func(index int, text string)
	OnGateChange func(open bool)
	OnTick       func(seconds int)
	OnEntry      func(entry conversation.Entry)
	// OnTypingCleared reports that the typing entry was dropped without a
	// replacement, for example after a failed submission.
	OnTypingCleared func()
	OnError         func(err *Error)
}

// Snapshot is a consistent copy of the controller state.
type Snapshot struct {
	State     State
	SessionID string
	Index     int
	Total     int
	Answered  int
	GateOpen  bool
	Busy      bool
	Elapsed   int
	Question  *qa.Question
	Feedback  *qa.Feedback
	// HasNext is set while Advance can move to another question.
	HasNext      bool
	FollowUp     string
	SampleAnswer string
	Summary      *qa.Summary
}
