package interview

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyAnswer     = errors.New("answer is empty")
	ErrBusy            = errors.New("another request is in flight")
	ErrInvalidState    = errors.New("operation is not allowed in the current state")
	ErrNoMoreQuestions = errors.New("no more questions")
	ErrSessionClosed   = errors.New("interview session was closed")
	ErrNoCapture       = errors.New("speech capture is not configured")
)

// ErrorKind groups the non-fatal failures reported to the user.
type ErrorKind string

const (
	SessionCreation  ErrorKind = "session_creation"
	QuestionFetch    ErrorKind = "question_fetch"
	AnswerSubmission ErrorKind = "answer_submission"
	Recognition      ErrorKind = "recognition"
	Synthesis        ErrorKind = "synthesis"
	Completion       ErrorKind = "completion"
	FollowUp         ErrorKind = "follow_up"
	SampleAnswer     ErrorKind = "sample_answer"
)

// Error is a failure of one interview step. None of them end the interview.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
