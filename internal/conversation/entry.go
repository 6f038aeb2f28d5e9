// Package conversation keeps the ordered record of what was said during an interview.
package conversation

import (
	"time"

	"github.com/spigell/hh-interviewer/internal/qa"
)

// Kind discriminates log entries.
type Kind string

const (
	KindQuestion Kind = "question"
	KindAnswer   Kind = "answer"
	KindFeedback Kind = "feedback"
	KindTyping   Kind = "typing"
	KindNote     Kind = "note"
)

// Entry is one item of the log. The set of implementations is closed.
type Entry interface {
	Kind() Kind
	At() time.Time
	entry()
}

type stamp struct {
	Time time.Time
}

func (s stamp) At() time.Time { return s.Time }
func (stamp) entry()          {}

// Question is a narrated interview question.
type Question struct {
	stamp
	QuestionID string
	Text       string
}

func (Question) Kind() Kind { return KindQuestion }

// Source tells how an answer was produced.
type Source string

const (
	SourceTyped  Source = "typed"
	SourceSpoken Source = "spoken"
	SourceMixed  Source = "mixed"
)

// Answer is what the candidate submitted.
type Answer struct {
	stamp
	QuestionID string
	Text       string
	Source     Source
}

func (Answer) Kind() Kind { return KindAnswer }

// Feedback is the remote evaluation of an answer.
type Feedback struct {
	stamp
	Feedback qa.Feedback
}

func (Feedback) Kind() Kind { return KindFeedback }

// Typing marks a pending remote evaluation.
type Typing struct {
	stamp
	QuestionID string
}

func (Typing) Kind() Kind { return KindTyping }

// NoteKind classifies free-form notes.
type NoteKind string

const (
	NoteWelcome      NoteKind = "welcome"
	NoteFollowUp     NoteKind = "follow_up"
	NoteSampleAnswer NoteKind = "sample_answer"
	NoteSummary      NoteKind = "summary"
)

// Note carries interviewer text that is not a scored question.
type Note struct {
	stamp
	QuestionID string
	Type       NoteKind
	Text       string
}

func (Note) Kind() Kind { return KindNote }

func NewQuestion(id, text string) Question {
	return Question{stamp: now(), QuestionID: id, Text: text}
}

func NewAnswer(questionID, text string, source Source) Answer {
	return Answer{stamp: now(), QuestionID: questionID, Text: text, Source: source}
}

func NewFeedback(fb qa.Feedback) Feedback {
	return Feedback{stamp: now(), Feedback: fb}
}

func NewTyping(questionID string) Typing {
	return Typing{stamp: now(), QuestionID: questionID}
}

func NewNote(kind NoteKind, questionID, text string) Note {
	return Note{stamp: now(), QuestionID: questionID, Type: kind, Text: text}
}

var clock = time.Now

func now() stamp {
	return stamp{Time: clock()}
}
