package interview

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/hh-interviewer/internal/conversation"
	"github.com/spigell/hh-interviewer/internal/qa"
)

// SubmitAnswer sends the answer to the current question for scoring. An empty
// text falls back to the answer field. On failure the controller stays in
// AwaitingAnswer so the answer can be sent again.
func (c *Controller) SubmitAnswer(ctx context.Context, text string) (*qa.Feedback, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		text = strings.TrimSpace(c.field.Value())
	}
	if text == "" {
		return nil, ErrEmptyAnswer
	}

	c.mu.Lock()
	if c.state == Submitting || c.busy {
		c.unlock()
		return nil, ErrBusy
	}
	if c.state != AwaitingAnswer {
		c.unlock()
		return nil, ErrInvalidState
	}

	q, _ := c.questionLocked(c.index)
	gen := c.generation
	sessionID := c.session.ID
	tm := c.timer

	c.busy = true
	c.lastAnswer = text
	c.setStateLocked(Submitting)
	c.appendLocked(conversation.NewAnswer(q.ID, text, c.field.Source()))
	c.appendLocked(conversation.NewTyping(q.ID))
	c.unlock()

	tm.Stop()
	if c.capture != nil {
		c.capture.Stop()
	}

	c.logger.Debug("submit answer", zap.String("session_id", sessionID), zap.String("question_id", q.ID))
	result, err := c.remote.SubmitAnswer(ctx, sessionID, q.ID, text)

	c.mu.Lock()
	c.busy = false
	if gen != c.generation {
		c.unlock()
		return nil, ErrSessionClosed
	}

	if err != nil {
		if c.log.RemoveTyping() {
			if cb := c.events.OnTypingCleared; cb != nil {
				c.emit(cb)
			}
		}
		c.setStateLocked(AwaitingAnswer)
		wrapped := c.reportLocked(AnswerSubmission, err)
		c.unlock()

		tm.Start()
		return nil, wrapped
	}

	fb := result.Feedback
	fb.Score = qa.ClampScore(fb.Score)
	if fb.QuestionID == "" {
		fb.QuestionID = q.ID
	}

	c.replaceTypingLocked(conversation.NewFeedback(fb))
	c.session.AnsweredQuestions++
	c.feedback = &fb
	c.nextAvailable = result.NextQuestionAvailable
	c.closeGateLocked()
	c.setStateLocked(Reviewing)
	c.unlock()

	if c.capture != nil {
		c.capture.SetGate(false)
	}

	c.logger.Info("answer scored",
		zap.String("question_id", q.ID),
		zap.Float64("score", fb.Score),
		zap.Bool("next_available", result.NextQuestionAvailable),
	)

	out := fb
	return &out, nil
}

// FollowUp asks the service for a follow-up to the last answer and narrates it.
func (c *Controller) FollowUp(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.state != Reviewing {
		c.unlock()
		return "", ErrInvalidState
	}
	if c.followUp != "" {
		followUp := c.followUp
		c.unlock()
		return followUp, nil
	}
	if c.busy {
		c.unlock()
		return "", ErrBusy
	}

	q, _ := c.questionLocked(c.index)
	gen, token := c.generation, c.presentation
	sessionID, answer, lang := c.session.ID, c.lastAnswer, c.session.Language
	sctx := c.ctx
	c.busy = true
	c.unlock()

	followUp, err := c.remote.GenerateFollowUp(ctx, sessionID, q.ID, answer)

	c.mu.Lock()
	c.busy = false
	if gen != c.generation {
		c.unlock()
		return "", ErrSessionClosed
	}
	if err == nil && followUp == "" {
		err = errors.New("empty follow-up question")
	}
	if err != nil {
		wrapped := c.reportLocked(FollowUp, err)
		c.unlock()
		return "", wrapped
	}
	if token != c.presentation {
		c.unlock()
		return followUp, nil
	}

	c.followUp = followUp
	c.appendLocked(conversation.NewNote(conversation.NoteFollowUp, q.ID, followUp))
	c.unlock()

	go func() {
		if err := <-c.narrate(sctx, followUp, lang); err != nil {
			c.reportSynthesis(gen, err)
		}
	}()

	return followUp, nil
}

// SampleAnswer fetches an example answer to the current question. The result
// is kept until the next question.
func (c *Controller) SampleAnswer(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.state != AwaitingAnswer && c.state != Reviewing {
		c.unlock()
		return "", ErrInvalidState
	}
	if c.sampleAnswer != "" {
		sample := c.sampleAnswer
		c.unlock()
		return sample, nil
	}
	if c.busy {
		c.unlock()
		return "", ErrBusy
	}

	q, _ := c.questionLocked(c.index)
	gen, token := c.generation, c.presentation
	sessionID := c.session.ID
	c.busy = true
	c.unlock()

	sample, err := c.remote.SampleAnswer(ctx, sessionID, q.ID)

	c.mu.Lock()
	defer c.unlock()

	c.busy = false
	if gen != c.generation {
		return "", ErrSessionClosed
	}
	if err == nil && sample == "" {
		err = errors.New("empty sample answer")
	}
	if err != nil {
		return "", c.reportLocked(SampleAnswer, err)
	}
	if token != c.presentation {
		return sample, nil
	}

	c.sampleAnswer = sample
	c.appendLocked(conversation.NewNote(conversation.NoteSampleAnswer, q.ID, sample))
	return sample, nil
}

// Finalize completes the session and stores the summary. It is allowed while
// an answer is awaited or reviewed, so an attempt can be ended early. On
// failure the previous state is restored.
func (c *Controller) Finalize(ctx context.Context) (*qa.Summary, error) {
	c.mu.Lock()
	if c.busy || c.state == Submitting {
		c.unlock()
		return nil, ErrBusy
	}
	if c.state != AwaitingAnswer && c.state != Reviewing {
		c.unlock()
		return nil, ErrInvalidState
	}

	prev := c.state
	gen := c.generation
	sessionID := c.session.ID
	tm := c.timer
	c.busy = true
	c.closeGateLocked()
	c.setStateLocked(Finalizing)
	c.unlock()

	tm.Stop()
	if c.capture != nil {
		c.capture.SetGate(false)
	}

	summary, err := c.remote.CompleteSession(ctx, sessionID)

	c.mu.Lock()
	c.busy = false
	if gen != c.generation {
		c.unlock()
		return nil, ErrSessionClosed
	}

	if err != nil {
		c.setStateLocked(prev)
		if prev == AwaitingAnswer {
			c.openGateLocked()
		}
		wrapped := c.reportLocked(Completion, err)
		c.unlock()

		if prev == AwaitingAnswer {
			tm.Start()
			if c.capture != nil {
				c.capture.SetGate(true)
			}
		}
		return nil, wrapped
	}

	summary.AverageScore = qa.ClampScore(summary.AverageScore)
	c.summary = summary
	c.appendLocked(conversation.NewNote(conversation.NoteSummary, "", summary.OverallFeedback))
	c.setStateLocked(Completed)
	c.unlock()

	c.skipReveal()
	if c.narrator != nil {
		c.narrator.Cancel()
	}

	c.logger.Info("interview completed",
		zap.String("session_id", sessionID),
		zap.Float64("average_score", summary.AverageScore),
		zap.Int("answered", summary.AnsweredQuestions),
	)

	out := *summary
	return &out, nil
}
