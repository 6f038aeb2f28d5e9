package interview

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/hh-interviewer/internal/conversation"
	"github.com/spigell/hh-interviewer/internal/reveal"
	"github.com/spigell/hh-interviewer/internal/utils"
)

// Present shows question i. Presenting a question that was already shown is a
// no-op. Presenting another question while one is being shown skips it. After
// feedback only the next question may be presented.
func (c *Controller) Present(i int) error {
	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	return c.present(gen, i)
}

// Advance moves from the feedback of the current question to the next one,
// fetching it from the service when the session did not list it upfront.
func (c *Controller) Advance(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Reviewing {
		c.unlock()
		return ErrInvalidState
	}
	if c.busy {
		c.unlock()
		return ErrBusy
	}
	if !c.hasNextLocked() {
		c.unlock()
		return ErrNoMoreQuestions
	}

	gen := c.generation
	next := c.index + 1
	known := next < len(c.session.Questions)
	sessionID := c.session.ID
	if !known {
		c.busy = true
	}
	c.unlock()

	if !known {
		if err := c.fetchQuestion(ctx, gen, sessionID); err != nil {
			return err
		}
	}

	return c.present(gen, next)
}

func (c *Controller) fetchQuestion(ctx context.Context, gen int, sessionID string) error {
	q, err := c.remote.CurrentQuestion(ctx, sessionID)

	c.mu.Lock()
	defer c.unlock()

	c.busy = false
	if gen != c.generation {
		return ErrSessionClosed
	}
	if err != nil {
		return c.reportLocked(QuestionFetch, err)
	}
	if _, ok := c.seen[q.ID]; ok {
		return c.reportLocked(QuestionFetch, fmt.Errorf("question %q was already presented", q.ID))
	}

	c.session.Questions = append(c.session.Questions, *q)
	return nil
}

func (c *Controller) present(gen, i int) error {
	c.mu.Lock()
	if gen != c.generation || !c.open {
		c.unlock()
		return ErrSessionClosed
	}

	switch c.state {
	case Initializing, Presenting, AwaitingAnswer, Reviewing:
	case Submitting:
		c.unlock()
		return ErrBusy
	default:
		c.unlock()
		return ErrInvalidState
	}

	q, ok := c.questionLocked(i)
	if !ok || i >= c.session.Total() {
		c.unlock()
		return ErrNoMoreQuestions
	}
	if _, seen := c.seen[q.ID]; seen {
		c.unlock()
		return nil
	}
	if c.state == Reviewing {
		switch {
		case !c.hasNextLocked():
			c.unlock()
			return ErrNoMoreQuestions
		case i != c.index+1:
			c.unlock()
			return ErrInvalidState
		}
	}
	c.seen[q.ID] = struct{}{}

	c.index = i
	c.presentation++
	token := c.presentation
	c.closeGateLocked()
	c.setStateLocked(Presenting)
	c.lastAnswer = ""
	c.feedback = nil
	c.followUp = ""
	c.sampleAnswer = ""
	c.appendLocked(conversation.NewQuestion(q.ID, q.Text))

	prev := c.reveal
	c.reveal = nil
	tm := c.timer
	ctx := c.ctx
	lang := c.session.Language
	c.unlock()

	c.logger.Debug("present question", zap.Int("index", i), zap.String("question_id", q.ID))

	if prev != nil {
		prev.Cancel()
	}
	if c.narrator != nil {
		c.narrator.Cancel()
	}
	if c.capture != nil {
		c.capture.SetGate(false)
		c.capture.Reset()
	} else {
		c.field.Reset()
	}
	tm.Reset()

	go c.runPresentation(ctx, gen, token, i, q.Text, lang)
	return nil
}

// runPresentation reveals and narrates a question concurrently and opens the
// answer gate once both are done.
func (c *Controller) runPresentation(ctx context.Context, gen, token, index int, text, lang string) {
	if c.cfg.PresentDelay > 0 {
		if err := utils.WaitFor(ctx, c.cfg.PresentDelay); err != nil {
			return
		}
	}

	onReveal := c.events.OnReveal
	handle := reveal.Start(ctx, text, c.cfg.RevealInterval, func(frame string) {
		if onReveal != nil {
			onReveal(index, frame)
		}
	})

	// Timer and narration start under the token check of the reveal.
	c.mu.Lock()
	if !c.currentLocked(gen, token) {
		c.mu.Unlock()
		handle.Cancel()
		return
	}
	c.reveal = handle
	c.timer.Start()
	narrated := c.narrate(ctx, text, lang)
	c.mu.Unlock()

	select {
	case <-handle.Done():
	case <-ctx.Done():
	}
	if err := <-narrated; err != nil {
		c.reportSynthesis(gen, err)
	}

	if !handle.Completed() {
		return
	}

	c.mu.Lock()
	if !c.currentLocked(gen, token) || c.state != Presenting {
		c.unlock()
		return
	}
	if c.reveal == handle {
		c.reveal = nil
	}
	c.openGateLocked()
	c.setStateLocked(AwaitingAnswer)
	c.unlock()

	if c.capture != nil {
		c.capture.SetGate(true)
	}
}

func (c *Controller) currentLocked(gen, token int) bool {
	return c.open && gen == c.generation && token == c.presentation
}

// skipReveal cancels a running reveal. Used when the attempt moves on early.
func (c *Controller) skipReveal() {
	c.mu.Lock()
	handle := c.reveal
	c.reveal = nil
	c.mu.Unlock()

	if handle != nil {
		handle.Cancel()
	}
}
