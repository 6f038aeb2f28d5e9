// Package interview runs a mock interview: it drives the remote question
// service and sequences reveal, narration, capture and the question timer.
package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/hh-interviewer/internal/capture"
	"github.com/spigell/hh-interviewer/internal/conversation"
	"github.com/spigell/hh-interviewer/internal/language"
	"github.com/spigell/hh-interviewer/internal/qa"
	"github.com/spigell/hh-interviewer/internal/reveal"
	"github.com/spigell/hh-interviewer/internal/timer"
)

const (
	DefaultRevealInterval = 30 * time.Millisecond
	DefaultPresentDelay   = 800 * time.Millisecond
)

// Narrator speaks interviewer messages.
type Narrator interface {
	Narrate(ctx context.Context, text, hint string) <-chan error
	Cancel()
	SetSessionLanguage(lang string)
}

// Capture is the dictation side of the answer field.
type Capture interface {
	SetGate(open bool)
	Stop()
	Reset()
	Toggle(ctx context.Context) (bool, error)
	Field() *capture.Field
}

// JobContext describes what the interview is for. A non-nil Session is
// reused instead of creating a new one.
type JobContext struct {
	Description   string
	QuestionCount int
	Difficulty    string
	Language      string
	Session       *qa.Session
}

type Config struct {
	RevealInterval time.Duration
	// PresentDelay is the pause between the previous message and the next question.
	PresentDelay time.Duration
	// TickInterval is the question timer resolution, one second unless set.
	TickInterval time.Duration
	// Welcome builds the greeting. A default localized greeting is used when nil.
	Welcome func(session *qa.Session) string
}

// Controller is the interview state machine. It is the only component that
// talks to the remote service.
type Controller struct {
	remote   qa.Service
	narrator Narrator
	capture  Capture
	field    *capture.Field
	log      *conversation.Log
	cfg      Config
	events   Events
	logger   *zap.Logger

	mu      sync.Mutex
	pending []func()

	open       bool
	generation int
	ctx        context.Context
	cancel     context.CancelFunc

	state         State
	session       *qa.Session
	index         int
	seen          map[string]struct{}
	gateOpen      bool
	gateCh        chan struct{}
	busy          bool
	presentation  int
	reveal        *reveal.Handle
	timer         *timer.Timer
	lastAnswer    string
	feedback      *qa.Feedback
	nextAvailable bool
	followUp      string
	sampleAnswer  string
	summary       *qa.Summary
}

// New builds a controller. narrator and capture may be nil, which disables
// narration and dictation.
func New(remote qa.Service, narrator Narrator, capt Capture, cfg Config, events Events, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RevealInterval < 0 {
		cfg.RevealInterval = 0
	}
	if cfg.PresentDelay < 0 {
		cfg.PresentDelay = 0
	}
	if cfg.Welcome == nil {
		cfg.Welcome = DefaultWelcome
	}

	c := &Controller{
		remote:   remote,
		narrator: narrator,
		capture:  capt,
		log:      conversation.NewLog(),
		cfg:      cfg,
		events:   events,
		logger:   logger,
		seen:     make(map[string]struct{}),
		gateCh:   make(chan struct{}),
	}

	if capt != nil {
		c.field = capt.Field()
	}
	if c.field == nil {
		c.field = capture.NewField(capture.DefaultSyncDelay)
	}

	return c
}

// Log is the conversation record of the current session.
func (c *Controller) Log() *conversation.Log {
	return c.log
}

// Field is the answer field shared by typing and dictation.
func (c *Controller) Field() *capture.Field {
	return c.field
}

// Open prepares the controller for a new attempt. It is a no-op when already open.
func (c *Controller) Open() {
	c.mu.Lock()
	defer c.unlock()
	c.openLocked()
}

func (c *Controller) openLocked() {
	if c.open {
		return
	}

	c.open = true
	c.generation++
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.resetLocked()

	onTick := c.events.OnTick
	c.timer = timer.NewWithInterval(c.cfg.TickInterval, func(seconds int) {
		if onTick != nil {
			onTick(seconds)
		}
	})

	c.logger.Debug("interview opened", zap.Int("generation", c.generation))
}

func (c *Controller) resetLocked() {
	c.setStateLocked(Idle)
	c.session = nil
	c.index = 0
	c.seen = make(map[string]struct{})
	c.closeGateLocked()
	c.busy = false
	c.presentation++
	c.lastAnswer = ""
	c.feedback = nil
	c.nextAvailable = false
	c.followUp = ""
	c.sampleAnswer = ""
	c.summary = nil
	c.log.Reset()
}

// Close tears the attempt down. Work still in flight is cancelled and its
// results are dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	if !c.open {
		c.unlock()
		return
	}

	c.open = false
	c.generation++
	c.cancel()
	c.resetLocked()

	handle := c.reveal
	c.reveal = nil
	tm := c.timer
	c.timer = nil
	c.unlock()

	if handle != nil {
		handle.Cancel()
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
	if tm != nil {
		tm.Close()
	}

	c.logger.Debug("interview closed")
}

// Start creates a session, or reuses the one in job, and starts the
// welcome sequence. On failure the controller stays Idle.
func (c *Controller) Start(ctx context.Context, job JobContext) error {
	c.mu.Lock()
	c.openLocked()
	if c.state != Idle {
		c.unlock()
		return ErrInvalidState
	}
	if c.busy {
		c.unlock()
		return ErrBusy
	}
	c.busy = true
	gen := c.generation
	c.unlock()

	session, err := c.obtainSession(ctx, job)

	c.mu.Lock()
	defer c.unlock()

	c.busy = false
	if gen != c.generation {
		return ErrSessionClosed
	}
	if err != nil {
		return c.reportLocked(SessionCreation, err)
	}

	if session.Language == "" {
		session.Language = job.Language
	}
	c.session = session
	c.index = 0
	c.nextAvailable = true
	c.setStateLocked(Initializing)

	welcome := c.cfg.Welcome(session)
	c.appendLocked(conversation.NewNote(conversation.NoteWelcome, "", welcome))

	c.logger.Info("interview started",
		zap.String("session_id", session.ID),
		zap.Int("questions", session.Total()),
		zap.String("lang", session.Language),
	)

	if c.narrator != nil {
		c.narrator.SetSessionLanguage(session.Language)
	}

	go c.welcome(c.ctx, gen, welcome, session.Language)
	return nil
}

func (c *Controller) obtainSession(ctx context.Context, job JobContext) (*qa.Session, error) {
	session := job.Session
	if session == nil {
		if strings.TrimSpace(job.Description) == "" {
			return nil, errors.New("job description is required")
		}

		var err error
		session, err = c.remote.CreateSession(ctx, qa.CreateSessionRequest{
			JobDescription: job.Description,
			QuestionCount:  job.QuestionCount,
			Difficulty:     job.Difficulty,
			Language:       job.Language,
		})
		if err != nil {
			return nil, err
		}
	}

	if len(session.Questions) == 0 && session.ID != "" {
		q, err := c.remote.CurrentQuestion(ctx, session.ID)
		if err != nil {
			return nil, fmt.Errorf("fetch first question: %w", err)
		}
		session.Questions = append(session.Questions, *q)
	}

	if session.Total() == 0 || len(session.Questions) == 0 {
		return nil, errors.New("session has no questions")
	}

	return session, nil
}

// welcome narrates the greeting and then presents the first question.
func (c *Controller) welcome(ctx context.Context, gen int, text, lang string) {
	if err := <-c.narrate(ctx, text, lang); err != nil {
		c.reportSynthesis(gen, err)
	}

	if ctx.Err() != nil {
		return
	}

	if err := c.present(gen, 0); err != nil && !errors.Is(err, ErrSessionClosed) {
		c.logger.Warn("present first question", zap.Error(err))
	}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		State:        c.state,
		Index:        c.index,
		GateOpen:     c.gateOpen,
		Busy:         c.busy,
		FollowUp:     c.followUp,
		SampleAnswer: c.sampleAnswer,
	}

	if c.timer != nil {
		s.Elapsed = c.timer.Elapsed()
	}

	if c.session != nil {
		s.SessionID = c.session.ID
		s.Total = c.session.Total()
		s.Answered = c.session.AnsweredQuestions
		if q, ok := c.questionLocked(c.index); ok {
			s.Question = &q
		}
		s.HasNext = c.hasNextLocked()
	}
	if c.feedback != nil {
		fb := *c.feedback
		s.Feedback = &fb
	}
	if c.summary != nil {
		summary := *c.summary
		s.Summary = &summary
	}

	return s
}

// WaitGate blocks until the answer gate of the current question opens.
func (c *Controller) WaitGate(ctx context.Context) error {
	c.mu.Lock()
	ch := c.gateCh
	open := c.gateOpen
	c.mu.Unlock()

	if open {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return nil
	}
}

// ToggleCapture starts or stops dictation for the current question.
func (c *Controller) ToggleCapture(ctx context.Context) (bool, error) {
	if c.capture == nil {
		return false, ErrNoCapture
	}

	c.mu.Lock()
	ready := c.state == AwaitingAnswer && c.gateOpen
	c.mu.Unlock()
	if !ready {
		return false, capture.ErrGateClosed
	}

	running, err := c.capture.Toggle(ctx)
	if err != nil && !errors.Is(err, capture.ErrGateClosed) {
		c.ReportRecognition(err)
	}
	return running, err
}

// ReportRecognition surfaces a dictation failure. Session state is not affected.
func (c *Controller) ReportRecognition(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	defer c.unlock()
	c.reportLocked(Recognition, err)
}

func (c *Controller) reportSynthesis(gen int, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}

	c.mu.Lock()
	defer c.unlock()
	if gen != c.generation {
		return
	}
	c.reportLocked(Synthesis, err)
}

func (c *Controller) narrate(ctx context.Context, text, lang string) <-chan error {
	if c.narrator == nil {
		done := make(chan error, 1)
		done <- nil
		close(done)
		return done
	}
	return c.narrator.Narrate(ctx, text, lang)
}

func (c *Controller) questionLocked(i int) (qa.Question, bool) {
	if c.session == nil || i < 0 || i >= len(c.session.Questions) {
		return qa.Question{}, false
	}
	return c.session.Questions[i], true
}

func (c *Controller) hasNextLocked() bool {
	return c.session != nil && c.nextAvailable && c.index+1 < c.session.Total()
}

// unlock releases the lock and then runs the queued event callbacks.
func (c *Controller) unlock() {
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, f := range pending {
		f()
	}
}

func (c *Controller) emit(f func()) {
	c.pending = append(c.pending, f)
}

func (c *Controller) setStateLocked(s State) {
	from := c.state
	if from == s {
		return
	}
	c.state = s

	c.logger.Debug("interview state", zap.Stringer("from", from), zap.Stringer("to", s))
	if cb := c.events.OnStateChange; cb != nil {
		c.emit(func() { cb(from, s) })
	}
}

func (c *Controller) openGateLocked() {
	if c.gateOpen {
		return
	}
	c.gateOpen = true
	close(c.gateCh)

	if cb := c.events.OnGateChange; cb != nil {
		c.emit(func() { cb(true) })
	}
}

func (c *Controller) closeGateLocked() {
	if !c.gateOpen {
		return
	}
	c.gateOpen = false
	c.gateCh = make(chan struct{})

	if cb := c.events.OnGateChange; cb != nil {
		c.emit(func() { cb(false) })
	}
}

func (c *Controller) appendLocked(e conversation.Entry) {
	switch v := e.(type) {
	case conversation.Question:
		if !c.log.AppendQuestion(v.QuestionID, v.Text) {
			return
		}
	case conversation.Typing:
		if !c.log.ShowTyping(v.QuestionID) {
			return
		}
	default:
		c.log.Append(e)
	}

	if cb := c.events.OnEntry; cb != nil {
		c.emit(func() { cb(e) })
	}
}

func (c *Controller) replaceTypingLocked(e conversation.Entry) {
	c.log.ReplaceTyping(e)
	if cb := c.events.OnEntry; cb != nil {
		c.emit(func() { cb(e) })
	}
}

// reportLocked logs err, queues OnError and returns the wrapped error.
func (c *Controller) reportLocked(kind ErrorKind, err error) error {
	e := &Error{Kind: kind, Err: err}
	c.logger.Warn("interview step failed", zap.String("kind", string(kind)), zap.Error(err))
	if cb := c.events.OnError; cb != nil {
		c.emit(func() { cb(e) })
	}
	return e
}

var welcomes = map[string]string{
	"en": "Welcome to your mock interview. We will go through %d questions. Answer as you would in a real interview.",
	"vi": "Chào mừng bạn đến với buổi phỏng vấn thử. Chúng ta sẽ đi qua %d câu hỏi. Hãy trả lời như trong một buổi phỏng vấn thật.",
	"ru": "Добро пожаловать на пробное собеседование. Впереди вопросов: %d. Отвечайте так, как ответили бы на настоящем интервью.",
}

// DefaultWelcome greets the candidate in the session language.
func DefaultWelcome(session *qa.Session) string {
	tmpl, ok := welcomes[language.Primary(language.Expand(session.Language))]
	if !ok {
		tmpl = welcomes["en"]
	}
	return fmt.Sprintf(tmpl, session.Total())
}
