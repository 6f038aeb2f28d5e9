package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/manifoldco/promptui"
	"go.uber.org/zap"

	"github.com/spigell/hh-interviewer/internal/capture"
	"github.com/spigell/hh-interviewer/internal/conversation"
	"github.com/spigell/hh-interviewer/internal/interview"
	"github.com/spigell/hh-interviewer/internal/language"
	"github.com/spigell/hh-interviewer/internal/logger"
	"github.com/spigell/hh-interviewer/internal/qa"
)

const (
	PromptNext     = "Next question"
	PromptFollowUp = "Ask me a follow-up"
	PromptSample   = "Show a sample answer"
	PromptFinish   = "Finish the interview"

	commandMic    = "/mic"
	commandSample = "/sample"
	commandFinish = "/finish"
	commandQuit   = "/quit"
)

var errQuit = errors.New("exit requested")

// terminal serialises output from the controller callbacks. A line being
// revealed is rewritten in place until something else is printed.
type terminal struct {
	mu      sync.Mutex
	out     io.Writer
	pending bool
}

func newTerminal(out io.Writer) *terminal {
	return &terminal{out: out}
}

func (t *terminal) rewrite(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "\r\033[K"+format, args...)
	t.pending = true
}

func (t *terminal) println(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending {
		fmt.Fprintln(t.out)
		t.pending = false
	}
	fmt.Fprintf(t.out, format+"\n", args...)
}

func (t *terminal) partial(text string) {
	t.rewrite("... %s", text)
}

func (t *terminal) endLine() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending {
		fmt.Fprintln(t.out)
		t.pending = false
	}
}

// session is the interactive loop around the controller.
type session struct {
	ctrl   *interview.Controller
	term   *terminal
	logger *zap.Logger

	mu       sync.Mutex
	advisory string
}

// voiceAdvisory keeps a banner on the prompts while the narrated language has
// no installed voice.
func (s *session) voiceAdvisory(lang, fallback language.Tag, missing bool) {
	s.mu.Lock()
	s.advisory = ""
	if missing {
		s.advisory = fmt.Sprintf("no %s voice installed, narrating in %s", lang, fallback)
	}
	advisory := s.advisory
	s.mu.Unlock()

	if missing {
		s.term.println("[%s]", advisory)
		return
	}
	s.term.println("[%s voice available]", lang)
}

func (s *session) label(base string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.advisory == "" {
		return base
	}
	return base + " [" + s.advisory + "]"
}

func (s *session) events() interview.Events {
	return interview.Events{
		OnReveal: func(index int, text string) {
			s.term.rewrite("Q%d: %s", index+1, text)
		},
		OnGateChange: func(open bool) {
			if open {
				s.term.endLine()
			}
		},
		OnEntry: s.printEntry,
		OnError: func(err *interview.Error) {
			s.term.println("! %s", err)
		},
	}
}

func (s *session) reportRecognition(err error) {
	if s.ctrl != nil {
		s.ctrl.ReportRecognition(err)
	}
}

func (s *session) printEntry(entry conversation.Entry) {
	switch e := entry.(type) {
	case conversation.Typing:
		s.term.println("Interviewer is reviewing your answer...")
	case conversation.Feedback:
		printFeedback(s.term, e.Feedback)
	case conversation.Note:
		switch e.Type {
		case conversation.NoteWelcome:
			s.term.println("%s\n", e.Text)
		case conversation.NoteFollowUp:
			s.term.println("Follow-up: %s", e.Text)
		case conversation.NoteSampleAnswer:
			s.term.println("Sample answer:\n%s\n", e.Text)
		case conversation.NoteSummary:
			s.term.println("\n%s", e.Text)
		}
	}
}

func printFeedback(t *terminal, fb qa.Feedback) {
	t.println("Score: %.1f/%d", fb.Score, qa.MaxScore)
	if fb.Text != "" {
		t.println("%s", fb.Text)
	}
	for _, s := range fb.Strengths {
		t.println("  + %s", s)
	}
	for _, s := range fb.Improvements {
		t.println("  - %s", s)
	}
}

func (s *session) run(ctx context.Context, job interview.JobContext) error {
	s.ctrl.Open()
	defer s.ctrl.Close()

	if err := s.ctrl.Start(ctx, job); err != nil {
		return err
	}

	snap := s.ctrl.Snapshot()
	s.logger = logger.WithSession(s.logger, snap.SessionID, job.Language)
	s.logger.Info("interview ready", zap.Int("questions", snap.Total))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		snap := s.ctrl.Snapshot()
		var err error
		switch snap.State {
		case interview.Completed:
			s.printSummary(snap.Summary)
			return nil
		case interview.AwaitingAnswer:
			err = s.answer(ctx, snap)
		case interview.Reviewing:
			err = s.review(ctx, snap)
		default:
			err = s.ctrl.WaitGate(ctx)
		}
		if err != nil {
			return err
		}
	}
}

func (s *session) answer(ctx context.Context, snap interview.Snapshot) error {
	field := s.ctrl.Field()
	field.Focus()

	prompt := promptui.Prompt{
		Label:     s.label(fmt.Sprintf("Answer %d/%d (%s, %s, %s, %s)", snap.Index+1, snap.Total, commandMic, commandSample, commandFinish, commandQuit)),
		Default:   field.Value(),
		AllowEdit: true,
	}
	text, err := prompt.Run()
	if err != nil {
		field.Blur()
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return errQuit
		}
		return err
	}

	switch strings.TrimSpace(text) {
	case commandQuit:
		field.Blur()
		return errQuit
	case commandMic:
		field.Blur()
		return s.dictate(ctx)
	case commandSample:
		field.Blur()
		_, err := s.ctrl.SampleAnswer(ctx)
		return ignoreReported(err)
	case commandFinish:
		field.Blur()
		_, err := s.ctrl.Finalize(ctx)
		return ignoreReported(err)
	}

	if text != field.Value() {
		field.Type(text)
	}
	field.Blur()

	_, err = s.ctrl.SubmitAnswer(ctx, text)
	switch {
	case errors.Is(err, interview.ErrEmptyAnswer):
		s.term.println("Type an answer or use %s to dictate one.", commandMic)
		return nil
	default:
		return ignoreReported(err)
	}
}

// dictate records until ENTER is pressed. The transcript lands in the answer
// field and becomes the default of the next answer prompt.
func (s *session) dictate(ctx context.Context) error {
	running, err := s.ctrl.ToggleCapture(ctx)
	if err != nil {
		if errors.Is(err, interview.ErrNoCapture) {
			s.term.println("Dictation is not configured. Set recognizer.url in the config file.")
			return nil
		}
		return ignoreReported(err)
	}
	if !running {
		return nil
	}

	stop := promptui.Prompt{Label: "Speak now, press ENTER to stop"}
	_, promptErr := stop.Run()

	if _, err := s.ctrl.ToggleCapture(ctx); err != nil && !errors.Is(err, capture.ErrGateClosed) {
		s.logger.Debug("stopping dictation", zap.Error(err))
	}
	s.term.endLine()

	if errors.Is(promptErr, promptui.ErrInterrupt) {
		return errQuit
	}
	return nil
}

func (s *session) review(ctx context.Context, snap interview.Snapshot) error {
	items := make([]string, 0, 4)
	if snap.HasNext {
		items = append(items, PromptNext)
	}
	if snap.FollowUp == "" {
		items = append(items, PromptFollowUp)
	}
	if snap.SampleAnswer == "" {
		items = append(items, PromptSample)
	}
	items = append(items, PromptFinish)

	menu := promptui.Select{
		Label: s.label(fmt.Sprintf("Question %d/%d answered", snap.Answered, snap.Total)),
		Items: items,
	}
	_, action, err := menu.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return errQuit
		}
		return err
	}

	switch action {
	case PromptNext:
		err = s.ctrl.Advance(ctx)
	case PromptFollowUp:
		_, err = s.ctrl.FollowUp(ctx)
	case PromptSample:
		_, err = s.ctrl.SampleAnswer(ctx)
	case PromptFinish:
		_, err = s.ctrl.Finalize(ctx)
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
	return ignoreReported(err)
}

func (s *session) printSummary(summary *qa.Summary) {
	if summary == nil {
		return
	}
	s.term.println("Average score: %.1f/%d, %d of %d questions answered.",
		summary.AverageScore, qa.MaxScore, summary.AnsweredQuestions, summary.TotalQuestions)
}

// ignoreReported drops errors that already went through Events.OnError or
// only mean the action does not apply right now.
func ignoreReported(err error) error {
	var ierr *interview.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ierr),
		errors.Is(err, interview.ErrBusy),
		errors.Is(err, interview.ErrInvalidState),
		errors.Is(err, interview.ErrNoMoreQuestions),
		errors.Is(err, capture.ErrGateClosed):
		return nil
	default:
		return err
	}
}
