package interview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/spigell/hh-interviewer/internal/conversation"
	"github.com/spigell/hh-interviewer/internal/qa"
)

type fakeRemote struct {
	mu          sync.Mutex
	session     qa.Session
	createErr   error
	submitErrs  []error
	submitHold  chan struct{}
	pending     []qa.Question
	completeErr error
	submitted   []string
	score       float64
}

func newFakeRemote(n int) *fakeRemote {
	questions := make([]qa.Question, n)
	for i := range questions {
		questions[i] = qa.Question{ID: fmt.Sprintf("q%d", i+1), Text: fmt.Sprintf("Question %d?", i+1)}
	}
	return &fakeRemote{
		session: qa.Session{ID: "s1", Questions: questions, TotalQuestions: n, Language: "en"},
		score:   7,
	}
}

func (f *fakeRemote) CreateSession(_ context.Context, req qa.CreateSessionRequest) (*qa.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	s := f.session
	s.Questions = append([]qa.Question(nil), f.session.Questions...)
	return &s, nil
}

func (f *fakeRemote) CurrentQuestion(context.Context, string) (*qa.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) == 0 {
		return nil, errors.New("no question")
	}
	q := f.pending[0]
	f.pending = f.pending[1:]
	return &q, nil
}

func (f *fakeRemote) SubmitAnswer(ctx context.Context, _, questionID, answer string) (*qa.SubmitResult, error) {
	f.mu.Lock()
	hold := f.submitHold
	var err error
	if len(f.submitErrs) > 0 {
		err = f.submitErrs[0]
		f.submitErrs = f.submitErrs[1:]
	}
	f.submitted = append(f.submitted, answer)
	score := f.score
	f.mu.Unlock()

	if hold != nil {
		<-hold
	}
	if err != nil {
		return nil, err
	}
	return &qa.SubmitResult{
		Feedback:              qa.Feedback{QuestionID: questionID, Score: score, Text: "Good answer"},
		NextQuestionAvailable: true,
	}, nil
}

func (f *fakeRemote) GenerateFollowUp(_ context.Context, _, questionID, _ string) (string, error) {
	return "Can you give an example for " + questionID + "?", nil
}

func (f *fakeRemote) SampleAnswer(_ context.Context, _, questionID string) (string, error) {
	return "A sample answer for " + questionID, nil
}

func (f *fakeRemote) CompleteSession(context.Context, string) (*qa.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	return &qa.Summary{OverallFeedback: "Solid interview", AverageScore: f.score, AnsweredQuestions: len(f.submitted)}, nil
}

func (f *fakeRemote) History(context.Context) (*qa.History, error) {
	return &qa.History{}, nil
}

type fakeNarrator struct {
	mu    sync.Mutex
	texts []string
	calls []string
	hold  map[string]chan struct{}
	err   error
}

func (f *fakeNarrator) Narrate(ctx context.Context, text, _ string) <-chan error {
	done := make(chan error, 1)

	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.calls = append(f.calls, "narrate "+text)
	hold := f.hold[text]
	err := f.err
	f.mu.Unlock()

	go func() {
		defer close(done)
		if hold != nil {
			select {
			case <-hold:
			case <-ctx.Done():
				done <- ctx.Err()
				return
			}
		}
		done <- err
	}()
	return done
}

func (f *fakeNarrator) Cancel() {
	f.mu.Lock()
	f.calls = append(f.calls, "cancel")
	f.mu.Unlock()
}

func (f *fakeNarrator) history() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeNarrator) SetSessionLanguage(string) {}

func (f *fakeNarrator) holdText(text string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hold == nil {
		f.hold = make(map[string]chan struct{})
	}
	ch := make(chan struct{})
	f.hold[text] = ch
	return ch
}

func (f *fakeNarrator) narrated() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type harness struct {
	c        *Controller
	remote   *fakeRemote
	narrator *fakeNarrator
	errs     chan *Error
	reveals  chan string
}

func newHarness(t *testing.T, questions int, cfg Config) *harness {
	t.Helper()

	h := &harness{
		remote:   newFakeRemote(questions),
		narrator: &fakeNarrator{},
		errs:     make(chan *Error, 16),
		reveals:  make(chan string, 1024),
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = time.Hour
	}
	cfg.Welcome = func(*qa.Session) string { return "Welcome!" }

	h.c = New(h.remote, h.narrator, nil, cfg, Events{
		OnError:  func(err *Error) { h.errs <- err },
		OnReveal: func(_ int, text string) { h.reveals <- text },
	}, nil)
	t.Cleanup(h.c.Close)
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.c.Start(context.Background(), JobContext{Description: "Senior Go developer", QuestionCount: 3}); err != nil {
		t.Fatalf("start: %v", err)
	}
}

func (h *harness) waitGate(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.c.WaitGate(ctx); err != nil {
		t.Fatalf("gate did not open: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

func entryKinds(log *conversation.Log) []conversation.Kind {
	entries := log.Entries()
	out := make([]conversation.Kind, len(entries))
	for i, e := range entries {
		out[i] = e.Kind()
	}
	return out
}

func TestInterviewEndToEnd(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 3, Config{})
	h.start(t)
	h.waitGate(t)

	snap := h.c.Snapshot()
	if snap.State != AwaitingAnswer || snap.Index != 0 || snap.Total != 3 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	fb, err := h.c.SubmitAnswer(context.Background(), "I have five years of experience")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if fb.Score < qa.MinScore || fb.Score > qa.MaxScore {
		t.Fatalf("score out of range: %v", fb.Score)
	}

	want := []conversation.Kind{conversation.KindNote, conversation.KindQuestion, conversation.KindAnswer, conversation.KindFeedback}
	got := entryKinds(h.c.Log())
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("unexpected log: %v", got)
	}

	snap = h.c.Snapshot()
	if snap.State != Reviewing || snap.GateOpen || snap.Answered != 1 || !snap.HasNext {
		t.Fatalf("unexpected snapshot after feedback: %+v", snap)
	}

	if err := h.c.Advance(context.Background()); err != nil {
		t.Fatalf("advance: %v", err)
	}
	snap = h.c.Snapshot()
	if snap.Index != 1 || snap.Elapsed != 0 || snap.Feedback != nil {
		t.Fatalf("unexpected snapshot after advance: %+v", snap)
	}

	h.waitGate(t)
	for i := 1; i < 3; i++ {
		if _, err := h.c.SubmitAnswer(context.Background(), "answer"); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		if i < 2 {
			if err := h.c.Advance(context.Background()); err != nil {
				t.Fatalf("advance %d: %v", i, err)
			}
			h.waitGate(t)
		}
	}

	if err := h.c.Advance(context.Background()); !errors.Is(err, ErrNoMoreQuestions) {
		t.Fatalf("expected ErrNoMoreQuestions, got %v", err)
	}
	if snap := h.c.Snapshot(); snap.Index != 2 || snap.State != Reviewing {
		t.Fatalf("advance past the end must be a no-op: %+v", snap)
	}

	summary, err := h.c.Finalize(context.Background())
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if summary.AnsweredQuestions != 3 || h.c.Snapshot().State != Completed {
		t.Fatalf("unexpected summary %+v in state %s", summary, h.c.Snapshot().State)
	}
}

func TestWelcomeNarrationPrecedesFirstQuestion(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 2, Config{})
	release := h.narrator.holdText("Welcome!")
	h.start(t)

	time.Sleep(20 * time.Millisecond)
	if state := h.c.Snapshot().State; state != Initializing {
		t.Fatalf("expected Initializing while welcome is narrated, got %s", state)
	}
	if got := h.narrator.narrated(); len(got) != 1 {
		t.Fatalf("question narrated before welcome finished: %v", got)
	}

	close(release)
	h.waitGate(t)

	got := h.narrator.narrated()
	if len(got) != 2 || got[0] != "Welcome!" || got[1] != "Question 1?" {
		t.Fatalf("unexpected narration order: %v", got)
	}
}

func TestGateWaitsForRevealAndNarration(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 2, Config{RevealInterval: time.Millisecond})
	release := h.narrator.holdText("Question 1?")
	h.start(t)

	waitFor(t, func() bool {
		for {
			select {
			case frame := <-h.reveals:
				if frame == "Question 1?" {
					return true
				}
			default:
				return false
			}
		}
	})

	time.Sleep(10 * time.Millisecond)
	if snap := h.c.Snapshot(); snap.GateOpen || snap.State != Presenting {
		t.Fatalf("gate opened before narration finished: %+v", snap)
	}
	if _, err := h.c.SubmitAnswer(context.Background(), "too early"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState before the gate opens, got %v", err)
	}

	close(release)
	h.waitGate(t)
}

func TestPresentIsIdempotent(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 2, Config{})
	h.start(t)
	h.waitGate(t)

	if err := h.c.Present(0); err != nil {
		t.Fatalf("present: %v", err)
	}
	if err := h.c.Present(0); err != nil {
		t.Fatalf("present: %v", err)
	}

	if n := h.c.Log().CountKind(conversation.KindQuestion); n != 1 {
		t.Fatalf("expected one question entry, got %d", n)
	}
	if state := h.c.Snapshot().State; state != AwaitingAnswer {
		t.Fatalf("re-presenting must not change state, got %s", state)
	}
	if err := h.c.Present(5); !errors.Is(err, ErrNoMoreQuestions) {
		t.Fatalf("expected out of range error, got %v", err)
	}
}

func TestSkippedQuestionIsNotNarratedAfterCancel(t *testing.T) {
	t.Parallel()

	for i := 0; i < 20; i++ {
		h := newHarness(t, 2, Config{RevealInterval: time.Millisecond})
		h.start(t)

		select {
		case <-h.reveals:
		case <-time.After(2 * time.Second):
			t.Fatalf("first question was not revealed")
		}
		if err := h.c.Present(1); err != nil {
			t.Fatalf("present: %v", err)
		}
		h.waitGate(t)

		if snap := h.c.Snapshot(); snap.Index != 1 || snap.State != AwaitingAnswer {
			t.Fatalf("unexpected snapshot: %+v", snap)
		}

		calls := h.narrator.history()
		lastStale, lastCancel := -1, -1
		for j, call := range calls {
			switch call {
			case "narrate Question 1?":
				lastStale = j
			case "cancel":
				lastCancel = j
			}
		}
		if lastStale > lastCancel {
			t.Fatalf("skipped question narrated after the skip: %v", calls)
		}
		h.c.Close()
	}
}

func TestPresentAfterFeedbackOnlyMovesToNext(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 3, Config{})
	h.start(t)
	h.waitGate(t)

	if _, err := h.c.SubmitAnswer(context.Background(), "answer"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := h.c.Present(2); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState when jumping ahead, got %v", err)
	}
	if snap := h.c.Snapshot(); snap.State != Reviewing || snap.Index != 0 || snap.Feedback == nil {
		t.Fatalf("jump must not leave the review: %+v", snap)
	}
	if err := h.c.Present(0); err != nil {
		t.Fatalf("re-presenting the current question must be a no-op, got %v", err)
	}

	if err := h.c.Present(1); err != nil {
		t.Fatalf("present next: %v", err)
	}
	h.waitGate(t)
	if snap := h.c.Snapshot(); snap.Index != 1 {
		t.Fatalf("unexpected index %d", snap.Index)
	}
}

func TestPresentAfterLastFeedback(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 1, Config{})
	h.start(t)
	h.waitGate(t)

	if _, err := h.c.SubmitAnswer(context.Background(), "answer"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := h.c.Present(1); !errors.Is(err, ErrNoMoreQuestions) {
		t.Fatalf("expected ErrNoMoreQuestions, got %v", err)
	}
}

func TestSubmitFailureKeepsAwaitingAnswer(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 2, Config{})
	h.remote.submitErrs = []error{errors.New("network down")}
	cleared := make(chan struct{}, 1)
	h.c.events.OnTypingCleared = func() { cleared <- struct{}{} }
	h.start(t)
	h.waitGate(t)

	_, err := h.c.SubmitAnswer(context.Background(), "my answer")
	if !IsKind(err, AnswerSubmission) {
		t.Fatalf("expected answer submission error, got %v", err)
	}
	if reported := <-h.errs; reported.Kind != AnswerSubmission {
		t.Fatalf("unexpected reported error: %v", reported)
	}

	snap := h.c.Snapshot()
	if snap.State != AwaitingAnswer || !snap.GateOpen || snap.Busy {
		t.Fatalf("unexpected state after failure: %+v", snap)
	}
	if n := h.c.Log().CountKind(conversation.KindTyping); n != 0 {
		t.Fatalf("typing indicator left behind: %d", n)
	}
	select {
	case <-cleared:
	default:
		t.Fatalf("typing removal was not reported")
	}

	if _, err := h.c.SubmitAnswer(context.Background(), "my answer"); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestReentrantSubmitIsRejected(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 2, Config{})
	hold := make(chan struct{})
	h.remote.submitHold = hold
	h.start(t)
	h.waitGate(t)

	done := make(chan error, 1)
	go func() {
		_, err := h.c.SubmitAnswer(context.Background(), "first")
		done <- err
	}()

	waitFor(t, func() bool { return h.c.Snapshot().State == Submitting })
	if _, err := h.c.SubmitAnswer(context.Background(), "second"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if n := h.c.Log().CountKind(conversation.KindTyping); n != 1 {
		t.Fatalf("expected one typing indicator, got %d", n)
	}

	close(hold)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if got := len(h.remote.submitted); got != 1 {
		t.Fatalf("expected one remote call, got %d", got)
	}
}

func TestCloseDropsLateResults(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 2, Config{})
	hold := make(chan struct{})
	h.remote.submitHold = hold
	h.start(t)
	h.waitGate(t)

	done := make(chan error, 1)
	go func() {
		_, err := h.c.SubmitAnswer(context.Background(), "answer")
		done <- err
	}()
	waitFor(t, func() bool { return h.c.Snapshot().State == Submitting })

	h.c.Close()
	close(hold)

	if err := <-done; !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}

	snap := h.c.Snapshot()
	if snap.State != Idle || snap.SessionID != "" || snap.GateOpen {
		t.Fatalf("expected clean idle state, got %+v", snap)
	}
	if h.c.Log().Len() != 0 {
		t.Fatalf("expected empty log after close")
	}
}

func TestStartFailureStaysIdle(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 2, Config{})
	h.remote.createErr = errors.New("service unavailable")

	err := h.c.Start(context.Background(), JobContext{Description: "Go developer"})
	if !IsKind(err, SessionCreation) {
		t.Fatalf("expected session creation error, got %v", err)
	}
	if state := h.c.Snapshot().State; state != Idle {
		t.Fatalf("expected Idle, got %s", state)
	}

	h.remote.mu.Lock()
	h.remote.createErr = nil
	h.remote.mu.Unlock()

	h.start(t)
	h.waitGate(t)
}

func TestStartRequiresDescription(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 2, Config{})
	if err := h.c.Start(context.Background(), JobContext{}); !IsKind(err, SessionCreation) {
		t.Fatalf("expected session creation error, got %v", err)
	}
}

func TestEmptyAnswerIsRejected(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 1, Config{})
	h.start(t)
	h.waitGate(t)

	if _, err := h.c.SubmitAnswer(context.Background(), "   "); !errors.Is(err, ErrEmptyAnswer) {
		t.Fatalf("expected ErrEmptyAnswer, got %v", err)
	}

	h.c.Field().Type("typed in the field")
	if _, err := h.c.SubmitAnswer(context.Background(), ""); err != nil {
		t.Fatalf("field value should be submitted: %v", err)
	}
	if h.remote.submitted[0] != "typed in the field" {
		t.Fatalf("unexpected submitted answer: %q", h.remote.submitted[0])
	}
}

func TestAdvanceFetchesUnlistedQuestions(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 1, Config{})
	h.remote.session.TotalQuestions = 2
	h.remote.pending = []qa.Question{{ID: "q2", Text: "Fetched question?"}}
	h.start(t)
	h.waitGate(t)

	if _, err := h.c.SubmitAnswer(context.Background(), "answer"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := h.c.Advance(context.Background()); err != nil {
		t.Fatalf("advance: %v", err)
	}

	snap := h.c.Snapshot()
	if snap.Index != 1 || snap.Question == nil || snap.Question.ID != "q2" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestFollowUpAndSampleAnswerResetOnAdvance(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 2, Config{})
	h.start(t)
	h.waitGate(t)

	if _, err := h.c.FollowUp(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("follow-up before feedback must be rejected, got %v", err)
	}

	sample, err := h.c.SampleAnswer(context.Background())
	if err != nil || sample != "A sample answer for q1" {
		t.Fatalf("unexpected sample answer %q (err %v)", sample, err)
	}

	if _, err := h.c.SubmitAnswer(context.Background(), "answer"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	followUp, err := h.c.FollowUp(context.Background())
	if err != nil || followUp != "Can you give an example for q1?" {
		t.Fatalf("unexpected follow-up %q (err %v)", followUp, err)
	}

	snap := h.c.Snapshot()
	if snap.FollowUp == "" || snap.SampleAnswer == "" {
		t.Fatalf("expected transient state to be kept: %+v", snap)
	}

	if err := h.c.Advance(context.Background()); err != nil {
		t.Fatalf("advance: %v", err)
	}
	snap = h.c.Snapshot()
	if snap.FollowUp != "" || snap.SampleAnswer != "" || snap.Feedback != nil {
		t.Fatalf("expected transient state to be reset: %+v", snap)
	}
}

func TestSynthesisFailureDoesNotBlockFlow(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 1, Config{})
	h.narrator.err = errors.New("no audio device")
	h.start(t)
	h.waitGate(t)

	select {
	case err := <-h.errs:
		if err.Kind != Synthesis {
			t.Fatalf("unexpected error kind: %s", err.Kind)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected synthesis error to be reported")
	}
}

func TestFinalizeFailureRestoresState(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 1, Config{})
	h.remote.completeErr = errors.New("timeout")
	h.start(t)
	h.waitGate(t)

	if _, err := h.c.Finalize(context.Background()); !IsKind(err, Completion) {
		t.Fatalf("expected completion error, got %v", err)
	}
	snap := h.c.Snapshot()
	if snap.State != AwaitingAnswer || !snap.GateOpen {
		t.Fatalf("expected awaiting answer with an open gate, got %+v", snap)
	}
}

func TestTimerCountsAndResets(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 2, Config{TickInterval: 2 * time.Millisecond, PresentDelay: 50 * time.Millisecond})
	h.start(t)
	h.waitGate(t)

	waitFor(t, func() bool { return h.c.Snapshot().Elapsed >= 2 })
	if _, err := h.c.SubmitAnswer(context.Background(), "answer"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	frozen := h.c.Snapshot().Elapsed
	time.Sleep(10 * time.Millisecond)
	if got := h.c.Snapshot().Elapsed; got != frozen {
		t.Fatalf("timer kept running after feedback: %d -> %d", frozen, got)
	}

	if err := h.c.Advance(context.Background()); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if got := h.c.Snapshot().Elapsed; got != 0 {
		t.Fatalf("expected timer to restart from zero, got %d", got)
	}
}
