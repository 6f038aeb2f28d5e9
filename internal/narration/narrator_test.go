package narration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/hh-interviewer/internal/language"
	"github.com/spigell/hh-interviewer/internal/voice"
)

type fakeSynth struct {
	mu      sync.Mutex
	voices  []voice.Voice
	changed chan struct{}
	spoken  []Utterance
	err     error
	block   bool
}

func newFakeSynth(voices ...voice.Voice) *fakeSynth {
	return &fakeSynth{voices: voices, changed: make(chan struct{})}
}

func (f *fakeSynth) Voices() []voice.Voice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]voice.Voice(nil), f.voices...)
}

func (f *fakeSynth) VoicesChanged() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.changed
}

func (f *fakeSynth) load(voices ...voice.Voice) {
	f.mu.Lock()
	f.voices = voices
	close(f.changed)
	f.changed = make(chan struct{})
	f.mu.Unlock()
}

func (f *fakeSynth) Speak(ctx context.Context, u Utterance) error {
	f.mu.Lock()
	f.spoken = append(f.spoken, u)
	block, err := f.block, f.err
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (f *fakeSynth) utterances() []Utterance {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Utterance(nil), f.spoken...)
}

func wait(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		if _, open := <-done; open {
			t.Fatalf("completion channel delivered more than one value")
		}
		return err
	case <-time.After(2 * time.Second):
		t.Fatalf("narration did not complete")
	}
	return nil
}

var (
	english    = voice.Voice{Name: "Google US English", Lang: "en-US"}
	vietnamese = voice.Voice{Name: "Microsoft HoaiMy Online (Natural)", Lang: "vi-VN"}
)

func TestEffectiveLanguage(t *testing.T) {
	t.Parallel()

	n := New(newFakeSynth(), Config{}, nil)

	cases := []struct {
		name    string
		text    string
		hint    string
		session string
		want    language.Tag
	}{
		{name: "classified text wins", text: "Xin chào, bạn khỏe không?", hint: "en", want: language.Vietnamese},
		{name: "hint when text is inconclusive", text: "1234", hint: "ru", want: language.Russian},
		{name: "session language after hint", text: "1234", session: "vi", want: language.Vietnamese},
		{name: "default last", text: "", want: language.Default},
	}

	for _, tc := range cases {
		n.SetSessionLanguage(tc.session)
		if got := n.EffectiveLanguage(tc.text, tc.hint); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestNarrateSpeaksCleanTextWithSelectedVoice(t *testing.T) {
	t.Parallel()

	synth := newFakeSynth(english, vietnamese)
	n := New(synth, Config{Rate: 1.1}, nil)

	if err := wait(t, n.Narrate(context.Background(), "**Hello**, how are you today? 👋", "")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spoken := synth.utterances()
	if len(spoken) != 1 {
		t.Fatalf("expected one utterance, got %d", len(spoken))
	}
	u := spoken[0]
	if u.Text != "Hello, how are you today?" {
		t.Fatalf("unexpected text: %q", u.Text)
	}
	if u.Lang != language.English || u.Voice != english || u.Rate != 1.1 {
		t.Fatalf("unexpected utterance: %+v", u)
	}
}

func TestSynthesisErrorStillCompletes(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	synth := newFakeSynth(english)
	synth.err = errors.New("audio device busy")
	n := New(synth, Config{}, zap.New(core))

	err := wait(t, n.Narrate(context.Background(), "Hello there", ""))
	if err == nil || !errors.Is(err, synth.err) {
		t.Fatalf("expected synthesis error, got %v", err)
	}
	if logs.FilterMessage("narration failed").Len() != 1 {
		t.Fatalf("expected failure to be logged")
	}
}

func TestNarrateWaitsForVoices(t *testing.T) {
	t.Parallel()

	synth := newFakeSynth()
	n := New(synth, Config{VoiceWait: time.Second}, nil)

	done := n.Narrate(context.Background(), "Hello, how are you today?", "")
	go func() {
		time.Sleep(10 * time.Millisecond)
		synth.load(english)
	}()

	if err := wait(t, done); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := synth.utterances()[0].Voice; got != english {
		t.Fatalf("expected loaded voice, got %+v", got)
	}
}

func TestNarrateWithoutVoicesUsesLanguageOnly(t *testing.T) {
	t.Parallel()

	synth := newFakeSynth()
	n := New(synth, Config{VoiceWait: 5 * time.Millisecond}, nil)

	if err := wait(t, n.Narrate(context.Background(), "Xin chào, bạn khỏe không?", "")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	u := synth.utterances()[0]
	if u.Voice != (voice.Voice{}) || u.Lang != language.Vietnamese {
		t.Fatalf("expected language-only utterance, got %+v", u)
	}
	if n.MissingVoice(language.Vietnamese) {
		t.Fatalf("an empty voice list is not a missing voice")
	}
}

func TestMissingVietnameseVoiceFallsBack(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		events []bool
	)
	synth := newFakeSynth(english)
	n := New(synth, Config{OnMissingVoice: func(lang, fallback language.Tag, missing bool) {
		if lang != language.Vietnamese || fallback != language.English {
			t.Errorf("unexpected advisory for %q with fallback %q", lang, fallback)
		}
		mu.Lock()
		events = append(events, missing)
		mu.Unlock()
	}}, nil)

	for i := 0; i < 2; i++ {
		if err := wait(t, n.Narrate(context.Background(), "Xin chào, bạn khỏe không?", "")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	u := synth.utterances()[0]
	if u.Voice != english || u.Lang != language.English {
		t.Fatalf("expected fallback voice, got %+v", u)
	}
	if !n.MissingVoice(language.Vietnamese) {
		t.Fatalf("expected missing voice flag")
	}

	synth.load(english, vietnamese)
	if err := wait(t, n.Narrate(context.Background(), "Xin chào, bạn khỏe không?", "")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.MissingVoice(language.Vietnamese) {
		t.Fatalf("flag must clear once a voice is installed")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 || !events[0] || events[1] {
		t.Fatalf("expected one raise and one clear, got %v", events)
	}
}

func TestNewNarrationCancelsPrevious(t *testing.T) {
	t.Parallel()

	synth := newFakeSynth(english)
	synth.block = true
	n := New(synth, Config{}, nil)

	first := n.Narrate(context.Background(), "Welcome to the interview", "")
	for len(synth.utterances()) == 0 {
		time.Sleep(time.Millisecond)
	}

	second := n.Narrate(context.Background(), "First question", "")
	if err := wait(t, first); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected first narration to be cancelled, got %v", err)
	}

	n.Cancel()
	if err := wait(t, second); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected second narration to be cancelled, got %v", err)
	}
	if n.Active() {
		t.Fatalf("no narration should be active")
	}
}

func TestEmptyTextCompletesImmediately(t *testing.T) {
	t.Parallel()

	synth := newFakeSynth(english)
	n := New(synth, Config{}, nil)

	if err := wait(t, n.Narrate(context.Background(), " 🎉 ", "")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(synth.utterances()) != 0 {
		t.Fatalf("nothing should be spoken")
	}
}
