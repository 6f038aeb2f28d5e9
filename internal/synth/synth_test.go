package synth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spigell/hh-interviewer/internal/language"
	"github.com/spigell/hh-interviewer/internal/narration"
	"github.com/spigell/hh-interviewer/internal/voice"
)

func TestParseCatalogBuiltin(t *testing.T) {
	t.Parallel()

	voices, err := ParseCatalog("")
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	if !voice.HasLanguage(language.Vietnamese, voices) || !voice.HasLanguage(language.Russian, voices) {
		t.Fatalf("built-in catalog misses a supported language: %+v", voices)
	}
}

func TestParseCatalogFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := filepath.Join(dir, "voices.yaml")
	if err := os.WriteFile(good, []byte("voices:\n  - name: Anna\n    lang: ru-RU\n  - name: ''\n    lang: en-US\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	empty := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(empty, []byte("voices: []\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	voices, err := ParseCatalog(good)
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	if len(voices) != 1 || voices[0].Name != "Anna" {
		t.Fatalf("unnamed voices must be skipped: %+v", voices)
	}

	if _, err := ParseCatalog(empty); err == nil {
		t.Fatal("expected error for empty catalog")
	}
	if _, err := ParseCatalog(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestCatalogLoadSignalsChange(t *testing.T) {
	t.Parallel()

	c := NewCatalog()
	if len(c.Voices()) != 0 {
		t.Fatal("catalog must start empty")
	}
	changed := c.VoicesChanged()

	if err := <-c.Load(context.Background(), "", nil); err != nil {
		t.Fatalf("Load: %v", err)
	}

	select {
	case <-changed:
	case <-time.After(time.Second):
		t.Fatal("change was not signalled")
	}
	if len(c.Voices()) == 0 {
		t.Fatal("voices not loaded")
	}
	if c.VoicesChanged() == changed {
		t.Fatal("a fresh change channel is expected after Set")
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	switch os.Getenv("HELPER_MODE") {
	case "fail":
		fmt.Fprint(os.Stderr, "voice not found")
		os.Exit(1)
	case "hang":
		time.Sleep(time.Minute)
	}
	os.Exit(0)
}

func fakeCommand(t *testing.T, mode string) *[]string {
	t.Helper()

	var recorded []string
	original := command
	command = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		recorded = append([]string{name}, args...)
		cs := append([]string{"-test.run=TestHelperProcess", "--"}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "HELPER_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() { command = original })
	return &recorded
}

func TestCommandExpandsArgs(t *testing.T) {
	recorded := fakeCommand(t, "ok")

	c := NewCommand(nil, "", nil, nil)
	err := c.Speak(context.Background(), narration.Utterance{
		Text:  "Xin chào",
		Lang:  language.Vietnamese,
		Rate:  2,
		Pitch: 1,
	})
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}

	want := []string{"espeak-ng", "-v", "vi", "-s", "350", "-p", "50", "Xin chào"}
	if strings.Join(*recorded, "|") != strings.Join(want, "|") {
		t.Fatalf("args = %q, want %q", *recorded, want)
	}
}

func TestCommandCustomTemplate(t *testing.T) {
	recorded := fakeCommand(t, "ok")

	c := NewCommand(nil, "say", []string{"-v", "{voice}", "--", "{text}"}, nil)
	err := c.Speak(context.Background(), narration.Utterance{
		Text:  "Hello",
		Lang:  language.English,
		Voice: voice.Voice{Name: "Samantha", Lang: "en-US"},
	})
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if got := strings.Join(*recorded, " "); got != "say -v Samantha -- Hello" {
		t.Fatalf("unexpected command line %q", got)
	}
}

func TestCommandFailureCarriesStderr(t *testing.T) {
	fakeCommand(t, "fail")

	c := NewCommand(nil, "espeak-ng", nil, nil)
	err := c.Speak(context.Background(), narration.Utterance{Text: "hi", Lang: language.English})
	if err == nil || !strings.Contains(err.Error(), "voice not found") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}

func TestCommandCancel(t *testing.T) {
	fakeCommand(t, "hang")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	c := NewCommand(nil, "espeak-ng", nil, nil)
	err := c.Speak(ctx, narration.Utterance{Text: "hi", Lang: language.English})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestConsoleSpeak(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	c := NewConsole(nil, &buf, 60000)

	if err := c.Speak(context.Background(), narration.Utterance{Text: "Tell me about yourself", Lang: language.English}); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if got := buf.String(); got != "Interviewer [en-US]: Tell me about yourself\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestConsoleSpeakCancelled(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	c := NewConsole(nil, &buf, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := c.Speak(ctx, narration.Utterance{Text: "a long question", Lang: language.English}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestConsoleDuration(t *testing.T) {
	t.Parallel()

	c := NewConsole(nil, &bytes.Buffer{}, 120)

	tests := []struct {
		text string
		rate float64
		want time.Duration
	}{
		{text: "one two three four", rate: 1, want: 2 * time.Second},
		{text: "one two three four", rate: 2, want: time.Second},
		{text: "one two", rate: 0, want: time.Second},
		{text: "   ", rate: 1, want: 0},
	}
	for _, tt := range tests {
		if got := c.Duration(tt.text, tt.rate); got != tt.want {
			t.Fatalf("Duration(%q, %v) = %v, want %v", tt.text, tt.rate, got, tt.want)
		}
	}
}
