package synth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/hh-interviewer/internal/language"
	"github.com/spigell/hh-interviewer/internal/narration"
)

const (
	DefaultProgram = "espeak-ng"
	baseWPM        = 175
	basePitch      = 50
)

// DefaultArgs drives espeak-ng. Placeholders: {text} {lang} {primary} {voice} {wpm} {pitch}.
var DefaultArgs = []string{"-v", "{primary}", "-s", "{wpm}", "-p", "{pitch}", "{text}"}

// command is swapped in tests.
var command = exec.CommandContext

// Command speaks by running a local text-to-speech program once per utterance.
type Command struct {
	*Catalog

	program string
	args    []string
	logger  *zap.Logger
}

var _ narration.Synthesizer = (*Command)(nil)

func NewCommand(catalog *Catalog, program string, args []string, logger *zap.Logger) *Command {
	if catalog == nil {
		catalog = NewCatalog()
	}
	if strings.TrimSpace(program) == "" {
		program = DefaultProgram
	}
	if len(args) == 0 {
		args = DefaultArgs
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Command{Catalog: catalog, program: program, args: args, logger: logger}
}

// Speak blocks until the program exits. Cancelling ctx kills it.
func (c *Command) Speak(ctx context.Context, u narration.Utterance) error {
	args := c.expand(u)

	var stderr bytes.Buffer
	cmd := command(ctx, c.program, args...)
	cmd.Stderr = &stderr

	c.logger.Debug("speak", zap.String("program", c.program), zap.String("lang", string(u.Lang)), zap.String("voice", u.Voice.Name))

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && msg != "" {
			return fmt.Errorf("%s: %s: %w", c.program, msg, err)
		}
		return fmt.Errorf("%s: %w", c.program, err)
	}
	return nil
}

func (c *Command) expand(u narration.Utterance) []string {
	rate, pitch := u.Rate, u.Pitch
	if rate <= 0 {
		rate = 1
	}
	if pitch <= 0 {
		pitch = 1
	}

	voiceName := u.Voice.Name
	if voiceName == "" {
		voiceName = string(u.Lang)
	}

	r := strings.NewReplacer(
		"{text}", u.Text,
		"{lang}", string(u.Lang),
		"{primary}", language.Primary(u.Lang),
		"{voice}", voiceName,
		"{wpm}", strconv.Itoa(int(baseWPM*rate)),
		"{pitch}", strconv.Itoa(min(99, int(basePitch*pitch))),
	)

	out := make([]string, len(c.args))
	for i, arg := range c.args {
		out[i] = r.Replace(arg)
	}
	return out
}
