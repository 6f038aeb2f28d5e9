package synth

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spigell/hh-interviewer/internal/narration"
	"github.com/spigell/hh-interviewer/internal/utils"
)

const DefaultWPM = 160

// Console prints utterances and holds for as long as reading them aloud
// would take.
type Console struct {
	*Catalog

	mu  sync.Mutex
	out io.Writer
	wpm int
}

var _ narration.Synthesizer = (*Console)(nil)

func NewConsole(catalog *Catalog, out io.Writer, wpm int) *Console {
	if catalog == nil {
		catalog = NewCatalog()
	}
	if wpm <= 0 {
		wpm = DefaultWPM
	}
	return &Console{Catalog: catalog, out: out, wpm: wpm}
}

func (c *Console) Speak(ctx context.Context, u narration.Utterance) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	_, err := fmt.Fprintf(c.out, "Interviewer [%s]: %s\n", u.Lang, u.Text)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	return utils.WaitFor(ctx, c.Duration(u.Text, u.Rate))
}

// Duration is the reading time of text at the configured pace scaled by rate.
func (c *Console) Duration(text string, rate float64) time.Duration {
	if rate <= 0 {
		rate = 1
	}
	words := len(strings.Fields(text))
	perWord := time.Minute / time.Duration(c.wpm)
	return time.Duration(float64(time.Duration(words)*perWord) / rate)
}
