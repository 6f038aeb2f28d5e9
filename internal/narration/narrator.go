// Package narration speaks interviewer messages through a synthesis back end.
package narration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/hh-interviewer/internal/language"
	"github.com/spigell/hh-interviewer/internal/voice"
)

// DefaultVoiceWait bounds how long a narration waits for voices to load.
const DefaultVoiceWait = 2 * time.Second

// Utterance is one request to the synthesizer. A zero Voice asks for the
// language only and lets the back end pick.
type Utterance struct {
	Text  string
	Lang  language.Tag
	Voice voice.Voice
	Rate  float64
	Pitch float64
}

// Synthesizer is a speech synthesis capability.
//
// Voices may be empty until the back end has loaded them. VoicesChanged
// returns a channel that is closed on the next change of the voice list.
// Speak blocks until the utterance ends, fails or ctx is cancelled.
type Synthesizer interface {
	Voices() []voice.Voice
	VoicesChanged() <-chan struct{}
	Speak(ctx context.Context, u Utterance) error
}

type Config struct {
	Rate      float64
	Pitch     float64
	VoiceWait time.Duration
	// Fallback is the language used when the requested one has no voice at all.
	Fallback language.Tag
	// OnMissingVoice is called when the missing voice flag of a language
	// flips. fallback is the language spoken instead while missing is set.
	OnMissingVoice func(lang, fallback language.Tag, missing bool)
}

// Narrator keeps at most one utterance active.
type Narrator struct {
	synth  Synthesizer
	cfg    Config
	logger *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    int

	stateMu     sync.RWMutex
	sessionLang language.Tag
	missing     map[string]bool
}

func New(synth Synthesizer, cfg Config, logger *zap.Logger) *Narrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.VoiceWait <= 0 {
		cfg.VoiceWait = DefaultVoiceWait
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 1
	}
	if cfg.Pitch <= 0 {
		cfg.Pitch = 1
	}
	cfg.Fallback = language.FirstKnown(cfg.Fallback)

	return &Narrator{
		synth:   synth,
		cfg:     cfg,
		logger:  logger,
		missing: make(map[string]bool),
	}
}

// SetSessionLanguage records the language the session declared.
func (n *Narrator) SetSessionLanguage(lang string) {
	n.stateMu.Lock()
	n.sessionLang = language.Expand(lang)
	n.stateMu.Unlock()
}

// EffectiveLanguage picks the language text is spoken in: the detected
// language, then the hint, then the session language, then the default.
func (n *Narrator) EffectiveLanguage(text, hint string) language.Tag {
	n.stateMu.RLock()
	session := n.sessionLang
	n.stateMu.RUnlock()

	return language.FirstKnown(language.Classify(text), language.Expand(hint), session)
}

// MissingVoice reports whether lang was last spoken with a substituted voice.
func (n *Narrator) MissingVoice(lang language.Tag) bool {
	n.stateMu.RLock()
	defer n.stateMu.RUnlock()
	return n.missing[language.Primary(lang)]
}

func (n *Narrator) setMissing(lang language.Tag, missing bool) {
	key := language.Primary(lang)

	n.stateMu.Lock()
	changed := n.missing[key] != missing
	n.missing[key] = missing
	n.stateMu.Unlock()

	if !changed {
		return
	}
	if missing {
		n.logger.Warn("no voice installed for language, using fallback voice",
			zap.String("lang", string(lang)),
			zap.String("fallback", string(n.cfg.Fallback)),
		)
	}
	if cb := n.cfg.OnMissingVoice; cb != nil {
		cb(lang, n.cfg.Fallback, missing)
	}
}

// Narrate speaks text and returns a channel that receives exactly one value
// when the narration is over: nil, or the error that ended it. The channel is
// then closed. Starting a narration cancels the active one.
func (n *Narrator) Narrate(ctx context.Context, text, hint string) <-chan error {
	done := make(chan error, 1)

	n.mu.Lock()
	if n.cancel != nil {
		n.cancel()
	}
	n.gen++
	gen := n.gen
	ctx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	n.mu.Unlock()

	go func() {
		defer close(done)
		err := n.speak(ctx, text, hint)

		n.mu.Lock()
		if n.gen == gen {
			n.cancel = nil
		}
		n.mu.Unlock()
		cancel()

		done <- err
	}()

	return done
}

// Cancel stops the active narration, if any.
func (n *Narrator) Cancel() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.gen++
	if n.cancel != nil {
		n.cancel()
		n.cancel = nil
	}
}

// Active reports whether an utterance is in progress.
func (n *Narrator) Active() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cancel != nil
}

func (n *Narrator) speak(ctx context.Context, text, hint string) error {
	if n.synth == nil {
		return errors.New("no synthesizer configured")
	}

	lang := n.EffectiveLanguage(text, hint)
	cleaned := Clean(lang, text, n.logger)
	if strings.TrimSpace(cleaned) == "" {
		return nil
	}

	u := n.utterance(ctx, lang, cleaned)
	if err := ctx.Err(); err != nil {
		return err
	}

	n.logger.Debug("narrate",
		zap.String("lang", string(u.Lang)),
		zap.String("voice", u.Voice.Name),
		zap.Int("length", len(u.Text)),
	)

	if err := n.synth.Speak(ctx, u); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n.logger.Warn("narration failed", zap.String("lang", string(u.Lang)), zap.Error(err))
		return fmt.Errorf("speak: %w", err)
	}

	return nil
}

func (n *Narrator) utterance(ctx context.Context, lang language.Tag, text string) Utterance {
	u := Utterance{Text: text, Lang: lang, Rate: n.cfg.Rate, Pitch: n.cfg.Pitch}

	voices := n.waitVoices(ctx)
	if len(voices) == 0 {
		n.logger.Debug("no voices available, speaking by language only", zap.String("lang", string(lang)))
		return u
	}

	sel := voice.Resolve(lang, n.cfg.Fallback, voices)
	n.setMissing(lang, sel.Missing)

	u.Lang = sel.Lang
	u.Voice = sel.Voice
	return u
}

// waitVoices returns the installed voices, waiting once for a load event when
// none are known yet.
func (n *Narrator) waitVoices(ctx context.Context) []voice.Voice {
	voices := n.synth.Voices()
	if len(voices) > 0 {
		return voices
	}

	changed := n.synth.VoicesChanged()
	timer := time.NewTimer(n.cfg.VoiceWait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil
	case <-changed:
	case <-timer.C:
		n.logger.Debug("timed out waiting for voices", zap.Duration("wait", n.cfg.VoiceWait))
	}

	return n.synth.Voices()
}
