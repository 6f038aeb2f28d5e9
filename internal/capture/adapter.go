// Package capture turns a streaming speech recognizer into answer text and
// decides when the capture language should switch.
package capture

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/spigell/hh-interviewer/internal/language"
)

// ErrGateClosed is returned when capture is requested before the question is ready.
var ErrGateClosed = errors.New("capture: input gate is closed")

// Result is one recognizer event. A zero Confidence means the recognizer did not report one.
type Result struct {
	Transcript string
	Final      bool
	Confidence float64
	Err        error
}

// Recognizer is a continuous speech recognition capability. The returned
// channel is closed when the stream ends; cancelling ctx ends it.
type Recognizer interface {
	Start(ctx context.Context, lang language.Tag, alternates []language.Tag) (<-chan Result, error)
}

// Events are invoked on the stream goroutine without any adapter lock held.
type Events struct {
	OnPartial        func(text string)
	OnFinal          func(text string)
	OnError          func(err error)
	OnLanguageChange func(old, new language.Tag)
	OnRunningChange  func(running bool)
}

type Config struct {
	MinConfidence float64
}

// Adapter owns at most one recognition stream at a time.
type Adapter struct {
	recognizer    Recognizer
	pref          *language.Preference
	field         *Field
	events        Events
	logger        *zap.Logger
	minConfidence float64

	mu          sync.Mutex
	gateOpen    bool
	cancel      context.CancelFunc
	gen         int
	accumulated string
}

func NewAdapter(recognizer Recognizer, pref *language.Preference, field *Field, cfg Config, events Events, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if field == nil {
		field = NewField(DefaultSyncDelay)
	}
	return &Adapter{
		recognizer:    recognizer,
		pref:          pref,
		field:         field,
		events:        events,
		logger:        logger,
		minConfidence: cfg.MinConfidence,
	}
}

func (a *Adapter) Field() *Field {
	return a.field
}

// Start opens a new stream in the current preferred language, replacing any active one.
func (a *Adapter) Start(ctx context.Context) error {
	if a.recognizer == nil {
		return errors.New("capture: no recognizer configured")
	}

	a.mu.Lock()
	if !a.gateOpen {
		a.mu.Unlock()
		return ErrGateClosed
	}
	a.stopLocked()
	a.gen++
	gen := a.gen
	a.mu.Unlock()

	lang := a.pref.Current()
	alternates := a.pref.Alternates()

	streamCtx, cancel := context.WithCancel(ctx)
	results, err := a.recognizer.Start(streamCtx, lang, alternates)
	if err != nil {
		cancel()
		return err
	}

	a.mu.Lock()
	if a.gen != gen || !a.gateOpen {
		a.mu.Unlock()
		cancel()
		if !a.GateOpen() {
			return ErrGateClosed
		}
		return nil
	}
	a.cancel = cancel
	a.mu.Unlock()

	a.logger.Debug("capture started", zap.String("lang", string(lang)), zap.Any("alternates", alternates))
	a.notifyRunning(true)

	go a.consume(streamCtx, gen, results)
	return nil
}

// Stop ends the active stream. Late results of the stopped stream are dropped.
func (a *Adapter) Stop() {
	a.mu.Lock()
	stopped := a.stopLocked()
	a.mu.Unlock()

	if stopped {
		a.logger.Debug("capture stopped")
		a.notifyRunning(false)
	}
}

func (a *Adapter) stopLocked() bool {
	a.gen++
	if a.cancel == nil {
		return false
	}
	a.cancel()
	a.cancel = nil
	return true
}

// Toggle starts or stops capture and reports whether it is now running.
func (a *Adapter) Toggle(ctx context.Context) (bool, error) {
	if a.Running() {
		a.Stop()
		return false, nil
	}
	if err := a.Start(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (a *Adapter) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cancel != nil
}

// SetGate opens or closes the input gate. Closing it stops capture.
func (a *Adapter) SetGate(open bool) {
	a.mu.Lock()
	a.gateOpen = open
	a.mu.Unlock()

	if !open {
		a.Stop()
	}
}

func (a *Adapter) GateOpen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gateOpen
}

// Transcript is the accumulated final text of the current answer.
func (a *Adapter) Transcript() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.accumulated
}

// Reset stops capture and clears the transcript and the answer field.
func (a *Adapter) Reset() {
	a.Stop()
	a.mu.Lock()
	a.accumulated = ""
	a.mu.Unlock()
	a.field.Reset()
}

func (a *Adapter) consume(ctx context.Context, gen int, results <-chan Result) {
	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-results:
			if !ok {
				a.finish(gen)
				return
			}
			if !a.handle(gen, res) {
				return
			}
		}
	}
}

func (a *Adapter) finish(gen int) {
	a.mu.Lock()
	if a.gen != gen {
		a.mu.Unlock()
		return
	}
	stopped := a.stopLocked()
	a.mu.Unlock()

	if stopped {
		a.notifyRunning(false)
	}
}

// handle applies one result and reports whether the stream should keep going.
func (a *Adapter) handle(gen int, res Result) bool {
	if res.Err != nil {
		a.logger.Warn("recognition failed", zap.Error(res.Err))
		a.finish(gen)
		if a.events.OnError != nil {
			a.events.OnError(res.Err)
		}
		return false
	}

	transcript := strings.TrimSpace(res.Transcript)
	if transcript == "" {
		return true
	}

	if res.Confidence > 0 && res.Confidence < a.minConfidence {
		a.logger.Debug("discard low confidence result",
			zap.Float64("confidence", res.Confidence),
			zap.Float64("min_confidence", a.minConfidence),
		)
		return true
	}

	a.mu.Lock()
	if a.gen != gen {
		a.mu.Unlock()
		return false
	}
	if !res.Final {
		text := join(a.accumulated, transcript)
		a.mu.Unlock()

		a.field.ApplyTranscript(text, false)
		if a.events.OnPartial != nil {
			a.events.OnPartial(text)
		}
		return true
	}

	a.accumulated = join(a.accumulated, transcript)
	text := a.accumulated
	a.mu.Unlock()

	a.detectLanguage(text)

	a.field.ApplyTranscript(text, true)
	if a.events.OnFinal != nil {
		a.events.OnFinal(text)
	}
	return true
}

// detectLanguage re-classifies the accumulated transcript. A switch takes effect on the next Start.
func (a *Adapter) detectLanguage(text string) {
	detected := language.Classify(text)
	if detected == language.Unknown {
		return
	}

	old, changed := a.pref.Detect(detected)
	if !changed {
		return
	}

	a.logger.Info("capture language switched",
		zap.String("from", string(old)),
		zap.String("to", string(detected)),
	)
	if a.events.OnLanguageChange != nil {
		a.events.OnLanguageChange(old, detected)
	}
}

func (a *Adapter) notifyRunning(running bool) {
	if a.events.OnRunningChange != nil {
		a.events.OnRunningChange(running)
	}
}

func join(prefix, next string) string {
	if prefix == "" {
		return next
	}
	return prefix + " " + next
}
