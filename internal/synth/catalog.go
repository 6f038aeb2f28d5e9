// Package synth provides speech synthesis back ends for narration.
package synth

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spigell/hh-interviewer/internal/voice"
)

//go:embed voices.yaml
var builtinCatalog []byte

type catalogFile struct {
	Voices []voice.Voice `yaml:"voices"`
}

// Catalog is the voice list of a back end. It starts empty and is filled
// asynchronously, like voices of a platform synthesizer.
type Catalog struct {
	mu      sync.RWMutex
	voices  []voice.Voice
	changed chan struct{}
}

func NewCatalog() *Catalog {
	return &Catalog{changed: make(chan struct{})}
}

func (c *Catalog) Voices() []voice.Voice {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]voice.Voice, len(c.voices))
	copy(out, c.voices)
	return out
}

// VoicesChanged returns a channel closed on the next Set.
func (c *Catalog) VoicesChanged() <-chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.changed
}

func (c *Catalog) Set(voices []voice.Voice) {
	c.mu.Lock()
	c.voices = append([]voice.Voice(nil), voices...)
	changed := c.changed
	c.changed = make(chan struct{})
	c.mu.Unlock()

	close(changed)
}

// Load fills the catalog in the background from path, or from the built-in
// list when path is empty. The returned channel receives the load error, if
// any, and is then closed.
func (c *Catalog) Load(ctx context.Context, path string, logger *zap.Logger) <-chan error {
	if logger == nil {
		logger = zap.NewNop()
	}

	done := make(chan error, 1)
	go func() {
		defer close(done)

		voices, err := ParseCatalog(path)
		if err != nil {
			logger.Warn("voice catalog not loaded", zap.String("path", path), zap.Error(err))
			done <- err
			return
		}
		if ctx.Err() != nil {
			done <- ctx.Err()
			return
		}

		c.Set(voices)
		logger.Debug("voice catalog loaded", zap.Int("voices", len(voices)))
	}()
	return done
}

// ParseCatalog reads a yaml voice list. An empty path yields the built-in list.
func ParseCatalog(path string) ([]voice.Voice, error) {
	data := builtinCatalog
	if path = strings.TrimSpace(path); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read voice catalog %s: %w", path, err)
		}
		data = raw
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse voice catalog: %w", err)
	}

	voices := make([]voice.Voice, 0, len(file.Voices))
	for _, v := range file.Voices {
		v.Name = strings.TrimSpace(v.Name)
		v.Lang = strings.TrimSpace(v.Lang)
		if v.Name == "" || v.Lang == "" {
			continue
		}
		voices = append(voices, v)
	}
	if len(voices) == 0 {
		return nil, errors.New("voice catalog has no usable voices")
	}
	return voices, nil
}
