package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	aigemini "github.com/spigell/hh-interviewer/internal/ai/gemini"
	"github.com/spigell/hh-interviewer/internal/capture"
	"github.com/spigell/hh-interviewer/internal/jobs"
	"github.com/spigell/hh-interviewer/internal/language"
	"github.com/spigell/hh-interviewer/internal/logger"
	"github.com/spigell/hh-interviewer/internal/narration"
	"github.com/spigell/hh-interviewer/internal/qa"
	qagemini "github.com/spigell/hh-interviewer/internal/qa/gemini"
	"github.com/spigell/hh-interviewer/internal/recognizer"
	"github.com/spigell/hh-interviewer/internal/secrets"
	"github.com/spigell/hh-interviewer/internal/synth"
)

// newService picks the question service: the remote HTTP API or the Gemini
// backed one running in process.
func newService(ctx context.Context, config *Config, log *zap.Logger) (qa.Service, error) {
	backend := strings.ToLower(strings.TrimSpace(config.Backend))
	switch backend {
	case backendRemote:
		token, err := secrets.Load(secrets.Source{
			Name:  "interview api token",
			Value: config.Remote.Token,
			File:  config.Remote.TokenFile,
			Env:   "INTERVIEW_TOKEN",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set remote.token-file or INTERVIEW_TOKEN_FILE)", err)
		}

		return qa.NewClient(qa.ClientConfig{
			BaseURL:    config.Remote.URL,
			Token:      token,
			Timeout:    config.Remote.Timeout,
			MaxRetries: config.Remote.MaxRetries,
			Backoff:    config.Remote.Backoff,
		}, logger.WithComponent(log, "remote"))

	case backendGemini, "":
		gemini := config.AI.Gemini
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: gemini.APIKey,
			File:  gemini.APIKeyFile,
			Env:   "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
		}

		generator, err := aigemini.NewGenerator(ctx, aigemini.Config{
			APIKey:       apiKey,
			Model:        gemini.Model,
			MaxRetries:   gemini.MaxRetries,
			MaxLogLength: gemini.MaxLogLength,
		}, log)
		if err != nil {
			return nil, err
		}

		return qagemini.NewBackend(generator, logger.WithCommonFields(log, aigemini.Provider, generator.Model())), nil

	default:
		return nil, fmt.Errorf("unsupported backend: %s", config.Backend)
	}
}

// newSynthesizer returns nil when narration is switched off. The voice catalog
// keeps loading in the background after it returns.
func newSynthesizer(ctx context.Context, cfg *VoiceConfig, out io.Writer, log *zap.Logger) (narration.Synthesizer, error) {
	engine := strings.ToLower(strings.TrimSpace(cfg.Engine))
	if engine == "none" || engine == "off" {
		return nil, nil
	}

	catalog := synth.NewCatalog()
	catalog.Load(ctx, cfg.Catalog, log)

	switch engine {
	case "command":
		return synth.NewCommand(catalog, cfg.Program, cfg.Args, logger.WithComponent(log, "synth")), nil
	case "console", "":
		return synth.NewConsole(catalog, out, cfg.WPM), nil
	default:
		return nil, fmt.Errorf("unsupported voice engine: %s", cfg.Engine)
	}
}

func newNarrator(s narration.Synthesizer, cfg *VoiceConfig, onMissing func(lang, fallback language.Tag, missing bool), log *zap.Logger) *narration.Narrator {
	return narration.New(s, narration.Config{
		Rate:           cfg.Rate,
		Pitch:          cfg.Pitch,
		VoiceWait:      cfg.Wait,
		Fallback:       language.Normalize(cfg.Fallback),
		OnMissingVoice: onMissing,
	}, logger.WithComponent(log, "narration"))
}

// newRecognizer returns nil when no recognition service is configured.
func newRecognizer(cfg *RecognizerConfig, log *zap.Logger) (capture.Recognizer, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, nil
	}

	token, err := secrets.Optional(secrets.Source{
		Name: "recognizer token",
		File: cfg.TokenFile,
		Env:  "RECOGNIZER_TOKEN",
	})
	if err != nil {
		return nil, err
	}

	return recognizer.New(recognizer.Config{URL: cfg.URL, Token: token}, logger.WithComponent(log, "recognizer"))
}

func newJobsClient(cfg *HHConfig, log *zap.Logger) (*jobs.Client, error) {
	token, err := secrets.Optional(secrets.Source{Name: "headhunter token", File: cfg.TokenFile})
	if err != nil {
		return nil, err
	}

	client := jobs.New(logger.WithComponent(log, "hh"), token)
	if cfg.UserAgent != "" {
		client.UserAgent = cfg.UserAgent
	}
	return client, nil
}
