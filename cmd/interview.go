package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/hh-interviewer/internal/capture"
	"github.com/spigell/hh-interviewer/internal/interview"
	"github.com/spigell/hh-interviewer/internal/jobs"
	"github.com/spigell/hh-interviewer/internal/language"
	"github.com/spigell/hh-interviewer/internal/logger"
)

var interviewCmd = &cobra.Command{
	Use:   "interview",
	Short: "Run a mock interview for a job",
	Run: func(cmd *cobra.Command, _ []string) {
		runInterview(cmd)
	},
}

func init() {
	rootCmd.AddCommand(interviewCmd)

	interviewCmd.Flags().StringP("description", "D", "", "job description text")
	interviewCmd.Flags().String("description-file", "", "file with the job description")
	interviewCmd.Flags().StringP("vacancy", "v", "", "hh.ru vacancy id to interview for")
	interviewCmd.Flags().StringP("search", "s", "", "search hh.ru vacancies and pick one")
	interviewCmd.Flags().StringP("lang", "l", "", "interview language, e.g. en-US or vi-VN")
	interviewCmd.Flags().IntP("questions", "n", 0, "number of questions")
	interviewCmd.Flags().String("difficulty", "", "question difficulty: easy, medium or hard")
	interviewCmd.Flags().Bool("auto-switch", false, "switch the dictation language to the one detected in speech")

	viper.BindPFlag("language", interviewCmd.Flags().Lookup("lang"))
	viper.BindPFlag("interview.question-count", interviewCmd.Flags().Lookup("questions"))
	viper.BindPFlag("interview.difficulty", interviewCmd.Flags().Lookup("difficulty"))
	viper.BindPFlag("auto-switch-language", interviewCmd.Flags().Lookup("auto-switch"))
}

func runInterview(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	config, err := getConfig()
	if err != nil {
		log.Fatalf("getting a config: %s", err)
	}

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"), config.LogFile)
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	logger.Info("starting the hh-interviewer", zap.String("version", version), zap.String("backend", config.Backend))

	description, err := jobDescription(ctx, cmd, config, logger)
	if err != nil {
		logger.Fatal("getting a job description", zap.Error(err))
	}

	service, err := newService(ctx, config, logger)
	if err != nil {
		logger.Fatal("creating the question service", zap.Error(err))
	}

	term := newTerminal(os.Stdout)
	s := &session{term: term, logger: logger}

	var narrator interview.Narrator
	synthesizer, err := newSynthesizer(ctx, config.Voice, os.Stdout, logger)
	if err != nil {
		logger.Fatal("creating the synthesizer", zap.Error(err))
	}
	if synthesizer != nil {
		narrator = newNarrator(synthesizer, config.Voice, s.voiceAdvisory, logger)
	}

	var dictation interview.Capture
	rec, err := newRecognizer(config.Recognizer, logger)
	if err != nil {
		logger.Warn("dictation is disabled", zap.Error(err))
	}
	if rec != nil && err == nil {
		notice := capture.NewNotice(capture.DefaultNoticeTTL, func(text string, visible bool) {
			if visible {
				term.println("[%s]", text)
			}
		})
		pref := language.NewPreference(config.Language, config.AutoSwitch)
		dictation = capture.NewAdapter(rec, pref, nil, capture.Config{MinConfidence: config.Recognizer.MinConfidence}, capture.Events{
			OnPartial: term.partial,
			OnFinal: func(text string) {
				term.println("Dictated: %s", text)
			},
			OnError: s.reportRecognition,
			OnLanguageChange: func(from, to language.Tag) {
				notice.Show(fmt.Sprintf("dictation language switched from %s to %s", from, to))
			},
			OnRunningChange: func(running bool) {
				if running {
					term.println("[dictation on]")
				} else {
					term.println("[dictation off]")
				}
			},
		}, logger.Named("capture"))
	}

	s.ctrl = interview.New(service, narrator, dictation, interview.Config{
		RevealInterval: config.Interview.RevealInterval,
		PresentDelay:   config.Interview.PresentDelay,
	}, s.events(), logger)

	job := interview.JobContext{
		Description:   description,
		QuestionCount: config.Interview.QuestionCount,
		Difficulty:    config.Interview.Difficulty,
		Language:      config.Language,
	}

	if err := s.run(ctx, job); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, errQuit) {
			logger.Info("exiting", zap.String("reason", "interrupted"))
			return
		}
		logger.Fatal("interview failed", zap.Error(err))
	}
}

// jobDescription takes the description from flags, an hh.ru vacancy, a
// vacancy search or, as a last resort, asks for it.
func jobDescription(ctx context.Context, cmd *cobra.Command, config *Config, log *zap.Logger) (string, error) {
	if text, _ := cmd.Flags().GetString("description"); strings.TrimSpace(text) != "" {
		return strings.TrimSpace(text), nil
	}

	if path, _ := cmd.Flags().GetString("description-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading description file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	vacancyID, _ := cmd.Flags().GetString("vacancy")
	query, _ := cmd.Flags().GetString("search")
	if vacancyID != "" || query != "" {
		hh, err := newJobsClient(config.HH, log)
		if err != nil {
			return "", err
		}

		if vacancyID == "" {
			vacancyID, err = pickVacancy(ctx, hh, query, log)
			if err != nil {
				return "", err
			}
		}

		vacancy, err := hh.GetVacancy(ctx, vacancyID)
		if err != nil {
			return "", err
		}
		log.Info("interviewing for vacancy", zap.String("vacancy_id", vacancy.ID), zap.String("vacancy_name", vacancy.Name))
		return vacancy.JobDescription(), nil
	}

	prompt := promptui.Prompt{
		Label: "Job description",
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("description must not be empty")
			}
			return nil
		},
	}
	text, err := prompt.Run()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func pickVacancy(ctx context.Context, hh *jobs.Client, query string, log *zap.Logger) (string, error) {
	results, err := hh.Search(ctx, jobs.SearchParams{Text: query})
	if err != nil {
		return "", err
	}

	log.Info("getting vacancies", zap.Int("count", results.Len()), zap.Int("found", results.Found))
	if results.Len() == 0 {
		return "", fmt.Errorf("no vacancies found for %q", query)
	}

	items := make([]string, 0, results.Len())
	for _, v := range results.Items {
		items = append(items, v.Title())
	}

	vacancyPrompt := promptui.Select{
		Label: "Choose a vacancy and press ENTER",
		Items: items,
		Size:  10,
	}
	idx, _, err := vacancyPrompt.Run()
	if err != nil {
		return "", err
	}
	return results.Items[idx].ID, nil
}
