package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/hh-interviewer/internal/logger"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show completed interview sessions",
	Run: func(cmd *cobra.Command, _ []string) {
		runHistory(cmd)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().Bool("raw", false, "print the history as json")
}

func runHistory(cmd *cobra.Command) {
	ctx := context.Background()

	config, err := getConfig()
	if err != nil {
		log.Fatalf("getting a config: %s", err)
	}

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"), config.LogFile)
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	service, err := newService(ctx, config, logger)
	if err != nil {
		logger.Fatal("creating the question service", zap.Error(err))
	}

	history, err := service.History(ctx)
	if err != nil {
		logger.Fatal("getting history", zap.Error(err))
	}

	if raw, _ := cmd.Flags().GetBool("raw"); raw {
		// do not bother error since the history was decoded from json
		pretty, _ := json.MarshalIndent(history, "", "  ")
		fmt.Println(string(pretty))
		return
	}

	logger.Info("getting history", zap.Int("sessions", history.TotalSessions))
	if len(history.Sessions) == 0 {
		fmt.Println("No completed interviews yet.")
		return
	}

	for _, s := range history.Sessions {
		title := s.JobTitle
		if title == "" {
			title = s.ID
		}
		fmt.Printf("%s  %-40s %4.1f  %d/%d\n",
			s.CompletedAt.Local().Format("2006-01-02 15:04"), title,
			s.AverageScore, s.AnsweredQuestions, s.TotalQuestions)
	}
	fmt.Printf("\n%d sessions, average score %.1f\n", history.TotalSessions, history.AverageScore)
}
