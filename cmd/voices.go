package cmd

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/hh-interviewer/internal/language"
	"github.com/spigell/hh-interviewer/internal/synth"
	"github.com/spigell/hh-interviewer/internal/voice"
)

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List the narration voices and the one picked for each language",
	Run: func(_ *cobra.Command, _ []string) {
		runVoices()
	},
}

func init() {
	rootCmd.AddCommand(voicesCmd)

	voicesCmd.Flags().String("catalog", "", "yaml voice catalog (default is the built-in espeak-ng list)")
	viper.BindPFlag("voice.catalog", voicesCmd.Flags().Lookup("catalog"))
}

func runVoices() {
	config, err := getConfig()
	if err != nil {
		log.Fatalf("getting a config: %s", err)
	}

	voices, err := synth.ParseCatalog(config.Voice.Catalog)
	if err != nil {
		log.Fatalf("loading voices: %s", err)
	}

	for _, v := range voices {
		var flags []string
		if v.Default {
			flags = append(flags, "default")
		}
		if v.Local {
			flags = append(flags, "local")
		}
		fmt.Printf("%-8s %-32s %s\n", v.Lang, v.Name, strings.Join(flags, ","))
	}

	fallback := language.Normalize(config.Voice.Fallback)
	fmt.Println()
	for _, lang := range language.Supported() {
		sel := voice.Resolve(lang, fallback, voices)
		switch {
		case !sel.Found:
			fmt.Printf("%-8s no voice\n", lang)
		case sel.Missing:
			fmt.Printf("%-8s %s (no %s voice installed, using %s)\n", lang, sel.Voice.Name, lang, sel.Lang)
		default:
			fmt.Printf("%-8s %s\n", lang, sel.Voice.Name)
		}
	}
}
