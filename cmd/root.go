package cmd

import (
	"errors"
	"io/fs"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "hh-interviewer"

	backendRemote = "remote"
	backendGemini = "gemini"
)

type Config struct {
	Backend    string            `mapstructure:"backend"`
	Language   string            `mapstructure:"language"`
	AutoSwitch bool              `mapstructure:"auto-switch-language"`
	LogFile    string            `mapstructure:"log-file"`
	Interview  *InterviewConfig  `mapstructure:"interview"`
	Remote     *RemoteConfig     `mapstructure:"remote"`
	AI         *AIConfig         `mapstructure:"ai"`
	Voice      *VoiceConfig      `mapstructure:"voice"`
	Recognizer *RecognizerConfig `mapstructure:"recognizer"`
	HH         *HHConfig         `mapstructure:"hh"`
}

type InterviewConfig struct {
	QuestionCount  int           `mapstructure:"question-count"`
	Difficulty     string        `mapstructure:"difficulty"`
	RevealInterval time.Duration `mapstructure:"reveal-interval"`
	PresentDelay   time.Duration `mapstructure:"present-delay"`
}

type RemoteConfig struct {
	URL        string        `mapstructure:"url"`
	Token      string        `mapstructure:"token"`
	TokenFile  string        `mapstructure:"token-file"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max-retries"`
	Backoff    time.Duration `mapstructure:"backoff"`
}

type AIConfig struct {
	Gemini *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type VoiceConfig struct {
	// Engine is one of command, console or none.
	Engine   string        `mapstructure:"engine"`
	Program  string        `mapstructure:"program"`
	Args     []string      `mapstructure:"args"`
	Catalog  string        `mapstructure:"catalog"`
	Rate     float64       `mapstructure:"rate"`
	Pitch    float64       `mapstructure:"pitch"`
	WPM      int           `mapstructure:"wpm"`
	Wait     time.Duration `mapstructure:"wait"`
	Fallback string        `mapstructure:"fallback-language"`
}

type RecognizerConfig struct {
	URL           string  `mapstructure:"url"`
	TokenFile     string  `mapstructure:"token-file"`
	MinConfidence float64 `mapstructure:"min-confidence"`
}

type HHConfig struct {
	TokenFile string `mapstructure:"token-file"`
	UserAgent string `mapstructure:"user-agent"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "hh-interviewer rehearses job interviews in the terminal: spoken questions, typed or dictated answers, scored feedback",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	envs := map[string]string{
		"remote.token-file":      "INTERVIEW_TOKEN_FILE",
		"remote.url":             "INTERVIEW_API_URL",
		"ai.gemini.api-key-file": "GEMINI_API_KEY_FILE",
		"recognizer.token-file":  "RECOGNIZER_TOKEN_FILE",
		"hh.token-file":          "HH_TOKEN_FILE",
		"backend":                "INTERVIEW_BACKEND",
	}
	for key, env := range envs {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	setDefaults()

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is hh-interviewer.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().StringP("backend", "b", "", "question service: gemini or remote")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("backend", rootCmd.PersistentFlags().Lookup("backend"))
}

func setDefaults() {
	viper.SetDefault("backend", backendGemini)
	viper.SetDefault("language", "en-US")
	viper.SetDefault("interview.question-count", 5)
	viper.SetDefault("interview.difficulty", "medium")
	viper.SetDefault("remote.timeout", 30*time.Second)
	viper.SetDefault("remote.max-retries", 2)
	viper.SetDefault("remote.backoff", 500*time.Millisecond)
	viper.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	viper.SetDefault("ai.gemini.max-retries", 3)
	viper.SetDefault("voice.engine", "console")
	viper.SetDefault("voice.rate", 1.0)
	viper.SetDefault("voice.pitch", 1.0)
	viper.SetDefault("recognizer.min-confidence", 0.5)
}

// initConfig loads .env and the config file. A missing default config file is
// fine; every setting has a default or an environment variable.
func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			// We can't proceed if the config file parsed with error.
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config == nil {
		config = &Config{}
	}
	if config.Interview == nil {
		config.Interview = &InterviewConfig{}
	}
	if config.Remote == nil {
		config.Remote = &RemoteConfig{}
	}
	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if config.AI.Gemini == nil {
		config.AI.Gemini = &GeminiConfig{}
	}
	if config.Voice == nil {
		config.Voice = &VoiceConfig{}
	}
	if config.Recognizer == nil {
		config.Recognizer = &RecognizerConfig{}
	}
	if config.HH == nil {
		config.HH = &HHConfig{}
	}

	return config, nil
}
