package cmd

import (
	"log"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/talentmatch/internal/catalog"
	"github.com/spigell/talentmatch/internal/pipeline"
	"github.com/spigell/talentmatch/internal/server"
)

const (
	app       = "talentmatch"
	envPrefix = "TALENTMATCH"
)

type Config struct {
	AI       AIConfig       `mapstructure:"ai"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Server   ServerConfig   `mapstructure:"server"`
}

type AIConfig struct {
	Provider          string          `mapstructure:"provider" validate:"oneof=gemini anthropic"`
	Timeout           time.Duration   `mapstructure:"timeout" validate:"gte=0"`
	RequestsPerMinute int             `mapstructure:"requests-per-minute" validate:"gte=0"`
	MaxLogLength      int             `mapstructure:"max-log-length" validate:"gte=0"`
	Gemini            GeminiConfig    `mapstructure:"gemini"`
	Anthropic         AnthropicConfig `mapstructure:"anthropic"`
}

type GeminiConfig struct {
	APIKey         string `mapstructure:"api-key"`
	APIKeyFile     string `mapstructure:"api-key-file"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding-model"`
	MaxRetries     int    `mapstructure:"max-retries" validate:"gte=0"`
}

type AnthropicConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	MaxTokens  int    `mapstructure:"max-tokens" validate:"gte=0"`
	MaxRetries int    `mapstructure:"max-retries" validate:"gte=0"`
}

type PipelineConfig struct {
	TopK             int    `mapstructure:"top-k" validate:"gte=1"`
	ValidateResume   bool   `mapstructure:"validate-resume"`
	FixtureMarker    string `mapstructure:"fixture-marker"`
	FixtureMaxLength int    `mapstructure:"fixture-max-length" validate:"gte=0"`
	QAEnabled        bool   `mapstructure:"qa-enabled"`
}

type CatalogConfig struct {
	Path             string `mapstructure:"path"`
	EmbedConcurrency int    `mapstructure:"embed-concurrency" validate:"gte=1"`
	EmbedBatchSize   int    `mapstructure:"embed-batch-size" validate:"gte=1"`
}

type ServerConfig struct {
	Addr           string `mapstructure:"addr" validate:"required"`
	MaxUploadBytes int64  `mapstructure:"max-upload-bytes" validate:"gte=1"`
	RequirePDF     bool   `mapstructure:"require-pdf"`
}

var (
	// Used for flags.
	cfgFile string

	validate = validator.New(validator.WithRequiredStructEnabled())

	rootCmd = &cobra.Command{
		Use:          app,
		Short:        "talentmatch turns resumes into ranked, reviewed job matches",
		SilenceUsage: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is talentmatch.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.timeout", pipeline.DefaultTimeout)
	v.SetDefault("ai.requests-per-minute", 0)
	v.SetDefault("ai.max-log-length", pipeline.DefaultMaxLogLength)

	v.SetDefault("ai.gemini.api-key", "")
	v.SetDefault("ai.gemini.api-key-file", "")
	v.SetDefault("ai.gemini.model", "")
	v.SetDefault("ai.gemini.embedding-model", "")
	v.SetDefault("ai.gemini.max-retries", 3)

	v.SetDefault("ai.anthropic.api-key", "")
	v.SetDefault("ai.anthropic.api-key-file", "")
	v.SetDefault("ai.anthropic.model", "")
	v.SetDefault("ai.anthropic.max-tokens", 4096)
	v.SetDefault("ai.anthropic.max-retries", 2)

	v.SetDefault("pipeline.top-k", pipeline.DefaultTopK)
	v.SetDefault("pipeline.validate-resume", true)
	v.SetDefault("pipeline.fixture-marker", pipeline.DefaultFixtureMarker)
	v.SetDefault("pipeline.fixture-max-length", pipeline.DefaultFixtureMaxLength)
	v.SetDefault("pipeline.qa-enabled", true)

	v.SetDefault("catalog.path", "")
	v.SetDefault("catalog.embed-concurrency", 4)
	v.SetDefault("catalog.embed-batch-size", 16)

	v.SetDefault("server.addr", server.DefaultAddr)
	v.SetDefault("server.max-upload-bytes", server.DefaultMaxUploadBytes)
	v.SetDefault("server.require-pdf", false)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

func initConfig() {
	if versionCmd.CalledAs() != "" {
		return
	}

	if err := readConfig(viper.GetViper(), cfgFile); err != nil {
		// We can't proceed if the config file parsed with error.
		log.Fatal(err)
	}
}

// readConfig loads the config file. Only an explicitly requested file is
// required to exist.
func readConfig(v *viper.Viper, file string) error {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(app)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file == "" && errors.As(err, &notFound) {
			return nil
		}
		return errors.Wrap(err, "reading config")
	}
	return nil
}

func getConfig(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}

	config.AI.Provider = strings.ToLower(strings.TrimSpace(config.AI.Provider))

	if err := validate.Struct(&config); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &config, nil
}

func (c *Config) pipelineConfig() pipeline.Config {
	return pipeline.Config{
		TopK:             c.Pipeline.TopK,
		ValidateResume:   c.Pipeline.ValidateResume,
		FixtureMarker:    c.Pipeline.FixtureMarker,
		FixtureMaxLength: c.Pipeline.FixtureMaxLength,
		QAEnabled:        c.Pipeline.QAEnabled,
		Timeout:          c.AI.Timeout,
		MaxLogLength:     c.AI.MaxLogLength,
	}
}

func (c *Config) indexOptions() catalog.IndexOptions {
	return catalog.IndexOptions{
		Concurrency: c.Catalog.EmbedConcurrency,
		BatchSize:   c.Catalog.EmbedBatchSize,
	}
}

func (c *Config) serverConfig() server.Config {
	return server.Config{
		Addr:           c.Server.Addr,
		MaxUploadBytes: c.Server.MaxUploadBytes,
		RequirePDF:     c.Server.RequirePDF,
	}
}
