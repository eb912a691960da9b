package cmd

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/spigell/talentmatch/internal/ai"
	"github.com/spigell/talentmatch/internal/ai/anthropic"
	"github.com/spigell/talentmatch/internal/ai/gemini"
	"github.com/spigell/talentmatch/internal/catalog"
	"github.com/spigell/talentmatch/internal/logger"
	"github.com/spigell/talentmatch/internal/pipeline"
	"github.com/spigell/talentmatch/internal/secrets"
)

const (
	providerGemini    = gemini.ProviderName
	providerAnthropic = "anthropic"

	geminiKeyEnv    = "GEMINI_API_KEY"
	anthropicKeyEnv = "ANTHROPIC_API_KEY"
)

// application is everything a command needs, wired from config.
type application struct {
	logger   *zap.Logger
	pipeline *pipeline.Pipeline
	index    *catalog.Index
}

func newApplication(ctx context.Context, config *Config, log *zap.Logger) (*application, error) {
	limiter := ai.NewLimiter(config.AI.RequestsPerMinute)

	// Embeddings always come from Gemini, whichever provider writes the text.
	geminiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: config.AI.Gemini.APIKey,
		File:  config.AI.Gemini.APIKeyFile,
		Env:   geminiKeyEnv,
	})
	if err != nil {
		return nil, err
	}

	client, err := gemini.NewClient(ctx, geminiKey)
	if err != nil {
		return nil, err
	}

	embedder, err := gemini.NewEmbedder(client, gemini.EmbedderConfig{
		Model:      config.AI.Gemini.EmbeddingModel,
		MaxRetries: config.AI.Gemini.MaxRetries,
		BatchSize:  config.Catalog.EmbedBatchSize,
		Limiter:    limiter,
		Logger:     log,
	})
	if err != nil {
		return nil, err
	}

	generator, err := newGenerator(config, client, limiter, log)
	if err != nil {
		return nil, err
	}

	log = logger.WithCommonFields(log, config.AI.Provider, generator.Model())

	cat, err := loadCatalog(config.Catalog.Path)
	if err != nil {
		return nil, err
	}

	log.Info("embedding job catalog", zap.Int("jobs", len(cat.Jobs)), zap.String("embedding_model", embedder.Model()))

	index, err := catalog.BuildIndex(ctx, cat, embedder, config.indexOptions(), log)
	if err != nil {
		return nil, errors.Wrap(err, "building job index")
	}

	p, err := pipeline.New(pipeline.Deps{
		Generator: generator,
		Embedder:  embedder,
		Index:     index,
		Logger:    log,
	}, config.pipelineConfig())
	if err != nil {
		return nil, err
	}

	return &application{logger: log, pipeline: p, index: index}, nil
}

func newGenerator(config *Config, client *genai.Client, limiter *rate.Limiter, log *zap.Logger) (ai.Generator, error) {
	switch config.AI.Provider {
	case providerGemini:
		return gemini.NewGenerator(client, gemini.GeneratorConfig{
			Model:      config.AI.Gemini.Model,
			MaxRetries: config.AI.Gemini.MaxRetries,
			Limiter:    limiter,
			Logger:     log,
		})
	case providerAnthropic:
		key, err := secrets.Load(secrets.Source{
			Name:  "anthropic api key",
			Value: config.AI.Anthropic.APIKey,
			File:  config.AI.Anthropic.APIKeyFile,
			Env:   anthropicKeyEnv,
		})
		if err != nil {
			return nil, err
		}
		return anthropic.NewGenerator(anthropic.Config{
			APIKey:     key,
			Model:      config.AI.Anthropic.Model,
			MaxTokens:  config.AI.Anthropic.MaxTokens,
			MaxRetries: config.AI.Anthropic.MaxRetries,
			Limiter:    limiter,
			Logger:     log,
		})
	default:
		return nil, errors.Newf("unknown ai provider %q", config.AI.Provider)
	}
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(path)
}
