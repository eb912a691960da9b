package gemini

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/spigell/talentmatch/internal/logger"
)

// EmbedderConfig tunes an Embedder.
type EmbedderConfig struct {
	Model      string
	MaxRetries int
	// BatchSize caps how many texts go into one EmbedContent request.
	BatchSize int
	Limiter   *rate.Limiter
	Logger    *zap.Logger
}

// Embedder computes text embeddings through Gemini.
type Embedder struct {
	models    contentModels
	model     string
	batchSize int
	caller    caller
}

// NewEmbedder builds an Embedder over client.
func NewEmbedder(client *genai.Client, cfg EmbedderConfig) (*Embedder, error) {
	if client == nil {
		return nil, errors.New("genai client is required")
	}
	return newEmbedder(client.Models, cfg), nil
}

func newEmbedder(models contentModels, cfg EmbedderConfig) *Embedder {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultEmbeddingModel
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}

	return &Embedder{
		models:    models,
		model:     model,
		batchSize: batch,
		caller: caller{
			maxRetries: retries,
			limiter:    cfg.Limiter,
			logger:     logger.WithCommonFields(cfg.Logger, ProviderName, model),
		},
	}
}

// Embed returns the embedding of a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch returns one embedding per text, in input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if e == nil || e.models == nil {
		return nil, errors.New("gemini embedder is not initialized")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))

		contents := make([]*genai.Content, 0, end-start)
		for _, text := range texts[start:end] {
			if strings.TrimSpace(text) == "" {
				return nil, errors.New("cannot embed empty text")
			}
			contents = append(contents, userContent(text))
		}

		var resp *genai.EmbedContentResponse
		err := e.caller.do(ctx, "embed content", func(ctx context.Context) error {
			var callErr error
			resp, callErr = e.models.EmbedContent(ctx, e.model, contents, nil)
			return callErr
		})
		if err != nil {
			return nil, err
		}

		if resp == nil || len(resp.Embeddings) != len(contents) {
			got := 0
			if resp != nil {
				got = len(resp.Embeddings)
			}
			return nil, errors.Newf("gemini returned %d embeddings for %d inputs", got, len(contents))
		}

		for _, embedding := range resp.Embeddings {
			if embedding == nil || len(embedding.Values) == 0 {
				return nil, errors.New("gemini returned an empty embedding")
			}
			out = append(out, embedding.Values)
		}
	}

	return out, nil
}

// Model returns the configured embedding model.
func (e *Embedder) Model() string {
	if e == nil {
		return ""
	}
	return e.model
}
