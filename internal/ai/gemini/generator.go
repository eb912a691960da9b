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

// GeneratorConfig tunes a Generator.
type GeneratorConfig struct {
	Model      string
	MaxRetries int
	Limiter    *rate.Limiter
	Logger     *zap.Logger
}

// Generator sends single-turn prompts to Gemini.
type Generator struct {
	models contentModels
	model  string
	caller caller
	logger *zap.Logger
}

// NewGenerator builds a Generator over client.
func NewGenerator(client *genai.Client, cfg GeneratorConfig) (*Generator, error) {
	if client == nil {
		return nil, errors.New("genai client is required")
	}
	return newGenerator(client.Models, cfg), nil
}

func newGenerator(models contentModels, cfg GeneratorConfig) *Generator {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}

	log := logger.WithCommonFields(cfg.Logger, ProviderName, model)

	return &Generator{
		models: models,
		model:  model,
		caller: caller{maxRetries: retries, limiter: cfg.Limiter, logger: log},
		logger: log,
	}
}

// GenerateContent sends prompt and returns the joined text of the first
// candidate.
func (g *Generator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.models == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	var resp *genai.GenerateContentResponse
	err := g.caller.do(ctx, "generate content", func(ctx context.Context) error {
		var callErr error
		resp, callErr = g.models.GenerateContent(ctx, g.model, []*genai.Content{userContent(prompt)}, nil)
		return callErr
	})
	if err != nil {
		return "", err
	}

	output := responseText(resp)
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	return output, nil
}

// Model returns the configured model name.
func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
		if builder.Len() > 0 {
			break
		}
	}

	return strings.TrimSpace(builder.String())
}
