// Package anthropic implements ai.Generator with Claude models.
package anthropic

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spigell/talentmatch/internal/ai"
	"github.com/spigell/talentmatch/internal/logger"
)

const (
	// ProviderName is the name used in logs and configuration.
	ProviderName = "anthropic"

	defaultModel     = anthropic.ModelClaude3_7SonnetLatest
	defaultMaxTokens = 4096
)

type messagesAPI interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Config tunes a Generator.
type Config struct {
	APIKey     string
	Model      string
	MaxTokens  int
	MaxRetries int
	Limiter    *rate.Limiter
	Logger     *zap.Logger
}

// Generator sends single-turn prompts to Claude.
type Generator struct {
	messages  messagesAPI
	model     anthropic.Model
	maxTokens int64
	limiter   *rate.Limiter
	logger    *zap.Logger
}

// NewGenerator creates a Claude-backed generator. Transport retries are left
// to the SDK.
func NewGenerator(cfg Config) (*Generator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("anthropic api key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}

	client := anthropic.NewClient(opts...)
	return newGenerator(&client.Messages, cfg), nil
}

func newGenerator(messages messagesAPI, cfg Config) *Generator {
	model := anthropic.Model(strings.TrimSpace(cfg.Model))
	if model == "" {
		model = defaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &Generator{
		messages:  messages,
		model:     model,
		maxTokens: int64(maxTokens),
		limiter:   cfg.Limiter,
		logger:    logger.WithCommonFields(cfg.Logger, ProviderName, string(model)),
	}
}

// GenerateContent sends prompt as one user message and returns the text blocks
// of the reply.
func (g *Generator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.messages == nil {
		return "", errors.New("anthropic generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	if err := ai.Wait(ctx, g.limiter); err != nil {
		return "", errors.Wrap(err, "rate limiter")
	}

	response, err := g.messages.New(ctx, anthropic.MessageNewParams{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		Messages: []anthropic.MessageParam{{
			Content: []anthropic.ContentBlockParamUnion{{
				OfText: &anthropic.TextBlockParam{Text: prompt},
			}},
			Role: anthropic.MessageParamRoleUser,
		}},
	})
	if err != nil {
		return "", errors.Wrap(err, "call claude api")
	}

	var builder strings.Builder
	for _, block := range response.Content {
		if block.Type != "text" {
			continue
		}
		text := strings.TrimSpace(block.Text)
		if text == "" {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(text)
	}

	if builder.Len() == 0 {
		g.logger.Warn("claude reply carried no text",
			zap.String("stop_reason", string(response.StopReason)),
		)
		return "", errors.New("no text content in claude response")
	}

	return builder.String(), nil
}

// Model returns the configured model name.
func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return string(g.model)
}
