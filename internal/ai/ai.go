// Package ai declares the model capabilities the pipeline depends on.
// Provider packages implement them.
package ai

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Generator produces a text completion for a single-turn prompt.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Embedder turns text into fixed-dimension vectors. Every vector returned by
// one Embedder has the same dimension.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// NewLimiter returns a limiter admitting requestsPerMinute calls with a burst
// of one. Zero or negative disables limiting and yields nil.
func NewLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
}

// Wait blocks until limiter admits one call. A nil limiter never blocks.
func Wait(ctx context.Context, limiter *rate.Limiter) error {
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}
