package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spigell/talentmatch/internal/catalog"
)

type reply func(prompt string) (string, error)

// scriptedGenerator answers by prompt kind and counts calls per kind.
type scriptedGenerator struct {
	mu      sync.Mutex
	replies map[string]reply
	calls   map[string]int
}

func newScriptedGenerator() *scriptedGenerator {
	return &scriptedGenerator{replies: map[string]reply{}, calls: map[string]int{}}
}

func (g *scriptedGenerator) on(kind string, r reply) *scriptedGenerator {
	g.replies[kind] = r
	return g
}

func (g *scriptedGenerator) answer(kind, text string) *scriptedGenerator {
	return g.on(kind, func(string) (string, error) { return text, nil })
}

func (g *scriptedGenerator) fail(kind string, err error) *scriptedGenerator {
	return g.on(kind, func(string) (string, error) { return "", err })
}

func (g *scriptedGenerator) count(kind string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[kind]
}

func (g *scriptedGenerator) total() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		n += c
	}
	return n
}

func promptKind(prompt string) string {
	switch {
	case strings.HasPrefix(prompt, "Validate whether"):
		return promptValidate
	case strings.HasPrefix(prompt, "Extract structured"):
		return promptExtract
	case strings.HasPrefix(prompt, "Analyze and enrich"):
		return promptClassify
	case strings.HasPrefix(prompt, "Analyze the match"):
		return promptMatch
	case strings.HasPrefix(prompt, "Review the following"):
		return promptReview
	default:
		return "unknown"
	}
}

func (g *scriptedGenerator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	kind := promptKind(prompt)

	g.mu.Lock()
	g.calls[kind]++
	r, ok := g.replies[kind]
	g.mu.Unlock()

	if !ok {
		return "", errors.Newf("no scripted reply for %s", kind)
	}
	return r(prompt)
}

func (g *scriptedGenerator) Model() string { return "scripted" }

// keywordEmbedder maps texts onto backend / ml / design axes.
type keywordEmbedder struct {
	err error
}

func (e *keywordEmbedder) vector(text string) []float32 {
	lower := strings.ToLower(text)
	v := make([]float32, 3)
	if strings.Contains(lower, "backend") {
		v[0] = 1
	}
	if strings.Contains(lower, "ml") || strings.Contains(lower, "machine learning") {
		v[1] = 1
	}
	if strings.Contains(lower, "design") {
		v[2] = 1
	}
	return v
}

func (e *keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.vector(text), nil
}

func (e *keywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vector(text)
	}
	return out, nil
}

func (e *keywordEmbedder) Model() string { return "keyword" }

type stubExtractor struct {
	text string
	err  error
}

func (s stubExtractor) ExtractText([]byte) (string, error) { return s.text, s.err }

func buildIndex(t *testing.T, cat *catalog.Catalog) *catalog.Index {
	t.Helper()
	idx, err := catalog.BuildIndex(context.Background(), cat, &keywordEmbedder{}, catalog.IndexOptions{}, nil)
	require.NoError(t, err)
	return idx
}

func testDeps(t *testing.T, gen *scriptedGenerator) Deps {
	t.Helper()
	return Deps{
		Generator: gen,
		Embedder:  &keywordEmbedder{},
		Index:     buildIndex(t, catalog.Default()),
		Logger:    zaptest.NewLogger(t),
	}
}

const (
	classifyReply = "```json\n" + `{"skills": [
		{"name": "Python", "level": "expert", "years": 8, "domain": "Backend"},
		{"name": "AWS", "level": "expert", "years": 5, "domain": "DevOps"}
	]}` + "\n```"
	matchReply   = `{"confidence_score": 0.95, "reasoning": "Strong Python background"}`
	reviewReply  = `{"validated_score": 0.85, "detailed_analysis": "Solid fit", "recommendation": "review", "key_strengths": ["Python"], "key_gaps": ["PyTorch"]}`
	sampleResume = "Jane Doe\nSenior Software Engineer\n\nExperience: 8 years building backend systems."
)

// happyGenerator answers every stage successfully.
func happyGenerator() *scriptedGenerator {
	return newScriptedGenerator().
		answer(promptValidate, "VALID").
		answer(promptClassify, classifyReply).
		answer(promptMatch, matchReply).
		answer(promptReview, reviewReply)
}
