package pipeline

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/spigell/talentmatch/internal/ai"
	"github.com/spigell/talentmatch/internal/catalog"
	"github.com/spigell/talentmatch/internal/llmjson"
	"github.com/spigell/talentmatch/internal/logger"
	"github.com/spigell/talentmatch/internal/models"
	"github.com/spigell/talentmatch/internal/pdftext"
	"github.com/spigell/talentmatch/internal/utils"
)

const (
	DefaultTopK             = 3
	DefaultFixtureMarker    = "Jane Doe"
	DefaultFixtureMaxLength = 2000
	DefaultTimeout          = 60 * time.Second
	DefaultMaxLogLength     = 200
)

// Config holds the behavioural knobs of the stages.
type Config struct {
	TopK           int
	ValidateResume bool
	// FixtureMarker routes matching resumes to the fixture profile.
	FixtureMarker    string
	FixtureMaxLength int
	QAEnabled        bool
	// Timeout bounds every model and embedding call.
	Timeout      time.Duration
	MaxLogLength int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		TopK:             DefaultTopK,
		ValidateResume:   true,
		FixtureMarker:    DefaultFixtureMarker,
		FixtureMaxLength: DefaultFixtureMaxLength,
		QAEnabled:        true,
		Timeout:          DefaultTimeout,
		MaxLogLength:     DefaultMaxLogLength,
	}
}

func (c Config) withDefaults() Config {
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.FixtureMaxLength <= 0 {
		c.FixtureMaxLength = DefaultFixtureMaxLength
	}
	if c.MaxLogLength <= 0 {
		c.MaxLogLength = DefaultMaxLogLength
	}
	return c
}

// Deps are the collaborators shared by all runs. They must be safe for
// concurrent use.
type Deps struct {
	Generator ai.Generator
	Embedder  ai.Embedder
	Index     *catalog.Index
	Extractor pdftext.Extractor
	Logger    *zap.Logger

	// Fixture is returned by Extract for resumes carrying the fixture marker.
	Fixture *models.CandidateProfile
	// Fallback replaces a profile the model failed to produce.
	Fallback *models.CandidateProfile
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Extractor == nil {
		d.Extractor = pdftext.Reader{}
	}
	if d.Fixture == nil {
		d.Fixture = SampleProfile()
	}
	if d.Fallback == nil {
		d.Fallback = SampleProfile()
	}
	return d
}

func (d Deps) validate() error {
	switch {
	case d.Generator == nil:
		return errors.New("pipeline: generator is required")
	case d.Embedder == nil:
		return errors.New("pipeline: embedder is required")
	case d.Index == nil:
		return errors.New("pipeline: job index is required")
	}
	return nil
}

// toolkit is what every stage needs to talk to the model.
type toolkit struct {
	generator ai.Generator
	parser    *llmjson.Parser
	logger    *zap.Logger
	timeout   time.Duration
	maxLogLen int
}

func newToolkit(deps Deps, cfg Config) toolkit {
	deps = deps.withDefaults()
	cfg = cfg.withDefaults()
	return toolkit{
		generator: deps.Generator,
		parser:    llmjson.New(deps.Logger, cfg.MaxLogLength),
		logger:    deps.Logger,
		timeout:   cfg.Timeout,
		maxLogLen: cfg.MaxLogLength,
	}
}

// log scopes the base logger to the run and stage of state.
func (t toolkit) log(state *models.State, stage string) *zap.Logger {
	return logger.ForStage(logger.ForRun(t.logger, state.RunID), stage)
}

func (t toolkit) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.timeout)
}

// generate sends prompt under the call deadline. Failures are upstream errors.
func (t toolkit) generate(ctx context.Context, log *zap.Logger, purpose, prompt string) (string, error) {
	if t.generator == nil {
		return "", models.Mark(errors.New("no generator configured"), models.ErrUpstream)
	}

	log.Debug("model request",
		zap.String("purpose", purpose),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, t.maxLogLen)),
	)

	callCtx, cancel := t.withTimeout(ctx)
	defer cancel()

	raw, err := t.generator.GenerateContent(callCtx, prompt)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			err = errors.Wrapf(err, "model call timed out after %s", t.timeout)
		}
		return "", models.Mark(errors.Wrap(err, purpose), models.ErrUpstream)
	}

	log.Debug("model response",
		zap.String("purpose", purpose),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, t.maxLogLen)),
	)

	return raw, nil
}

// embed computes one embedding under the call deadline.
func (t toolkit) embed(ctx context.Context, embedder ai.Embedder, text string) ([]float32, error) {
	callCtx, cancel := t.withTimeout(ctx)
	defer cancel()

	vector, err := embedder.Embed(callCtx, text)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			err = errors.Wrapf(err, "embedding call timed out after %s", t.timeout)
		}
		return nil, models.Mark(errors.Wrap(err, "embed candidate profile"), models.ErrUpstream)
	}
	return vector, nil
}

// parseStrict decodes a response without fallback. Malformed output is an
// upstream failure.
func (t toolkit) parseStrict(raw, purpose string) (map[string]any, error) {
	data, err := t.parser.Parse(raw, nil)
	if err != nil {
		return nil, models.Mark(errors.Wrapf(err, "%s: unparseable model response", purpose), models.ErrUpstream)
	}
	return data, nil
}
