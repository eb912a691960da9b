// Package pipeline runs a resume through ingest, extract, classify, match
// and review, threading one models.State through the stages in order.
package pipeline

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/talentmatch/internal/logger"
	"github.com/spigell/talentmatch/internal/models"
)

// ErrNoMatches fails a run that completed without a single match.
var ErrNoMatches = models.Mark(errors.New("no matching jobs found"), models.ErrContract)

// Stage is one step of the chain. Run reports failures through its error;
// it never inspects the sticky error of the state.
type Stage interface {
	Name() string
	// Ready reports whether the stage input is present. A stage that is not
	// ready is passed through untouched.
	Ready(state *models.State) bool
	Run(ctx context.Context, state *models.State) error
}

// Outcome is the terminal result of Pipeline.Run.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// RunStage runs stage against state unless the run already failed or the
// stage input is missing. A stage error is recorded on state.
func RunStage(ctx context.Context, stage Stage, state *models.State, log *zap.Logger) {
	log = logger.ForStage(log, stage.Name())

	if state.Failed() {
		log.Debug("run already failed, skipping stage")
		return
	}

	if !stage.Ready(state) {
		log.Info("stage input missing, passing through")
		return
	}

	started := time.Now()
	if err := stage.Run(ctx, state); err != nil {
		state.Fail(err)
		log.Warn("stage failed",
			zap.Error(err),
			zap.Duration("elapsed", time.Since(started)),
		)
		return
	}

	log.Info("stage completed",
		zap.String("current_step", string(state.CurrentStep)),
		zap.Duration("elapsed", time.Since(started)),
	)
}

// Pipeline is safe for concurrent runs; each run owns its state.
type Pipeline struct {
	stages []Stage
	logger *zap.Logger
}

// New wires the five stages over deps.
func New(deps Deps, cfg Config) (*Pipeline, error) {
	deps = deps.withDefaults()
	cfg = cfg.withDefaults()

	if err := deps.validate(); err != nil {
		return nil, err
	}

	return &Pipeline{
		stages: []Stage{
			NewIngest(deps, cfg),
			NewExtract(deps, cfg),
			NewClassify(deps, cfg),
			NewMatch(deps, cfg),
			NewQA(deps, cfg),
		},
		logger: deps.Logger,
	}, nil
}

// Stages returns the stages in execution order.
func (p *Pipeline) Stages() []Stage {
	return append([]Stage(nil), p.stages...)
}

// Process starts a new run for input.
func (p *Pipeline) Process(ctx context.Context, input *models.ResumeInput) (*models.State, Outcome) {
	state := models.NewState(input)
	return state, p.Run(ctx, state)
}

// Run drives state through every stage. A run either succeeds with at least
// one match or fails with state.Error set.
func (p *Pipeline) Run(ctx context.Context, state *models.State) Outcome {
	if state.RunID == "" {
		state.RunID = uuid.NewString()
	}
	log := logger.ForRun(p.logger, state.RunID)
	started := time.Now()

	for _, stage := range p.stages {
		RunStage(ctx, stage, state, log)
		if state.Failed() {
			break
		}
	}

	if !state.Failed() {
		if len(state.JobMatches) == 0 {
			state.Fail(ErrNoMatches)
		} else {
			state.Advance(models.StepComplete)
		}
	}

	if state.Failed() {
		log.Warn("run failed",
			zap.String("current_step", string(state.CurrentStep)),
			zap.String("error", state.Error),
			zap.Duration("elapsed", time.Since(started)),
		)
		return OutcomeFailed
	}

	log.Info("run succeeded",
		zap.Int("matches", len(state.JobMatches)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return OutcomeSucceeded
}
