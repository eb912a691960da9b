// Package server exposes the matching pipeline over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/spigell/talentmatch/internal/models"
	"github.com/spigell/talentmatch/internal/pipeline"
)

const (
	DefaultAddr           = ":8000"
	DefaultMaxUploadBytes = 10 << 20

	shutdownTimeout   = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Runner processes one resume. *pipeline.Pipeline implements it.
type Runner interface {
	Process(ctx context.Context, input *models.ResumeInput) (*models.State, pipeline.Outcome)
}

type Config struct {
	Addr           string
	MaxUploadBytes int64
	// RequirePDF rejects uploads not declared as application/pdf.
	RequirePDF bool
}

type Server struct {
	cfg    Config
	runner Runner
	jobs   int
	engine *gin.Engine
	logger *zap.Logger
}

// New builds the router. jobs is the catalog size reported by the health check.
func New(runner Runner, jobs int, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}

	s := &Server{cfg: cfg, runner: runner, jobs: jobs, logger: logger}

	engine := gin.New()
	engine.Use(requestID(), requestLogger(logger), gin.Recovery())

	engine.GET("/healthz", s.health)
	api := engine.Group("/api/v1")
	api.POST("/match/resume", s.matchResume)

	s.engine = engine
	return s
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown http server")
	}
	return nil
}
