package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/spigell/talentmatch/internal/models"
	"github.com/spigell/talentmatch/internal/pipeline"
)

const (
	resumeField = "resume"
	runIDHeader = "X-Run-ID"
)

func detail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"detail": msg})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "jobs": s.jobs})
}

func (s *Server) matchResume(c *gin.Context) {
	log := loggerFrom(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes)

	header, err := c.FormFile(resumeField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			detail(c, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		detail(c, http.StatusBadRequest, "No file uploaded")
		return
	}

	if s.cfg.RequirePDF && !strings.HasPrefix(header.Header.Get("Content-Type"), "application/pdf") {
		detail(c, http.StatusBadRequest, "File must be a PDF")
		return
	}

	file, err := header.Open()
	if err != nil {
		log.Error("open uploaded file", zap.Error(err))
		detail(c, http.StatusInternalServerError, "Failed to read uploaded file")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		log.Error("read uploaded file", zap.Error(err))
		detail(c, http.StatusInternalServerError, "Failed to read uploaded file")
		return
	}

	if len(content) == 0 {
		detail(c, http.StatusBadRequest, "Empty file uploaded")
		return
	}

	state, outcome := s.runner.Process(c.Request.Context(), models.BytesInput(content))
	c.Header(runIDHeader, state.RunID)

	if outcome != pipeline.OutcomeSucceeded {
		status := statusFor(state.Err)
		log.Warn("resume processing failed",
			zap.String("run_id", state.RunID),
			zap.Int("status", status),
			zap.String("error", state.Error),
		)
		detail(c, status, state.Error)
		return
	}

	c.JSON(http.StatusOK, state.JobMatches)
}

// statusFor maps the error kind of a failed run to an HTTP status.
func statusFor(err error) int {
	switch {
	case models.IsClientError(err):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrNoMatches):
		return http.StatusNotFound
	case errors.Is(err, models.ErrUpstream), errors.Is(err, models.ErrContract):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
