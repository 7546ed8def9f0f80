package api

import (
	"errors"
	"net/http"
	"time"

	"VideoPipeline-server/apperr"
	"VideoPipeline-server/logging"
	"VideoPipeline-server/models"
	"VideoPipeline-server/service"

	"github.com/gin-gonic/gin"
)

// Handler serves the pipeline's HTTP surface. Every route only reads state or
// enqueues work; the stages run in the worker.
type Handler struct {
	Store  *models.Store
	Queue  service.Enqueuer
	Logger logging.Logger
	// VoiceoverMock and MusicMock are the per-family defaults applied when a
	// trigger does not say.
	VoiceoverMock bool
	MusicMock     bool
	// PollInterval paces the render log websocket.
	PollInterval time.Duration
	// StreamTimeout caps how long one websocket stays open.
	StreamTimeout time.Duration
}

// RequestLogger logs one line per request.
func RequestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrInvalidTransition):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		h.Logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func useMock(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
