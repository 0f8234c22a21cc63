package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prepdesk/attempt-engine/internal/api"
	"github.com/prepdesk/attempt-engine/internal/engine"
)

type ErrorResponse struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type SuccessResponse struct {
	Data interface{} `json:"data"`
}

type BaseHandler struct {
	logger *slog.Logger
}

func NewBaseHandler(logger *slog.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

// LogRequest logs an incoming operation with its request id.
func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...interface{}) {
	args = append(args, "request_id", c.GetString("request_id"), "path", c.Request.URL.Path)
	h.logger.Info(msg, args...)
}

// handleServiceError maps engine and upstream API errors onto HTTP statuses.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrSessionNotFound),
		errors.Is(err, engine.ErrQuestionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: err.Error()})

	case errors.Is(err, engine.ErrAlreadySubmitted),
		errors.Is(err, engine.ErrSubmitInFlight),
		errors.Is(err, engine.ErrAlreadyStarted),
		errors.Is(err, engine.ErrAttemptCompleted):
		c.JSON(http.StatusConflict, ErrorResponse{Message: err.Error()})

	case errors.Is(err, engine.ErrSectionLocked),
		errors.Is(err, engine.ErrEndOfSection),
		errors.Is(err, engine.ErrStartOfSection),
		errors.Is(err, engine.ErrNotReviewing),
		errors.Is(err, engine.ErrNotOnBreak),
		errors.Is(err, engine.ErrNavigationRule),
		errors.Is(err, engine.ErrIndexOutOfRange),
		errors.Is(err, engine.ErrSessionNotStarted),
		errors.Is(err, engine.ErrSessionNotActive),
		errors.Is(err, engine.ErrNoFailedSubmit):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Message: err.Error()})

	case api.IsInvalidSession(err):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "exam server rejected credentials", Details: err.Error()})

	case api.IsNetworkFailure(err), api.IsServerRejected(err):
		c.JSON(http.StatusBadGateway, ErrorResponse{Message: "exam server unavailable", Details: err.Error()})

	default:
		h.logger.Error("Unhandled service error", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "internal error"})
	}
}
