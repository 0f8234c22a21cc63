package handlers

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/prepdesk/attempt-engine/internal/engine"
	"github.com/prepdesk/attempt-engine/internal/validator"
)

type HandlerManager struct {
	sessionHandler *SessionHandler
}

func NewHandlerManager(manager *engine.Manager, validator *validator.Validator, logger *slog.Logger) *HandlerManager {
	return &HandlerManager{
		sessionHandler: NewSessionHandler(manager, validator, logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		attempts := v1.Group("/attempts")
		{
			attempts.POST("/start", hm.sessionHandler.StartSession)
			attempts.GET("/:id", hm.sessionHandler.GetSession)

			// Answer ledger
			attempts.POST("/:id/answers", hm.sessionHandler.SubmitAnswer)
			attempts.POST("/:id/flag", hm.sessionHandler.ToggleFlag)
			attempts.POST("/:id/eliminate", hm.sessionHandler.ToggleElimination)
			attempts.POST("/:id/highlight", hm.sessionHandler.SetHighlight)

			// Navigation
			attempts.POST("/:id/goto", hm.sessionHandler.GoTo)
			attempts.POST("/:id/next", hm.sessionHandler.Next)
			attempts.POST("/:id/previous", hm.sessionHandler.Previous)
			attempts.POST("/:id/finish-section", hm.sessionHandler.FinishSection)
			attempts.POST("/:id/advance", hm.sessionHandler.AdvanceSection)
			attempts.POST("/:id/resume-break", hm.sessionHandler.ResumeFromBreak)

			// Submission
			attempts.POST("/:id/submit", hm.sessionHandler.SubmitAttempt)
			attempts.POST("/:id/retry-submit", hm.sessionHandler.RetrySubmit)

			attempts.GET("/:id/report", hm.sessionHandler.DownloadReport)
			attempts.DELETE("/:id", hm.sessionHandler.ReleaseSession)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "attempt-engine",
		})
	})
}
