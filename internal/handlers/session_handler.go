package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prepdesk/attempt-engine/internal/engine"
	"github.com/prepdesk/attempt-engine/internal/report"
	"github.com/prepdesk/attempt-engine/internal/validator"
)

type SessionHandler struct {
	BaseHandler
	manager   *engine.Manager
	validator *validator.Validator
}

func NewSessionHandler(manager *engine.Manager, validator *validator.Validator, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		BaseHandler: NewBaseHandler(logger),
		manager:     manager,
		validator:   validator,
	}
}

// ===== REQUEST DTOs =====

type StartSessionRequest struct {
	ExamID string `json:"exam_id" validate:"required"`
}

type AnswerRequest struct {
	QuestionID string `json:"question_id" validate:"required"`
	Value      string `json:"value"`
}

type FlagRequest struct {
	QuestionID string `json:"question_id" validate:"required"`
}

type EliminationRequest struct {
	QuestionID  string `json:"question_id" validate:"required"`
	ChoiceLabel string `json:"choice_label" validate:"required"`
}

type HighlightRequest struct {
	QuestionID string `json:"question_id" validate:"required"`
	Target     string `json:"target" validate:"required"`
	HTML       string `json:"html"`
}

type GoToRequest struct {
	GlobalIndex int `json:"global_index" validate:"min=0"`
}

// ===== HANDLERS =====

// StartSession starts or auto-resumes the attempt for an exam.
// @Summary Start attempt session
// @Tags attempts
// @Accept json
// @Produce json
// @Param body body StartSessionRequest true "Exam to start"
// @Success 201 {object} engine.SessionView
// @Failure 400 {object} ErrorResponse
// @Router /attempts/start [post]
func (h *SessionHandler) StartSession(c *gin.Context) {
	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid request payload", Details: err.Error()})
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
		return
	}

	h.LogRequest(c, "Starting attempt session", "exam_id", req.ExamID)

	session, err := h.manager.StartSession(c.Request.Context(), req.ExamID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session.View())
}

// GetSession returns the current session view.
// @Summary Get attempt session state
// @Tags attempts
// @Produce json
// @Param id path string true "Attempt ID"
// @Success 200 {object} engine.SessionView
// @Failure 404 {object} ErrorResponse
// @Router /attempts/{id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	session, err := h.manager.Get(c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, session.View())
}

// SubmitAnswer records or replaces one question's answer.
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	session, err := h.manager.Get(c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid request payload", Details: err.Error()})
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
		return
	}

	if err := session.Answer(req.QuestionID, req.Value); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, session.View())
}

// ToggleFlag marks or unmarks a question for review.
func (h *SessionHandler) ToggleFlag(c *gin.Context) {
	session, err := h.manager.Get(c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	var req FlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid request payload", Details: err.Error()})
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
		return
	}
	if err := session.ToggleFlag(req.QuestionID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, session.View())
}

// ToggleElimination crosses out a choice.
func (h *SessionHandler) ToggleElimination(c *gin.Context) {
	session, err := h.manager.Get(c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	var req EliminationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid request payload", Details: err.Error()})
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
		return
	}
	if err := session.ToggleElimination(req.QuestionID, req.ChoiceLabel); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, session.View())
}

// SetHighlight stores serialized markup for resume.
func (h *SessionHandler) SetHighlight(c *gin.Context) {
	session, err := h.manager.Get(c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	var req HighlightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid request payload", Details: err.Error()})
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
		return
	}
	if err := session.SetHighlight(req.QuestionID, req.Target, req.HTML); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, session.View())
}

// GoTo jumps to a global question index, subject to navigation rules.
func (h *SessionHandler) GoTo(c *gin.Context) {
	session, err := h.manager.Get(c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	var req GoToRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid request payload", Details: err.Error()})
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
		return
	}
	if err := session.GoTo(req.GlobalIndex); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, session.View())
}

func (h *SessionHandler) Next(c *gin.Context) {
	h.navigate(c, func(s *engine.Session) error { return s.Next() })
}

func (h *SessionHandler) Previous(c *gin.Context) {
	h.navigate(c, func(s *engine.Session) error { return s.Previous() })
}

func (h *SessionHandler) FinishSection(c *gin.Context) {
	h.navigate(c, func(s *engine.Session) error { return s.FinishSection() })
}

func (h *SessionHandler) AdvanceSection(c *gin.Context) {
	h.navigate(c, func(s *engine.Session) error {
		return s.AdvanceSection(c.Request.Context())
	})
}

func (h *SessionHandler) ResumeFromBreak(c *gin.Context) {
	h.navigate(c, func(s *engine.Session) error { return s.ResumeFromBreak() })
}

func (h *SessionHandler) navigate(c *gin.Context, op func(*engine.Session) error) {
	session, err := h.manager.Get(c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	if err := op(session); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, session.View())
}

// SubmitAttempt performs (or manually retries) the terminal submission.
// @Summary Submit attempt
// @Tags attempts
// @Produce json
// @Param id path string true "Attempt ID"
// @Success 200 {object} api.SubmitResult
// @Failure 409 {object} ErrorResponse
// @Router /attempts/{id}/submit [post]
func (h *SessionHandler) SubmitAttempt(c *gin.Context) {
	session, err := h.manager.Get(c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Submitting attempt", "attempt_id", c.Param("id"))

	result, err := session.Submit(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RetrySubmit re-runs a failed terminal submit on user request.
func (h *SessionHandler) RetrySubmit(c *gin.Context) {
	session, err := h.manager.Get(c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Retrying attempt submit", "attempt_id", c.Param("id"))

	result, err := session.RetrySubmit(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// DownloadReport streams the xlsx score report for a submitted attempt.
func (h *SessionHandler) DownloadReport(c *gin.Context) {
	session, err := h.manager.Get(c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	data, err := report.BuildScoreReport(session.Exam(), session.Attempt(), session.LedgerEntries(), session.Result())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="score-report.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// ReleaseSession detaches the session when the screen goes away; tickers
// stop but an in-flight submit keeps running.
func (h *SessionHandler) ReleaseSession(c *gin.Context) {
	h.manager.Release(c.Param("id"))
	c.Status(http.StatusNoContent)
}
