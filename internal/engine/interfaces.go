package engine

import (
	"context"
	"errors"
	"time"

	"github.com/prepdesk/attempt-engine/internal/api"
	"github.com/prepdesk/attempt-engine/internal/events"
	"github.com/prepdesk/attempt-engine/internal/models"
	"github.com/prepdesk/attempt-engine/internal/store"
	"log/slog"
)

// ===== SENTINEL ERRORS =====

var (
	ErrSessionNotActive   = errors.New("session is not active")
	ErrSessionNotStarted  = errors.New("session has not been started")
	ErrAlreadyStarted     = errors.New("session already started")
	ErrAlreadySubmitted   = errors.New("attempt already submitted")
	ErrSubmitInFlight     = errors.New("submit already in flight")
	ErrNoFailedSubmit     = errors.New("no failed submit to retry")
	ErrQuestionNotFound   = errors.New("question not found in attempt")
	ErrIndexOutOfRange    = errors.New("question index out of range")
	ErrSectionLocked      = errors.New("section not reachable under current navigation rules")
	ErrEndOfSection       = errors.New("already at the last question of the section")
	ErrStartOfSection     = errors.New("already at the first question of the section")
	ErrNotReviewing       = errors.New("section review is not in progress")
	ErrNotOnBreak         = errors.New("no break in progress")
	ErrNavigationRule     = errors.New("operation not available in this navigation mode")
	ErrAttemptCompleted   = errors.New("all sections finished, no further navigation possible")
)

// ===== STATES =====

// SessionState is the orchestration state machine of one attempt session.
type SessionState string

const (
	StateIntro      SessionState = "intro"
	StateStarting   SessionState = "starting"
	StateActive     SessionState = "active"
	StateReviewing  SessionState = "reviewing"
	StateOnBreak    SessionState = "on_break"
	StateSubmitting SessionState = "submitting"
	StateSubmitted  SessionState = "submitted"
	StateError      SessionState = "error"
)

// AdvanceOutcome reports where AdvanceSection landed.
type AdvanceOutcome string

const (
	AdvancedToSection AdvanceOutcome = "next_section"
	AdvancedToBreak   AdvanceOutcome = "break"
	AdvancedToEnd     AdvanceOutcome = "completed"
)

// ===== DTOs =====

// SessionConfig carries the collaborators a session needs. API, Store and
// Logger are required; Events defaults to a no-op publisher.
type SessionConfig struct {
	API              api.Client
	Store            store.Store
	Events           events.Publisher
	Logger           *slog.Logger
	AutosaveInterval time.Duration
}

// SectionProgress is the per-section answer bookkeeping exposed to the UI.
type SectionProgress struct {
	Subject       string `json:"subject"`
	AnsweredCount int    `json:"answered_count"`
	FlaggedCount  int    `json:"flagged_count"`
	TotalCount    int    `json:"total_count"`
}

// SessionView is a read-only snapshot of session state for rendering.
type SessionView struct {
	AttemptID        string               `json:"attempt_id"`
	ExamID           string               `json:"exam_id"`
	ExamTitle        string               `json:"exam_title"`
	State            SessionState         `json:"state"`
	NavigationMode   models.NavigationMode `json:"navigation_mode"`
	SectionIndex     int                  `json:"section_index"`
	QuestionIndex    int                  `json:"question_index"`
	Question         *models.Question     `json:"question,omitempty"`
	TimeLeftSeconds  int                  `json:"time_left_seconds"`
	BreakLeftSeconds int                  `json:"break_left_seconds,omitempty"`
	TimeSpentSeconds int                  `json:"time_spent_seconds"`
	TimedOut         bool                 `json:"timed_out,omitempty"`
	Sections         []SectionProgress    `json:"sections"`
	AttemptsUsed     int                  `json:"attempts_used"`
	MaxAttempts      int                  `json:"max_attempts"`
	Error            string               `json:"error,omitempty"`
}

// AttemptSession is the engine surface a test-taking screen drives.
type AttemptSession interface {
	Start(ctx context.Context, examID string) error
	View() SessionView

	// Ledger mutations
	Answer(questionID, value string) error
	ToggleFlag(questionID string) error
	ToggleElimination(questionID, choiceLabel string) error
	SetHighlight(questionID, target, html string) error

	// Navigation
	GoTo(globalIndex int) error
	Next() error
	Previous() error
	FinishSection() error
	AdvanceSection(ctx context.Context) error
	ResumeFromBreak() error

	// Terminal
	Submit(ctx context.Context) (*api.SubmitResult, error)
	RetrySubmit(ctx context.Context) (*api.SubmitResult, error)
	Result() *api.SubmitResult

	Close()
}
