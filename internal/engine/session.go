package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prepdesk/attempt-engine/internal/api"
	"github.com/prepdesk/attempt-engine/internal/events"
	"github.com/prepdesk/attempt-engine/internal/models"
	"github.com/prepdesk/attempt-engine/internal/store"
)

const defaultAutosaveInterval = 30 * time.Second

// Session orchestrates one attempt: it arms timers, routes navigation
// through the Navigator, mirrors every change into the local store and hands
// terminal submission to the SubmissionCoordinator. One Session owns one
// attempt; nothing is shared between concurrent attempts.
type Session struct {
	mu sync.Mutex

	apiClient        api.Client
	store            store.Store
	events           events.Publisher
	logger           *slog.Logger
	autosaveInterval time.Duration

	exam    *models.Exam
	attempt *models.Attempt
	ledger  *Ledger
	nav     *Navigator
	timer   *Countdown
	// breakTimer counts the break down for display; its expiry is
	// informational only and forces nothing.
	breakTimer *Countdown
	coord      *SubmissionCoordinator

	state    SessionState
	lastErr  error
	timedOut bool
	result   *api.SubmitResult

	// timeSpent accumulates seconds of active testing, server-reconciled at
	// start. completedSectionsSeconds freezes its value each time a section
	// is left, so the current section's share can be isolated on resume.
	timeSpent                int
	completedSectionsSeconds int

	cancelTickers context.CancelFunc
}

var _ AttemptSession = (*Session)(nil)

func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.API == nil {
		return nil, errors.New("session requires an exam api client")
	}
	if cfg.Store == nil {
		return nil, errors.New("session requires a local attempt store")
	}
	if cfg.Logger == nil {
		return nil, errors.New("session requires a logger")
	}
	if cfg.Events == nil {
		cfg.Events = events.NopPublisher{}
	}
	if cfg.AutosaveInterval <= 0 {
		cfg.AutosaveInterval = defaultAutosaveInterval
	}
	return &Session{
		apiClient:        cfg.API,
		store:            cfg.Store,
		events:           cfg.Events,
		logger:           cfg.Logger,
		autosaveInterval: cfg.AutosaveInterval,
		state:            StateIntro,
	}, nil
}

// ===== LIFECYCLE =====

// Start fetches the exam definition plus any server-known progress, restores
// a matching local snapshot if one exists and arms the timers. A failed
// start is fatal to the session: state moves to error and no partial attempt
// state is left behind; calling Start again retries.
func (s *Session) Start(ctx context.Context, examID string) error {
	s.mu.Lock()
	if s.state != StateIntro && s.state != StateError {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	// A restart out of the error state may still have the previous tickers
	// running; they must be gone before new ones are armed.
	s.stopTickersLocked()
	s.state = StateStarting
	s.mu.Unlock()

	s.logger.Info("Starting attempt session", "exam_id", examID)

	resp, err := s.apiClient.Start(ctx, examID)
	if err != nil {
		s.mu.Lock()
		s.state = StateError
		s.lastErr = err
		s.mu.Unlock()
		return fmt.Errorf("failed to start attempt: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	exam := resp.Exam
	exam.ID = examID
	s.exam = &exam
	s.attempt = &models.Attempt{
		ID:           resp.AttemptID,
		ExamID:       examID,
		Status:       models.AttemptInProgress,
		AttemptsUsed: resp.AttemptsUsed,
		MaxAttempts:  resp.MaxAttempts,
		CreatedAt:    time.Now(),
	}
	s.ledger = NewLedger()
	for questionID, value := range resp.ExistingAnswers {
		s.ledger.SetAnswer(questionID, value)
	}
	s.nav = NewNavigator(exam.Sections, exam.NavigationMode)
	s.timer = NewCountdown()
	s.breakTimer = NewCountdown()
	s.coord = NewSubmissionCoordinator(s.apiClient, s.store, s.logger, resp.AttemptID, examID)
	s.timeSpent = resp.ServerElapsedSeconds
	s.timedOut = false
	s.lastErr = nil

	s.store.RememberAttempt(examID, resp.AttemptID)

	topic := events.TopicAttemptStarted
	if snap := s.store.LoadSnapshot(resp.AttemptID); snap != nil && snap.ExamID == examID {
		s.restoreSnapshotLocked(snap, resp.ServerElapsedSeconds)
		topic = events.TopicAttemptResumed
		s.logger.Info("Resumed attempt from local snapshot",
			"attempt_id", resp.AttemptID,
			"section_index", snap.SectionIndex,
			"question_index", snap.QuestionIndex)
	} else {
		s.seedFreshLocked(resp.ServerElapsedSeconds)
	}

	s.state = stateForPhase(s.nav.Phase())
	s.persistLocked()
	s.publishLocked(topic, nil)

	tickCtx, cancel := context.WithCancel(context.Background())
	s.cancelTickers = cancel
	go s.runTickers(tickCtx)

	return nil
}

// Close cancels the recurring tickers when the test-taking screen goes away.
// It deliberately does not cancel an in-flight submit: that call is the
// system's most important write and runs to completion on its own context.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTickersLocked()
}

// ===== LEDGER MUTATIONS =====

func (s *Session) Answer(questionID, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireRunningLocked(); err != nil {
		return err
	}
	if !s.questionExistsLocked(questionID) {
		return ErrQuestionNotFound
	}
	s.ledger.SetAnswer(questionID, value)
	s.persistLocked()
	return nil
}

func (s *Session) ToggleFlag(questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireRunningLocked(); err != nil {
		return err
	}
	if !s.questionExistsLocked(questionID) {
		return ErrQuestionNotFound
	}
	s.ledger.ToggleFlag(questionID)
	s.persistLocked()
	return nil
}

func (s *Session) ToggleElimination(questionID, choiceLabel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireRunningLocked(); err != nil {
		return err
	}
	if !s.questionExistsLocked(questionID) {
		return ErrQuestionNotFound
	}
	s.ledger.ToggleElimination(questionID, choiceLabel)
	s.persistLocked()
	return nil
}

func (s *Session) SetHighlight(questionID, target, html string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireRunningLocked(); err != nil {
		return err
	}
	if !s.questionExistsLocked(questionID) {
		return ErrQuestionNotFound
	}
	s.ledger.SetHighlight(questionID, target, html)
	s.persistLocked()
	return nil
}

// ===== NAVIGATION =====

func (s *Session) GoTo(globalIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireRunningLocked(); err != nil {
		return err
	}
	if err := s.nav.GoTo(globalIndex); err != nil {
		return err
	}
	s.state = stateForPhase(s.nav.Phase())
	s.persistLocked()
	return nil
}

func (s *Session) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireRunningLocked(); err != nil {
		return err
	}
	if err := s.nav.Next(); err != nil {
		return err
	}
	s.persistLocked()
	return nil
}

func (s *Session) Previous() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireRunningLocked(); err != nil {
		return err
	}
	if err := s.nav.Previous(); err != nil {
		return err
	}
	s.persistLocked()
	return nil
}

// FinishSection moves a running linear section into its review screen.
func (s *Session) FinishSection() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireRunningLocked(); err != nil {
		return err
	}
	if err := s.nav.FinishSection(); err != nil {
		return err
	}
	s.state = StateReviewing
	s.persistLocked()
	return nil
}

// AdvanceSection leaves review for the next section, a designated break, or
// terminal submission after the last section.
func (s *Session) AdvanceSection(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateReviewing {
		s.mu.Unlock()
		return ErrNotReviewing
	}

	outcome, err := s.nav.AdvanceSection()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.completedSectionsSeconds = s.timeSpent

	switch outcome {
	case AdvancedToSection:
		s.armCurrentSectionLocked()
		s.state = StateActive
		s.persistLocked()
		s.publishLocked(events.TopicSectionAdvanced, nil)
		s.mu.Unlock()
		return nil

	case AdvancedToBreak:
		// The next section's timer is armed but held until the student
		// resumes; the break countdown is display-only.
		s.armCurrentSectionLocked()
		s.timer.Pause()
		s.breakTimer.Arm(s.breakLimitLocked())
		s.state = StateOnBreak
		s.persistLocked()
		s.publishLocked(events.TopicBreakStarted, nil)
		s.mu.Unlock()
		return nil

	default: // AdvancedToEnd
		s.state = StateSubmitting
		s.attempt.Status = models.AttemptAwaitingSubmit
		s.persistLocked()
		payload := s.buildPayloadLocked()
		timeSpent := s.timeSpent
		s.mu.Unlock()
		_, err := s.finishSubmit(ctx, payload, timeSpent)
		return err
	}
}

// ResumeFromBreak arms the pending section. The UI may call it before the
// break countdown reaches zero.
func (s *Session) ResumeFromBreak() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOnBreak {
		return ErrNotOnBreak
	}
	if err := s.nav.ResumeFromBreak(); err != nil {
		return err
	}
	s.timer.Resume()
	s.breakTimer.Clear()
	s.state = StateActive
	s.persistLocked()
	s.publishLocked(events.TopicSectionAdvanced, nil)
	return nil
}

// ===== TERMINAL =====

// Submit is the explicit terminal action. Expiry-triggered submission runs
// through the identical path, so both carry the same exactly-once guarantee.
func (s *Session) Submit(ctx context.Context) (*api.SubmitResult, error) {
	s.mu.Lock()
	switch s.state {
	case StateSubmitted:
		s.mu.Unlock()
		return nil, ErrAlreadySubmitted
	case StateSubmitting:
		s.mu.Unlock()
		return nil, ErrSubmitInFlight
	case StateActive, StateReviewing, StateOnBreak:
		// proceed
	default:
		s.mu.Unlock()
		return nil, ErrSessionNotStarted
	}

	s.state = StateSubmitting
	s.attempt.Status = models.AttemptAwaitingSubmit
	payload := s.buildPayloadLocked()
	timeSpent := s.timeSpent
	s.mu.Unlock()

	return s.finishSubmit(ctx, payload, timeSpent)
}

// RetrySubmit re-runs a failed terminal submit with the same attempt id.
// Nothing retries automatically; this is the caller's manual affordance.
func (s *Session) RetrySubmit(ctx context.Context) (*api.SubmitResult, error) {
	s.mu.Lock()
	if s.coord == nil {
		s.mu.Unlock()
		return nil, ErrSessionNotStarted
	}
	if s.state != StateError {
		s.mu.Unlock()
		if s.state == StateSubmitted {
			return nil, ErrAlreadySubmitted
		}
		return nil, ErrNoFailedSubmit
	}
	s.state = StateSubmitting
	payload := s.buildPayloadLocked()
	timeSpent := s.timeSpent
	s.mu.Unlock()

	result, err := s.coord.Retry(ctx, payload, timeSpent)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = StateError
		s.lastErr = err
		return nil, err
	}
	s.completeLocked(result)
	return result, nil
}

func (s *Session) finishSubmit(ctx context.Context, payload []api.AnswerPayload, timeSpent int) (*api.SubmitResult, error) {
	result, err := s.coord.Submit(ctx, payload, timeSpent)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if errors.Is(err, ErrAlreadySubmitted) || errors.Is(err, ErrSubmitInFlight) {
			return nil, err
		}
		// A failed terminal submit surfaces to the caller; the idempotency
		// latch stays set and the timed-out marker survives so the UI can
		// show "time is up" alongside the error.
		s.state = StateError
		s.lastErr = err
		return nil, err
	}
	s.completeLocked(result)
	return result, nil
}

func (s *Session) completeLocked(result *api.SubmitResult) {
	s.result = result
	s.state = StateSubmitted
	s.attempt.Status = models.AttemptSubmitted
	s.publishLocked(events.TopicAttemptSubmitted, &result.Released)
	s.stopTickersLocked()
}

// ===== TICKS =====

// TickSecond advances the active countdown by one second. It is driven once
// per wall-clock second by the internal ticker; tests call it directly.
func (s *Session) TickSecond() {
	s.mu.Lock()

	switch s.state {
	case StateActive, StateReviewing:
		s.timeSpent++
		if s.timer.Tick() {
			s.handleExpiryLocked()
		}
	case StateOnBreak:
		// Informational only; nothing is forced when it hits zero.
		s.breakTimer.Tick()
	}

	s.mu.Unlock()
}

// AutosaveNow pushes the ledger to the server and refreshes the local
// snapshot. Called on the autosave interval; safe to call redundantly.
func (s *Session) AutosaveNow(ctx context.Context) {
	s.mu.Lock()
	switch s.state {
	case StateActive, StateReviewing, StateOnBreak:
		// proceed
	default:
		s.mu.Unlock()
		return
	}
	s.persistLocked()
	payload := s.buildPayloadLocked()
	timeSpent := s.timeSpent
	coord := s.coord
	s.mu.Unlock()

	coord.Autosave(ctx, payload, timeSpent)
}

func (s *Session) handleExpiryLocked() {
	s.logger.Info("Section timer expired",
		"attempt_id", s.attempt.ID,
		"state", s.state)

	if s.exam.NavigationMode == models.NavigationFree {
		s.beginExpirySubmitLocked()
		return
	}

	// Linear mode: the expired section is left behind whether or not the
	// student reached its review screen.
	s.completedSectionsSeconds = s.timeSpent
	outcome, err := s.nav.ForceAdvance()
	if err != nil {
		s.logger.Error("Failed to advance on expiry", "attempt_id", s.attempt.ID, "error", err)
		return
	}

	switch outcome {
	case AdvancedToSection:
		s.armCurrentSectionLocked()
		s.state = StateActive
		s.persistLocked()
		s.publishLocked(events.TopicSectionAdvanced, nil)
	case AdvancedToBreak:
		s.armCurrentSectionLocked()
		s.timer.Pause()
		s.breakTimer.Arm(s.breakLimitLocked())
		s.state = StateOnBreak
		s.persistLocked()
		s.publishLocked(events.TopicBreakStarted, nil)
	default: // AdvancedToEnd
		s.beginExpirySubmitLocked()
	}
}

func (s *Session) beginExpirySubmitLocked() {
	s.timedOut = true
	s.state = StateSubmitting
	s.attempt.Status = models.AttemptAwaitingSubmit
	s.persistLocked()
	s.publishLocked(events.TopicAttemptExpired, nil)

	payload := s.buildPayloadLocked()
	timeSpent := s.timeSpent

	// Detached from any UI context: the terminal write must complete even
	// if the screen unmounts mid-flight.
	go func() {
		if _, err := s.finishSubmit(context.Background(), payload, timeSpent); err != nil {
			s.logger.Error("Expiry-triggered submit failed",
				"attempt_id", s.attempt.ID,
				"error", err)
		}
	}()
}

func (s *Session) runTickers(ctx context.Context) {
	tick := time.NewTicker(time.Second)
	defer tick.Stop()
	autosave := time.NewTicker(s.autosaveInterval)
	defer autosave.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			s.TickSecond()
		case <-autosave.C:
			s.AutosaveNow(ctx)
		}
	}
}

func (s *Session) stopTickersLocked() {
	if s.cancelTickers != nil {
		s.cancelTickers()
		s.cancelTickers = nil
	}
}
