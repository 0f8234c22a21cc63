package engine

import (
	"time"

	"github.com/prepdesk/attempt-engine/internal/api"
	"github.com/prepdesk/attempt-engine/internal/events"
	"github.com/prepdesk/attempt-engine/internal/models"
)

const defaultBreakSeconds = 600

// ===== RESTORE / SEED =====

func (s *Session) restoreSnapshotLocked(snap *models.Snapshot, serverElapsedSeconds int) {
	s.ledger.Restore(snap.Ledger)
	s.nav.restore(snap.SectionIndex, snap.QuestionIndex, snap.Phase, snap.LastVisited)
	if snap.TimeSpentSeconds > s.timeSpent {
		s.timeSpent = snap.TimeSpentSeconds
	}
	s.completedSectionsSeconds = snap.CompletedSectionsSeconds

	if s.nav.Phase() == models.PhaseOnBreak {
		// The pending section's timer has not started counting; its full
		// allotment was snapshotted when the break began.
		s.timer.Arm(snap.TimeLeftSeconds)
		s.timer.Pause()
		s.breakTimer.Arm(snap.BreakLeftSeconds)
		return
	}

	s.timer.Arm(snap.TimeLeftSeconds)
	s.reconcileTimerLocked(serverElapsedSeconds)
}

func (s *Session) seedFreshLocked(serverElapsedSeconds int) {
	if s.exam.NavigationMode == models.NavigationFree {
		s.timer.Arm(s.globalLimitLocked())
	} else {
		s.armCurrentSectionLocked()
	}
	s.reconcileTimerLocked(serverElapsedSeconds)
}

// reconcileTimerLocked clamps the running countdown against the server's
// recorded elapsed time. In free mode the clamp applies to the one global
// limit; in linear mode only the current section's share of the elapsed
// time counts against its limit.
func (s *Session) reconcileTimerLocked(serverElapsedSeconds int) {
	if s.exam.NavigationMode == models.NavigationFree {
		s.timer.Reconcile(serverElapsedSeconds, s.globalLimitLocked())
		return
	}
	sectionElapsed := serverElapsedSeconds - s.completedSectionsSeconds
	if sectionElapsed < 0 {
		sectionElapsed = 0
	}
	s.timer.Reconcile(sectionElapsed, s.nav.CurrentSection().TimeLimitSeconds)
}

func (s *Session) armCurrentSectionLocked() {
	s.timer.Arm(s.nav.CurrentSection().TimeLimitSeconds)
}

// globalLimitLocked is the free-mode budget: the exam-level limit, or the
// sum of section limits when the definition omits one.
func (s *Session) globalLimitLocked() int {
	if s.exam.TimeLimitSeconds > 0 {
		return s.exam.TimeLimitSeconds
	}
	total := 0
	for _, sec := range s.exam.Sections {
		total += sec.TimeLimitSeconds
	}
	return total
}

func (s *Session) breakLimitLocked() int {
	if s.exam.BreakLimitSeconds > 0 {
		return s.exam.BreakLimitSeconds
	}
	return defaultBreakSeconds
}

// ===== PERSISTENCE =====

func (s *Session) persistLocked() {
	if s.attempt == nil {
		return
	}
	sectionIndex, questionIndex := s.nav.Position()
	s.attempt.CurrentSectionIndex = sectionIndex
	s.attempt.CurrentQuestionIndex = questionIndex
	s.attempt.TimeSpentSeconds = s.timeSpent

	s.store.SaveSnapshot(&models.Snapshot{
		AttemptID:                s.attempt.ID,
		ExamID:                   s.attempt.ExamID,
		NavigationMode:           s.exam.NavigationMode,
		SectionIndex:             sectionIndex,
		QuestionIndex:            questionIndex,
		Phase:                    s.nav.Phase(),
		Ledger:                   s.ledger.Snapshot(),
		TimeLeftSeconds:          s.timer.SecondsLeft(),
		BreakLeftSeconds:         s.breakTimer.SecondsLeft(),
		TimeSpentSeconds:         s.timeSpent,
		CompletedSectionsSeconds: s.completedSectionsSeconds,
		LastVisited:              s.nav.lastVisitedSnapshot(),
		SavedAt:                  time.Now(),
	})
}

// buildPayloadLocked flattens the ledger into wire order. Only questions the
// student has touched are transmitted; eliminations and highlights stay
// local.
func (s *Session) buildPayloadLocked() []api.AnswerPayload {
	var payload []api.AnswerPayload
	for _, sec := range s.exam.Sections {
		for _, q := range sec.Questions {
			value := s.ledger.Answer(q.ID)
			flagged := s.ledger.IsFlagged(q.ID)
			if value == "" && !flagged {
				continue
			}
			payload = append(payload, api.AnswerPayload{
				QuestionID: q.ID,
				Value:      value,
				Flagged:    flagged,
			})
		}
	}
	return payload
}

// ===== QUERIES =====

func (s *Session) questionExistsLocked(questionID string) bool {
	for _, sec := range s.exam.Sections {
		for _, q := range sec.Questions {
			if q.ID == questionID {
				return true
			}
		}
	}
	return false
}

func (s *Session) requireRunningLocked() error {
	switch s.state {
	case StateActive, StateReviewing, StateOnBreak:
		return nil
	case StateIntro, StateStarting:
		return ErrSessionNotStarted
	default:
		return ErrSessionNotActive
	}
}

func stateForPhase(phase models.SessionPhase) SessionState {
	switch phase {
	case models.PhaseReviewing:
		return StateReviewing
	case models.PhaseOnBreak:
		return StateOnBreak
	default:
		return StateActive
	}
}

// AttemptID returns the server-assigned attempt id, or "" before Start.
func (s *Session) AttemptID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempt == nil {
		return ""
	}
	return s.attempt.ID
}

// Result returns the terminal submit outcome once submitted, else nil.
func (s *Session) Result() *api.SubmitResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// TimedOut reports whether expiry triggered the terminal submission. It
// stays true even if that submission failed, so the UI can show the
// time-is-up state together with the error.
func (s *Session) TimedOut() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timedOut
}

// View assembles the read-only rendering snapshot.
func (s *Session) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := SessionView{State: s.state}
	if s.attempt == nil || s.exam == nil {
		if s.lastErr != nil {
			view.Error = s.lastErr.Error()
		}
		return view
	}

	sectionIndex, questionIndex := s.nav.Position()
	view.AttemptID = s.attempt.ID
	view.ExamID = s.attempt.ExamID
	view.ExamTitle = s.exam.Title
	view.NavigationMode = s.exam.NavigationMode
	view.SectionIndex = sectionIndex
	view.QuestionIndex = questionIndex
	view.TimeLeftSeconds = s.timer.SecondsLeft()
	view.BreakLeftSeconds = s.breakTimer.SecondsLeft()
	view.TimeSpentSeconds = s.timeSpent
	view.TimedOut = s.timedOut
	view.AttemptsUsed = s.attempt.AttemptsUsed
	view.MaxAttempts = s.attempt.MaxAttempts
	if s.lastErr != nil {
		view.Error = s.lastErr.Error()
	}

	if s.nav.Phase() != models.PhaseCompleted {
		q := s.nav.CurrentQuestion()
		view.Question = &q
	}

	view.Sections = make([]SectionProgress, len(s.exam.Sections))
	for i, sec := range s.exam.Sections {
		view.Sections[i] = SectionProgress{
			Subject:       sec.Subject,
			AnsweredCount: s.ledger.AnsweredCount(sec.Questions),
			FlaggedCount:  s.ledger.FlaggedCount(sec.Questions),
			TotalCount:    len(sec.Questions),
		}
	}
	return view
}

// Ledger state accessors for the facade layer.

func (s *Session) IsAnswered(questionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger != nil && s.ledger.IsAnswered(questionID)
}

func (s *Session) IsFlagged(questionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger != nil && s.ledger.IsFlagged(questionID)
}

// LedgerEntries exposes a deep copy of the ledger, e.g. for report export.
func (s *Session) LedgerEntries() map[string]*models.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ledger == nil {
		return nil
	}
	return s.ledger.Snapshot()
}

// Exam returns the fetched definition, nil before Start.
func (s *Session) Exam() *models.Exam {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exam
}

// Attempt returns a copy of the attempt record, nil before Start.
func (s *Session) Attempt() *models.Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempt == nil {
		return nil
	}
	copied := *s.attempt
	return &copied
}

func (s *Session) publishLocked(topic string, released *bool) {
	sectionIndex, _ := s.nav.Position()
	s.events.Publish(topic, events.AttemptEvent{
		AttemptID:    s.attempt.ID,
		ExamID:       s.attempt.ExamID,
		SectionIndex: sectionIndex,
		TimeSpent:    s.timeSpent,
		Released:     released,
		OccurredAt:   time.Now(),
	})
}
