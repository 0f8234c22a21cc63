package models

import "time"

// LedgerEntry holds everything the student has done to one question. Created
// on first interaction, mutated in place, dropped only when the attempt
// completes.
type LedgerEntry struct {
	// Value is the chosen choice label or the literal free-text answer.
	// Empty string means unanswered.
	Value   string `json:"value,omitempty"`
	Flagged bool   `json:"flagged,omitempty"`
	// EliminatedChoices is a student-side elimination aid. It is never
	// transmitted as part of the answer.
	EliminatedChoices map[string]bool `json:"eliminated_choices,omitempty"`
	// Highlights maps an opaque target key to serialized markup. The engine
	// stores and returns it for resume; it never interprets the content.
	Highlights map[string]string `json:"highlights,omitempty"`
}

// SessionPhase is the persisted coarse position within the section flow.
type SessionPhase string

const (
	PhaseActive    SessionPhase = "active"
	PhaseReviewing SessionPhase = "reviewing"
	PhaseOnBreak   SessionPhase = "on_break"
	PhaseCompleted SessionPhase = "completed"
)

// Snapshot is the resumable state of one attempt as written to the local
// store. A snapshot is only trusted when its AttemptID matches the attempt
// the server currently reports open for the exam.
type Snapshot struct {
	AttemptID      string                  `json:"attempt_id"`
	ExamID         string                  `json:"exam_id"`
	NavigationMode NavigationMode          `json:"navigation_mode"`
	SectionIndex   int                     `json:"section_index"`
	QuestionIndex  int                     `json:"question_index"`
	Phase          SessionPhase            `json:"phase"`
	Ledger         map[string]*LedgerEntry `json:"ledger"`

	// TimeLeftSeconds is the active countdown at save time. The server's
	// reported elapsed time clamps it on restore so a stale local clock can
	// never grant more time than the server recorded.
	TimeLeftSeconds  int `json:"time_left_seconds"`
	BreakLeftSeconds int `json:"break_left_seconds,omitempty"`
	TimeSpentSeconds int `json:"time_spent_seconds"`
	// CompletedSectionsSeconds is the time consumed by already-finished
	// sections, used to reconcile the current section timer in linear mode.
	CompletedSectionsSeconds int `json:"completed_sections_seconds"`

	// LastVisited maps subject tag to the last visited global question index,
	// so free-mode subject jumps return to where the student left off.
	LastVisited map[string]int `json:"last_visited,omitempty"`

	SavedAt time.Time `json:"saved_at"`
}
