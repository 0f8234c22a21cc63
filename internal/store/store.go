package store

import "github.com/prepdesk/attempt-engine/internal/models"

// Store is the local attempt store: durable, per-attempt snapshot persistence
// that survives process restarts, plus an exam -> last attempt lookup used to
// auto-resume on revisit.
//
// Every operation is synchronous and best-effort. A storage failure is logged
// and swallowed, never raised: the engine degrades to "no resume" rather than
// crash. A missing or corrupt record reads as "no snapshot".
type Store interface {
	// LoadSnapshot returns the stored snapshot for the attempt, or nil.
	LoadSnapshot(attemptID string) *models.Snapshot
	// SaveSnapshot persists the snapshot keyed by its AttemptID.
	SaveSnapshot(snap *models.Snapshot)
	// ClearAttempt removes the snapshot and the exam lookup together. Called
	// only on successful terminal submit.
	ClearAttempt(attemptID, examID string)
	// LastAttemptID returns the attempt last known open for the exam, or "".
	LastAttemptID(examID string) string
	// RememberAttempt records examID -> attemptID for later auto-resume.
	RememberAttempt(examID, attemptID string)
}
