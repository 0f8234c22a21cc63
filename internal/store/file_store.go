package store

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/prepdesk/attempt-engine/internal/models"
)

// fileStore keeps one JSON file per attempt snapshot and one per exam lookup
// under a data directory. It is the default backend when no Redis is
// configured.
type fileStore struct {
	dir    string
	logger *slog.Logger
}

// NewFileStore creates the directory if needed. On failure it returns an
// in-memory store instead so callers never deal with a broken store.
func NewFileStore(dir string, logger *slog.Logger) Store {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Warn("Local store directory unusable, falling back to memory",
			"dir", dir,
			"error", err)
		return NewMemoryStore()
	}
	return &fileStore{dir: dir, logger: logger}
}

func (s *fileStore) LoadSnapshot(attemptID string) *models.Snapshot {
	data, err := os.ReadFile(s.snapshotPath(attemptID))
	if err != nil {
		return nil
	}
	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		// Corrupt local state: discard, never propagate.
		s.logger.Warn("Discarding corrupt snapshot",
			"attempt_id", attemptID,
			"error", err)
		return nil
	}
	if snap.AttemptID != attemptID {
		return nil
	}
	return &snap
}

func (s *fileStore) SaveSnapshot(snap *models.Snapshot) {
	if snap == nil || snap.AttemptID == "" {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		s.logger.Warn("Failed to marshal snapshot", "attempt_id", snap.AttemptID, "error", err)
		return
	}
	if err := os.WriteFile(s.snapshotPath(snap.AttemptID), data, 0o644); err != nil {
		s.logger.Warn("Failed to save snapshot", "attempt_id", snap.AttemptID, "error", err)
	}
}

func (s *fileStore) ClearAttempt(attemptID, examID string) {
	if err := os.Remove(s.snapshotPath(attemptID)); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("Failed to clear snapshot", "attempt_id", attemptID, "error", err)
	}
	if examID == "" {
		return
	}
	if err := os.Remove(s.lookupPath(examID)); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("Failed to clear attempt lookup", "exam_id", examID, "error", err)
	}
}

func (s *fileStore) LastAttemptID(examID string) string {
	data, err := os.ReadFile(s.lookupPath(examID))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (s *fileStore) RememberAttempt(examID, attemptID string) {
	if examID == "" || attemptID == "" {
		return
	}
	if err := os.WriteFile(s.lookupPath(examID), []byte(attemptID), 0o644); err != nil {
		s.logger.Warn("Failed to record attempt lookup",
			"exam_id", examID,
			"attempt_id", attemptID,
			"error", err)
	}
}

func (s *fileStore) snapshotPath(attemptID string) string {
	return filepath.Join(s.dir, "attempt_"+sanitize(attemptID)+".json")
}

func (s *fileStore) lookupPath(examID string) string {
	return filepath.Join(s.dir, "exam_"+sanitize(examID)+".ref")
}

// sanitize keeps IDs filesystem-safe.
func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}
