package store

import (
	"sync"

	"github.com/prepdesk/attempt-engine/internal/models"
)

// memoryStore is the non-durable fallback backend. It also serves tests.
type memoryStore struct {
	mu        sync.Mutex
	snapshots map[string][]byte
	lookups   map[string]string
}

func NewMemoryStore() Store {
	return &memoryStore{
		snapshots: make(map[string][]byte),
		lookups:   make(map[string]string),
	}
}

func (s *memoryStore) LoadSnapshot(attemptID string) *models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.snapshots[attemptID]
	if !ok {
		return nil
	}
	snap, err := unmarshalSnapshot(data)
	if err != nil {
		delete(s.snapshots, attemptID)
		return nil
	}
	return snap
}

func (s *memoryStore) SaveSnapshot(snap *models.Snapshot) {
	if snap == nil || snap.AttemptID == "" {
		return
	}
	data, err := marshalSnapshot(snap)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.AttemptID] = data
}

func (s *memoryStore) ClearAttempt(attemptID, examID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, attemptID)
	delete(s.lookups, examID)
}

func (s *memoryStore) LastAttemptID(examID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookups[examID]
}

func (s *memoryStore) RememberAttempt(examID, attemptID string) {
	if examID == "" || attemptID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups[examID] = attemptID
}
