package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prepdesk/attempt-engine/internal/api"
	"github.com/prepdesk/attempt-engine/internal/events"
	"github.com/prepdesk/attempt-engine/internal/store"
)

var ErrSessionNotFound = errors.New("no session for attempt")

// Manager owns the live sessions, keyed by attempt id. Each attempt's
// ledger, timers and snapshot are isolated inside its own Session, so no
// state is shared between concurrent attempts.
type Manager struct {
	api              api.Client
	store            store.Store
	events           events.Publisher
	logger           *slog.Logger
	autosaveInterval time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(apiClient api.Client, st store.Store, publisher events.Publisher, logger *slog.Logger, autosaveInterval time.Duration) *Manager {
	return &Manager{
		api:              apiClient,
		store:            st,
		events:           publisher,
		logger:           logger,
		autosaveInterval: autosaveInterval,
		sessions:         make(map[string]*Session),
	}
}

// StartSession starts (or auto-resumes) an attempt for the exam. The server
// decides whether a fresh attempt opens or an in-progress one continues; a
// local snapshot matching the returned attempt id restores progress.
func (m *Manager) StartSession(ctx context.Context, examID string) (*Session, error) {
	// If this exam's attempt is already live in-process, hand it back
	// rather than racing a second session against the same attempt.
	if attemptID := m.store.LastAttemptID(examID); attemptID != "" {
		m.mu.Lock()
		if existing, ok := m.sessions[attemptID]; ok {
			m.mu.Unlock()
			return existing, nil
		}
		m.mu.Unlock()
	}

	session, err := NewSession(SessionConfig{
		API:              m.api,
		Store:            m.store,
		Events:           m.events,
		Logger:           m.logger,
		AutosaveInterval: m.autosaveInterval,
	})
	if err != nil {
		return nil, err
	}
	if err := session.Start(ctx, examID); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[session.AttemptID()] = session
	m.mu.Unlock()
	return session, nil
}

// Get returns the live session for an attempt id.
func (m *Manager) Get(attemptID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[attemptID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Release closes a session's tickers and forgets it. An in-flight submit
// keeps running; only the recurring timers stop.
func (m *Manager) Release(attemptID string) {
	m.mu.Lock()
	session, ok := m.sessions[attemptID]
	delete(m.sessions, attemptID)
	m.mu.Unlock()
	if ok {
		session.Close()
	}
}

// Shutdown closes every live session.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, session := range m.sessions {
		session.Close()
		delete(m.sessions, id)
	}
	return nil
}
