package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/prepdesk/attempt-engine/internal/api"
	"github.com/prepdesk/attempt-engine/internal/events"
	"github.com/prepdesk/attempt-engine/internal/store"
)

func TestManager_StartSessionReusesLiveAttempt(t *testing.T) {
	fake := &fakeExamAPI{startResp: &api.StartResponse{AttemptID: "att-1", Exam: freeModeExam()}}
	m := NewManager(fake, store.NewMemoryStore(), events.NopPublisher{}, testLogger(), 0)
	defer m.Shutdown(context.Background())

	first, err := m.StartSession(context.Background(), "exam-1")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	second, err := m.StartSession(context.Background(), "exam-1")
	if err != nil {
		t.Fatalf("second StartSession: %v", err)
	}
	if first != second {
		t.Error("revisiting the same exam should hand back the live session")
	}
}

func TestManager_GetAndRelease(t *testing.T) {
	fake := &fakeExamAPI{startResp: &api.StartResponse{AttemptID: "att-1", Exam: freeModeExam()}}
	m := NewManager(fake, store.NewMemoryStore(), events.NopPublisher{}, testLogger(), 0)
	defer m.Shutdown(context.Background())

	if _, err := m.Get("att-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get before start = %v, want ErrSessionNotFound", err)
	}

	session, err := m.StartSession(context.Background(), "exam-1")
	if err != nil {
		t.Fatal(err)
	}
	got, err := m.Get(session.AttemptID())
	if err != nil || got != session {
		t.Errorf("Get = (%v, %v), want the started session", got, err)
	}

	m.Release(session.AttemptID())
	if _, err := m.Get(session.AttemptID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get after release = %v, want ErrSessionNotFound", err)
	}
}

func TestManager_StartFailurePropagates(t *testing.T) {
	fake := &fakeExamAPI{startErr: &api.Error{Kind: api.KindNetwork, Op: "start"}}
	m := NewManager(fake, store.NewMemoryStore(), events.NopPublisher{}, testLogger(), 0)

	if _, err := m.StartSession(context.Background(), "exam-1"); !api.IsNetworkFailure(err) {
		t.Errorf("expected the network failure to surface, got %v", err)
	}
	if _, err := m.Get("att-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Error("failed start must not register a session")
	}
}
