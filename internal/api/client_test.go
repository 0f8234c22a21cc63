package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prepdesk/attempt-engine/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.Handler) (Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewHTTPClient(srv.URL, "test-token", 2*time.Second, testLogger())
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	return client, srv
}

func TestClient_Start(t *testing.T) {
	var gotPath, gotAuth string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(StartResponse{
			AttemptID:            "att-9",
			Exam:                 models.Exam{Title: "Mock", NavigationMode: models.NavigationFree},
			ServerElapsedSeconds: 120,
			ExistingAnswers:      map[string]string{"q1": "C"},
			AttemptsUsed:         2,
			MaxAttempts:          3,
		})
	}))

	resp, err := client.Start(context.Background(), "exam-7")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if gotPath != "/api/v1/exams/exam-7/attempts/start" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if resp.AttemptID != "att-9" || resp.ServerElapsedSeconds != 120 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.ExistingAnswers["q1"] != "C" {
		t.Errorf("existing answers lost: %+v", resp.ExistingAnswers)
	}
}

func TestClient_AutosaveBody(t *testing.T) {
	var body struct {
		Answers          []AnswerPayload `json:"answers"`
		TimeSpentSeconds int             `json:"time_spent_seconds"`
	}
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/attempts/att-9/autosave" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("bad body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	answers := []AnswerPayload{{QuestionID: "q1", Value: "B", Flagged: true}}
	if err := client.Autosave(context.Background(), "att-9", answers, 300); err != nil {
		t.Fatalf("Autosave: %v", err)
	}
	if body.TimeSpentSeconds != 300 || len(body.Answers) != 1 || body.Answers[0].QuestionID != "q1" {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestClient_SubmitUnreleasedResult(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(SubmitResult{Released: false})
	}))

	result, err := client.Submit(context.Background(), "att-9", nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	// Withheld scores are a normal outcome, not an error.
	if result.Released || result.Scores != nil {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
		kind   ErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, `{"message":"token expired"}`, IsInvalidSession, KindInvalidSession},
		{"forbidden", http.StatusForbidden, `{"error":"not yours"}`, IsInvalidSession, KindInvalidSession},
		{"conflict", http.StatusConflict, `{"message":"attempt limit reached"}`, IsServerRejected, KindServerRejected},
		{"server error", http.StatusInternalServerError, "boom", IsServerRejected, KindServerRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))

			_, err := client.Start(context.Background(), "exam-1")
			if err == nil {
				t.Fatal("expected error")
			}
			if !tt.check(err) {
				t.Errorf("classification helper rejected %v", err)
			}
			var apiErr *Error
			if !asAPIError(err, &apiErr) {
				t.Fatalf("error is not *Error: %v", err)
			}
			if apiErr.Kind != tt.kind {
				t.Errorf("kind = %q, want %q", apiErr.Kind, tt.kind)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", apiErr.StatusCode, tt.status)
			}
		})
	}
}

func TestClient_ServerMessageSurfaces(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"message":"attempt already submitted"}`)
	}))

	_, err := client.Submit(context.Background(), "att-9", nil)
	var apiErr *Error
	if !asAPIError(err, &apiErr) {
		t.Fatalf("error is not *Error: %v", err)
	}
	if apiErr.Message != "attempt already submitted" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestClient_UnreachableServerIsNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // now nothing listens there

	client, err := NewHTTPClient(srv.URL, "", time.Second, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	_, err = client.Start(context.Background(), "exam-1")
	if !IsNetworkFailure(err) {
		t.Errorf("expected network failure, got %v", err)
	}
}

func TestClient_GarbageResponseBody(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>proxy error</html>")
	}))

	_, err := client.Start(context.Background(), "exam-1")
	if !IsServerRejected(err) {
		t.Errorf("unparseable 2xx body should classify as server rejection, got %v", err)
	}
}

func asAPIError(err error, target **Error) bool {
	return errors.As(err, target)
}
