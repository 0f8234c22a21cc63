package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/prepdesk/attempt-engine/internal/api"
	"github.com/prepdesk/attempt-engine/internal/engine"
	"github.com/prepdesk/attempt-engine/internal/events"
	"github.com/prepdesk/attempt-engine/internal/models"
	"github.com/prepdesk/attempt-engine/internal/store"
	"github.com/prepdesk/attempt-engine/internal/validator"
)

type stubExamAPI struct {
	startResp  *api.StartResponse
	submitResp *api.SubmitResult
}

func (s *stubExamAPI) Start(ctx context.Context, examID string) (*api.StartResponse, error) {
	resp := *s.startResp
	return &resp, nil
}

func (s *stubExamAPI) Autosave(ctx context.Context, attemptID string, answers []api.AnswerPayload, timeSpentSeconds int) error {
	return nil
}

func (s *stubExamAPI) Submit(ctx context.Context, attemptID string, answers []api.AnswerPayload) (*api.SubmitResult, error) {
	if s.submitResp == nil {
		return &api.SubmitResult{}, nil
	}
	resp := *s.submitResp
	return &resp, nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *engine.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	stub := &stubExamAPI{
		startResp: &api.StartResponse{
			AttemptID: "att-1",
			Exam: models.Exam{
				Title:            "Full Mock Exam",
				NavigationMode:   models.NavigationFree,
				TimeLimitSeconds: 3600,
				Sections: []models.Section{
					{Subject: "verbal", Questions: []models.Question{
						{ID: "v1", Subject: "verbal", Choices: []string{"A", "B", "C", "D"}},
						{ID: "v2", Subject: "verbal", Choices: []string{"A", "B", "C", "D"}},
					}},
				},
			},
		},
		submitResp: &api.SubmitResult{Released: false},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := engine.NewManager(stub, store.NewMemoryStore(), events.NopPublisher{}, logger, 0)
	t.Cleanup(func() { manager.Shutdown(context.Background()) })

	router := gin.New()
	NewHandlerManager(manager, validator.New(), logger).SetupRoutes(router)
	return router, manager
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var parsed map[string]interface{}
	if w.Body.Len() > 0 && strings.Contains(w.Header().Get("Content-Type"), "json") {
		if err := json.Unmarshal(w.Body.Bytes(), &parsed); err != nil {
			t.Fatalf("unparseable response %q: %v", w.Body.String(), err)
		}
	}
	return w, parsed
}

func TestSessionHandler_AttemptLifecycle(t *testing.T) {
	router, _ := newTestRouter(t)

	w, view := doJSON(t, router, http.MethodPost, "/api/v1/attempts/start", `{"exam_id":"exam-1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("start = %d: %s", w.Code, w.Body.String())
	}
	if view["attempt_id"] != "att-1" || view["state"] != "active" {
		t.Fatalf("unexpected view: %v", view)
	}

	w, view = doJSON(t, router, http.MethodPost, "/api/v1/attempts/att-1/answers", `{"question_id":"v1","value":"B"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("answer = %d: %s", w.Code, w.Body.String())
	}
	sections := view["sections"].([]interface{})
	first := sections[0].(map[string]interface{})
	if first["answered_count"].(float64) != 1 {
		t.Errorf("answered count = %v, want 1", first["answered_count"])
	}

	w, _ = doJSON(t, router, http.MethodPost, "/api/v1/attempts/att-1/next", "")
	if w.Code != http.StatusOK {
		t.Fatalf("next = %d: %s", w.Code, w.Body.String())
	}

	w, result := doJSON(t, router, http.MethodPost, "/api/v1/attempts/att-1/submit", "")
	if w.Code != http.StatusOK {
		t.Fatalf("submit = %d: %s", w.Code, w.Body.String())
	}
	if released, ok := result["released"].(bool); !ok || released {
		t.Errorf("expected unreleased result, got %v", result)
	}

	// Exactly-once: a second submit conflicts.
	w, _ = doJSON(t, router, http.MethodPost, "/api/v1/attempts/att-1/submit", "")
	if w.Code != http.StatusConflict {
		t.Errorf("second submit = %d, want 409", w.Code)
	}
}

func TestSessionHandler_ValidationAndLookupErrors(t *testing.T) {
	router, _ := newTestRouter(t)

	// Missing exam_id fails validation.
	w, _ := doJSON(t, router, http.MethodPost, "/api/v1/attempts/start", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("start without exam_id = %d, want 400", w.Code)
	}

	// Unknown attempt id.
	w, _ = doJSON(t, router, http.MethodGet, "/api/v1/attempts/nope", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown attempt = %d, want 404", w.Code)
	}

	// Unknown question id inside a live attempt.
	w, _ = doJSON(t, router, http.MethodPost, "/api/v1/attempts/start", `{"exam_id":"exam-1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("start = %d: %s", w.Code, w.Body.String())
	}
	w, _ = doJSON(t, router, http.MethodPost, "/api/v1/attempts/att-1/answers", `{"question_id":"zz","value":"A"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown question = %d, want 404", w.Code)
	}

	// Flag without a question id fails validation.
	w, _ = doJSON(t, router, http.MethodPost, "/api/v1/attempts/att-1/flag", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("flag without question_id = %d, want 400", w.Code)
	}

	// Negative jump target fails validation.
	w, _ = doJSON(t, router, http.MethodPost, "/api/v1/attempts/att-1/goto", `{"global_index":-1}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("negative goto index = %d, want 400", w.Code)
	}
}

func TestSessionHandler_ReportForSubmittedAttempt(t *testing.T) {
	router, _ := newTestRouter(t)

	doJSON(t, router, http.MethodPost, "/api/v1/attempts/start", `{"exam_id":"exam-1"}`)
	doJSON(t, router, http.MethodPost, "/api/v1/attempts/att-1/answers", `{"question_id":"v1","value":"C"}`)
	doJSON(t, router, http.MethodPost, "/api/v1/attempts/att-1/submit", "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/attempts/att-1/report", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("report = %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Disposition"); !strings.Contains(got, "score-report.xlsx") {
		t.Errorf("content disposition = %q", got)
	}
	// xlsx is a zip container.
	if body := w.Body.Bytes(); len(body) < 4 || body[0] != 'P' || body[1] != 'K' {
		t.Error("report body is not an xlsx archive")
	}
}

func TestSessionHandler_ReleaseSession(t *testing.T) {
	router, manager := newTestRouter(t)

	doJSON(t, router, http.MethodPost, "/api/v1/attempts/start", `{"exam_id":"exam-1"}`)

	w, _ := doJSON(t, router, http.MethodDelete, "/api/v1/attempts/att-1", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("release = %d", w.Code)
	}
	if _, err := manager.Get("att-1"); err == nil {
		t.Error("session should be forgotten after release")
	}
}
