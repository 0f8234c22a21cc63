package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prepdesk/attempt-engine/internal/models"
)

// AnswerPayload is one ledger entry as transmitted to the server. Eliminations
// and highlights stay local.
type AnswerPayload struct {
	QuestionID string `json:"question_id"`
	Value      string `json:"value,omitempty"`
	Flagged    bool   `json:"flagged,omitempty"`
}

// StartResponse is the server's reply to starting (or resuming) an attempt.
type StartResponse struct {
	AttemptID            string            `json:"attempt_id"`
	Exam                 models.Exam       `json:"exam"`
	ServerElapsedSeconds int               `json:"server_elapsed_seconds"`
	ExistingAnswers      map[string]string `json:"existing_answers,omitempty"`
	AttemptsUsed         int               `json:"attempts_used"`
	MaxAttempts          int               `json:"max_attempts"`
}

// SubmitResult is the terminal outcome of an attempt. Released=false is a
// normal result: the server withholds scores until publication.
type SubmitResult struct {
	Released bool               `json:"released"`
	Scores   map[string]float64 `json:"scores,omitempty"`
}

// Client is the exam API contract the engine depends on. Routes and transport
// are the HTTP implementation's concern.
type Client interface {
	Start(ctx context.Context, examID string) (*StartResponse, error)
	Autosave(ctx context.Context, attemptID string, answers []AnswerPayload, timeSpentSeconds int) error
	Submit(ctx context.Context, attemptID string, answers []AnswerPayload) (*SubmitResult, error)
}

type httpClient struct {
	baseURL *url.URL
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// NewHTTPClient builds the production exam API client. The token is opaque
// pass-through; acquiring and refreshing it is out of scope here.
func NewHTTPClient(baseURL, token string, timeout time.Duration, logger *slog.Logger) (Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid exam api base url %q: %w", baseURL, err)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &httpClient{
		baseURL: u,
		token:   token,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}, nil
}

func (c *httpClient) Start(ctx context.Context, examID string) (*StartResponse, error) {
	var resp StartResponse
	path := fmt.Sprintf("/api/v1/exams/%s/attempts/start", url.PathEscape(examID))
	if err := c.post(ctx, "start", path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *httpClient) Autosave(ctx context.Context, attemptID string, answers []AnswerPayload, timeSpentSeconds int) error {
	body := struct {
		Answers          []AnswerPayload `json:"answers"`
		TimeSpentSeconds int             `json:"time_spent_seconds"`
	}{Answers: answers, TimeSpentSeconds: timeSpentSeconds}

	path := fmt.Sprintf("/api/v1/attempts/%s/autosave", url.PathEscape(attemptID))
	return c.post(ctx, "autosave", path, body, nil)
}

func (c *httpClient) Submit(ctx context.Context, attemptID string, answers []AnswerPayload) (*SubmitResult, error) {
	body := struct {
		Answers []AnswerPayload `json:"answers"`
	}{Answers: answers}

	var resp SubmitResult
	path := fmt.Sprintf("/api/v1/attempts/%s/submit", url.PathEscape(attemptID))
	if err := c.post(ctx, "submit", path, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *httpClient) post(ctx context.Context, op, path string, body, dest interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}

	u := c.baseURL.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), reader)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: KindNetwork, Op: op, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
		return &Error{Kind: KindInvalidSession, Op: op, StatusCode: res.StatusCode, Message: readServerMessage(res.Body)}
	}
	if res.StatusCode/100 != 2 {
		return &Error{Kind: KindServerRejected, Op: op, StatusCode: res.StatusCode, Message: readServerMessage(res.Body)}
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(dest); err != nil {
		return &Error{Kind: KindServerRejected, Op: op, StatusCode: res.StatusCode, Message: "unparseable response body", Err: err}
	}
	return nil
}

// readServerMessage pulls a human-readable message out of an error body.
func readServerMessage(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(b) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(b, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(b))
}
