package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prepdesk/attempt-engine/internal/api"
	"github.com/prepdesk/attempt-engine/internal/store"
)

// SubmissionCoordinator owns the attempt's server writes: the recurring
// best-effort autosave and the exactly-once terminal submit.
type SubmissionCoordinator struct {
	api       api.Client
	store     store.Store
	logger    *slog.Logger
	attemptID string
	examID    string

	mu        sync.Mutex
	attempted bool
	inFlight  bool
	succeeded bool
}

func NewSubmissionCoordinator(apiClient api.Client, st store.Store, logger *slog.Logger, attemptID, examID string) *SubmissionCoordinator {
	return &SubmissionCoordinator{
		api:       apiClient,
		store:     st,
		logger:    logger,
		attemptID: attemptID,
		examID:    examID,
	}
}

// Autosave pushes the full ledger and accumulated time to the server. It is
// safe to call redundantly; a failure is logged and silently dropped, to be
// retried on the next interval. It must never interrupt test-taking.
func (c *SubmissionCoordinator) Autosave(ctx context.Context, answers []api.AnswerPayload, timeSpentSeconds int) {
	if c.Submitted() {
		return
	}
	if err := c.api.Autosave(ctx, c.attemptID, answers, timeSpentSeconds); err != nil {
		c.logger.Debug("Autosave failed, will retry on next interval",
			"attempt_id", c.attemptID,
			"error", err)
	}
}

// Submit performs the terminal submission exactly once. The idempotency
// latch is checked and set before any network call, so a concurrent second
// caller never reaches the server. On failure the latch stays set: the
// engine never auto-retries a failed terminal submit; Retry exists for a
// deliberate manual retry against the same attempt.
func (c *SubmissionCoordinator) Submit(ctx context.Context, answers []api.AnswerPayload, timeSpentSeconds int) (*api.SubmitResult, error) {
	c.mu.Lock()
	if c.attempted {
		c.mu.Unlock()
		if c.succeeded {
			return nil, ErrAlreadySubmitted
		}
		return nil, ErrSubmitInFlight
	}
	c.attempted = true
	c.inFlight = true
	c.mu.Unlock()

	return c.send(ctx, answers, timeSpentSeconds)
}

// Retry re-runs a previously failed submit with the same attempt id. It is
// rejected while no failed submit exists or one is still in flight.
func (c *SubmissionCoordinator) Retry(ctx context.Context, answers []api.AnswerPayload, timeSpentSeconds int) (*api.SubmitResult, error) {
	c.mu.Lock()
	if c.succeeded {
		c.mu.Unlock()
		return nil, ErrAlreadySubmitted
	}
	if !c.attempted || c.inFlight {
		c.mu.Unlock()
		if c.inFlight {
			return nil, ErrSubmitInFlight
		}
		return nil, ErrNoFailedSubmit
	}
	c.inFlight = true
	c.mu.Unlock()

	return c.send(ctx, answers, timeSpentSeconds)
}

func (c *SubmissionCoordinator) send(ctx context.Context, answers []api.AnswerPayload, timeSpentSeconds int) (*api.SubmitResult, error) {
	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	// One last flush so the server holds the freshest ledger even if the
	// submit call itself fails.
	c.Autosave(ctx, answers, timeSpentSeconds)

	result, err := c.api.Submit(ctx, c.attemptID, answers)
	if err != nil {
		c.logger.Error("Terminal submit failed",
			"attempt_id", c.attemptID,
			"error", err)
		return nil, err
	}

	c.mu.Lock()
	c.succeeded = true
	c.mu.Unlock()

	// Local state is only dropped once the server owns the attempt.
	c.store.ClearAttempt(c.attemptID, c.examID)

	c.logger.Info("Attempt submitted",
		"attempt_id", c.attemptID,
		"released", result.Released)
	return result, nil
}

// Submitted reports whether a submit has succeeded.
func (c *SubmissionCoordinator) Submitted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.succeeded
}

// Attempted reports whether a submit has been tried, successful or not.
func (c *SubmissionCoordinator) Attempted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempted
}
