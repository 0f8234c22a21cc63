package events

import "time"

// Topics for attempt lifecycle events.
const (
	TopicAttemptStarted   = "attempt.started"
	TopicAttemptResumed   = "attempt.resumed"
	TopicSectionAdvanced  = "attempt.section_advanced"
	TopicBreakStarted     = "attempt.break_started"
	TopicAttemptExpired   = "attempt.expired"
	TopicAttemptSubmitted = "attempt.submitted"
)

// AttemptEvent is the payload for every lifecycle topic.
type AttemptEvent struct {
	AttemptID    string    `json:"attempt_id"`
	ExamID       string    `json:"exam_id"`
	SectionIndex int       `json:"section_index"`
	TimeSpent    int       `json:"time_spent_seconds"`
	Released     *bool     `json:"released,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}
