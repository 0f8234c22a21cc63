package models

import "time"

type AttemptStatus string

const (
	AttemptInProgress     AttemptStatus = "in_progress"
	AttemptAwaitingSubmit AttemptStatus = "awaiting_submit"
	AttemptSubmitted      AttemptStatus = "submitted"
)

// NavigationMode selects which set of navigation rules an exam runs under.
type NavigationMode string

const (
	// NavigationFree: any question in any section reachable at any time, one
	// global timer shared across all sections (full mock exam).
	NavigationFree NavigationMode = "free"
	// NavigationLinear: one timer per section, forced forward progression with
	// a review screen before each section advance and mandatory breaks between
	// designated sections (modular practice test).
	NavigationLinear NavigationMode = "linear-per-section"
)

// Question content (stem, passage, choice text) is a display concern; the
// engine only needs identity, subject and whether the question has choices.
type Question struct {
	ID      string   `json:"id"`
	Subject string   `json:"subject"`
	Choices []string `json:"choices,omitempty"`
}

// OpenEnded reports whether the question takes free text instead of a choice.
func (q Question) OpenEnded() bool { return len(q.Choices) == 0 }

// Section is one timed block of questions. Question order is fixed once
// fetched; the server may pre-shuffle.
type Section struct {
	Subject          string     `json:"subject"`
	TimeLimitSeconds int        `json:"time_limit_seconds"`
	BreakBefore      bool       `json:"break_before"`
	Questions        []Question `json:"questions"`
}

// Exam is the definition fetched from the server at attempt start.
type Exam struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	NavigationMode NavigationMode `json:"navigation_mode"`
	// TimeLimitSeconds is the single global limit in free mode. Ignored in
	// linear mode, where each section carries its own limit.
	TimeLimitSeconds  int       `json:"time_limit_seconds"`
	BreakLimitSeconds int       `json:"break_limit_seconds"`
	Sections          []Section `json:"sections"`
}

// TotalQuestions counts questions across all sections.
func (e *Exam) TotalQuestions() int {
	n := 0
	for _, s := range e.Sections {
		n += len(s.Questions)
	}
	return n
}

// Attempt is one student's pass through one exam definition. The server
// assigns the ID at start; it keys all local persistence.
type Attempt struct {
	ID                   string        `json:"id"`
	ExamID               string        `json:"exam_id"`
	Status               AttemptStatus `json:"status"`
	CurrentSectionIndex  int           `json:"current_section_index"`
	CurrentQuestionIndex int           `json:"current_question_index"`
	TimeSpentSeconds     int           `json:"time_spent_seconds"`
	AttemptsUsed         int           `json:"attempts_used"`
	MaxAttempts          int           `json:"max_attempts"`
	CreatedAt            time.Time     `json:"created_at"`
}
