package engine

import (
	"reflect"
	"testing"

	"github.com/prepdesk/attempt-engine/internal/models"
)

func TestLedger_WhitespaceAnswersCountAsUnanswered(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		answered bool
	}{
		{"choice label", "B", true},
		{"free text", " 42 ", true},
		{"empty", "", false},
		{"spaces only", "   ", false},
		{"tabs and newlines", "\t\n ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLedger()
			l.SetAnswer("q1", tt.value)
			if got := l.IsAnswered("q1"); got != tt.answered {
				t.Errorf("IsAnswered after SetAnswer(%q) = %v, want %v", tt.value, got, tt.answered)
			}
			// The literal text is preserved either way.
			if got := l.Answer("q1"); got != tt.value {
				t.Errorf("Answer = %q, want the literal %q", got, tt.value)
			}
		})
	}
}

func TestLedger_ToggleFlag(t *testing.T) {
	l := NewLedger()

	if l.IsFlagged("q1") {
		t.Error("fresh question should not be flagged")
	}
	l.ToggleFlag("q1")
	if !l.IsFlagged("q1") {
		t.Error("expected flag set after first toggle")
	}
	l.ToggleFlag("q1")
	if l.IsFlagged("q1") {
		t.Error("expected flag cleared after second toggle")
	}
}

func TestLedger_FlagIndependentOfAnswer(t *testing.T) {
	l := NewLedger()
	l.ToggleFlag("q1")
	l.SetAnswer("q1", "C")
	l.SetAnswer("q1", "")

	if !l.IsFlagged("q1") {
		t.Error("clearing the answer must not clear the flag")
	}
}

func TestLedger_ToggleElimination(t *testing.T) {
	l := NewLedger()

	l.ToggleElimination("q1", "A")
	l.ToggleElimination("q1", "C")
	if got := l.Eliminations("q1"); !reflect.DeepEqual(got, []string{"A", "C"}) {
		t.Errorf("Eliminations = %v, want [A C]", got)
	}

	l.ToggleElimination("q1", "A")
	if l.IsEliminated("q1", "A") {
		t.Error("second toggle should restore the choice")
	}
	if !l.IsEliminated("q1", "C") {
		t.Error("other eliminations must survive")
	}
}

func TestLedger_EliminationIndependentOfAnswer(t *testing.T) {
	l := NewLedger()
	l.ToggleElimination("q1", "B")
	// Choosing the crossed-out label anyway is allowed.
	l.SetAnswer("q1", "B")

	if !l.IsEliminated("q1", "B") {
		t.Error("answering must not clear the elimination")
	}
	if !l.IsAnswered("q1") {
		t.Error("eliminated choice can still be the answer")
	}
}

func TestLedger_Highlights(t *testing.T) {
	l := NewLedger()

	l.SetHighlight("q1", "passage", "<mark>kept</mark>")
	if got := l.Highlight("q1", "passage"); got != "<mark>kept</mark>" {
		t.Errorf("Highlight = %q", got)
	}

	l.SetHighlight("q1", "passage", "<mark>replaced</mark>")
	if got := l.Highlight("q1", "passage"); got != "<mark>replaced</mark>" {
		t.Errorf("expected replacement, got %q", got)
	}

	l.SetHighlight("q1", "passage", "")
	if got := l.Highlight("q1", "passage"); got != "" {
		t.Errorf("empty html should remove the highlight, got %q", got)
	}
}

func TestLedger_Counts(t *testing.T) {
	questions := []models.Question{
		{ID: "q1", Subject: "math"},
		{ID: "q2", Subject: "math"},
		{ID: "q3", Subject: "math"},
	}

	l := NewLedger()
	l.SetAnswer("q1", "A")
	l.SetAnswer("q2", "  ") // unanswered
	l.ToggleFlag("q2")
	l.ToggleFlag("q3")

	if got := l.AnsweredCount(questions); got != 1 {
		t.Errorf("AnsweredCount = %d, want 1", got)
	}
	if got := l.FlaggedCount(questions); got != 2 {
		t.Errorf("FlaggedCount = %d, want 2", got)
	}
}

func TestLedger_SnapshotRoundTrip(t *testing.T) {
	l := NewLedger()
	l.SetAnswer("q1", "B")
	l.ToggleFlag("q1")
	l.ToggleElimination("q1", "D")
	l.SetHighlight("q2", "stem", "<mark>hi</mark>")

	snap := l.Snapshot()

	// Mutating the original must not leak into the snapshot.
	l.SetAnswer("q1", "C")
	l.ToggleElimination("q1", "A")
	if snap["q1"].Value != "B" {
		t.Errorf("snapshot value mutated: %q", snap["q1"].Value)
	}
	if snap["q1"].EliminatedChoices["A"] {
		t.Error("snapshot eliminations mutated")
	}

	restored := NewLedger()
	restored.Restore(snap)
	if restored.Answer("q1") != "B" || !restored.IsFlagged("q1") {
		t.Error("restored ledger lost answer or flag")
	}
	if !restored.IsEliminated("q1", "D") {
		t.Error("restored ledger lost elimination")
	}
	if restored.Highlight("q2", "stem") != "<mark>hi</mark>" {
		t.Error("restored ledger lost highlight")
	}
}
