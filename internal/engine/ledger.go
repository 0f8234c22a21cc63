package engine

import (
	"sort"
	"strings"

	"github.com/prepdesk/attempt-engine/internal/models"
)

// Ledger maps question id to everything the student has done to that
// question. Entries are created on first interaction and mutated in place;
// reads are always immediately consistent with the last mutation.
type Ledger struct {
	entries map[string]*models.LedgerEntry
}

func NewLedger() *Ledger {
	return &Ledger{entries: make(map[string]*models.LedgerEntry)}
}

func (l *Ledger) entry(questionID string) *models.LedgerEntry {
	e, ok := l.entries[questionID]
	if !ok {
		e = &models.LedgerEntry{}
		l.entries[questionID] = e
	}
	return e
}

// SetAnswer records the chosen choice label or free-text value. The literal
// text is preserved untrimmed; whitespace-only values simply count as
// unanswered.
func (l *Ledger) SetAnswer(questionID, value string) {
	l.entry(questionID).Value = value
}

func (l *Ledger) Answer(questionID string) string {
	if e, ok := l.entries[questionID]; ok {
		return e.Value
	}
	return ""
}

// IsAnswered treats empty and whitespace-only values as no answer.
func (l *Ledger) IsAnswered(questionID string) bool {
	e, ok := l.entries[questionID]
	return ok && strings.TrimSpace(e.Value) != ""
}

func (l *Ledger) ToggleFlag(questionID string) {
	e := l.entry(questionID)
	e.Flagged = !e.Flagged
}

func (l *Ledger) IsFlagged(questionID string) bool {
	e, ok := l.entries[questionID]
	return ok && e.Flagged
}

// ToggleElimination crosses out (or restores) a choice label. Eliminations
// are a student-side aid only and are never sent as the answer.
func (l *Ledger) ToggleElimination(questionID, choiceLabel string) {
	e := l.entry(questionID)
	if e.EliminatedChoices == nil {
		e.EliminatedChoices = make(map[string]bool)
	}
	if e.EliminatedChoices[choiceLabel] {
		delete(e.EliminatedChoices, choiceLabel)
	} else {
		e.EliminatedChoices[choiceLabel] = true
	}
}

func (l *Ledger) IsEliminated(questionID, choiceLabel string) bool {
	e, ok := l.entries[questionID]
	return ok && e.EliminatedChoices[choiceLabel]
}

func (l *Ledger) Eliminations(questionID string) []string {
	e, ok := l.entries[questionID]
	if !ok || len(e.EliminatedChoices) == 0 {
		return nil
	}
	out := make([]string, 0, len(e.EliminatedChoices))
	for label := range e.EliminatedChoices {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// SetHighlight stores serialized markup under an opaque target key. The
// engine persists it for resume and never interprets the content. An empty
// html removes the highlight.
func (l *Ledger) SetHighlight(questionID, target, html string) {
	e := l.entry(questionID)
	if html == "" {
		delete(e.Highlights, target)
		return
	}
	if e.Highlights == nil {
		e.Highlights = make(map[string]string)
	}
	e.Highlights[target] = html
}

func (l *Ledger) Highlight(questionID, target string) string {
	if e, ok := l.entries[questionID]; ok {
		return e.Highlights[target]
	}
	return ""
}

// AnsweredCount counts answered questions among the given section questions.
func (l *Ledger) AnsweredCount(questions []models.Question) int {
	n := 0
	for _, q := range questions {
		if l.IsAnswered(q.ID) {
			n++
		}
	}
	return n
}

// FlaggedCount counts marked-for-review questions among the given questions.
func (l *Ledger) FlaggedCount(questions []models.Question) int {
	n := 0
	for _, q := range questions {
		if l.IsFlagged(q.ID) {
			n++
		}
	}
	return n
}

// Snapshot deep-copies the ledger for persistence.
func (l *Ledger) Snapshot() map[string]*models.LedgerEntry {
	out := make(map[string]*models.LedgerEntry, len(l.entries))
	for id, e := range l.entries {
		copied := &models.LedgerEntry{
			Value:   e.Value,
			Flagged: e.Flagged,
		}
		if len(e.EliminatedChoices) > 0 {
			copied.EliminatedChoices = make(map[string]bool, len(e.EliminatedChoices))
			for k, v := range e.EliminatedChoices {
				copied.EliminatedChoices[k] = v
			}
		}
		if len(e.Highlights) > 0 {
			copied.Highlights = make(map[string]string, len(e.Highlights))
			for k, v := range e.Highlights {
				copied.Highlights[k] = v
			}
		}
		out[id] = copied
	}
	return out
}

// Restore replaces ledger contents from a persisted snapshot.
func (l *Ledger) Restore(entries map[string]*models.LedgerEntry) {
	l.entries = make(map[string]*models.LedgerEntry, len(entries))
	for id, e := range entries {
		if e == nil {
			continue
		}
		l.entries[id] = &models.LedgerEntry{
			Value:             e.Value,
			Flagged:           e.Flagged,
			EliminatedChoices: e.EliminatedChoices,
			Highlights:        e.Highlights,
		}
	}
}

// Clear drops all entries; called when the attempt completes.
func (l *Ledger) Clear() {
	l.entries = make(map[string]*models.LedgerEntry)
}
