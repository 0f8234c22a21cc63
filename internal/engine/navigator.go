package engine

import (
	"github.com/prepdesk/attempt-engine/internal/models"
)

// Navigator converts the exam's section/question structure into
// section-relative addressing and enforces the navigation mode.
//
// Free mode: any global index is reachable at any time and IndicesForSubject
// supports "jump back to where I was in that subject". Linear mode: movement
// is confined to the running section, leaving a section goes through an
// explicit review phase, and designated section boundaries force a break.
type Navigator struct {
	sections []models.Section
	mode     models.NavigationMode

	section  int
	question int
	phase    models.SessionPhase

	// lastVisited maps subject tag -> last visited global index (free mode).
	lastVisited map[string]int
}

func NewNavigator(sections []models.Section, mode models.NavigationMode) *Navigator {
	return &Navigator{
		sections:    sections,
		mode:        mode,
		phase:       models.PhaseActive,
		lastVisited: make(map[string]int),
	}
}

// ===== POSITION QUERIES =====

func (n *Navigator) Position() (sectionIndex, questionIndex int) {
	return n.section, n.question
}

func (n *Navigator) Phase() models.SessionPhase { return n.phase }

func (n *Navigator) Mode() models.NavigationMode { return n.mode }

func (n *Navigator) CurrentSection() models.Section { return n.sections[n.section] }

func (n *Navigator) CurrentQuestion() models.Question {
	return n.sections[n.section].Questions[n.question]
}

// GlobalIndex flattens the current position into a single question index.
func (n *Navigator) GlobalIndex() int {
	idx := n.question
	for i := 0; i < n.section; i++ {
		idx += len(n.sections[i].Questions)
	}
	return idx
}

// IndicesForSubject returns the global indices of every question carrying
// the subject tag, in order.
func (n *Navigator) IndicesForSubject(subject string) []int {
	var out []int
	global := 0
	for _, sec := range n.sections {
		for _, q := range sec.Questions {
			if q.Subject == subject {
				out = append(out, global)
			}
			global++
		}
	}
	return out
}

// LastVisitedIndex returns the last visited global index within the subject,
// falling back to the subject's first question. -1 when the subject has no
// questions.
func (n *Navigator) LastVisitedIndex(subject string) int {
	if idx, ok := n.lastVisited[subject]; ok {
		return idx
	}
	indices := n.IndicesForSubject(subject)
	if len(indices) == 0 {
		return -1
	}
	return indices[0]
}

func (n *Navigator) totalQuestions() int {
	total := 0
	for _, sec := range n.sections {
		total += len(sec.Questions)
	}
	return total
}

func (n *Navigator) locate(globalIndex int) (sectionIndex, questionIndex int, ok bool) {
	if globalIndex < 0 {
		return 0, 0, false
	}
	for i, sec := range n.sections {
		if globalIndex < len(sec.Questions) {
			return i, globalIndex, true
		}
		globalIndex -= len(sec.Questions)
	}
	return 0, 0, false
}

// ===== MOVEMENT =====

// GoTo jumps to a global question index. Free mode always succeeds for a
// valid index. Linear mode only permits targets inside the current section,
// both while the section runs and from its review screen; a future section
// is rejected with no state change.
func (n *Navigator) GoTo(globalIndex int) error {
	if n.phase == models.PhaseCompleted {
		return ErrAttemptCompleted
	}
	sec, q, ok := n.locate(globalIndex)
	if !ok {
		return ErrIndexOutOfRange
	}

	if n.mode == models.NavigationLinear {
		if n.phase != models.PhaseActive && n.phase != models.PhaseReviewing {
			return ErrSectionLocked
		}
		if sec != n.section {
			return ErrSectionLocked
		}
		n.question = q
		if n.phase == models.PhaseReviewing {
			// Jumping back into questions from review resumes the section.
			n.phase = models.PhaseActive
		}
		return nil
	}

	n.section = sec
	n.question = q
	n.markVisited()
	return nil
}

// Next moves forward one question. Free mode crosses section boundaries;
// linear mode stops at the section's last question, where the caller must
// invoke FinishSection.
func (n *Navigator) Next() error {
	if n.phase == models.PhaseCompleted {
		return ErrAttemptCompleted
	}
	if n.phase != models.PhaseActive {
		return ErrSessionNotActive
	}

	if n.question+1 < len(n.sections[n.section].Questions) {
		n.question++
		n.markVisited()
		return nil
	}

	if n.mode == models.NavigationLinear {
		return ErrEndOfSection
	}
	if n.section+1 >= len(n.sections) {
		return ErrIndexOutOfRange
	}
	n.section++
	n.question = 0
	n.markVisited()
	return nil
}

// Previous moves back one question under the same rules as Next.
func (n *Navigator) Previous() error {
	if n.phase == models.PhaseCompleted {
		return ErrAttemptCompleted
	}
	if n.phase != models.PhaseActive {
		return ErrSessionNotActive
	}

	if n.question > 0 {
		n.question--
		n.markVisited()
		return nil
	}

	if n.mode == models.NavigationLinear {
		return ErrStartOfSection
	}
	if n.section == 0 {
		return ErrIndexOutOfRange
	}
	n.section--
	n.question = len(n.sections[n.section].Questions) - 1
	n.markVisited()
	return nil
}

// ===== SECTION FLOW (linear mode) =====

// FinishSection moves a running linear section to its review screen instead
// of silently advancing.
func (n *Navigator) FinishSection() error {
	if n.mode != models.NavigationLinear {
		return ErrNavigationRule
	}
	if n.phase != models.PhaseActive {
		return ErrSessionNotActive
	}
	n.phase = models.PhaseReviewing
	return nil
}

// AdvanceSection is the only way out of review: on to the next section, into
// a designated break before it, or to completion after the last section.
func (n *Navigator) AdvanceSection() (AdvanceOutcome, error) {
	if n.mode != models.NavigationLinear {
		return "", ErrNavigationRule
	}
	if n.phase != models.PhaseReviewing {
		return "", ErrNotReviewing
	}
	return n.leaveSection()
}

// ForceAdvance is the timer-expiry path: it leaves the running section
// without requiring review. Callers outside the expiry path use
// FinishSection/AdvanceSection.
func (n *Navigator) ForceAdvance() (AdvanceOutcome, error) {
	if n.mode != models.NavigationLinear {
		return "", ErrNavigationRule
	}
	if n.phase != models.PhaseActive && n.phase != models.PhaseReviewing {
		return "", ErrSessionNotActive
	}
	return n.leaveSection()
}

func (n *Navigator) leaveSection() (AdvanceOutcome, error) {
	if n.section+1 >= len(n.sections) {
		n.phase = models.PhaseCompleted
		return AdvancedToEnd, nil
	}

	n.section++
	n.question = 0
	if n.sections[n.section].BreakBefore {
		n.phase = models.PhaseOnBreak
		return AdvancedToBreak, nil
	}
	n.phase = models.PhaseActive
	return AdvancedToSection, nil
}

// ResumeFromBreak arms the pending section after a break. The UI may call it
// before the break timer runs out; break expiry is informational only.
func (n *Navigator) ResumeFromBreak() error {
	if n.phase != models.PhaseOnBreak {
		return ErrNotOnBreak
	}
	n.phase = models.PhaseActive
	return nil
}

func (n *Navigator) markVisited() {
	if n.mode != models.NavigationFree {
		return
	}
	n.lastVisited[n.CurrentQuestion().Subject] = n.GlobalIndex()
}

// ===== PERSISTENCE =====

func (n *Navigator) restore(sectionIndex, questionIndex int, phase models.SessionPhase, lastVisited map[string]int) {
	if sectionIndex >= 0 && sectionIndex < len(n.sections) {
		n.section = sectionIndex
		if questionIndex >= 0 && questionIndex < len(n.sections[sectionIndex].Questions) {
			n.question = questionIndex
		}
	}
	if phase != "" {
		n.phase = phase
	}
	if lastVisited != nil {
		n.lastVisited = lastVisited
	}
}

func (n *Navigator) lastVisitedSnapshot() map[string]int {
	out := make(map[string]int, len(n.lastVisited))
	for k, v := range n.lastVisited {
		out[k] = v
	}
	return out
}
