package report

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/prepdesk/attempt-engine/internal/api"
	"github.com/prepdesk/attempt-engine/internal/models"
)

func reportFixtures() (*models.Exam, *models.Attempt, map[string]*models.LedgerEntry) {
	exam := &models.Exam{
		Title:          "Modular Practice Test",
		NavigationMode: models.NavigationLinear,
		Sections: []models.Section{
			{Subject: "verbal", Questions: []models.Question{
				{ID: "v1", Subject: "verbal", Choices: []string{"A", "B", "C", "D"}},
				{ID: "v2", Subject: "verbal", Choices: []string{"A", "B", "C", "D"}},
			}},
			{Subject: "math", Questions: []models.Question{
				{ID: "m1", Subject: "math"},
			}},
		},
	}
	attempt := &models.Attempt{
		ID:               "att-1",
		ExamID:           "exam-1",
		Status:           models.AttemptSubmitted,
		TimeSpentSeconds: 3200,
	}
	entries := map[string]*models.LedgerEntry{
		"v1": {Value: "B", Flagged: true},
		"v2": {Value: "   "}, // whitespace reads as unanswered
	}
	return exam, attempt, entries
}

func TestBuildScoreReport_ReleasedScores(t *testing.T) {
	exam, attempt, entries := reportFixtures()
	result := &api.SubmitResult{
		Released: true,
		Scores:   map[string]float64{"verbal": 710, "math": 680},
	}

	data, err := BuildScoreReport(exam, attempt, entries, result)
	if err != nil {
		t.Fatalf("BuildScoreReport: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("workbook does not open: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Summary")
	if err != nil {
		t.Fatalf("Summary sheet: %v", err)
	}
	if rows[0][0] != "Exam" || rows[0][1] != "Modular Practice Test" {
		t.Errorf("summary header row = %v", rows[0])
	}

	// Scores appear sorted by name after the Scores marker row.
	flat := map[string]string{}
	for _, row := range rows {
		if len(row) >= 2 {
			flat[row[0]] = row[1]
		}
	}
	if flat["math"] != "680" || flat["verbal"] != "710" {
		t.Errorf("released scores missing from summary: %v", flat)
	}

	answerRows, err := f.GetRows("Answers")
	if err != nil {
		t.Fatalf("Answers sheet: %v", err)
	}
	// Header plus one row per question across all sections.
	if len(answerRows) != 1+3 {
		t.Fatalf("answer rows = %d, want 4", len(answerRows))
	}
	if answerRows[1][3] != "B" || answerRows[1][4] != "TRUE" {
		t.Errorf("v1 row = %v", answerRows[1])
	}
	if answerRows[2][3] == "" || answerRows[2][3] == "   " {
		t.Errorf("whitespace answer should render as a placeholder, got %q", answerRows[2][3])
	}
	if answerRows[3][1] != "math" {
		t.Errorf("m1 row section = %v", answerRows[3])
	}
}

func TestBuildScoreReport_PendingRelease(t *testing.T) {
	exam, attempt, entries := reportFixtures()

	data, err := BuildScoreReport(exam, attempt, entries, &api.SubmitResult{Released: false})
	if err != nil {
		t.Fatalf("BuildScoreReport: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := f.GetRows("Summary")
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, row := range rows {
		if len(row) >= 2 && row[0] == "Scores" && row[1] == "pending release" {
			found = true
		}
	}
	if !found {
		t.Errorf("pending release note missing: %v", rows)
	}
}

func TestBuildScoreReport_RequiresExamAndAttempt(t *testing.T) {
	if _, err := BuildScoreReport(nil, nil, nil, nil); err == nil {
		t.Error("expected an error for missing inputs")
	}
}
