package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/prepdesk/attempt-engine/internal/api"
	"github.com/prepdesk/attempt-engine/internal/models"
)

// BuildScoreReport renders a submitted attempt into an xlsx workbook: a
// summary sheet with released scores (or a "pending release" note) and an
// answer sheet listing every question's recorded response. Returns the
// serialized workbook bytes.
func BuildScoreReport(exam *models.Exam, attempt *models.Attempt, entries map[string]*models.LedgerEntry, result *api.SubmitResult) ([]byte, error) {
	if exam == nil || attempt == nil {
		return nil, fmt.Errorf("score report requires exam and attempt")
	}

	f := excelize.NewFile()
	defer f.Close()

	summary := "Summary"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return nil, fmt.Errorf("failed to name summary sheet: %w", err)
	}

	rows := [][]interface{}{
		{"Exam", exam.Title},
		{"Attempt ID", attempt.ID},
		{"Status", string(attempt.Status)},
		{"Time Spent (s)", attempt.TimeSpentSeconds},
	}
	if result != nil && result.Released {
		rows = append(rows, []interface{}{"Scores", ""})
		for _, name := range sortedScoreNames(result.Scores) {
			rows = append(rows, []interface{}{name, result.Scores[name]})
		}
	} else {
		rows = append(rows, []interface{}{"Scores", "pending release"})
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(summary, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write summary row: %w", err)
		}
	}

	answers := "Answers"
	if _, err := f.NewSheet(answers); err != nil {
		return nil, fmt.Errorf("failed to create answers sheet: %w", err)
	}
	header := []interface{}{"#", "Section", "Question", "Answer", "Flagged"}
	if err := f.SetSheetRow(answers, "A1", &header); err != nil {
		return nil, err
	}

	rowIdx := 2
	num := 1
	for _, sec := range exam.Sections {
		for _, q := range sec.Questions {
			value, flagged := "", false
			if e, ok := entries[q.ID]; ok && e != nil {
				value = e.Value
				flagged = e.Flagged
			}
			if strings.TrimSpace(value) == "" {
				value = "—"
			}
			row := []interface{}{num, sec.Subject, q.ID, value, flagged}
			cell, err := excelize.CoordinatesToCellName(1, rowIdx)
			if err != nil {
				return nil, err
			}
			if err := f.SetSheetRow(answers, cell, &row); err != nil {
				return nil, fmt.Errorf("failed to write answer row: %w", err)
			}
			rowIdx++
			num++
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize report: %w", err)
	}
	return buf.Bytes(), nil
}

func sortedScoreNames(scores map[string]float64) []string {
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
