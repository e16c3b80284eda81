package dataset

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/malekgatoufi/mistralmeter/internal/models"
)

// Row represents a single CSV row with column name to value mapping.
type Row map[string]string

// LoadCSV reads a CSV file and returns rows as maps of column to value.
// The first row is treated as headers (column names).
func LoadCSV(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: parse %s: %w", path, err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("csv: %s is empty (no header row)", path)
	}

	headers := records[0]
	rows := make([]Row, 0, len(records)-1)

	for i, record := range records[1:] {
		if len(record) != len(headers) {
			return nil, fmt.Errorf("csv: row %d has %d columns, expected %d", i+2, len(record), len(headers))
		}
		row := make(Row, len(headers))
		for j, h := range headers {
			row[h] = record[j]
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// promptsFromCSV maps CSV rows onto evaluation prompts. The "prompt" column
// is required; "expected_style", "reference_answer", and "category" are
// optional.
func promptsFromCSV(path string, rows []Row) ([]models.EvalPrompt, error) {
	prompts := make([]models.EvalPrompt, 0, len(rows))
	for i, row := range rows {
		text, ok := row["prompt"]
		if !ok {
			return nil, fmt.Errorf("csv: %s has no %q column", path, "prompt")
		}
		if text == "" {
			return nil, fmt.Errorf("csv: row %d of %s has an empty prompt", i+2, path)
		}

		style := models.ExpectedStyle(row["expected_style"])
		if !style.Valid() {
			return nil, fmt.Errorf("csv: row %d of %s has unknown expected_style %q", i+2, path, row["expected_style"])
		}

		prompts = append(prompts, models.EvalPrompt{
			Text:            text,
			ExpectedStyle:   style,
			ReferenceAnswer: row["reference_answer"],
			Category:        row["category"],
		})
	}
	return prompts, nil
}
