package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malekgatoufi/mistralmeter/internal/models"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadCSV(t *testing.T) {
	tests := []struct {
		name     string
		csv      string
		wantRows int
		wantCols int
		wantErr  string
	}{
		{
			name:     "happy path 3 rows 3 columns",
			csv:      "prompt,expected_style,category\nExplain DNS,educational,networking\nWhat is TCP,technical,networking\nName a sorting algorithm,concise,cs\n",
			wantRows: 3,
			wantCols: 3,
		},
		{
			name:     "single row",
			csv:      "prompt\nDo something\n",
			wantRows: 1,
			wantCols: 1,
		},
		{
			name:     "empty CSV headers only",
			csv:      "prompt,expected_style\n",
			wantRows: 0,
			wantCols: 0,
		},
		{
			name:    "mismatched column count",
			csv:     "prompt,category\nok,fine\nbad\n",
			wantErr: "wrong number of fields",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "test.csv", tt.csv)

			rows, err := LoadCSV(path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Len(t, rows, tt.wantRows)
			if tt.wantRows > 0 {
				assert.Len(t, rows[0], tt.wantCols)
			}
		})
	}
}

func TestLoadCSV_MissingFile(t *testing.T) {
	_, err := LoadCSV("/nonexistent/path/data.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv: open")
}

func TestLoadCSVDataset(t *testing.T) {
	path := writeFile(t, t.TempDir(), "prompts.csv",
		"prompt,expected_style,reference_answer,category\n"+
			"What is the capital of France?,concise,Paris,geography\n"+
			"Explain recursion,educational,,cs\n")

	d, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prompts", d.Name)
	require.Len(t, d.Prompts, 2)
	assert.Equal(t, models.EvalPrompt{
		Text:            "What is the capital of France?",
		ExpectedStyle:   models.StyleConcise,
		ReferenceAnswer: "Paris",
		Category:        "geography",
	}, d.Prompts[0])
	assert.Equal(t, models.StyleEducational, d.Prompts[1].ExpectedStyle)
}

func TestLoadCSVDatasetErrors(t *testing.T) {
	tests := []struct {
		name    string
		csv     string
		wantErr string
	}{
		{
			name:    "missing prompt column",
			csv:     "question,category\nWhat is DNS,networking\n",
			wantErr: `no "prompt" column`,
		},
		{
			name:    "empty prompt",
			csv:     "prompt,category\n,networking\n",
			wantErr: "empty prompt",
		},
		{
			name:    "unknown style",
			csv:     "prompt,expected_style\nWhat is DNS,sarcastic\n",
			wantErr: "unknown expected_style",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "bad.csv", tt.csv)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
