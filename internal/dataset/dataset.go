// Package dataset loads evaluation prompt sets from JSON or CSV files and
// ships a small built-in sample set for trying the engine without one.
package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/malekgatoufi/mistralmeter/internal/models"
)

// Dataset is a named collection of evaluation prompts.
type Dataset struct {
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Prompts     []models.EvalPrompt `json:"prompts"`
}

// Info summarizes a dataset without carrying its prompts.
type Info struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	PromptCount int      `json:"prompt_count"`
	Categories  []string `json:"categories"`
}

// Info returns the summary view of d.
func (d *Dataset) Info() Info {
	seen := map[string]bool{}
	var categories []string
	for _, p := range d.Prompts {
		if p.Category != "" && !seen[p.Category] {
			seen[p.Category] = true
			categories = append(categories, p.Category)
		}
	}
	sort.Strings(categories)

	return Info{
		Name:        d.Name,
		Description: d.Description,
		PromptCount: len(d.Prompts),
		Categories:  categories,
	}
}

// Load reads a dataset from a JSON or CSV file, chosen by extension. CSV
// files become a dataset named after the file.
func Load(path string) (*Dataset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return loadJSON(path)
	case ".csv":
		rows, err := LoadCSV(path)
		if err != nil {
			return nil, err
		}
		prompts, err := promptsFromCSV(path, rows)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		return &Dataset{Name: name, Prompts: prompts}, nil
	default:
		return nil, fmt.Errorf("dataset: unsupported file type %q, want .json or .csv", filepath.Ext(path))
	}
}

func loadJSON(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: read %s: %w", path, err)
	}

	var d Dataset
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("dataset: parse %s: %w", path, err)
	}
	if len(d.Prompts) == 0 {
		return nil, fmt.Errorf("dataset: %s has no prompts", path)
	}
	for i, p := range d.Prompts {
		if p.Text == "" {
			return nil, fmt.Errorf("dataset: prompt %d of %s has empty text", i, path)
		}
		if !p.ExpectedStyle.Valid() {
			return nil, fmt.Errorf("dataset: prompt %d of %s has unknown expected_style %q", i, path, p.ExpectedStyle)
		}
	}
	if d.Name == "" {
		d.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &d, nil
}

// List returns summaries for every JSON dataset in dir, sorted by name. A
// missing directory is an empty list, not an error.
func List(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dataset: list %s: %w", dir, err)
	}

	var infos []Info
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		d, err := loadJSON(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		infos = append(infos, d.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Sample returns a small built-in dataset spanning the supported styles.
func Sample() *Dataset {
	return &Dataset{
		Name:        "sample",
		Description: "Built-in starter prompts covering the supported styles",
		Prompts: []models.EvalPrompt{
			{
				Text:          "Explain how photosynthesis works.",
				ExpectedStyle: models.StyleEducational,
				Category:      "science",
			},
			{
				Text:          "What is the time complexity of quicksort and why?",
				ExpectedStyle: models.StyleTechnical,
				Category:      "computer-science",
			},
			{
				Text:            "What is the capital of France?",
				ExpectedStyle:   models.StyleConcise,
				ReferenceAnswer: "Paris",
				Category:        "geography",
			},
			{
				Text:          "Write a short story about a robot discovering music.",
				ExpectedStyle: models.StyleCreative,
				Category:      "writing",
			},
			{
				Text:          "Draft an opening paragraph for a quarterly business review.",
				ExpectedStyle: models.StyleFormal,
				Category:      "business",
			},
			{
				Text:          "What are some good ways to spend a rainy afternoon?",
				ExpectedStyle: models.StyleConversational,
				Category:      "lifestyle",
			},
		},
	}
}
