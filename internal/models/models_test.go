package models

import (
	"strings"
	"testing"
)

func TestNewTokenMetrics(t *testing.T) {
	tests := []struct {
		name          string
		input, output int
	}{
		{"zero", 0, 0},
		{"typical", 23, 214},
		{"input_only", 100, 0},
		{"output_only", 0, 57},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := NewTokenMetrics(tt.input, tt.output)
			if tm.TotalTokens != tm.InputTokens+tm.OutputTokens {
				t.Errorf("TotalTokens = %d, want %d", tm.TotalTokens, tm.InputTokens+tm.OutputTokens)
			}
		})
	}
}

func TestSystemPromptFallback(t *testing.T) {
	tests := []struct {
		name  string
		style ExpectedStyle
		want  string
	}{
		{"technical", StyleTechnical, "technical expert"},
		{"concise", StyleConcise, "concise assistant"},
		{"empty_defaults_to_educational", ExpectedStyle(""), "educational assistant"},
		{"unknown_defaults_to_educational", ExpectedStyle("sarcastic"), "educational assistant"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.style.SystemPrompt()
			if !strings.Contains(got, tt.want) {
				t.Errorf("SystemPrompt() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestStyleValid(t *testing.T) {
	if !ExpectedStyle("").Valid() {
		t.Error("empty style should be valid")
	}
	if !StyleFormal.Valid() {
		t.Error("formal should be valid")
	}
	if ExpectedStyle("sarcastic").Valid() {
		t.Error("unknown style should be invalid")
	}
}

func TestLookupModel(t *testing.T) {
	m, ok := LookupModel("mistral-small-latest")
	if !ok {
		t.Fatal("expected mistral-small-latest to be registered")
	}
	if m.MaxTokens <= 0 {
		t.Errorf("MaxTokens = %d, want > 0", m.MaxTokens)
	}

	if _, ok := LookupModel("gpt-4o"); ok {
		t.Error("gpt-4o should not be registered")
	}
}
