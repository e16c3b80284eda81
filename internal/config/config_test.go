package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew_ReturnsAllDefaults(t *testing.T) {
	cfg := New()

	assertEqual(t, "Defaults.Model", "mistral-small-latest", cfg.Defaults.Model)
	assertEqual(t, "Defaults.JudgeModel", "mistral-large-latest", cfg.Defaults.JudgeModel)
	assertFloatPtr(t, "Defaults.Temperature", 0.7, cfg.Defaults.Temperature)
	assertEqualInt(t, "Defaults.MaxTokens", 1024, cfg.Defaults.MaxTokens)
	assertEqualInt(t, "Defaults.Runs", 1, cfg.Defaults.Runs)
	assertEqualInt(t, "Defaults.Workers", 5, cfg.Defaults.Workers)
	assertBoolPtr(t, "Defaults.Streaming", true, cfg.Defaults.Streaming)

	assertEqualInt(t, "Server.Port", 8080, cfg.Server.Port)
	assertEqual(t, "Paths.Datasets", "datasets/", cfg.Paths.Datasets)

	if cfg.Pricing != nil {
		t.Error("Pricing should be nil by default")
	}
}

func TestLoad_FullConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".mistralmeter.yaml", `
defaults:
  model: open-mixtral-8x7b
  judge_model: mistral-medium-latest
  temperature: 0.2
  max_tokens: 256
  runs: 3
  workers: 2
  streaming: false
server:
  port: 9090
paths:
  datasets: "my-datasets/"
pricing:
  open-mixtral-8x7b:
    input_per_1k: 0.001
    output_per_1k: 0.002
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	assertEqual(t, "Defaults.Model", "open-mixtral-8x7b", cfg.Defaults.Model)
	assertEqual(t, "Defaults.JudgeModel", "mistral-medium-latest", cfg.Defaults.JudgeModel)
	assertFloatPtr(t, "Defaults.Temperature", 0.2, cfg.Defaults.Temperature)
	assertEqualInt(t, "Defaults.MaxTokens", 256, cfg.Defaults.MaxTokens)
	assertEqualInt(t, "Defaults.Runs", 3, cfg.Defaults.Runs)
	assertEqualInt(t, "Defaults.Workers", 2, cfg.Defaults.Workers)
	assertBoolPtr(t, "Defaults.Streaming", false, cfg.Defaults.Streaming)
	assertEqualInt(t, "Server.Port", 9090, cfg.Server.Port)
	assertEqual(t, "Paths.Datasets", "my-datasets/", cfg.Paths.Datasets)

	price, ok := cfg.Pricing["open-mixtral-8x7b"]
	if !ok {
		t.Fatal("Pricing[open-mixtral-8x7b] missing")
	}
	if price.InputPer1K != 0.001 || price.OutputPer1K != 0.002 {
		t.Errorf("Pricing[open-mixtral-8x7b] = %+v, want {0.001 0.002}", price)
	}
}

func TestLoad_PartialConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".mistralmeter.yaml", `
defaults:
  model: mistral-tiny
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// Overridden
	assertEqual(t, "Defaults.Model", "mistral-tiny", cfg.Defaults.Model)

	// Defaults preserved
	assertEqual(t, "Defaults.JudgeModel", "mistral-large-latest", cfg.Defaults.JudgeModel)
	assertEqualInt(t, "Defaults.MaxTokens", 1024, cfg.Defaults.MaxTokens)
	assertEqualInt(t, "Server.Port", 8080, cfg.Server.Port)
}

func TestLoad_MissingFile_ReturnsDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	defaults := New()
	assertEqual(t, "Defaults.Model", defaults.Defaults.Model, cfg.Defaults.Model)
	assertEqual(t, "Defaults.JudgeModel", defaults.Defaults.JudgeModel, cfg.Defaults.JudgeModel)
	assertEqualInt(t, "Server.Port", defaults.Server.Port, cfg.Server.Port)
}

func TestLoad_InvalidYAML_ReturnsError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".mistralmeter.yaml", `
defaults:
  model: [not valid yaml
    this is broken
`)

	_, err := Load(dir)
	if err == nil {
		t.Fatal("Load() should return error for invalid YAML")
	}
}

func TestLoad_WalksUpDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".mistralmeter.yaml", `
defaults:
  model: codestral-latest
`)

	child := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(child, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(child)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	assertEqual(t, "Defaults.Model", "codestral-latest", cfg.Defaults.Model)
	// Other defaults still populated
	assertEqual(t, "Defaults.JudgeModel", "mistral-large-latest", cfg.Defaults.JudgeModel)
}

func TestPointerFields(t *testing.T) {
	t.Run("defaults preserved when not set in YAML", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, ".mistralmeter.yaml", `
defaults:
  model: mistral-tiny
`)
		cfg, err := Load(dir)
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		assertBoolPtr(t, "Defaults.Streaming", true, cfg.Defaults.Streaming)
		assertFloatPtr(t, "Defaults.Temperature", 0.7, cfg.Defaults.Temperature)
	})

	t.Run("explicit zero values survive the merge", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, ".mistralmeter.yaml", `
defaults:
  streaming: false
  temperature: 0.0
`)
		cfg, err := Load(dir)
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		assertBoolPtr(t, "Defaults.Streaming", false, cfg.Defaults.Streaming)
		assertFloatPtr(t, "Defaults.Temperature", 0.0, cfg.Defaults.Temperature)
	})
}

// --- test helpers ---

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func assertEqual(t *testing.T, field, want, got string) {
	t.Helper()
	if got != want {
		t.Errorf("%s = %q, want %q", field, got, want)
	}
}

func assertEqualInt(t *testing.T, field string, want, got int) {
	t.Helper()
	if got != want {
		t.Errorf("%s = %d, want %d", field, got, want)
	}
}

func assertBoolPtr(t *testing.T, field string, want bool, got *bool) {
	t.Helper()
	if got == nil {
		t.Errorf("%s is nil, want *%v", field, want)
		return
	}
	if *got != want {
		t.Errorf("%s = %v, want %v", field, *got, want)
	}
}

func assertFloatPtr(t *testing.T, field string, want float64, got *float64) {
	t.Helper()
	if got == nil {
		t.Errorf("%s is nil, want *%v", field, want)
		return
	}
	if *got != want {
		t.Errorf("%s = %v, want %v", field, *got, want)
	}
}
