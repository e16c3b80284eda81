// Package config provides the Config struct and loader for
// .mistralmeter.yaml project-level configuration files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/malekgatoufi/mistralmeter/internal/pricing"
)

// FileName is the project configuration file searched for by Load.
const FileName = ".mistralmeter.yaml"

// Default values for project configuration, applied by New().
const (
	DefaultModel       = "mistral-small-latest"
	DefaultJudgeModel  = "mistral-large-latest"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1024
	DefaultRuns        = 1
	DefaultWorkers     = 5

	DefaultServerPort  = 8080
	DefaultDatasetsDir = "datasets/"
)

// DefaultsConfig holds default evaluation parameters.
type DefaultsConfig struct {
	Model       string   `yaml:"model,omitempty"`
	JudgeModel  string   `yaml:"judge_model,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty"`
	MaxTokens   int      `yaml:"max_tokens,omitempty"`
	Runs        int      `yaml:"runs,omitempty"`
	Workers     int      `yaml:"workers,omitempty"`
	Streaming   *bool    `yaml:"streaming,omitempty"`
}

// ServerConfig holds API server settings.
type ServerConfig struct {
	Port int `yaml:"port,omitempty"`
}

// PathsConfig holds directory paths used by the CLI.
type PathsConfig struct {
	Datasets string `yaml:"datasets,omitempty"`
}

// Config is the top-level configuration loaded from .mistralmeter.yaml.
type Config struct {
	Defaults DefaultsConfig           `yaml:"defaults,omitempty"`
	Server   ServerConfig             `yaml:"server,omitempty"`
	Paths    PathsConfig              `yaml:"paths,omitempty"`
	Pricing  map[string]pricing.Price `yaml:"pricing,omitempty"`
}

// New returns a Config with all hard-coded defaults populated.
func New() *Config {
	return &Config{
		Defaults: DefaultsConfig{
			Model:       DefaultModel,
			JudgeModel:  DefaultJudgeModel,
			Temperature: floatPtr(DefaultTemperature),
			MaxTokens:   DefaultMaxTokens,
			Runs:        DefaultRuns,
			Workers:     DefaultWorkers,
			Streaming:   boolPtr(true),
		},
		Server: ServerConfig{
			Port: DefaultServerPort,
		},
		Paths: PathsConfig{
			Datasets: DefaultDatasetsDir,
		},
	}
}

// Load finds .mistralmeter.yaml by walking up from startDir (max 10
// levels), unmarshals it, and fills in missing fields with defaults.
// If no config file is found, returns defaults with a nil error.
// Real I/O errors (e.g. permission denied) are returned to the caller.
func Load(startDir string) (*Config, error) {
	cfg := New()

	data, err := findConfigFile(startDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil // no file found → return defaults
		}
		return nil, fmt.Errorf("loading %s: %w", FileName, err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName, err)
	}

	mergeConfig(cfg, &fileCfg)
	return cfg, nil
}

// findConfigFile walks up from dir looking for the config file (max 10
// levels). Returns os.ErrNotExist if no config file is found. Propagates
// real I/O errors (e.g. permission denied) instead of silently swallowing
// them.
func findConfigFile(dir string) ([]byte, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", dir, err)
	}
	dir = absDir

	for i := 0; i < 10; i++ {
		p := filepath.Join(dir, FileName)
		data, err := os.ReadFile(p)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}
	return nil, os.ErrNotExist
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *Config) {
	if src.Defaults.Model != "" {
		dst.Defaults.Model = src.Defaults.Model
	}
	if src.Defaults.JudgeModel != "" {
		dst.Defaults.JudgeModel = src.Defaults.JudgeModel
	}
	if src.Defaults.Temperature != nil {
		dst.Defaults.Temperature = src.Defaults.Temperature
	}
	if src.Defaults.MaxTokens != 0 {
		dst.Defaults.MaxTokens = src.Defaults.MaxTokens
	}
	if src.Defaults.Runs != 0 {
		dst.Defaults.Runs = src.Defaults.Runs
	}
	if src.Defaults.Workers != 0 {
		dst.Defaults.Workers = src.Defaults.Workers
	}
	if src.Defaults.Streaming != nil {
		dst.Defaults.Streaming = src.Defaults.Streaming
	}

	if src.Server.Port != 0 {
		dst.Server.Port = src.Server.Port
	}

	if src.Paths.Datasets != "" {
		dst.Paths.Datasets = src.Paths.Datasets
	}

	if src.Pricing != nil {
		dst.Pricing = src.Pricing
	}
}

func floatPtr(f float64) *float64 { return &f }

func boolPtr(b bool) *bool { return &b }
