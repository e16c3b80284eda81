package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/malekgatoufi/mistralmeter/internal/config"
	"github.com/malekgatoufi/mistralmeter/internal/engine"
	"github.com/malekgatoufi/mistralmeter/internal/gateway"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mistralmeter",
		Short: "mistralmeter - benchmark and judge Mistral model responses",
		Long: `mistralmeter is a command-line tool for evaluating Mistral models.

It sends prompts to a model, measures latency and token usage, and scores
each response on a fixed rubric with an independent LLM judge. It supports
repeated runs for variance analysis, dataset batches, and side-by-side
model comparisons.

An API key is read from the MISTRAL_API_KEY environment variable (a .env
file in the working directory is loaded automatically).`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	// Add subcommands
	cmd.AddCommand(newEvaluateCommand())
	cmd.AddCommand(newBatchCommand())
	cmd.AddCommand(newCompareCommand())
	cmd.AddCommand(newCostCommand())
	cmd.AddCommand(newModelsCommand())
	cmd.AddCommand(newServeCommand())

	return cmd
}

func execute() error {
	_ = godotenv.Load()
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}

// loadProjectConfig reads .mistralmeter.yaml starting from the working
// directory, falling back to defaults when no file exists.
func loadProjectConfig() (*config.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolving working directory: %w", err)
	}
	return config.Load(wd)
}

// newEngine builds an evaluation engine backed by the Mistral API.
// workers overrides the configured worker count when positive.
func newEngine(cfg *config.Config, workers int) (*engine.Engine, error) {
	apiKey := os.Getenv("MISTRAL_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("MISTRAL_API_KEY is not set (export it or add it to a .env file)")
	}

	opts := []engine.Option{engine.WithPricing(cfg.Pricing)}
	if workers <= 0 {
		workers = cfg.Defaults.Workers
	}
	if workers > 0 {
		opts = append(opts, engine.WithWorkers(workers))
	}
	if cfg.Defaults.Streaming != nil && !*cfg.Defaults.Streaming {
		opts = append(opts, engine.WithoutStreaming())
	}

	return engine.New(gateway.NewClient(apiKey), opts...), nil
}

// firstNonEmpty returns the first non-empty string.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// truncate shortens s to maxLen characters, appending "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func saveJSON(v any, path string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
