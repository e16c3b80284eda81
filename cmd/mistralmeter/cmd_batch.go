package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/malekgatoufi/mistralmeter/internal/dataset"
	"github.com/malekgatoufi/mistralmeter/internal/engine"
	"github.com/malekgatoufi/mistralmeter/internal/models"
)

var (
	batchModel      string
	batchJudgeModel string
	batchTemp       float64
	batchMaxTokens  int
	batchWorkers    int
	batchOutput     string
	batchFormat     string
	batchListOnly   bool
)

func newBatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch [dataset]",
		Short: "Evaluate a dataset of prompts",
		Long: `Evaluate every prompt in a dataset file (.json or .csv) with bounded
concurrency, then report aggregate latency, token, quality, and cost
statistics. Without a dataset argument the built-in sample dataset is used.

A prompt that fails to evaluate is recorded and does not stop the batch.
When at least one prompt fails, the command exits with code 1.`,
		Args: cobra.MaximumNArgs(1),
		RunE: batchCommandE,
	}

	cmd.Flags().StringVarP(&batchModel, "model", "m", "", "Model to evaluate (default from config)")
	cmd.Flags().StringVar(&batchJudgeModel, "judge-model", "", "Judge model, must differ from --model (default from config)")
	cmd.Flags().Float64VarP(&batchTemp, "temperature", "t", 0, "Sampling temperature, 0 to 1 (default from config)")
	cmd.Flags().IntVar(&batchMaxTokens, "max-tokens", 0, "Maximum output tokens (default from config)")
	cmd.Flags().IntVarP(&batchWorkers, "workers", "w", 0, "Number of concurrent workers (default from config)")
	cmd.Flags().StringVarP(&batchOutput, "output", "o", "", "Output JSON file for the results")
	cmd.Flags().StringVarP(&batchFormat, "format", "f", "table", "Output format: table or json")
	cmd.Flags().BoolVar(&batchListOnly, "list", false, "List datasets in the configured datasets directory and exit")

	return cmd
}

func batchCommandE(cmd *cobra.Command, args []string) error {
	if batchFormat != "table" && batchFormat != "json" {
		return fmt.Errorf("unsupported format %q: must be table or json", batchFormat)
	}

	cfg, err := loadProjectConfig()
	if err != nil {
		return err
	}

	if batchListOnly {
		return listDatasets(cfg.Paths.Datasets)
	}

	var ds *dataset.Dataset
	if len(args) == 1 {
		ds, err = dataset.Load(args[0])
		if err != nil {
			return fmt.Errorf("failed to load dataset: %w", err)
		}
	} else {
		ds = dataset.Sample()
	}

	eng, err := newEngine(cfg, batchWorkers)
	if err != nil {
		return err
	}

	req := engine.BatchRequest{
		Prompts:    ds.Prompts,
		Model:      firstNonEmpty(batchModel, cfg.Defaults.Model),
		JudgeModel: firstNonEmpty(batchJudgeModel, cfg.Defaults.JudgeModel),
		MaxTokens:  batchMaxTokens,
	}
	if cmd.Flags().Changed("temperature") {
		req.Temperature = &batchTemp
	} else {
		req.Temperature = cfg.Defaults.Temperature
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = cfg.Defaults.MaxTokens
	}

	fmt.Printf("Evaluating dataset: %s (%d prompts)\n", ds.Name, len(ds.Prompts))
	fmt.Printf("Model: %s\n", req.Model)
	fmt.Println()

	result, err := eng.EvaluateBatch(cmd.Context(), req)
	if err != nil {
		return err
	}

	if batchOutput != "" {
		if err := saveJSON(result, batchOutput); err != nil {
			return fmt.Errorf("failed to save output: %w", err)
		}
	}

	if batchFormat == "json" {
		if err := printJSON(result); err != nil {
			return err
		}
	} else {
		printBatchSummary(ds.Name, result)
	}

	if len(result.Errors) > 0 {
		return &EvalFailureError{
			Message: fmt.Sprintf("batch completed with %d of %d prompt(s) failed", len(result.Errors), len(ds.Prompts)),
		}
	}
	return nil
}

func listDatasets(dir string) error {
	infos, err := dataset.List(dir)
	if err != nil {
		return fmt.Errorf("failed to list datasets in %s: %w", dir, err)
	}
	if len(infos) == 0 {
		fmt.Printf("No datasets found in %s\n", dir)
		return nil
	}

	fmt.Printf("%-20s %-8s %s\n", "Name", "Prompts", "Categories")
	fmt.Println("-" + strings.Repeat("-", 50))
	for _, info := range infos {
		fmt.Printf("%-20s %-8d %s\n", info.Name, info.PromptCount, strings.Join(info.Categories, ", "))
	}
	return nil
}

func printBatchSummary(name string, r *models.BatchResult) {
	fmt.Println("=" + strings.Repeat("=", 50))
	fmt.Println(" BATCH RESULTS")
	fmt.Println("=" + strings.Repeat("=", 50))
	fmt.Println()

	fmt.Printf("Dataset:        %s\n", name)
	fmt.Printf("Model:          %s\n", r.Model)
	fmt.Printf("Evaluated:      %d\n", r.Summary.Count)
	fmt.Printf("Failed:         %d\n", len(r.Errors))
	fmt.Println()

	for _, res := range r.Results {
		fmt.Printf("  ✓ %-50s score=%.1f  latency=%.0fms\n",
			truncate(res.Prompt, 50), res.Metrics.Quality.Score, res.Metrics.Latency.TotalMs)
	}
	for _, e := range r.Errors {
		fmt.Printf("  ✗ prompt %d: %s\n", e.Index, e.Error)
	}
	fmt.Println()

	if r.Summary.Count == 0 {
		return
	}

	s := r.Summary
	fmt.Println("-" + strings.Repeat("-", 50))
	fmt.Println(" SUMMARY")
	fmt.Println("-" + strings.Repeat("-", 50))
	fmt.Printf("Quality:        avg=%.1f  min=%.1f  max=%.1f\n",
		s.Quality.AvgScore, s.Quality.MinScore, s.Quality.MaxScore)
	fmt.Printf("Latency (ms):   avg=%.0f  min=%.0f  max=%.0f  p50=%.0f\n",
		s.Latency.AvgMs, s.Latency.MinMs, s.Latency.MaxMs, s.Latency.P50Ms)
	fmt.Printf("Tokens:         %d in / %d out / %d total (avg %.0f out per prompt)\n",
		s.Tokens.TotalInput, s.Tokens.TotalOutput, s.Tokens.Total, s.Tokens.AvgOutputPerPrompt)
	if s.ThroughputTPS > 0 {
		fmt.Printf("Throughput:     %.1f tok/s\n", s.ThroughputTPS)
	}
	fmt.Printf("Estimated cost: $%.6f\n", s.EstimatedCostUSD)
	fmt.Println()
}
