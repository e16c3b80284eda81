package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/malekgatoufi/mistralmeter/internal/engine"
	"github.com/malekgatoufi/mistralmeter/internal/models"
)

var (
	evalModel      string
	evalJudgeModel string
	evalTemp       float64
	evalMaxTokens  int
	evalRuns       int
	evalStyle      string
	evalReference  string
	evalOutput     string
	evalFormat     string
)

// criteriaOrder fixes the display order of the judge's rubric criteria.
var criteriaOrder = []string{"clarity", "accuracy", "completeness", "relevance", "style_match"}

func newEvaluateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate <prompt>",
		Short: "Evaluate a single prompt against a Mistral model",
		Long: `Evaluate a single prompt: send it to the model, measure latency and
token usage, and score the response with an independent LLM judge.

The judge model must differ from the evaluated model. With --runs N (N > 1)
the prompt is evaluated N times and the score and latency distributions
are reported instead of a single result.`,
		Args: cobra.ExactArgs(1),
		RunE: evaluateCommandE,
	}

	cmd.Flags().StringVarP(&evalModel, "model", "m", "", "Model to evaluate (default from config)")
	cmd.Flags().StringVar(&evalJudgeModel, "judge-model", "", "Judge model, must differ from --model (default from config)")
	cmd.Flags().Float64VarP(&evalTemp, "temperature", "t", 0, "Sampling temperature, 0 to 1 (default from config)")
	cmd.Flags().IntVar(&evalMaxTokens, "max-tokens", 0, "Maximum output tokens (default from config)")
	cmd.Flags().IntVarP(&evalRuns, "runs", "r", 0, "Number of runs for variance analysis, 1 to 10 (default: 1)")
	cmd.Flags().StringVar(&evalStyle, "style", "", "Expected response style: educational, technical, concise, creative, formal, conversational")
	cmd.Flags().StringVar(&evalReference, "reference", "", "Reference answer for the judge to compare against")
	cmd.Flags().StringVarP(&evalOutput, "output", "o", "", "Output JSON file for the result")
	cmd.Flags().StringVarP(&evalFormat, "format", "f", "table", "Output format: table or json")

	return cmd
}

func evaluateCommandE(cmd *cobra.Command, args []string) error {
	if evalFormat != "table" && evalFormat != "json" {
		return fmt.Errorf("unsupported format %q: must be table or json", evalFormat)
	}
	style := models.ExpectedStyle(evalStyle)
	if !style.Valid() {
		return fmt.Errorf("unknown style %q", evalStyle)
	}

	cfg, err := loadProjectConfig()
	if err != nil {
		return err
	}
	eng, err := newEngine(cfg, 0)
	if err != nil {
		return err
	}

	req := engine.EvaluateRequest{
		Prompt: models.EvalPrompt{
			Text:            args[0],
			ExpectedStyle:   style,
			ReferenceAnswer: evalReference,
		},
		Model:      firstNonEmpty(evalModel, cfg.Defaults.Model),
		JudgeModel: firstNonEmpty(evalJudgeModel, cfg.Defaults.JudgeModel),
		MaxTokens:  evalMaxTokens,
		Runs:       evalRuns,
	}
	if cmd.Flags().Changed("temperature") {
		req.Temperature = &evalTemp
	} else {
		req.Temperature = cfg.Defaults.Temperature
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = cfg.Defaults.MaxTokens
	}
	if req.Runs == 0 {
		req.Runs = cfg.Defaults.Runs
	}

	ctx := cmd.Context()

	if req.Runs > 1 {
		result, err := eng.EvaluateVariance(ctx, req)
		if err != nil {
			return err
		}
		if evalOutput != "" {
			if err := saveJSON(result, evalOutput); err != nil {
				return fmt.Errorf("failed to save output: %w", err)
			}
		}
		if evalFormat == "json" {
			return printJSON(result)
		}
		printVarianceSummary(result)
		return nil
	}

	result, err := eng.Evaluate(ctx, req)
	if err != nil {
		return err
	}
	if evalOutput != "" {
		if err := saveJSON(result, evalOutput); err != nil {
			return fmt.Errorf("failed to save output: %w", err)
		}
	}
	if evalFormat == "json" {
		return printJSON(result)
	}
	printEvalSummary(result)
	return nil
}

func printEvalSummary(r *models.EvalResult) {
	fmt.Println("=" + strings.Repeat("=", 50))
	fmt.Println(" EVALUATION RESULT")
	fmt.Println("=" + strings.Repeat("=", 50))
	fmt.Println()

	fmt.Printf("Model:       %s\n", r.Model)
	fmt.Printf("Prompt:      %s\n", truncate(r.Prompt, 70))
	fmt.Println()

	q := r.Metrics.Quality
	fmt.Printf("Score:       %.1f / 10\n", q.Score)
	for _, name := range criteriaOrder {
		if v, ok := q.CriteriaScores[name]; ok {
			fmt.Printf("  %-13s %.1f\n", name, v)
		}
	}
	if q.Feedback != "" {
		fmt.Printf("Feedback:    %s\n", q.Feedback)
	}
	fmt.Println()

	printLatencyLines(r.Metrics.Latency)
	t := r.Metrics.Tokens
	fmt.Printf("Tokens:      %d in / %d out / %d total\n", t.InputTokens, t.OutputTokens, t.TotalTokens)
	fmt.Println()

	fmt.Println("Response:")
	fmt.Println(r.Response)
}

func printLatencyLines(l models.LatencyMetrics) {
	fmt.Printf("Latency:     %.0f ms\n", l.TotalMs)
	if l.TimeToFirstTokenMs != nil {
		fmt.Printf("TTFT:        %.0f ms\n", *l.TimeToFirstTokenMs)
	}
	if l.TokensPerSecond != nil {
		fmt.Printf("Throughput:  %.1f tok/s\n", *l.TokensPerSecond)
	}
}

func printVarianceSummary(r *models.VarianceResult) {
	fmt.Println("=" + strings.Repeat("=", 50))
	fmt.Println(" VARIANCE ANALYSIS")
	fmt.Println("=" + strings.Repeat("=", 50))
	fmt.Println()

	fmt.Printf("Model:       %s\n", r.Model)
	fmt.Printf("Judge:       %s\n", r.JudgeModel)
	fmt.Printf("Prompt:      %s\n", truncate(r.Prompt, 70))
	fmt.Printf("Runs:        %d/%d completed\n", r.CompletedRuns, r.RequestedRuns)
	fmt.Println()

	printStatsLine("Score", r.Quality)
	printStatsLine("Latency (ms)", r.Latency)
	if r.TimeToFirstToken != nil {
		printStatsLine("TTFT (ms)", *r.TimeToFirstToken)
	}
	if r.TokensPerSecond != nil {
		printStatsLine("Tok/s", *r.TokensPerSecond)
	}
	fmt.Println()

	// Per-run breakdown
	for _, s := range r.Samples {
		best := " "
		if s.Run == r.BestRun {
			best = "*"
		}
		fmt.Printf("  %s run %d: score=%.1f  latency=%.0fms  tokens=%d\n",
			best, s.Run, s.Metrics.Quality.Score, s.Metrics.Latency.TotalMs, s.Metrics.Tokens.TotalTokens)
	}
	if len(r.Errors) > 0 {
		fmt.Println()
		fmt.Println("Failed runs:")
		for _, e := range r.Errors {
			fmt.Printf("  - run %d: %s\n", e.Index, e.Error)
		}
	}
	fmt.Println()

	fmt.Printf("Best run:    %d\n", r.BestRun)
	fmt.Println("Best response:")
	fmt.Println(r.BestResponse)
}

func printStatsLine(name string, s models.VarianceStats) {
	fmt.Printf("%-14s mean=%-8.2f median=%-8.2f stddev=%-8.2f min=%-8.2f max=%-8.2f p95=%.2f",
		name, s.Mean, s.Median, s.StdDev, s.Min, s.Max, s.P95)
	if s.CoefficientOfVariation != nil {
		fmt.Printf("  cv=%.3f", *s.CoefficientOfVariation)
	}
	fmt.Println()
}
