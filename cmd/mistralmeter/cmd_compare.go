package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/malekgatoufi/mistralmeter/internal/engine"
	"github.com/malekgatoufi/mistralmeter/internal/models"
)

var (
	cmpModelA     string
	cmpModelB     string
	cmpJudgeModel string
	cmpTemp       float64
	cmpMaxTokens  int
	cmpStyle      string
	cmpOutput     string
	cmpFormat     string
)

func newCompareCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <prompt>",
		Short: "Compare two models on the same prompt",
		Long: `Evaluate one prompt on two different models concurrently and declare a
winner by judge score. The two models must differ; if the judge model
matches one of them, the comparison still runs but the summary notes the
reduced independence.`,
		Args: cobra.ExactArgs(1),
		RunE: compareCommandE,
	}

	cmd.Flags().StringVar(&cmpModelA, "model-a", "", "First model to compare (required)")
	cmd.Flags().StringVar(&cmpModelB, "model-b", "", "Second model to compare (required)")
	cmd.Flags().StringVar(&cmpJudgeModel, "judge-model", "", "Judge model (default from config)")
	cmd.Flags().Float64VarP(&cmpTemp, "temperature", "t", 0, "Sampling temperature, 0 to 1 (default from config)")
	cmd.Flags().IntVar(&cmpMaxTokens, "max-tokens", 0, "Maximum output tokens (default from config)")
	cmd.Flags().StringVar(&cmpStyle, "style", "", "Expected response style: educational, technical, concise, creative, formal, conversational")
	cmd.Flags().StringVarP(&cmpOutput, "output", "o", "", "Output JSON file for the result")
	cmd.Flags().StringVarP(&cmpFormat, "format", "f", "table", "Output format: table or json")

	return cmd
}

func compareCommandE(cmd *cobra.Command, args []string) error {
	if cmpFormat != "table" && cmpFormat != "json" {
		return fmt.Errorf("unsupported format %q: must be table or json", cmpFormat)
	}
	if cmpModelA == "" || cmpModelB == "" {
		return fmt.Errorf("both --model-a and --model-b are required")
	}
	style := models.ExpectedStyle(cmpStyle)
	if !style.Valid() {
		return fmt.Errorf("unknown style %q", cmpStyle)
	}

	cfg, err := loadProjectConfig()
	if err != nil {
		return err
	}
	eng, err := newEngine(cfg, 0)
	if err != nil {
		return err
	}

	req := engine.CompareRequest{
		Prompt: models.EvalPrompt{
			Text:          args[0],
			ExpectedStyle: style,
		},
		ModelA:     cmpModelA,
		ModelB:     cmpModelB,
		JudgeModel: firstNonEmpty(cmpJudgeModel, cfg.Defaults.JudgeModel),
		MaxTokens:  cmpMaxTokens,
	}
	if cmd.Flags().Changed("temperature") {
		req.Temperature = &cmpTemp
	} else {
		req.Temperature = cfg.Defaults.Temperature
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = cfg.Defaults.MaxTokens
	}

	result, err := eng.Compare(cmd.Context(), req)
	if err != nil {
		return err
	}

	if cmpOutput != "" {
		if err := saveJSON(result, cmpOutput); err != nil {
			return fmt.Errorf("failed to save output: %w", err)
		}
	}
	if cmpFormat == "json" {
		return printJSON(result)
	}
	printCompareSummary(result)
	return nil
}

func printCompareSummary(r *models.CompareResult) {
	fmt.Println("=" + strings.Repeat("=", 50))
	fmt.Println(" MODEL COMPARISON")
	fmt.Println("=" + strings.Repeat("=", 50))
	fmt.Println()

	fmt.Printf("Prompt: %s\n", truncate(r.Prompt, 70))
	fmt.Println()

	fmt.Printf("%-24s %-8s %-12s %s\n", "Model", "Score", "Latency", "Tokens")
	fmt.Println("-" + strings.Repeat("-", 50))
	for _, side := range []models.EvalResult{r.ModelA, r.ModelB} {
		marker := " "
		if side.Model == r.Winner {
			marker = "*"
		}
		fmt.Printf("%s %-22s %-8.1f %-12s %d\n",
			marker, side.Model,
			side.Metrics.Quality.Score,
			fmt.Sprintf("%.0fms", side.Metrics.Latency.TotalMs),
			side.Metrics.Tokens.TotalTokens)
	}
	fmt.Println()

	if r.Winner != "" {
		fmt.Printf("Winner: %s\n", r.Winner)
	} else {
		fmt.Println("Winner: none (tie)")
	}
	fmt.Printf("Summary: %s\n", r.ComparisonSummary)
	fmt.Println()

	fmt.Printf("Response from %s:\n%s\n\n", r.ModelA.Model, truncate(r.ModelA.Response, 400))
	fmt.Printf("Response from %s:\n%s\n", r.ModelB.Model, truncate(r.ModelB.Response, 400))
}
