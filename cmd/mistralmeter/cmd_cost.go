package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/malekgatoufi/mistralmeter/internal/models"
	"github.com/malekgatoufi/mistralmeter/internal/pricing"
)

var (
	costInputTokens  int
	costOutputTokens int
	costFormat       string
)

func newCostCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cost <model>",
		Short: "Estimate the cost of a model invocation",
		Long: `Estimate the USD cost of a model invocation from expected input and
output token counts, using the built-in price table (overridable via the
pricing section of .mistralmeter.yaml). No API call is made.`,
		Args: cobra.ExactArgs(1),
		RunE: costCommandE,
	}

	cmd.Flags().IntVar(&costInputTokens, "input-tokens", 1000, "Expected input token count")
	cmd.Flags().IntVar(&costOutputTokens, "output-tokens", 1000, "Expected output token count")
	cmd.Flags().StringVarP(&costFormat, "format", "f", "table", "Output format: table or json")

	return cmd
}

func costCommandE(_ *cobra.Command, args []string) error {
	if costFormat != "table" && costFormat != "json" {
		return fmt.Errorf("unsupported format %q: must be table or json", costFormat)
	}
	if costInputTokens < 0 || costOutputTokens < 0 {
		return fmt.Errorf("token counts must not be negative")
	}

	cfg, err := loadProjectConfig()
	if err != nil {
		return err
	}

	model := args[0]
	estimator := pricing.NewEstimator(cfg.Pricing)
	price, err := estimator.Lookup(model)
	if err != nil {
		return err
	}
	cost := estimator.Estimate(model, models.NewTokenMetrics(costInputTokens, costOutputTokens))

	if costFormat == "json" {
		return printJSON(struct {
			Model            string  `json:"model"`
			InputTokens      int     `json:"input_tokens"`
			OutputTokens     int     `json:"output_tokens"`
			InputPer1K       float64 `json:"input_per_1k"`
			OutputPer1K      float64 `json:"output_per_1k"`
			EstimatedCostUSD float64 `json:"estimated_cost_usd"`
		}{
			Model:            model,
			InputTokens:      costInputTokens,
			OutputTokens:     costOutputTokens,
			InputPer1K:       price.InputPer1K,
			OutputPer1K:      price.OutputPer1K,
			EstimatedCostUSD: cost,
		})
	}

	fmt.Printf("Model:           %s\n", model)
	fmt.Printf("Input tokens:    %d  ($%.6f per 1K)\n", costInputTokens, price.InputPer1K)
	fmt.Printf("Output tokens:   %d  ($%.6f per 1K)\n", costOutputTokens, price.OutputPer1K)
	fmt.Printf("Estimated cost:  $%.6f\n", cost)
	return nil
}
