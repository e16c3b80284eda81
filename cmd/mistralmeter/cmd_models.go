package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/malekgatoufi/mistralmeter/internal/models"
	"github.com/malekgatoufi/mistralmeter/internal/pricing"
)

var modelsFormat string

func newModelsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the models available for evaluation",
		Long: `List the Mistral models this tool can evaluate, with their token limits
and per-1K-token prices. Prices reflect any overrides from the pricing
section of .mistralmeter.yaml.`,
		Args: cobra.NoArgs,
		RunE: modelsCommandE,
	}

	cmd.Flags().StringVarP(&modelsFormat, "format", "f", "table", "Output format: table or json")

	return cmd
}

func modelsCommandE(_ *cobra.Command, _ []string) error {
	if modelsFormat != "table" && modelsFormat != "json" {
		return fmt.Errorf("unsupported format %q: must be table or json", modelsFormat)
	}

	cfg, err := loadProjectConfig()
	if err != nil {
		return err
	}
	estimator := pricing.NewEstimator(cfg.Pricing)

	if modelsFormat == "json" {
		type modelListing struct {
			models.ModelInfo
			InputPer1K  float64 `json:"input_per_1k"`
			OutputPer1K float64 `json:"output_per_1k"`
		}
		listings := make([]modelListing, 0, len(models.KnownModels))
		for _, m := range models.KnownModels {
			price, _ := estimator.Lookup(m.ID)
			listings = append(listings, modelListing{
				ModelInfo:   m,
				InputPer1K:  price.InputPer1K,
				OutputPer1K: price.OutputPer1K,
			})
		}
		return printJSON(listings)
	}

	fmt.Printf("%-24s %-10s %-12s %-12s %s\n", "Model", "Max Tok", "$/1K in", "$/1K out", "Description")
	fmt.Println("-" + strings.Repeat("-", 85))
	for _, m := range models.KnownModels {
		price, _ := estimator.Lookup(m.ID)
		fmt.Printf("%-24s %-10d %-12.6f %-12.6f %s\n",
			m.ID, m.MaxTokens, price.InputPer1K, price.OutputPer1K, m.Description)
	}
	return nil
}
