// Package pricing estimates the monetary cost of model invocations from the
// provider's token accounting and a static per-model price table.
package pricing

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/malekgatoufi/mistralmeter/internal/models"
)

// Price is the cost per 1000 tokens for one model, split by direction.
type Price struct {
	InputPer1K  float64 `yaml:"input_per_1k"`
	OutputPer1K float64 `yaml:"output_per_1k"`
}

// UnknownModelError reports a price lookup for a model the table does not
// know.
type UnknownModelError struct {
	Model string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("model %q is not in the price table", e.Model)
}

// DefaultTable holds per-1K-token prices in USD for the known Mistral
// models.
var DefaultTable = map[string]Price{
	"mistral-tiny":          {InputPer1K: 0.00025, OutputPer1K: 0.00025},
	"mistral-small-latest":  {InputPer1K: 0.002, OutputPer1K: 0.006},
	"mistral-medium-latest": {InputPer1K: 0.0027, OutputPer1K: 0.0081},
	"mistral-large-latest":  {InputPer1K: 0.004, OutputPer1K: 0.012},
	"open-mistral-7b":       {InputPer1K: 0.00025, OutputPer1K: 0.00025},
	"open-mixtral-8x7b":     {InputPer1K: 0.0007, OutputPer1K: 0.0007},
	"open-mixtral-8x22b":    {InputPer1K: 0.002, OutputPer1K: 0.006},
	"codestral-latest":      {InputPer1K: 0.001, OutputPer1K: 0.003},
}

// Estimator prices token usage against a fixed table. It holds no mutable
// state; identical inputs always produce identical estimates.
type Estimator struct {
	table map[string]Price
}

// NewEstimator builds an Estimator from [DefaultTable] merged with the given
// per-model overrides.
func NewEstimator(overrides map[string]Price) *Estimator {
	table := make(map[string]Price, len(DefaultTable)+len(overrides))
	for model, price := range DefaultTable {
		table[model] = price
	}
	for model, price := range overrides {
		table[model] = price
	}
	return &Estimator{table: table}
}

// Lookup returns the price entry for a model, or *UnknownModelError.
func (e *Estimator) Lookup(model string) (Price, error) {
	price, ok := e.table[model]
	if !ok {
		return Price{}, &UnknownModelError{Model: model}
	}
	return price, nil
}

// Estimate returns the cost in USD of the given token usage, rounded to six
// decimal places. Cost is advisory: an unknown model yields zero with a
// logged warning instead of an error.
func (e *Estimator) Estimate(model string, tokens models.TokenMetrics) float64 {
	price, err := e.Lookup(model)
	if err != nil {
		slog.Warn("no price entry for model, reporting zero cost", "model", model)
		return 0
	}

	cost := float64(tokens.InputTokens)/1000.0*price.InputPer1K +
		float64(tokens.OutputTokens)/1000.0*price.OutputPer1K
	return math.Round(cost*1e6) / 1e6
}
