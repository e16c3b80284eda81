package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/malekgatoufi/mistralmeter/internal/gateway"
	"github.com/malekgatoufi/mistralmeter/internal/judge"
	"github.com/malekgatoufi/mistralmeter/internal/models"
	"github.com/malekgatoufi/mistralmeter/internal/pricing"
)

const verdict = `{"clarity": 8, "accuracy": 9, "completeness": 8, "relevance": 8,
	"style_match": 8, "overall_score": 8.3, "feedback": "solid"}`

// evalGateway answers judge calls with a fixed verdict and everything else
// with a canned completion, which is enough for full engine flows.
func evalGateway() *gateway.MockGateway {
	return &gateway.MockGateway{
		InvokeFunc: func(ctx context.Context, req gateway.Request) (*gateway.Completion, error) {
			if strings.Contains(req.Prompt, "expert evaluator") {
				return &gateway.Completion{Text: verdict, InputTokens: 100, OutputTokens: 50}, nil
			}
			return &gateway.Completion{Text: "a fine answer", InputTokens: 12, OutputTokens: 30}, nil
		},
	}
}

func TestEvaluate(t *testing.T) {
	e := New(evalGateway(), WithoutStreaming())

	result, err := e.Evaluate(context.Background(), EvaluateRequest{
		Prompt: models.EvalPrompt{Text: "Explain slices."},
	})
	require.NoError(t, err)

	require.Equal(t, DefaultModel, result.Model)
	require.Equal(t, "a fine answer", result.Response)
	require.Equal(t, 8.3, result.Metrics.Quality.Score)
	require.Equal(t, 42, result.Metrics.Tokens.TotalTokens)
}

func TestEvaluateRejectsSelfJudging(t *testing.T) {
	mock := evalGateway()
	e := New(mock, WithoutStreaming())

	_, err := e.Evaluate(context.Background(), EvaluateRequest{
		Prompt: models.EvalPrompt{Text: "q"},
		Model:  "mistral-large-latest",
	})

	var cfgErr *judge.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, 0, mock.CallCount())
}

func TestEvaluateValidation(t *testing.T) {
	e := New(evalGateway(), WithoutStreaming())

	tests := []struct {
		name string
		req  EvaluateRequest
	}{
		{
			name: "temperature above 1",
			req:  EvaluateRequest{Prompt: models.EvalPrompt{Text: "q"}, Temperature: floatPtr(1.5)},
		},
		{
			name: "temperature below 0",
			req:  EvaluateRequest{Prompt: models.EvalPrompt{Text: "q"}, Temperature: floatPtr(-0.1)},
		},
		{
			name: "max tokens above model limit",
			req:  EvaluateRequest{Prompt: models.EvalPrompt{Text: "q"}, MaxTokens: 5000},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Evaluate(context.Background(), tt.req)
			var valErr *ValidationError
			require.ErrorAs(t, err, &valErr)
		})
	}
}

func TestEvaluateHonorsExplicitZeroTemperature(t *testing.T) {
	mock := evalGateway()
	e := New(mock, WithoutStreaming())

	_, err := e.Evaluate(context.Background(), EvaluateRequest{
		Prompt:      models.EvalPrompt{Text: "q"},
		Temperature: floatPtr(0),
	})
	require.NoError(t, err)

	// The first recorded call is the evaluated model's invocation.
	require.NotEmpty(t, mock.Calls())
	require.Equal(t, 0.0, mock.Calls()[0].Temperature)
}

func TestEvaluateDefaultsTemperatureWhenUnset(t *testing.T) {
	mock := evalGateway()
	e := New(mock, WithoutStreaming())

	_, err := e.Evaluate(context.Background(), EvaluateRequest{
		Prompt: models.EvalPrompt{Text: "q"},
	})
	require.NoError(t, err)

	require.NotEmpty(t, mock.Calls())
	require.Equal(t, DefaultTemperature, mock.Calls()[0].Temperature)
}

func TestEvaluateUnknownModel(t *testing.T) {
	e := New(evalGateway(), WithoutStreaming())

	_, err := e.Evaluate(context.Background(), EvaluateRequest{
		Prompt: models.EvalPrompt{Text: "q"},
		Model:  "gpt-4",
	})

	var unknownErr *pricing.UnknownModelError
	require.ErrorAs(t, err, &unknownErr)
}

func TestStreamPassesThroughChunks(t *testing.T) {
	mock := &gateway.MockGateway{StreamChunks: []string{"hello", " world"}}
	e := New(mock)

	stream, err := e.Stream(context.Background(), EvaluateRequest{
		Prompt: models.EvalPrompt{Text: "q"},
	})
	require.NoError(t, err)
	defer stream.Close()

	var parts []string
	for chunk := range stream.Chunks() {
		if !chunk.Final {
			parts = append(parts, chunk.Text)
		}
	}
	require.NoError(t, stream.Err())
	require.Equal(t, []string{"hello", " world"}, parts)
	require.Equal(t, 1, mock.CallCount())
}

func TestStreamValidatesModel(t *testing.T) {
	mock := evalGateway()
	e := New(mock)

	_, err := e.Stream(context.Background(), EvaluateRequest{
		Prompt: models.EvalPrompt{Text: "q"},
		Model:  "gpt-4",
	})

	var unknownErr *pricing.UnknownModelError
	require.ErrorAs(t, err, &unknownErr)
	require.Equal(t, 0, mock.CallCount())
}

func TestEvaluateVariance(t *testing.T) {
	e := New(evalGateway(), WithoutStreaming())

	result, err := e.EvaluateVariance(context.Background(), EvaluateRequest{
		Prompt: models.EvalPrompt{Text: "q"},
		Runs:   3,
	})
	require.NoError(t, err)

	require.Equal(t, 3, result.CompletedRuns)
	require.Equal(t, judge.DefaultModel, result.JudgeModel)
	require.InDelta(t, 8.3, result.Quality.Mean, 1e-9)
}

func TestEvaluateVarianceRunBounds(t *testing.T) {
	e := New(evalGateway(), WithoutStreaming())

	_, err := e.EvaluateVariance(context.Background(), EvaluateRequest{
		Prompt: models.EvalPrompt{Text: "q"},
		Runs:   MaxRuns + 1,
	})
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
}

func TestEvaluateBatch(t *testing.T) {
	e := New(evalGateway(), WithoutStreaming(), WithWorkers(2))

	result, err := e.EvaluateBatch(context.Background(), BatchRequest{
		Prompts: []models.EvalPrompt{{Text: "a"}, {Text: "b"}, {Text: "c"}},
	})
	require.NoError(t, err)

	require.Equal(t, 3, result.Summary.Count)
	require.Empty(t, result.Errors)
	require.Greater(t, result.Summary.EstimatedCostUSD, 0.0)
}

func TestCompare(t *testing.T) {
	e := New(evalGateway(), WithoutStreaming())

	result, err := e.Compare(context.Background(), CompareRequest{
		Prompt: models.EvalPrompt{Text: "q"},
		ModelA: "mistral-small-latest",
		ModelB: "open-mistral-7b",
	})
	require.NoError(t, err)

	// Same canned verdict on both sides, so the comparison is a tie.
	require.Empty(t, result.Winner)
	require.Contains(t, result.ComparisonSummary, "tie")
}

func TestEstimateCost(t *testing.T) {
	e := New(evalGateway())
	require.Equal(t, 0.008, e.EstimateCost("mistral-small-latest", 1000, 1000))
	require.Equal(t, 0.0, e.EstimateCost("gpt-4", 1000, 1000))
}

func TestEstimateCostWithOverrides(t *testing.T) {
	e := New(evalGateway(), WithPricing(map[string]pricing.Price{
		"mistral-small-latest": {InputPer1K: 0.01, OutputPer1K: 0.01},
	}))
	require.Equal(t, 0.02, e.EstimateCost("mistral-small-latest", 1000, 1000))
}
