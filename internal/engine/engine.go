// Package engine is the evaluation engine facade. It wires the gateway,
// metrics collection, judging, pricing, variance analysis, batching, and
// comparison behind a small operation surface used by the CLI and the HTTP
// API.
package engine

import (
	"context"
	"fmt"

	"github.com/malekgatoufi/mistralmeter/internal/batch"
	"github.com/malekgatoufi/mistralmeter/internal/compare"
	"github.com/malekgatoufi/mistralmeter/internal/gateway"
	"github.com/malekgatoufi/mistralmeter/internal/judge"
	"github.com/malekgatoufi/mistralmeter/internal/metrics"
	"github.com/malekgatoufi/mistralmeter/internal/models"
	"github.com/malekgatoufi/mistralmeter/internal/pricing"
	"github.com/malekgatoufi/mistralmeter/internal/variance"
)

// Request bounds shared by every operation.
const (
	DefaultModel       = "mistral-small-latest"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1024
	MaxRuns            = 10
)

// ValidationError reports a request parameter outside its allowed range.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Engine executes evaluation operations. It is stateless across calls:
// every operation receives its full configuration and returns a value the
// caller owns.
type Engine struct {
	gw        gateway.Gateway
	estimator *pricing.Estimator
	workers   int
	streaming bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers bounds concurrency for batch and variance operations.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithoutStreaming makes the engine collect metrics over blocking calls,
// dropping time-to-first-token measurement.
func WithoutStreaming() Option {
	return func(e *Engine) { e.streaming = false }
}

// WithPricing overrides price table entries used for cost estimation.
func WithPricing(overrides map[string]pricing.Price) Option {
	return func(e *Engine) { e.estimator = pricing.NewEstimator(overrides) }
}

// New creates an Engine on top of the given gateway.
func New(gw gateway.Gateway, opts ...Option) *Engine {
	e := &Engine{
		gw:        gw,
		estimator: pricing.NewEstimator(nil),
		workers:   batch.DefaultWorkers,
		streaming: true,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// EvaluateRequest describes a single-prompt evaluation. Runs > 1 turns it
// into a variance analysis; see [Engine.EvaluateVariance]. A nil Temperature
// means "use the default"; an explicit 0 is honored.
type EvaluateRequest struct {
	Prompt      models.EvalPrompt
	Model       string
	JudgeModel  string
	Temperature *float64
	MaxTokens   int
	Runs        int
}

// BatchRequest describes a dataset evaluation.
type BatchRequest struct {
	Prompts     []models.EvalPrompt
	Model       string
	JudgeModel  string
	Temperature *float64
	MaxTokens   int
}

// CompareRequest describes a two-model comparison.
type CompareRequest struct {
	Prompt      models.EvalPrompt
	ModelA      string
	ModelB      string
	JudgeModel  string
	Temperature *float64
	MaxTokens   int
}

func (e *Engine) collector() *metrics.Collector {
	if e.streaming {
		return metrics.NewCollector(e.gw)
	}
	return metrics.NewCollector(e.gw, metrics.WithoutStreaming())
}

// Evaluate runs one prompt once: collect, judge, price.
func (e *Engine) Evaluate(ctx context.Context, req EvaluateRequest) (*models.EvalResult, error) {
	req = req.withDefaults()
	if err := validateParams(req.Model, *req.Temperature, req.MaxTokens); err != nil {
		return nil, err
	}

	j := judge.New(e.gw, req.JudgeModel)
	if err := j.Validate(req.Model); err != nil {
		return nil, err
	}

	inv, err := e.collector().Collect(ctx, 0, req.Prompt, req.Model, *req.Temperature, req.MaxTokens)
	if err != nil {
		return nil, err
	}

	quality, err := j.Score(ctx, judge.Request{
		Prompt:          req.Prompt.Text,
		Response:        inv.Response,
		Model:           req.Model,
		ReferenceAnswer: req.Prompt.ReferenceAnswer,
		ExpectedStyle:   req.Prompt.ExpectedStyle,
	})
	if err != nil {
		return nil, err
	}

	m := inv.Metrics
	m.Quality = quality
	return &models.EvalResult{
		Prompt:   req.Prompt.Text,
		Model:    req.Model,
		Response: inv.Response,
		Metrics:  m,
	}, nil
}

// Stream invokes the model once and hands the caller the raw token stream.
// No judging or pricing happens here; the caller drains the stream and must
// Close it.
func (e *Engine) Stream(ctx context.Context, req EvaluateRequest) (*gateway.Stream, error) {
	req = req.withDefaults()
	if err := validateParams(req.Model, *req.Temperature, req.MaxTokens); err != nil {
		return nil, err
	}

	return e.gw.InvokeStream(ctx, gateway.Request{
		Model:        req.Model,
		SystemPrompt: req.Prompt.ExpectedStyle.SystemPrompt(),
		Prompt:       req.Prompt.Text,
		Temperature:  *req.Temperature,
		MaxTokens:    req.MaxTokens,
	})
}

// EvaluateVariance runs one prompt req.Runs times and aggregates the
// distribution of outcomes.
func (e *Engine) EvaluateVariance(ctx context.Context, req EvaluateRequest) (*models.VarianceResult, error) {
	req = req.withDefaults()
	if err := validateParams(req.Model, *req.Temperature, req.MaxTokens); err != nil {
		return nil, err
	}
	if req.Runs < 1 || req.Runs > MaxRuns {
		return nil, &ValidationError{Field: "runs", Message: fmt.Sprintf("must be between 1 and %d", MaxRuns)}
	}

	analyzer := variance.NewAnalyzer(
		e.collector(),
		judge.New(e.gw, req.JudgeModel),
		variance.WithWorkers(e.workers),
	)
	return analyzer.Run(ctx, variance.Request{
		Prompt:      req.Prompt,
		Model:       req.Model,
		Temperature: *req.Temperature,
		MaxTokens:   req.MaxTokens,
		Runs:        req.Runs,
	})
}

// EvaluateBatch evaluates a dataset of prompts with bounded concurrency.
func (e *Engine) EvaluateBatch(ctx context.Context, req BatchRequest) (*models.BatchResult, error) {
	if req.Model == "" {
		req.Model = DefaultModel
	}
	if req.Temperature == nil {
		req.Temperature = floatPtr(DefaultTemperature)
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = DefaultMaxTokens
	}
	if err := validateParams(req.Model, *req.Temperature, req.MaxTokens); err != nil {
		return nil, err
	}

	evaluator := batch.NewEvaluator(
		e.collector(),
		judge.New(e.gw, req.JudgeModel),
		e.estimator,
		batch.WithWorkers(e.workers),
	)
	return evaluator.Run(ctx, batch.Request{
		Prompts:     req.Prompts,
		Model:       req.Model,
		Temperature: *req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
}

// Compare evaluates one prompt on two models and declares a winner.
func (e *Engine) Compare(ctx context.Context, req CompareRequest) (*models.CompareResult, error) {
	if req.Temperature == nil {
		req.Temperature = floatPtr(DefaultTemperature)
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = DefaultMaxTokens
	}
	for _, model := range []string{req.ModelA, req.ModelB} {
		if err := validateParams(model, *req.Temperature, req.MaxTokens); err != nil {
			return nil, err
		}
	}

	comparer := compare.NewComparer(e.collector(), judge.New(e.gw, req.JudgeModel))
	return comparer.Run(ctx, compare.Request{
		Prompt:      req.Prompt,
		ModelA:      req.ModelA,
		ModelB:      req.ModelB,
		Temperature: *req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
}

// EstimateCost prices a token estimate against the engine's price table.
func (e *Engine) EstimateCost(model string, inputTokens, outputTokens int) float64 {
	return e.estimator.Estimate(model, models.NewTokenMetrics(inputTokens, outputTokens))
}

func (req EvaluateRequest) withDefaults() EvaluateRequest {
	if req.Model == "" {
		req.Model = DefaultModel
	}
	if req.Temperature == nil {
		req.Temperature = floatPtr(DefaultTemperature)
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = DefaultMaxTokens
	}
	if req.Runs == 0 {
		req.Runs = 1
	}
	return req
}

func floatPtr(f float64) *float64 { return &f }

func validateParams(model string, temperature float64, maxTokens int) error {
	info, ok := models.LookupModel(model)
	if !ok {
		return &pricing.UnknownModelError{Model: model}
	}
	if temperature < 0 || temperature > 1 {
		return &ValidationError{Field: "temperature", Message: "must be between 0 and 1"}
	}
	if maxTokens < 1 || maxTokens > info.MaxTokens {
		return &ValidationError{
			Field:   "max_tokens",
			Message: fmt.Sprintf("must be between 1 and %d for model %s", info.MaxTokens, model),
		}
	}
	return nil
}
