// Package batch evaluates a dataset of prompts against one model under
// bounded concurrency and aggregates the outcomes into summary statistics.
package batch

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/malekgatoufi/mistralmeter/internal/judge"
	"github.com/malekgatoufi/mistralmeter/internal/metrics"
	"github.com/malekgatoufi/mistralmeter/internal/models"
	"github.com/malekgatoufi/mistralmeter/internal/pricing"
)

// DefaultWorkers bounds how many prompts are evaluated concurrently.
const DefaultWorkers = 5

// Request describes one batch evaluation.
type Request struct {
	Prompts     []models.EvalPrompt
	Model       string
	Temperature float64
	MaxTokens   int
}

// Evaluator runs batches of prompt evaluations.
type Evaluator struct {
	collector *metrics.Collector
	judge     *judge.Judge
	estimator *pricing.Estimator
	workers   int
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithWorkers sets the maximum number of concurrently evaluated prompts.
func WithWorkers(n int) EvaluatorOption {
	return func(e *Evaluator) {
		if n > 0 {
			e.workers = n
		}
	}
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(collector *metrics.Collector, j *judge.Judge, estimator *pricing.Estimator, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{collector: collector, judge: j, estimator: estimator, workers: DefaultWorkers}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Run evaluates every prompt in the request. A failed prompt is recorded
// against its input index and never aborts its siblings; successful results
// keep the input order of their prompts. A batch where every prompt fails is
// not an error: it yields an empty result set with a zero summary.
func (e *Evaluator) Run(ctx context.Context, req Request) (*models.BatchResult, error) {
	if len(req.Prompts) == 0 {
		return nil, fmt.Errorf("batch has no prompts")
	}
	if err := e.judge.Validate(req.Model); err != nil {
		return nil, err
	}

	results := make([]*models.EvalResult, len(req.Prompts))
	failures := make([]error, len(req.Prompts))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.workers)

	for i, prompt := range req.Prompts {
		group.Go(func() error {
			result, err := e.evaluateOne(groupCtx, i, prompt, req)
			if err != nil {
				slog.Warn("batch item failed", "index", i, "model", req.Model, "error", err)
				failures[i] = err
				return nil
			}
			results[i] = result
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	out := &models.BatchResult{Model: req.Model}
	for i, result := range results {
		if result != nil {
			out.Results = append(out.Results, *result)
			continue
		}
		out.Errors = append(out.Errors, models.ItemError{Index: i, Error: failures[i].Error()})
	}
	out.Summary = e.Summarize(req.Model, out.Results)
	return out, nil
}

func (e *Evaluator) evaluateOne(ctx context.Context, index int, prompt models.EvalPrompt, req Request) (*models.EvalResult, error) {
	inv, err := e.collector.Collect(ctx, index, prompt, req.Model, req.Temperature, req.MaxTokens)
	if err != nil {
		return nil, err
	}

	quality, err := e.judge.Score(ctx, judge.Request{
		Prompt:          prompt.Text,
		Response:        inv.Response,
		Model:           req.Model,
		ReferenceAnswer: prompt.ReferenceAnswer,
		ExpectedStyle:   prompt.ExpectedStyle,
	})
	if err != nil {
		return nil, err
	}

	m := inv.Metrics
	m.Quality = quality
	return &models.EvalResult{
		Prompt:   prompt.Text,
		Model:    req.Model,
		Response: inv.Response,
		Metrics:  m,
	}, nil
}

// Summarize recomputes the batch aggregate from scratch over the given
// results. Zero results yield a zero-valued summary.
func (e *Evaluator) Summarize(model string, results []models.EvalResult) models.BatchSummary {
	summary := models.BatchSummary{Count: len(results)}
	if len(results) == 0 {
		return summary
	}

	var (
		latencies   []float64
		scores      []float64
		totalIn     int
		totalOut    int
		totalCost   float64
		sumLatencyS float64
	)
	for _, r := range results {
		latencies = append(latencies, r.Metrics.Latency.TotalMs)
		scores = append(scores, r.Metrics.Quality.Score)
		totalIn += r.Metrics.Tokens.InputTokens
		totalOut += r.Metrics.Tokens.OutputTokens
		totalCost += e.estimator.Estimate(model, r.Metrics.Tokens)
		sumLatencyS += r.Metrics.Latency.TotalMs / 1000.0
	}

	summary.Latency = models.LatencySummary{
		AvgMs: metrics.Mean(latencies),
		MinMs: metrics.Percentile(latencies, 0),
		MaxMs: metrics.Percentile(latencies, 100),
		P50Ms: metrics.Percentile(latencies, 50),
	}
	summary.Tokens = models.TokenTotals{
		TotalInput:         totalIn,
		TotalOutput:        totalOut,
		Total:              totalIn + totalOut,
		AvgOutputPerPrompt: float64(totalOut) / float64(len(results)),
	}
	summary.Quality = models.QualitySummary{
		AvgScore: metrics.Mean(scores),
		MinScore: metrics.Percentile(scores, 0),
		MaxScore: metrics.Percentile(scores, 100),
	}
	if sumLatencyS > 0 {
		summary.ThroughputTPS = float64(totalOut) / sumLatencyS
	}
	summary.EstimatedCostUSD = totalCost
	return summary
}
