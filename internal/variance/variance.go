// Package variance repeats a single-prompt evaluation N times and
// characterizes the distribution of latency, throughput, and quality across
// the runs.
package variance

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/malekgatoufi/mistralmeter/internal/judge"
	"github.com/malekgatoufi/mistralmeter/internal/metrics"
	"github.com/malekgatoufi/mistralmeter/internal/models"
)

// DefaultWorkers bounds how many runs execute concurrently.
const DefaultWorkers = 5

// Request describes one variance analysis.
type Request struct {
	Prompt      models.EvalPrompt
	Model       string
	Temperature float64
	MaxTokens   int
	Runs        int
}

// Analyzer executes repeated runs of the same prompt and aggregates their
// outcomes.
type Analyzer struct {
	collector *metrics.Collector
	judge     *judge.Judge
	workers   int
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithWorkers sets the maximum number of concurrent runs.
func WithWorkers(n int) AnalyzerOption {
	return func(a *Analyzer) {
		if n > 0 {
			a.workers = n
		}
	}
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(collector *metrics.Collector, j *judge.Judge, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{collector: collector, judge: j, workers: DefaultWorkers}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Run executes req.Runs independent evaluations of the prompt and computes
// distribution statistics over the runs that succeeded. Failed runs are
// recorded against their run index without aborting siblings; if every run
// fails, Run returns an error since there is no sample to describe.
func (a *Analyzer) Run(ctx context.Context, req Request) (*models.VarianceResult, error) {
	if req.Runs < 1 {
		return nil, fmt.Errorf("runs must be at least 1, got %d", req.Runs)
	}
	if err := a.judge.Validate(req.Model); err != nil {
		return nil, err
	}

	// Slots are indexed by run so completion order never affects the result.
	samples := make([]*models.RunSample, req.Runs)
	failures := make([]error, req.Runs)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(a.workers)

	for run := 0; run < req.Runs; run++ {
		group.Go(func() error {
			sample, err := a.evaluateOnce(groupCtx, run, req)
			if err != nil {
				slog.Warn("variance run failed", "run", run, "model", req.Model, "error", err)
				failures[run] = err
				return nil
			}
			samples[run] = sample
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	result := &models.VarianceResult{
		Prompt:        req.Prompt.Text,
		Model:         req.Model,
		JudgeModel:    a.judge.Model(),
		RequestedRuns: req.Runs,
	}
	for run, sample := range samples {
		if sample != nil {
			result.Samples = append(result.Samples, *sample)
			continue
		}
		result.Errors = append(result.Errors, models.ItemError{Index: run, Error: failures[run].Error()})
	}
	result.CompletedRuns = len(result.Samples)

	if result.CompletedRuns == 0 {
		return nil, fmt.Errorf("all %d runs failed, first failure: %w", req.Runs, firstError(failures))
	}

	aggregate(result)
	return result, nil
}

func (a *Analyzer) evaluateOnce(ctx context.Context, run int, req Request) (*models.RunSample, error) {
	inv, err := a.collector.Collect(ctx, run, req.Prompt, req.Model, req.Temperature, req.MaxTokens)
	if err != nil {
		return nil, err
	}

	quality, err := a.judge.Score(ctx, judge.Request{
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
	return &models.RunSample{Run: run, Response: inv.Response, Metrics: m}, nil
}

// aggregate fills the statistics and best-run fields from result.Samples.
func aggregate(result *models.VarianceResult) {
	var (
		latencies []float64
		ttfts     []float64
		rates     []float64
		scores    []float64
	)
	for _, s := range result.Samples {
		latencies = append(latencies, s.Metrics.Latency.TotalMs)
		scores = append(scores, s.Metrics.Quality.Score)
		if s.Metrics.Latency.TimeToFirstTokenMs != nil {
			ttfts = append(ttfts, *s.Metrics.Latency.TimeToFirstTokenMs)
		}
		if s.Metrics.Latency.TokensPerSecond != nil {
			rates = append(rates, *s.Metrics.Latency.TokensPerSecond)
		}
	}

	result.Latency = metrics.Describe(latencies)
	result.Quality = metrics.Describe(scores)

	// TTFT statistics are only meaningful when every completed run streamed.
	if len(ttfts) == len(result.Samples) && len(ttfts) > 0 {
		stats := metrics.Describe(ttfts)
		result.TimeToFirstToken = &stats
	}
	if len(rates) > 0 {
		stats := metrics.Describe(rates)
		result.TokensPerSecond = &stats
	}

	best := result.Samples[0]
	for _, s := range result.Samples[1:] {
		if s.Metrics.Quality.Score > best.Metrics.Quality.Score {
			best = s
			continue
		}
		if s.Metrics.Quality.Score == best.Metrics.Quality.Score &&
			s.Metrics.Latency.TotalMs < best.Metrics.Latency.TotalMs {
			best = s
		}
	}
	result.BestRun = best.Run
	result.BestResponse = best.Response
}

func firstError(failures []error) error {
	for _, err := range failures {
		if err != nil {
			return err
		}
	}
	return nil
}
