// Package compare evaluates one prompt on two models side by side and
// determines a winner from their judge scores.
package compare

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/malekgatoufi/mistralmeter/internal/judge"
	"github.com/malekgatoufi/mistralmeter/internal/metrics"
	"github.com/malekgatoufi/mistralmeter/internal/models"
)

// Request describes one two-model comparison.
type Request struct {
	Prompt      models.EvalPrompt
	ModelA      string
	ModelB      string
	Temperature float64
	MaxTokens   int
}

// Comparer runs two-model comparisons.
type Comparer struct {
	collector *metrics.Collector
	judge     *judge.Judge
}

// NewComparer creates a Comparer.
func NewComparer(collector *metrics.Collector, j *judge.Judge) *Comparer {
	return &Comparer{collector: collector, judge: j}
}

// Run evaluates the prompt on both models concurrently, judges each side
// with one independent judge call, and picks the strictly higher score as
// the winner. An exact tie leaves Winner empty. Comparing a model with
// itself is a configuration error.
func (c *Comparer) Run(ctx context.Context, req Request) (*models.CompareResult, error) {
	if req.ModelA == req.ModelB {
		return nil, &judge.ConfigurationError{
			Message: fmt.Sprintf("cannot compare model %q with itself", req.ModelA),
		}
	}
	for _, model := range []string{req.ModelA, req.ModelB} {
		if err := c.judge.Validate(model); err != nil {
			// Judging one side with itself biases that side, but the
			// comparison is still informative. Flag it rather than fail.
			slog.Warn("judge model is one of the compared models, its side may score high",
				"judge_model", c.judge.Model(), "model", model)
		}
	}

	var resultA, resultB *models.EvalResult

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		r, err := c.evaluateSide(groupCtx, 0, req.ModelA, req)
		if err != nil {
			return err
		}
		resultA = r
		return nil
	})
	group.Go(func() error {
		r, err := c.evaluateSide(groupCtx, 1, req.ModelB, req)
		if err != nil {
			return err
		}
		resultB = r
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	out := &models.CompareResult{
		Prompt: req.Prompt.Text,
		ModelA: *resultA,
		ModelB: *resultB,
	}

	scoreA := resultA.Metrics.Quality.Score
	scoreB := resultB.Metrics.Quality.Score
	switch {
	case scoreA > scoreB:
		out.Winner = req.ModelA
		out.ComparisonSummary = fmt.Sprintf("%s wins %.1f to %.1f", req.ModelA, scoreA, scoreB)
	case scoreB > scoreA:
		out.Winner = req.ModelB
		out.ComparisonSummary = fmt.Sprintf("%s wins %.1f to %.1f", req.ModelB, scoreB, scoreA)
	default:
		out.ComparisonSummary = fmt.Sprintf("tie at %.1f, both models scored equally", scoreA)
	}
	if c.judge.Model() == req.ModelA || c.judge.Model() == req.ModelB {
		out.ComparisonSummary += fmt.Sprintf(" (judge %s is one of the compared models)", c.judge.Model())
	}
	return out, nil
}

func (c *Comparer) evaluateSide(ctx context.Context, index int, model string, req Request) (*models.EvalResult, error) {
	inv, err := c.collector.Collect(ctx, index, req.Prompt, model, req.Temperature, req.MaxTokens)
	if err != nil {
		return nil, err
	}

	quality, err := c.judge.ScoreSide(ctx, judge.Request{
		Prompt:          req.Prompt.Text,
		Response:        inv.Response,
		Model:           model,
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
		Model:    model,
		Response: inv.Response,
		Metrics:  m,
	}, nil
}
