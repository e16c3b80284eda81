// Package metrics wraps a single model invocation and measures it: total
// wall-clock latency, time-to-first-token when streamed, token counts from
// the provider's own accounting, and the derived tokens-per-second rate.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/malekgatoufi/mistralmeter/internal/gateway"
	"github.com/malekgatoufi/mistralmeter/internal/models"
)

// InvocationError is a failed provider call. Index identifies the prompt or
// run position for batch callers; Unwrap yields the underlying cause so
// gateway failure kinds stay matchable with errors.Is.
type InvocationError struct {
	Index int
	Model string
	Err   error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invoking model %q (index %d): %v", e.Model, e.Index, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// Invocation is the measured outcome of one model call. Metrics.Quality is
// the zero value; judging is the caller's next step.
type Invocation struct {
	Response string
	Metrics  models.EvalMetrics
}

// Collector executes exactly one prompt against exactly one model per
// Collect call. It does not retry: retry policy affects measured latency,
// so it belongs to the caller.
type Collector struct {
	gw        gateway.Gateway
	streaming bool
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithoutStreaming disables streamed invocation; time-to-first-token is then
// omitted from the collected latency metrics.
func WithoutStreaming() CollectorOption {
	return func(c *Collector) { c.streaming = false }
}

// NewCollector creates a Collector. Streaming is on by default so TTFT is
// captured.
func NewCollector(gw gateway.Gateway, opts ...CollectorOption) *Collector {
	c := &Collector{gw: gw, streaming: true}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Collect runs the prompt on the given model and measures the invocation.
// index is threaded into any InvocationError for batch attribution.
func (c *Collector) Collect(ctx context.Context, index int, prompt models.EvalPrompt, model string, temperature float64, maxTokens int) (*Invocation, error) {
	req := gateway.Request{
		Model:        model,
		SystemPrompt: prompt.ExpectedStyle.SystemPrompt(),
		Prompt:       prompt.Text,
		Temperature:  temperature,
		MaxTokens:    maxTokens,
	}

	if c.streaming {
		return c.collectStreaming(ctx, index, req)
	}
	return c.collectBlocking(ctx, index, req)
}

func (c *Collector) collectBlocking(ctx context.Context, index int, req gateway.Request) (*Invocation, error) {
	start := time.Now()
	completion, err := c.gw.Invoke(ctx, req)
	if err != nil {
		return nil, &InvocationError{Index: index, Model: req.Model, Err: err}
	}
	totalMs := float64(time.Since(start)) / float64(time.Millisecond)

	return c.build(completion.Text, completion.InputTokens, completion.OutputTokens, totalMs, nil), nil
}

func (c *Collector) collectStreaming(ctx context.Context, index int, req gateway.Request) (*Invocation, error) {
	start := time.Now()
	stream, err := c.gw.InvokeStream(ctx, req)
	if err != nil {
		return nil, &InvocationError{Index: index, Model: req.Model, Err: err}
	}
	defer stream.Close()

	var (
		text       []byte
		firstToken *time.Duration
		inTokens   int
		outTokens  int
	)

	for chunk := range stream.Chunks() {
		if chunk.Final {
			inTokens = chunk.InputTokens
			outTokens = chunk.OutputTokens
			continue
		}
		if firstToken == nil {
			d := time.Since(start)
			firstToken = &d
		}
		text = append(text, chunk.Text...)
	}
	if err := stream.Err(); err != nil {
		return nil, &InvocationError{Index: index, Model: req.Model, Err: err}
	}
	totalMs := float64(time.Since(start)) / float64(time.Millisecond)

	var ttftMs *float64
	if firstToken != nil {
		ms := float64(*firstToken) / float64(time.Millisecond)
		ttftMs = &ms
	}

	return c.build(string(text), inTokens, outTokens, totalMs, ttftMs), nil
}

func (c *Collector) build(text string, inTokens, outTokens int, totalMs float64, ttftMs *float64) *Invocation {
	latency := models.LatencyMetrics{
		TotalMs:            totalMs,
		TimeToFirstTokenMs: ttftMs,
	}
	if totalMs > 0 && outTokens > 0 {
		tps := float64(outTokens) / (totalMs / 1000.0)
		latency.TokensPerSecond = &tps
	}

	return &Invocation{
		Response: text,
		Metrics: models.EvalMetrics{
			Tokens:  models.NewTokenMetrics(inTokens, outTokens),
			Latency: latency,
		},
	}
}
