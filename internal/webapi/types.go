package webapi

import (
	"time"

	"github.com/malekgatoufi/mistralmeter/internal/models"
)

// EvaluateRequest is the request body for POST /api/evaluate. Runs > 1
// turns the evaluation into a variance analysis. Temperature is a pointer
// so an explicit 0 is distinguishable from an absent field.
type EvaluateRequest struct {
	Prompt          string               `json:"prompt"`
	ExpectedStyle   models.ExpectedStyle `json:"expected_style,omitempty"`
	ReferenceAnswer string               `json:"reference_answer,omitempty"`
	Model           string               `json:"model,omitempty"`
	JudgeModel      string               `json:"judge_model,omitempty"`
	Temperature     *float64             `json:"temperature,omitempty"`
	MaxTokens       int                  `json:"max_tokens,omitempty"`
	Runs            int                  `json:"runs,omitempty"`
}

// BatchRequest is the request body for POST /api/evaluate/batch.
type BatchRequest struct {
	Prompts     []models.EvalPrompt `json:"prompts"`
	Model       string              `json:"model,omitempty"`
	JudgeModel  string              `json:"judge_model,omitempty"`
	Temperature *float64            `json:"temperature,omitempty"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
}

// CompareRequest is the request body for POST /api/compare.
type CompareRequest struct {
	Prompt        string               `json:"prompt"`
	ExpectedStyle models.ExpectedStyle `json:"expected_style,omitempty"`
	ModelA        string               `json:"model_a"`
	ModelB        string               `json:"model_b"`
	JudgeModel    string               `json:"judge_model,omitempty"`
	Temperature   *float64             `json:"temperature,omitempty"`
	MaxTokens     int                  `json:"max_tokens,omitempty"`
}

// StreamEvent is one server-sent event emitted by POST /api/evaluate/stream.
// Text events carry response tokens as they arrive; the terminal event has
// Done set and carries token counts and the estimated cost.
type StreamEvent struct {
	Text             string  `json:"text,omitempty"`
	Done             bool    `json:"done,omitempty"`
	InputTokens      int     `json:"input_tokens,omitempty"`
	OutputTokens     int     `json:"output_tokens,omitempty"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd,omitempty"`
	Error            string  `json:"error,omitempty"`
}

// CostRequest is the request body for POST /api/cost.
type CostRequest struct {
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// CostResponse is the response for POST /api/cost.
type CostResponse struct {
	Model            string  `json:"model"`
	InputTokens      int     `json:"input_tokens"`
	OutputTokens     int     `json:"output_tokens"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
}

// ResultSummary describes one stored result in the list view.
type ResultSummary struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}

// ResultDetail wraps a stored result with its metadata.
type ResultDetail struct {
	ResultSummary
	Result any `json:"result"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse is returned for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}
