// Package models defines the value types exchanged between the evaluation
// engine's components. Every type here is an immutable value: produced by one
// computation step, consumed by the next, never mutated in place.
package models

// ExpectedStyle is the response style an evaluated model is primed with and
// judged against.
type ExpectedStyle string

const (
	StyleEducational    ExpectedStyle = "educational"
	StyleTechnical      ExpectedStyle = "technical"
	StyleConcise        ExpectedStyle = "concise"
	StyleCreative       ExpectedStyle = "creative"
	StyleFormal         ExpectedStyle = "formal"
	StyleConversational ExpectedStyle = "conversational"
)

var stylePrompts = map[ExpectedStyle]string{
	StyleEducational: "You are a helpful educational assistant. Provide clear, " +
		"well-structured explanations that are easy to understand. Use examples when helpful.",
	StyleTechnical: "You are a technical expert. Provide precise, accurate, and detailed " +
		"technical information. Include relevant technical terms and specifications.",
	StyleConcise: "You are a concise assistant. Provide brief, to-the-point answers. " +
		"Avoid unnecessary elaboration while ensuring completeness.",
	StyleCreative: "You are a creative assistant. Provide imaginative, engaging, and " +
		"original responses. Feel free to be playful with language.",
	StyleFormal: "You are a professional assistant. Provide formal, well-structured " +
		"responses suitable for business or academic contexts.",
	StyleConversational: "You are a friendly conversational assistant. Provide natural, " +
		"engaging responses as if chatting with a friend.",
}

// SystemPrompt returns the system message used to prime the evaluated model.
// Unknown or empty styles fall back to the educational prompt.
func (s ExpectedStyle) SystemPrompt() string {
	if p, ok := stylePrompts[s]; ok {
		return p
	}
	return stylePrompts[StyleEducational]
}

// Valid reports whether s is one of the known styles. The empty style is
// valid and means "use the default".
func (s ExpectedStyle) Valid() bool {
	if s == "" {
		return true
	}
	_, ok := stylePrompts[s]
	return ok
}

// EvalPrompt is a single prompt submitted for evaluation.
type EvalPrompt struct {
	Text            string        `json:"prompt"`
	ExpectedStyle   ExpectedStyle `json:"expected_style,omitempty"`
	ReferenceAnswer string        `json:"reference_answer,omitempty"`
	Category        string        `json:"category,omitempty"`
}

// TokenMetrics holds the provider's token accounting for one invocation.
// TotalTokens is always InputTokens + OutputTokens.
type TokenMetrics struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// NewTokenMetrics builds a TokenMetrics with the total derived from the parts.
func NewTokenMetrics(input, output int) TokenMetrics {
	return TokenMetrics{
		InputTokens:  input,
		OutputTokens: output,
		TotalTokens:  input + output,
	}
}

// LatencyMetrics holds wall-clock measurements for one invocation.
// TimeToFirstTokenMs is only set when the invocation was streamed.
// TokensPerSecond is only set when TotalMs > 0 and output tokens > 0.
type LatencyMetrics struct {
	TotalMs            float64  `json:"total_ms"`
	TimeToFirstTokenMs *float64 `json:"time_to_first_token_ms,omitempty"`
	TokensPerSecond    *float64 `json:"tokens_per_second,omitempty"`
}

// QualityScore is the verdict of an LLM judge for one (prompt, response)
// pair. Score is the judge's overall rating on a 0-10 scale; it need not be
// the mean of CriteriaScores since the judge may weight criteria.
type QualityScore struct {
	Score          float64            `json:"score"`
	Feedback       string             `json:"feedback"`
	CriteriaScores map[string]float64 `json:"criteria_scores"`
}

// EvalMetrics aggregates everything measured for one model invocation.
type EvalMetrics struct {
	Tokens  TokenMetrics   `json:"tokens"`
	Latency LatencyMetrics `json:"latency"`
	Quality QualityScore   `json:"quality"`
}

// EvalResult is one completed evaluation of one prompt on one model.
type EvalResult struct {
	Prompt   string      `json:"prompt"`
	Model    string      `json:"model"`
	Response string      `json:"response"`
	Metrics  EvalMetrics `json:"metrics"`
}

// VarianceStats describes the distribution of a numeric sample across
// repeated runs. Percentiles use the nearest-rank method.
// CoefficientOfVariation is only set when the mean is nonzero.
type VarianceStats struct {
	Mean                   float64  `json:"mean"`
	Median                 float64  `json:"median"`
	StdDev                 float64  `json:"std_dev"`
	Min                    float64  `json:"min"`
	Max                    float64  `json:"max"`
	P25                    float64  `json:"p25"`
	P50                    float64  `json:"p50"`
	P75                    float64  `json:"p75"`
	P95                    float64  `json:"p95"`
	CoefficientOfVariation *float64 `json:"coefficient_of_variation,omitempty"`
}

// RunSample is the raw outcome of one variance run, keyed by its run index
// so repeated analyses are reproducible in fixtures.
type RunSample struct {
	Run      int         `json:"run"`
	Response string      `json:"response"`
	Metrics  EvalMetrics `json:"metrics"`
}

// ItemError records a failure for one item of a multi-item operation,
// without aborting the siblings.
type ItemError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// VarianceResult characterizes the outcome distribution of the same prompt
// evaluated RequestedRuns times on the same model. Statistics cover only the
// CompletedRuns that succeeded. TimeToFirstToken is only set when every
// completed run was streamed; TokensPerSecond when at least one run produced
// a rate.
type VarianceResult struct {
	Prompt           string         `json:"prompt"`
	Model            string         `json:"model"`
	JudgeModel       string         `json:"judge_model"`
	RequestedRuns    int            `json:"requested_runs"`
	CompletedRuns    int            `json:"completed_runs"`
	Samples          []RunSample    `json:"samples"`
	Errors           []ItemError    `json:"errors,omitempty"`
	BestRun          int            `json:"best_run"`
	BestResponse     string         `json:"best_response"`
	Latency          VarianceStats  `json:"latency"`
	TimeToFirstToken *VarianceStats `json:"time_to_first_token,omitempty"`
	TokensPerSecond  *VarianceStats `json:"tokens_per_second,omitempty"`
	Quality          VarianceStats  `json:"quality"`
}

// LatencySummary is the latency portion of a batch summary.
type LatencySummary struct {
	AvgMs float64 `json:"avg_ms"`
	MinMs float64 `json:"min_ms"`
	MaxMs float64 `json:"max_ms"`
	P50Ms float64 `json:"p50_ms"`
}

// TokenTotals is the token portion of a batch summary.
type TokenTotals struct {
	TotalInput         int     `json:"total_input"`
	TotalOutput        int     `json:"total_output"`
	Total              int     `json:"total"`
	AvgOutputPerPrompt float64 `json:"avg_output_per_prompt"`
}

// QualitySummary is the quality portion of a batch summary.
type QualitySummary struct {
	AvgScore float64 `json:"avg_score"`
	MinScore float64 `json:"min_score"`
	MaxScore float64 `json:"max_score"`
}

// BatchSummary aggregates a batch of EvalResults. It is derived entirely
// from the successful results and recomputed fresh each time; a batch with
// zero successes yields a zero-valued summary rather than an error.
type BatchSummary struct {
	Count            int            `json:"count"`
	Latency          LatencySummary `json:"latency"`
	Tokens           TokenTotals    `json:"tokens"`
	Quality          QualitySummary `json:"quality"`
	ThroughputTPS    float64        `json:"throughput_tokens_per_second"`
	EstimatedCostUSD float64        `json:"estimated_cost_usd"`
}

// BatchResult holds the per-prompt outcomes of a batch evaluation. Results
// follow the input order of the prompts that succeeded; Errors lists the
// prompts that failed, by input index.
type BatchResult struct {
	Model   string       `json:"model"`
	Results []EvalResult `json:"results"`
	Errors  []ItemError  `json:"errors,omitempty"`
	Summary BatchSummary `json:"summary"`
}

// CompareResult is the outcome of evaluating one prompt on two models.
// Winner is empty on an exact tie.
type CompareResult struct {
	Prompt            string     `json:"prompt"`
	ModelA            EvalResult `json:"model_a"`
	ModelB            EvalResult `json:"model_b"`
	Winner            string     `json:"winner,omitempty"`
	ComparisonSummary string     `json:"comparison_summary"`
}
