// Package judge scores model responses with a second model acting as an
// LLM judge. The judge model must differ from the evaluated model; the
// package enforces that before any network call is made.
package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/malekgatoufi/mistralmeter/internal/gateway"
	"github.com/malekgatoufi/mistralmeter/internal/models"
)

// DefaultModel is the judge model used when the caller does not pick one.
const DefaultModel = "mistral-large-latest"

// ConfigurationError reports an invalid evaluation setup, such as judging a
// model with itself.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string { return e.Message }

// ParseError reports judge output that did not match the expected verdict
// schema. Raw holds a truncated copy of the offending output.
type ParseError struct {
	Message string
	Raw     string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing judge verdict: %s", e.Message)
}

const systemPrompt = "You are an expert AI response evaluator. Always respond with valid JSON."

const rubricTemplate = `You are an expert evaluator of AI-generated responses.
Your task is to evaluate the quality of a response given a prompt and expected style.

## Evaluation Criteria (score 0-10 for each):

1. **Clarity** (0-10): How clear, well-structured, and easy to understand is the response?
2. **Accuracy** (0-10): How accurate, factually correct, and reliable is the information?
3. **Completeness** (0-10): How complete and comprehensive is the response? Does it fully address the prompt?
4. **Relevance** (0-10): How relevant and on-topic is the response?
5. **Style Match** (0-10): How well does the response match the expected style: %q?

## Input

**Prompt:** %s

**Expected Style:** %s

**Response to Evaluate:**
%s
%s
## Output Format

Respond ONLY with a valid JSON object in this exact format:
{
    "clarity": <score>,
    "accuracy": <score>,
    "completeness": <score>,
    "relevance": <score>,
    "style_match": <score>,
    "overall_score": <weighted_average>,
    "feedback": "<2-3 sentence summary of strengths and areas for improvement>"
}

Be fair but critical. A score of 7-8 is good, 9-10 is exceptional.
`

const verdictSchemaJSON = `{
	"type": "object",
	"required": ["clarity", "accuracy", "completeness", "relevance", "style_match", "overall_score", "feedback"],
	"properties": {
		"clarity":       {"type": "number", "minimum": 0, "maximum": 10},
		"accuracy":      {"type": "number", "minimum": 0, "maximum": 10},
		"completeness":  {"type": "number", "minimum": 0, "maximum": 10},
		"relevance":     {"type": "number", "minimum": 0, "maximum": 10},
		"style_match":   {"type": "number", "minimum": 0, "maximum": 10},
		"overall_score": {"type": "number"},
		"feedback":      {"type": "string"}
	}
}`

var verdictSchema = mustCompileSchema(verdictSchemaJSON)

func mustCompileSchema(schemaJSON string) *jsonschema.Schema {
	var doc any
	if err := json.Unmarshal([]byte(schemaJSON), &doc); err != nil {
		panic(fmt.Sprintf("parsing verdict schema: %v", err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("verdict.json", doc); err != nil {
		panic(fmt.Sprintf("adding verdict schema resource: %v", err))
	}

	schema, err := compiler.Compile("verdict.json")
	if err != nil {
		panic(fmt.Sprintf("compiling verdict schema: %v", err))
	}
	return schema
}

// verdict is the judge's parsed payload.
type verdict struct {
	Clarity      float64 `mapstructure:"clarity"`
	Accuracy     float64 `mapstructure:"accuracy"`
	Completeness float64 `mapstructure:"completeness"`
	Relevance    float64 `mapstructure:"relevance"`
	StyleMatch   float64 `mapstructure:"style_match"`
	OverallScore float64 `mapstructure:"overall_score"`
	Feedback     string  `mapstructure:"feedback"`
}

// Request describes one response to be scored.
type Request struct {
	Prompt          string
	Response        string
	Model           string
	ReferenceAnswer string
	ExpectedStyle   models.ExpectedStyle
}

// Judge scores responses using a fixed judge model.
type Judge struct {
	gw    gateway.Gateway
	model string
}

// New creates a Judge backed by the given gateway. An empty judgeModel falls
// back to [DefaultModel].
func New(gw gateway.Gateway, judgeModel string) *Judge {
	if judgeModel == "" {
		judgeModel = DefaultModel
	}
	return &Judge{gw: gw, model: judgeModel}
}

// Model returns the judge model id.
func (j *Judge) Model() string { return j.model }

// Validate rejects setups where the judge would score its own model.
// Self-judging inflates scores, so it is an error rather than a warning.
func (j *Judge) Validate(evaluatedModel string) error {
	if j.model == evaluatedModel {
		return &ConfigurationError{
			Message: fmt.Sprintf("judge model %q must differ from the evaluated model", j.model),
		}
	}
	return nil
}

// Score asks the judge model for a verdict on req and parses it into a
// QualityScore. It fails with *ConfigurationError before any network call
// when the judge and evaluated model are the same, and with *ParseError when
// the judge returns output that does not satisfy the verdict schema.
func (j *Judge) Score(ctx context.Context, req Request) (models.QualityScore, error) {
	if err := j.Validate(req.Model); err != nil {
		return models.QualityScore{}, err
	}
	return j.score(ctx, req)
}

// ScoreSide scores one side of a two-model comparison. It skips the
// self-judging precondition: a comparison judge may legitimately equal one
// of the compared models, and the comparer warns about the reduced
// independence instead of failing.
func (j *Judge) ScoreSide(ctx context.Context, req Request) (models.QualityScore, error) {
	return j.score(ctx, req)
}

func (j *Judge) score(ctx context.Context, req Request) (models.QualityScore, error) {
	style := req.ExpectedStyle
	if style == "" {
		style = models.StyleEducational
	}

	var referenceSection string
	if req.ReferenceAnswer != "" {
		referenceSection = fmt.Sprintf("\n**Reference Answer (for comparison):**\n%s\n\nConsider the reference when evaluating accuracy and completeness.\n", req.ReferenceAnswer)
	}

	rubric := fmt.Sprintf(rubricTemplate, style, req.Prompt, style, req.Response, referenceSection)

	// Low temperature keeps repeated verdicts consistent.
	completion, err := j.gw.Invoke(ctx, gateway.Request{
		Model:        j.model,
		SystemPrompt: systemPrompt,
		Prompt:       rubric,
		Temperature:  0.1,
		MaxTokens:    500,
	})
	if err != nil {
		return models.QualityScore{}, fmt.Errorf("invoking judge model %q: %w", j.model, err)
	}

	return parseVerdict(completion.Text)
}

func parseVerdict(text string) (models.QualityScore, error) {
	payload := stripCodeFence(text)

	var value any
	if err := json.Unmarshal([]byte(payload), &value); err != nil {
		return models.QualityScore{}, &ParseError{
			Message: fmt.Sprintf("verdict is not valid JSON: %v", err),
			Raw:     truncate(text, 200),
		}
	}

	if err := verdictSchema.Validate(value); err != nil {
		return models.QualityScore{}, &ParseError{
			Message: fmt.Sprintf("verdict does not match schema: %v", err),
			Raw:     truncate(text, 200),
		}
	}

	var v verdict
	if err := mapstructure.Decode(value, &v); err != nil {
		return models.QualityScore{}, &ParseError{
			Message: fmt.Sprintf("decoding verdict: %v", err),
			Raw:     truncate(text, 200),
		}
	}

	overall := v.OverallScore
	if overall < 0 || overall > 10 {
		clamped := math.Min(10, math.Max(0, overall))
		slog.Warn("judge overall score out of range, clamping",
			"overall_score", overall, "clamped", clamped)
		overall = clamped
	}

	return models.QualityScore{
		Score:    math.Round(overall*10) / 10,
		Feedback: v.Feedback,
		CriteriaScores: map[string]float64{
			"clarity":      v.Clarity,
			"accuracy":     v.Accuracy,
			"completeness": v.Completeness,
			"relevance":    v.Relevance,
			"style_match":  v.StyleMatch,
		},
	}, nil
}

// stripCodeFence removes a surrounding markdown code fence, with or without
// a language tag, from the judge's output.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimSuffix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[idx+1:]
	}
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
