package webapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/malekgatoufi/mistralmeter/internal/engine"
	"github.com/malekgatoufi/mistralmeter/internal/gateway"
	"github.com/malekgatoufi/mistralmeter/internal/models"
)

const verdict = `{"clarity": 8, "accuracy": 8, "completeness": 8, "relevance": 8,
	"style_match": 8, "overall_score": 8.0, "feedback": "ok"}`

// newTestServer wires a full API over a scripted gateway.
func newTestServer(t *testing.T, gw gateway.Gateway) (*httptest.Server, *MemoryStore) {
	t.Helper()

	store := NewMemoryStore()
	mux := http.NewServeMux()
	RegisterRoutes(mux, NewHandlers(engine.New(gw, engine.WithoutStreaming()), store, t.TempDir()))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, store
}

func happyGateway() *gateway.MockGateway {
	return &gateway.MockGateway{
		InvokeFunc: func(ctx context.Context, req gateway.Request) (*gateway.Completion, error) {
			if strings.Contains(req.Prompt, "expert evaluator") {
				return &gateway.Completion{Text: verdict, InputTokens: 100, OutputTokens: 50}, nil
			}
			return &gateway.Completion{Text: "an answer", InputTokens: 10, OutputTokens: 20}, nil
		},
	}
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t, happyGateway())

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	health := decodeBody[HealthResponse](t, resp)
	require.Equal(t, "ok", health.Status)
}

func TestHandleModels(t *testing.T) {
	srv, _ := newTestServer(t, happyGateway())

	resp, err := http.Get(srv.URL + "/api/models")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decodeBody[[]models.ModelInfo](t, resp)
	require.Len(t, list, len(models.KnownModels))
}

func TestHandleEvaluate(t *testing.T) {
	srv, store := newTestServer(t, happyGateway())

	resp := postJSON(t, srv.URL+"/api/evaluate", `{"prompt": "Explain maps."}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := decodeBody[models.EvalResult](t, resp)
	require.Equal(t, "mistral-small-latest", result.Model)
	require.Equal(t, "an answer", result.Response)
	require.Equal(t, 8.0, result.Metrics.Quality.Score)

	// The result is retrievable afterwards.
	summaries := store.List()
	require.Len(t, summaries, 1)
	require.Equal(t, KindEvaluate, summaries[0].Kind)
}

func TestHandleEvaluateVariance(t *testing.T) {
	srv, _ := newTestServer(t, happyGateway())

	resp := postJSON(t, srv.URL+"/api/evaluate", `{"prompt": "q", "runs": 3}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := decodeBody[models.VarianceResult](t, resp)
	require.Equal(t, 3, result.CompletedRuns)
	require.InDelta(t, 8.0, result.Quality.Mean, 1e-9)
}

func TestHandleEvaluateExplicitZeroTemperature(t *testing.T) {
	gw := happyGateway()
	srv, _ := newTestServer(t, gw)

	resp := postJSON(t, srv.URL+"/api/evaluate", `{"prompt": "q", "temperature": 0}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The first recorded call is the evaluated model's invocation.
	require.NotEmpty(t, gw.Calls())
	require.Equal(t, 0.0, gw.Calls()[0].Temperature)
}

func TestHandleEvaluateBadRequests(t *testing.T) {
	srv, _ := newTestServer(t, happyGateway())

	tests := []struct {
		name string
		body string
	}{
		{name: "empty body", body: ``},
		{name: "missing prompt", body: `{"model": "mistral-small-latest"}`},
		{name: "self judging", body: `{"prompt": "q", "model": "mistral-large-latest"}`},
		{name: "unknown model", body: `{"prompt": "q", "model": "gpt-4"}`},
		{name: "bad temperature", body: `{"prompt": "q", "temperature": 3.0}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/api/evaluate", tt.body)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)

			errResp := decodeBody[ErrorResponse](t, resp)
			require.NotEmpty(t, errResp.Error)
		})
	}
}

func TestHandleEvaluateGatewayErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "rate limited", err: gateway.ErrRateLimited, wantStatus: http.StatusTooManyRequests},
		{name: "timeout", err: gateway.ErrTimeout, wantStatus: http.StatusGatewayTimeout},
		{name: "malformed", err: gateway.ErrMalformedResponse, wantStatus: http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, &gateway.MockGateway{
				InvokeFunc: func(ctx context.Context, req gateway.Request) (*gateway.Completion, error) {
					return nil, tt.err
				},
			})

			resp := postJSON(t, srv.URL+"/api/evaluate", `{"prompt": "q"}`)
			require.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestHandleEvaluateStream(t *testing.T) {
	srv, _ := newTestServer(t, happyGateway())

	resp := postJSON(t, srv.URL+"/api/evaluate/stream", `{"prompt": "q"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var events []StreamEvent
	for _, line := range strings.Split(string(raw), "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev StreamEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}

	require.Len(t, events, 2)
	require.Equal(t, "an answer", events[0].Text)

	final := events[1]
	require.True(t, final.Done)
	require.Equal(t, 10, final.InputTokens)
	require.Equal(t, 20, final.OutputTokens)
	require.Greater(t, final.EstimatedCostUSD, 0.0)
}

func TestHandleEvaluateStreamRejectsUnknownModel(t *testing.T) {
	srv, _ := newTestServer(t, happyGateway())

	resp := postJSON(t, srv.URL+"/api/evaluate/stream", `{"prompt": "q", "model": "gpt-4"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleBatch(t *testing.T) {
	srv, _ := newTestServer(t, happyGateway())

	resp := postJSON(t, srv.URL+"/api/evaluate/batch",
		`{"prompts": [{"prompt": "a"}, {"prompt": "b"}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := decodeBody[models.BatchResult](t, resp)
	require.Equal(t, 2, result.Summary.Count)
	require.Empty(t, result.Errors)
}

func TestHandleBatchRequiresPrompts(t *testing.T) {
	srv, _ := newTestServer(t, happyGateway())

	resp := postJSON(t, srv.URL+"/api/evaluate/batch", `{"prompts": []}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleCompare(t *testing.T) {
	srv, _ := newTestServer(t, happyGateway())

	resp := postJSON(t, srv.URL+"/api/compare",
		`{"prompt": "q", "model_a": "mistral-small-latest", "model_b": "open-mistral-7b"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := decodeBody[models.CompareResult](t, resp)
	require.Empty(t, result.Winner)
	require.Contains(t, result.ComparisonSummary, "tie")
}

func TestHandleCompareIdenticalModels(t *testing.T) {
	srv, _ := newTestServer(t, happyGateway())

	resp := postJSON(t, srv.URL+"/api/compare",
		`{"prompt": "q", "model_a": "mistral-small-latest", "model_b": "mistral-small-latest"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleCost(t *testing.T) {
	srv, _ := newTestServer(t, happyGateway())

	resp := postJSON(t, srv.URL+"/api/cost",
		`{"model": "mistral-small-latest", "input_tokens": 1000, "output_tokens": 1000}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cost := decodeBody[CostResponse](t, resp)
	require.Equal(t, 0.008, cost.EstimatedCostUSD)
}

func TestHandleCostUnknownModelIsZero(t *testing.T) {
	srv, _ := newTestServer(t, happyGateway())

	resp := postJSON(t, srv.URL+"/api/cost",
		`{"model": "gpt-4", "input_tokens": 1000, "output_tokens": 1000}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cost := decodeBody[CostResponse](t, resp)
	require.Equal(t, 0.0, cost.EstimatedCostUSD)
}

func TestHandleResults(t *testing.T) {
	srv, store := newTestServer(t, happyGateway())

	id := store.Put(KindEvaluate, "mistral-small-latest", models.EvalResult{Prompt: "q"})

	resp, err := http.Get(srv.URL + "/api/results")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	summaries := decodeBody[[]ResultSummary](t, resp)
	require.Len(t, summaries, 1)
	require.Equal(t, id, summaries[0].ID)

	detailResp, err := http.Get(srv.URL + "/api/results/" + id)
	require.NoError(t, err)
	defer detailResp.Body.Close()
	require.Equal(t, http.StatusOK, detailResp.StatusCode)

	detail := decodeBody[ResultDetail](t, detailResp)
	require.Equal(t, KindEvaluate, detail.Kind)
}

func TestHandleResultDetailNotFound(t *testing.T) {
	srv, _ := newTestServer(t, happyGateway())

	resp, err := http.Get(srv.URL + "/api/results/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCORSMiddleware(t *testing.T) {
	handler := CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), "http://localhost:5173")

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/health", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
}
