// Package webapi exposes the evaluation engine over an HTTP JSON API.
package webapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/malekgatoufi/mistralmeter/internal/dataset"
	"github.com/malekgatoufi/mistralmeter/internal/engine"
	"github.com/malekgatoufi/mistralmeter/internal/gateway"
	"github.com/malekgatoufi/mistralmeter/internal/judge"
	"github.com/malekgatoufi/mistralmeter/internal/models"
	"github.com/malekgatoufi/mistralmeter/internal/pricing"
)

// Version is set at build time or defaults to dev.
var Version = "0.2.0"

// Handlers holds the HTTP handler methods for the web API.
type Handlers struct {
	engine      *engine.Engine
	store       ResultStore
	datasetsDir string
}

// NewHandlers creates a new Handlers backed by the given engine and store.
func NewHandlers(e *engine.Engine, store ResultStore, datasetsDir string) *Handlers {
	return &Handlers{engine: e, store: store, datasetsDir: datasetsDir}
}

// HandleHealth returns a simple health check response.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: Version,
	})
}

// HandleModels lists the models the engine can evaluate.
func (h *Handlers) HandleModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, models.KnownModels)
}

// HandleDatasets lists the JSON datasets available to batch evaluations.
func (h *Handlers) HandleDatasets(w http.ResponseWriter, _ *http.Request) {
	infos, err := dataset.List(h.datasetsDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if infos == nil {
		infos = []dataset.Info{}
	}
	writeJSON(w, http.StatusOK, infos)
}

// HandleEvaluate runs a single-prompt evaluation, or a variance analysis
// when runs > 1.
func (h *Handlers) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	evalReq := engine.EvaluateRequest{
		Prompt: models.EvalPrompt{
			Text:            req.Prompt,
			ExpectedStyle:   req.ExpectedStyle,
			ReferenceAnswer: req.ReferenceAnswer,
		},
		Model:       req.Model,
		JudgeModel:  req.JudgeModel,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Runs:        req.Runs,
	}

	if req.Runs > 1 {
		result, err := h.engine.EvaluateVariance(r.Context(), evalReq)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		h.store.Put(KindVariance, result.Model, result)
		writeJSON(w, http.StatusOK, result)
		return
	}

	result, err := h.engine.Evaluate(r.Context(), evalReq)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	h.store.Put(KindEvaluate, result.Model, result)
	writeJSON(w, http.StatusOK, result)
}

// HandleEvaluateStream relays model response tokens to the client as
// server-sent events, one JSON [StreamEvent] per event. The terminal event
// carries token counts and the estimated cost. No judging happens on this
// path; it exists for live response display.
func (h *Handlers) HandleEvaluateStream(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	model := req.Model
	if model == "" {
		model = engine.DefaultModel
	}

	stream, err := h.engine.Stream(r.Context(), engine.EvaluateRequest{
		Prompt: models.EvalPrompt{
			Text:          req.Prompt,
			ExpectedStyle: req.ExpectedStyle,
		},
		Model:       model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, _ := w.(http.Flusher)

	for chunk := range stream.Chunks() {
		if chunk.Final {
			writeEvent(w, flusher, StreamEvent{
				Done:             true,
				InputTokens:      chunk.InputTokens,
				OutputTokens:     chunk.OutputTokens,
				EstimatedCostUSD: h.engine.EstimateCost(model, chunk.InputTokens, chunk.OutputTokens),
			})
			continue
		}
		writeEvent(w, flusher, StreamEvent{Text: chunk.Text})
	}
	if err := stream.Err(); err != nil {
		writeEvent(w, flusher, StreamEvent{Error: err.Error()})
	}
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, event StreamEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	if flusher != nil {
		flusher.Flush()
	}
}

// HandleBatch runs a batch evaluation over the posted prompt set.
func (h *Handlers) HandleBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Prompts) == 0 {
		writeError(w, http.StatusBadRequest, "prompts are required")
		return
	}

	result, err := h.engine.EvaluateBatch(r.Context(), engine.BatchRequest{
		Prompts:     req.Prompts,
		Model:       req.Model,
		JudgeModel:  req.JudgeModel,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	h.store.Put(KindBatch, result.Model, result)
	writeJSON(w, http.StatusOK, result)
}

// HandleCompare runs a two-model comparison.
func (h *Handlers) HandleCompare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Prompt == "" || req.ModelA == "" || req.ModelB == "" {
		writeError(w, http.StatusBadRequest, "prompt, model_a, and model_b are required")
		return
	}

	result, err := h.engine.Compare(r.Context(), engine.CompareRequest{
		Prompt: models.EvalPrompt{
			Text:          req.Prompt,
			ExpectedStyle: req.ExpectedStyle,
		},
		ModelA:      req.ModelA,
		ModelB:      req.ModelB,
		JudgeModel:  req.JudgeModel,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	h.store.Put(KindCompare, req.ModelA+" vs "+req.ModelB, result)
	writeJSON(w, http.StatusOK, result)
}

// HandleCost prices a token estimate.
func (h *Handlers) HandleCost(w http.ResponseWriter, r *http.Request) {
	var req CostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, "model is required")
		return
	}
	if req.InputTokens < 0 || req.OutputTokens < 0 {
		writeError(w, http.StatusBadRequest, "token counts must be non-negative")
		return
	}

	writeJSON(w, http.StatusOK, CostResponse{
		Model:            req.Model,
		InputTokens:      req.InputTokens,
		OutputTokens:     req.OutputTokens,
		EstimatedCostUSD: h.engine.EstimateCost(req.Model, req.InputTokens, req.OutputTokens),
	})
}

// HandleResults lists stored results, newest first.
func (h *Handlers) HandleResults(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.store.List())
}

// HandleResultDetail returns a single stored result.
func (h *Handlers) HandleResultDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "result id is required")
		return
	}

	detail, err := h.store.Get(id)
	if err != nil {
		if errors.Is(err, ErrResultNotFound) {
			writeError(w, http.StatusNotFound, "result not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// RegisterRoutes registers all web API routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, h *Handlers) {
	mux.HandleFunc("GET /api/health", h.HandleHealth)
	mux.HandleFunc("GET /api/models", h.HandleModels)
	mux.HandleFunc("GET /api/datasets", h.HandleDatasets)
	mux.HandleFunc("POST /api/evaluate", h.HandleEvaluate)
	mux.HandleFunc("POST /api/evaluate/stream", h.HandleEvaluateStream)
	mux.HandleFunc("POST /api/evaluate/batch", h.HandleBatch)
	mux.HandleFunc("POST /api/compare", h.HandleCompare)
	mux.HandleFunc("POST /api/cost", h.HandleCost)
	mux.HandleFunc("GET /api/results", h.HandleResults)
	mux.HandleFunc("GET /api/results/{id}", h.HandleResultDetail)
}

// CORSMiddleware wraps a handler with CORS headers.
// If allowedOrigins is empty, no CORS header is set (same-origin only).
// Otherwise, the request Origin is checked against the allowed list.
func CORSMiddleware(next http.Handler, allowedOrigins ...string) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if len(allowedOrigins) > 0 && origin != "" && allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeEngineError maps engine error kinds onto HTTP status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	var (
		cfgErr     *judge.ConfigurationError
		valErr     *engine.ValidationError
		unknownErr *pricing.UnknownModelError
		parseErr   *judge.ParseError
	)
	switch {
	case errors.As(err, &cfgErr), errors.As(err, &valErr), errors.As(err, &unknownErr):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, gateway.ErrInvalidModel):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, gateway.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, gateway.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.As(err, &parseErr), errors.Is(err, gateway.ErrMalformedResponse):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{Error: msg, Code: code})
}
