package gateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the Mistral API endpoint.
const DefaultBaseURL = "https://api.mistral.ai"

// DefaultTimeout bounds each individual provider call. Expiry is surfaced
// as ErrTimeout and treated by callers exactly like any other invocation
// failure.
const DefaultTimeout = 120 * time.Second

// Client is a Gateway backed by the Mistral chat-completions API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API endpoint (used by tests and proxies).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = h }
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// NewClient creates a Mistral API client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: http.DefaultClient,
		timeout:    DefaultTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *chatUsage `json:"usage"`
}

type chatStreamEvent struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *chatUsage `json:"usage"`
}

// Invoke implements [Gateway].
func (c *Client) Invoke(ctx context.Context, req Request) (*Completion, error) {
	resp, err := c.post(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &APIError{Message: fmt.Sprintf("decoding response body: %v", err), kind: ErrMalformedResponse}
	}
	if len(parsed.Choices) == 0 {
		return nil, &APIError{Message: "response has no choices", kind: ErrMalformedResponse}
	}
	if parsed.Usage == nil {
		return nil, &APIError{Message: "response has no usage accounting", kind: ErrMalformedResponse}
	}

	return &Completion{
		Text:         parsed.Choices[0].Message.Content,
		InputTokens:  parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
	}, nil
}

// InvokeStream implements [Gateway]. The returned stream is fed by a
// background reader and ends with a Final chunk carrying the usage totals
// the provider attaches to its last data event. The per-call timeout covers
// the whole stream; expiry surfaces as ErrTimeout via Err.
func (c *Client) InvokeStream(ctx context.Context, req Request) (*Stream, error) {
	streamCtx, cancel := context.WithTimeout(ctx, c.timeout)

	resp, err := c.postWithContext(streamCtx, req, true)
	if err != nil {
		cancel()
		return nil, err
	}

	chunks := make(chan Chunk, 16)
	done := make(chan struct{})
	var streamErr error

	s := &Stream{
		chunks: chunks,
		err:    &streamErr,
		done:   done,
		cancel: cancel,
	}

	go func() {
		defer close(done)
		defer close(chunks)
		defer resp.Body.Close() //nolint:errcheck
		defer cancel()

		streamErr = c.readEvents(streamCtx, resp.Body, chunks)
	}()

	return s, nil
}

// readEvents consumes the SSE body, forwarding delta chunks and emitting the
// Final chunk when the provider's [DONE] sentinel arrives.
func (c *Client) readEvents(ctx context.Context, body io.Reader, chunks chan<- Chunk) error {
	var usage chatUsage
	sawUsage := false

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

		if payload == "[DONE]" {
			if !sawUsage {
				return &APIError{Message: "stream ended without usage accounting", kind: ErrMalformedResponse}
			}
			final := Chunk{InputTokens: usage.PromptTokens, OutputTokens: usage.CompletionTokens, Final: true}
			select {
			case chunks <- final:
				return nil
			case <-ctx.Done():
				return streamCtxErr(ctx)
			}
		}

		var evt chatStreamEvent
		if err := json.Unmarshal([]byte(payload), &evt); err != nil {
			return &APIError{Message: fmt.Sprintf("decoding stream event: %v", err), kind: ErrMalformedResponse}
		}
		if evt.Usage != nil {
			usage = *evt.Usage
			sawUsage = true
		}
		if len(evt.Choices) == 0 || evt.Choices[0].Delta.Content == "" {
			continue
		}

		select {
		case chunks <- Chunk{Text: evt.Choices[0].Delta.Content}:
		case <-ctx.Done():
			return streamCtxErr(ctx)
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return streamCtxErr(ctx)
		}
		return &APIError{Message: fmt.Sprintf("reading stream: %v", err), kind: ErrMalformedResponse}
	}
	return &APIError{Message: "stream ended without [DONE] sentinel", kind: ErrMalformedResponse}
}

func streamCtxErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &APIError{Message: "stream deadline exceeded", kind: ErrTimeout}
	}
	return ctx.Err()
}

func (c *Client) post(ctx context.Context, req Request, stream bool) (*http.Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	resp, err := c.postWithContext(callCtx, req, stream)
	if err != nil {
		cancel()
		return nil, err
	}
	// Tie the timeout to the body's lifetime for non-streaming calls.
	resp.Body = &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (c *Client) postWithContext(ctx context.Context, req Request, stream bool) (*http.Response, error) {
	messages := []chatMessage{}
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &APIError{Message: "request deadline exceeded", kind: ErrTimeout}
		}
		return nil, fmt.Errorf("calling provider: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close() //nolint:errcheck
		return nil, classifyHTTPError(resp)
	}
	return resp, nil
}

// classifyHTTPError maps a non-200 provider response to a distinguishable
// failure kind.
func classifyHTTPError(resp *http.Response) error {
	msg := readErrorMessage(resp.Body)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &APIError{StatusCode: resp.StatusCode, Message: msg, kind: ErrRateLimited}
	case resp.StatusCode == http.StatusNotFound,
		resp.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(msg), "model"):
		return &APIError{StatusCode: resp.StatusCode, Message: msg, kind: ErrInvalidModel}
	case resp.StatusCode == http.StatusGatewayTimeout:
		return &APIError{StatusCode: resp.StatusCode, Message: msg, kind: ErrTimeout}
	default:
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
}

func readErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return "no error detail"
	}
	var parsed struct {
		Message string `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error.Message != "" {
			return parsed.Error.Message
		}
	}
	return strings.TrimSpace(string(data))
}

type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	c.cancel()
	return c.ReadCloser.Close()
}
