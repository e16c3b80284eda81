package gateway

import (
	"context"
	"strings"
	"sync"
)

// MockGateway is a scriptable Gateway for tests. By default it echoes the
// prompt with fixed token counts; set InvokeFunc or StreamChunks to script
// specific behavior. It records every request it receives.
type MockGateway struct {
	mu sync.Mutex

	// InvokeFunc, when set, handles Invoke calls (and InvokeStream calls
	// unless StreamChunks is set, in which case the completion is split
	// into those chunks).
	InvokeFunc func(ctx context.Context, req Request) (*Completion, error)

	// StreamChunks, when set, is the chunk text sequence emitted by
	// InvokeStream before the Final chunk.
	StreamChunks []string

	calls []Request
}

// Calls returns a copy of every request received so far.
func (m *MockGateway) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of requests received so far.
func (m *MockGateway) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func (m *MockGateway) record(req Request) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
}

func (m *MockGateway) complete(ctx context.Context, req Request) (*Completion, error) {
	if m.InvokeFunc != nil {
		return m.InvokeFunc(ctx, req)
	}
	text := "Mock response for: " + req.Prompt
	return &Completion{
		Text:         text,
		InputTokens:  len(strings.Fields(req.Prompt)),
		OutputTokens: len(strings.Fields(text)),
	}, nil
}

// Invoke implements [Gateway].
func (m *MockGateway) Invoke(ctx context.Context, req Request) (*Completion, error) {
	m.record(req)
	return m.complete(ctx, req)
}

// InvokeStream implements [Gateway].
func (m *MockGateway) InvokeStream(ctx context.Context, req Request) (*Stream, error) {
	m.record(req)

	completion, err := m.complete(ctx, req)
	if err != nil {
		return nil, err
	}

	parts := m.StreamChunks
	if parts == nil {
		parts = []string{completion.Text}
	}

	chunks := make(chan Chunk, len(parts)+1)
	for _, p := range parts {
		chunks <- Chunk{Text: p}
	}
	chunks <- Chunk{InputTokens: completion.InputTokens, OutputTokens: completion.OutputTokens, Final: true}
	close(chunks)

	done := make(chan struct{})
	close(done)
	var noErr error

	return &Stream{
		chunks: chunks,
		err:    &noErr,
		done:   done,
		cancel: func() {},
	}, nil
}
