package webapi

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrResultNotFound is returned when a result ID does not match any stored
// result.
var ErrResultNotFound = errors.New("result not found")

// Result kinds stored by the API.
const (
	KindEvaluate = "evaluate"
	KindVariance = "variance"
	KindBatch    = "batch"
	KindCompare  = "compare"
)

// ResultStore keeps evaluation results produced during this server's
// lifetime. The engine itself is stateless; the store only exists so API
// clients can fetch results they triggered earlier in the session.
type ResultStore interface {
	// Put stores a result and returns its assigned id.
	Put(kind, model string, result any) string
	// List returns summaries of all results, newest first.
	List() []ResultSummary
	// Get returns a single stored result.
	Get(id string) (*ResultDetail, error)
}

// MemoryStore is an in-memory ResultStore.
type MemoryStore struct {
	mu      sync.RWMutex
	results map[string]*ResultDetail
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{results: make(map[string]*ResultDetail)}
}

// Put stores a result and returns its assigned id.
func (s *MemoryStore) Put(kind, model string, result any) string {
	detail := &ResultDetail{
		ResultSummary: ResultSummary{
			ID:        uuid.NewString(),
			Kind:      kind,
			Model:     model,
			CreatedAt: time.Now().UTC(),
		},
		Result: result,
	}

	s.mu.Lock()
	s.results[detail.ID] = detail
	s.mu.Unlock()
	return detail.ID
}

// List returns summaries of all results, newest first.
func (s *MemoryStore) List() []ResultSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]ResultSummary, 0, len(s.results))
	for _, d := range s.results {
		summaries = append(summaries, d.ResultSummary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries
}

// Get returns a single stored result.
func (s *MemoryStore) Get(id string) (*ResultDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.results[id]
	if !ok {
		return nil, ErrResultNotFound
	}
	return d, nil
}

// Ensure MemoryStore satisfies ResultStore.
var _ ResultStore = (*MemoryStore)(nil)
