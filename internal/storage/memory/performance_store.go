package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gtaa-lab/internal/domain"
	"gtaa-lab/internal/storage"
)

// PerformanceStore is an in-memory implementation of storage.PerformanceStore.
type PerformanceStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PerformanceRecord // keyed by composite key
}

// NewPerformanceStore creates a new in-memory performance store.
func NewPerformanceStore() *PerformanceStore {
	return &PerformanceStore{
		data: make(map[string]*domain.PerformanceRecord),
	}
}

var _ storage.PerformanceStore = (*PerformanceStore)(nil)

func performanceKey(r *domain.PerformanceRecord) string {
	return fmt.Sprintf("%s|%s|%s", r.RunID, r.EvaluationDate.Format("2006-01-02"), r.Ticker)
}

// InsertBulk adds records atomically. Fails entire batch on any duplicate.
func (s *PerformanceStore) InsertBulk(_ context.Context, records []*domain.PerformanceRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r == nil || r.RunID == "" || r.Ticker == "" {
			return storage.ErrInvalidInput
		}
		key := performanceKey(r)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, r := range records {
		copy := *r
		s.data[performanceKey(r)] = &copy
	}

	return nil
}

// GetByRunID retrieves records of a run ordered by evaluation_date ASC, ticker ASC.
func (s *PerformanceStore) GetByRunID(_ context.Context, runID string) ([]*domain.PerformanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PerformanceRecord
	for _, r := range s.data {
		if r.RunID == runID {
			copy := *r
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].EvaluationDate.Equal(result[j].EvaluationDate) {
			return result[i].EvaluationDate.Before(result[j].EvaluationDate)
		}
		return result[i].Ticker < result[j].Ticker
	})

	return result, nil
}
