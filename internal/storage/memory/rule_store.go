package memory

import (
	"context"
	"sync"

	"gtaa-lab/internal/storage"
)

// RuleStore is an in-memory implementation of storage.RuleStore.
type RuleStore struct {
	mu   sync.RWMutex
	data map[int64][]string // portfolio_id -> rules in insertion order
}

// NewRuleStore creates a new in-memory rule store.
func NewRuleStore() *RuleStore {
	return &RuleStore{
		data: make(map[int64][]string),
	}
}

var _ storage.RuleStore = (*RuleStore)(nil)

// Insert appends a rule to a portfolio.
func (s *RuleStore) Insert(_ context.Context, portfolioID int64, ruleText string) error {
	if ruleText == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[portfolioID] = append(s.data[portfolioID], ruleText)
	return nil
}

// GetRules retrieves rule texts of a portfolio in insertion order.
func (s *RuleStore) GetRules(_ context.Context, portfolioID int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rules := s.data[portfolioID]
	result := make([]string, len(rules))
	copy(result, rules)
	return result, nil
}
