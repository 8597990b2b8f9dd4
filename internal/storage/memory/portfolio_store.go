package memory

import (
	"context"
	"sort"
	"sync"

	"gtaa-lab/internal/domain"
	"gtaa-lab/internal/storage"
)

// PortfolioStore is an in-memory implementation of storage.PortfolioStore.
type PortfolioStore struct {
	mu     sync.RWMutex
	data   map[int64]*domain.PortfolioConfig
	groups map[int64]map[string]struct{} // ticker_group_id -> tickers
}

// NewPortfolioStore creates a new in-memory portfolio store.
func NewPortfolioStore() *PortfolioStore {
	return &PortfolioStore{
		data:   make(map[int64]*domain.PortfolioConfig),
		groups: make(map[int64]map[string]struct{}),
	}
}

var _ storage.PortfolioStore = (*PortfolioStore)(nil)

// Insert adds a portfolio. Returns ErrDuplicateKey if portfolio_id exists.
func (s *PortfolioStore) Insert(_ context.Context, p *domain.PortfolioConfig) error {
	if p == nil || p.Name == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.PortfolioID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *p
	s.data[p.PortfolioID] = &copy
	return nil
}

// GetAll retrieves all portfolios ordered by portfolio_id.
func (s *PortfolioStore) GetAll(_ context.Context) ([]*domain.PortfolioConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.PortfolioConfig, 0, len(s.data))
	for _, p := range s.data {
		copy := *p
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].PortfolioID < result[j].PortfolioID
	})

	return result, nil
}

// GetByID retrieves a portfolio. Returns ErrNotFound if not exists.
func (s *PortfolioStore) GetByID(_ context.Context, portfolioID int64) (*domain.PortfolioConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.data[portfolioID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *p
	return &copy, nil
}

// AddGroupTickers adds tickers to a ticker group. Existing members are ignored.
func (s *PortfolioStore) AddGroupTickers(_ context.Context, groupID int64, tickers ...string) error {
	for _, tk := range tickers {
		if tk == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[groupID]
	if !ok {
		group = make(map[string]struct{}, len(tickers))
		s.groups[groupID] = group
	}
	for _, tk := range tickers {
		group[tk] = struct{}{}
	}
	return nil
}

// GetTickers retrieves the ticker group members of a portfolio, ordered by ticker.
func (s *PortfolioStore) GetTickers(_ context.Context, portfolioID int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.data[portfolioID]
	if !ok {
		return nil, storage.ErrNotFound
	}

	group := s.groups[p.TickerGroupID]
	result := make([]string, 0, len(group))
	for tk := range group {
		result = append(result, tk)
	}
	sort.Strings(result)
	return result, nil
}
