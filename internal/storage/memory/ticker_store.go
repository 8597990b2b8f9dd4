package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"gtaa-lab/internal/domain"
	"gtaa-lab/internal/storage"
)

// TickerStore is an in-memory implementation of storage.TickerStore.
type TickerStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Ticker
}

// NewTickerStore creates a new in-memory ticker store.
func NewTickerStore() *TickerStore {
	return &TickerStore{
		data: make(map[string]*domain.Ticker),
	}
}

var _ storage.TickerStore = (*TickerStore)(nil)

// GetAll retrieves all tickers ordered by symbol.
func (s *TickerStore) GetAll(_ context.Context) ([]*domain.Ticker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Ticker, 0, len(s.data))
	for _, t := range s.data {
		result = append(result, copyTicker(t))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol < result[j].Symbol
	})

	return result, nil
}

// UpdateLastTradeDate records the latest imported date, creating the ticker if needed.
func (s *TickerStore) UpdateLastTradeDate(_ context.Context, symbol string, date time.Time) error {
	if symbol == "" {
		return storage.ErrInvalidInput
	}

	d := domain.DateOnly(date)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[symbol] = &domain.Ticker{Symbol: symbol, LastTradeDate: &d}
	return nil
}

func copyTicker(t *domain.Ticker) *domain.Ticker {
	copy := &domain.Ticker{Symbol: t.Symbol}
	if t.LastTradeDate != nil {
		d := *t.LastTradeDate
		copy.LastTradeDate = &d
	}
	return copy
}
