package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"gtaa-lab/internal/domain"
	"gtaa-lab/internal/storage"
)

// PriceStore is an in-memory implementation of storage.PriceStore.
type PriceStore struct {
	mu   sync.RWMutex
	data map[string]map[time.Time]*domain.PricePoint // ticker -> date -> point
}

// NewPriceStore creates a new in-memory price store.
func NewPriceStore() *PriceStore {
	return &PriceStore{
		data: make(map[string]map[time.Time]*domain.PricePoint),
	}
}

var _ storage.PriceStore = (*PriceStore)(nil)

// ReplaceFrom deletes rows of ticker dated on or after the earliest point, then inserts points.
func (s *PriceStore) ReplaceFrom(_ context.Context, ticker string, points []*domain.PricePoint) error {
	if ticker == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}

	from := points[0].TradeDate
	seen := make(map[time.Time]struct{}, len(points))
	for _, p := range points {
		if p == nil || p.Ticker != ticker {
			return storage.ErrInvalidInput
		}
		date := domain.DateOnly(p.TradeDate)
		if _, dup := seen[date]; dup {
			return storage.ErrDuplicateKey
		}
		seen[date] = struct{}{}
		if date.Before(from) {
			from = date
		}
	}
	from = domain.DateOnly(from)

	s.mu.Lock()
	defer s.mu.Unlock()

	series, ok := s.data[ticker]
	if !ok {
		series = make(map[time.Time]*domain.PricePoint, len(points))
		s.data[ticker] = series
	}
	for date := range series {
		if !date.Before(from) {
			delete(series, date)
		}
	}
	for _, p := range points {
		copy := *p
		copy.TradeDate = domain.DateOnly(p.TradeDate)
		series[copy.TradeDate] = &copy
	}

	return nil
}

// GetFeatureSeries retrieves all points for tickers, ordered by (ticker, trade_date) ASC.
func (s *PriceStore) GetFeatureSeries(_ context.Context, tickers []string) ([]*domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PricePoint
	for _, ticker := range uniqueSorted(tickers) {
		for _, p := range s.data[ticker] {
			copy := *p
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Ticker != result[j].Ticker {
			return result[i].Ticker < result[j].Ticker
		}
		return result[i].TradeDate.Before(result[j].TradeDate)
	})

	return result, nil
}

// GetCloseByDate returns adj_close by ticker for the given date.
func (s *PriceStore) GetCloseByDate(_ context.Context, tickers []string, date time.Time) (map[string]float64, error) {
	date = domain.DateOnly(date)

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]float64, len(tickers))
	for _, ticker := range tickers {
		if p, ok := s.data[ticker][date]; ok {
			result[ticker] = p.AdjClose
		}
	}
	return result, nil
}

func uniqueSorted(values []string) []string {
	set := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := set[v]; ok {
			continue
		}
		set[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
