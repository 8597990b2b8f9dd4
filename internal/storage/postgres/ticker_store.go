package postgres

import (
	"context"
	"fmt"
	"time"

	"gtaa-lab/internal/domain"
	"gtaa-lab/internal/storage"
)

// TickerStore implements storage.TickerStore using PostgreSQL.
type TickerStore struct {
	pool *Pool
}

// NewTickerStore creates a new TickerStore.
func NewTickerStore(pool *Pool) *TickerStore {
	return &TickerStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TickerStore = (*TickerStore)(nil)

// GetAll retrieves all tickers ordered by symbol.
func (s *TickerStore) GetAll(ctx context.Context) ([]*domain.Ticker, error) {
	defer observe("ticker_get_all", time.Now())

	rows, err := s.pool.Query(ctx, `SELECT ticker, last_trade_date FROM ticker_list ORDER BY ticker ASC`)
	if err != nil {
		return nil, fmt.Errorf("get tickers: %w", err)
	}
	defer rows.Close()

	var tickers []*domain.Ticker
	for rows.Next() {
		var t domain.Ticker
		if err := rows.Scan(&t.Symbol, &t.LastTradeDate); err != nil {
			return nil, fmt.Errorf("scan ticker row: %w", err)
		}
		tickers = append(tickers, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ticker rows: %w", err)
	}
	return tickers, nil
}

// UpdateLastTradeDate records the latest imported date, creating the ticker if needed.
func (s *TickerStore) UpdateLastTradeDate(ctx context.Context, symbol string, date time.Time) error {
	if symbol == "" {
		return storage.ErrInvalidInput
	}

	defer observe("ticker_update_last_trade_date", time.Now())

	query := `
		INSERT INTO ticker_list (ticker, last_trade_date) VALUES ($1, $2)
		ON CONFLICT (ticker) DO UPDATE SET last_trade_date = EXCLUDED.last_trade_date
	`
	if _, err := s.pool.Exec(ctx, query, symbol, domain.DateOnly(date)); err != nil {
		return fmt.Errorf("update last trade date: %w", err)
	}
	return nil
}
