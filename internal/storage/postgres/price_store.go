package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"gtaa-lab/internal/domain"
	"gtaa-lab/internal/storage"
)

// PriceStore implements storage.PriceStore using PostgreSQL.
type PriceStore struct {
	pool *Pool
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(pool *Pool) *PriceStore {
	return &PriceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

// ReplaceFrom deletes rows of ticker dated on or after the earliest point, then inserts points
// in one transaction.
func (s *PriceStore) ReplaceFrom(ctx context.Context, ticker string, points []*domain.PricePoint) error {
	if ticker == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}

	from := points[0].TradeDate
	for _, p := range points {
		if p == nil || p.Ticker != ticker {
			return storage.ErrInvalidInput
		}
		if p.TradeDate.Before(from) {
			from = p.TradeDate
		}
	}

	defer observe("price_replace_from", time.Now())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM ticker_price WHERE ticker = $1 AND trade_date >= $2`, ticker, domain.DateOnly(from)); err != nil {
		return fmt.Errorf("delete prices from %s: %w", from.Format("2006-01-02"), err)
	}

	rows := make([][]any, 0, len(points))
	for _, p := range points {
		rows = append(rows, []any{
			p.Ticker,
			domain.DateOnly(p.TradeDate),
			p.Open,
			p.High,
			p.Low,
			p.Close,
			p.AdjClose,
			p.Volume,
			p.TradeDay,
			p.ReverseTradeDay,
		})
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"ticker_price"},
		[]string{
			"ticker", "trade_date", "open_price", "high_price", "low_price",
			"close_price", "adj_close_price", "volume", "trade_day", "rev_trade_day",
		},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("copy prices: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetFeatureSeries retrieves all points for tickers, ordered by (ticker, trade_date) ASC.
func (s *PriceStore) GetFeatureSeries(ctx context.Context, tickers []string) ([]*domain.PricePoint, error) {
	defer observe("price_feature_series", time.Now())

	query := `
		SELECT ticker, trade_date, open_price, high_price, low_price, close_price,
		       adj_close_price, volume, trade_day, rev_trade_day
		FROM ticker_price
		WHERE ticker = ANY($1)
		ORDER BY ticker ASC, trade_date ASC
	`

	rows, err := s.pool.Query(ctx, query, tickers)
	if err != nil {
		return nil, fmt.Errorf("get feature series: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// GetCloseByDate returns adj_close by ticker for the given date.
func (s *PriceStore) GetCloseByDate(ctx context.Context, tickers []string, date time.Time) (map[string]float64, error) {
	defer observe("price_close_by_date", time.Now())

	query := `
		SELECT ticker, adj_close_price
		FROM ticker_price
		WHERE ticker = ANY($1) AND trade_date = $2
	`

	rows, err := s.pool.Query(ctx, query, tickers, domain.DateOnly(date))
	if err != nil {
		return nil, fmt.Errorf("get close by date: %w", err)
	}
	defer rows.Close()

	result := make(map[string]float64, len(tickers))
	for rows.Next() {
		var ticker string
		var adj float64
		if err := rows.Scan(&ticker, &adj); err != nil {
			return nil, fmt.Errorf("scan close row: %w", err)
		}
		result[ticker] = adj
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate close rows: %w", err)
	}
	return result, nil
}

// scanPricePoints scans multiple rows into a slice of PricePoint.
func scanPricePoints(rows pgx.Rows) ([]*domain.PricePoint, error) {
	var points []*domain.PricePoint

	for rows.Next() {
		var p domain.PricePoint
		err := rows.Scan(
			&p.Ticker,
			&p.TradeDate,
			&p.Open,
			&p.High,
			&p.Low,
			&p.Close,
			&p.AdjClose,
			&p.Volume,
			&p.TradeDay,
			&p.ReverseTradeDay,
		)
		if err != nil {
			return nil, fmt.Errorf("scan price row: %w", err)
		}
		p.TradeDate = domain.DateOnly(p.TradeDate)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price rows: %w", err)
	}

	return points, nil
}
