package clickhouse

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"gtaa-lab/internal/domain"
	"gtaa-lab/internal/storage"
)

const dateLayout = "2006-01-02"

// PriceStore implements storage.PriceStore using ClickHouse.
type PriceStore struct {
	conn *Conn
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(conn *Conn) *PriceStore {
	return &PriceStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

// ReplaceFrom deletes rows of ticker dated on or after the earliest point, then inserts points.
// The delete is a synchronous mutation so the insert never races it.
func (s *PriceStore) ReplaceFrom(ctx context.Context, ticker string, points []*domain.PricePoint) error {
	if ticker == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}

	from := points[0].TradeDate
	seen := make(map[string]struct{}, len(points))
	for _, p := range points {
		if p == nil || p.Ticker != ticker {
			return storage.ErrInvalidInput
		}
		key := p.TradeDate.Format(dateLayout)
		if _, exists := seen[key]; exists {
			return storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}
		if p.TradeDate.Before(from) {
			from = p.TradeDate
		}
	}

	defer observe("price_replace_from", time.Now())

	syncCtx := clickhouse.Context(ctx, clickhouse.WithSettings(clickhouse.Settings{
		"mutations_sync": 2,
	}))
	err := s.conn.Exec(syncCtx,
		`ALTER TABLE ticker_price DELETE WHERE ticker = ? AND trade_date >= toDate(?)`,
		ticker, from.Format(dateLayout),
	)
	if err != nil {
		return fmt.Errorf("delete prices from %s: %w", from.Format(dateLayout), err)
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO ticker_price (
			ticker, trade_date, open_price, high_price, low_price, close_price,
			adj_close_price, volume, trade_day, rev_trade_day
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(
			p.Ticker, domain.DateOnly(p.TradeDate),
			p.Open, p.High, p.Low, p.Close, p.AdjClose,
			p.Volume, int32(p.TradeDay), int32(p.ReverseTradeDay),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetFeatureSeries retrieves all points for tickers, ordered by (ticker, trade_date) ASC.
func (s *PriceStore) GetFeatureSeries(ctx context.Context, tickers []string) ([]*domain.PricePoint, error) {
	defer observe("price_feature_series", time.Now())

	sorted := append([]string(nil), tickers...)
	sort.Strings(sorted)

	query := `
		SELECT ticker, trade_date, open_price, high_price, low_price, close_price,
		       adj_close_price, volume, trade_day, rev_trade_day
		FROM ticker_price
		WHERE ticker = ?
		ORDER BY trade_date ASC
	`

	var result []*domain.PricePoint
	for i, ticker := range sorted {
		if i > 0 && sorted[i-1] == ticker {
			continue
		}

		rows, err := s.conn.Query(ctx, query, ticker)
		if err != nil {
			return nil, fmt.Errorf("query feature series %s: %w", ticker, err)
		}
		points, err := scanPricePoints(rows)
		rows.Close()
		if err != nil {
			return nil, err
		}
		result = append(result, points...)
	}

	return result, nil
}

// GetCloseByDate returns adj_close by ticker for the given date.
func (s *PriceStore) GetCloseByDate(ctx context.Context, tickers []string, date time.Time) (map[string]float64, error) {
	defer observe("price_close_by_date", time.Now())

	wanted := make(map[string]struct{}, len(tickers))
	for _, tk := range tickers {
		wanted[tk] = struct{}{}
	}

	rows, err := s.conn.Query(ctx,
		`SELECT ticker, adj_close_price FROM ticker_price WHERE trade_date = toDate(?)`,
		date.Format(dateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("query close by date: %w", err)
	}
	defer rows.Close()

	result := make(map[string]float64, len(tickers))
	for rows.Next() {
		var ticker string
		var adj float64
		if err := rows.Scan(&ticker, &adj); err != nil {
			return nil, fmt.Errorf("scan close row: %w", err)
		}
		if _, ok := wanted[ticker]; ok {
			result[ticker] = adj
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate close rows: %w", err)
	}
	return result, nil
}

// chRows is the subset of driver.Rows used by scanners.
type chRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// scanPricePoints scans multiple rows.
func scanPricePoints(rows chRows) ([]*domain.PricePoint, error) {
	var points []*domain.PricePoint

	for rows.Next() {
		var p domain.PricePoint
		var tradeDay, revTradeDay int32
		err := rows.Scan(
			&p.Ticker, &p.TradeDate,
			&p.Open, &p.High, &p.Low, &p.Close, &p.AdjClose,
			&p.Volume, &tradeDay, &revTradeDay,
		)
		if err != nil {
			return nil, fmt.Errorf("scan price row: %w", err)
		}
		p.TradeDate = domain.DateOnly(p.TradeDate)
		p.TradeDay = int(tradeDay)
		p.ReverseTradeDay = int(revTradeDay)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price rows: %w", err)
	}

	return points, nil
}
