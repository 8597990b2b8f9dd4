package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"gtaa-lab/internal/domain"
	"gtaa-lab/internal/storage"
)

// PerformanceStore implements storage.PerformanceStore using PostgreSQL.
type PerformanceStore struct {
	pool *Pool
}

// NewPerformanceStore creates a new PerformanceStore.
func NewPerformanceStore(pool *Pool) *PerformanceStore {
	return &PerformanceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PerformanceStore = (*PerformanceStore)(nil)

// InsertBulk adds records atomically. Fails entire batch on any duplicate.
func (s *PerformanceStore) InsertBulk(ctx context.Context, records []*domain.PerformanceRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if r == nil || r.RunID == "" || r.Ticker == "" {
			return storage.ErrInvalidInput
		}
	}

	defer observe("performance_insert_bulk", time.Now())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO backtest_performance (
			run_id, portfolio_id, rebalance_date, evaluation_date, ticker,
			prior_value, share_count, gain_loss, close_price, quote_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(query,
			r.RunID,
			r.PortfolioID,
			domain.DateOnly(r.RebalanceDate),
			domain.DateOnly(r.EvaluationDate),
			r.Ticker,
			r.PriorValue,
			r.ShareCount,
			r.GainLoss,
			r.ClosePrice,
			r.QuoteStatus,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for range records {
		if _, err := results.Exec(); err != nil {
			results.Close()
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert performance record in bulk: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close performance batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByRunID retrieves records of a run ordered by evaluation_date ASC, ticker ASC.
func (s *PerformanceStore) GetByRunID(ctx context.Context, runID string) ([]*domain.PerformanceRecord, error) {
	defer observe("performance_get_by_run", time.Now())

	query := `
		SELECT run_id, portfolio_id, rebalance_date, evaluation_date, ticker,
		       prior_value, share_count, gain_loss, close_price, quote_status
		FROM backtest_performance
		WHERE run_id = $1
		ORDER BY evaluation_date ASC, ticker ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get performance by run id: %w", err)
	}
	defer rows.Close()

	return scanPerformanceRecords(rows)
}

// scanPerformanceRecords scans multiple rows into a slice of PerformanceRecord.
func scanPerformanceRecords(rows pgx.Rows) ([]*domain.PerformanceRecord, error) {
	var records []*domain.PerformanceRecord

	for rows.Next() {
		var r domain.PerformanceRecord
		err := rows.Scan(
			&r.RunID,
			&r.PortfolioID,
			&r.RebalanceDate,
			&r.EvaluationDate,
			&r.Ticker,
			&r.PriorValue,
			&r.ShareCount,
			&r.GainLoss,
			&r.ClosePrice,
			&r.QuoteStatus,
		)
		if err != nil {
			return nil, fmt.Errorf("scan performance row: %w", err)
		}
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate performance rows: %w", err)
	}

	return records, nil
}
