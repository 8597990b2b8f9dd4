package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"gtaa-lab/internal/domain"
	"gtaa-lab/internal/storage"
)

// PortfolioStore implements storage.PortfolioStore using PostgreSQL.
type PortfolioStore struct {
	pool *Pool
}

// NewPortfolioStore creates a new PortfolioStore.
func NewPortfolioStore(pool *Pool) *PortfolioStore {
	return &PortfolioStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PortfolioStore = (*PortfolioStore)(nil)

const portfolioColumns = `portfolio_id, portfolio_name, ticker_group_id, rebalance_day,
	position_count, default_ticker, is_active, weight_scheme`

// Insert adds a portfolio. Returns ErrDuplicateKey if portfolio_id exists.
func (s *PortfolioStore) Insert(ctx context.Context, p *domain.PortfolioConfig) error {
	if p == nil || p.Name == "" {
		return storage.ErrInvalidInput
	}

	defer observe("portfolio_insert", time.Now())

	scheme := p.WeightScheme
	if scheme == "" {
		scheme = domain.WeightSchemeEqual
	}

	query := `INSERT INTO portfolio (` + portfolioColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.pool.Exec(ctx, query,
		p.PortfolioID,
		p.Name,
		p.TickerGroupID,
		p.RebalanceDaySpec,
		p.PositionCount,
		p.DefaultTicker,
		p.IsActive,
		scheme,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert portfolio: %w", err)
	}
	return nil
}

// GetAll retrieves all portfolios ordered by portfolio_id.
func (s *PortfolioStore) GetAll(ctx context.Context) ([]*domain.PortfolioConfig, error) {
	defer observe("portfolio_get_all", time.Now())

	rows, err := s.pool.Query(ctx, `SELECT `+portfolioColumns+` FROM portfolio ORDER BY portfolio_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("get portfolios: %w", err)
	}
	defer rows.Close()

	var result []*domain.PortfolioConfig
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate portfolio rows: %w", err)
	}
	return result, nil
}

// GetByID retrieves a portfolio. Returns ErrNotFound if not exists.
func (s *PortfolioStore) GetByID(ctx context.Context, portfolioID int64) (*domain.PortfolioConfig, error) {
	defer observe("portfolio_get_by_id", time.Now())

	row := s.pool.QueryRow(ctx, `SELECT `+portfolioColumns+` FROM portfolio WHERE portfolio_id = $1`, portfolioID)
	p, err := scanPortfolio(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// AddGroupTickers adds tickers to a ticker group. Existing members are ignored.
func (s *PortfolioStore) AddGroupTickers(ctx context.Context, groupID int64, tickers ...string) error {
	if len(tickers) == 0 {
		return nil
	}
	for _, tk := range tickers {
		if tk == "" {
			return storage.ErrInvalidInput
		}
	}

	defer observe("ticker_group_insert", time.Now())

	batch := &pgx.Batch{}
	for _, tk := range tickers {
		batch.Queue(`INSERT INTO ticker_group (ticker_group_id, ticker) VALUES ($1, $2) ON CONFLICT DO NOTHING`, groupID, tk)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert group tickers: %w", err)
	}
	return nil
}

// GetTickers retrieves the ticker group members of a portfolio, ordered by ticker.
func (s *PortfolioStore) GetTickers(ctx context.Context, portfolioID int64) ([]string, error) {
	p, err := s.GetByID(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	defer observe("ticker_group_get", time.Now())

	rows, err := s.pool.Query(ctx,
		`SELECT ticker FROM ticker_group WHERE ticker_group_id = $1 ORDER BY ticker ASC`,
		p.TickerGroupID,
	)
	if err != nil {
		return nil, fmt.Errorf("get group tickers: %w", err)
	}

	tickers, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect group tickers: %w", err)
	}
	return tickers, nil
}

// scanPortfolio scans a single row into a PortfolioConfig.
func scanPortfolio(row pgx.Row) (*domain.PortfolioConfig, error) {
	var p domain.PortfolioConfig
	err := row.Scan(
		&p.PortfolioID,
		&p.Name,
		&p.TickerGroupID,
		&p.RebalanceDaySpec,
		&p.PositionCount,
		&p.DefaultTicker,
		&p.IsActive,
		&p.WeightScheme,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("scan portfolio row: %w", err)
	}
	return &p, nil
}
