package storage

import (
	"context"
	"time"

	"gtaa-lab/internal/domain"
)

// PriceStore provides access to ticker_price storage.
type PriceStore interface {
	// ReplaceFrom deletes rows of ticker dated on or after the earliest point, then inserts points.
	// All points must belong to ticker. Returns ErrInvalidInput otherwise.
	ReplaceFrom(ctx context.Context, ticker string, points []*domain.PricePoint) error

	// GetFeatureSeries retrieves all points for tickers, ordered by (ticker, trade_date) ASC.
	GetFeatureSeries(ctx context.Context, tickers []string) ([]*domain.PricePoint, error)

	// GetCloseByDate returns adj_close by ticker for the given date.
	// Tickers without a row on that date are absent from the map.
	GetCloseByDate(ctx context.Context, tickers []string, date time.Time) (map[string]float64, error)
}

// TickerStore provides access to ticker_list storage.
type TickerStore interface {
	// GetAll retrieves all tickers ordered by symbol.
	GetAll(ctx context.Context) ([]*domain.Ticker, error)

	// UpdateLastTradeDate records the latest imported date, creating the ticker if needed.
	UpdateLastTradeDate(ctx context.Context, symbol string, date time.Time) error
}

// PortfolioStore provides access to portfolio and ticker_group storage.
type PortfolioStore interface {
	// Insert adds a portfolio. Returns ErrDuplicateKey if portfolio_id exists.
	Insert(ctx context.Context, p *domain.PortfolioConfig) error

	// GetAll retrieves all portfolios ordered by portfolio_id.
	GetAll(ctx context.Context) ([]*domain.PortfolioConfig, error)

	// GetByID retrieves a portfolio. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, portfolioID int64) (*domain.PortfolioConfig, error)

	// AddGroupTickers adds tickers to a ticker group. Existing members are ignored.
	AddGroupTickers(ctx context.Context, groupID int64, tickers ...string) error

	// GetTickers retrieves the ticker group members of a portfolio, ordered by ticker.
	// Returns ErrNotFound if the portfolio does not exist.
	GetTickers(ctx context.Context, portfolioID int64) ([]string, error)
}

// RuleStore provides access to portfolio_rule storage.
type RuleStore interface {
	// Insert appends a rule to a portfolio.
	Insert(ctx context.Context, portfolioID int64, ruleText string) error

	// GetRules retrieves rule texts of a portfolio in insertion (rule_id) order.
	GetRules(ctx context.Context, portfolioID int64) ([]string, error)
}

// PerformanceStore provides access to backtest_performance storage.
type PerformanceStore interface {
	// InsertBulk adds records atomically. Fails entire batch on duplicate (run_id, evaluation_date, ticker).
	InsertBulk(ctx context.Context, records []*domain.PerformanceRecord) error

	// GetByRunID retrieves records of a run ordered by evaluation_date ASC, ticker ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.PerformanceRecord, error)
}
