package storage

import (
	"context"
	"fmt"
	"time"
)

// PortfolioCloseView resolves close prices for everything a portfolio can hold:
// its ticker group plus its default ticker.
type PortfolioCloseView struct {
	portfolios PortfolioStore
	prices     PriceStore
}

// NewPortfolioCloseView creates a close price view over the given stores.
func NewPortfolioCloseView(portfolios PortfolioStore, prices PriceStore) *PortfolioCloseView {
	return &PortfolioCloseView{portfolios: portfolios, prices: prices}
}

// GetClosePrices returns adj_close by ticker for the portfolio universe on date.
func (v *PortfolioCloseView) GetClosePrices(ctx context.Context, portfolioID int64, date time.Time) (map[string]float64, error) {
	cfg, err := v.portfolios.GetByID(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("get portfolio %d: %w", portfolioID, err)
	}

	tickers, err := v.portfolios.GetTickers(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("get portfolio %d tickers: %w", portfolioID, err)
	}
	if cfg.DefaultTicker != "" && !contains(tickers, cfg.DefaultTicker) {
		tickers = append(tickers, cfg.DefaultTicker)
	}

	return v.prices.GetCloseByDate(ctx, tickers, date)
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
