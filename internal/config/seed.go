package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"gtaa-lab/internal/storage"
)

// Seed inserts the configured portfolios with their ticker groups and rules.
// Portfolios that already exist are left untouched. Returns the number inserted.
func (c *Config) Seed(ctx context.Context, portfolios storage.PortfolioStore, rules storage.RuleStore, logger zerolog.Logger) (int, error) {
	inserted := 0
	for _, pc := range c.Portfolios {
		p := pc.Portfolio()

		err := portfolios.Insert(ctx, p)
		if errors.Is(err, storage.ErrDuplicateKey) {
			logger.Debug().Int64("portfolio_id", p.PortfolioID).Msg("portfolio exists, skipping seed")
			continue
		}
		if err != nil {
			return inserted, fmt.Errorf("insert portfolio %d: %w", p.PortfolioID, err)
		}

		if len(pc.Tickers) > 0 {
			if err := portfolios.AddGroupTickers(ctx, p.TickerGroupID, pc.Tickers...); err != nil {
				return inserted, fmt.Errorf("add tickers to group %d: %w", p.TickerGroupID, err)
			}
		}
		for _, rule := range pc.Rules {
			if err := rules.Insert(ctx, p.PortfolioID, rule); err != nil {
				return inserted, fmt.Errorf("insert rule for portfolio %d: %w", p.PortfolioID, err)
			}
		}

		inserted++
		logger.Info().
			Int64("portfolio_id", p.PortfolioID).
			Str("name", p.Name).
			Int("tickers", len(pc.Tickers)).
			Int("rules", len(pc.Rules)).
			Msg("portfolio seeded")
	}
	return inserted, nil
}
