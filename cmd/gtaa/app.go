package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"gtaa-lab/internal/config"
	"gtaa-lab/internal/observability"
	"gtaa-lab/internal/storage"
	chstore "gtaa-lab/internal/storage/clickhouse"
	"gtaa-lab/internal/storage/memory"
	pgstore "gtaa-lab/internal/storage/postgres"
)

// app carries state shared by subcommands.
type app struct {
	configPath string
	cfg        *config.Config
	logger     zerolog.Logger
}

// init loads the config file and applies flag overrides.
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("use-memory") {
		cfg.Storage.UseMemory, _ = flags.GetBool("use-memory")
	}
	if flags.Changed("postgres-dsn") {
		cfg.Storage.PostgresDSN, _ = flags.GetString("postgres-dsn")
	}
	if flags.Changed("clickhouse-dsn") {
		cfg.Storage.ClickhouseDSN, _ = flags.GetString("clickhouse-dsn")
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr, _ = flags.GetString("metrics-addr")
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	zerolog.SetGlobalLevel(cfg.Level())
	a.cfg = cfg
	a.logger = log.Logger.With().Str("cmd", cmd.Name()).Logger()

	if cfg.MetricsAddr != "" {
		go observability.Serve(cmd.Context(), cfg.MetricsAddr, a.logger)
	}
	return nil
}

// stores bundles the store implementations selected by config.
type stores struct {
	portfolios  storage.PortfolioStore
	rules       storage.RuleStore
	prices      storage.PriceStore
	tickers     storage.TickerStore
	performance storage.PerformanceStore

	closers []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores connects to the configured databases.
// Memory stores are seeded with the configured portfolios.
func (a *app) openStores(ctx context.Context) (*stores, error) {
	if a.cfg.Storage.UseMemory {
		s := &stores{
			portfolios:  memory.NewPortfolioStore(),
			rules:       memory.NewRuleStore(),
			prices:      memory.NewPriceStore(),
			tickers:     memory.NewTickerStore(),
			performance: memory.NewPerformanceStore(),
		}
		if _, err := a.cfg.Seed(ctx, s.portfolios, s.rules, a.logger); err != nil {
			return nil, fmt.Errorf("seed memory stores: %w", err)
		}
		return s, nil
	}

	// PostgreSQL for portfolios, rules, tickers and performance
	pool, err := pgstore.NewPool(ctx, a.cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	s := &stores{
		portfolios:  pgstore.NewPortfolioStore(pool),
		rules:       pgstore.NewRuleStore(pool),
		prices:      pgstore.NewPriceStore(pool),
		tickers:     pgstore.NewTickerStore(pool),
		performance: pgstore.NewPerformanceStore(pool),
		closers:     []func(){pool.Close},
	}

	// ClickHouse for price history when configured
	if a.cfg.Storage.ClickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, a.cfg.Storage.ClickhouseDSN)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		s.prices = chstore.NewPriceStore(conn)
		s.closers = append(s.closers, func() { _ = conn.Close() })
	}

	return s, nil
}
