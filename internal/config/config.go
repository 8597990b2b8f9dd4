// Package config loads gtaa settings from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"gtaa-lab/internal/backtest"
	"gtaa-lab/internal/domain"
	"gtaa-lab/internal/features"
)

const dateLayout = "2006-01-02"

// Config is the root of the YAML configuration file.
type Config struct {
	LogLevel    string            `yaml:"log_level"`
	MetricsAddr string            `yaml:"metrics_addr"` // empty disables the /metrics endpoint
	Storage     StorageConfig     `yaml:"storage"`
	Backtest    BacktestConfig    `yaml:"backtest"`
	Features    FeaturesConfig    `yaml:"features"`
	Portfolios  []PortfolioConfig `yaml:"portfolios"`
}

// StorageConfig selects the store implementations.
type StorageConfig struct {
	UseMemory     bool   `yaml:"use_memory"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"` // when set, prices are read from and written to ClickHouse
}

// BacktestConfig holds run-wide backtest parameters.
type BacktestConfig struct {
	StartAfter         string  `yaml:"start_after"`
	Notional           float64 `yaml:"notional"`
	ScoreColumn        string  `yaml:"score_column"`
	MissingQuotePolicy string  `yaml:"missing_quote_policy"`
}

// FeaturesConfig selects the derived columns.
type FeaturesConfig struct {
	ReturnPeriods []int             `yaml:"return_periods"`
	HighPeriods   []int             `yaml:"high_periods"`
	SMAPeriods    []int             `yaml:"sma_periods"`
	Composites    []CompositeConfig `yaml:"composites"`
	Workers       int               `yaml:"workers"`
}

// CompositeConfig defines a summed score column.
type CompositeConfig struct {
	Name       string   `yaml:"name"`
	Components []string `yaml:"components"`
}

// PortfolioConfig declares a portfolio to seed into the portfolio store.
type PortfolioConfig struct {
	ID            int64    `yaml:"id"`
	Name          string   `yaml:"name"`
	TickerGroupID int64    `yaml:"ticker_group_id"`
	Tickers       []string `yaml:"tickers"`
	RebalanceDay  int      `yaml:"rebalance_day"`
	PositionCount int      `yaml:"position_count"`
	DefaultTicker string   `yaml:"default_ticker"`
	Active        *bool    `yaml:"active"` // nil means active
	WeightScheme  string   `yaml:"weight_scheme"`
	Rules         []string `yaml:"rules"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	opts := features.DefaultOptions()
	composites := make([]CompositeConfig, len(opts.Composites))
	for i, c := range opts.Composites {
		composites[i] = CompositeConfig{Name: c.Name, Components: c.Components}
	}

	return &Config{
		LogLevel: "info",
		Backtest: BacktestConfig{
			StartAfter:         backtest.DefaultStartAfter.Format(dateLayout),
			Notional:           backtest.DefaultNotional,
			ScoreColumn:        features.DefaultCompositeName,
			MissingQuotePolicy: backtest.PolicyCarryForward,
		},
		Features: FeaturesConfig{
			ReturnPeriods: opts.ReturnPeriods,
			HighPeriods:   opts.HighPeriods,
			SMAPeriods:    opts.SMAPeriods,
			Composites:    composites,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
// The result is not validated, so callers can apply overrides first.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration and returns all problems joined.
func (c *Config) Validate() error {
	var errs []error

	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}

	if !c.Storage.UseMemory && c.Storage.PostgresDSN == "" {
		errs = append(errs, errors.New("storage.postgres_dsn is required unless use_memory is set"))
	}

	if _, err := time.Parse(dateLayout, c.Backtest.StartAfter); err != nil {
		errs = append(errs, fmt.Errorf("backtest.start_after: %w", err))
	}
	if c.Backtest.Notional <= 0 {
		errs = append(errs, fmt.Errorf("backtest.notional must be positive, got %v", c.Backtest.Notional))
	}
	switch c.Backtest.MissingQuotePolicy {
	case backtest.PolicyCarryForward, backtest.PolicyFail:
	default:
		errs = append(errs, fmt.Errorf("backtest.missing_quote_policy: unknown policy %q", c.Backtest.MissingQuotePolicy))
	}

	periodSets := []struct {
		name    string
		periods []int
	}{
		{"return_periods", c.Features.ReturnPeriods},
		{"high_periods", c.Features.HighPeriods},
		{"sma_periods", c.Features.SMAPeriods},
	}
	for _, set := range periodSets {
		for _, p := range set.periods {
			if p <= 0 {
				errs = append(errs, fmt.Errorf("features.%s: period must be positive, got %d", set.name, p))
			}
		}
	}
	for i, comp := range c.Features.Composites {
		if comp.Name == "" || len(comp.Components) == 0 {
			errs = append(errs, fmt.Errorf("features.composites[%d]: name and components are required", i))
		}
	}
	if err := c.PipelineOptions().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("features.composites: %w", err))
	}
	if c.Features.Workers < 0 {
		errs = append(errs, fmt.Errorf("features.workers must not be negative, got %d", c.Features.Workers))
	}

	seen := make(map[int64]struct{}, len(c.Portfolios))
	for i, p := range c.Portfolios {
		if p.ID == 0 {
			errs = append(errs, fmt.Errorf("portfolios[%d]: id is required", i))
		}
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("portfolios[%d]: name is required", i))
		}
		if _, dup := seen[p.ID]; dup {
			errs = append(errs, fmt.Errorf("portfolios[%d]: duplicate id %d", i, p.ID))
		}
		seen[p.ID] = struct{}{}
	}

	return errors.Join(errs...)
}

// Level returns the configured zerolog level, defaulting to info.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// BacktestOptions converts the backtest section.
func (c *Config) BacktestOptions() (backtest.Options, error) {
	start, err := time.Parse(dateLayout, c.Backtest.StartAfter)
	if err != nil {
		return backtest.Options{}, fmt.Errorf("backtest.start_after: %w", err)
	}
	return backtest.Options{
		Notional:           c.Backtest.Notional,
		StartAfter:         start,
		ScoreColumn:        c.Backtest.ScoreColumn,
		MissingQuotePolicy: c.Backtest.MissingQuotePolicy,
	}, nil
}

// PipelineOptions converts the features section.
func (c *Config) PipelineOptions() features.Options {
	composites := make([]features.Composite, len(c.Features.Composites))
	for i, comp := range c.Features.Composites {
		composites[i] = features.Composite{Name: comp.Name, Components: comp.Components}
	}
	return features.Options{
		ReturnPeriods: c.Features.ReturnPeriods,
		HighPeriods:   c.Features.HighPeriods,
		SMAPeriods:    c.Features.SMAPeriods,
		Composites:    composites,
		Workers:       c.Features.Workers,
	}
}

// Portfolio converts a seeded portfolio to its stored form.
// The ticker group defaults to the portfolio id.
func (p PortfolioConfig) Portfolio() *domain.PortfolioConfig {
	groupID := p.TickerGroupID
	if groupID == 0 {
		groupID = p.ID
	}
	active := true
	if p.Active != nil {
		active = *p.Active
	}
	return &domain.PortfolioConfig{
		PortfolioID:      p.ID,
		Name:             p.Name,
		TickerGroupID:    groupID,
		RebalanceDaySpec: p.RebalanceDay,
		PositionCount:    p.PositionCount,
		DefaultTicker:    p.DefaultTicker,
		IsActive:         active,
		WeightScheme:     p.WeightScheme,
	}
}
