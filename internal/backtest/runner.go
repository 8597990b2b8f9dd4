package backtest

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"gtaa-lab/internal/allocation"
	"gtaa-lab/internal/domain"
	"gtaa-lab/internal/features"
	"gtaa-lab/internal/idhash"
	"gtaa-lab/internal/observability"
	"gtaa-lab/internal/rules"
	"gtaa-lab/internal/storage"
)

// Backtest defaults.
const (
	DefaultNotional = 100000.0
)

// DefaultStartAfter is the date after which rebalances are considered.
var DefaultStartAfter = time.Date(2009, 12, 27, 0, 0, 0, 0, time.UTC)

// Options are run-wide backtest parameters.
type Options struct {
	Notional           float64
	StartAfter         time.Time
	ScoreColumn        string // ranking column, defaults to the pipeline's first composite
	MissingQuotePolicy string
}

// DefaultOptions returns the standard GTAA backtest parameters.
func DefaultOptions() Options {
	return Options{
		Notional:           DefaultNotional,
		StartAfter:         DefaultStartAfter,
		ScoreColumn:        features.DefaultCompositeName,
		MissingQuotePolicy: PolicyCarryForward,
	}
}

// Runner loads a portfolio's inputs and executes its backtest.
type Runner struct {
	portfolioStore storage.PortfolioStore
	ruleStore      storage.RuleStore
	priceStore     storage.PriceStore
	closes         CloseSource
	pipeline       *features.Pipeline
	opts           Options
	logger         zerolog.Logger
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	PortfolioStore storage.PortfolioStore
	RuleStore      storage.RuleStore
	PriceStore     storage.PriceStore
	CloseSource    CloseSource        // nil uses a PortfolioCloseView over the stores
	Pipeline       *features.Pipeline // nil uses features.DefaultOptions
	Options        Options
	Logger         zerolog.Logger
}

// NewRunner creates a backtest runner.
func NewRunner(opts RunnerOptions) *Runner {
	closes := opts.CloseSource
	if closes == nil {
		closes = storage.NewPortfolioCloseView(opts.PortfolioStore, opts.PriceStore)
	}
	pipeline := opts.Pipeline
	if pipeline == nil {
		pipeline = features.NewPipeline(features.DefaultOptions())
	}
	return &Runner{
		portfolioStore: opts.PortfolioStore,
		ruleStore:      opts.RuleStore,
		priceStore:     opts.PriceStore,
		closes:         closes,
		pipeline:       pipeline,
		opts:           opts.Options,
		logger:         opts.Logger,
	}
}

// RunByID loads a portfolio and runs its backtest.
func (r *Runner) RunByID(ctx context.Context, portfolioID int64) (*domain.RunResult, error) {
	cfg, err := r.portfolioStore.GetByID(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("get portfolio %d: %w", portfolioID, err)
	}
	return r.Run(ctx, *cfg)
}

// Run executes the backtest of one portfolio.
// Steps:
//  1. Validate portfolio and options
//  2. Load ticker group and parse rules
//  3. Load price series for the group plus the default ticker
//  4. Compute feature rows
//  5. Derive the run ID from all inputs
//  6. Replay rebalance dates
//
// Configuration problems are reported as domain.ErrConfiguration.
func (r *Runner) Run(ctx context.Context, cfg domain.PortfolioConfig) (*domain.RunResult, error) {
	start := time.Now()
	result, err := r.run(ctx, cfg)

	status := "success"
	if err != nil {
		status = "error"
	}
	observability.RecordBacktestRun(status, time.Since(start))

	if err != nil {
		return nil, err
	}

	r.logger.Info().
		Int64("portfolio_id", cfg.PortfolioID).
		Str("portfolio", cfg.Name).
		Str("run_id", result.RunID).
		Int("rebalances", len(result.Snapshots)).
		Float64("final_notional", result.FinalNotional).
		Float64("grand_total", result.GrandTotal).
		Dur("elapsed", time.Since(start)).
		Msg("backtest complete")

	return result, nil
}

func (r *Runner) run(ctx context.Context, cfg domain.PortfolioConfig) (*domain.RunResult, error) {
	opts := r.opts
	if err := r.validate(cfg, opts); err != nil {
		return nil, err
	}

	tickers, err := r.portfolioStore.GetTickers(ctx, cfg.PortfolioID)
	if err != nil {
		return nil, fmt.Errorf("get tickers: %w", err)
	}
	if len(tickers) == 0 {
		return nil, fmt.Errorf("%w: portfolio %d has no tickers", domain.ErrConfiguration, cfg.PortfolioID)
	}

	texts, err := r.ruleStore.GetRules(ctx, cfg.PortfolioID)
	if err != nil {
		return nil, fmt.Errorf("get rules: %w", err)
	}
	parsed, err := rules.ParseAll(texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}

	load := tickers
	if cfg.DefaultTicker != "" && !slices.Contains(tickers, cfg.DefaultTicker) {
		load = append(slices.Clone(tickers), cfg.DefaultTicker)
	}
	points, err := r.priceStore.GetFeatureSeries(ctx, load)
	if err != nil {
		return nil, fmt.Errorf("get feature series: %w", err)
	}

	rows, err := r.pipeline.Compute(ctx, points)
	if err != nil {
		return nil, fmt.Errorf("compute features: %w", err)
	}
	observability.RecordFeatureRows(len(rows))

	runID := idhash.ComputeRunID(idhash.RunKey{
		Portfolio:  cfg,
		Tickers:    tickers,
		Rules:      texts,
		Parameters: r.parameters(opts),
		Prices:     points,
	})

	r.logger.Debug().
		Int64("portfolio_id", cfg.PortfolioID).
		Int("tickers", len(tickers)).
		Int("rules", len(parsed)).
		Int("rows", len(rows)).
		Str("run_id", runID).
		Msg("inputs loaded")

	engine := NewEngine(Params{
		RunID:              runID,
		Portfolio:          cfg,
		Tickers:            tickers,
		Rules:              parsed,
		Notional:           opts.Notional,
		StartAfter:         opts.StartAfter,
		ScoreColumn:        opts.ScoreColumn,
		MissingQuotePolicy: opts.MissingQuotePolicy,
	}, r.closes, r.logger)

	return engine.Run(ctx, rows)
}

func (r *Runner) validate(cfg domain.PortfolioConfig, opts Options) error {
	if cfg.RebalanceDaySpec == 0 {
		return fmt.Errorf("%w: portfolio %d rebalance day spec must be non-zero", domain.ErrConfiguration, cfg.PortfolioID)
	}
	if _, err := allocation.Weights(cfg.WeightScheme, cfg.PositionCount); err != nil {
		return fmt.Errorf("portfolio %d: %w", cfg.PortfolioID, err)
	}
	if opts.Notional <= 0 {
		return fmt.Errorf("%w: notional %.2f must be positive", domain.ErrConfiguration, opts.Notional)
	}
	if opts.MissingQuotePolicy != PolicyCarryForward && opts.MissingQuotePolicy != PolicyFail {
		return fmt.Errorf("%w: unknown missing quote policy %q", domain.ErrConfiguration, opts.MissingQuotePolicy)
	}
	if err := r.pipeline.Options().Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	if !slices.Contains(r.pipeline.Options().ColumnNames(), opts.ScoreColumn) {
		return fmt.Errorf("%w: score column %q is not computed", domain.ErrConfiguration, opts.ScoreColumn)
	}
	return nil
}

// parameters renders everything outside the stores that changes results.
func (r *Runner) parameters(opts Options) string {
	fo := r.pipeline.Options()
	var b strings.Builder
	fmt.Fprintf(&b, "notional=%g;start_after=%s;score=%s;policy=%s",
		opts.Notional, opts.StartAfter.Format("2006-01-02"), opts.ScoreColumn, opts.MissingQuotePolicy)
	fmt.Fprintf(&b, ";columns=%s", strings.Join(fo.ColumnNames(), ","))
	for _, c := range fo.Composites {
		fmt.Fprintf(&b, ";%s=%s", c.Name, strings.Join(c.Components, "+"))
	}
	return b.String()
}
