// Package orchestrator runs the backtests of all active portfolios.
// It coordinates: load portfolios → backtest each → persist performance
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"gtaa-lab/internal/backtest"
	"gtaa-lab/internal/domain"
	"gtaa-lab/internal/storage"
)

// Orchestrator coordinates portfolio backtests.
// A failing portfolio is recorded and never stops the others.
type Orchestrator struct {
	portfolioStore   storage.PortfolioStore
	performanceStore storage.PerformanceStore
	runner           *backtest.Runner

	portfolioID int64
	persist     bool
	logger      zerolog.Logger
}

// Options for creating Orchestrator.
type Options struct {
	// Required
	PortfolioStore storage.PortfolioStore
	Runner         *backtest.Runner

	// Required when Persist is set
	PerformanceStore storage.PerformanceStore

	PortfolioID int64 // run only this portfolio, active or not; 0 runs all active
	Persist     bool  // write performance records
	Logger      zerolog.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	return &Orchestrator{
		portfolioStore:   opts.PortfolioStore,
		performanceStore: opts.PerformanceStore,
		runner:           opts.Runner,
		portfolioID:      opts.PortfolioID,
		persist:          opts.Persist,
		logger:           opts.Logger,
	}
}

// PortfolioFailure describes a portfolio whose backtest did not complete.
type PortfolioFailure struct {
	PortfolioID int64
	Name        string
	Reason      string
	Err         error `json:"-"`
}

// RunResult contains results from orchestrator execution.
type RunResult struct {
	Results          []*domain.RunResult
	Failures         []PortfolioFailure
	Skipped          int // inactive portfolios
	RecordsPersisted int
}

// AllFailed reports whether portfolios were attempted and none succeeded.
func (r *RunResult) AllFailed() bool {
	return len(r.Results) == 0 && len(r.Failures) > 0
}

// Run executes the backtests.
// Phases:
//  1. Load portfolios
//  2. Backtest each portfolio in portfolio_id order
//  3. Persist performance records
//
// Returns an error only when portfolios cannot be loaded or ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{}

	portfolios, err := o.loadPortfolios(ctx)
	if err != nil {
		return nil, fmt.Errorf("load portfolios: %w", err)
	}
	o.logger.Info().Int("portfolios", len(portfolios)).Msg("portfolios loaded")

	for _, p := range portfolios {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if !p.IsActive && o.portfolioID == 0 {
			result.Skipped++
			continue
		}

		log := o.logger.With().Int64("portfolio_id", p.PortfolioID).Str("portfolio", p.Name).Logger()

		run, err := o.runner.Run(ctx, *p)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return result, err
			}
			log.Error().Err(err).Msg("backtest failed")
			result.Failures = append(result.Failures, failure(p, "backtest", err))
			continue
		}
		result.Results = append(result.Results, run)

		if !o.persist {
			continue
		}
		n, err := o.persistRun(ctx, run)
		if err != nil {
			log.Error().Err(err).Msg("persist failed")
			result.Failures = append(result.Failures, failure(p, "persist", err))
			continue
		}
		result.RecordsPersisted += n
	}

	o.logger.Info().
		Int("succeeded", len(result.Results)).
		Int("failed", len(result.Failures)).
		Int("skipped", result.Skipped).
		Int("records_persisted", result.RecordsPersisted).
		Msg("backtests completed")

	return result, nil
}

// loadPortfolios returns the selected portfolio or all portfolios.
func (o *Orchestrator) loadPortfolios(ctx context.Context) ([]*domain.PortfolioConfig, error) {
	if o.portfolioID != 0 {
		p, err := o.portfolioStore.GetByID(ctx, o.portfolioID)
		if err != nil {
			return nil, fmt.Errorf("portfolio %d: %w", o.portfolioID, err)
		}
		return []*domain.PortfolioConfig{p}, nil
	}
	return o.portfolioStore.GetAll(ctx)
}

// persistRun writes the run's records. A run already stored under the same
// run_id is identical by construction and is not written again.
func (o *Orchestrator) persistRun(ctx context.Context, run *domain.RunResult) (int, error) {
	if o.performanceStore == nil {
		return 0, errors.New("no performance store configured")
	}

	records := run.Records()
	err := o.performanceStore.InsertBulk(ctx, records)
	if errors.Is(err, storage.ErrDuplicateKey) {
		o.logger.Info().Str("run_id", run.RunID).Msg("run already persisted")
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

func failure(p *domain.PortfolioConfig, phase string, err error) PortfolioFailure {
	return PortfolioFailure{
		PortfolioID: p.PortfolioID,
		Name:        p.Name,
		Reason:      phase + ": " + err.Error(),
		Err:         err,
	}
}
