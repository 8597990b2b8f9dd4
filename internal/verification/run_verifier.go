package verification

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"gtaa-lab/internal/backtest"
	"gtaa-lab/internal/storage"
)

// ErrRunNotPersisted is returned when no records exist for the replayed run ID,
// either because the run was never persisted or because its inputs changed.
var ErrRunNotPersisted = errors.New("run not persisted")

// RunVerifier replays portfolio backtests and compares them with stored records.
type RunVerifier struct {
	portfolioStore   storage.PortfolioStore
	performanceStore storage.PerformanceStore
	runner           *backtest.Runner
	logger           zerolog.Logger
}

// RunVerifierOptions contains configuration for creating a RunVerifier.
type RunVerifierOptions struct {
	PortfolioStore   storage.PortfolioStore
	PerformanceStore storage.PerformanceStore
	Runner           *backtest.Runner
	Logger           zerolog.Logger
}

// NewRunVerifier creates a new RunVerifier.
func NewRunVerifier(opts RunVerifierOptions) *RunVerifier {
	return &RunVerifier{
		portfolioStore:   opts.PortfolioStore,
		performanceStore: opts.PerformanceStore,
		runner:           opts.Runner,
		logger:           opts.Logger,
	}
}

// VerifyPortfolio replays one portfolio and compares it with its stored run.
func (v *RunVerifier) VerifyPortfolio(ctx context.Context, portfolioID int64) (*VerificationResult, error) {
	// 1. Replay
	run, err := v.runner.RunByID(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("replay portfolio %d: %w", portfolioID, err)
	}
	replayed := run.Records()

	// 2. Load stored records of the same run
	stored, err := v.performanceStore.GetByRunID(ctx, run.RunID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", run.RunID, err)
	}
	if len(stored) == 0 && len(replayed) > 0 {
		return nil, fmt.Errorf("%w: portfolio %d run %s", ErrRunNotPersisted, portfolioID, run.RunID)
	}

	// 3. Compare
	divergences := CompareRecords(stored, replayed)

	result := &VerificationResult{
		PortfolioID:     portfolioID,
		RunID:           run.RunID,
		Match:           len(divergences) == 0,
		StoredRecords:   len(stored),
		ReplayedRecords: len(replayed),
		Divergences:     divergences,
	}

	v.logger.Info().
		Int64("portfolio_id", portfolioID).
		Str("run_id", run.RunID).
		Bool("match", result.Match).
		Int("divergences", len(divergences)).
		Msg("run verified")

	return result, nil
}

// VerifyAll verifies every active portfolio.
func (v *RunVerifier) VerifyAll(ctx context.Context) (*VerificationReport, error) {
	portfolios, err := v.portfolioStore.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load portfolios: %w", err)
	}

	report := &VerificationReport{}
	for _, p := range portfolios {
		if !p.IsActive {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.TotalRuns++

		result, err := v.VerifyPortfolio(ctx, p.PortfolioID)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return report, err
			}
			// Record error as divergence
			report.Results = append(report.Results, VerificationResult{
				PortfolioID: p.PortfolioID,
				Match:       false,
				Divergences: []FieldDivergence{
					{Field: "Error", Expected: nil, Actual: err.Error()},
				},
			})
			report.DivergentRuns++
			continue
		}

		report.Results = append(report.Results, *result)
		if result.Match {
			report.MatchedRuns++
		} else {
			report.DivergentRuns++
		}
	}

	return report, nil
}
