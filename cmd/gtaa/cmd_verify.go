package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gtaa-lab/internal/backtest"
	"gtaa-lab/internal/features"
	"gtaa-lab/internal/verification"
)

func newVerifyCmd(a *app) *cobra.Command {
	var portfolioID int64

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Replay backtests and compare them with persisted runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			st, err := a.openStores(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			opts, err := a.cfg.BacktestOptions()
			if err != nil {
				return err
			}
			verifier := verification.NewRunVerifier(verification.RunVerifierOptions{
				PortfolioStore:   st.portfolios,
				PerformanceStore: st.performance,
				Runner: backtest.NewRunner(backtest.RunnerOptions{
					PortfolioStore: st.portfolios,
					RuleStore:      st.rules,
					PriceStore:     st.prices,
					Pipeline:       features.NewPipeline(a.cfg.PipelineOptions()),
					Options:        opts,
					Logger:         a.logger,
				}),
				Logger: a.logger,
			})

			var report *verification.VerificationReport
			if portfolioID != 0 {
				result, err := verifier.VerifyPortfolio(ctx, portfolioID)
				if err != nil {
					return err
				}
				report = &verification.VerificationReport{TotalRuns: 1, Results: []verification.VerificationResult{*result}}
				if result.Match {
					report.MatchedRuns = 1
				} else {
					report.DivergentRuns = 1
				}
			} else if report, err = verifier.VerifyAll(ctx); err != nil {
				return err
			}

			for _, r := range report.Results {
				status := "MATCH"
				if !r.Match {
					status = "DIVERGENT"
				}
				fmt.Printf("Portfolio %d: %s (run %s, %d stored, %d replayed)\n",
					r.PortfolioID, status, r.RunID, r.StoredRecords, r.ReplayedRecords)
				for _, d := range r.Divergences {
					fmt.Printf("  %s\n", d)
				}
			}
			fmt.Printf("Verified: %d | Matched: %d | Divergent: %d\n",
				report.TotalRuns, report.MatchedRuns, report.DivergentRuns)

			if report.DivergentRuns > 0 {
				return fmt.Errorf("%d of %d runs diverged", report.DivergentRuns, report.TotalRuns)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&portfolioID, "portfolio-id", 0, "Verify only this portfolio")
	return cmd
}
