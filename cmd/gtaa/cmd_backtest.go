package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gtaa-lab/internal/backtest"
	"gtaa-lab/internal/features"
	"gtaa-lab/internal/orchestrator"
	"gtaa-lab/internal/reporting"
)

func newBacktestCmd(a *app) *cobra.Command {
	var (
		portfolioID int64
		persist     bool
		outDir      string
		outputJSON  bool
		pricesDir   string
	)

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Backtest active portfolios",
		Long: `Runs the backtest of every active portfolio, or of --portfolio-id alone.
A failing portfolio is reported and does not stop the others; the command
exits non-zero only when every attempted portfolio failed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			st, err := a.openStores(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			if pricesDir != "" {
				if _, err := importDir(cmd, a, st, pricesDir); err != nil {
					return err
				}
			}

			opts, err := a.cfg.BacktestOptions()
			if err != nil {
				return err
			}
			runner := backtest.NewRunner(backtest.RunnerOptions{
				PortfolioStore: st.portfolios,
				RuleStore:      st.rules,
				PriceStore:     st.prices,
				Pipeline:       features.NewPipeline(a.cfg.PipelineOptions()),
				Options:        opts,
				Logger:         a.logger,
			})

			orch := orchestrator.New(orchestrator.Options{
				PortfolioStore:   st.portfolios,
				Runner:           runner,
				PerformanceStore: st.performance,
				PortfolioID:      portfolioID,
				Persist:          persist,
				Logger:           a.logger,
			})

			result, err := orch.Run(ctx)
			if err != nil {
				return err
			}

			gen := reporting.NewGenerator()
			report := gen.Generate(result.Results)
			if outDir != "" {
				written, err := gen.WriteFiles(outDir, report)
				if err != nil {
					return err
				}
				a.logger.Info().Str("dir", outDir).Int("files", len(written)).Msg("report written")
			}

			if outputJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return fmt.Errorf("encode result: %w", err)
				}
			} else {
				printResult(result, report)
			}

			if result.AllFailed() {
				return fmt.Errorf("all %d portfolios failed", len(result.Failures))
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&portfolioID, "portfolio-id", 0, "Backtest only this portfolio, even if inactive")
	cmd.Flags().BoolVar(&persist, "persist", false, "Persist performance records")
	cmd.Flags().StringVar(&outDir, "out", "", "Write CSV and Markdown reports to this directory")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&pricesDir, "prices-dir", "", "Import <TICKER>.csv files from this directory first")

	return cmd
}

// printResult outputs a human-readable summary.
func printResult(result *orchestrator.RunResult, report *reporting.Report) {
	fmt.Println()
	fmt.Println("=== Backtest Results ===")
	for _, run := range report.Runs {
		s := run.Summary
		fmt.Printf("Portfolio %d (%s)\n", run.Result.PortfolioID, run.Result.PortfolioName)
		fmt.Printf("  Run ID:           %s\n", run.Result.RunID)
		fmt.Printf("  Rebalances:       %d\n", s.Rebalances)
		fmt.Printf("  Starting:         %.2f\n", s.StartingNotional)
		fmt.Printf("  Final:            %.2f\n", s.FinalNotional)
		fmt.Printf("  Total Return:     %.2f%%\n", s.TotalReturn*100)
		fmt.Printf("  Max Drawdown:     %.2f%%\n", s.MaxDrawdown*100)
		if s.BestTicker != "" {
			fmt.Printf("  Best / Worst:     %s (%.2f) / %s (%.2f)\n", s.BestTicker, s.BestTotal, s.WorstTicker, s.WorstTotal)
		}
		fmt.Println()
	}

	if len(result.Failures) > 0 {
		fmt.Println("Failures:")
		for _, f := range result.Failures {
			fmt.Printf("  %d (%s): %s\n", f.PortfolioID, f.Name, f.Reason)
		}
		fmt.Println()
	}

	fmt.Printf("Succeeded: %d | Failed: %d | Skipped: %d | Records persisted: %d\n",
		len(result.Results), len(result.Failures), result.Skipped, result.RecordsPersisted)
}
