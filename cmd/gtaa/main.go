// Command gtaa imports price history and backtests GTAA momentum portfolios.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.Kitchen,
		NoColor:    !term.IsTerminal(int(os.Stderr.Fd())),
	})

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Warn().Str("signal", sig.String()).Msg("received signal, shutting down")
		cancel()
	}()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "gtaa",
		Short: "Global tactical asset allocation backtester",
		Long: `gtaa ranks the tickers of each portfolio by momentum on a monthly rebalance
date, applies the portfolio's exclusion rules, and replays the resulting
allocations over stored daily prices.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Path to YAML config file")
	flags.String("log-level", "", "Log level (trace|debug|info|warn|error)")
	flags.Bool("use-memory", false, "Use in-memory storage")
	flags.String("postgres-dsn", "", "PostgreSQL connection string")
	flags.String("clickhouse-dsn", "", "ClickHouse connection string for price history")
	flags.String("metrics-addr", "", "Serve /metrics on this address while the command runs")

	rootCmd.AddCommand(
		newMigrateCmd(a),
		newImportCmd(a),
		newSeedCmd(a),
		newBacktestCmd(a),
		newVerifyCmd(a),
	)

	return rootCmd
}
