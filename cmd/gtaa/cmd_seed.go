package main

import (
	"errors"

	"github.com/spf13/cobra"
)

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the portfolios declared in the config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(a.cfg.Portfolios) == 0 {
				return errors.New("config declares no portfolios")
			}
			if a.cfg.Storage.UseMemory {
				return errors.New("seed requires a database, not --use-memory")
			}

			ctx := cmd.Context()
			st, err := a.openStores(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := a.cfg.Seed(ctx, st.portfolios, st.rules, a.logger)
			if err != nil {
				return err
			}
			a.logger.Info().Int("inserted", n).Int("declared", len(a.cfg.Portfolios)).Msg("seed complete")
			return nil
		},
	}
}
