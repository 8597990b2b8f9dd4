package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"gtaa-lab/internal/ingestion"
	"gtaa-lab/internal/storage"
)

func newImportCmd(a *app) *cobra.Command {
	var ticker, file, dir string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import daily prices from CSV",
		Long: `Imports a Yahoo Finance style CSV (Date,Open,High,Low,Close,Adj Close,Volume).
Rows on or after the first imported date replace stored rows. With --dir,
every <TICKER>.csv in the directory is imported.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (file == "") == (dir == "") {
				return errors.New("exactly one of --file or --dir is required")
			}
			if file != "" && ticker == "" {
				return errors.New("--ticker is required with --file")
			}
			if a.cfg.Storage.UseMemory {
				a.logger.Warn().Msg("importing into memory storage, prices are discarded on exit")
			}

			ctx := cmd.Context()
			st, err := a.openStores(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			if file != "" {
				_, err := newImporter(a, st).ImportFile(ctx, strings.ToUpper(ticker), file)
				return err
			}
			_, err = importDir(cmd, a, st, dir)
			return err
		},
	}

	cmd.Flags().StringVar(&ticker, "ticker", "", "Ticker symbol of --file")
	cmd.Flags().StringVar(&file, "file", "", "CSV file to import")
	cmd.Flags().StringVar(&dir, "dir", "", "Directory of <TICKER>.csv files to import")

	return cmd
}

func newImporter(a *app, st *stores) *ingestion.Importer {
	return ingestion.NewImporter(ingestion.ImporterOptions{
		PriceStore:  st.prices,
		TickerStore: st.tickers,
		Logger:      a.logger,
	})
}

// importDir imports every *.csv in dir, named by ticker, in lexical order.
func importDir(cmd *cobra.Command, a *app, st *stores, dir string) (int, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", dir, err)
	}
	if len(paths) == 0 {
		if _, err := os.Stat(dir); err != nil {
			return 0, fmt.Errorf("read %s: %w", dir, err)
		}
		return 0, fmt.Errorf("%w: no csv files in %s", storage.ErrInvalidInput, dir)
	}
	sort.Strings(paths)

	importer := newImporter(a, st)
	total := 0
	for _, path := range paths {
		ticker := strings.ToUpper(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
		result, err := importer.ImportFile(cmd.Context(), ticker, path)
		if err != nil {
			return total, fmt.Errorf("import %s: %w", ticker, err)
		}
		total += result.Rows
	}
	return total, nil
}
