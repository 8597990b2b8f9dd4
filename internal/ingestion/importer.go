// Package ingestion imports daily price history into the price store.
package ingestion

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"gtaa-lab/internal/domain"
	"gtaa-lab/internal/features"
	"gtaa-lab/internal/observability"
	"gtaa-lab/internal/storage"
)

// Importer writes price files to storage with trade day ranks.
type Importer struct {
	priceStore  storage.PriceStore
	tickerStore storage.TickerStore
	logger      zerolog.Logger
}

// ImporterOptions contains configuration for creating an Importer.
type ImporterOptions struct {
	PriceStore  storage.PriceStore
	TickerStore storage.TickerStore
	Logger      zerolog.Logger
}

// NewImporter creates a new price importer.
func NewImporter(opts ImporterOptions) *Importer {
	return &Importer{
		priceStore:  opts.PriceStore,
		tickerStore: opts.TickerStore,
		logger:      opts.Logger,
	}
}

// ImportResult summarizes one import.
type ImportResult struct {
	Ticker  string
	Rows    int // rows written, including re-ranked rows already stored
	From    time.Time
	To      time.Time
	Carried int // stored rows re-ranked because the file starts mid-month
}

// ImportFile imports a CSV file for ticker.
func (im *Importer) ImportFile(ctx context.Context, ticker, path string) (*ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	points, err := ParseCSV(ticker, f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return im.Import(ctx, ticker, points)
}

// Import replaces the ticker's history from the first point's date onwards.
// Ranks are computed over whole months: when points start mid-month, stored
// rows earlier in that month are re-ranked and rewritten with them.
func (im *Importer) Import(ctx context.Context, ticker string, points []*domain.PricePoint) (*ImportResult, error) {
	if ticker == "" {
		return nil, fmt.Errorf("%w: empty ticker", storage.ErrInvalidInput)
	}
	if len(points) == 0 {
		return nil, ErrNoRows
	}

	sorted := make([]*domain.PricePoint, len(points))
	for i, p := range points {
		copy := *p
		copy.Ticker = ticker
		copy.TradeDate = domain.DateOnly(p.TradeDate)
		sorted[i] = &copy
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].TradeDate.Before(sorted[j].TradeDate) })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].TradeDate.Equal(sorted[i-1].TradeDate) {
			return nil, fmt.Errorf("%w: duplicate date %s", storage.ErrDuplicateKey, sorted[i].TradeDate.Format("2006-01-02"))
		}
	}

	first := sorted[0].TradeDate
	monthStart := time.Date(first.Year(), first.Month(), 1, 0, 0, 0, 0, time.UTC)

	var carried []*domain.PricePoint
	if first.After(monthStart) {
		existing, err := im.priceStore.GetFeatureSeries(ctx, []string{ticker})
		if err != nil {
			return nil, fmt.Errorf("load stored prices: %w", err)
		}
		for _, p := range existing {
			if !p.TradeDate.Before(monthStart) && p.TradeDate.Before(first) {
				carried = append(carried, p)
			}
		}
	}

	all := append(carried, sorted...)
	features.AssignTradeDayRanks(all)

	if err := im.priceStore.ReplaceFrom(ctx, ticker, all); err != nil {
		return nil, fmt.Errorf("replace prices: %w", err)
	}

	last := sorted[len(sorted)-1].TradeDate
	if err := im.tickerStore.UpdateLastTradeDate(ctx, ticker, last); err != nil {
		return nil, fmt.Errorf("update last trade date: %w", err)
	}

	observability.RecordPricesImported(ticker, len(sorted))

	result := &ImportResult{
		Ticker:  ticker,
		Rows:    len(all),
		From:    all[0].TradeDate,
		To:      last,
		Carried: len(carried),
	}

	im.logger.Info().
		Str("ticker", ticker).
		Int("rows", result.Rows).
		Int("carried", result.Carried).
		Str("from", result.From.Format("2006-01-02")).
		Str("to", result.To.Format("2006-01-02")).
		Msg("prices imported")

	return result, nil
}
