package backtest

import (
	"fmt"
	"sort"
	"time"

	"gtaa-lab/internal/domain"
)

// RebalanceDates returns the distinct dates, ascending, of rows whose trade day
// rank matches daySpec and that fall strictly after `after`.
// daySpec > 0 selects the Nth trading day of each month, daySpec < 0 the Nth
// from the month end. daySpec == 0 is a configuration error.
func RebalanceDates(rows []*domain.FeatureRow, daySpec int, after time.Time) ([]time.Time, error) {
	if daySpec == 0 {
		return nil, fmt.Errorf("%w: rebalance day spec must be non-zero", domain.ErrConfiguration)
	}

	seen := make(map[time.Time]struct{})
	var dates []time.Time
	for _, row := range rows {
		if !matchesDaySpec(row.Price, daySpec) {
			continue
		}
		d := domain.DateOnly(row.TradeDate)
		if !d.After(after) {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		dates = append(dates, d)
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

func matchesDaySpec(p domain.PricePoint, daySpec int) bool {
	if daySpec > 0 {
		return p.TradeDay == daySpec
	}
	return p.ReverseTradeDay == -daySpec
}

// groupByDate indexes rows by trade date.
func groupByDate(rows []*domain.FeatureRow) map[time.Time][]*domain.FeatureRow {
	out := make(map[time.Time][]*domain.FeatureRow)
	for _, row := range rows {
		d := domain.DateOnly(row.TradeDate)
		out[d] = append(out[d], row)
	}
	return out
}

// priceHistory answers "last known adj_close on or before date" per ticker.
type priceHistory struct {
	dates  map[string][]time.Time
	prices map[string][]float64
}

// newPriceHistory builds a history from rows sorted by (ticker, trade_date).
func newPriceHistory(rows []*domain.FeatureRow) *priceHistory {
	h := &priceHistory{
		dates:  make(map[string][]time.Time),
		prices: make(map[string][]float64),
	}
	for _, row := range rows {
		px, ok := row.Lookup(domain.ColumnAdjClose)
		if !ok || px <= 0 {
			continue
		}
		h.dates[row.Ticker] = append(h.dates[row.Ticker], domain.DateOnly(row.TradeDate))
		h.prices[row.Ticker] = append(h.prices[row.Ticker], px)
	}
	return h
}

// at returns the price observed exactly on date.
func (h *priceHistory) at(ticker string, date time.Time) (float64, bool) {
	dates := h.dates[ticker]
	i := sort.Search(len(dates), func(i int) bool { return !dates[i].Before(date) })
	if i < len(dates) && dates[i].Equal(date) {
		return h.prices[ticker][i], true
	}
	return 0, false
}

// lastAt returns the latest price observed on or before date.
func (h *priceHistory) lastAt(ticker string, date time.Time) (float64, bool) {
	dates := h.dates[ticker]
	i := sort.Search(len(dates), func(i int) bool { return dates[i].After(date) })
	if i == 0 {
		return 0, false
	}
	return h.prices[ticker][i-1], true
}
