package domain

import "time"

// PricePoint represents one daily bar for a ticker.
// Corresponds to ticker_price table. Unique by (ticker, trade_date).
type PricePoint struct {
	Ticker          string    // instrument symbol
	TradeDate       time.Time // trading session date (UTC midnight)
	Open            float64   // open price
	High            float64   // session high
	Low             float64   // session low
	Close           float64   // unadjusted close
	AdjClose        float64   // split/dividend adjusted close
	Volume          int64     // shares traded
	TradeDay        int       // 1-based ascending rank of the date within its month
	ReverseTradeDay int       // 1-based descending rank of the date within its month
}

// Ticker is an entry of ticker_list.
type Ticker struct {
	Symbol        string
	LastTradeDate *time.Time // nil until prices were imported
}

// DateOnly truncates t to a UTC calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
