package domain

import "errors"

// Backtest errors.
var (
	// ErrConfiguration aborts a single portfolio backtest.
	ErrConfiguration = errors.New("configuration error")

	// ErrMissingPriceQuote is returned when a held ticker has no close price
	// and the missing quote policy is "fail".
	ErrMissingPriceQuote = errors.New("missing price quote")
)
