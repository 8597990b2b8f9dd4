// Package idhash derives deterministic identifiers from run inputs.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"sort"
	"strconv"

	"gtaa-lab/internal/domain"
)

// RunKey is everything that determines the output of a portfolio backtest.
type RunKey struct {
	Portfolio  domain.PortfolioConfig
	Tickers    []string
	Rules      []string
	Parameters string // canonical rendering of backtest options
	Prices     []*domain.PricePoint
}

// ComputeRunID computes a deterministic run_id using SHA256.
// Formula: SHA256(portfolio|tickers|rules|parameters|ticker:date:adj_close...)
// Ticker order is irrelevant. Rule order is significant. Returns a 64 character hex string.
func ComputeRunID(k RunKey) string {
	h := sha256.New()

	p := k.Portfolio
	fmt.Fprintf(h, "%d|%s|%d|%d|%d|%s|%s",
		p.PortfolioID,
		p.Name,
		p.TickerGroupID,
		p.RebalanceDaySpec,
		p.PositionCount,
		p.DefaultTicker,
		p.WeightScheme,
	)

	tickers := append([]string(nil), k.Tickers...)
	sort.Strings(tickers)
	writeList(h, tickers)
	writeList(h, k.Rules)
	fmt.Fprintf(h, "|%s", k.Parameters)

	for _, pt := range k.Prices {
		fmt.Fprintf(h, "|%s:%s:%s",
			pt.Ticker,
			pt.TradeDate.Format("2006-01-02"),
			strconv.FormatFloat(pt.AdjClose, 'g', -1, 64),
		)
	}

	return hex.EncodeToString(h.Sum(nil))
}

// writeList writes a length-prefixed list so element boundaries are unambiguous.
func writeList(h hash.Hash, values []string) {
	fmt.Fprintf(h, "|%d", len(values))
	for _, v := range values {
		fmt.Fprintf(h, "|%d:%s", len(v), v)
	}
}
