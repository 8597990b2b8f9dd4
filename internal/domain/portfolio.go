package domain

import (
	"sort"
	"time"
)

// Weight schemes for the rebalance weight schedule.
const (
	WeightSchemeEqual  = "equal"  // 1/n per slot
	WeightSchemeLinear = "linear" // (n, n-1, ..., 1) / sum
)

// PortfolioConfig represents a row of the portfolio table.
type PortfolioConfig struct {
	PortfolioID      int64
	Name             string
	TickerGroupID    int64
	RebalanceDaySpec int    // >0: Nth trading day of month, <0: Nth from month end
	PositionCount    int    // target number of positions (n)
	DefaultTicker    string // absorbs unallocated capital; empty means hold cash
	IsActive         bool
	WeightScheme     string // "" defaults to equal
}

// Holding is the capital assigned to one ticker at one rebalance.
type Holding struct {
	Ticker            string
	AllocatedValue    float64
	ShareCount        float64 // allocated_value / price_at_allocation
	PriceAtAllocation float64
}

// Snapshot is the portfolio between two consecutive rebalance dates.
// Snapshots are never mutated after creation.
type Snapshot struct {
	Date     time.Time
	Notional float64 // capital deployed at creation
	Holdings map[string]Holding
	Cash     float64 // uninvested balance, zero-return
}

// Tickers returns held tickers in lexical order.
func (s *Snapshot) Tickers() []string {
	tickers := make([]string, 0, len(s.Holdings))
	for tk := range s.Holdings {
		tickers = append(tickers, tk)
	}
	sort.Strings(tickers)
	return tickers
}

// TotalValue returns allocated value across holdings plus cash.
func (s *Snapshot) TotalValue() float64 {
	total := s.Cash
	for _, tk := range s.Tickers() {
		total += s.Holdings[tk].AllocatedValue
	}
	return total
}
