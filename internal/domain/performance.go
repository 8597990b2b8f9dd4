package domain

import "time"

// Quote status values for a PerformanceRecord.
const (
	QuoteStatusActual  = "ACTUAL"  // close price found on the evaluation date
	QuoteStatusCarried = "CARRIED" // last known price carried forward
)

// PerformanceRecord is the mark-to-market of one holding across one rebalance transition.
// Corresponds to backtest_performance table.
type PerformanceRecord struct {
	RunID          string    // deterministic run hash
	PortfolioID    int64     // portfolio identifier
	RebalanceDate  time.Time // date the holding was opened
	EvaluationDate time.Time // date the holding was marked
	Ticker         string
	PriorValue     float64 // allocated value at rebalance
	ShareCount     float64
	GainLoss       float64 // close_price * share_count - prior_value
	ClosePrice     float64
	QuoteStatus    string // "ACTUAL" | "CARRIED"
}

// PerformancePeriod groups the records of one evaluation date.
type PerformancePeriod struct {
	RebalanceDate  time.Time
	EvaluationDate time.Time
	NotionalBefore float64
	NotionalAfter  float64
	GainLoss       float64
	Records        []*PerformanceRecord
}

// RunResult is the output of a single portfolio backtest.
type RunResult struct {
	RunID            string
	PortfolioID      int64
	PortfolioName    string
	StartingNotional float64
	FinalNotional    float64
	Snapshots        []*Snapshot
	History          []*PerformancePeriod
	TickerTotals     map[string]float64
	GrandTotal       float64
}

// Records flattens the history in evaluation order.
func (r *RunResult) Records() []*PerformanceRecord {
	var out []*PerformanceRecord
	for _, p := range r.History {
		out = append(out, p.Records...)
	}
	return out
}
