// Package reporting renders backtest results as CSV and Markdown.
package reporting

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"gtaa-lab/internal/domain"
)

// Report groups the results of one backtest invocation.
type Report struct {
	GeneratedAt time.Time
	Runs        []RunReport // sorted by portfolio_id
}

// RunReport is one portfolio run with its summary.
type RunReport struct {
	Result  *domain.RunResult
	Summary Summary
}

// Summary holds headline statistics of a run.
type Summary struct {
	StartingNotional float64
	FinalNotional    float64
	GrandTotal       float64
	TotalReturn      float64 // final / starting - 1
	Rebalances       int
	Periods          int
	MeanReturn       float64 // mean of period returns
	StdDevReturn     float64 // sample standard deviation of period returns
	MaxDrawdown      float64 // largest peak-to-trough decline of the notional path, as a fraction
	BestTicker       string
	BestTotal        float64
	WorstTicker      string
	WorstTotal       float64
}

// TickerTotal is the accumulated gain of one ticker.
type TickerTotal struct {
	Ticker   string
	GainLoss float64
}

// Summarize computes headline statistics from the notional path of result.
func Summarize(result *domain.RunResult) Summary {
	s := Summary{
		StartingNotional: result.StartingNotional,
		FinalNotional:    result.FinalNotional,
		GrandTotal:       result.GrandTotal,
		Rebalances:       len(result.Snapshots),
		Periods:          len(result.History),
	}
	if result.StartingNotional > 0 {
		s.TotalReturn = result.FinalNotional/result.StartingNotional - 1
	}

	returns := PeriodReturns(result)
	if len(returns) > 0 {
		s.MeanReturn = stat.Mean(returns, nil)
	}
	if len(returns) > 1 {
		s.StdDevReturn = stat.StdDev(returns, nil)
	}

	path := make([]float64, 0, len(result.History)+1)
	path = append(path, result.StartingNotional)
	for _, p := range result.History {
		path = append(path, p.NotionalAfter)
	}
	s.MaxDrawdown = maxDrawdown(path)

	totals := SortedTotals(result)
	if len(totals) > 0 {
		best, worst := totals[0], totals[0]
		for _, t := range totals[1:] {
			if t.GainLoss > best.GainLoss {
				best = t
			}
			if t.GainLoss < worst.GainLoss {
				worst = t
			}
		}
		s.BestTicker, s.BestTotal = best.Ticker, best.GainLoss
		s.WorstTicker, s.WorstTotal = worst.Ticker, worst.GainLoss
	}

	return s
}

// PeriodReturns returns NotionalAfter/NotionalBefore - 1 for each period.
// Periods with a non-positive starting notional are skipped.
func PeriodReturns(result *domain.RunResult) []float64 {
	returns := make([]float64, 0, len(result.History))
	for _, p := range result.History {
		if p.NotionalBefore <= 0 {
			continue
		}
		returns = append(returns, p.NotionalAfter/p.NotionalBefore-1)
	}
	return returns
}

// SortedTotals returns per-ticker totals ordered by ticker.
func SortedTotals(result *domain.RunResult) []TickerTotal {
	totals := make([]TickerTotal, 0, len(result.TickerTotals))
	for tk, v := range result.TickerTotals {
		totals = append(totals, TickerTotal{Ticker: tk, GainLoss: v})
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].Ticker < totals[j].Ticker })
	return totals
}

func maxDrawdown(path []float64) float64 {
	var peak, dd float64
	for _, v := range path {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd = math.Max(dd, (peak-v)/peak)
		}
	}
	return dd
}
