package reporting

import (
	"fmt"
	"strings"
	"time"

	"gtaa-lab/internal/domain"
)

// RenderMarkdown renders a single run as Markdown string.
func RenderMarkdown(result *domain.RunResult) string {
	var sb strings.Builder
	s := Summarize(result)

	// Header
	sb.WriteString(fmt.Sprintf("# Portfolio %d: %s\n\n", result.PortfolioID, result.PortfolioName))
	sb.WriteString(fmt.Sprintf("Run: `%s`\n\n", result.RunID))

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Starting Notional | %.2f |\n", s.StartingNotional))
	sb.WriteString(fmt.Sprintf("| Final Notional | %.2f |\n", s.FinalNotional))
	sb.WriteString(fmt.Sprintf("| Grand Total | %.2f |\n", s.GrandTotal))
	sb.WriteString(fmt.Sprintf("| Total Return | %.4f |\n", s.TotalReturn))
	sb.WriteString(fmt.Sprintf("| Rebalances | %d |\n", s.Rebalances))
	sb.WriteString(fmt.Sprintf("| Periods | %d |\n", s.Periods))
	sb.WriteString(fmt.Sprintf("| Mean Period Return | %.4f |\n", s.MeanReturn))
	sb.WriteString(fmt.Sprintf("| StdDev Period Return | %.4f |\n", s.StdDevReturn))
	sb.WriteString(fmt.Sprintf("| Max Drawdown | %.4f |\n", s.MaxDrawdown))
	if s.BestTicker != "" {
		sb.WriteString(fmt.Sprintf("| Best Ticker | %s (%.2f) |\n", s.BestTicker, s.BestTotal))
		sb.WriteString(fmt.Sprintf("| Worst Ticker | %s (%.2f) |\n", s.WorstTicker, s.WorstTotal))
	}
	sb.WriteString("\n")

	// Ticker totals
	sb.WriteString("## Ticker Totals\n\n")
	totals := SortedTotals(result)
	if len(totals) > 0 {
		sb.WriteString("| Ticker | Gain/Loss |\n")
		sb.WriteString("|--------|-----------|\n")
		for _, t := range totals {
			sb.WriteString(fmt.Sprintf("| %s | %.2f |\n", t.Ticker, t.GainLoss))
		}
	} else {
		sb.WriteString("No completed periods.\n")
	}
	sb.WriteString("\n")

	// Final holdings
	sb.WriteString("## Final Holdings\n\n")
	if n := len(result.Snapshots); n > 0 {
		snap := result.Snapshots[n-1]
		sb.WriteString(fmt.Sprintf("As of %s, notional %.2f\n\n", snap.Date.Format("2006-01-02"), snap.Notional))
		sb.WriteString("| Ticker | Allocated | Shares | Price |\n")
		sb.WriteString("|--------|-----------|--------|-------|\n")
		for _, tk := range snap.Tickers() {
			h := snap.Holdings[tk]
			sb.WriteString(fmt.Sprintf("| %s | %.2f | %.4f | %.4f |\n",
				h.Ticker, h.AllocatedValue, h.ShareCount, h.PriceAtAllocation))
		}
		if snap.Cash != 0 {
			sb.WriteString(fmt.Sprintf("| CASH | %.2f | | |\n", snap.Cash))
		}
	} else {
		sb.WriteString("No rebalance dates.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

// RenderIndex renders an overview of all runs in a report.
func RenderIndex(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Backtest Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Portfolios: %d\n\n", len(r.Runs)))

	if len(r.Runs) == 0 {
		sb.WriteString("No portfolios were backtested.\n")
		return sb.String()
	}

	sb.WriteString("| Portfolio | Name | Run | Final Notional | Return | MaxDD |\n")
	sb.WriteString("|-----------|------|-----|----------------|--------|-------|\n")
	for _, run := range r.Runs {
		runID := run.Result.RunID
		if len(runID) > 12 {
			runID = runID[:12]
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %.2f | %.4f | %.4f |\n",
			run.Result.PortfolioID, run.Result.PortfolioName, runID,
			run.Summary.FinalNotional, run.Summary.TotalReturn, run.Summary.MaxDrawdown))
	}
	sb.WriteString("\n")

	return sb.String()
}
