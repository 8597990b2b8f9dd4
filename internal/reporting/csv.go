package reporting

import (
	"fmt"
	"strings"

	"gtaa-lab/internal/domain"
)

// RenderHistoryCSV renders one line per performance record, in evaluation order.
func RenderHistoryCSV(result *domain.RunResult) string {
	var sb strings.Builder

	// Header
	sb.WriteString("run_id,portfolio_id,rebalance_date,evaluation_date,ticker,")
	sb.WriteString("prior_value,share_count,close_price,gain_loss,quote_status\n")

	// Rows
	for _, r := range result.Records() {
		sb.WriteString(fmt.Sprintf("%s,%d,%s,%s,%s,%.6f,%.6f,%.6f,%.6f,%s\n",
			r.RunID,
			r.PortfolioID,
			r.RebalanceDate.Format("2006-01-02"),
			r.EvaluationDate.Format("2006-01-02"),
			r.Ticker,
			r.PriorValue,
			r.ShareCount,
			r.ClosePrice,
			r.GainLoss,
			r.QuoteStatus,
		))
	}

	return sb.String()
}

// RenderTotalsCSV renders per-ticker totals ordered by ticker, then the grand total.
func RenderTotalsCSV(result *domain.RunResult) string {
	var sb strings.Builder

	sb.WriteString("ticker,gain_loss\n")
	for _, t := range SortedTotals(result) {
		sb.WriteString(fmt.Sprintf("%s,%.6f\n", t.Ticker, t.GainLoss))
	}
	sb.WriteString(fmt.Sprintf("TOTAL,%.6f\n", result.GrandTotal))

	return sb.String()
}
