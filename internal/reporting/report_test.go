package reporting

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gtaa-lab/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func sampleResult() *domain.RunResult {
	jan, feb, mar := day(2020, 1, 2), day(2020, 2, 3), day(2020, 3, 2)
	rec := func(reb, eval time.Time, tk string, prior, gain float64) *domain.PerformanceRecord {
		return &domain.PerformanceRecord{
			RunID: "abc123", PortfolioID: 7, RebalanceDate: reb, EvaluationDate: eval, Ticker: tk,
			PriorValue: prior, ShareCount: prior / 10, ClosePrice: (prior + gain) / (prior / 10),
			GainLoss: gain, QuoteStatus: domain.QuoteStatusActual,
		}
	}

	return &domain.RunResult{
		RunID:            "abc123",
		PortfolioID:      7,
		PortfolioName:    "momentum",
		StartingNotional: 100000,
		FinalNotional:    99000,
		Snapshots: []*domain.Snapshot{
			{Date: jan, Notional: 100000, Holdings: map[string]domain.Holding{"A": {Ticker: "A", AllocatedValue: 100000, ShareCount: 10000, PriceAtAllocation: 10}}},
			{Date: feb, Notional: 110000, Holdings: map[string]domain.Holding{
				"A": {Ticker: "A", AllocatedValue: 55000, ShareCount: 5500, PriceAtAllocation: 10},
				"B": {Ticker: "B", AllocatedValue: 55000, ShareCount: 5500, PriceAtAllocation: 10},
			}},
			{Date: mar, Notional: 99000, Holdings: map[string]domain.Holding{"B": {Ticker: "B", AllocatedValue: 98000, ShareCount: 9800, PriceAtAllocation: 10}}, Cash: 1000},
		},
		History: []*domain.PerformancePeriod{
			{RebalanceDate: jan, EvaluationDate: feb, NotionalBefore: 100000, NotionalAfter: 110000, GainLoss: 10000,
				Records: []*domain.PerformanceRecord{rec(jan, feb, "A", 100000, 10000)}},
			{RebalanceDate: feb, EvaluationDate: mar, NotionalBefore: 110000, NotionalAfter: 99000, GainLoss: -11000,
				Records: []*domain.PerformanceRecord{rec(feb, mar, "A", 55000, -5000), rec(feb, mar, "B", 55000, -6000)}},
		},
		TickerTotals: map[string]float64{"A": 5000, "B": -6000},
		GrandTotal:   -1000,
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleResult())

	if s.Rebalances != 3 || s.Periods != 2 {
		t.Errorf("Rebalances/Periods = %d/%d, want 3/2", s.Rebalances, s.Periods)
	}
	if !approx(s.TotalReturn, -0.01) {
		t.Errorf("TotalReturn = %f, want -0.01", s.TotalReturn)
	}
	if !approx(s.MeanReturn, 0) {
		t.Errorf("MeanReturn = %f, want 0", s.MeanReturn)
	}
	if !approx(s.StdDevReturn, math.Sqrt(0.02)) {
		t.Errorf("StdDevReturn = %f, want %f", s.StdDevReturn, math.Sqrt(0.02))
	}
	if !approx(s.MaxDrawdown, 0.1) {
		t.Errorf("MaxDrawdown = %f, want 0.1", s.MaxDrawdown)
	}
	if s.BestTicker != "A" || s.WorstTicker != "B" {
		t.Errorf("Best/Worst = %s/%s, want A/B", s.BestTicker, s.WorstTicker)
	}
}

func TestSummarize_NoHistory(t *testing.T) {
	s := Summarize(&domain.RunResult{StartingNotional: 100, FinalNotional: 100})

	if s.MeanReturn != 0 || s.StdDevReturn != 0 || s.MaxDrawdown != 0 {
		t.Errorf("expected zero statistics, got %+v", s)
	}
	if s.BestTicker != "" {
		t.Errorf("expected no best ticker, got %q", s.BestTicker)
	}
}

func TestRenderHistoryCSV(t *testing.T) {
	out := RenderHistoryCSV(sampleResult())
	lines := strings.Split(strings.TrimSpace(out), "\n")

	if len(lines) != 4 {
		t.Fatalf("expected header + 3 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "run_id,portfolio_id,rebalance_date") {
		t.Errorf("unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "abc123,7,2020-01-02,2020-02-03,A,100000.000000") {
		t.Errorf("unexpected first row %q", lines[1])
	}
	if !strings.HasSuffix(lines[3], "-6000.000000,ACTUAL") {
		t.Errorf("unexpected last row %q", lines[3])
	}
}

func TestRenderTotalsCSV(t *testing.T) {
	out := RenderTotalsCSV(sampleResult())
	want := "ticker,gain_loss\nA,5000.000000\nB,-6000.000000\nTOTAL,-1000.000000\n"

	if out != want {
		t.Errorf("RenderTotalsCSV =\n%s\nwant\n%s", out, want)
	}
}

func TestRenderMarkdown(t *testing.T) {
	md := RenderMarkdown(sampleResult())

	requiredSections := []string{
		"# Portfolio 7: momentum",
		"## Summary",
		"| Max Drawdown | 0.1000 |",
		"| Best Ticker | A (5000.00) |",
		"## Ticker Totals",
		"## Final Holdings",
		"| CASH | 1000.00 | | |",
	}
	for _, section := range requiredSections {
		if !strings.Contains(md, section) {
			t.Errorf("Markdown missing %q", section)
		}
	}
}

func TestGenerator_WriteFiles(t *testing.T) {
	fixed := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	gen := NewGenerator().WithClock(func() time.Time { return fixed })

	second := sampleResult()
	second.PortfolioID = 3
	report := gen.Generate([]*domain.RunResult{sampleResult(), nil, second})

	if len(report.Runs) != 2 || report.Runs[0].Result.PortfolioID != 3 {
		t.Fatalf("runs not sorted by portfolio id: %+v", report.Runs)
	}

	dir := t.TempDir()
	written, err := gen.WriteFiles(dir, report)
	if err != nil {
		t.Fatalf("WriteFiles failed: %v", err)
	}
	if len(written) != 7 {
		t.Errorf("expected 7 files, got %d", len(written))
	}

	index, err := os.ReadFile(filepath.Join(dir, "report.md"))
	if err != nil {
		t.Fatalf("read index: %v", err)
	}
	if !strings.Contains(string(index), "Generated: 2024-01-15T12:00:00Z") {
		t.Errorf("index missing fixed timestamp:\n%s", index)
	}
	if _, err := os.Stat(filepath.Join(dir, "portfolio_7", "history.csv")); err != nil {
		t.Errorf("history.csv not written: %v", err)
	}
}
