package backtest

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"gtaa-lab/internal/domain"
	"gtaa-lab/internal/features"
	"gtaa-lab/internal/storage/memory"
)

type bar struct {
	date  time.Time
	price float64
}

// fixture is a three month universe of A and B with default ticker D.
// With daySpec 1 the rebalance dates are Jan 2, Feb 3 and Mar 2.
type fixture struct {
	portfolios *memory.PortfolioStore
	rules      *memory.RuleStore
	prices     *memory.PriceStore
	cfg        domain.PortfolioConfig
}

func defaultBars() map[string][]bar {
	return map[string][]bar{
		"A": {
			{day(2020, 1, 2), 10}, {day(2020, 1, 3), 11},
			{day(2020, 2, 3), 12}, {day(2020, 2, 4), 13},
			{day(2020, 3, 2), 15}, {day(2020, 3, 3), 15},
		},
		"B": {
			{day(2020, 1, 2), 20}, {day(2020, 1, 3), 20},
			{day(2020, 2, 3), 19}, {day(2020, 2, 4), 19},
			{day(2020, 3, 2), 19}, {day(2020, 3, 3), 19},
		},
		"D": {
			{day(2020, 1, 2), 100}, {day(2020, 1, 3), 100},
			{day(2020, 2, 3), 100}, {day(2020, 2, 4), 100},
			{day(2020, 3, 2), 110}, {day(2020, 3, 3), 110},
		},
	}
}

func newFixture(t *testing.T, series map[string][]bar, ruleTexts ...string) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		portfolios: memory.NewPortfolioStore(),
		rules:      memory.NewRuleStore(),
		prices:     memory.NewPriceStore(),
		cfg: domain.PortfolioConfig{
			PortfolioID:      1,
			Name:             "test",
			TickerGroupID:    9,
			RebalanceDaySpec: 1,
			PositionCount:    1,
			DefaultTicker:    "D",
			IsActive:         true,
		},
	}

	if err := f.portfolios.Insert(ctx, &f.cfg); err != nil {
		t.Fatalf("Insert portfolio: %v", err)
	}
	if err := f.portfolios.AddGroupTickers(ctx, 9, "A", "B"); err != nil {
		t.Fatalf("AddGroupTickers: %v", err)
	}
	for _, text := range ruleTexts {
		if err := f.rules.Insert(ctx, 1, text); err != nil {
			t.Fatalf("Insert rule: %v", err)
		}
	}

	for ticker, bars := range series {
		points := make([]*domain.PricePoint, len(bars))
		for i, b := range bars {
			points[i] = &domain.PricePoint{Ticker: ticker, TradeDate: b.date, Close: b.price, AdjClose: b.price}
		}
		features.AssignTradeDayRanks(points)
		if err := f.prices.ReplaceFrom(ctx, ticker, points); err != nil {
			t.Fatalf("ReplaceFrom %s: %v", ticker, err)
		}
	}

	return f
}

func (f *fixture) runner(opts Options) *Runner {
	return NewRunner(RunnerOptions{
		PortfolioStore: f.portfolios,
		RuleStore:      f.rules,
		PriceStore:     f.prices,
		Pipeline: features.NewPipeline(features.Options{
			ReturnPeriods: []int{1},
			Composites:    []features.Composite{{Name: "score", Components: []string{"pct_1d"}}},
		}),
		Options: opts,
		Logger:  zerolog.Nop(),
	})
}

func testOptions() Options {
	return Options{
		Notional:           100000,
		StartAfter:         day(2019, 12, 31),
		ScoreColumn:        "score",
		MissingQuotePolicy: PolicyCarryForward,
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestRunner_WarmUpThenSteadyState(t *testing.T) {
	f := newFixture(t, defaultBars())

	result, err := f.runner(testOptions()).Run(context.Background(), f.cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Snapshots) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(result.Snapshots))
	}
	if len(result.History) != 2 {
		t.Fatalf("warm-up must not produce records: expected 2 periods, got %d", len(result.History))
	}

	// Jan 2: no scores yet, everything goes to D.
	first := result.Snapshots[0]
	if h := first.Holdings["D"]; h.AllocatedValue != 100000 || h.ShareCount != 1000 {
		t.Errorf("Jan 2 D holding = %+v, want 100000 / 1000 shares", h)
	}

	// Feb 3: A has the best score (12/11-1).
	second := result.Snapshots[1]
	if h := second.Holdings["A"]; h.AllocatedValue != 100000 || h.PriceAtAllocation != 12 {
		t.Errorf("Feb 3 A holding = %+v, want 100000 at 12", h)
	}

	// Mar 2: A marked at 15.
	period := result.History[1]
	if !period.EvaluationDate.Equal(day(2020, 3, 2)) || !period.RebalanceDate.Equal(day(2020, 2, 3)) {
		t.Errorf("unexpected period dates %s -> %s", period.RebalanceDate, period.EvaluationDate)
	}
	if !approx(period.GainLoss, 25000) {
		t.Errorf("Mar 2 gain = %f, want 25000", period.GainLoss)
	}

	if !approx(result.FinalNotional, 125000) {
		t.Errorf("FinalNotional = %f, want 125000", result.FinalNotional)
	}
	if !approx(result.GrandTotal, result.FinalNotional-result.StartingNotional) {
		t.Errorf("GrandTotal %f != final - starting %f", result.GrandTotal, result.FinalNotional-result.StartingNotional)
	}
	if !approx(result.TickerTotals["A"], 25000) || result.TickerTotals["D"] != 0 {
		t.Errorf("TickerTotals = %v", result.TickerTotals)
	}

	for _, r := range result.Records() {
		if r.RunID != result.RunID || r.RunID == "" {
			t.Errorf("record run id %q, want %q", r.RunID, result.RunID)
		}
		if r.QuoteStatus != domain.QuoteStatusActual {
			t.Errorf("record %s status %s, want ACTUAL", r.Ticker, r.QuoteStatus)
		}
		if !approx(r.GainLoss, r.ClosePrice*r.ShareCount-r.PriorValue) {
			t.Errorf("record %s gain %f inconsistent", r.Ticker, r.GainLoss)
		}
	}
}

func TestRunner_NotionalConservation(t *testing.T) {
	f := newFixture(t, defaultBars())

	result, err := f.runner(testOptions()).Run(context.Background(), f.cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for i, snap := range result.Snapshots {
		if !approx(snap.TotalValue(), snap.Notional) {
			t.Errorf("snapshot %d: holdings+cash %f != notional %f", i, snap.TotalValue(), snap.Notional)
		}
		if i > 0 && !approx(snap.Notional, result.History[i-1].NotionalAfter) {
			t.Errorf("snapshot %d notional %f != prior period after %f", i, snap.Notional, result.History[i-1].NotionalAfter)
		}
	}
}

func TestRunner_RuleExclusion(t *testing.T) {
	f := newFixture(t, defaultBars(), "pct_1d > 0.05")

	result, err := f.runner(testOptions()).Run(context.Background(), f.cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// A is excluded on Feb 3, B is the only remaining candidate.
	feb := result.Snapshots[1]
	if _, ok := feb.Holdings["A"]; ok {
		t.Error("A must be excluded by rule on Feb 3")
	}
	if h := feb.Holdings["B"]; h.PriceAtAllocation != 19 {
		t.Errorf("B holding = %+v, want allocation at 19", h)
	}
}

func TestRunner_CarryForwardMissingQuote(t *testing.T) {
	bars := defaultBars()
	// Drop A's Mar 2 bar; B still defines the rebalance date.
	bars["A"] = append(bars["A"][:4:4], bars["A"][5])
	f := newFixture(t, bars)

	result, err := f.runner(testOptions()).Run(context.Background(), f.cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	var rec *domain.PerformanceRecord
	for _, r := range result.History[1].Records {
		if r.Ticker == "A" {
			rec = r
		}
	}
	if rec == nil {
		t.Fatal("no record for A on Mar 2")
	}
	if rec.QuoteStatus != domain.QuoteStatusCarried {
		t.Errorf("status = %s, want CARRIED", rec.QuoteStatus)
	}
	if rec.ClosePrice != 13 {
		t.Errorf("carried price = %f, want last known 13", rec.ClosePrice)
	}
	if !approx(rec.GainLoss, 100000.0/12*13-100000) {
		t.Errorf("gain = %f", rec.GainLoss)
	}
}

func TestRunner_FailPolicyMissingQuote(t *testing.T) {
	bars := defaultBars()
	bars["A"] = append(bars["A"][:4:4], bars["A"][5])
	f := newFixture(t, bars)

	opts := testOptions()
	opts.MissingQuotePolicy = PolicyFail

	_, err := f.runner(opts).Run(context.Background(), f.cfg)
	if !errors.Is(err, domain.ErrMissingPriceQuote) {
		t.Errorf("expected ErrMissingPriceQuote, got %v", err)
	}
}

func TestRunner_LeftoverAsCashWithoutDefault(t *testing.T) {
	f := newFixture(t, defaultBars())
	cfg := f.cfg
	cfg.DefaultTicker = ""

	result, err := f.runner(testOptions()).Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	first := result.Snapshots[0]
	if len(first.Holdings) != 0 || first.Cash != 100000 {
		t.Errorf("Jan 2 snapshot = %+v, want all cash", first)
	}
	if len(result.History[0].Records) != 0 || result.History[0].NotionalAfter != 100000 {
		t.Errorf("cash must earn nothing: %+v", result.History[0])
	}
}

func TestRunner_Deterministic(t *testing.T) {
	f := newFixture(t, defaultBars(), "pct_1d < -0.5")
	runner := f.runner(testOptions())

	a, err := runner.Run(context.Background(), f.cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	b, err := runner.Run(context.Background(), f.cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if a.RunID != b.RunID {
		t.Errorf("run id differs: %s vs %s", a.RunID, b.RunID)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("results differ between identical runs")
	}

	opts := testOptions()
	opts.Notional = 50000
	c, err := f.runner(opts).Run(context.Background(), f.cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if c.RunID == a.RunID {
		t.Error("different notional must change the run id")
	}
}

func TestRunner_RunByID(t *testing.T) {
	f := newFixture(t, defaultBars())

	result, err := f.runner(testOptions()).RunByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("RunByID failed: %v", err)
	}
	if result.PortfolioName != "test" {
		t.Errorf("PortfolioName = %q", result.PortfolioName)
	}

	if _, err := f.runner(testOptions()).RunByID(context.Background(), 2); err == nil {
		t.Error("expected error for unknown portfolio")
	}
}

func TestRunner_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		rules  []string
		mutate func(cfg *domain.PortfolioConfig, opts *Options)
	}{
		{"zero day spec", nil, func(cfg *domain.PortfolioConfig, _ *Options) { cfg.RebalanceDaySpec = 0 }},
		{"negative position count", nil, func(cfg *domain.PortfolioConfig, _ *Options) { cfg.PositionCount = -1 }},
		{"unknown weight scheme", nil, func(cfg *domain.PortfolioConfig, _ *Options) { cfg.WeightScheme = "cubic" }},
		{"no tickers", nil, func(cfg *domain.PortfolioConfig, _ *Options) { cfg.TickerGroupID = 77 }},
		{"rule syntax", []string{"pct_1d <"}, func(*domain.PortfolioConfig, *Options) {}},
		{"non-positive notional", nil, func(_ *domain.PortfolioConfig, o *Options) { o.Notional = 0 }},
		{"unknown policy", nil, func(_ *domain.PortfolioConfig, o *Options) { o.MissingQuotePolicy = "skip" }},
		{"unknown score column", nil, func(_ *domain.PortfolioConfig, o *Options) { o.ScoreColumn = "pct_gtaa" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, defaultBars(), tt.rules...)
			cfg := f.cfg
			opts := testOptions()
			tt.mutate(&cfg, &opts)

			if cfg.TickerGroupID != f.cfg.TickerGroupID {
				// GetTickers resolves the group through the stored portfolio.
				f.portfolios = memory.NewPortfolioStore()
				_ = f.portfolios.Insert(context.Background(), &cfg)
			}

			_, err := f.runner(opts).Run(context.Background(), cfg)
			if !errors.Is(err, domain.ErrConfiguration) {
				t.Errorf("expected ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestRunner_UnknownCompositeComponent(t *testing.T) {
	f := newFixture(t, defaultBars())
	runner := NewRunner(RunnerOptions{
		PortfolioStore: f.portfolios,
		RuleStore:      f.rules,
		PriceStore:     f.prices,
		Pipeline: features.NewPipeline(features.Options{
			ReturnPeriods: []int{1},
			Composites:    []features.Composite{{Name: "score", Components: []string{"pct_1x"}}},
		}),
		Options: testOptions(),
		Logger:  zerolog.Nop(),
	})

	result, err := runner.Run(context.Background(), f.cfg)
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if result != nil {
		t.Errorf("expected no result, got %d snapshots", len(result.Snapshots))
	}
}

func TestRunner_Cancelled(t *testing.T) {
	f := newFixture(t, defaultBars())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.runner(testOptions()).Run(ctx, f.cfg)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
