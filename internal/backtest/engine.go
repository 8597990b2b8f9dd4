// Package backtest replays a GTAA portfolio over its rebalance dates.
//
// The engine has two states. In warm-up there is no prior snapshot and the
// first rebalance only allocates. In steady state every rebalance first marks
// the prior snapshot to market on the new date, rolls the gain into the
// notional, then allocates again.
package backtest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"gtaa-lab/internal/allocation"
	"gtaa-lab/internal/domain"
	"gtaa-lab/internal/observability"
	"gtaa-lab/internal/rules"
)

// Missing quote policies.
const (
	PolicyCarryForward = "carry_forward"
	PolicyFail         = "fail"
)

// CloseSource provides evaluation prices for a portfolio universe.
type CloseSource interface {
	GetClosePrices(ctx context.Context, portfolioID int64, date time.Time) (map[string]float64, error)
}

// Params is the resolved input of one portfolio backtest.
type Params struct {
	RunID              string
	Portfolio          domain.PortfolioConfig
	Tickers            []string // ticker group, candidates for allocation
	Rules              []*rules.Rule
	Notional           float64
	StartAfter         time.Time
	ScoreColumn        string
	MissingQuotePolicy string
}

// Engine runs the rebalance loop for one portfolio.
type Engine struct {
	params Params
	closes CloseSource
	logger zerolog.Logger

	snapshot *domain.Snapshot
	notional float64
	result   *domain.RunResult
}

// NewEngine creates a backtest engine.
func NewEngine(params Params, closes CloseSource, logger zerolog.Logger) *Engine {
	return &Engine{
		params: params,
		closes: closes,
		logger: logger.With().Int64("portfolio_id", params.Portfolio.PortfolioID).Logger(),
	}
}

// Run replays rows, which must be sorted by (ticker, trade_date) and may contain
// tickers outside the group (the default ticker) used only for pricing.
func (e *Engine) Run(ctx context.Context, rows []*domain.FeatureRow) (*domain.RunResult, error) {
	p := e.params
	if p.MissingQuotePolicy != PolicyCarryForward && p.MissingQuotePolicy != PolicyFail {
		return nil, fmt.Errorf("%w: unknown missing quote policy %q", domain.ErrConfiguration, p.MissingQuotePolicy)
	}

	group := make(map[string]struct{}, len(p.Tickers))
	for _, tk := range p.Tickers {
		group[tk] = struct{}{}
	}
	candidates := make([]*domain.FeatureRow, 0, len(rows))
	for _, row := range rows {
		if _, ok := group[row.Ticker]; ok {
			candidates = append(candidates, row)
		}
	}

	dates, err := RebalanceDates(candidates, p.Portfolio.RebalanceDaySpec, p.StartAfter)
	if err != nil {
		return nil, err
	}

	history := newPriceHistory(rows)
	byDate := groupByDate(candidates)

	e.snapshot = nil
	e.notional = p.Notional
	e.result = &domain.RunResult{
		RunID:            p.RunID,
		PortfolioID:      p.Portfolio.PortfolioID,
		PortfolioName:    p.Portfolio.Name,
		StartingNotional: p.Notional,
		TickerTotals:     make(map[string]float64),
	}

	for _, date := range dates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if e.snapshot != nil {
			period, err := e.markToMarket(ctx, date, history)
			if err != nil {
				return nil, err
			}
			e.result.History = append(e.result.History, period)
			e.notional = period.NotionalAfter
		}

		snap, err := e.rebalance(date, byDate[date], history)
		if err != nil {
			return nil, fmt.Errorf("rebalance %s: %w", date.Format("2006-01-02"), err)
		}
		e.snapshot = snap
		e.result.Snapshots = append(e.result.Snapshots, snap)
	}

	e.result.FinalNotional = e.notional
	for _, period := range e.result.History {
		for _, r := range period.Records {
			e.result.TickerTotals[r.Ticker] += r.GainLoss
			e.result.GrandTotal += r.GainLoss
		}
	}

	return e.result, nil
}

// rebalance allocates the current notional across the candidates of date.
func (e *Engine) rebalance(date time.Time, candidates []*domain.FeatureRow, history *priceHistory) (*domain.Snapshot, error) {
	p := e.params

	// Default ticker allocation uses the last known price; none means cash.
	var defaultPrice float64
	if p.Portfolio.DefaultTicker != "" {
		defaultPrice, _ = history.lastAt(p.Portfolio.DefaultTicker, date)
	}

	sorted := append([]*domain.FeatureRow(nil), candidates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Ticker < sorted[j].Ticker })

	snap, err := allocation.Rebalance(allocation.Request{
		Date:          date,
		Candidates:    sorted,
		Notional:      e.notional,
		PositionCount: p.Portfolio.PositionCount,
		WeightScheme:  p.Portfolio.WeightScheme,
		Rules:         p.Rules,
		ScoreColumn:   p.ScoreColumn,
		DefaultTicker: p.Portfolio.DefaultTicker,
		DefaultPrice:  defaultPrice,
		OnExcluded: func(ticker string) {
			observability.RecordRuleExclusion()
			e.logger.Debug().Str("date", date.Format("2006-01-02")).Str("ticker", ticker).Msg("candidate excluded by rule")
		},
	})
	if err != nil {
		return nil, err
	}

	observability.RecordRebalance(len(snap.Holdings))
	e.logger.Debug().
		Str("date", date.Format("2006-01-02")).
		Float64("notional", snap.Notional).
		Strs("holdings", snap.Tickers()).
		Float64("cash", snap.Cash).
		Msg("rebalanced")

	return snap, nil
}

// markToMarket values the current snapshot on date.
func (e *Engine) markToMarket(ctx context.Context, date time.Time, history *priceHistory) (*domain.PerformancePeriod, error) {
	p := e.params
	prior := e.snapshot

	closes, err := e.closes.GetClosePrices(ctx, p.Portfolio.PortfolioID, date)
	if err != nil {
		return nil, fmt.Errorf("get close prices %s: %w", date.Format("2006-01-02"), err)
	}

	period := &domain.PerformancePeriod{
		RebalanceDate:  prior.Date,
		EvaluationDate: date,
		NotionalBefore: e.notional,
	}

	for _, tk := range prior.Tickers() {
		h := prior.Holdings[tk]
		status := domain.QuoteStatusActual

		price, ok := closes[tk]
		if !ok {
			if p.MissingQuotePolicy == PolicyFail {
				return nil, fmt.Errorf("%w: %s on %s", domain.ErrMissingPriceQuote, tk, date.Format("2006-01-02"))
			}
			status = domain.QuoteStatusCarried
			price, ok = history.lastAt(tk, date)
			if !ok {
				price = h.PriceAtAllocation
			}
			observability.RecordMissingQuote(p.MissingQuotePolicy)
			e.logger.Warn().
				Str("date", date.Format("2006-01-02")).
				Str("ticker", tk).
				Float64("price", price).
				Msg("no close price, carrying last known")
		}

		gain := price*h.ShareCount - h.AllocatedValue
		period.Records = append(period.Records, &domain.PerformanceRecord{
			RunID:          p.RunID,
			PortfolioID:    p.Portfolio.PortfolioID,
			RebalanceDate:  prior.Date,
			EvaluationDate: date,
			Ticker:         tk,
			PriorValue:     h.AllocatedValue,
			ShareCount:     h.ShareCount,
			GainLoss:       gain,
			ClosePrice:     price,
			QuoteStatus:    status,
		})
		period.GainLoss += gain
	}

	period.NotionalAfter = period.NotionalBefore + period.GainLoss
	return period, nil
}
