package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gtaa-lab/internal/backtest"
	"gtaa-lab/internal/domain"
	"gtaa-lab/internal/features"
	"gtaa-lab/internal/storage/memory"
)

type testStores struct {
	portfolios  *memory.PortfolioStore
	rules       *memory.RuleStore
	prices      *memory.PriceStore
	performance *memory.PerformanceStore
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// createTestStores seeds three months of A and B with a rising A.
func createTestStores(t *testing.T) *testStores {
	t.Helper()
	ctx := context.Background()

	s := &testStores{
		portfolios:  memory.NewPortfolioStore(),
		rules:       memory.NewRuleStore(),
		prices:      memory.NewPriceStore(),
		performance: memory.NewPerformanceStore(),
	}

	series := map[string][]float64{
		"A": {10, 11, 12, 13, 15, 15},
		"B": {20, 20, 19, 19, 19, 19},
	}
	dates := []time.Time{
		day(2020, 1, 2), day(2020, 1, 3),
		day(2020, 2, 3), day(2020, 2, 4),
		day(2020, 3, 2), day(2020, 3, 3),
	}
	for ticker, prices := range series {
		points := make([]*domain.PricePoint, len(prices))
		for i, px := range prices {
			points[i] = &domain.PricePoint{Ticker: ticker, TradeDate: dates[i], AdjClose: px, Close: px}
		}
		features.AssignTradeDayRanks(points)
		require.NoError(t, s.prices.ReplaceFrom(ctx, ticker, points))
	}
	require.NoError(t, s.portfolios.AddGroupTickers(ctx, 1, "A", "B"))

	return s
}

func (s *testStores) addPortfolio(t *testing.T, p domain.PortfolioConfig) {
	t.Helper()
	require.NoError(t, s.portfolios.Insert(context.Background(), &p))
}

func (s *testStores) orchestrator(portfolioID int64, persist bool) *Orchestrator {
	runner := backtest.NewRunner(backtest.RunnerOptions{
		PortfolioStore: s.portfolios,
		RuleStore:      s.rules,
		PriceStore:     s.prices,
		Pipeline: features.NewPipeline(features.Options{
			ReturnPeriods: []int{1},
			Composites:    []features.Composite{{Name: "score", Components: []string{"pct_1d"}}},
		}),
		Options: backtest.Options{
			Notional:           1000,
			StartAfter:         day(2019, 12, 31),
			ScoreColumn:        "score",
			MissingQuotePolicy: backtest.PolicyCarryForward,
		},
		Logger: zerolog.Nop(),
	})

	return New(Options{
		PortfolioStore:   s.portfolios,
		PerformanceStore: s.performance,
		Runner:           runner,
		PortfolioID:      portfolioID,
		Persist:          persist,
		Logger:           zerolog.Nop(),
	})
}

func validPortfolio(id int64, name string) domain.PortfolioConfig {
	return domain.PortfolioConfig{
		PortfolioID:      id,
		Name:             name,
		TickerGroupID:    1,
		RebalanceDaySpec: 1,
		PositionCount:    1,
		IsActive:         true,
	}
}

func TestOrchestrator_Run_Empty(t *testing.T) {
	s := createTestStores(t)

	result, err := s.orchestrator(0, false).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Results)
	assert.Empty(t, result.Failures)
	assert.False(t, result.AllFailed())
}

func TestOrchestrator_Run_FailureIsolation(t *testing.T) {
	s := createTestStores(t)

	s.addPortfolio(t, validPortfolio(1, "good"))
	bad := validPortfolio(2, "bad")
	bad.RebalanceDaySpec = 0
	s.addPortfolio(t, bad)
	s.addPortfolio(t, validPortfolio(3, "also-good"))
	inactive := validPortfolio(4, "inactive")
	inactive.IsActive = false
	s.addPortfolio(t, inactive)

	result, err := s.orchestrator(0, false).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Results, 2)
	assert.Equal(t, int64(1), result.Results[0].PortfolioID)
	assert.Equal(t, int64(3), result.Results[1].PortfolioID)
	assert.Equal(t, 1, result.Skipped)

	require.Len(t, result.Failures, 1)
	f := result.Failures[0]
	assert.Equal(t, int64(2), f.PortfolioID)
	assert.Equal(t, "bad", f.Name)
	assert.True(t, errors.Is(f.Err, domain.ErrConfiguration))
	assert.Contains(t, f.Reason, "backtest:")
	assert.False(t, result.AllFailed())
}

func TestOrchestrator_Run_AllFailed(t *testing.T) {
	s := createTestStores(t)

	bad := validPortfolio(1, "bad")
	bad.PositionCount = -1
	s.addPortfolio(t, bad)

	result, err := s.orchestrator(0, false).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, result.AllFailed())
}

func TestOrchestrator_Run_PersistIdempotent(t *testing.T) {
	s := createTestStores(t)
	s.addPortfolio(t, validPortfolio(1, "good"))

	ctx := context.Background()
	first, err := s.orchestrator(0, true).Run(ctx)
	require.NoError(t, err)
	require.Len(t, first.Results, 1)
	require.Greater(t, first.RecordsPersisted, 0)

	stored, err := s.performance.GetByRunID(ctx, first.Results[0].RunID)
	require.NoError(t, err)
	assert.Len(t, stored, first.RecordsPersisted)

	// Same inputs produce the same run id, so nothing is written twice.
	second, err := s.orchestrator(0, true).Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, second.Failures)
	assert.Equal(t, 0, second.RecordsPersisted)
	assert.Equal(t, first.Results[0].RunID, second.Results[0].RunID)
}

func TestOrchestrator_Run_SinglePortfolio(t *testing.T) {
	s := createTestStores(t)
	s.addPortfolio(t, validPortfolio(1, "one"))
	inactive := validPortfolio(2, "two")
	inactive.IsActive = false
	s.addPortfolio(t, inactive)

	result, err := s.orchestrator(2, false).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Results, 1)
	assert.Equal(t, "two", result.Results[0].PortfolioName)

	_, err = s.orchestrator(9, false).Run(context.Background())
	assert.Error(t, err)
}

func TestOrchestrator_Run_Cancelled(t *testing.T) {
	s := createTestStores(t)
	s.addPortfolio(t, validPortfolio(1, "good"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.orchestrator(0, false).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
