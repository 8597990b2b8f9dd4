package memory

import (
	"context"
	"errors"
	"testing"

	"gtaa-lab/internal/domain"
	"gtaa-lab/internal/storage"
)

func TestPerformanceStore_InsertBulkAndGet(t *testing.T) {
	store := NewPerformanceStore()
	ctx := context.Background()

	records := []*domain.PerformanceRecord{
		{RunID: "run1", PortfolioID: 1, EvaluationDate: day(2020, 3, 2), Ticker: "SPY", GainLoss: 5},
		{RunID: "run1", PortfolioID: 1, EvaluationDate: day(2020, 2, 3), Ticker: "SPY", GainLoss: 1},
		{RunID: "run1", PortfolioID: 1, EvaluationDate: day(2020, 2, 3), Ticker: "AGG", GainLoss: 2},
		{RunID: "run2", PortfolioID: 2, EvaluationDate: day(2020, 2, 3), Ticker: "AGG", GainLoss: 3},
	}
	if err := store.InsertBulk(ctx, records); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByRunID(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(got))
	}
	if got[0].Ticker != "AGG" || got[1].Ticker != "SPY" || !got[2].EvaluationDate.Equal(day(2020, 3, 2)) {
		t.Errorf("Unexpected order: %+v %+v %+v", got[0], got[1], got[2])
	}
}

func TestPerformanceStore_DuplicateFailsBatch(t *testing.T) {
	store := NewPerformanceStore()
	ctx := context.Background()

	first := &domain.PerformanceRecord{RunID: "run1", EvaluationDate: day(2020, 2, 3), Ticker: "SPY"}
	if err := store.InsertBulk(ctx, []*domain.PerformanceRecord{first}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	batch := []*domain.PerformanceRecord{
		{RunID: "run1", EvaluationDate: day(2020, 2, 3), Ticker: "AGG"},
		{RunID: "run1", EvaluationDate: day(2020, 2, 3), Ticker: "SPY"},
	}
	if err := store.InsertBulk(ctx, batch); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	got, _ := store.GetByRunID(ctx, "run1")
	if len(got) != 1 {
		t.Errorf("Batch must not be partially applied, got %d records", len(got))
	}
}

func TestTickerStore_UpdateLastTradeDate(t *testing.T) {
	store := NewTickerStore()
	ctx := context.Background()

	if err := store.UpdateLastTradeDate(ctx, "SPY", day(2020, 1, 2)); err != nil {
		t.Fatalf("UpdateLastTradeDate failed: %v", err)
	}
	if err := store.UpdateLastTradeDate(ctx, "AGG", day(2020, 1, 3)); err != nil {
		t.Fatalf("UpdateLastTradeDate failed: %v", err)
	}
	if err := store.UpdateLastTradeDate(ctx, "SPY", day(2020, 1, 6)); err != nil {
		t.Fatalf("UpdateLastTradeDate failed: %v", err)
	}

	all, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 2 || all[0].Symbol != "AGG" {
		t.Fatalf("Unexpected tickers: %+v", all)
	}
	if all[1].LastTradeDate == nil || !all[1].LastTradeDate.Equal(day(2020, 1, 6)) {
		t.Errorf("SPY last trade date: got %v", all[1].LastTradeDate)
	}

	if err := store.UpdateLastTradeDate(ctx, "", day(2020, 1, 2)); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
