// Package allocation ranks candidates by momentum score and distributes capital.
package allocation

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gtaa-lab/internal/domain"
	"gtaa-lab/internal/rules"
)

// MinBalance is the remaining balance below which no further slot is filled.
const MinBalance = 0.01

// Request describes one rebalance event.
type Request struct {
	Date          time.Time
	Candidates    []*domain.FeatureRow // rows of one rebalance date across the universe
	Notional      float64              // capital to deploy
	PositionCount int                  // target number of positions (n)
	WeightScheme  string               // "" or "equal", "linear"
	Rules         []*rules.Rule        // exclusion rules
	ScoreColumn   string               // composite score used for ranking
	DefaultTicker string               // absorbs leftover capital, empty means cash
	DefaultPrice  float64              // price of DefaultTicker, <= 0 means unknown

	// OnExcluded, if set, is called for every candidate a rule excludes.
	OnExcluded func(ticker string)
}

// Rebalance produces a new Snapshot.
//
// Candidates are ranked by score descending; equal scores are ordered by ticker
// ascending so results are reproducible. A candidate is skipped when the balance
// is below MinBalance, no weight slot remains, its score is NULL or non-finite,
// a rule excludes it, or its price is not a positive finite number. Each
// accepted candidate consumes the next slot of the weight schedule and
// receives Notional * weight. The leftover
// balance is assigned to the default ticker when one is configured with a known
// price, otherwise it is kept as uninvested cash.
func Rebalance(req Request) (*domain.Snapshot, error) {
	if req.Notional <= 0 {
		return nil, fmt.Errorf("%w: notional %.2f must be positive", domain.ErrConfiguration, req.Notional)
	}

	slots, err := Weights(req.WeightScheme, req.PositionCount)
	if err != nil {
		return nil, err
	}

	snap := &domain.Snapshot{
		Date:     req.Date,
		Notional: req.Notional,
		Holdings: make(map[string]domain.Holding),
	}

	balance := req.Notional

	for _, row := range rank(req.Candidates, req.ScoreColumn) {
		if balance < MinBalance {
			continue
		}
		if len(slots) == 0 {
			continue
		}
		if _, ok := finiteColumn(row, req.ScoreColumn); !ok {
			continue
		}
		if rules.Excluded(req.Rules, row) {
			if req.OnExcluded != nil {
				req.OnExcluded(row.Ticker)
			}
			continue
		}
		price, ok := finiteColumn(row, domain.ColumnAdjClose)
		if !ok || price <= 0 {
			continue
		}
		if _, held := snap.Holdings[row.Ticker]; held {
			continue
		}

		allocation := req.Notional * slots[0]
		slots = slots[1:]
		snap.Holdings[row.Ticker] = domain.Holding{
			Ticker:            row.Ticker,
			AllocatedValue:    allocation,
			ShareCount:        allocation / price,
			PriceAtAllocation: price,
		}
		balance -= allocation
	}

	if req.DefaultTicker != "" && req.DefaultPrice > 0 {
		h := snap.Holdings[req.DefaultTicker]
		h.Ticker = req.DefaultTicker
		h.AllocatedValue += balance
		h.ShareCount += balance / req.DefaultPrice
		if h.PriceAtAllocation == 0 {
			h.PriceAtAllocation = req.DefaultPrice
		}
		snap.Holdings[req.DefaultTicker] = h
	} else {
		snap.Cash = balance
	}

	return snap, nil
}

// finiteColumn is Lookup with NaN and infinities treated as NULL.
func finiteColumn(row *domain.FeatureRow, name string) (float64, bool) {
	v, ok := row.Lookup(name)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// rank returns candidates ordered by score descending, NULL scores last,
// ties broken by ticker ascending.
func rank(candidates []*domain.FeatureRow, scoreColumn string) []*domain.FeatureRow {
	ranked := make([]*domain.FeatureRow, 0, len(candidates))
	for _, c := range candidates {
		if c != nil {
			ranked = append(ranked, c)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		si, iok := finiteColumn(ranked[i], scoreColumn)
		sj, jok := finiteColumn(ranked[j], scoreColumn)
		if iok != jok {
			return iok
		}
		if iok && si != sj {
			return si > sj
		}
		return ranked[i].Ticker < ranked[j].Ticker
	})

	return ranked
}
