package features

import (
	"sort"

	"gtaa-lab/internal/domain"
)

type monthKey struct {
	ticker string
	year   int
	month  int
}

// AssignTradeDayRanks sets TradeDay and ReverseTradeDay on each point.
// Ranks are 1-based positions of the date within its calendar month, per ticker,
// counted from the month start (TradeDay) and from the month end (ReverseTradeDay).
// Input order is not required.
func AssignTradeDayRanks(points []*domain.PricePoint) {
	groups := make(map[monthKey][]*domain.PricePoint)
	for _, p := range points {
		if p == nil {
			continue
		}
		k := monthKey{ticker: p.Ticker, year: p.TradeDate.Year(), month: int(p.TradeDate.Month())}
		groups[k] = append(groups[k], p)
	}

	for _, group := range groups {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].TradeDate.Before(group[j].TradeDate)
		})
		n := len(group)
		for i, p := range group {
			p.TradeDay = i + 1
			p.ReverseTradeDay = n - i
		}
	}
}
