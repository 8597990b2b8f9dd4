package domain

import (
	"fmt"
	"sort"
	"time"
)

// Base column names exposed by every FeatureRow.
const (
	ColumnOpen            = "open_price"
	ColumnHigh            = "high_price"
	ColumnLow             = "low_price"
	ColumnClose           = "close_price"
	ColumnAdjClose        = "adj_close_price"
	ColumnVolume          = "volume"
	ColumnTradeDay        = "trade_day"
	ColumnReverseTradeDay = "rev_trade_day"
)

// ColumnName builds a period column label of form '[prefix]_[period]d'.
func ColumnName(prefix string, period int) string {
	return fmt.Sprintf("%s_%dd", prefix, period)
}

// FeatureRow is a PricePoint enriched with derived columns.
// A nil column value means undefined (not enough history, or not computed).
type FeatureRow struct {
	Ticker    string
	TradeDate time.Time
	Price     PricePoint
	columns   map[string]*float64
}

// NewFeatureRow creates a row carrying the base price columns.
func NewFeatureRow(p PricePoint) *FeatureRow {
	r := &FeatureRow{
		Ticker:    p.Ticker,
		TradeDate: p.TradeDate,
		Price:     p,
		columns:   make(map[string]*float64, 24),
	}
	r.SetValue(ColumnOpen, p.Open)
	r.SetValue(ColumnHigh, p.High)
	r.SetValue(ColumnLow, p.Low)
	r.SetValue(ColumnClose, p.Close)
	r.SetValue(ColumnAdjClose, p.AdjClose)
	r.SetValue(ColumnVolume, float64(p.Volume))
	r.SetValue(ColumnTradeDay, float64(p.TradeDay))
	r.SetValue(ColumnReverseTradeDay, float64(p.ReverseTradeDay))
	return r
}

// Set stores a nullable column value.
func (r *FeatureRow) Set(name string, v *float64) {
	if v == nil {
		r.columns[name] = nil
		return
	}
	c := *v
	r.columns[name] = &c
}

// SetValue stores a defined column value.
func (r *FeatureRow) SetValue(name string, v float64) {
	r.columns[name] = &v
}

// Column returns the column value, nil if absent or undefined.
func (r *FeatureRow) Column(name string) *float64 {
	v, ok := r.columns[name]
	if !ok || v == nil {
		return nil
	}
	c := *v
	return &c
}

// Lookup returns (value, true) for a defined column, (0, false) otherwise.
func (r *FeatureRow) Lookup(name string) (float64, bool) {
	v, ok := r.columns[name]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}

// Has reports whether the column exists on the row (defined or not).
func (r *FeatureRow) Has(name string) bool {
	_, ok := r.columns[name]
	return ok
}

// Columns returns all column names in lexical order.
func (r *FeatureRow) Columns() []string {
	names := make([]string, 0, len(r.columns))
	for name := range r.columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
