// Package verification checks persisted backtest runs against a fresh replay.
// A run ID is derived from its inputs, so replaying a portfolio over unchanged
// data must reproduce the stored performance records of that run.
package verification

import (
	"fmt"
	"math"
	"sort"

	"gtaa-lab/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Key      string      // evaluation_date/ticker of the record
	Field    string      // field name
	Expected interface{} // stored value
	Actual   interface{} // replayed value
}

// VerificationResult contains the result of verifying one portfolio run.
type VerificationResult struct {
	PortfolioID     int64
	RunID           string
	Match           bool // true if all records match
	StoredRecords   int
	ReplayedRecords int
	Divergences     []FieldDivergence
}

// VerificationReport contains results for batch verification.
type VerificationReport struct {
	TotalRuns     int
	MatchedRuns   int
	DivergentRuns int
	Results       []VerificationResult
}

func recordKey(r *domain.PerformanceRecord) string {
	return r.EvaluationDate.Format("2006-01-02") + "/" + r.Ticker
}

// CompareRecords compares stored and replayed records of a run, matched by
// (evaluation_date, ticker). Missing and extra records are reported under the
// "Record" field. Uses FloatTolerance for float64 comparisons.
func CompareRecords(stored, replayed []*domain.PerformanceRecord) []FieldDivergence {
	storedByKey := make(map[string]*domain.PerformanceRecord, len(stored))
	for _, r := range stored {
		storedByKey[recordKey(r)] = r
	}
	replayedByKey := make(map[string]*domain.PerformanceRecord, len(replayed))
	for _, r := range replayed {
		replayedByKey[recordKey(r)] = r
	}

	keys := make([]string, 0, len(storedByKey)+len(replayedByKey))
	for k := range storedByKey {
		keys = append(keys, k)
	}
	for k := range replayedByKey {
		if _, ok := storedByKey[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var divergences []FieldDivergence
	for _, key := range keys {
		s, r := storedByKey[key], replayedByKey[key]
		switch {
		case s == nil:
			divergences = append(divergences, FieldDivergence{Key: key, Field: "Record", Expected: nil, Actual: "present"})
		case r == nil:
			divergences = append(divergences, FieldDivergence{Key: key, Field: "Record", Expected: "present", Actual: nil})
		default:
			divergences = append(divergences, compareRecord(key, s, r)...)
		}
	}
	return divergences
}

func compareRecord(key string, stored, replayed *domain.PerformanceRecord) []FieldDivergence {
	var divergences []FieldDivergence
	add := func(field string, expected, actual interface{}) {
		divergences = append(divergences, FieldDivergence{Key: key, Field: field, Expected: expected, Actual: actual})
	}

	if stored.PortfolioID != replayed.PortfolioID {
		add("PortfolioID", stored.PortfolioID, replayed.PortfolioID)
	}
	if !stored.RebalanceDate.Equal(replayed.RebalanceDate) {
		add("RebalanceDate", stored.RebalanceDate, replayed.RebalanceDate)
	}

	floats := []struct {
		field    string
		expected float64
		actual   float64
	}{
		{"PriorValue", stored.PriorValue, replayed.PriorValue},
		{"ShareCount", stored.ShareCount, replayed.ShareCount},
		{"ClosePrice", stored.ClosePrice, replayed.ClosePrice},
		{"GainLoss", stored.GainLoss, replayed.GainLoss},
	}
	for _, f := range floats {
		if !floatEquals(f.expected, f.actual) {
			add(f.field, f.expected, f.actual)
		}
	}

	if stored.QuoteStatus != replayed.QuoteStatus {
		add("QuoteStatus", stored.QuoteStatus, replayed.QuoteStatus)
	}
	return divergences
}

// floatEquals compares two float64 values within FloatTolerance,
// relative to magnitude for values above 1.
func floatEquals(a, b float64) bool {
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= FloatTolerance*scale
}

// String formats a divergence for display.
func (d FieldDivergence) String() string {
	return fmt.Sprintf("%s %s: stored=%v replayed=%v", d.Key, d.Field, d.Expected, d.Actual)
}
