package rules

import (
	"testing"
	"time"

	"gtaa-lab/internal/domain"
)

func f(v float64) *float64 {
	return &v
}

func TestExcluded_NoRuleTriggered(t *testing.T) {
	rules := []*Rule{MustParse("adj_close_price < sma_200d or pct_63d < 0")}
	row := MapRow{
		"adj_close_price": f(100),
		"sma_200d":        f(95),
		"pct_63d":         f(5.0),
	}

	if Excluded(rules, row) {
		t.Error("expected row not to be excluded")
	}
}

func TestExcluded_OneRuleTriggered(t *testing.T) {
	rules := []*Rule{MustParse("adj_close_price < sma_200d or pct_63d < 0")}
	row := MapRow{
		"adj_close_price": f(95),
		"sma_200d":        f(100),
		"pct_63d":         f(5.0),
	}

	if !Excluded(rules, row) {
		t.Error("expected row to be excluded")
	}
}

func TestExcluded_EmptyRuleSet(t *testing.T) {
	if Excluded(nil, MapRow{"x": f(1)}) {
		t.Error("empty rule set must never exclude")
	}
}

func TestExcluded_AnyRuleMatches(t *testing.T) {
	rules := []*Rule{
		MustParse("pct_21d < -0.10"),
		MustParse("adj_close_price < high_252d * 0.8"),
	}

	row := MapRow{"pct_21d": f(0.02), "adj_close_price": f(70), "high_252d": f(100)}
	if !Excluded(rules, row) {
		t.Error("second rule should exclude")
	}

	row = MapRow{"pct_21d": f(0.02), "adj_close_price": f(90), "high_252d": f(100)}
	if Excluded(rules, row) {
		t.Error("no rule should match")
	}
}

func TestMatches_UndefinedColumns(t *testing.T) {
	tests := []struct {
		name string
		rule string
		row  MapRow
		want bool
	}{
		{"absent column", "sma_200d > 0", MapRow{}, false},
		{"null column", "sma_200d > 0", MapRow{"sma_200d": nil}, false},
		{"negated unknown", "not (sma_200d > 0)", MapRow{}, false},
		{"not-equal unknown", "sma_200d != 5", MapRow{}, false},
		{"or with known true branch", "sma_200d > 0 or pct_63d < 0", MapRow{"pct_63d": f(-1)}, true},
		{"or with known false branch", "sma_200d > 0 or pct_63d < 0", MapRow{"pct_63d": f(1)}, false},
		{"and with unknown", "sma_200d > 0 and pct_63d < 0", MapRow{"pct_63d": f(-1)}, false},
		{"arithmetic with unknown", "adj_close_price < sma_200d * 1.05", MapRow{"adj_close_price": f(1)}, false},
		{"division by zero", "pct_63d / sma_200d > 1", MapRow{"pct_63d": f(1), "sma_200d": f(0)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MustParse(tt.rule).Matches(tt.row)
			if got != tt.want {
				t.Errorf("Matches(%q) = %v, want %v", tt.rule, got, tt.want)
			}
		})
	}
}

func TestMatches_Operators(t *testing.T) {
	row := MapRow{"a": f(2), "b": f(3), "c": f(-1)}

	tests := []struct {
		rule string
		want bool
	}{
		{"a < b", true},
		{"a <= 2", true},
		{"a > b", false},
		{"b >= 3", true},
		{"a == 2", true},
		{"a != 2", false},
		{"a + b == 5", true},
		{"b - a * 2 == -1", true},
		{"(b - a) * 2 == 2", true},
		{"b / a > 1.4", true},
		{"-c == 1", true},
		{"c < -0.5", true},
		{"a < b and b < a", false},
		{"a < b && c < 0", true},
		{"a > b || c < 0", true},
		{"!(a > b)", true},
		{"not a > b and c < 0", true},
		{"a > b or a < b and c > 0", false},
		{"true", true},
		{"false or a == 2", true},
		{"a < 1e1", true},
		{"A < B", false}, // columns are case-sensitive
	}

	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			got := MustParse(tt.rule).Matches(row)
			if got != tt.want {
				t.Errorf("Matches(%q) = %v, want %v", tt.rule, got, tt.want)
			}
		})
	}
}

func TestExcluded_FeatureRow(t *testing.T) {
	row := domain.NewFeatureRow(domain.PricePoint{
		Ticker:    "EEM",
		TradeDate: time.Date(2020, 3, 31, 0, 0, 0, 0, time.UTC),
		AdjClose:  35,
	})
	row.SetValue("sma_200d", 42)
	row.Set("pct_252d", nil)

	rules := []*Rule{MustParse("adj_close_price < sma_200d")}
	if !Excluded(rules, row) {
		t.Error("price below sma_200d should be excluded")
	}

	rules = []*Rule{MustParse("pct_252d < 0")}
	if Excluded(rules, row) {
		t.Error("undefined pct_252d must not exclude")
	}
}
