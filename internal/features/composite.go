package features

import "gtaa-lab/internal/domain"

// Composite defines a score column as the sum of other columns.
type Composite struct {
	Name       string   // e.g. "pct_gtaa"
	Components []string // e.g. ["pct_21d", "pct_63d"]
}

// CompositeScore sums the named columns of a row.
// Returns nil if any component is absent or undefined, or if there are no components.
func CompositeScore(row *domain.FeatureRow, components []string) *float64 {
	if len(components) == 0 {
		return nil
	}
	total := 0.0
	for _, name := range components {
		v, ok := row.Lookup(name)
		if !ok {
			return nil
		}
		total += v
	}
	return &total
}
