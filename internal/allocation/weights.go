package allocation

import (
	"fmt"

	"gtaa-lab/internal/domain"
)

// Weights builds a weight schedule of n slots that sums to 1.
// n == 0 yields an empty schedule.
func Weights(scheme string, n int) ([]float64, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: position count %d is negative", domain.ErrConfiguration, n)
	}
	weights := make([]float64, n)
	if n == 0 {
		return weights, nil
	}

	switch scheme {
	case "", domain.WeightSchemeEqual:
		for i := range weights {
			weights[i] = 1 / float64(n)
		}
	case domain.WeightSchemeLinear:
		// n, n-1, ..., 1 normalized by n(n+1)/2
		total := float64(n*(n+1)) / 2
		for i := range weights {
			weights[i] = float64(n-i) / total
		}
	default:
		return nil, fmt.Errorf("%w: unknown weight scheme %q", domain.ErrConfiguration, scheme)
	}

	return weights, nil
}
