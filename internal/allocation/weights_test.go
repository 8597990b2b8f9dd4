package allocation

import (
	"errors"
	"math"
	"testing"

	"gtaa-lab/internal/domain"
)

func TestWeights(t *testing.T) {
	tests := []struct {
		scheme string
		n      int
		want   []float64
	}{
		{domain.WeightSchemeEqual, 2, []float64{0.5, 0.5}},
		{"", 4, []float64{0.25, 0.25, 0.25, 0.25}},
		{domain.WeightSchemeLinear, 3, []float64{3.0 / 6, 2.0 / 6, 1.0 / 6}},
		{domain.WeightSchemeEqual, 0, []float64{}},
	}

	for _, tt := range tests {
		got, err := Weights(tt.scheme, tt.n)
		if err != nil {
			t.Fatalf("Weights(%q, %d) failed: %v", tt.scheme, tt.n, err)
		}
		if len(got) != len(tt.want) {
			t.Fatalf("Weights(%q, %d) len = %d, want %d", tt.scheme, tt.n, len(got), len(tt.want))
		}
		sum := 0.0
		for i := range got {
			if math.Abs(got[i]-tt.want[i]) > 1e-12 {
				t.Errorf("Weights(%q, %d)[%d] = %f, want %f", tt.scheme, tt.n, i, got[i], tt.want[i])
			}
			sum += got[i]
		}
		if tt.n > 0 && math.Abs(sum-1) > 1e-12 {
			t.Errorf("Weights(%q, %d) sum = %f, want 1", tt.scheme, tt.n, sum)
		}
	}
}

func TestWeights_Invalid(t *testing.T) {
	if _, err := Weights("fibonacci", 3); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration for unknown scheme, got %v", err)
	}
	if _, err := Weights(domain.WeightSchemeEqual, -2); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration for negative n, got %v", err)
	}
}
