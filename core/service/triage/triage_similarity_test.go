package triage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    []float64
		b    []float64
		want float64
	}{
		{
			name: "identical vectors score 1",
			a:    []float64{0.5, 0.5, 0.7},
			b:    []float64{0.5, 0.5, 0.7},
			want: 1,
		},
		{
			name: "opposite vectors score -1",
			a:    []float64{1, 2, 3},
			b:    []float64{-1, -2, -3},
			want: -1,
		},
		{
			name: "orthogonal vectors score 0",
			a:    []float64{1, 0},
			b:    []float64{0, 1},
			want: 0,
		},
		{
			name: "length mismatch scores 0",
			a:    []float64{1, 2, 3},
			b:    []float64{1, 2},
			want: 0,
		},
		{
			name: "empty vectors score 0",
			a:    nil,
			b:    nil,
			want: 0,
		},
		{
			name: "zero magnitude scores 0",
			a:    []float64{0, 0, 0},
			b:    []float64{1, 2, 3},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}
