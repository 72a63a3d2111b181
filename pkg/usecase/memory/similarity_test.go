package memory_test

import (
	"math"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kioku/pkg/usecase/memory"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"identical", []float32{3, 4}, []float32{3, 4}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 2}, []float32{-1, -2}, -1},
		{"empty a", nil, []float32{1}, 0},
		{"empty b", []float32{1}, []float32{}, 0},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"zero norm", []float32{0, 0}, []float32{1, 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := memory.CosineSimilarity(tt.a, tt.b)
			gt.True(t, math.Abs(sim-tt.expected) < 1e-9)
		})
	}
}

func TestCosineSimilarityProperties(t *testing.T) {
	vectors := [][]float32{
		{0.1, 0.7, -0.3},
		{1, 1, 1},
		{-2, 0.5, 9},
		{0.33, 0.01, 0.2},
	}

	for _, v := range vectors {
		gt.True(t, math.Abs(memory.CosineSimilarity(v, v)-1) < 1e-9)
	}

	for _, a := range vectors {
		for _, b := range vectors {
			gt.Equal(t, memory.CosineSimilarity(a, b), memory.CosineSimilarity(b, a))
			sim := memory.CosineSimilarity(a, b)
			gt.True(t, sim >= -1 && sim <= 1)
		}
	}
}
