package embedding

import (
	"math"
	"testing"
)

func TestMeanPool(t *testing.T) {
	// batch=2, seq=3, dim=2
	hidden := []float32{
		// item 0
		1, 2,
		3, 4,
		100, 100, // masked out
		// item 1
		5, 6,
		7, 8,
		9, 10,
	}
	masks := [][]int64{
		{1, 1, 0},
		{1, 1, 1},
	}

	pooled := MeanPool(hidden, masks, 2, 3, 2)

	if got, want := pooled[0], []float32{2, 3}; got[0] != want[0] || got[1] != want[1] {
		t.Errorf("item 0 pooled = %v, want %v", got, want)
	}
	if got, want := pooled[1], []float32{7, 8}; got[0] != want[0] || got[1] != want[1] {
		t.Errorf("item 1 pooled = %v, want %v", got, want)
	}
}

func TestMeanPoolAllMaskedItem(t *testing.T) {
	hidden := []float32{1, 2, 3, 4}
	masks := [][]int64{{0, 0}}

	pooled := MeanPool(hidden, masks, 1, 2, 2)

	for i, v := range pooled[0] {
		if v != 0 {
			t.Errorf("pooled[0][%d] = %v, want 0", i, v)
		}
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			t.Errorf("pooled[0][%d] is not finite: %v", i, v)
		}
	}
}

func TestL2Normalize(t *testing.T) {
	tests := []struct {
		name string
		vec  []float32
	}{
		{"simple", []float32{3, 4}},
		{"negative components", []float32{-1, 2, -3}},
		{"already unit", []float32{1, 0, 0}},
		{"tiny values", []float32{1e-6, 2e-6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := L2Normalize(append([]float32(nil), tt.vec...))

			var sum float64
			for _, v := range out {
				sum += float64(v) * float64(v)
			}
			norm := math.Sqrt(sum)
			if math.Abs(norm-1) > 1e-5 {
				t.Errorf("norm = %v, want 1", norm)
			}
		})
	}
}

func TestL2NormalizeZeroVector(t *testing.T) {
	out := L2Normalize([]float32{0, 0, 0})
	for i, v := range out {
		if v != 0 {
			t.Errorf("out[%d] = %v, want 0", i, v)
		}
	}
}
