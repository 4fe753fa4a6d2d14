package facematch

import (
	"math"
	"math/rand"
	"testing"
)

const epsilon = 1e-5

func randomVector(r *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(r.NormFloat64())
	}
	return v
}

func TestNormalize_UnitLength(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for i := range 50 {
		v := randomVector(r, 512)
		Normalize(v)
		if n := Norm(v); math.Abs(n-1.0) > epsilon {
			t.Fatalf("vector %d: norm after Normalize = %v, want 1", i, n)
		}
	}
}

func TestNormalize_ZeroVector(t *testing.T) {
	v := make([]float32, 8)
	Normalize(v)
	for i, x := range v {
		if x != 0 {
			t.Errorf("v[%d] = %v, want 0", i, x)
		}
	}
}

func TestNormalized_DoesNotMutate(t *testing.T) {
	v := []float32{3, 4}
	out := Normalized(v)

	if v[0] != 3 || v[1] != 4 {
		t.Errorf("input was modified: %v", v)
	}
	if math.Abs(float64(out[0])-0.6) > epsilon || math.Abs(float64(out[1])-0.8) > epsilon {
		t.Errorf("Normalized([3 4]) = %v, want [0.6 0.8]", out)
	}
}

func TestSimilarity_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(7))

	for i := range 50 {
		u := Normalized(randomVector(r, 512))
		v := Normalized(randomVector(r, 512))

		if diff := math.Abs(Similarity(u, v) - Similarity(v, u)); diff > epsilon {
			t.Fatalf("pair %d: similarity not symmetric (diff %v)", i, diff)
		}
		if self := Similarity(u, u); math.Abs(self-1.0) > epsilon {
			t.Fatalf("pair %d: self similarity = %v, want 1", i, self)
		}
		if s := Similarity(u, v); s < -1-epsilon || s > 1+epsilon {
			t.Fatalf("pair %d: similarity %v out of [-1, 1]", i, s)
		}
	}
}

func TestSimilarity_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
	}{
		{"different lengths", []float32{1, 0}, []float32{1, 0, 0}},
		{"empty", []float32{}, []float32{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Similarity(tt.a, tt.b); got != -1 {
				t.Errorf("Similarity = %v, want -1", got)
			}
		})
	}
}

func TestSimilarity_Orthogonal(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{0, 1, 0}
	if got := Similarity(a, b); got != 0 {
		t.Errorf("Similarity of orthogonal vectors = %v, want 0", got)
	}
}
