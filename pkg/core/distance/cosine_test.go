package distance

import (
	"math"
	"testing"
)

// floatsAreEqual compares with a small tolerance.
func floatsAreEqual(a, b float64) bool {
	const tolerance = 1e-6
	return math.Abs(a-b) < tolerance
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name   string
		v1, v2 []float32
		want   float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"scaled", []float32{1, 2, 3}, []float32{2, 4, 6}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 1}, []float32{-1, -1}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"45 degrees", []float32{1, 0}, []float32{1, 1}, 1 / math.Sqrt2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.v1, tt.v2)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !floatsAreEqual(got, tt.want) {
				t.Errorf("got %f, want %f", got, tt.want)
			}
		})
	}
}

func TestCosineSimilarityErrors(t *testing.T) {
	if _, err := CosineSimilarity([]float32{1, 2}, []float32{1}); err != ErrLengthMismatch {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}
	if _, err := CosineSimilarity(nil, nil); err != ErrEmptyVector {
		t.Errorf("expected ErrEmptyVector, got %v", err)
	}
}

func TestCosineDistanceAndNormalize(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)
	if !floatsAreEqual(float64(v[0]), 0.6) || !floatsAreEqual(float64(v[1]), 0.8) {
		t.Errorf("normalize: got %v", v)
	}

	d, err := CosineDistance([]float32{1, 0}, []float32{0, 1})
	if err != nil {
		t.Fatal(err)
	}
	if !floatsAreEqual(d, 1) {
		t.Errorf("got %f, want 1", d)
	}
}
