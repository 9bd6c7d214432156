// Package distance provides vector similarity functions used by the
// retrieval pipeline.
//
// Dot products and norms go through the Gonum BLAS implementation, which
// handles SIMD dispatch internally.
package distance

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/blas/gonum"
)

var (
	// ErrLengthMismatch is returned when two vectors have different dimensions.
	ErrLengthMismatch = errors.New("vectors must have the same length")
	// ErrEmptyVector is returned when either vector has no components.
	ErrEmptyVector = errors.New("vectors must not be empty")
)

var gonumEngine = gonum.Implementation{}

// CosineSimilarity returns the cosine of the angle between v1 and v2, in
// [-1, 1]. A zero-magnitude vector has similarity 0 with everything.
func CosineSimilarity(v1, v2 []float32) (float64, error) {
	n := len(v1)
	if n != len(v2) {
		return 0, ErrLengthMismatch
	}
	if n == 0 {
		return 0, ErrEmptyVector
	}

	dot := float64(gonumEngine.Sdot(n, v1, 1, v2, 1))
	norm1 := float64(gonumEngine.Snrm2(n, v1, 1))
	norm2 := float64(gonumEngine.Snrm2(n, v2, 1))
	if norm1 == 0 || norm2 == 0 {
		return 0, nil
	}

	sim := dot / (norm1 * norm2)
	// Clamp float32 rounding drift.
	return math.Max(-1, math.Min(1, sim)), nil
}

// CosineDistance is 1 - CosineSimilarity.
func CosineDistance(v1, v2 []float32) (float64, error) {
	sim, err := CosineSimilarity(v1, v2)
	if err != nil {
		return 0, err
	}
	return 1 - sim, nil
}

// Normalize scales v in place to unit length. Zero vectors are left as is.
func Normalize(v []float32) {
	if len(v) == 0 {
		return
	}
	norm := gonumEngine.Snrm2(len(v), v, 1)
	if norm == 0 {
		return
	}
	gonumEngine.Sscal(len(v), 1/norm, v, 1)
}
