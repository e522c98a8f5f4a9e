// Package similarity holds the vector primitives shared by clustering and
// issue matching: cosine similarity, centroids and embedding validation.
package similarity

import (
	"fmt"
	"math"

	"github.com/turtacn/Issue-Intelligence/pkg/errors"
)

const epsilon = 1e-12

// Validate reports whether v is a usable embedding of length dim: the right
// length, finite components and a non-zero norm. dim <= 0 skips the length
// check.
func Validate(v []float64, dim int) error {
	if len(v) == 0 {
		return errors.New(errors.ErrCodeInvalidEmbedding, "embedding is empty")
	}
	if dim > 0 && len(v) != dim {
		return errors.New(errors.ErrCodeDimensionMismatch,
			fmt.Sprintf("embedding has %d dimensions, expected %d", len(v), dim))
	}
	var norm float64
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return errors.New(errors.ErrCodeInvalidEmbedding,
				fmt.Sprintf("embedding component %d is not finite", i))
		}
		norm += x * x
	}
	if math.Sqrt(norm) < epsilon {
		return errors.New(errors.ErrCodeInvalidEmbedding, "embedding has zero norm")
	}
	return nil
}

// Cosine computes (a·b) / (‖a‖‖b‖), clamped to [-1, 1].
//
// Dimension mismatch and zero vectors are errors; callers treat them as a
// failed comparison rather than a similarity of zero.
func Cosine(a, b []float64) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, errors.New(errors.ErrCodeEmptyVectorSet, "vectors must be non-empty")
	}
	if len(a) != len(b) {
		return 0, errors.New(errors.ErrCodeDimensionMismatch,
			fmt.Sprintf("dimension mismatch: %d vs %d", len(a), len(b)))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	normA = math.Sqrt(normA)
	normB = math.Sqrt(normB)
	if normA < epsilon || normB < epsilon {
		return 0, errors.New(errors.ErrCodeInvalidEmbedding, "cannot compute cosine similarity with zero vector")
	}
	return clamp(dot/(normA*normB), -1, 1), nil
}

// Dot returns the dot product of two equal-length vectors. For unit vectors
// this is the cosine similarity. Lengths are not checked.
func Dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// Normalize returns a unit-length copy of v. A zero vector is returned as a
// zero copy.
func Normalize(v []float64) []float64 {
	out := make([]float64, len(v))
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm < epsilon {
		return out
	}
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

// Centroid returns the arithmetic mean of vectors. All vectors must share one
// length.
func Centroid(vectors [][]float64) ([]float64, error) {
	return WeightedCentroid(vectors, nil)
}

// WeightedCentroid returns Σ wᵢvᵢ / Σ wᵢ. A nil weights slice means equal
// weights. Non-positive weights are ignored.
func WeightedCentroid(vectors [][]float64, weights []float64) ([]float64, error) {
	if len(vectors) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyVectorSet, "cannot compute centroid of empty vector set")
	}
	if weights != nil && len(weights) != len(vectors) {
		return nil, errors.New(errors.ErrCodeInvalidEmbedding,
			fmt.Sprintf("weights length %d does not match %d vectors", len(weights), len(vectors)))
	}

	dim := len(vectors[0])
	sum := make([]float64, dim)
	var total float64
	for i, v := range vectors {
		if len(v) != dim {
			return nil, errors.New(errors.ErrCodeDimensionMismatch,
				fmt.Sprintf("vector %d has %d dimensions, expected %d", i, len(v), dim))
		}
		w := 1.0
		if weights != nil {
			w = weights[i]
		}
		if w <= 0 {
			continue
		}
		for j, x := range v {
			sum[j] += w * x
		}
		total += w
	}
	if total == 0 {
		return nil, errors.New(errors.ErrCodeEmptyVectorSet, "all centroid weights are zero")
	}
	for j := range sum {
		sum[j] /= total
	}
	return sum, nil
}

// MergeCentroids folds addedCount new members with centroid added into a
// centroid built from oldCount members:
//
//	(old·oldCount + added·addedCount) / (oldCount + addedCount)
func MergeCentroids(old []float64, oldCount int, added []float64, addedCount int) ([]float64, error) {
	switch {
	case addedCount <= 0 || len(added) == 0:
		return append([]float64(nil), old...), nil
	case oldCount <= 0 || len(old) == 0:
		return append([]float64(nil), added...), nil
	}
	return WeightedCentroid([][]float64{old, added}, []float64{float64(oldCount), float64(addedCount)})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
