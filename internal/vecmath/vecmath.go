// Package vecmath provides similarity primitives over float32 embedding vectors.
package vecmath

import (
	"errors"
	"fmt"
	"math"
)

// ErrDimensionMismatch is returned by Dot when the two vectors differ in length.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Dot returns the dot product of a and b.
func Dot(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum, nil
}

// Norm returns the Euclidean (L2) norm of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize returns a new vector scaled to unit L2 norm. A zero vector yields
// a zero vector of the same length, so later dot products are defined and 0.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	n := Norm(v)
	if n == 0 {
		return out
	}
	scale := float32(1.0 / n)
	for i, x := range v {
		out[i] = x * scale
	}
	return out
}

// CosineSimilarity returns the cosine similarity of a and b, or 0 when either
// vector has zero norm or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// DotNormalized returns the dot product of two unit-normalized vectors, which
// equals their cosine similarity. Length mismatch yields 0.
func DotNormalized(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i] * b[i])
	}
	return dot
}
