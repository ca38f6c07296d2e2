// Package similarity provides the in-memory nearest-neighbor index used to
// recall past observations. One index holds one user's window for one memory
// domain, so entries never mix users or kinds.
package similarity

import "math"

// Cosine calculates cosine similarity between two vectors.
// Returns a value between -1 and 1, where 1 means identical direction.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dot, normA, normB float64
	for i := 0; i < len(a); i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	// Handle zero vectors
	if normA == 0.0 || normB == 0.0 {
		return 0.0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// CosineDistance converts cosine similarity into a distance bounded to [0, 2],
// where 0 means identical direction and 2 means opposite.
func CosineDistance(a, b []float32) float64 {
	return 1.0 - Cosine(a, b)
}
