// Package triage implements thread resolution for inbound messages:
// spam filtering, embedding similarity, merge-or-create decisions,
// summary refresh, and thread priority scoring.
package triage

import "math"

// CosineSimilarity returns the cosine of the angle between a and b.
// Mismatched lengths, empty vectors, and zero-magnitude vectors all
// yield 0 so a degenerate embedding can never win a merge.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
