// Package similarity scores and ranks knowledge base entries against a query
// vector using cosine similarity.
package similarity

import (
	"math"

	"github.com/upb/helpdesk-orchestrator/internal/textvec"
)

// Cosine returns the cosine similarity of a and b. It is 0 when either vector
// has zero magnitude or when the lengths differ, and never NaN.
func Cosine(a, b textvec.Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
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

	score := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(score) {
		return 0
	}
	// float drift can push identical vectors just past 1
	return math.Max(-1, math.Min(1, score))
}
