package facematch

import (
	"math"
	"slices"
)

// CosineDistance computes the cosine distance between two vectors.
// Returns a value between 0 (identical) and 2 (opposite).
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0 // Maximum distance for invalid input
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 2.0
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors
	similarity = max(-1, min(1, similarity))

	return 1 - similarity
}

// EuclideanDistance computes the L2 distance between two vectors.
// Mismatched or empty vectors are infinitely far apart.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// CosineMatcher matches when any known embedding is within tolerance cosine distance.
type CosineMatcher struct{}

func (CosineMatcher) Matches(known []Embedding, candidate Embedding, tolerance float64) bool {
	return slices.ContainsFunc(known, func(k Embedding) bool {
		return CosineDistance(k, candidate) <= tolerance
	})
}

// EuclideanMatcher matches when any known embedding is within tolerance L2 distance.
type EuclideanMatcher struct{}

func (EuclideanMatcher) Matches(known []Embedding, candidate Embedding, tolerance float64) bool {
	return slices.ContainsFunc(known, func(k Embedding) bool {
		return EuclideanDistance(k, candidate) <= tolerance
	})
}

// Linear checks a face against every identity in turn.
type Linear struct {
	names     []string
	known     map[string][]Embedding
	matcher   Matcher
	tolerance float64
}

// NewLinear creates a Linear classifier. known is not copied and must not be
// modified while the classifier is in use.
func NewLinear(known map[string][]Embedding, m Matcher, tolerance float64) *Linear {
	names := make([]string, 0, len(known))
	for name := range known {
		names = append(names, name)
	}
	slices.Sort(names)
	return &Linear{names: names, known: known, matcher: m, tolerance: tolerance}
}

func (l *Linear) Match(candidate Embedding) []string {
	var matched []string
	for _, name := range l.names {
		if l.matcher.Matches(l.known[name], candidate, l.tolerance) {
			matched = append(matched, name)
		}
	}
	return matched
}
