// Package similarity holds the pure scoring functions used by the plagiarism pipeline.
package similarity

import (
	"math"
	"regexp"
	"strings"
)

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Tokens returns the set of lower-cased word tokens in text.
func Tokens(text string) map[string]struct{} {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	set := make(map[string]struct{}, len(words))
	for _, word := range words {
		set[word] = struct{}{}
	}
	return set
}

// Jaccard returns |A∩B| / |A∪B| over the word sets of a and b, or 0 when either is empty.
func Jaccard(a, b string) float64 {
	left := Tokens(a)
	right := Tokens(b)
	if len(left) == 0 || len(right) == 0 {
		return 0
	}

	if len(left) > len(right) {
		left, right = right, left
	}
	intersection := 0
	for word := range left {
		if _, ok := right[word]; ok {
			intersection++
		}
	}
	union := len(left) + len(right) - intersection
	return float64(intersection) / float64(union)
}

// Cosine returns the cosine similarity of two vectors, or 0 when they cannot be compared.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
