package nlu

import (
	"fmt"
	"math"
)

// Index is an in-memory nearest-neighbour index over L2-normalised phrase
// embeddings. With normalised vectors the inner product is the cosine
// similarity. Built once at startup; read-only afterwards.
type Index struct {
	dim     int
	phrases []string
	vecs    [][]float32
}

// NewIndex creates an index for vectors of the given dimensionality.
func NewIndex(dim int) *Index {
	return &Index{dim: dim}
}

// Add normalises vec and appends it under phrase. Insertion order is
// significant: Search resolves score ties to the earliest entry.
func (ix *Index) Add(phrase string, vec []float32) error {
	if len(vec) != ix.dim {
		return fmt.Errorf("nlu: index expects %d dimensions, got %d", ix.dim, len(vec))
	}
	v := make([]float32, len(vec))
	copy(v, vec)
	normalize(v)
	ix.phrases = append(ix.phrases, phrase)
	ix.vecs = append(ix.vecs, v)
	return nil
}

// Search normalises the query and returns the best-matching phrase with its
// cosine similarity. Reports false when the index is empty.
func (ix *Index) Search(query []float32) (string, float64, bool) {
	if len(ix.vecs) == 0 || len(query) != ix.dim {
		return "", 0, false
	}
	q := make([]float32, len(query))
	copy(q, query)
	normalize(q)

	best, bestScore := -1, math.Inf(-1)
	for i, v := range ix.vecs {
		// Strict comparison keeps the first-inserted phrase on ties.
		if s := dot(q, v); s > bestScore {
			best, bestScore = i, s
		}
	}
	return ix.phrases[best], bestScore, true
}

// Len returns the number of indexed phrases.
func (ix *Index) Len() int { return len(ix.phrases) }

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	n := math.Sqrt(sum)
	if n == 0 {
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / n)
	}
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
