package nlu

import (
	"math"
	"testing"
)

func TestIndex_SearchFindsNearest(t *testing.T) {
	t.Parallel()

	ix := NewIndex(2)
	if err := ix.Add("east", []float32{1, 0}); err != nil {
		t.Fatal(err)
	}
	if err := ix.Add("north", []float32{0, 1}); err != nil {
		t.Fatal(err)
	}

	phrase, score, ok := ix.Search([]float32{0.9, 0.1})
	if !ok || phrase != "east" {
		t.Fatalf("expected east, got %q ok=%v", phrase, ok)
	}
	if score <= 0.9 {
		t.Errorf("expected high similarity, got %v", score)
	}
}

func TestIndex_TieKeepsFirstInserted(t *testing.T) {
	t.Parallel()

	ix := NewIndex(2)
	// Two identical vectors: any query ties exactly.
	if err := ix.Add("first", []float32{1, 0}); err != nil {
		t.Fatal(err)
	}
	if err := ix.Add("second", []float32{1, 0}); err != nil {
		t.Fatal(err)
	}

	phrase, _, ok := ix.Search([]float32{1, 0})
	if !ok || phrase != "first" {
		t.Errorf("expected first-inserted phrase on a tie, got %q", phrase)
	}
}

func TestIndex_NormalizesStoredAndQueryVectors(t *testing.T) {
	t.Parallel()

	ix := NewIndex(2)
	// Magnitude must not matter, only direction.
	if err := ix.Add("east", []float32{100, 0}); err != nil {
		t.Fatal(err)
	}

	_, score, ok := ix.Search([]float32{0.001, 0})
	if !ok {
		t.Fatal("expected a result")
	}
	if math.Abs(score-1.0) > 1e-6 {
		t.Errorf("expected cosine 1.0 regardless of magnitudes, got %v", score)
	}
}

func TestIndex_DimensionMismatch(t *testing.T) {
	t.Parallel()

	ix := NewIndex(3)
	if err := ix.Add("short", []float32{1, 0}); err == nil {
		t.Error("expected an error adding a 2-d vector to a 3-d index")
	}

	if err := ix.Add("ok", []float32{1, 0, 0}); err != nil {
		t.Fatal(err)
	}
	if _, _, ok := ix.Search([]float32{1, 0}); ok {
		t.Error("expected no result for a mismatched query dimension")
	}
}

func TestIndex_EmptySearch(t *testing.T) {
	t.Parallel()

	ix := NewIndex(2)
	if _, _, ok := ix.Search([]float32{1, 0}); ok {
		t.Error("expected no result from an empty index")
	}
}

func TestIndex_AddDoesNotAliasCallerSlice(t *testing.T) {
	t.Parallel()

	ix := NewIndex(2)
	v := []float32{1, 0}
	if err := ix.Add("east", v); err != nil {
		t.Fatal(err)
	}
	v[0], v[1] = 0, 1 // mutate after Add

	_, score, _ := ix.Search([]float32{1, 0})
	if math.Abs(score-1.0) > 1e-6 {
		t.Errorf("stored vector changed under caller mutation, score %v", score)
	}
}
