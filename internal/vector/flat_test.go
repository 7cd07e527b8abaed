package vector

import (
	"errors"
	"math"
	"testing"
)

func TestFlatIndexSearchRanking(t *testing.T) {
	ix, err := NewFlatIndex(2)
	if err != nil {
		t.Fatal(err)
	}
	// Pre-normalization vectors; v3 points almost along v1.
	vecs := map[string][]float32{
		"v1": {1, 0},
		"v2": {0, 1},
		"v3": {0.9, 0.1},
	}
	for _, key := range []string{"v1", "v2", "v3"} {
		if err := ix.Add(key, vecs[key]); err != nil {
			t.Fatal(err)
		}
	}

	results, err := ix.Search([]float32{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Key != "v1" || math.Abs(results[0].Score-1.0) > 1e-6 {
		t.Errorf("top hit %s score=%f, want v1 score≈1.0", results[0].Key, results[0].Score)
	}
	if results[1].Key != "v3" || results[1].Score < 0.99 {
		t.Errorf("second hit %s score=%f, want v3 score≈0.99", results[1].Key, results[1].Score)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("scores not non-increasing at %d", i)
		}
	}
}

func TestFlatIndexSearchEmptyIndex(t *testing.T) {
	ix, _ := NewFlatIndex(3)
	results, err := ix.Search([]float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("empty index returned %d results", len(results))
	}
}

func TestFlatIndexSearchKLargerThanSize(t *testing.T) {
	ix, _ := NewFlatIndex(2)
	_ = ix.Add("a", []float32{1, 0})
	_ = ix.Add("b", []float32{0, 1})
	results, err := ix.Search([]float32{1, 1}, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("expected min(k, N)=2 results, got %d", len(results))
	}
}

func TestFlatIndexSearchTieBreakByPosition(t *testing.T) {
	ix, _ := NewFlatIndex(2)
	// Identical vectors: equal scores, insertion order must decide.
	_ = ix.Add("first", []float32{2, 0})
	_ = ix.Add("second", []float32{5, 0})
	results, err := ix.Search([]float32{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Key != "first" || results[1].Key != "second" {
		t.Errorf("tie not broken by position: %s, %s", results[0].Key, results[1].Key)
	}
}

func TestFlatIndexSearchDimensionMismatch(t *testing.T) {
	ix, _ := NewFlatIndex(3)
	if _, err := ix.Search([]float32{1, 0}, 5); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("want ErrDimensionMismatch, got %v", err)
	}
}

func TestFlatIndexAddDimensionMismatch(t *testing.T) {
	ix, _ := NewFlatIndex(3)
	if err := ix.Add("a", []float32{1, 0}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("want ErrDimensionMismatch, got %v", err)
	}
}

func TestFlatIndexZeroVectorScoresZero(t *testing.T) {
	ix, _ := NewFlatIndex(2)
	_ = ix.Add("zero", []float32{0, 0})
	_ = ix.Add("unit", []float32{1, 0})
	results, err := ix.Search([]float32{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Key != "unit" {
		t.Errorf("top hit=%s, want unit", results[0].Key)
	}
	if results[1].Key != "zero" || results[1].Score != 0 {
		t.Errorf("zero vector hit=%s score=%f, want zero/0", results[1].Key, results[1].Score)
	}
}

func TestFlatIndexRemove(t *testing.T) {
	ix, _ := NewFlatIndex(2)
	_ = ix.Add("x", []float32{1, 0})
	_ = ix.Add("y", []float32{0, 1})
	if !ix.Remove("x") {
		t.Error("Remove of present key should return true")
	}
	if ix.Size() != 1 {
		t.Errorf("Size=%d after remove", ix.Size())
	}
	if ix.Contains("x") {
		t.Error("x still present after remove")
	}
	// Removing a key that was never indexed is a no-op.
	if ix.Remove("ghost") {
		t.Error("Remove of absent key should return false")
	}
	if ix.Size() != 1 {
		t.Errorf("Size=%d after no-op remove", ix.Size())
	}
}

func TestFlatIndexRebuild(t *testing.T) {
	ix, _ := NewFlatIndex(2)
	_ = ix.Add("stale", []float32{1, 0})
	err := ix.Rebuild([]Entry{
		{Key: "a", Embedding: []float32{0, 1}},
		{Key: "b", Embedding: []float32{1, 0}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if ix.Size() != 2 {
		t.Fatalf("Size=%d after rebuild", ix.Size())
	}
	keys := ix.Keys()
	if keys[0] != "a" || keys[1] != "b" {
		t.Errorf("positions not reassigned in iteration order: %v", keys)
	}
	if ix.Contains("stale") {
		t.Error("rebuild did not clear previous state")
	}
}

func TestFlatIndexRebuildDimensionMismatch(t *testing.T) {
	ix, _ := NewFlatIndex(2)
	_ = ix.Add("keep", []float32{1, 0})
	err := ix.Rebuild([]Entry{{Key: "bad", Embedding: []float32{1, 2, 3}}})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("want ErrDimensionMismatch, got %v", err)
	}
	// Failed rebuild must leave existing state untouched.
	if ix.Size() != 1 || !ix.Contains("keep") {
		t.Error("failed rebuild corrupted index state")
	}
}

func TestNewFlatIndexInvalidDimensions(t *testing.T) {
	if _, err := NewFlatIndex(0); err == nil {
		t.Error("expected error for zero dimensions")
	}
	if _, err := NewFlatIndex(-5); err == nil {
		t.Error("expected error for negative dimensions")
	}
}
