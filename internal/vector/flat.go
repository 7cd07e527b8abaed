package vector

import (
	"fmt"
	"sort"
	"sync"
)

// FlatIndex is an exact inner-product index: a dense collection of
// unit-normalized vectors plus a position→record-key mapping. Search is
// brute-force, which is exact and fast enough at periodic-sync write
// volumes. The keys slice and the vectors slice are always the same
// length; that lockstep is the index's core invariant.
type FlatIndex struct {
	dimensions int
	keys       []string
	vectors    [][]float32
	mu         sync.RWMutex
}

// Entry is one (record key, embedding) pair for Rebuild.
type Entry struct {
	Key       string
	Embedding []float32
}

// Result is a single search hit.
type Result struct {
	Key   string
	Score float64
}

// NewFlatIndex creates an empty index with the given dimension.
func NewFlatIndex(dimensions int) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}
	return &FlatIndex{dimensions: dimensions}, nil
}

// Dimensions returns the configured vector dimension.
func (ix *FlatIndex) Dimensions() int {
	return ix.dimensions
}

// Size returns the number of vectors in the index.
func (ix *FlatIndex) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.keys)
}

// Contains reports whether key is present in the index.
func (ix *FlatIndex) Contains(key string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	for _, k := range ix.keys {
		if k == key {
			return true
		}
	}
	return false
}

// Keys returns a snapshot of the position→key mapping in position order.
func (ix *FlatIndex) Keys() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]string, len(ix.keys))
	copy(out, ix.keys)
	return out
}

// Add normalizes embedding and appends it at the next position. Zero
// vectors are stored as-is and score 0 against every query.
func (ix *FlatIndex) Add(key string, embedding []float32) error {
	if len(embedding) != ix.dimensions {
		return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(embedding), ix.dimensions)
	}
	vec := make([]float32, ix.dimensions)
	copy(vec, embedding)
	NormalizeInPlace(vec)
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.keys = append(ix.keys, key)
	ix.vectors = append(ix.vectors, vec)
	return nil
}

// Rebuild clears the index and loads every entry fresh, assigning
// positions 0..N-1 in iteration order. The new state is built off-lock
// and swapped in atomically so concurrent searches never observe a
// half-built index.
func (ix *FlatIndex) Rebuild(entries []Entry) error {
	keys := make([]string, 0, len(entries))
	vectors := make([][]float32, 0, len(entries))
	for _, e := range entries {
		if len(e.Embedding) != ix.dimensions {
			return fmt.Errorf("%w: key %s has %d, expected %d", ErrDimensionMismatch, e.Key, len(e.Embedding), ix.dimensions)
		}
		vec := make([]float32, ix.dimensions)
		copy(vec, e.Embedding)
		NormalizeInPlace(vec)
		keys = append(keys, e.Key)
		vectors = append(vectors, vec)
	}
	ix.mu.Lock()
	ix.keys = keys
	ix.vectors = vectors
	ix.mu.Unlock()
	return nil
}

// Remove compacts the given keys out of the index, preserving the order
// of the remaining entries. Returns true if anything was removed; a
// remove of absent keys is a no-op returning false.
func (ix *FlatIndex) Remove(keys ...string) bool {
	removeSet := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		removeSet[k] = struct{}{}
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	newKeys := ix.keys[:0]
	newVectors := ix.vectors[:0]
	removed := false
	for i, k := range ix.keys {
		if _, drop := removeSet[k]; drop {
			removed = true
			continue
		}
		newKeys = append(newKeys, k)
		newVectors = append(newVectors, ix.vectors[i])
	}
	ix.keys = newKeys
	ix.vectors = newVectors
	return removed
}

// Search returns the top-k keys by inner product against the normalized
// query, sorted by descending score with ties broken by ascending
// position (insertion order). An empty index or k <= 0 returns nil, not
// an error.
func (ix *FlatIndex) Search(query []float32, k int) ([]Result, error) {
	if len(query) != ix.dimensions {
		return nil, fmt.Errorf("%w: query has %d, expected %d", ErrDimensionMismatch, len(query), ix.dimensions)
	}
	q := make([]float32, ix.dimensions)
	copy(q, query)
	NormalizeInPlace(q)

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if k <= 0 || len(ix.keys) == 0 {
		return nil, nil
	}
	type scored struct {
		pos   int
		score float64
	}
	scores := make([]scored, len(ix.vectors))
	for i, vec := range ix.vectors {
		var dot float64
		for j := 0; j < ix.dimensions; j++ {
			dot += float64(q[j]) * float64(vec[j])
		}
		scores[i] = scored{pos: i, score: dot}
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].pos < scores[j].pos
	})
	if k > len(scores) {
		k = len(scores)
	}
	out := make([]Result, k)
	for i := 0; i < k; i++ {
		out[i] = Result{Key: ix.keys[scores[i].pos], Score: scores[i].score}
	}
	return out, nil
}
