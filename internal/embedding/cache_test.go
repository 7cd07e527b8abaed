package embedding

import (
	"context"
	"sync/atomic"
	"testing"
)

type countingEmbedder struct {
	*MockEmbedder
	calls atomic.Int64
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	return c.MockEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	return c.MockEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedderHit(t *testing.T) {
	inner := &countingEmbedder{MockEmbedder: NewMockEmbedder(8)}
	e := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	first, err := e.Embed(ctx, "same text")
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Embed(ctx, "same text")
	if err != nil {
		t.Fatal(err)
	}
	if inner.calls.Load() != 1 {
		t.Errorf("inner called %d times, want 1", inner.calls.Load())
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatal("cached embedding differs from original")
		}
	}
}

func TestCachedEmbedderEviction(t *testing.T) {
	inner := &countingEmbedder{MockEmbedder: NewMockEmbedder(4)}
	e := NewCachedEmbedder(inner, 2)
	ctx := context.Background()

	for _, text := range []string{"a", "b", "c"} {
		if _, err := e.Embed(ctx, text); err != nil {
			t.Fatal(err)
		}
	}
	if e.cache.len() != 2 {
		t.Errorf("cache size=%d, want 2", e.cache.len())
	}
	// "a" was evicted, re-embedding it hits the inner embedder again.
	if _, err := e.Embed(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if inner.calls.Load() != 4 {
		t.Errorf("inner called %d times, want 4", inner.calls.Load())
	}
}

func TestCachedEmbedderBatchPartialHit(t *testing.T) {
	inner := &countingEmbedder{MockEmbedder: NewMockEmbedder(4)}
	e := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	if _, err := e.Embed(ctx, "cached"); err != nil {
		t.Fatal(err)
	}
	embs, err := e.EmbedBatch(ctx, []string{"fresh", "cached", "fresh2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(embs) != 3 {
		t.Fatalf("got %d embeddings", len(embs))
	}
	for i, emb := range embs {
		if len(emb) != 4 {
			t.Errorf("embedding %d has dimension %d", i, len(emb))
		}
	}
	// One Embed call plus one batch call for the two misses.
	if inner.calls.Load() != 2 {
		t.Errorf("inner called %d times, want 2", inner.calls.Load())
	}
}

func TestCachedEmbedderZeroCapacity(t *testing.T) {
	inner := &countingEmbedder{MockEmbedder: NewMockEmbedder(4)}
	e := NewCachedEmbedder(inner, 0)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := e.Embed(ctx, "text"); err != nil {
			t.Fatal(err)
		}
	}
	if inner.calls.Load() != 2 {
		t.Errorf("caching not disabled: %d inner calls", inner.calls.Load())
	}
}

func TestMockEmbedderDeterministic(t *testing.T) {
	e := NewMockEmbedder(16)
	ctx := context.Background()
	a, _ := e.Embed(ctx, "alpha")
	b, _ := e.Embed(ctx, "alpha")
	c, _ := e.Embed(ctx, "beta")
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("same text produced different embeddings")
		}
	}
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts produced identical embeddings")
	}
}
