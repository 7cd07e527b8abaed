package embedding

import (
	"container/list"
	"context"
	"sync"
)

// lruCache is an LRU cache for embeddings keyed by input text.
type lruCache struct {
	capacity int
	entries  map[string]*list.Element
	order    *list.List
	mu       sync.Mutex
}

type lruEntry struct {
	key   string
	value []float32
}

func newLRUCache(capacity int) *lruCache {
	return &lruCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

func (c *lruCache) get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*lruEntry).value, true
}

func (c *lruCache) set(key string, value []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*lruEntry).value = value
		return
	}

	c.entries[key] = c.order.PushFront(&lruEntry{key: key, value: value})
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*lruEntry).key)
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// CachedEmbedder wraps an Embedder with an LRU cache keyed by input text.
type CachedEmbedder struct {
	inner Embedder
	cache *lruCache
}

// NewCachedEmbedder wraps inner with a cache of the given capacity.
// A capacity of zero or less disables caching.
func NewCachedEmbedder(inner Embedder, capacity int) *CachedEmbedder {
	var cache *lruCache
	if capacity > 0 {
		cache = newLRUCache(capacity)
	}
	return &CachedEmbedder{inner: inner, cache: cache}
}

// Embed returns the cached embedding for text, or calls the inner embedder.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.cache != nil {
		if emb, ok := e.cache.get(text); ok {
			return emb, nil
		}
	}
	emb, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.set(text, emb)
	}
	return emb, nil
}

// EmbedBatch embeds texts, serving cached entries and batching the rest into
// one inner call.
func (e *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if e.cache == nil {
		return e.inner.EmbedBatch(ctx, texts)
	}

	embeddings := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if emb, ok := e.cache.get(text); ok {
			embeddings[i] = emb
		} else {
			missing = append(missing, text)
			missingIdx = append(missingIdx, i)
		}
	}
	if len(missing) == 0 {
		return embeddings, nil
	}

	fetched, err := e.inner.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	for i, emb := range fetched {
		embeddings[missingIdx[i]] = emb
		e.cache.set(missing[i], emb)
	}
	return embeddings, nil
}

// Dimensions returns the inner embedder's dimension.
func (e *CachedEmbedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Close closes the inner embedder.
func (e *CachedEmbedder) Close() error {
	return e.inner.Close()
}
