package embedding

import (
	"container/list"
	"context"
	"sync"
)

// cache is an LRU cache for embeddings keyed by exact text content.
type cache struct {
	capacity int
	entries  map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
}

type cacheEntry struct {
	key   string
	value []float32
}

func newCache(capacity int) *cache {
	return &cache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		lru:      list.New(),
	}
}

func (c *cache) get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry).value, true
	}
	return nil, false
}

func (c *cache) set(key string, value []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).value = value
		return
	}
	c.entries[key] = c.lru.PushFront(&cacheEntry{key: key, value: value})
	if c.lru.Len() > c.capacity {
		if oldest := c.lru.Back(); oldest != nil {
			c.lru.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
		}
	}
}

// CachedEmbedder wraps an Embedder with an LRU cache keyed by text content.
// Repeated ingestion of identical chunks and repeated questions skip the
// remote call.
type CachedEmbedder struct {
	inner Embedder
	cache *cache
}

// NewCachedEmbedder wraps inner with a cache of the given capacity.
// A capacity of 0 or less disables caching and returns inner unchanged.
func NewCachedEmbedder(inner Embedder, capacity int) Embedder {
	if capacity <= 0 {
		return inner
	}
	return &CachedEmbedder{inner: inner, cache: newCache(capacity)}
}

// Embed returns the cached vector for text or delegates to the inner embedder.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.get(text); ok {
		return v, nil
	}
	v, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.set(text, v)
	return v, nil
}

// EmbedBatch serves cached texts locally and fetches only the misses, in a
// single inner batch, preserving input order.
func (e *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if v, ok := e.cache.get(text); ok {
			vectors[i] = v
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) > 0 {
		fetched, err := e.inner.EmbedBatch(ctx, missing)
		if err != nil {
			return nil, err
		}
		for j, v := range fetched {
			e.cache.set(missing[j], v)
			vectors[missingIdx[j]] = v
		}
	}
	return vectors, nil
}

// Dimensions returns the inner embedder's dimension.
func (e *CachedEmbedder) Dimensions() int { return e.inner.Dimensions() }

// Close closes the inner embedder.
func (e *CachedEmbedder) Close() error { return e.inner.Close() }
