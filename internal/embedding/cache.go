package embedding

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// defaultCacheEntries bounds the number of cached vectors.
const defaultCacheEntries = 4096

// CachedEmbedder memoizes vectors by exact text. Recall queries repeat
// heavily across turns, and each miss costs a model inference or an API call.
type CachedEmbedder struct {
	inner Embedder
	cache *ristretto.Cache
}

// Compile-time interface check.
var _ Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder wraps inner with a cache holding roughly maxEntries
// vectors. maxEntries <= 0 uses a default.
func NewCachedEmbedder(inner Embedder, maxEntries int) (*CachedEmbedder, error) {
	if maxEntries <= 0 {
		maxEntries = defaultCacheEntries
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: int64(maxEntries) * 10,
		MaxCost:     int64(maxEntries),
		BufferItems: 64,
		// Cost counts vectors, not bytes.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding: create cache: %w", err)
	}
	return &CachedEmbedder{inner: inner, cache: cache}, nil
}

// Embed implements Embedder. Cache misses are embedded in a single batch
// call to the wrapped backend; if that call fails the whole batch fails.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		if v, ok := c.cache.Get(text); ok {
			if vec, ok := v.([]float32); ok {
				out[i] = vec
				continue
			}
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrBatchMismatch, len(vecs), len(missTexts))
	}

	for j, vec := range vecs {
		out[missIdx[j]] = vec
		c.cache.Set(missTexts[j], vec, 1)
	}
	return out, nil
}

// Dimensions implements Embedder.
func (c *CachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// Wait blocks until pending cache writes are visible to Get.
func (c *CachedEmbedder) Wait() {
	c.cache.Wait()
}

// Close releases the cache's background goroutines.
func (c *CachedEmbedder) Close() {
	c.cache.Close()
}
