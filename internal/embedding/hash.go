package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// HashEmbedder generates deterministic unit vectors from a hash of the text.
// Identical texts map to identical vectors; different texts are close to
// orthogonal. It carries no semantic meaning.
type HashEmbedder struct {
	dimensions int
}

// Compile-time interface check.
var _ Embedder = (*HashEmbedder)(nil)

// NewHashEmbedder creates a hash embedder. dims <= 0 uses DefaultDimensions.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &HashEmbedder{dimensions: dims}
}

// Embed implements Embedder.
func (h *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = h.embedOne(text)
	}
	return out, nil
}

// Dimensions implements Embedder.
func (h *HashEmbedder) Dimensions() int {
	return h.dimensions
}

func (h *HashEmbedder) embedOne(text string) []float32 {
	f := fnv.New64a()
	_, _ = f.Write([]byte(text))
	seed := f.Sum64()

	vec := make([]float32, h.dimensions)
	for i := range vec {
		// LCG step; maps the state to [-1, 1].
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return Normalize(vec)
}
