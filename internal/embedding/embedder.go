// Package embedding turns text into fixed-dimension vectors for the semantic
// memory store.
//
// Backends:
//   - HashEmbedder: deterministic, offline, no semantic meaning (tests, dry runs)
//   - HTTPEmbedder: OpenAI-compatible /embeddings endpoint
//   - onnx.Embedder: local all-MiniLM-L6-v2 (build tag onnx)
//
// The backend is obtained once through a Lazy holder. A backend that cannot
// be constructed is reported as absent, never as an error: callers treat a
// nil Embedder as "feature degraded, continue without it".
package embedding

import (
	"context"
	"errors"
	"math"
)

// DefaultDimensions matches all-MiniLM-L6-v2.
const DefaultDimensions = 384

// ErrBatchMismatch is returned when a backend returns a different number of
// vectors than texts it was given.
var ErrBatchMismatch = errors.New("embedding: backend returned wrong number of vectors")

// Embedder converts texts to embedding vectors in one batch call.
// A batch either fully succeeds or fails as a whole.
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// Source hands out the process-wide Embedder. Acquire returns nil when no
// embedder is available.
type Source interface {
	Acquire(ctx context.Context) Embedder
}

// Fixed is a Source that always returns E (which may be nil).
type Fixed struct {
	E Embedder
}

// Acquire implements Source.
func (f Fixed) Acquire(context.Context) Embedder {
	return f.E
}

// Normalize returns vec scaled to unit length. A zero vector is returned
// unchanged.
func Normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}

	norm = math.Sqrt(norm)
	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = float32(float64(v) / norm)
	}
	return normalized
}
