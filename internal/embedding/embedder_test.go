package embedding_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/phillt/bernard-sub001/internal/embedding"
)

// countingEmbedder records how many texts reach the backend.
type countingEmbedder struct {
	inner embedding.Embedder
	texts atomic.Int64
	calls atomic.Int64
	err   error
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	c.texts.Add(int64(len(texts)))
	if c.err != nil {
		return nil, c.err
	}
	return c.inner.Embed(ctx, texts)
}

func (c *countingEmbedder) Dimensions() int { return c.inner.Dimensions() }

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestHashEmbedder_Deterministic(t *testing.T) {
	t.Parallel()

	h := embedding.NewHashEmbedder(0)
	if h.Dimensions() != embedding.DefaultDimensions {
		t.Fatalf("Dimensions() = %d, want %d", h.Dimensions(), embedding.DefaultDimensions)
	}

	vecs, err := h.Embed(context.Background(), []string{"alpha", "alpha", "beta"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("got %d vectors", len(vecs))
	}
	for i := range vecs[0] {
		if vecs[0][i] != vecs[1][i] {
			t.Fatal("identical texts produced different vectors")
		}
	}
	if n := norm(vecs[2]); math.Abs(n-1) > 1e-4 {
		t.Errorf("norm = %f, want 1", n)
	}
}

func TestHashEmbedder_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := embedding.NewHashEmbedder(8).Embed(ctx, []string{"x"}); err == nil {
		t.Error("expected error on canceled context")
	}
}

func TestNormalize_ZeroVector(t *testing.T) {
	t.Parallel()

	zero := []float32{0, 0, 0}
	got := embedding.Normalize(zero)
	for _, v := range got {
		if v != 0 {
			t.Fatalf("Normalize(zero) = %v", got)
		}
	}
}

func TestLazy_FactoryRunsOnce(t *testing.T) {
	t.Parallel()

	var runs atomic.Int64
	lazy := embedding.NewLazy(func(context.Context) (embedding.Embedder, error) {
		runs.Add(1)
		return embedding.NewHashEmbedder(4), nil
	}, nil)

	for range 3 {
		if lazy.Acquire(context.Background()) == nil {
			t.Fatal("Acquire returned nil")
		}
	}
	if runs.Load() != 1 {
		t.Errorf("factory ran %d times, want 1", runs.Load())
	}
}

func TestLazy_FailureIsCachedAsUnavailable(t *testing.T) {
	t.Parallel()

	var runs atomic.Int64
	lazy, reset := embedding.NewLazyForTest(func(context.Context) (embedding.Embedder, error) {
		if runs.Add(1) == 1 {
			return nil, errors.New("model missing")
		}
		return embedding.NewHashEmbedder(4), nil
	}, nil)

	if lazy.Acquire(context.Background()) != nil {
		t.Fatal("expected nil on factory failure")
	}
	if lazy.Acquire(context.Background()) != nil {
		t.Fatal("failure should be cached until reset")
	}

	reset()
	if lazy.Acquire(context.Background()) == nil {
		t.Fatal("expected embedder after reset")
	}
	if runs.Load() != 2 {
		t.Errorf("factory ran %d times, want 2", runs.Load())
	}
}

func TestLazy_NilFactory(t *testing.T) {
	t.Parallel()

	if e := embedding.NewLazy(nil, nil).Acquire(context.Background()); e != nil {
		t.Errorf("Acquire() = %v, want nil", e)
	}
}

func TestCachedEmbedder_EmbedsOnlyMisses(t *testing.T) {
	t.Parallel()

	backend := &countingEmbedder{inner: embedding.NewHashEmbedder(8)}
	cached, err := embedding.NewCachedEmbedder(backend, 100)
	if err != nil {
		t.Fatalf("NewCachedEmbedder: %v", err)
	}
	defer cached.Close()

	first, err := cached.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	cached.Wait()

	second, err := cached.Embed(context.Background(), []string{"b", "c", "a"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	if got := backend.texts.Load(); got != 3 {
		t.Errorf("backend embedded %d texts, want 3", got)
	}
	if got := backend.calls.Load(); got != 2 {
		t.Errorf("backend called %d times, want 2", got)
	}
	if second[0][0] != first[1][0] || second[2][0] != first[0][0] {
		t.Error("cached vectors returned out of order")
	}
}

func TestCachedEmbedder_BackendError(t *testing.T) {
	t.Parallel()

	backend := &countingEmbedder{inner: embedding.NewHashEmbedder(8), err: errors.New("down")}
	cached, err := embedding.NewCachedEmbedder(backend, 0)
	if err != nil {
		t.Fatalf("NewCachedEmbedder: %v", err)
	}
	defer cached.Close()

	if _, err := cached.Embed(context.Background(), []string{"a"}); err == nil {
		t.Error("expected backend error")
	}
}

func TestHTTPEmbedder_Embed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		// Reply out of order to check index sorting.
		_, _ = w.Write([]byte(`{"data":[
			{"index":1,"embedding":[0,1]},
			{"index":0,"embedding":[1,0]}
		]}`))
	}))
	defer srv.Close()

	e := embedding.NewHTTPEmbedder(embedding.HTTPConfig{
		BaseURL:    srv.URL + "/v1/",
		APIKey:     "sk-test",
		Dimensions: 2,
	})
	vecs, err := e.Embed(context.Background(), []string{"x", "y"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if vecs[0][0] != 1 || vecs[1][1] != 1 {
		t.Errorf("vectors = %v", vecs)
	}
}

func TestHTTPEmbedder_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"api error", http.StatusUnauthorized, `{"error":{"message":"bad key","type":"auth"}}`},
		{"count mismatch", http.StatusOK, `{"data":[{"index":0,"embedding":[1,0]}]}`},
		{"wrong dimensions", http.StatusOK, `{"data":[{"index":0,"embedding":[1]},{"index":1,"embedding":[1]}]}`},
		{"not json", http.StatusBadGateway, `<html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			e := embedding.NewHTTPEmbedder(embedding.HTTPConfig{BaseURL: srv.URL, Dimensions: 2})
			if _, err := e.Embed(context.Background(), []string{"x", "y"}); err == nil {
				t.Error("expected error")
			}
		})
	}
}
