package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

const (
	defaultHTTPBaseURL = "https://api.openai.com/v1"
	defaultHTTPModel   = "text-embedding-3-small"
	defaultHTTPTimeout = 30 * time.Second
)

// HTTPConfig configures an OpenAI-compatible embeddings endpoint.
type HTTPConfig struct {
	// BaseURL is the API root; "/embeddings" is appended.
	BaseURL string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// Model is the embedding model name.
	Model string

	// Dimensions is the expected vector size. Vectors of any other length
	// fail the batch.
	Dimensions int

	// Timeout bounds one HTTP request.
	Timeout time.Duration
}

// HTTPEmbedder implements Embedder against an OpenAI-compatible
// /embeddings API. Safe for concurrent use.
type HTTPEmbedder struct {
	cfg    HTTPConfig
	client *http.Client
}

// Compile-time interface check.
var _ Embedder = (*HTTPEmbedder)(nil)

// NewHTTPEmbedder creates an HTTP-backed embedder.
func NewHTTPEmbedder(cfg HTTPConfig) *HTTPEmbedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultHTTPBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = defaultHTTPModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = 1536
	}
	return &HTTPEmbedder{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type httpEmbeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type httpEmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Embed implements Embedder.
func (e *HTTPEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	data, err := json.Marshal(httpEmbeddingRequest{Input: texts, Model: e.cfg.Model})
	if err != nil {
		return nil, fmt.Errorf("embedding http: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+"/embeddings", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("embedding http: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding http: request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embedding http: read body: %w", err)
	}

	var parsed httpEmbeddingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("embedding http: decode response (HTTP %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("embedding http: API error (%s): %s", parsed.Error.Type, parsed.Error.Message)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("embedding http: unexpected HTTP status %d", resp.StatusCode)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrBatchMismatch, len(parsed.Data), len(texts))
	}

	sort.Slice(parsed.Data, func(i, j int) bool { return parsed.Data[i].Index < parsed.Data[j].Index })

	out := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		if len(d.Embedding) != e.cfg.Dimensions {
			return nil, fmt.Errorf("embedding http: vector %d has %d dimensions, want %d", i, len(d.Embedding), e.cfg.Dimensions)
		}
		out[i] = d.Embedding
	}
	return out, nil
}

// Dimensions implements Embedder.
func (e *HTTPEmbedder) Dimensions() int {
	return e.cfg.Dimensions
}
