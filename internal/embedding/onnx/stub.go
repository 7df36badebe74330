//go:build !onnx

package onnx

import (
	"context"
	"errors"
	"log/slog"
)

// ErrNotBuilt is returned when the binary was built without the onnx tag.
var ErrNotBuilt = errors.New("onnx: support not compiled in (build with -tags onnx)")

// Embedder is unavailable in this build.
type Embedder struct{}

// New always fails in builds without the onnx tag.
func New(Config, *slog.Logger) (*Embedder, error) {
	return nil, ErrNotBuilt
}

// Embed always fails.
func (*Embedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, ErrNotBuilt
}

// Dimensions returns 0.
func (*Embedder) Dimensions() int { return 0 }

// Close is a no-op.
func (*Embedder) Close() error { return nil }
