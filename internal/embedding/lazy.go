package embedding

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Factory builds an Embedder. It may perform slow one-time work such as
// loading a model from disk.
type Factory func(ctx context.Context) (Embedder, error)

// Lazy builds its Embedder on first use and caches the outcome, success or
// failure, for the lifetime of the value. Construct one per process in the
// composition root and share it.
type Lazy struct {
	factory Factory
	logger  *slog.Logger

	mu       sync.Mutex
	done     bool
	embedder Embedder
}

// Compile-time interface check.
var _ Source = (*Lazy)(nil)

// NewLazy creates a Lazy around factory. A nil logger uses slog.Default().
func NewLazy(factory Factory, logger *slog.Logger) *Lazy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lazy{
		factory: factory,
		logger:  logger.With("component", "embedding"),
	}
}

// NewLazyForTest creates a Lazy plus a reset function that forgets the
// cached outcome so the next Acquire runs the factory again.
func NewLazyForTest(factory Factory, logger *slog.Logger) (*Lazy, func()) {
	l := NewLazy(factory, logger)
	return l, l.reset
}

// Acquire returns the cached Embedder, running the factory on the first call.
// It returns nil if the factory failed or returned nil.
func (l *Lazy) Acquire(ctx context.Context) Embedder {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.done {
		return l.embedder
	}
	l.done = true

	if l.factory == nil {
		l.logger.Info("no embedding backend configured, semantic memory disabled")
		return nil
	}

	start := time.Now()
	e, err := l.factory(ctx)
	if err != nil {
		l.logger.Warn("embedding backend unavailable, semantic memory disabled", "error", err)
		return nil
	}
	if e == nil {
		l.logger.Info("embedding backend disabled")
		return nil
	}

	l.embedder = e
	l.logger.Info("embedding backend ready",
		"dimensions", e.Dimensions(),
		"load_time", time.Since(start),
	)
	return e
}

func (l *Lazy) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.done = false
	l.embedder = nil
}
