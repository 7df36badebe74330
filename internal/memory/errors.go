package memory

import (
	"errors"
	"log/slog"
)

// Sentinel errors.
var (
	ErrEmbedderUnavailable = errors.New("memory: embedding backend unavailable")
	ErrEmptyQuery          = errors.New("memory: empty query")
	ErrCorruptStore        = errors.New("memory: corrupt store")
	ErrCorruptPending      = errors.New("memory: corrupt pending extraction")
	ErrEmbedderMismatch    = errors.New("memory: stored vectors do not match embedder")
)

// degrade logs err and returns fallback. Every public operation of the
// cache funnels its failures through here so callers only ever see the
// degraded result.
func degrade[T any](logger *slog.Logger, op string, err error, fallback T) T {
	if errors.Is(err, ErrEmbedderUnavailable) || errors.Is(err, ErrEmptyQuery) {
		logger.Debug(op+" skipped", "reason", err)
		return fallback
	}
	logger.Warn(op+" failed", "error", err)
	return fallback
}
