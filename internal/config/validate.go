package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validate checks the structural validity of a Config and reports every
// problem at once.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if _, err := ParseLogLevel(cfg.LogLevel); err != nil {
		errs = append(errs, err)
	}

	errs = append(errs, validateMemory(cfg.Memory)...)
	errs = append(errs, validateEmbedding(cfg.Embedding)...)
	errs = append(errs, validateCompression(cfg.Compression)...)
	errs = append(errs, validateRecall(cfg.Recall)...)
	errs = append(errs, validateWorker(cfg.Worker)...)

	return errors.Join(errs...)
}

// ParseLogLevel maps a config level name to a slog.Level. Empty means info.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("config: unknown log_level %q", level)
	}
}

func validateMemory(m MemoryConfig) []error {
	var errs []error
	if m.TopK < 0 {
		errs = append(errs, fmt.Errorf("config: memory.top_k must be >= 0, got %d", m.TopK))
	}
	if m.SimilarityThreshold < -1 || m.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("config: memory.similarity_threshold must be in [-1, 1], got %v", m.SimilarityThreshold))
	}
	if m.MaxEntries < 0 {
		errs = append(errs, fmt.Errorf("config: memory.max_entries must be >= 0, got %d", m.MaxEntries))
	}
	switch m.Backend {
	case BackendJSON, BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("config: memory.backend must be %q or %q, got %q", BackendJSON, BackendSQLite, m.Backend))
	}
	if m.Dir == "" {
		errs = append(errs, errors.New("config: memory.dir (or data_dir) is required"))
	}
	return errs
}

func validateEmbedding(e EmbeddingConfig) []error {
	var errs []error
	switch e.Backend {
	case EmbeddingHash, EmbeddingNone:
	case EmbeddingHTTP:
		if e.APIKey == "" && e.BaseURL == "" {
			errs = append(errs, errors.New("config: embedding.api_key or embedding.base_url is required for the http backend"))
		}
	case EmbeddingONNX:
		if e.ModelPath == "" {
			errs = append(errs, errors.New("config: embedding.model_path is required for the onnx backend"))
		}
		if e.TokenizerPath == "" {
			errs = append(errs, errors.New("config: embedding.tokenizer_path is required for the onnx backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown embedding.backend %q", e.Backend))
	}
	if e.Dimensions < 0 {
		errs = append(errs, fmt.Errorf("config: embedding.dimensions must be >= 0, got %d", e.Dimensions))
	}
	if e.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("config: embedding.cache_size must be >= 0, got %d", e.CacheSize))
	}
	return errs
}

func validateCompression(c CompressionConfig) []error {
	var errs []error
	if c.RecentTurnsToKeep < 0 {
		errs = append(errs, fmt.Errorf("config: compression.recent_turns_to_keep must be >= 0, got %d", c.RecentTurnsToKeep))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("config: compression.timeout must be >= 0, got %s", c.Timeout))
	}
	return errs
}

func validateRecall(r RecallConfig) []error {
	var errs []error
	if r.MaxQueryChars < 0 {
		errs = append(errs, fmt.Errorf("config: recall.max_query_chars must be >= 0, got %d", r.MaxQueryChars))
	}
	if r.StickinessBoost < 0 || r.StickinessBoost > 1 {
		errs = append(errs, fmt.Errorf("config: recall.stickiness_boost must be in [0, 1], got %v", r.StickinessBoost))
	}
	return errs
}

func validateWorker(w WorkerConfig) []error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	var errs []error
	for _, f := range []struct{ name, expr string }{
		{"schedule", w.Schedule},
		{"sweep_schedule", w.SweepSchedule},
	} {
		if f.expr == "" {
			continue
		}
		if _, err := parser.Parse(f.expr); err != nil {
			errs = append(errs, fmt.Errorf("config: worker.%s: %w", f.name, err))
		}
	}
	return errs
}
