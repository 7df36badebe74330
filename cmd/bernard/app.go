package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/phillt/bernard-sub001/internal/config"
	ctxengine "github.com/phillt/bernard-sub001/internal/context"
	"github.com/phillt/bernard-sub001/internal/embedding"
	"github.com/phillt/bernard-sub001/internal/embedding/onnx"
	"github.com/phillt/bernard-sub001/internal/memory"
	"github.com/phillt/bernard-sub001/internal/memory/sqlite"
	"github.com/phillt/bernard-sub001/internal/provider"
	"github.com/phillt/bernard-sub001/internal/provider/anthropic"
	"github.com/phillt/bernard-sub001/internal/redact"
)

// app is the composition root shared by the commands.
type app struct {
	cfg      *config.Config
	cfgPath  string
	logger   *slog.Logger
	registry *prometheus.Registry
	redactor *redact.Redactor
	cache    *memory.SemanticCache

	// closersMu guards closers; the lazy embedder factory registers them
	// from whichever goroutine first needs an embedding.
	closersMu sync.Mutex
	closers   []func() error
	closed    bool
}

// loadConfig resolves, loads, and validates the configuration.
func loadConfig(flags *globalFlags) (*config.Config, string, error) {
	cfg, path, err := config.LoadOrDefault(flags.configPath)
	if err != nil {
		return nil, "", err
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// newRedactor registers every configured secret so it never reaches logs
// or queued transcripts.
func newRedactor(cfg *config.Config) *redact.Redactor {
	return redact.New(
		cfg.Provider.Anthropic.APIKey,
		cfg.Embedding.APIKey,
		cfg.Gateway.BearerToken,
		cfg.Gateway.BasicPass,
		cfg.Gateway.WebhookSecret,
	)
}

func newLogger(level string, r *redact.Redactor) *slog.Logger {
	lvl, _ := config.ParseLogLevel(level)
	inner := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(redact.NewHandler(inner, r))
}

// newApp wires the memory store. The embedding backend is only loaded on
// first use.
func newApp(ctx context.Context, flags *globalFlags) (*app, error) {
	cfg, path, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	r := newRedactor(cfg)
	a := &app{
		cfg:      cfg,
		cfgPath:  path,
		logger:   newLogger(cfg.LogLevel, r),
		registry: prometheus.NewRegistry(),
		redactor: r,
	}
	slog.SetDefault(a.logger)
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	persister, err := a.newPersister(ctx)
	if err != nil {
		return nil, err
	}

	a.cache = memory.New(ctx, memory.Config{
		TopK:                cfg.Memory.TopK,
		SimilarityThreshold: cfg.Memory.SimilarityThreshold,
		MaxEntries:          cfg.Memory.MaxEntries,
		Dir:                 cfg.Memory.Dir,
		EmbedderID:          cfg.Embedding.Identity(),
	}, a.newEmbeddingSource(), persister,
		memory.WithLogger(a.logger),
		memory.WithMetrics(memory.NewMetrics(a.registry)),
	)
	return a, nil
}

func (a *app) newPersister(ctx context.Context) (memory.Persister, error) {
	dir := a.cfg.Memory.Dir
	switch a.cfg.Memory.Backend {
	case config.BackendSQLite:
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create memory dir: %w", err)
		}
		p, err := sqlite.Open(ctx, sqlite.Config{Path: filepath.Join(dir, sqlite.DefaultDBFile)})
		if err != nil {
			return nil, err
		}
		a.addCloser(p.Close)
		return p, nil
	default:
		return memory.NewFilePersister(filepath.Join(dir, memory.StoreFileName)), nil
	}
}

// newEmbeddingSource builds the lazily loaded embedder selected by config,
// wrapped in the in-process cache when enabled.
func (a *app) newEmbeddingSource() embedding.Source {
	ec := a.cfg.Embedding
	if ec.Backend == config.EmbeddingNone {
		return embedding.NewLazy(nil, a.logger)
	}

	return embedding.NewLazy(func(context.Context) (embedding.Embedder, error) {
		var inner embedding.Embedder
		switch ec.Backend {
		case config.EmbeddingHTTP:
			inner = embedding.NewHTTPEmbedder(embedding.HTTPConfig{
				BaseURL:    ec.BaseURL,
				APIKey:     ec.APIKey,
				Model:      ec.Model,
				Dimensions: ec.Dimensions,
				Timeout:    ec.Timeout,
			})
		case config.EmbeddingONNX:
			e, err := onnx.New(onnx.Config{
				ModelPath:     ec.ModelPath,
				TokenizerPath: ec.TokenizerPath,
				LibraryPath:   ec.LibraryPath,
				Dimensions:    ec.Dimensions,
			}, a.logger)
			if err != nil {
				return nil, err
			}
			a.addCloser(e.Close)
			inner = e
		default:
			inner = embedding.NewHashEmbedder(ec.Dimensions)
		}

		if ec.CacheSize <= 0 {
			return inner, nil
		}
		cached, err := embedding.NewCachedEmbedder(inner, ec.CacheSize)
		if err != nil {
			return nil, err
		}
		a.addCloser(func() error { cached.Close(); return nil })
		return cached, nil
	}, a.logger)
}

// newProvider builds the LLM used for summaries and extraction.
func (a *app) newProvider() (provider.Provider, error) {
	pc := a.cfg.Provider.Anthropic
	p, err := anthropic.New(anthropic.Config{
		APIKey:        pc.APIKey,
		Model:         pc.Model,
		BaseURL:       pc.BaseURL,
		MaxTokens:     pc.MaxTokens,
		ContextWindow: pc.ContextWindow,
		Timeout:       pc.Timeout,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("provider: %w", err)
	}
	return p, nil
}

// newEstimator prefers the tiktoken BPE and falls back to the character
// heuristic when the encoding cannot be loaded.
func (a *app) newEstimator() ctxengine.TokenEstimator {
	est, err := ctxengine.NewTiktokenEstimator()
	if err != nil {
		a.logger.Debug("tiktoken unavailable, using character estimate", "error", err)
		return ctxengine.NewCharEstimator(0)
	}
	return est
}

func (a *app) compressConfig() ctxengine.CompressConfig {
	c := a.cfg.Compression
	return ctxengine.CompressConfig{
		RecentTurnsToKeep:  c.RecentTurnsToKeep,
		Timeout:            c.Timeout,
		SummaryMaxTokens:   c.SummaryMaxTokens,
		ToolResultMaxChars: c.ToolResultMaxChars,
	}
}

// close releases resources in reverse order of acquisition.
func (a *app) close() error {
	a.closersMu.Lock()
	closers := a.closers
	a.closers = nil
	a.closed = true
	a.closersMu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// addCloser registers fn to run on close. After close it runs fn at once,
// so a resource created by a late lazy load is not leaked.
func (a *app) addCloser(fn func() error) {
	a.closersMu.Lock()
	if !a.closed {
		a.closers = append(a.closers, fn)
		a.closersMu.Unlock()
		return
	}
	a.closersMu.Unlock()
	if err := fn(); err != nil {
		a.logger.Warn("close late resource", "error", err)
	}
}
