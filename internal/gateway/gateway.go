package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/phillt/bernard-sub001/internal/memory"
	"github.com/phillt/bernard-sub001/internal/redact"
)

// Store is the memory surface exposed over HTTP. *memory.SemanticCache
// implements it.
type Store interface {
	Entries() []memory.MemoryEntry
	Count() int
	Search(ctx context.Context, query string) []memory.SearchResult
	AddDomainFacts(ctx context.Context, domain string, facts []string, source string) int
	DeleteByIDs(ctx context.Context, ids []string) int
	Clear(ctx context.Context)
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithPrometheus serves gatherer on /metrics and records request metrics
// on reg.
func WithPrometheus(reg prometheus.Registerer, gatherer prometheus.Gatherer) Option {
	return func(g *Gateway) {
		g.metrics = NewMetrics(reg)
		g.gatherer = gatherer
	}
}

// WithPendingDir enables transcript webhooks that queue pending
// extractions in dir.
func WithPendingDir(dir string) Option {
	return func(g *Gateway) { g.pendingDir = dir }
}

// WithRedactor scrubs credentials out of posted transcripts before they
// are queued.
func WithRedactor(r *redact.Redactor) Option {
	return func(g *Gateway) { g.redactor = r }
}

// Gateway is the HTTP server exposing health, metrics, the memory API, and
// transcript webhooks. It binds to loopback by default.
type Gateway struct {
	config     Config
	store      Store
	logger     *slog.Logger
	metrics    *Metrics
	gatherer   prometheus.Gatherer
	pendingDir string
	redactor   *redact.Redactor
	dispatcher *WebhookDispatcher
	server     *http.Server
	startedAt  time.Time
}

// New creates a Gateway serving store.
func New(cfg Config, store Store, opts ...Option) *Gateway {
	cfg.defaults()
	g := &Gateway{
		config:    cfg,
		store:     store,
		logger:    slog.Default(),
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "gateway")

	g.dispatcher = NewWebhookDispatcher(g.logger)
	if g.pendingDir != "" {
		g.dispatcher.Register(TranscriptSource, &transcriptWebhook{dir: g.pendingDir, redactor: g.redactor}, cfg.WebhookSecret)
	}
	return g
}

// Handler returns the routed handler, for tests and embedding.
func (g *Gateway) Handler() http.Handler {
	return g.buildRouter()
}

// Start listens on the configured address and serves in the background.
func (g *Gateway) Start(ctx context.Context) error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return fmt.Errorf("gateway: invalid bind address %q: %w", g.config.Bind, err)
	}

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen failed: %w", err)
	}

	go func() {
		g.logger.Info("gateway listening", "addr", ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts the server down within the configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
