// Package memory implements the long-term fact store of the agent: a
// capacity-bounded collection of embedded facts with near-duplicate
// rejection, cosine similarity search, and decay-weighted eviction.
//
// Failures of the embedding backend or of persistence never reach callers.
// Every public operation has a degraded result (zero added, no results)
// and logs the cause instead.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/phillt/bernard-sub001/internal/embedding"
)

// Fixed store constants.
const (
	// DedupThreshold is the cosine similarity above which a new fact is
	// treated as a duplicate of a stored one.
	DedupThreshold = 0.92

	// PruneHalfLife is the recency half-life used by eviction.
	PruneHalfLife = 90 * 24 * time.Hour
)

// Config defaults.
const (
	DefaultTopK                = 5
	DefaultSimilarityThreshold = 0.35
	DefaultMaxEntries          = 5000
)

var tracer = otel.Tracer("github.com/phillt/bernard-sub001/internal/memory")

// Config tunes search and capacity.
type Config struct {
	// TopK is the maximum number of search results.
	TopK int

	// SimilarityThreshold is the minimum cosine similarity of a result.
	SimilarityThreshold float64

	// MaxEntries is the store capacity.
	MaxEntries int

	// Dir, when set, is swept for stale pending and temp files on
	// construction.
	Dir string

	// EmbedderID names the embedder producing vectors, such as
	// "onnx:all-MiniLM-L6-v2/model.onnx:384". When it differs from the
	// identity recorded by the persister, stored facts are re-embedded
	// before the store is used. Empty disables the check.
	EmbedderID string
}

func (c Config) withDefaults() Config {
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = DefaultMaxEntries
	}
	return c
}

// Option configures a SemanticCache.
type Option func(*SemanticCache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *SemanticCache) { s.now = now }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *SemanticCache) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records store activity on m.
func WithMetrics(m *Metrics) Option {
	return func(s *SemanticCache) { s.metrics = m }
}

// SemanticCache owns the collection of embedded facts. It is safe for
// concurrent use: one mutex serializes every mutation and every write to
// the persister.
type SemanticCache struct {
	cfg       Config
	embedder  embedding.Source
	persister Persister
	logger    *slog.Logger
	metrics   *Metrics
	now       func() time.Time

	mu      sync.Mutex
	entries []MemoryEntry

	// storedID is the identity of the embedder behind entries; savedID is
	// the identity last recorded by the persister.
	storedID string
	savedID  string
	// stale is set while entries hold vectors from another embedder.
	stale bool
}

// New creates a cache and loads its entries from persister. A missing or
// unreadable store starts empty. A nil persister keeps entries in memory
// only.
func New(ctx context.Context, cfg Config, embedder embedding.Source, persister Persister, opts ...Option) *SemanticCache {
	if embedder == nil {
		embedder = embedding.Fixed{}
	}
	s := &SemanticCache{
		cfg:       cfg.withDefaults(),
		embedder:  embedder,
		persister: persister,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "memory")

	if s.cfg.Dir != "" {
		removed, err := SweepStale(s.cfg.Dir, StalePendingAge, s.now())
		if err != nil {
			s.logger.Warn("stale file sweep failed", "dir", s.cfg.Dir, "error", err)
		} else if removed > 0 {
			s.logger.Info("removed stale pending files", "dir", s.cfg.Dir, "count", removed)
		}
	}

	if err := s.load(ctx); err != nil {
		s.entries = degrade(s.logger, "load memory store", err, []MemoryEntry(nil))
	}
	s.metrics.setFacts(len(s.entries))
	return s
}

func (s *SemanticCache) load(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	loaded, err := s.persister.Load(ctx)
	if err != nil {
		return err
	}

	dims := 0
	valid := make([]MemoryEntry, 0, len(loaded))
	for _, e := range loaded {
		if strings.TrimSpace(e.Fact) == "" || len(e.Embedding) == 0 {
			continue
		}
		if dims == 0 {
			dims = len(e.Embedding)
		}
		if len(e.Embedding) != dims {
			continue
		}
		valid = append(valid, e)
	}
	if dropped := len(loaded) - len(valid); dropped > 0 {
		s.logger.Warn("dropped invalid stored entries", "count", dropped)
	}

	s.entries = valid
	s.loadIdentity(ctx)
	s.logger.Debug("memory store loaded", "entries", len(valid))
	return nil
}

// loadIdentity decides whether the loaded entries came from the configured
// embedder. A persister that cannot record an identity is trusted.
func (s *SemanticCache) loadIdentity(ctx context.Context) {
	want := s.cfg.EmbedderID
	ids, ok := s.persister.(IdentityStore)
	if !ok || want == "" {
		s.storedID, s.savedID = want, want
		return
	}

	got, err := ids.LoadEmbedderID(ctx)
	if err != nil {
		s.logger.Warn("read embedder identity", "error", err)
	}
	s.storedID, s.savedID = got, got

	if len(s.entries) == 0 {
		s.storedID = want
		return
	}
	if got != want {
		s.stale = true
		s.logger.Warn("stored facts were embedded by a different embedder; re-embedding on next use",
			"stored", got,
			"configured", want,
			"entries", len(s.entries),
		)
	}
}

// reconcile re-embeds every stored fact with e when the stored vectors
// are stale or have a different dimension than e produces. On failure the
// entries are left untouched and the error is returned, so the calling
// operation refuses to mix vector spaces. s.mu is held for the whole batch
// so concurrent callers wait for a single pass.
func (s *SemanticCache) reconcile(ctx context.Context, e embedding.Embedder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) == 0 {
		s.stale = false
		s.storedID = s.cfg.EmbedderID
		return nil
	}
	if d := e.Dimensions(); !s.stale && d > 0 && d != len(s.entries[0].Embedding) {
		s.stale = true
		s.logger.Warn("stored fact dimensions differ from embedder; re-embedding",
			"stored", len(s.entries[0].Embedding),
			"embedder", d,
		)
	}
	if !s.stale {
		return nil
	}

	texts := make([]string, len(s.entries))
	for i := range s.entries {
		texts[i] = s.entries[i].Fact
	}
	vecs, err := e.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: re-embed stored facts: %w", ErrEmbedderMismatch, err)
	}
	if len(vecs) != len(texts) {
		return fmt.Errorf("%w: re-embed stored facts: %w: got %d, want %d",
			ErrEmbedderMismatch, embedding.ErrBatchMismatch, len(vecs), len(texts))
	}

	dims := e.Dimensions()
	if dims <= 0 {
		dims = len(vecs[0])
	}
	kept := make([]MemoryEntry, 0, len(s.entries))
	for i, entry := range s.entries {
		if len(vecs[i]) != dims || isZero(vecs[i]) {
			continue
		}
		entry.Embedding = append([]float32(nil), vecs[i]...)
		kept = append(kept, entry)
	}
	dropped := len(s.entries) - len(kept)

	s.entries = kept
	s.stale = false
	s.storedID = s.cfg.EmbedderID
	s.metrics.setFacts(len(kept))
	s.persistLocked(ctx)
	s.logger.Info("memory store re-embedded",
		"embedder", s.storedID,
		"entries", len(kept),
		"dropped", dropped,
	)
	return nil
}

// AddFacts embeds and stores facts, skipping near-duplicates. It returns
// the number of facts actually inserted.
func (s *SemanticCache) AddFacts(ctx context.Context, facts []string, source string) int {
	return s.AddDomainFacts(ctx, "", facts, source)
}

// AddDomainFacts is AddFacts with a domain label attached to every
// inserted entry.
func (s *SemanticCache) AddDomainFacts(ctx context.Context, domain string, facts []string, source string) int {
	ctx, span := tracer.Start(ctx, "memory.AddFacts")
	defer span.End()

	added, err := s.addFacts(ctx, domain, facts, source)
	span.SetAttributes(
		attribute.Int("memory.facts.requested", len(facts)),
		attribute.Int("memory.facts.added", added),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return degrade(s.logger, "add facts", err, 0)
	}
	return added
}

func (s *SemanticCache) addFacts(ctx context.Context, domain string, facts []string, source string) (int, error) {
	cleaned := make([]string, 0, len(facts))
	for _, f := range facts {
		if f = strings.TrimSpace(f); f != "" {
			cleaned = append(cleaned, f)
		}
	}
	if len(cleaned) == 0 {
		return 0, nil
	}

	e := s.embedder.Acquire(ctx)
	if e == nil {
		return 0, ErrEmbedderUnavailable
	}
	if err := s.reconcile(ctx, e); err != nil {
		return 0, err
	}

	vecs, err := e.Embed(ctx, cleaned)
	if err != nil {
		return 0, fmt.Errorf("memory: embed facts: %w", err)
	}
	if len(vecs) != len(cleaned) {
		return 0, fmt.Errorf("%w: got %d, want %d", embedding.ErrBatchMismatch, len(vecs), len(cleaned))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dims := e.Dimensions()
	if len(s.entries) > 0 {
		dims = len(s.entries[0].Embedding)
	}

	now := s.now().UTC()
	added, duplicates := 0, 0
	for i, fact := range cleaned {
		vec := vecs[i]
		if len(vec) != dims || isZero(vec) {
			s.logger.Warn("skipping fact with unusable embedding", "dimensions", len(vec), "want", dims)
			continue
		}
		if s.isDuplicate(vec) {
			duplicates++
			continue
		}
		s.entries = append(s.entries, MemoryEntry{
			ID:        newEntryID(now),
			Fact:      fact,
			Embedding: append([]float32(nil), vec...),
			Source:    source,
			Domain:    domain,
			CreatedAt: now,
		})
		added++
	}

	evicted := 0
	s.entries, evicted = evict(s.entries, s.cfg.MaxEntries, now, PruneHalfLife)

	s.metrics.recordAdd(added, duplicates, evicted)
	s.metrics.setFacts(len(s.entries))

	if added > 0 {
		s.persistLocked(ctx)
		s.logger.Debug("facts stored",
			"source", source,
			"added", added,
			"duplicates", duplicates,
			"evicted", evicted,
			"total", len(s.entries),
		)
	}
	return added, nil
}

// isDuplicate must be called with s.mu held.
func (s *SemanticCache) isDuplicate(vec []float32) bool {
	for i := range s.entries {
		if CosineSimilarity(vec, s.entries[i].Embedding) > DedupThreshold {
			return true
		}
	}
	return false
}

// Search returns up to TopK stored facts whose similarity to query is at
// least SimilarityThreshold, best first. Returned entries have their access
// bookkeeping updated.
func (s *SemanticCache) Search(ctx context.Context, query string) []SearchResult {
	ctx, span := tracer.Start(ctx, "memory.Search",
		trace.WithAttributes(attribute.Int("memory.query.chars", len(query))))
	defer span.End()

	results, err := s.search(ctx, query)
	span.SetAttributes(attribute.Int("memory.search.results", len(results)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return degrade(s.logger, "search", err, []SearchResult{})
	}
	return results
}

func (s *SemanticCache) search(ctx context.Context, query string) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if s.Count() == 0 {
		return []SearchResult{}, nil
	}

	e := s.embedder.Acquire(ctx)
	if e == nil {
		return nil, ErrEmbedderUnavailable
	}
	if err := s.reconcile(ctx, e); err != nil {
		return nil, err
	}
	vecs, err := e.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("memory: embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: got %d, want 1", embedding.ErrBatchMismatch, len(vecs))
	}
	qvec := vecs[0]

	s.mu.Lock()
	defer s.mu.Unlock()

	type hit struct {
		idx int
		sim float64
	}
	var hits []hit
	for i := range s.entries {
		sim := CosineSimilarity(qvec, s.entries[i].Embedding)
		if sim >= s.cfg.SimilarityThreshold {
			hits = append(hits, hit{idx: i, sim: sim})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].sim > hits[j].sim })
	if len(hits) > s.cfg.TopK {
		hits = hits[:s.cfg.TopK]
	}

	now := s.now().UTC()
	results := make([]SearchResult, len(hits))
	for i, h := range hits {
		entry := &s.entries[h.idx]
		entry.AccessCount++
		accessed := now
		entry.LastAccessed = &accessed
		results[i] = SearchResult{Fact: entry.Fact, Similarity: h.sim, Domain: entry.Domain}
	}

	s.metrics.recordSearch(len(results))
	if len(results) > 0 {
		s.persistLocked(ctx)
	}
	return results, nil
}

// ListFacts renders every entry as "[YYYY-MM-DD] (accessed Nx) fact", in
// stored order.
func (s *SemanticCache) ListFacts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := make([]string, len(s.entries))
	for i := range s.entries {
		lines[i] = s.entries[i].String()
	}
	return lines
}

// Entries returns a copy of the stored entries, in stored order.
func (s *SemanticCache) Entries() []MemoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneEntries(s.entries)
}

// Count returns the number of stored entries.
func (s *SemanticCache) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Clear removes every entry.
func (s *SemanticCache) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil
	s.stale = false
	s.storedID = s.cfg.EmbedderID
	s.metrics.setFacts(0)
	s.persistLocked(ctx)
	s.logger.Info("memory store cleared")
}

// DeleteByIDs removes the entries with the given ids and returns how many
// were removed. Unknown ids are ignored.
func (s *SemanticCache) DeleteByIDs(ctx context.Context, ids []string) int {
	if len(ids) == 0 {
		return 0
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0:0]
	for _, e := range s.entries {
		if _, ok := drop[e.ID]; !ok {
			kept = append(kept, e)
		}
	}
	deleted := len(s.entries) - len(kept)
	if deleted == 0 {
		return 0
	}

	s.entries = kept
	s.metrics.setFacts(len(kept))
	s.persistLocked(ctx)
	return deleted
}

// persistLocked writes the collection through the persister. A failure is
// logged; the in-memory state stays authoritative. Must be called with
// s.mu held.
func (s *SemanticCache) persistLocked(ctx context.Context) {
	if s.persister == nil {
		return
	}
	// Persist even when the triggering request was canceled, so memory and
	// disk do not diverge.
	ctx = context.WithoutCancel(ctx)
	if err := s.persister.Save(ctx, s.entries); err != nil {
		s.logger.Error("persist memory store", "error", err)
		return
	}
	if s.stale || s.storedID == "" || s.storedID == s.savedID {
		return
	}
	ids, ok := s.persister.(IdentityStore)
	if !ok {
		return
	}
	if err := ids.SaveEmbedderID(ctx, s.storedID); err != nil {
		s.logger.Error("persist embedder identity", "error", err)
		return
	}
	s.savedID = s.storedID
}
