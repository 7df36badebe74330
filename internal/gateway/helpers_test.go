package gateway

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/phillt/bernard-sub001/internal/memory"
)

// fakeStore is an in-memory Store for handler tests.
type fakeStore struct {
	mu      sync.Mutex
	entries []memory.MemoryEntry
	results []memory.SearchResult
	queries []string
	sources []string
}

func newFakeStore(facts ...string) *fakeStore {
	s := &fakeStore{}
	for i, f := range facts {
		s.entries = append(s.entries, memory.MemoryEntry{
			ID:        "id-" + string(rune('a'+i)),
			Fact:      f,
			Embedding: []float32{1, 0},
			Source:    memory.SourceManual,
			CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		})
	}
	return s
}

func (s *fakeStore) Entries() []memory.MemoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]memory.MemoryEntry(nil), s.entries...)
}

func (s *fakeStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *fakeStore) Search(_ context.Context, query string) []memory.SearchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	return s.results
}

func (s *fakeStore) AddDomainFacts(_ context.Context, domain string, facts []string, source string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources = append(s.sources, source)
	for _, f := range facts {
		s.entries = append(s.entries, memory.MemoryEntry{ID: "new-" + f, Fact: f, Domain: domain, Source: source})
	}
	return len(facts)
}

func (s *fakeStore) DeleteByIDs(_ context.Context, ids []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	kept := s.entries[:0]
	for _, e := range s.entries {
		drop := false
		for _, id := range ids {
			if e.ID == id {
				drop = true
			}
		}
		if drop {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return deleted
}

func (s *fakeStore) Clear(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

const testToken = "secret-token"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestGateway(store Store, opts ...Option) *Gateway {
	opts = append([]Option{WithLogger(discardLogger())}, opts...)
	return New(Config{Auth: AuthConfig{BearerToken: testToken}}, store, opts...)
}

// do sends an authenticated request to h.
func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}
