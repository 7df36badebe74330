package sqlite_test

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/phillt/bernard-sub001/internal/embedding"
	"github.com/phillt/bernard-sub001/internal/memory"
	"github.com/phillt/bernard-sub001/internal/memory/sqlite"
)

func openTestPersister(t *testing.T) (*sqlite.Persister, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", sqlite.DefaultDBFile)
	p, err := sqlite.Open(context.Background(), sqlite.Config{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p, path
}

func TestPersister_EmptyLoad(t *testing.T) {
	t.Parallel()

	p, _ := openTestPersister(t)
	entries, err := p.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Load() = %d entries, want 0", len(entries))
	}
}

func TestPersister_RoundTrip(t *testing.T) {
	t.Parallel()

	p, _ := openTestPersister(t)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	accessed := created.Add(time.Hour)
	in := []memory.MemoryEntry{
		{ID: "b", Fact: "second", Embedding: []float32{0.5, -0.25}, Source: memory.SourceExit, CreatedAt: created},
		{ID: "a", Fact: "first", Embedding: []float32{1, 0}, Source: memory.SourceManual, Domain: "prefs",
			CreatedAt: created, AccessCount: 3, LastAccessed: &accessed},
	}

	ctx := context.Background()
	if err := p.Save(ctx, in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	out, err := p.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip mismatch:\n in: %+v\nout: %+v", in, out)
	}

	// A second save replaces the collection.
	if err := p.Save(ctx, in[:1]); err != nil {
		t.Fatalf("Save: %v", err)
	}
	out, err = p.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(out) != 1 || out[0].ID != "b" {
		t.Errorf("after resave = %+v", out)
	}
}

func TestPersister_BacksSemanticCache(t *testing.T) {
	t.Parallel()

	p, path := openTestPersister(t)
	src := embedding.Fixed{E: embedding.NewHashEmbedder(16)}
	ctx := context.Background()

	cache := memory.New(ctx, memory.Config{}, src, p)
	if n := cache.AddFacts(ctx, []string{"User prefers tabs", "User lives in Lyon"}, memory.SourceManual); n != 2 {
		t.Fatalf("AddFacts = %d, want 2", n)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := sqlite.Open(ctx, sqlite.Config{Path: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	again := memory.New(ctx, memory.Config{}, src, reopened)
	if again.Count() != 2 {
		t.Errorf("Count() after reopen = %d, want 2", again.Count())
	}
}

func TestOpen_RequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := sqlite.Open(context.Background(), sqlite.Config{}); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestPersister_EmbedderID(t *testing.T) {
	t.Parallel()

	p, _ := openTestPersister(t)
	ctx := context.Background()

	id, err := p.LoadEmbedderID(ctx)
	if err != nil || id != "" {
		t.Fatalf("LoadEmbedderID() on fresh database = %q, %v", id, err)
	}
	for _, want := range []string{"hash:64", "http:text-embedding-3-small:1536"} {
		if err := p.SaveEmbedderID(ctx, want); err != nil {
			t.Fatalf("SaveEmbedderID(%q): %v", want, err)
		}
		if id, err = p.LoadEmbedderID(ctx); err != nil || id != want {
			t.Errorf("LoadEmbedderID() = %q, %v; want %q", id, err, want)
		}
	}
}

func TestPersister_ReopenUnderDifferentEmbedder(t *testing.T) {
	t.Parallel()

	p, path := openTestPersister(t)
	ctx := context.Background()

	narrow := memory.New(ctx, memory.Config{EmbedderID: "hash:384"}, embedding.Fixed{E: embedding.NewHashEmbedder(384)}, p)
	if n := narrow.AddFacts(ctx, []string{"User lives in Lisbon"}, memory.SourceExit); n != 1 {
		t.Fatalf("AddFacts = %d, want 1", n)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := sqlite.Open(ctx, sqlite.Config{Path: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	wide := memory.New(ctx, memory.Config{EmbedderID: "hash:1536"}, embedding.Fixed{E: embedding.NewHashEmbedder(1536)}, reopened)
	if n := wide.AddFacts(ctx, []string{"User prefers dark mode", "User owns a cat named Miso"}, memory.SourceExit); n != 2 {
		t.Fatalf("AddFacts after switch = %d, want 2", n)
	}

	stored, err := reopened.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(stored) != 3 {
		t.Fatalf("stored %d entries, want 3", len(stored))
	}
	for _, e := range stored {
		if len(e.Embedding) != 1536 {
			t.Errorf("%q has %d dimensions, want 1536", e.Fact, len(e.Embedding))
		}
	}
	if id, err := reopened.LoadEmbedderID(ctx); err != nil || id != "hash:1536" {
		t.Errorf("LoadEmbedderID() = %q, %v; want hash:1536", id, err)
	}
}
