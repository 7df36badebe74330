package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// StoreFileName is the JSON store file inside the memory directory.
const StoreFileName = "memories.json"

// tempSuffix marks in-flight atomic writes. Leftovers are removed by the
// stale sweep.
const tempSuffix = ".tmp"

// Persister loads and saves the whole entry collection.
// Implementations need not be safe for concurrent use; SemanticCache
// serializes every call.
type Persister interface {
	// Load returns the stored entries. A store that does not exist yet
	// yields no entries and no error.
	Load(ctx context.Context) ([]MemoryEntry, error)

	// Save replaces the stored collection with entries. Readers must never
	// observe a partially written collection.
	Save(ctx context.Context, entries []MemoryEntry) error
}

// IdentityStore is implemented by persisters that can record which
// embedder produced the stored vectors. Stores without it are assumed to
// match the configured embedder.
type IdentityStore interface {
	// LoadEmbedderID returns the recorded identity, or "" when none was
	// recorded yet.
	LoadEmbedderID(ctx context.Context) (string, error)

	// SaveEmbedderID records id.
	SaveEmbedderID(ctx context.Context, id string) error
}

// metaSuffix names the sidecar file next to the JSON store that records
// the embedder identity.
const metaSuffix = ".meta"

// FilePersister stores entries as a flat JSON array in one file.
type FilePersister struct {
	path string
}

// Compile-time interface checks.
var (
	_ Persister     = (*FilePersister)(nil)
	_ IdentityStore = (*FilePersister)(nil)
)

type storeMeta struct {
	Embedder string `json:"embedder"`
}

// NewFilePersister returns a persister for the JSON file at path.
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

// Path returns the store file path.
func (p *FilePersister) Path() string {
	return p.path
}

// Load implements Persister. A missing file yields no entries.
func (p *FilePersister) Load(_ context.Context) ([]MemoryEntry, error) {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("memory: read %s: %w", p.path, err)
	}

	var entries []MemoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptStore, p.path, err)
	}
	return entries, nil
}

// Save implements Persister with a temp-file-then-rename write.
func (p *FilePersister) Save(_ context.Context, entries []MemoryEntry) error {
	if entries == nil {
		entries = []MemoryEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("memory: marshal entries: %w", err)
	}
	return writeFileAtomic(p.path, data, 0o600)
}

// LoadEmbedderID implements IdentityStore. A missing sidecar yields "".
func (p *FilePersister) LoadEmbedderID(_ context.Context) (string, error) {
	path := p.path + metaSuffix
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("memory: read %s: %w", path, err)
	}

	var meta storeMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrCorruptStore, path, err)
	}
	return meta.Embedder, nil
}

// SaveEmbedderID implements IdentityStore.
func (p *FilePersister) SaveEmbedderID(_ context.Context, id string) error {
	data, err := json.Marshal(storeMeta{Embedder: id})
	if err != nil {
		return fmt.Errorf("memory: marshal store meta: %w", err)
	}
	return writeFileAtomic(p.path+metaSuffix, data, 0o600)
}

// writeFileAtomic writes data to a temp file in the target directory, then
// renames it over path.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("memory: create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*"+tempSuffix)
	if err != nil {
		return fmt.Errorf("memory: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("memory: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("memory: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("memory: close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		cleanup()
		return fmt.Errorf("memory: chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("memory: rename into place: %w", err)
	}
	return nil
}
