// Package sqlite persists the semantic memory store in a SQLite database
// using modernc.org/sqlite (pure Go, no CGO) in WAL mode. It is an
// alternative to the JSON file backend for larger stores.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/phillt/bernard-sub001/internal/memory"

	_ "modernc.org/sqlite" // SQLite driver registration
)

// Compile-time interface guards.
var (
	_ memory.Persister     = (*Persister)(nil)
	_ memory.IdentityStore = (*Persister)(nil)
)

const metaKeyEmbedder = "embedder"

// Persister implements memory.Persister backed by one SQLite table.
type Persister struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at cfg.Path and migrates the
// schema. The caller must Close the persister.
func Open(ctx context.Context, cfg Config) (*Persister, error) {
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", cfg.Path, err)
	}

	// SQLite handles one writer at a time; limit pool to 1 connection
	// so PRAGMAs apply consistently.
	db.SetMaxOpenConns(1)

	if cfg.walEnabled() {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Persister{db: db}, nil
}

// Close closes the database.
func (p *Persister) Close() error {
	return p.db.Close()
}

// Load implements memory.Persister. Entries come back in stored order.
func (p *Persister) Load(ctx context.Context) ([]memory.MemoryEntry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, fact, embedding, source, domain, created_at, access_count, last_accessed
		FROM entries
		ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: load entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []memory.MemoryEntry
	for rows.Next() {
		var (
			e            memory.MemoryEntry
			blob         []byte
			createdAt    string
			lastAccessed sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Fact, &blob, &e.Source, &e.Domain, &createdAt, &e.AccessCount, &lastAccessed); err != nil {
			return nil, fmt.Errorf("sqlite: scan entry: %w", err)
		}

		e.Embedding, err = decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("sqlite: entry %s: %w", e.ID, err)
		}
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: entry %s: parse created_at: %w", e.ID, err)
		}
		if lastAccessed.Valid {
			t, err := time.Parse(time.RFC3339Nano, lastAccessed.String)
			if err != nil {
				return nil, fmt.Errorf("sqlite: entry %s: parse last_accessed: %w", e.ID, err)
			}
			e.LastAccessed = &t
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate entries: %w", err)
	}
	return entries, nil
}

// Save implements memory.Persister. The table is rewritten inside one
// transaction, so readers see either the old or the new collection.
func (p *Persister) Save(ctx context.Context, entries []memory.MemoryEntry) (err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM entries"); err != nil {
		return fmt.Errorf("sqlite: clear entries: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (position, id, fact, embedding, source, domain, created_at, access_count, last_accessed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, e := range entries {
		var lastAccessed any
		if e.LastAccessed != nil {
			lastAccessed = e.LastAccessed.UTC().Format(time.RFC3339Nano)
		}
		if _, err = stmt.ExecContext(ctx,
			i, e.ID, e.Fact, encodeVector(e.Embedding), e.Source, e.Domain,
			e.CreatedAt.UTC().Format(time.RFC3339Nano), e.AccessCount, lastAccessed,
		); err != nil {
			return fmt.Errorf("sqlite: insert entry %s: %w", e.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// LoadEmbedderID implements memory.IdentityStore.
func (p *Persister) LoadEmbedderID(ctx context.Context) (string, error) {
	var id string
	err := p.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", metaKeyEmbedder).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("sqlite: load embedder id: %w", err)
	}
	return id, nil
}

// SaveEmbedderID implements memory.IdentityStore.
func (p *Persister) SaveEmbedderID(ctx context.Context, id string) error {
	if _, err := p.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)", metaKeyEmbedder, id,
	); err != nil {
		return fmt.Errorf("sqlite: save embedder id: %w", err)
	}
	return nil
}

// encodeVector packs v as little-endian float32 values.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding blob has length %d, not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
