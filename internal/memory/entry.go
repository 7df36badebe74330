package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Provenance tags for stored facts. They are informational only.
const (
	SourceExit        = "exit"
	SourceCompression = "compression"
	SourceWorker      = "worker"
	SourceManual      = "manual"
)

// MemoryEntry is one stored fact with its embedding and access bookkeeping.
type MemoryEntry struct {
	ID           string     `json:"id"`
	Fact         string     `json:"fact"`
	Embedding    []float32  `json:"embedding"`
	Source       string     `json:"source"`
	Domain       string     `json:"domain,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	AccessCount  int        `json:"accessCount"`
	LastAccessed *time.Time `json:"lastAccessed,omitempty"`
}

// SearchResult is a fact returned by Search. It carries no id, embedding,
// or access metadata.
type SearchResult struct {
	Fact       string  `json:"fact"`
	Similarity float64 `json:"similarity"`
	Domain     string  `json:"domain,omitempty"`
}

// newEntryID returns a creation-time prefix followed by a random suffix.
func newEntryID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%d-%s", now.UnixMilli(), suffix)
}

// clone returns a deep copy of e.
func (e MemoryEntry) clone() MemoryEntry {
	out := e
	out.Embedding = append([]float32(nil), e.Embedding...)
	if e.LastAccessed != nil {
		t := *e.LastAccessed
		out.LastAccessed = &t
	}
	return out
}

// String renders the entry as a listing line:
// "[YYYY-MM-DD] (accessed Nx) fact".
func (e MemoryEntry) String() string {
	return fmt.Sprintf("[%s] (accessed %dx) %s", e.CreatedAt.Format(time.DateOnly), e.AccessCount, e.Fact)
}

func cloneEntries(entries []MemoryEntry) []MemoryEntry {
	out := make([]MemoryEntry, len(entries))
	for i := range entries {
		out[i] = entries[i].clone()
	}
	return out
}
