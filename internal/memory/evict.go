package memory

import (
	"math"
	"sort"
	"time"
)

// evictionScore rates how much an entry deserves to stay. The recency term
// halves every halfLife since creation; the usage term grows with the log
// of the access count. The two are simply added.
func evictionScore(e MemoryEntry, now time.Time, halfLife time.Duration) float64 {
	age := now.Sub(e.CreatedAt)
	if age < 0 {
		age = 0
	}
	recency := math.Pow(0.5, float64(age)/float64(halfLife))
	return recency + math.Log2(float64(e.AccessCount)+1)
}

// evict keeps the maxEntries highest-scoring entries and returns them in
// score order together with the number discarded. It returns entries
// untouched when there is no overflow.
func evict(entries []MemoryEntry, maxEntries int, now time.Time, halfLife time.Duration) ([]MemoryEntry, int) {
	if maxEntries <= 0 || len(entries) <= maxEntries {
		return entries, 0
	}

	type scored struct {
		entry MemoryEntry
		score float64
	}
	ranked := make([]scored, len(entries))
	for i, e := range entries {
		ranked[i] = scored{entry: e, score: evictionScore(e, now, halfLife)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	kept := make([]MemoryEntry, maxEntries)
	for i := range kept {
		kept[i] = ranked[i].entry
	}
	return kept, len(entries) - maxEntries
}
