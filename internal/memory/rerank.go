package memory

import (
	"sort"
	"sync"
)

// DefaultStickinessBoost is added to the similarity of a fact that was also
// recalled on the previous turn.
const DefaultStickinessBoost = 0.05

// StickinessOptions tunes ApplyStickiness.
type StickinessOptions struct {
	// Boost is added to repeated facts, capped at 1.0. Zero uses
	// DefaultStickinessBoost.
	Boost float64

	// TopKPerDomain caps results per domain label when positive. Results
	// without a domain share one bucket.
	TopKPerDomain int

	// MaxResults caps the total when positive.
	MaxResults int
}

// ApplyStickiness boosts results whose fact was recalled on the previous
// turn, re-sorts, then applies the per-domain and overall caps. With an
// empty previous set it returns results unchanged.
func ApplyStickiness(results []SearchResult, previous map[string]struct{}, opts StickinessOptions) []SearchResult {
	if len(previous) == 0 {
		return results
	}
	if opts.Boost <= 0 {
		opts.Boost = DefaultStickinessBoost
	}

	out := make([]SearchResult, len(results))
	copy(out, results)
	for i := range out {
		if _, ok := previous[out[i].Fact]; ok {
			out[i].Similarity = min(1.0, out[i].Similarity+opts.Boost)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})

	if opts.TopKPerDomain > 0 {
		perDomain := make(map[string]int)
		capped := out[:0]
		for _, r := range out {
			if perDomain[r.Domain] >= opts.TopKPerDomain {
				continue
			}
			perDomain[r.Domain]++
			capped = append(capped, r)
		}
		out = capped
	}

	if opts.MaxResults > 0 && len(out) > opts.MaxResults {
		out = out[:opts.MaxResults]
	}
	return out
}

// RecallTracker remembers the facts recalled on the previous turn. Each
// turn replaces the set; boosts never accumulate across turns.
type RecallTracker struct {
	mu       sync.Mutex
	previous map[string]struct{}
}

// NewRecallTracker returns a tracker with no history.
func NewRecallTracker() *RecallTracker {
	return &RecallTracker{}
}

// Apply reranks results against the previous turn, then records the
// reranked set as the new previous turn.
func (t *RecallTracker) Apply(results []SearchResult, opts StickinessOptions) []SearchResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := ApplyStickiness(results, t.previous, opts)

	next := make(map[string]struct{}, len(out))
	for _, r := range out {
		next[r.Fact] = struct{}{}
	}
	t.previous = next
	return out
}

// Previous returns a copy of the previous turn's fact set.
func (t *RecallTracker) Previous() map[string]struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]struct{}, len(t.previous))
	for k := range t.previous {
		out[k] = struct{}{}
	}
	return out
}

// Reset forgets the previous turn, e.g. at the start of a new session.
func (t *RecallTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.previous = nil
}
