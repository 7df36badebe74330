// Package gateway provides the HTTP surface of the memory layer: health,
// Prometheus metrics, an authenticated memory API, and transcript webhooks.
// It binds to loopback by default.
package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/phillt/bernard-sub001/internal/memory"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// factJSON is a stored fact without its embedding.
type factJSON struct {
	ID           string     `json:"id"`
	Fact         string     `json:"fact"`
	Source       string     `json:"source"`
	Domain       string     `json:"domain,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	AccessCount  int        `json:"accessCount"`
	LastAccessed *time.Time `json:"lastAccessed,omitempty"`
}

// handleListFacts returns every stored fact in stored order.
func (g *Gateway) handleListFacts() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		entries := g.store.Entries()
		facts := make([]factJSON, 0, len(entries))
		for _, e := range entries {
			facts = append(facts, factJSON{
				ID:           e.ID,
				Fact:         e.Fact,
				Source:       e.Source,
				Domain:       e.Domain,
				CreatedAt:    e.CreatedAt,
				AccessCount:  e.AccessCount,
				LastAccessed: e.LastAccessed,
			})
		}
		writeJSON(w, http.StatusOK, facts)
	}
}

type addFactsRequest struct {
	Facts  []string `json:"facts"`
	Domain string   `json:"domain,omitempty"`
	Source string   `json:"source,omitempty"`
}

// handleAddFacts stores facts. Duplicates and blanks are skipped by the
// store; the response reports how many were added.
func (g *Gateway) handleAddFacts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addFactsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if len(req.Facts) == 0 {
			http.Error(w, "facts must not be empty", http.StatusBadRequest)
			return
		}
		if req.Source == "" {
			req.Source = memory.SourceManual
		}

		added := g.store.AddDomainFacts(r.Context(), req.Domain, req.Facts, req.Source)
		writeJSON(w, http.StatusOK, map[string]int{"added": added})
	}
}

// handleDeleteFact deletes one fact by id.
func (g *Gateway) handleDeleteFact() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			http.Error(w, "missing fact id", http.StatusBadRequest)
			return
		}
		if g.store.DeleteByIDs(r.Context(), []string{id}) == 0 {
			http.Error(w, "fact not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleClearFacts removes every fact.
func (g *Gateway) handleClearFacts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		removed := g.store.Count()
		g.store.Clear(r.Context())
		g.logger.Info("memory cleared via gateway", "removed", removed)
		writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
	}
}

func (g *Gateway) handleCount() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]int{"count": g.store.Count()})
	}
}

type searchRequest struct {
	Query string `json:"query"`
}

// handleSearch runs a semantic search. Degraded searches return [].
func (g *Gateway) handleSearch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		if err := decodeJSON(w, r, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Query) == "" {
			http.Error(w, "query must not be empty", http.StatusBadRequest)
			return
		}

		results := g.store.Search(r.Context(), req.Query)
		if results == nil {
			results = []memory.SearchResult{}
		}
		writeJSON(w, http.StatusOK, results)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
