package gateway

import (
	"net/http"
	"time"

	"github.com/phillt/bernard-sub001/internal/memory"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	UptimeSeconds int64 `json:"uptime_seconds"`
	Facts         int   `json:"facts"`
	Pending       int   `json:"pending"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			UptimeSeconds: int64(time.Since(g.startedAt) / time.Second),
			Facts:         g.store.Count(),
		}
		if g.pendingDir != "" {
			if paths, err := memory.ListPending(g.pendingDir); err == nil {
				resp.Pending = len(paths)
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
