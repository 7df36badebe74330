package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(g.metrics.middleware)

	// Public, no auth required.
	r.Get("/health", g.handleHealth())
	if g.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(g.gatherer, promhttp.HandlerOpts{}))
	}

	// Webhooks carry their own HMAC auth per source.
	r.Post("/webhooks/{source}", g.dispatcher.ServeHTTP)

	// Memory API requires auth and is not mounted without it.
	if g.config.Auth.IsConfigured() {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(g.config.Auth, g.logger))
			r.Get("/status", g.handleStatus())
			r.Route("/api/memory", func(r chi.Router) {
				r.Get("/facts", g.handleListFacts())
				r.Post("/facts", g.handleAddFacts())
				r.Delete("/facts", g.handleClearFacts())
				r.Delete("/facts/{id}", g.handleDeleteFact())
				r.Get("/count", g.handleCount())
				r.Post("/search", g.handleSearch())
			})
		})
	} else {
		g.logger.Warn("gateway auth not configured, memory API disabled")
	}

	return r
}
