package checkout

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RegisterRoutes registers the checkout routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sales", h.HandleFinalize)
		r.Get("/sales/{id}/sync", h.HandleSyncStatus)
		r.Post("/sync/nudge", h.HandleNudge)
	})
	r.Get("/health", h.HandleHealth)
}

// NewRouter returns a router with the checkout routes and the standard middleware.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	h.RegisterRoutes(r)
	return r
}
