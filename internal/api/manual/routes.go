package manual

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers manual library routes
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/upload", h.Upload)
	r.Get("/brands", h.Brands)
	r.Get("/models", h.Models)

	r.Route("/files", func(r chi.Router) {
		r.Get("/", h.List)

		r.Route("/{file_id}", func(r chi.Router) {
			r.Delete("/", h.Delete)
			r.Get("/download", h.Download)
		})
	})

	r.Route("/database", func(r chi.Router) {
		r.Get("/stats", h.Stats)
		r.Get("/verify", h.Verify)
		r.Post("/clear", h.Clear)
		r.Post("/rebuild", h.Rebuild)
	})

	r.Post("/debug/search", h.DebugSearch)
}
