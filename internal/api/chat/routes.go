package chat

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers conversation routes
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/chat", h.Chat)
	r.Post("/summarize", h.Summarize)
	r.Post("/clear-memory", h.ClearMemory)

	r.Route("/sessions/{session_id}", func(r chi.Router) {
		r.Get("/history", h.History)
		r.Get("/stats", h.Stats)
		r.Get("/export", h.Export)
	})
}
