package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	chatapi "github.com/futig/manual-assistant/internal/api/chat"
	"github.com/futig/manual-assistant/internal/api/docs"
	manualapi "github.com/futig/manual-assistant/internal/api/manual"
	"github.com/futig/manual-assistant/internal/api/middleware"
	"github.com/futig/manual-assistant/internal/entity"
	"github.com/futig/manual-assistant/internal/pkg/response"
)

// requestTimeout bounds a request, including manual ingestion.
const requestTimeout = 5 * time.Minute

// HealthChecker reports knowledge base readiness for /health.
type HealthChecker interface {
	Stats() entity.DatabaseStats
}

type healthResponse struct {
	Status       string `json:"status"`
	TotalManuals int    `json:"total_manuals"`
	TotalChunks  int    `json:"total_documents"`
	NeedsRebuild bool   `json:"needs_rebuild"`
}

// SetupRouter creates and configures the HTTP router
func SetupRouter(
	manualHandler *manualapi.Handler,
	chatHandler *chatapi.Handler,
	health HealthChecker,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS)
	r.Use(chimiddleware.Timeout(requestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		stats := health.Stats()
		response.JSON(w, http.StatusOK, &healthResponse{
			Status:       "healthy",
			TotalManuals: stats.TotalManuals,
			TotalChunks:  stats.TotalChunks,
			NeedsRebuild: stats.NeedsRebuild,
		})
	})

	// Swagger documentation endpoints
	docs.RegisterRoutes(r)

	r.Route("/api", func(r chi.Router) {
		manualapi.RegisterRoutes(r, manualHandler)
		chatapi.RegisterRoutes(r, chatHandler)
	})

	return r
}
