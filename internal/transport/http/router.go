package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	compliancehandler "bonifica/internal/compliance/handler"
	hierarchyhandler "bonifica/internal/hierarchy/handler"
	"bonifica/internal/platform/middleware"
)

// NewRouter wires all endpoints. Health and metrics stay unauthenticated;
// everything under /api/v1 requires a valid bearer token.
func NewRouter(
	hierarchy *hierarchyhandler.Handler,
	compliance *compliancehandler.Handler,
	validator middleware.ActorValidator,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.RequireAuth(validator, logger))
		hierarchy.Register(api)
		compliance.Register(api)
	})

	return r
}
