package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MaherFSF/Yemenactr-sub008/internal/evidence"
)

// NewRouter creates a chi router with all API routes mounted.
// Read routes are public; writes, persisted decisions, the export and the
// event stream sit behind the Bearer token when authEnabled is set.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *evidence.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()

	// Routing.
	r.Get("/route", h.RouteArtifact)

	// Coverage.
	r.Get("/sources/{id}/coverage", h.SourceCoverage)

	// Pages and feed matrix.
	r.Get("/pages", h.ListPages)
	r.Get("/pages/{key}/sources", h.SourcesForPage)
	r.Get("/matrix/sectors", h.SectorMatrix)
	r.Get("/matrix/pages", h.PageMatrix)
	r.Get("/matrix/stats", h.MatrixStats)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(authEnabled, token))

		r.Post("/route", h.RoutePersist)
		r.Get("/routes/{sourceId}/{artifactId}", h.PersistedRoutes)
		r.Get("/matrix/export", h.ExportMatrix)

		if sseHandler != nil {
			r.Get("/events", sseHandler.ServeHTTP)
		}
	})

	return r
}
