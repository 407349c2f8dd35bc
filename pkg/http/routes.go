package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SetupRoutes mounts the full API. deleteAuth guards DELETE; when it is nil
// the delete route is not mounted. metricsHandler may be nil.
func SetupRoutes(r chi.Router, handler *Handler, deleteAuth func(http.Handler) http.Handler, metricsHandler http.Handler) {
	r.Get("/health", handler.HealthCheck)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Post("/shorten", handler.CreateLink)
	r.Get("/stats/{slug}", handler.Stats)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/links", handler.CreateLink)
		r.Get("/links/{slug}", handler.GetLink)
		r.Get("/links/{slug}/stats", handler.Stats)
		if deleteAuth != nil {
			r.With(deleteAuth).Delete("/links/{slug}", handler.DeleteLink)
		}
	})

	r.Get("/{slug}", handler.Redirect)
}

// SetupRedirectRoutes mounts only what the redirect tier serves.
func SetupRedirectRoutes(r chi.Router, handler *Handler, metricsHandler http.Handler) {
	r.Get("/health", handler.HealthCheck)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}
	r.Get("/{slug}", handler.Redirect)
}
