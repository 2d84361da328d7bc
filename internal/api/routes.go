package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the chi router with the full middleware chain.
func NewRouter(deps Deps) *chi.Mux {
	if deps.StartTime.IsZero() {
		deps.StartTime = time.Now()
	}
	h := &handlers{deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(withMetrics)
	r.Use(recoverer)
	r.Use(withCORS(deps.AllowedOrigins))
	r.Use(withGzip)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpError(w, http.StatusNotFound, "API route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.health)
		r.Post("/generate", h.generate)
		r.Post("/extract-thumbnail", h.extractThumbnail)
		r.Post("/feedback", h.recordFeedback)
		r.Get("/thumbnails/{name}", h.serveThumbnail)
	})

	return r
}

type handlers struct {
	deps Deps
}
