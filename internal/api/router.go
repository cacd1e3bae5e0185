package api

import (
	"log"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates the chi router with all routes and middleware.
func NewRouter(h *Handler, apiKey string, logger *log.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(corsOptions))
	r.Use(middleware.RequestID)
	r.Use(exposeRequestID)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: logger, NoColor: true}))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(apiKey))

		r.Route("/api", func(r chi.Router) {
			r.Post("/generate-plan", h.GeneratePlan)
			r.Get("/stats", h.Stats)
			r.Get("/session", h.Session)
		})
	})

	return r
}
