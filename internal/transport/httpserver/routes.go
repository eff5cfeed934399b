package httpserver

import (
	"net/http"

	"family-tree-go/internal/config"
	"family-tree-go/internal/transport/httpserver/handler"
	"family-tree-go/internal/transport/httpserver/middleware"
	"family-tree-go/pkg/logger"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(cfg config.Config, handlers *handler.Handlers, log logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(chimw.Timeout(cfg.HTTP.RequestTimeout))
	r.Use(middleware.NewCORS(cfg.CORS.AllowedOrigins))

	if cfg.HTTP.MetricsEnabled {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.Health)

		auth := middleware.NewAuth(cfg.Auth, log)
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)

			r.Get("/profiles/me", handlers.GetMyProfile)
			r.Post("/profiles", handlers.CreateProfile)
			r.Get("/profiles/search", handlers.SearchProfiles)
			r.Get("/profiles/suggestions/parents", handlers.SuggestParents)
			r.Get("/profiles/{id}", handlers.GetProfile)
			r.Patch("/profiles/{id}", handlers.UpdateProfile)
			r.Get("/profiles/{id}/suggestions/spouses", handlers.SuggestSpouses)

			r.Put("/profiles/{id}/parents/{role}", handlers.SetParent)
			r.Delete("/profiles/{id}/parents/{role}", handlers.RemoveParent)
			r.Put("/profiles/{id}/spouse", handlers.SetSpouse)
			r.Delete("/profiles/{id}/spouse", handlers.ClearSpouse)

			r.Get("/tree/{id}", handlers.GetTree)
			r.Get("/tree/{id}/stats", handlers.GetTreeStats)
		})
	})

	return r
}
