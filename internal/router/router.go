package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/wayfarer-labs/wayfarer-api/app/logger"
	appMiddleware "github.com/wayfarer-labs/wayfarer-api/app/middleware"
	"github.com/wayfarer-labs/wayfarer-api/internal/api/auth"
	"github.com/wayfarer-labs/wayfarer-api/internal/api/planner"
	"github.com/wayfarer-labs/wayfarer-api/internal/api/plans"
)

// Config carries the handlers the router mounts.
type Config struct {
	Logger         *slog.Logger
	AuthHandler    auth.Handler
	PlansHandler   plans.Handler
	PlannerHandler planner.Handler
	AllowedOrigins []string
}

// SetupRouter builds the full route table. Everything under /api/v1
// except registration, login, refresh and the public plan surfaces
// requires a bearer token.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.StructuredLogger(cfg.Logger))
	r.Use(middleware.Recoverer)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Public surface.
		r.Group(func(r chi.Router) {
			r.Post("/auth/register", cfg.AuthHandler.Register)
			r.Post("/auth/login", cfg.AuthHandler.Login)
			r.Post("/auth/refresh", cfg.AuthHandler.Refresh)

			r.Get("/plans/public", cfg.PlansHandler.ListPublicPlans)
			r.Get("/plans/shared/{shareCode}", cfg.PlansHandler.GetSharedPlan)
		})

		// Authenticated surface.
		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.Authenticate)

			r.Post("/auth/logout", cfg.AuthHandler.Logout)
			r.Get("/users/me", cfg.AuthHandler.GetProfile)
			r.Put("/users/me", cfg.AuthHandler.UpdateProfile)

			r.Post("/plans/generate", cfg.PlannerHandler.GeneratePlan)
			r.Post("/chat/stream", cfg.PlannerHandler.ChatStream)

			r.Get("/quota", cfg.PlansHandler.GetQuota)

			r.Route("/plans", func(r chi.Router) {
				r.Post("/", cfg.PlansHandler.SavePlan)
				r.Get("/", cfg.PlansHandler.ListMyPlans)
				r.Get("/favorites", cfg.PlansHandler.ListFavorites)

				r.Route("/{planID}", func(r chi.Router) {
					r.Get("/", cfg.PlansHandler.GetPlan)
					r.Put("/", cfg.PlansHandler.UpdatePlan)
					r.Delete("/", cfg.PlansHandler.DeletePlan)

					r.Post("/favorite", cfg.PlansHandler.Favorite)
					r.Delete("/favorite", cfg.PlansHandler.Unfavorite)
					r.Post("/like", cfg.PlansHandler.Like)
					r.Delete("/like", cfg.PlansHandler.Unlike)
				})
			})
		})
	})

	return r
}
