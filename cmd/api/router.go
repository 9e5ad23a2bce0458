package main

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nvelichkov/bookshelf/internal/config"
	"github.com/nvelichkov/bookshelf/internal/handlers"
	"github.com/nvelichkov/bookshelf/internal/middleware"
	"github.com/nvelichkov/bookshelf/internal/models"
	"github.com/nvelichkov/bookshelf/internal/repo"
)

// newRouter builds the full HTTP surface: auth routes (rate limited), book
// routes behind the Authenticate/RequireRole chain, and the health, ready and
// metrics endpoints.
func newRouter(database *sql.DB, cfg config.Config) http.Handler {
	userRepo := repo.NewUserRepo(database)
	bookRepo := repo.NewBookRepo(database)

	ttl := time.Duration(cfg.JWTExpireHours) * time.Hour
	if ttl <= 0 {
		ttl = time.Hour
	}

	authHandler := &handlers.AuthHandler{
		Users:    userRepo,
		Secret:   []byte(cfg.JWTSecret),
		TokenTTL: ttl,
	}
	bookHandler := &handlers.BookHandler{Books: bookRepo}

	authenticate := middleware.Authenticate([]byte(cfg.JWTSecret))
	authLimiter := middleware.AuthRateLimiter()

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLog)
	r.Use(middleware.Prometheus)
	r.Use(middleware.SecurityHeaders(cfg.TLSCertFile != "" && cfg.TLSKeyFile != ""))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(middleware.MaxBytes(middleware.DefaultMaxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := database.Ping(); err != nil {
			handlers.JSONError(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/signup", authHandler.Signup)
			r.Post("/login", authHandler.Login)
		})
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Get("/profile", authHandler.Profile)
		})
	})

	r.Route("/books", func(r chi.Router) {
		r.Use(authenticate)

		r.With(middleware.RequireRole(models.RoleAdmin)).
			Get("/all", bookHandler.ListAll)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(models.RoleUser))
			r.Get("/", bookHandler.ListMine)
			r.Post("/", bookHandler.Create)
			r.Post("/favorite", bookHandler.Favorite)
			r.Get("/recommendations", bookHandler.Recommend)
			r.Put("/{id}", bookHandler.Update)
		})

		r.With(middleware.RequireRole(models.RoleAdmin, models.RoleUser)).
			Delete("/{id}", bookHandler.Delete)
	})

	return r
}
