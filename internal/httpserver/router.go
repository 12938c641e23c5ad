// Package httpserver assembles the HTTP routes and middleware stack.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tasktrack/tasktrack-go/internal/crypto"
	"github.com/tasktrack/tasktrack-go/internal/database"
	"github.com/tasktrack/tasktrack-go/internal/handler"
	"github.com/tasktrack/tasktrack-go/internal/middleware"
)

// Deps are the collaborators the router wires together.
type Deps struct {
	Log      *zap.Logger
	DB       *database.DB
	Tokens   *crypto.TokenService
	Auth     *handler.AuthHandler
	Tasks    *handler.TaskHandler
	Limiter  middleware.Limiter
	Metrics  *middleware.Metrics
	Gatherer prometheus.Gatherer
}

// NewRouter returns the API handler.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.Logger(d.Log))
	r.Use(chimw.Recoverer)
	if d.Metrics != nil {
		r.Use(d.Metrics.Handler)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()

		if err := d.DB.Ping(ctx); err != nil {
			d.Log.Warn("readiness check failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("db not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		if d.Limiter != nil {
			r.Use(middleware.RateLimit(d.Limiter, d.Log))
		}

		r.Get("/", handler.HandleRoot)
		r.Post("/register", d.Auth.HandleRegister)
		r.Post("/login", d.Auth.HandleLogin)
		r.Post("/logout", d.Auth.HandleLogout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.CookieAuth(d.Tokens))

			r.Get("/users/me", d.Auth.HandleMe)
			r.Delete("/users/me", d.Auth.HandleDeleteMe)

			r.Route("/tasks", func(r chi.Router) {
				r.Post("/", d.Tasks.HandleCreateTask)
				r.Get("/", d.Tasks.HandleListTasks)
				r.Get("/{id}", d.Tasks.HandleGetTask)
				r.Put("/{id}", d.Tasks.HandleUpdateTask)
				r.Delete("/{id}", d.Tasks.HandleDeleteTask)
			})
		})
	})

	return r
}
