package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/salesdrill/internal/identity"
	"github.com/ashureev/salesdrill/internal/middleware"
)

// RouterConfig collects what NewRouter mounts.
type RouterConfig struct {
	Sessions       *Handler
	WebSocket      *WebSocketHandler
	Health         *HealthHandler
	AllowedOrigins []string
	IsDev          bool
	// Metrics, when set, wraps every request and is served at /metrics.
	Metrics interface {
		Middleware(http.Handler) http.Handler
		Handler() http.Handler
	}
}

// NewRouter builds the HTTP router.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(identity.Middleware(cfg.IsDev))

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler())
	}

	if cfg.Health != nil {
		cfg.Health.RegisterHealth(r)
	}
	if cfg.Sessions != nil {
		cfg.Sessions.RegisterRoutes(r)
	}
	if cfg.WebSocket != nil {
		r.Get("/ws/session/{id}", cfg.WebSocket.ServeHTTP)
	}
	return r
}
