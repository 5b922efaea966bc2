// Package server exposes lessons over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"

	v1 "github.com/abhisek/parla/internal/api/v1"
	"github.com/abhisek/parla/internal/api/ws"
	"github.com/abhisek/parla/internal/config"
	"github.com/abhisek/parla/internal/metrics"
	"github.com/abhisek/parla/internal/server/middleware"
)

// Version is reported in the OpenAPI document.
var Version = "dev"

// Deps are the services the routes call into.
type Deps struct {
	Lessons  v1.LessonService
	Mistakes v1.MistakeReader
	Metrics  *metrics.Metrics // nil disables /metrics
	Logger   *zap.Logger
}

// Server is the HTTP server that wires all routes and middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	logger     *zap.Logger
}

// New creates a Server with all routes wired. ctx bounds background work
// such as rate-limiter cleanup.
func New(ctx context.Context, cfg config.ServerConfig, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := chi.NewRouter()

	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(middleware.RequestLogger(logger))
	router.Use(chimw.Recoverer)
	router.Use(deps.Metrics.Middleware)
	router.Use(cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}).Handler)

	s := &Server{
		router: router,
		logger: logger,
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst))

		apiConfig := huma.DefaultConfig("Parla API", Version)
		apiConfig.Servers = []*huma.Server{
			{URL: "/api/v1"},
		}
		api := humachi.New(r, apiConfig)
		v1.RegisterLessonRoutes(api, deps.Lessons)
		v1.RegisterMistakeRoutes(api, deps.Mistakes, deps.Lessons)
	})

	hub := ws.NewHub(deps.Lessons, originPatterns(cfg.AllowedOrigins), logger)
	router.Route("/ws", func(r chi.Router) {
		r.Get("/lessons/{id}", hub.ServeLesson)
	})

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if deps.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	return s
}

// originPatterns converts CORS origins ("https://host") into the host
// patterns websocket.Accept matches against.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
			continue
		}
		out = append(out, o)
	}
	return out
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening for HTTP requests and blocks until the server
// stops.
func (s *Server) Start(_ context.Context) error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
