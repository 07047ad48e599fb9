// Package server provides the HTTP server and routing for the analyzer bridge.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/lakjdfalken/trading-analyzer-sub001/internal/di"
	accountshandlers "github.com/lakjdfalken/trading-analyzer-sub001/internal/modules/accounts/handlers"
	analyticshandlers "github.com/lakjdfalken/trading-analyzer-sub001/internal/modules/analytics/handlers"
	currencyhandlers "github.com/lakjdfalken/trading-analyzer-sub001/internal/modules/currency/handlers"
	settingshandlers "github.com/lakjdfalken/trading-analyzer-sub001/internal/modules/settings/handlers"
)

const requestTimeout = 60 * time.Second

// Config holds server configuration
type Config struct {
	Port      int
	DevMode   bool
	Container *di.Container
	Log       zerolog.Logger
}

// Server is the HTTP bridge between the dashboard and the analytics store
type Server struct {
	router    *chi.Mux
	server    *http.Server
	container *di.Container
	log       zerolog.Logger
	port      int
	devMode   bool
	startedAt time.Time
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		container: cfg.Container,
		log:       cfg.Log.With().Str("component", "server").Logger(),
		port:      cfg.Port,
		devMode:   cfg.DevMode,
		startedAt: time.Now(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	// No WriteTimeout: event streams and ?wait=true requests are long-lived
	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Event streams are long-lived and stay outside the request timeout
		bus := s.container.EventBus
		r.Get("/events/stream", NewEventsStreamHandler(bus, s.log).ServeHTTP)
		r.Get("/events/ws", NewWebSocketHandler(bus, s.devMode, s.log).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))
			if !s.devMode {
				r.Use(middleware.Compress(5))
			}

			analyticsHandler := analyticshandlers.NewHandler(s.container.Store, s.container.CurrencyEngine, s.log)
			analyticsHandler.RegisterRoutes(r)

			currencyHandler := currencyhandlers.NewHandler(s.container.CurrencyEngine, s.container.RateService, s.log)
			currencyHandler.RegisterRoutes(r)

			settingsHandler := settingshandlers.NewHandler(s.container.PreferencesService, s.log)
			settingsHandler.RegisterRoutes(r)

			accountsHandler := accountshandlers.NewHandler(s.container.AnalyticsClient, s.container.AccountDirectory, s.log)
			accountsHandler.RegisterRoutes(r)
		})
	})
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
