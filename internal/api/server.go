// Package api exposes the application over HTTP: account management,
// tasks, settings, per-task focus timers, and the Stripe billing surface.
package api

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/luminapp/lumin/internal/auth"
	"github.com/luminapp/lumin/internal/billing"
	"github.com/luminapp/lumin/internal/storage"
	"github.com/luminapp/lumin/internal/tasks"
	"github.com/luminapp/lumin/internal/timer"
	"github.com/rs/zerolog"
)

// Config holds the API server configuration.
type Config struct {
	ListenAddr      string
	RateLimit       int
	RateLimitWindow time.Duration

	// TLSConfig enables HTTPS when set.
	TLSConfig *tls.Config

	// Listener overrides ListenAddr when set, for socket activation.
	Listener net.Listener
}

// Server is the main application HTTP server.
type Server struct {
	config       Config
	store        storage.Store
	auth         *auth.Service
	tasks        *tasks.Service
	timers       *timer.Manager
	processor    *billing.Processor
	checkout     *billing.Checkout
	entitlements *billing.EntitlementCache
	rateLimiter  *RateLimiter
	server       *http.Server
	router       *mux.Router
	logger       zerolog.Logger
}

// NewServer wires the application services into an HTTP server.
func NewServer(
	cfg Config,
	store storage.Store,
	authService *auth.Service,
	taskService *tasks.Service,
	timers *timer.Manager,
	processor *billing.Processor,
	checkout *billing.Checkout,
	entitlements *billing.EntitlementCache,
	logger zerolog.Logger,
) *Server {
	rateLimit := cfg.RateLimit
	if rateLimit == 0 {
		rateLimit = 20
	}
	rateLimitWindow := cfg.RateLimitWindow
	if rateLimitWindow == 0 {
		rateLimitWindow = time.Minute
	}

	s := &Server{
		config:       cfg,
		store:        store,
		auth:         authService,
		tasks:        taskService,
		timers:       timers,
		processor:    processor,
		checkout:     checkout,
		entitlements: entitlements,
		rateLimiter:  NewRateLimiter(rateLimit, rateLimitWindow),
		router:       mux.NewRouter(),
		logger:       logger.With().Str("component", "api").Logger(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		TLSConfig:    cfg.TLSConfig,
	}

	return s
}

// Handler returns the configured router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Use(LoggingMiddleware(s.logger))

	// Public routes.
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/api/stripe/webhook", s.handleStripeWebhook).Methods("POST")

	authRoutes := s.router.PathPrefix("/api/auth").Subrouter()
	authRoutes.Use(RateLimitMiddleware(s.rateLimiter))
	authRoutes.HandleFunc("/signup", s.handleSignup).Methods("POST")
	authRoutes.HandleFunc("/login", s.handleLogin).Methods("POST")

	// Authenticated routes.
	apiRoutes := s.router.PathPrefix("/api").Subrouter()
	apiRoutes.Use(AuthMiddleware(s.auth))

	apiRoutes.HandleFunc("/auth/me", s.handleMe).Methods("GET")

	apiRoutes.HandleFunc("/tasks", s.handleListTasks).Methods("GET")
	apiRoutes.HandleFunc("/tasks", s.handleCreateTask).Methods("POST")
	apiRoutes.HandleFunc("/tasks/{id}", s.handleGetTask).Methods("GET")
	apiRoutes.HandleFunc("/tasks/{id}", s.handleUpdateTask).Methods("PUT")
	apiRoutes.HandleFunc("/tasks/{id}", s.handleDeleteTask).Methods("DELETE")
	apiRoutes.HandleFunc("/tasks/{id}/sessions", s.handleTaskSessions).Methods("GET")

	apiRoutes.HandleFunc("/tasks/{id}/timer", s.handleTimerState).Methods("GET")
	apiRoutes.HandleFunc("/tasks/{id}/timer/open", s.handleTimerOpen).Methods("POST")
	apiRoutes.HandleFunc("/tasks/{id}/timer/start", s.handleTimerStart).Methods("POST")
	apiRoutes.HandleFunc("/tasks/{id}/timer/pause", s.handleTimerPause).Methods("POST")
	apiRoutes.HandleFunc("/tasks/{id}/timer/reset", s.handleTimerReset).Methods("POST")
	apiRoutes.HandleFunc("/tasks/{id}/timer", s.handleTimerClose).Methods("DELETE")

	apiRoutes.HandleFunc("/stats", s.handleStats).Methods("GET")
	apiRoutes.HandleFunc("/settings", s.handleGetSettings).Methods("GET")
	apiRoutes.HandleFunc("/settings", s.handleUpdateSettings).Methods("PUT")

	apiRoutes.HandleFunc("/entitlement", s.handleEntitlement).Methods("GET")
	apiRoutes.HandleFunc("/stripe/checkout", s.handleCheckout).Methods("POST")
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	listener := s.config.Listener
	if listener == nil {
		var err error
		listener, err = net.Listen("tcp", s.config.ListenAddr)
		if err != nil {
			return fmt.Errorf("api listen: %w", err)
		}
	}

	scheme := "http"
	if s.config.TLSConfig != nil {
		scheme = "https"
		listener = tls.NewListener(listener, s.config.TLSConfig)
	}

	s.logger.Info().
		Str("addr", listener.Addr().String()).
		Str("scheme", scheme).
		Msg("Starting API server")

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("API server error")
		}
	}()

	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping API server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
	})
}
