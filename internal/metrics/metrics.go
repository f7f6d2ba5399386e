package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// HTTP metrics
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lumin_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"path", "method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lumin_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	// Task metrics
	TasksCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lumin_tasks_created_total",
			Help: "Total tasks created",
		},
	)

	TasksCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lumin_tasks_completed_total",
			Help: "Total tasks marked completed",
		},
	)

	// Timer metrics
	FocusSessionsCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lumin_focus_sessions_completed_total",
			Help: "Total focus sessions run to completion",
		},
	)

	FocusMinutesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lumin_focus_minutes_total",
			Help: "Total focus minutes accumulated across tasks",
		},
	)

	TimersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lumin_timers_active",
			Help: "Number of open timer panels",
		},
	)

	// Billing metrics
	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lumin_webhook_events_total",
			Help: "Total payment provider webhook events received",
		},
		[]string{"type", "outcome"},
	)

	CheckoutSessionsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lumin_checkout_sessions_created_total",
			Help: "Total checkout sessions created",
		},
	)

	PremiumGrants = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lumin_premium_grants_total",
			Help: "Total premium entitlement grants applied",
		},
	)

	// Auth metrics
	LoginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lumin_login_attempts_total",
			Help: "Total login attempts",
		},
		[]string{"result"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		TasksCreated,
		TasksCompleted,
		FocusSessionsCompleted,
		FocusMinutesTotal,
		TimersActive,
		WebhookEventsTotal,
		CheckoutSessionsCreated,
		PremiumGrants,
		LoginAttempts,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
