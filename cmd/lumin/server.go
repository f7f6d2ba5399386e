package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/luminapp/lumin/internal/acme"
	"github.com/luminapp/lumin/internal/api"
	"github.com/luminapp/lumin/internal/auth"
	"github.com/luminapp/lumin/internal/billing"
	"github.com/luminapp/lumin/internal/config"
	"github.com/luminapp/lumin/internal/metrics"
	"github.com/luminapp/lumin/internal/storage"
	"github.com/luminapp/lumin/internal/storage/bolt"
	"github.com/luminapp/lumin/internal/storage/redis"
	"github.com/luminapp/lumin/internal/systemd"
	"github.com/luminapp/lumin/internal/tasks"
	"github.com/luminapp/lumin/internal/timer"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the Lumin server",
	Long:  `Start the Lumin API server with the focus timer manager, Stripe billing endpoints, and metrics.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting Lumin")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	// Initialize storage
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().
		Str("type", cfg.Storage.Type).
		Msg("Storage initialized")

	// Obtain and load a Let's Encrypt certificate if configured
	var tlsConfig *tls.Config
	if cfg.TLS.Enabled {
		certFile := cfg.TLS.CertFile
		keyFile := cfg.TLS.KeyFile

		if cfg.TLS.UseLetsEncrypt {
			logger.Info().
				Str("domain", cfg.Server.Name).
				Str("dns_provider", cfg.TLS.LegoDNSProvider).
				Msg("Let's Encrypt is enabled, obtaining certificate via ACME DNS-01 challenge")

			acmeClient := acme.NewClient(acme.Config{
				Email:       cfg.TLS.LegoEmail,
				DNSProvider: cfg.TLS.LegoDNSProvider,
				CertPath:    certFile,
				KeyPath:     keyFile,
				CADirURL:    cfg.TLS.LegoCADirURL,
				Domain:      cfg.Server.Name,
			}, logger)

			if err := acmeClient.ObtainCertificate(); err != nil {
				return fmt.Errorf("failed to obtain certificate: %w", err)
			}
		}

		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return fmt.Errorf("failed to load TLS certificate: %w", err)
		}
		tlsConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	// Wire the application services
	authService := auth.NewService(
		store.Users(),
		cfg.Auth.JWTSecret,
		parseDuration(cfg.Auth.TokenExpiration, auth.DefaultTokenExpiration),
		logger,
	)

	taskService := tasks.NewService(store, nil, logger)

	timers := timer.NewManager(taskService, taskService, timer.Config{}, logger)

	processor := billing.NewProcessor(cfg.Stripe.WebhookSecret, store.Entitlements(), logger)
	checkout := billing.NewCheckout(cfg.Stripe, cfg.Server.BaseURL, logger)
	entitlements := billing.NewEntitlementCache(
		store.Entitlements(),
		cfg.Timer.EntitlementCacheSize,
		parseDuration(cfg.Timer.EntitlementCacheTTL, 5*time.Minute),
	)
	processor.OnEntitlementChange(func(ent storage.UserEntitlement) {
		entitlements.Invalidate(ent.UserID)
	})

	// Start the API server
	apiServer := api.NewServer(
		api.Config{
			ListenAddr:      fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.HTTPPort),
			RateLimit:       cfg.Auth.RateLimit,
			RateLimitWindow: parseDuration(cfg.Auth.RateLimitWindow, time.Minute),
			TLSConfig:       tlsConfig,
			Listener:        sdListeners.HTTP,
		},
		store,
		authService,
		taskService,
		timers,
		processor,
		checkout,
		entitlements,
		logger,
	)
	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	// Start the metrics server
	metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort)
	metricsServer := metrics.NewServer(metricsAddr, logger)
	if sdListeners.Metrics != nil {
		metricsServer.SetListener(sdListeners.Metrics)
	}
	if err := metricsServer.Start(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	// Sweep out old focus session records once a day
	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	defer cancelSweep()
	go runSessionRetention(sweepCtx, store.FocusSessions(), cfg.Logging.SessionRetentionDays, logger)

	if sdListeners.Activated {
		if err := systemd.NotifyReady(); err != nil {
			logger.Warn().Err(err).Msg("Failed to notify systemd")
		}
	}

	logger.Info().Msg("Lumin startup complete")
	logger.Info().Msgf("API: %s:%d", cfg.Server.BindAddress, cfg.Server.HTTPPort)
	logger.Info().Msgf("Metrics: http://%s/metrics", metricsAddr)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan

	logger.Info().Msg("Shutdown signal received, gracefully stopping...")

	if sdListeners.Activated {
		if err := systemd.NotifyStopping(); err != nil {
			logger.Warn().Err(err).Msg("Failed to notify systemd")
		}
	}

	cancelSweep()

	if err := apiServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping API server")
	}
	if err := metricsServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping metrics server")
	}

	// Halts all timer drivers; unfinished countdowns simply don't report.
	timers.Shutdown()

	logger.Info().Msg("Lumin stopped")

	return nil
}

// openStorage creates the configured storage backend.
func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "bolt":
		return bolt.Open(cfg.Path)
	case "redis":
		return redis.Open(cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// runSessionRetention deletes focus session records older than the
// configured retention window, once per day.
func runSessionRetention(ctx context.Context, sessions storage.FocusSessionStore, retentionDays int, logger zerolog.Logger) {
	if retentionDays <= 0 {
		return
	}

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	sweep := func() {
		cutoff := time.Now().AddDate(0, 0, -retentionDays)
		deleted, err := sessions.DeleteBefore(ctx, cutoff)
		if err != nil {
			logger.Error().Err(err).Msg("Session retention sweep failed")
			return
		}
		if deleted > 0 {
			logger.Info().Int("deleted", deleted).Time("cutoff", cutoff).Msg("Purged old focus sessions")
		}
	}

	sweep()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// parseDuration parses a duration string with a fallback
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
