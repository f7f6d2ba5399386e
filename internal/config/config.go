package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/luminapp/lumin/internal/storage"
	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Stripe  StripeConfig  `mapstructure:"stripe"`
	Timer   TimerConfig   `mapstructure:"timer"`
	TLS     TLSConfig     `mapstructure:"tls"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig defines listener addresses and the public base URL
type ServerConfig struct {
	HTTPPort    int    `mapstructure:"http_port"`
	MetricsPort int    `mapstructure:"metrics_port"`
	BindAddress string `mapstructure:"bind_address"`
	Name        string `mapstructure:"name"`     // Public hostname, used for TLS
	BaseURL     string `mapstructure:"base_url"` // Public base URL for checkout redirects
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type"` // "bolt" or "redis"
	Path  string      `mapstructure:"path"`
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// AuthConfig defines authentication settings
type AuthConfig struct {
	JWTSecret       string `mapstructure:"jwt_secret"`
	TokenExpiration string `mapstructure:"token_expiration"`
	RateLimit       int    `mapstructure:"rate_limit"`
	RateLimitWindow string `mapstructure:"rate_limit_window"`
}

// StripeConfig defines payment provider settings
type StripeConfig struct {
	SecretKey           string `mapstructure:"secret_key"`
	WebhookSecret       string `mapstructure:"webhook_secret"`
	ProductName         string `mapstructure:"product_name"`
	ProductDescription  string `mapstructure:"product_description"`
	UnitAmountCents     int64  `mapstructure:"unit_amount_cents"`
	AllowPromotionCodes bool   `mapstructure:"allow_promotion_codes"`
}

// TimerConfig defines focus timer defaults and cache tuning
type TimerConfig struct {
	DefaultFocusMinutes  int    `mapstructure:"default_focus_minutes"`
	DefaultBreakMinutes  int    `mapstructure:"default_break_minutes"`
	EntitlementCacheSize int    `mapstructure:"entitlement_cache_size"`
	EntitlementCacheTTL  string `mapstructure:"entitlement_cache_ttl"`
}

// TLSConfig defines certificate settings for the public endpoint
type TLSConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	CertFile        string `mapstructure:"cert_file"`
	KeyFile         string `mapstructure:"key_file"`
	UseLetsEncrypt  bool   `mapstructure:"use_lets_encrypt"`
	LegoEmail       string `mapstructure:"lego_email"`
	LegoDNSProvider string `mapstructure:"lego_dns_provider"`
	LegoCADirURL    string `mapstructure:"lego_ca_dir_url"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level                string `mapstructure:"level"`
	Format               string `mapstructure:"format"`
	SessionRetentionDays int    `mapstructure:"session_retention_days"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	SetDefaults(v)

	// Configure viper
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("LUMIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// SetDefaults sets default configuration values on a viper instance.
// Exported so the validate command can enumerate the known key set.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.bind_address", "0.0.0.0")
	v.SetDefault("server.base_url", "http://localhost:8080")

	// Storage defaults
	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.path", "/var/lib/lumin/lumin.bolt")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 5)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")

	// Auth defaults
	v.SetDefault("auth.token_expiration", "24h")
	v.SetDefault("auth.rate_limit", 20)
	v.SetDefault("auth.rate_limit_window", "1m")

	// Stripe defaults
	v.SetDefault("stripe.product_name", "Lumin+ Premium")
	v.SetDefault("stripe.product_description", "Unlock the full dopamine-powered productivity experience")
	v.SetDefault("stripe.unit_amount_cents", 99)
	v.SetDefault("stripe.allow_promotion_codes", true)

	// Timer defaults
	v.SetDefault("timer.default_focus_minutes", 25)
	v.SetDefault("timer.default_break_minutes", 5)
	v.SetDefault("timer.entitlement_cache_size", 1000)
	v.SetDefault("timer.entitlement_cache_ttl", "5m")

	// TLS defaults
	v.SetDefault("tls.enabled", false)
	v.SetDefault("tls.cert_file", "/etc/lumin/tls/server.crt")
	v.SetDefault("tls.key_file", "/etc/lumin/tls/server.key")
	v.SetDefault("tls.use_lets_encrypt", false)
	v.SetDefault("tls.lego_ca_dir_url", "https://acme-v02.api.letsencrypt.org/directory")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.session_retention_days", 90)
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", cfg.Server.HTTPPort)
	}
	if cfg.Server.MetricsPort <= 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	switch cfg.Storage.Type {
	case "bolt":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required for the bolt backend")
		}
		if err := storage.EnsureDir(filepath.Dir(cfg.Storage.Path)); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	case "redis":
		if cfg.Storage.Redis.Host == "" {
			return fmt.Errorf("redis host is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown storage type: %s (must be bolt or redis)", cfg.Storage.Type)
	}

	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	if cfg.Timer.DefaultFocusMinutes < 1 || cfg.Timer.DefaultFocusMinutes > 120 {
		return fmt.Errorf("timer.default_focus_minutes must be within 1-120, got %d", cfg.Timer.DefaultFocusMinutes)
	}
	if cfg.Timer.DefaultBreakMinutes < 1 || cfg.Timer.DefaultBreakMinutes > 30 {
		return fmt.Errorf("timer.default_break_minutes must be within 1-30, got %d", cfg.Timer.DefaultBreakMinutes)
	}

	if cfg.TLS.UseLetsEncrypt && cfg.Server.Name == "" {
		return fmt.Errorf("server.name is required when Let's Encrypt is enabled")
	}

	return nil
}
