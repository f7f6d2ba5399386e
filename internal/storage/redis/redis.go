package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/luminapp/lumin/internal/config"
	"github.com/luminapp/lumin/internal/storage"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "lumin:"

// Store implements the storage.Store interface using Redis
type Store struct {
	client           *redis.Client
	userStore        *userStore
	taskStore        *taskStore
	settingsStore    *settingsStore
	entitlementStore *entitlementStore
	sessionStore     *sessionStore
}

// Open creates a new Redis-backed storage instance
func Open(cfg config.RedisConfig) (*Store, error) {
	// Parse timeouts
	dialTimeout, err := time.ParseDuration(cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dial_timeout: %w", err)
	}

	readTimeout, err := time.ParseDuration(cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid read_timeout: %w", err)
	}

	writeTimeout, err := time.ParseDuration(cfg.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid write_timeout: %w", err)
	}

	// Determine address
	addr := cfg.Host
	if cfg.Port > 0 {
		addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	// Create Redis client
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	// Ping to verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	store := &Store{
		client:           client,
		userStore:        &userStore{client: client},
		taskStore:        &taskStore{client: client},
		settingsStore:    &settingsStore{client: client},
		entitlementStore: &entitlementStore{client: client},
		sessionStore:     &sessionStore{client: client},
	}

	return store, nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Users returns the UserStore implementation
func (s *Store) Users() storage.UserStore {
	return s.userStore
}

// Tasks returns the TaskStore implementation
func (s *Store) Tasks() storage.TaskStore {
	return s.taskStore
}

// Settings returns the SettingsStore implementation
func (s *Store) Settings() storage.SettingsStore {
	return s.settingsStore
}

// Entitlements returns the EntitlementStore implementation
func (s *Store) Entitlements() storage.EntitlementStore {
	return s.entitlementStore
}

// FocusSessions returns the FocusSessionStore implementation
func (s *Store) FocusSessions() storage.FocusSessionStore {
	return s.sessionStore
}
