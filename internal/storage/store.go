package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store represents the root storage interface. Both the bolt and redis
// backends implement it; the server picks one based on configuration.
type Store interface {
	Close() error
	Users() UserStore
	Tasks() TaskStore
	Settings() SettingsStore
	Entitlements() EntitlementStore
	FocusSessions() FocusSessionStore
}

// UserStore manages user accounts.
type UserStore interface {
	Get(ctx context.Context, userID string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Upsert(ctx context.Context, user User) error
	Delete(ctx context.Context, userID string) error
}

// TaskStore manages per-user tasks.
type TaskStore interface {
	Get(ctx context.Context, userID, taskID string) (*Task, error)
	List(ctx context.Context, userID string) ([]Task, error)
	Upsert(ctx context.Context, task Task) error
	Delete(ctx context.Context, userID, taskID string) error

	// AddWorkTime atomically adds minutes to a task's cumulative work time.
	// Negative deltas are rejected; work time only ever grows.
	AddWorkTime(ctx context.Context, userID, taskID string, minutes int) error
}

// SettingsStore manages per-user application settings.
type SettingsStore interface {
	Get(ctx context.Context, userID string) (*UserSettings, error)
	Upsert(ctx context.Context, settings UserSettings) error
}

// EntitlementStore manages premium entitlement records keyed by user ID.
// Upsert must be idempotent: replaying the same grant leaves the stored
// record unchanged apart from UpdatedAt.
type EntitlementStore interface {
	Get(ctx context.Context, userID string) (*UserEntitlement, error)
	Upsert(ctx context.Context, ent UserEntitlement) error
}

// FocusSessionStore records completed focus/break sessions.
type FocusSessionStore interface {
	Add(ctx context.Context, session FocusSession) error
	ListByTask(ctx context.Context, userID, taskID string) ([]FocusSession, error)
	ListByUser(ctx context.Context, userID string) ([]FocusSession, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}
