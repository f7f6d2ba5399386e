package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SessionType distinguishes focus sessions from break sessions.
type SessionType string

const (
	SessionFocus SessionType = "focus"
	SessionBreak SessionType = "break"
)

// UnmarshalJSON implements json.Unmarshaler to normalize the session type.
func (t *SessionType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	normalized := SessionType(strings.ToLower(s))

	switch normalized {
	case SessionFocus, SessionBreak:
		*t = normalized
		return nil
	default:
		return fmt.Errorf("invalid session type: %s (must be focus or break)", s)
	}
}

// User is a registered account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	LastLogin    time.Time `json:"last_login,omitempty"`
}

// Task is a single to-do item owned by a user.
type Task struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	Text          string     `json:"text"`
	Completed     bool       `json:"completed"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	TotalWorkTime int        `json:"total_work_time"` // cumulative focus minutes
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// UserSettings holds per-user preferences, including timer durations.
type UserSettings struct {
	UserID            string    `json:"user_id"`
	AutoHideCompleted bool      `json:"auto_hide_completed"`
	CollapseCompleted bool      `json:"collapse_completed"`
	ShowConfetti      bool      `json:"show_confetti"`
	ShowStats         bool      `json:"show_stats"`
	FocusTime         int       `json:"focus_time"` // minutes
	BreakTime         int       `json:"break_time"` // minutes
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// DefaultSettings returns the settings applied before a user has saved any.
func DefaultSettings(userID string) UserSettings {
	return UserSettings{
		UserID:       userID,
		ShowConfetti: true,
		ShowStats:    true,
		FocusTime:    25,
		BreakTime:    5,
	}
}

// UserEntitlement marks whether a user has unlocked premium features.
// Premium is never revoked once granted; billing only ever upgrades.
type UserEntitlement struct {
	UserID           string    `json:"user_id"`
	Email            string    `json:"email"`
	Premium          bool      `json:"premium"`
	StripeCustomerID string    `json:"stripe_customer_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// FocusSession is a completed countdown cycle recorded against a task.
type FocusSession struct {
	ID              string      `json:"id"`
	UserID          string      `json:"user_id"`
	TaskID          string      `json:"task_id"`
	DurationMinutes int         `json:"duration_minutes"`
	SessionType     SessionType `json:"session_type"`
	Completed       bool        `json:"completed"`
	StartedAt       time.Time   `json:"started_at"`
	CompletedAt     *time.Time  `json:"completed_at,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}
