package redis

import (
	"fmt"
	"strconv"
	"time"

	"github.com/luminapp/lumin/internal/storage"
)

func userKey(userID string) string      { return keyPrefix + "user:" + userID }
func emailKey(email string) string      { return keyPrefix + "user_email:" + email }
func taskKey(uid, tid string) string    { return keyPrefix + "task:" + uid + ":" + tid }
func taskSetKey(uid string) string      { return keyPrefix + "tasks:" + uid }
func settingsKey(uid string) string     { return keyPrefix + "settings:" + uid }
func entitlementKey(uid string) string  { return keyPrefix + "entitlement:" + uid }
func sessionKey(uid, sid string) string { return keyPrefix + "session:" + uid + ":" + sid }
func sessionSetKey(uid string) string   { return keyPrefix + "sessions:" + uid }

func parseTime(data map[string]string, field string) (time.Time, error) {
	raw, ok := data[field]
	if !ok || raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse %s: %w", field, err)
	}
	return t, nil
}

func parseOptionalTime(data map[string]string, field string) (*time.Time, error) {
	t, err := parseTime(data, field)
	if err != nil {
		return nil, err
	}
	if t.IsZero() {
		return nil, nil
	}
	return &t, nil
}

func parseInt(data map[string]string, field string) (int, error) {
	raw, ok := data[field]
	if !ok || raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", field, err)
	}
	return n, nil
}

func parseBool(data map[string]string, field string) (bool, error) {
	raw, ok := data[field]
	if !ok || raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", field, err)
	}
	return b, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

// parseUser converts a Redis hash to a User
func parseUser(data map[string]string) (*storage.User, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	createdAt, err := parseTime(data, "created_at")
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseTime(data, "updated_at")
	if err != nil {
		return nil, err
	}
	lastLogin, err := parseTime(data, "last_login")
	if err != nil {
		return nil, err
	}

	return &storage.User{
		ID:           data["id"],
		Email:        data["email"],
		PasswordHash: data["password_hash"],
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
		LastLogin:    lastLogin,
	}, nil
}

// parseTask converts a Redis hash to a Task
func parseTask(data map[string]string) (*storage.Task, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	completed, err := parseBool(data, "completed")
	if err != nil {
		return nil, err
	}
	completedAt, err := parseOptionalTime(data, "completed_at")
	if err != nil {
		return nil, err
	}
	totalWorkTime, err := parseInt(data, "total_work_time")
	if err != nil {
		return nil, err
	}
	createdAt, err := parseTime(data, "created_at")
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseTime(data, "updated_at")
	if err != nil {
		return nil, err
	}

	return &storage.Task{
		ID:            data["id"],
		UserID:        data["user_id"],
		Text:          data["text"],
		Completed:     completed,
		CompletedAt:   completedAt,
		TotalWorkTime: totalWorkTime,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}, nil
}

// parseSettings converts a Redis hash to UserSettings
func parseSettings(data map[string]string) (*storage.UserSettings, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	autoHide, err := parseBool(data, "auto_hide_completed")
	if err != nil {
		return nil, err
	}
	collapse, err := parseBool(data, "collapse_completed")
	if err != nil {
		return nil, err
	}
	confetti, err := parseBool(data, "show_confetti")
	if err != nil {
		return nil, err
	}
	stats, err := parseBool(data, "show_stats")
	if err != nil {
		return nil, err
	}
	focusTime, err := parseInt(data, "focus_time")
	if err != nil {
		return nil, err
	}
	breakTime, err := parseInt(data, "break_time")
	if err != nil {
		return nil, err
	}
	createdAt, err := parseTime(data, "created_at")
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseTime(data, "updated_at")
	if err != nil {
		return nil, err
	}

	return &storage.UserSettings{
		UserID:            data["user_id"],
		AutoHideCompleted: autoHide,
		CollapseCompleted: collapse,
		ShowConfetti:      confetti,
		ShowStats:         stats,
		FocusTime:         focusTime,
		BreakTime:         breakTime,
		CreatedAt:         createdAt,
		UpdatedAt:         updatedAt,
	}, nil
}

// parseEntitlement converts a Redis hash to a UserEntitlement
func parseEntitlement(data map[string]string) (*storage.UserEntitlement, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	premium, err := parseBool(data, "premium")
	if err != nil {
		return nil, err
	}
	createdAt, err := parseTime(data, "created_at")
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseTime(data, "updated_at")
	if err != nil {
		return nil, err
	}

	return &storage.UserEntitlement{
		UserID:           data["user_id"],
		Email:            data["email"],
		Premium:          premium,
		StripeCustomerID: data["stripe_customer_id"],
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
	}, nil
}

// parseSession converts a Redis hash to a FocusSession
func parseSession(data map[string]string) (*storage.FocusSession, error) {
	if len(data) == 0 {
		return nil, storage.ErrNotFound
	}

	duration, err := parseInt(data, "duration_minutes")
	if err != nil {
		return nil, err
	}
	completed, err := parseBool(data, "completed")
	if err != nil {
		return nil, err
	}
	startedAt, err := parseTime(data, "started_at")
	if err != nil {
		return nil, err
	}
	completedAt, err := parseOptionalTime(data, "completed_at")
	if err != nil {
		return nil, err
	}
	createdAt, err := parseTime(data, "created_at")
	if err != nil {
		return nil, err
	}

	return &storage.FocusSession{
		ID:              data["id"],
		UserID:          data["user_id"],
		TaskID:          data["task_id"],
		DurationMinutes: duration,
		SessionType:     storage.SessionType(data["session_type"]),
		Completed:       completed,
		StartedAt:       startedAt,
		CompletedAt:     completedAt,
		CreatedAt:       createdAt,
	}, nil
}
