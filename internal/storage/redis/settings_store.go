package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/luminapp/lumin/internal/storage"
	"github.com/redis/go-redis/v9"
)

type settingsStore struct {
	client *redis.Client
}

// Get retrieves settings for a user.
func (s *settingsStore) Get(ctx context.Context, userID string) (*storage.UserSettings, error) {
	data, err := s.client.HGetAll(ctx, settingsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return parseSettings(data)
}

// Upsert creates or updates a user's settings.
func (s *settingsStore) Upsert(ctx context.Context, settings storage.UserSettings) error {
	now := time.Now()
	if settings.CreatedAt.IsZero() {
		settings.CreatedAt = now
	}
	settings.UpdatedAt = now

	if existing, err := s.Get(ctx, settings.UserID); err == nil {
		settings.CreatedAt = existing.CreatedAt
	} else if err != storage.ErrNotFound {
		return err
	}

	err := s.client.HSet(ctx, settingsKey(settings.UserID), map[string]interface{}{
		"user_id":             settings.UserID,
		"auto_hide_completed": settings.AutoHideCompleted,
		"collapse_completed":  settings.CollapseCompleted,
		"show_confetti":       settings.ShowConfetti,
		"show_stats":          settings.ShowStats,
		"focus_time":          settings.FocusTime,
		"break_time":          settings.BreakTime,
		"created_at":          formatTime(settings.CreatedAt),
		"updated_at":          formatTime(settings.UpdatedAt),
	}).Err()
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return nil
}
