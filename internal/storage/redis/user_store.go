package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/luminapp/lumin/internal/storage"
	"github.com/redis/go-redis/v9"
)

type userStore struct {
	client *redis.Client
}

// Get retrieves a user by ID.
func (s *userStore) Get(ctx context.Context, userID string) (*storage.User, error) {
	data, err := s.client.HGetAll(ctx, userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return parseUser(data)
}

// GetByEmail retrieves a user through the email index.
func (s *userStore) GetByEmail(ctx context.Context, email string) (*storage.User, error) {
	userID, err := s.client.Get(ctx, emailKey(normalizeEmail(email))).Result()
	if err == redis.Nil {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user email index: %w", err)
	}
	return s.Get(ctx, userID)
}

// Upsert creates or updates a user and maintains the email index.
func (s *userStore) Upsert(ctx context.Context, user storage.User) error {
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	// Preserve creation time and retire a stale email index entry.
	if existing, err := s.Get(ctx, user.ID); err == nil {
		user.CreatedAt = existing.CreatedAt
		if existing.Email != user.Email {
			if err := s.client.Del(ctx, emailKey(normalizeEmail(existing.Email))).Err(); err != nil {
				return fmt.Errorf("delete stale email index: %w", err)
			}
		}
	} else if err != storage.ErrNotFound {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, userKey(user.ID), map[string]interface{}{
		"id":            user.ID,
		"email":         user.Email,
		"password_hash": user.PasswordHash,
		"created_at":    formatTime(user.CreatedAt),
		"updated_at":    formatTime(user.UpdatedAt),
		"last_login":    formatTime(user.LastLogin),
	})
	pipe.Set(ctx, emailKey(normalizeEmail(user.Email)), user.ID, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// Delete removes a user and its email index entry.
func (s *userStore) Delete(ctx context.Context, userID string) error {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, userKey(userID))
	pipe.Del(ctx, emailKey(normalizeEmail(user.Email)))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
