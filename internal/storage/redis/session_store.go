package redis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/luminapp/lumin/internal/storage"
	"github.com/redis/go-redis/v9"
)

type sessionStore struct {
	client *redis.Client
}

// Add records a completed focus/break session.
func (s *sessionStore) Add(ctx context.Context, session storage.FocusSession) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}

	completedAt := ""
	if session.CompletedAt != nil {
		completedAt = formatTime(*session.CompletedAt)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, sessionKey(session.UserID, session.ID), map[string]interface{}{
		"id":               session.ID,
		"user_id":          session.UserID,
		"task_id":          session.TaskID,
		"duration_minutes": session.DurationMinutes,
		"session_type":     string(session.SessionType),
		"completed":        session.Completed,
		"started_at":       formatTime(session.StartedAt),
		"completed_at":     completedAt,
		"created_at":       formatTime(session.CreatedAt),
	})
	pipe.SAdd(ctx, sessionSetKey(session.UserID), session.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("add session: %w", err)
	}
	return nil
}

// ListByTask retrieves sessions recorded against one task, oldest first.
func (s *sessionStore) ListByTask(ctx context.Context, userID, taskID string) ([]storage.FocusSession, error) {
	sessions, err := s.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	filtered := sessions[:0]
	for _, session := range sessions {
		if session.TaskID == taskID {
			filtered = append(filtered, session)
		}
	}

	return filtered, nil
}

// ListByUser retrieves all sessions for a user, oldest first.
func (s *sessionStore) ListByUser(ctx context.Context, userID string) ([]storage.FocusSession, error) {
	ids, err := s.client.SMembers(ctx, sessionSetKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list session ids: %w", err)
	}

	sessions := make([]storage.FocusSession, 0, len(ids))
	for _, id := range ids {
		data, err := s.client.HGetAll(ctx, sessionKey(userID, id)).Result()
		if err != nil {
			return nil, fmt.Errorf("get session: %w", err)
		}
		session, err := parseSession(data)
		if err == storage.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.Before(sessions[j].StartedAt)
	})

	return sessions, nil
}

// DeleteBefore removes session records started before the cutoff. It scans
// per-user session sets, so it is intended for the periodic retention sweep,
// not a hot path.
func (s *sessionStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	deleted := 0

	iter := s.client.Scan(ctx, 0, keyPrefix+"sessions:*", 100).Iterator()
	for iter.Next(ctx) {
		setKey := iter.Val()
		userID := setKey[len(keyPrefix+"sessions:"):]

		sessions, err := s.ListByUser(ctx, userID)
		if err != nil {
			return deleted, err
		}

		for _, session := range sessions {
			if !session.StartedAt.Before(cutoff) {
				continue
			}
			pipe := s.client.TxPipeline()
			pipe.Del(ctx, sessionKey(userID, session.ID))
			pipe.SRem(ctx, setKey, session.ID)
			if _, err := pipe.Exec(ctx); err != nil {
				return deleted, fmt.Errorf("delete session: %w", err)
			}
			deleted++
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("scan sessions: %w", err)
	}

	return deleted, nil
}
