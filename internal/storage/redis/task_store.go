package redis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/luminapp/lumin/internal/storage"
	"github.com/redis/go-redis/v9"
)

type taskStore struct {
	client *redis.Client
}

// Get retrieves a single task.
func (s *taskStore) Get(ctx context.Context, userID, taskID string) (*storage.Task, error) {
	data, err := s.client.HGetAll(ctx, taskKey(userID, taskID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return parseTask(data)
}

// List retrieves all tasks for a user, newest first.
func (s *taskStore) List(ctx context.Context, userID string) ([]storage.Task, error) {
	ids, err := s.client.SMembers(ctx, taskSetKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list task ids: %w", err)
	}

	tasks := make([]storage.Task, 0, len(ids))
	for _, id := range ids {
		task, err := s.Get(ctx, userID, id)
		if err == storage.ErrNotFound {
			// Stale set member; skip it.
			continue
		}
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})

	return tasks, nil
}

// Upsert creates or updates a task.
func (s *taskStore) Upsert(ctx context.Context, task storage.Task) error {
	now := time.Now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	if existing, err := s.Get(ctx, task.UserID, task.ID); err == nil {
		task.CreatedAt = existing.CreatedAt
	} else if err != storage.ErrNotFound {
		return err
	}

	completedAt := ""
	if task.CompletedAt != nil {
		completedAt = formatTime(*task.CompletedAt)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, taskKey(task.UserID, task.ID), map[string]interface{}{
		"id":              task.ID,
		"user_id":         task.UserID,
		"text":            task.Text,
		"completed":       task.Completed,
		"completed_at":    completedAt,
		"total_work_time": task.TotalWorkTime,
		"created_at":      formatTime(task.CreatedAt),
		"updated_at":      formatTime(task.UpdatedAt),
	})
	pipe.SAdd(ctx, taskSetKey(task.UserID), task.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("upsert task: %w", err)
	}
	return nil
}

// Delete removes a task.
func (s *taskStore) Delete(ctx context.Context, userID, taskID string) error {
	exists, err := s.client.Exists(ctx, taskKey(userID, taskID)).Result()
	if err != nil {
		return fmt.Errorf("check task: %w", err)
	}
	if exists == 0 {
		return storage.ErrNotFound
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, taskKey(userID, taskID))
	pipe.SRem(ctx, taskSetKey(userID), taskID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// AddWorkTime adds focus minutes to a task with HINCRBY, which is atomic on
// the Redis side, so no client-side locking is needed.
func (s *taskStore) AddWorkTime(ctx context.Context, userID, taskID string, minutes int) error {
	if minutes < 0 {
		return fmt.Errorf("work time delta must be non-negative, got %d", minutes)
	}

	exists, err := s.client.Exists(ctx, taskKey(userID, taskID)).Result()
	if err != nil {
		return fmt.Errorf("check task: %w", err)
	}
	if exists == 0 {
		return storage.ErrNotFound
	}

	pipe := s.client.TxPipeline()
	pipe.HIncrBy(ctx, taskKey(userID, taskID), "total_work_time", int64(minutes))
	pipe.HSet(ctx, taskKey(userID, taskID), "updated_at", formatTime(time.Now()))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("add work time: %w", err)
	}
	return nil
}
