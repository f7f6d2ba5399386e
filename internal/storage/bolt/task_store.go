package bolt

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/luminapp/lumin/internal/storage"
	"go.etcd.io/bbolt"
)

type taskStore struct {
	db *bbolt.DB
}

// Get retrieves a single task.
func (s *taskStore) Get(ctx context.Context, userID, taskID string) (*storage.Task, error) {
	var task storage.Task

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket, err := userBucket(tx, bucketTasks, userID, false)
		if err != nil {
			return err
		}
		if bucket == nil {
			return storage.ErrNotFound
		}

		data := bucket.Get([]byte(taskID))
		if data == nil {
			return storage.ErrNotFound
		}

		return unmarshal(data, &task)
	})

	if err != nil {
		return nil, err
	}

	return &task, nil
}

// List retrieves all tasks for a user, newest first.
func (s *taskStore) List(ctx context.Context, userID string) ([]storage.Task, error) {
	var tasks []storage.Task

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket, err := userBucket(tx, bucketTasks, userID, false)
		if err != nil {
			return err
		}
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var task storage.Task
			if err := unmarshal(v, &task); err != nil {
				return err
			}
			tasks = append(tasks, task)
			return nil
		})
	})

	if err != nil {
		return nil, err
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

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := userBucket(tx, bucketTasks, task.UserID, true)
		if err != nil {
			return err
		}

		data, err := marshal(task)
		if err != nil {
			return err
		}

		return bucket.Put([]byte(task.ID), data)
	})
}

// Delete removes a task.
func (s *taskStore) Delete(ctx context.Context, userID, taskID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := userBucket(tx, bucketTasks, userID, false)
		if err != nil {
			return err
		}
		if bucket == nil || bucket.Get([]byte(taskID)) == nil {
			return storage.ErrNotFound
		}

		return bucket.Delete([]byte(taskID))
	})
}

// AddWorkTime adds focus minutes to a task inside a single write transaction,
// so concurrent increments cannot lose updates.
func (s *taskStore) AddWorkTime(ctx context.Context, userID, taskID string, minutes int) error {
	if minutes < 0 {
		return fmt.Errorf("work time delta must be non-negative, got %d", minutes)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := userBucket(tx, bucketTasks, userID, false)
		if err != nil {
			return err
		}
		if bucket == nil {
			return storage.ErrNotFound
		}

		data := bucket.Get([]byte(taskID))
		if data == nil {
			return storage.ErrNotFound
		}

		var task storage.Task
		if err := unmarshal(data, &task); err != nil {
			return err
		}

		task.TotalWorkTime += minutes
		task.UpdatedAt = time.Now()

		updated, err := marshal(task)
		if err != nil {
			return err
		}

		return bucket.Put([]byte(taskID), updated)
	})
}
