package bolt

import (
	"context"
	"sort"
	"time"

	"github.com/luminapp/lumin/internal/storage"
	"go.etcd.io/bbolt"
)

type sessionStore struct {
	db *bbolt.DB
}

// Add records a completed focus/break session.
func (s *sessionStore) Add(ctx context.Context, session storage.FocusSession) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := userBucket(tx, bucketSessions, session.UserID, true)
		if err != nil {
			return err
		}

		data, err := marshal(session)
		if err != nil {
			return err
		}

		return bucket.Put([]byte(session.ID), data)
	})
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
	var sessions []storage.FocusSession

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket, err := userBucket(tx, bucketSessions, userID, false)
		if err != nil {
			return err
		}
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			var session storage.FocusSession
			if err := unmarshal(v, &session); err != nil {
				return err
			}
			sessions = append(sessions, session)
			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.Before(sessions[j].StartedAt)
	})

	return sessions, nil
}

// DeleteBefore removes session records started before the cutoff.
func (s *sessionStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	deleted := 0

	err := s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket([]byte(bucketSessions))
		if root == nil {
			return nil
		}

		return root.ForEachBucket(func(userKey []byte) error {
			bucket := root.Bucket(userKey)

			var stale [][]byte
			err := bucket.ForEach(func(k, v []byte) error {
				var session storage.FocusSession
				if err := unmarshal(v, &session); err != nil {
					return err
				}
				if session.StartedAt.Before(cutoff) {
					stale = append(stale, append([]byte(nil), k...))
				}
				return nil
			})
			if err != nil {
				return err
			}

			for _, k := range stale {
				if err := bucket.Delete(k); err != nil {
					return err
				}
				deleted++
			}
			return nil
		})
	})

	if err != nil {
		return 0, err
	}

	return deleted, nil
}
