package bolt

import (
	"context"
	"fmt"
	"time"

	"github.com/luminapp/lumin/internal/storage"
	"go.etcd.io/bbolt"
)

type settingsStore struct {
	db *bbolt.DB
}

// Get retrieves settings for a user.
func (s *settingsStore) Get(ctx context.Context, userID string) (*storage.UserSettings, error) {
	var settings storage.UserSettings

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketSettings))
		if bucket == nil {
			return storage.ErrNotFound
		}

		data := bucket.Get([]byte(userID))
		if data == nil {
			return storage.ErrNotFound
		}

		return unmarshal(data, &settings)
	})

	if err != nil {
		return nil, err
	}

	return &settings, nil
}

// Upsert creates or updates a user's settings.
func (s *settingsStore) Upsert(ctx context.Context, settings storage.UserSettings) error {
	now := time.Now()
	if settings.CreatedAt.IsZero() {
		settings.CreatedAt = now
	}
	settings.UpdatedAt = now

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketSettings))
		if bucket == nil {
			return fmt.Errorf("settings bucket not found")
		}

		if prev := bucket.Get([]byte(settings.UserID)); prev != nil {
			var existing storage.UserSettings
			if err := unmarshal(prev, &existing); err != nil {
				return err
			}
			settings.CreatedAt = existing.CreatedAt
		}

		data, err := marshal(settings)
		if err != nil {
			return err
		}

		return bucket.Put([]byte(settings.UserID), data)
	})
}
