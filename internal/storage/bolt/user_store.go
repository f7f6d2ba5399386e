package bolt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/luminapp/lumin/internal/storage"
	"go.etcd.io/bbolt"
)

type userStore struct {
	db *bbolt.DB
}

// Get retrieves a user by ID.
func (s *userStore) Get(ctx context.Context, userID string) (*storage.User, error) {
	var user storage.User

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketUsers))
		if bucket == nil {
			return storage.ErrNotFound
		}

		data := bucket.Get([]byte(userID))
		if data == nil {
			return storage.ErrNotFound
		}

		return unmarshal(data, &user)
	})

	if err != nil {
		return nil, err
	}

	return &user, nil
}

// GetByEmail retrieves a user through the email index.
func (s *userStore) GetByEmail(ctx context.Context, email string) (*storage.User, error) {
	var user storage.User

	err := s.db.View(func(tx *bbolt.Tx) error {
		index := tx.Bucket([]byte(bucketUserEmails))
		if index == nil {
			return storage.ErrNotFound
		}

		userID := index.Get([]byte(normalizeEmail(email)))
		if userID == nil {
			return storage.ErrNotFound
		}

		bucket := tx.Bucket([]byte(bucketUsers))
		if bucket == nil {
			return storage.ErrNotFound
		}

		data := bucket.Get(userID)
		if data == nil {
			return storage.ErrNotFound
		}

		return unmarshal(data, &user)
	})

	if err != nil {
		return nil, err
	}

	return &user, nil
}

// Upsert creates or updates a user and maintains the email index.
func (s *userStore) Upsert(ctx context.Context, user storage.User) error {
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketUsers))
		if bucket == nil {
			return fmt.Errorf("users bucket not found")
		}
		index := tx.Bucket([]byte(bucketUserEmails))
		if index == nil {
			return fmt.Errorf("user_emails bucket not found")
		}

		// Drop the old email index entry if the address changed.
		if prev := bucket.Get([]byte(user.ID)); prev != nil {
			var existing storage.User
			if err := unmarshal(prev, &existing); err != nil {
				return err
			}
			user.CreatedAt = existing.CreatedAt
			if existing.Email != user.Email {
				if err := index.Delete([]byte(normalizeEmail(existing.Email))); err != nil {
					return err
				}
			}
		}

		data, err := marshal(user)
		if err != nil {
			return err
		}

		if err := bucket.Put([]byte(user.ID), data); err != nil {
			return err
		}

		return index.Put([]byte(normalizeEmail(user.Email)), []byte(user.ID))
	})
}

// Delete removes a user and its email index entry.
func (s *userStore) Delete(ctx context.Context, userID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketUsers))
		if bucket == nil {
			return storage.ErrNotFound
		}

		data := bucket.Get([]byte(userID))
		if data == nil {
			return storage.ErrNotFound
		}

		var user storage.User
		if err := unmarshal(data, &user); err != nil {
			return err
		}

		if index := tx.Bucket([]byte(bucketUserEmails)); index != nil {
			if err := index.Delete([]byte(normalizeEmail(user.Email))); err != nil {
				return err
			}
		}

		return bucket.Delete([]byte(userID))
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
