package bolt

import (
	"context"
	"fmt"
	"time"

	"github.com/luminapp/lumin/internal/storage"
	"go.etcd.io/bbolt"
)

type entitlementStore struct {
	db *bbolt.DB
}

// Get retrieves an entitlement record by user ID.
func (s *entitlementStore) Get(ctx context.Context, userID string) (*storage.UserEntitlement, error) {
	var ent storage.UserEntitlement

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketEntitlements))
		if bucket == nil {
			return storage.ErrNotFound
		}

		data := bucket.Get([]byte(userID))
		if data == nil {
			return storage.ErrNotFound
		}

		return unmarshal(data, &ent)
	})

	if err != nil {
		return nil, err
	}

	return &ent, nil
}

// Upsert creates or updates an entitlement record. Premium is sticky: an
// existing grant survives a write that would clear it.
func (s *entitlementStore) Upsert(ctx context.Context, ent storage.UserEntitlement) error {
	now := time.Now()
	if ent.CreatedAt.IsZero() {
		ent.CreatedAt = now
	}
	ent.UpdatedAt = now

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketEntitlements))
		if bucket == nil {
			return fmt.Errorf("entitlements bucket not found")
		}

		if prev := bucket.Get([]byte(ent.UserID)); prev != nil {
			var existing storage.UserEntitlement
			if err := unmarshal(prev, &existing); err != nil {
				return err
			}
			ent.CreatedAt = existing.CreatedAt
			if existing.Premium {
				ent.Premium = true
			}
			if ent.StripeCustomerID == "" {
				ent.StripeCustomerID = existing.StripeCustomerID
			}
		}

		data, err := marshal(ent)
		if err != nil {
			return err
		}

		return bucket.Put([]byte(ent.UserID), data)
	})
}
