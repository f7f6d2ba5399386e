package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/luminapp/lumin/internal/storage"
	"github.com/redis/go-redis/v9"
)

type entitlementStore struct {
	client *redis.Client

	// Redis hashes lack a compare-and-set for multiple fields, so the
	// read-modify-write that keeps premium sticky is serialized here.
	mu sync.Mutex
}

// Get retrieves an entitlement record by user ID.
func (s *entitlementStore) Get(ctx context.Context, userID string) (*storage.UserEntitlement, error) {
	data, err := s.client.HGetAll(ctx, entitlementKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get entitlement: %w", err)
	}
	return parseEntitlement(data)
}

// Upsert creates or updates an entitlement record. Premium is sticky: an
// existing grant survives a write that would clear it.
func (s *entitlementStore) Upsert(ctx context.Context, ent storage.UserEntitlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if ent.CreatedAt.IsZero() {
		ent.CreatedAt = now
	}
	ent.UpdatedAt = now

	if existing, err := s.Get(ctx, ent.UserID); err == nil {
		ent.CreatedAt = existing.CreatedAt
		if existing.Premium {
			ent.Premium = true
		}
		if ent.StripeCustomerID == "" {
			ent.StripeCustomerID = existing.StripeCustomerID
		}
	} else if err != storage.ErrNotFound {
		return err
	}

	err := s.client.HSet(ctx, entitlementKey(ent.UserID), map[string]interface{}{
		"user_id":            ent.UserID,
		"email":              ent.Email,
		"premium":            ent.Premium,
		"stripe_customer_id": ent.StripeCustomerID,
		"created_at":         formatTime(ent.CreatedAt),
		"updated_at":         formatTime(ent.UpdatedAt),
	}).Err()
	if err != nil {
		return fmt.Errorf("upsert entitlement: %w", err)
	}
	return nil
}
