package billing

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/luminapp/lumin/internal/storage"
)

// EntitlementCache is a read-through cache over the entitlement store.
// Premium checks happen on hot request paths, so lookups are served from
// an expiring LRU and only fall back to storage on a miss.
type EntitlementCache struct {
	store storage.EntitlementStore
	cache *expirable.LRU[string, bool]
}

// NewEntitlementCache creates a cache holding up to size entries for ttl.
func NewEntitlementCache(store storage.EntitlementStore, size int, ttl time.Duration) *EntitlementCache {
	if size <= 0 {
		size = 1000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &EntitlementCache{
		store: store,
		cache: expirable.NewLRU[string, bool](size, nil, ttl),
	}
}

// Premium reports whether the user holds a premium entitlement. A user
// with no entitlement record is simply not premium.
func (c *EntitlementCache) Premium(ctx context.Context, userID string) (bool, error) {
	if premium, ok := c.cache.Get(userID); ok {
		return premium, nil
	}

	ent, err := c.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.cache.Add(userID, false)
			return false, nil
		}
		return false, err
	}

	c.cache.Add(userID, ent.Premium)
	return ent.Premium, nil
}

// Invalidate drops the cached value for a user. The webhook processor
// calls this after a grant so the upgrade is visible immediately.
func (c *EntitlementCache) Invalidate(userID string) {
	c.cache.Remove(userID)
}
