package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DecisionCache stores computed effective permission sets in Redis, keyed per
// (organization, user). Writers to roles or assignments must call the
// invalidation methods synchronously before reporting success: a stale allow
// is a security defect, a stale deny is only a nuisance. The TTL is a
// backstop for missed invalidations, never the primary mechanism.
type DecisionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDecisionCache instantiates the cache helper. A nil client disables
// caching, every lookup becomes a miss.
func NewDecisionCache(client *redis.Client, ttl time.Duration) *DecisionCache {
	return &DecisionCache{client: client, ttl: ttl}
}

func decisionKey(userID, orgID int64) string {
	return fmt.Sprintf("rbac:effective:%d:%d", orgID, userID)
}

// Get loads the cached effective set. The second return reports a hit.
func (c *DecisionCache) Get(ctx context.Context, userID, orgID int64) ([]string, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	raw, err := c.client.Get(ctx, decisionKey(userID, orgID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var keys []string
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, false, err
	}
	return keys, true, nil
}

// Put stores a freshly computed effective set.
func (c *DecisionCache) Put(ctx context.Context, userID, orgID int64, keys []string) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, decisionKey(userID, orgID), raw, c.ttl).Err()
}

// Invalidate drops the cached set for one (user, organization).
func (c *DecisionCache) Invalidate(ctx context.Context, userID, orgID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, decisionKey(userID, orgID)).Err()
}

// InvalidateAll drops every cached effective set. Catalog mutations fan out
// here: a new registry key must reach wildcard holders immediately, and the
// cache has no reverse index from keys to holders.
func (c *DecisionCache) InvalidateAll(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	iter := c.client.Scan(ctx, 0, "rbac:effective:*", 0).Iterator()
	batch := make([]string, 0, 128)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return c.client.Del(ctx, batch...).Err()
	}
	return nil
}

// Holder identifies one (user, organization) pair affected by a write.
type Holder struct {
	UserID         int64
	OrganizationID int64
}

// InvalidateHolders drops cached sets for every affected pair in one call.
// Role edits fan out here: every user holding the role is invalidated.
func (c *DecisionCache) InvalidateHolders(ctx context.Context, holders []Holder) error {
	if c == nil || c.client == nil || len(holders) == 0 {
		return nil
	}
	keys := make([]string, 0, len(holders))
	for _, h := range holders {
		keys = append(keys, decisionKey(h.UserID, h.OrganizationID))
	}
	return c.client.Del(ctx, keys...).Err()
}
