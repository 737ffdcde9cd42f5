package stores

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/oarkflow/gatekeeper"
)

// CachedRoleResolver decorates a RoleResolver with a ristretto TTL cache.
// The decision engine itself computes every decision fresh; caching is
// confined here, where the cost of a stale entry is bounded by the TTL and
// Invalidate covers explicit membership changes.
type CachedRoleResolver struct {
	inner gatekeeper.RoleResolver
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewCachedRoleResolver wraps inner. A non-positive ttl defaults to a
// minute.
func NewCachedRoleResolver(inner gatekeeper.RoleResolver, ttl time.Duration) (*CachedRoleResolver, error) {
	if ttl <= 0 {
		ttl = time.Minute
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     1 << 24,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create role cache: %w", err)
	}
	return &CachedRoleResolver{inner: inner, cache: cache, ttl: ttl}, nil
}

func (c *CachedRoleResolver) cacheKey(tenantID, principalID string) string {
	return tenantID + "\x00" + principalID
}

func (c *CachedRoleResolver) RolesForPrincipal(ctx context.Context, tenantID, principalID string) ([]string, error) {
	key := c.cacheKey(tenantID, principalID)
	if v, ok := c.cache.Get(key); ok {
		if roles, ok := v.([]string); ok {
			return roles, nil
		}
	}
	roles, err := c.inner.RolesForPrincipal(ctx, tenantID, principalID)
	if err != nil {
		return nil, err
	}
	c.cache.SetWithTTL(key, roles, int64(len(roles)+1), c.ttl)
	return roles, nil
}

// Invalidate drops the cached roles for one principal, forcing the next
// resolution through to the inner resolver.
func (c *CachedRoleResolver) Invalidate(tenantID, principalID string) {
	c.cache.Del(c.cacheKey(tenantID, principalID))
}

// Wait blocks until pending cache writes are visible. Only tests need it.
func (c *CachedRoleResolver) Wait() {
	c.cache.Wait()
}

// Close releases the cache resources.
func (c *CachedRoleResolver) Close() {
	c.cache.Close()
}
