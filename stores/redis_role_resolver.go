package stores

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisRoleResolver keeps each user's role names in a Redis set
// (key: roles:{tenantID}:{userID}). It satisfies gatekeeper.RoleResolver
// and doubles as a lightweight assignment store for deployments that keep
// membership out of SQL.
type RedisRoleResolver struct {
	client *redis.Client
	keyFmt string // format string, e.g. "roles:%s:%s"
}

func NewRedisRoleResolver(client *redis.Client) *RedisRoleResolver {
	return &RedisRoleResolver{client: client, keyFmt: "roles:%s:%s"}
}

func (r *RedisRoleResolver) key(tenantID, userID string) string {
	return fmt.Sprintf(r.keyFmt, tenantID, userID)
}

func (r *RedisRoleResolver) GrantRole(ctx context.Context, tenantID, userID, roleName string) error {
	return r.client.SAdd(ctx, r.key(tenantID, userID), roleName).Err()
}

func (r *RedisRoleResolver) RevokeRole(ctx context.Context, tenantID, userID, roleName string) error {
	return r.client.SRem(ctx, r.key(tenantID, userID), roleName).Err()
}

func (r *RedisRoleResolver) RolesForPrincipal(ctx context.Context, tenantID, principalID string) ([]string, error) {
	return r.client.SMembers(ctx, r.key(tenantID, principalID)).Result()
}
