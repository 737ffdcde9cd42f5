package stores

import (
	"context"
	"sort"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	srv := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: srv.Addr()})
}

func TestRedisRoleResolver(t *testing.T) {
	ctx := context.Background()
	resolver := NewRedisRoleResolver(newTestRedis(t))

	if err := resolver.GrantRole(ctx, "t1", "alice", "editor"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := resolver.GrantRole(ctx, "t1", "alice", "viewer"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	// same user in another tenant stays separate
	if err := resolver.GrantRole(ctx, "t2", "alice", "admin"); err != nil {
		t.Fatalf("grant: %v", err)
	}

	roles, err := resolver.RolesForPrincipal(ctx, "t1", "alice")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	sort.Strings(roles)
	if len(roles) != 2 || roles[0] != "editor" || roles[1] != "viewer" {
		t.Fatalf("unexpected roles: %v", roles)
	}

	if err := resolver.RevokeRole(ctx, "t1", "alice", "viewer"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	roles, _ = resolver.RolesForPrincipal(ctx, "t1", "alice")
	if len(roles) != 1 || roles[0] != "editor" {
		t.Fatalf("revoke lost: %v", roles)
	}

	// unknown principals resolve to an empty set, not an error
	roles, err = resolver.RolesForPrincipal(ctx, "t1", "stranger")
	if err != nil || len(roles) != 0 {
		t.Fatalf("stranger: %v %v", roles, err)
	}
}
