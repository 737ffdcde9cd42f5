package gatekeeper_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oarkflow/gatekeeper"
	"github.com/oarkflow/gatekeeper/stores"
)

func newRBAC() *gatekeeper.RBACService {
	return gatekeeper.NewRBACService(
		stores.NewMemoryRoleStore(),
		stores.NewMemoryPermissionStore(),
		stores.NewMemoryAssignmentStore(),
		nil,
	)
}

func TestRoleLifecycle(t *testing.T) {
	ctx := context.Background()
	rbac := newRBAC()

	role, err := rbac.CreateRole(ctx, "t1", "editor", "can edit", false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if role.ID == "" || role.Name != "editor" {
		t.Fatalf("unexpected role: %+v", role)
	}

	if _, err := rbac.CreateRole(ctx, "t1", "editor", "", false); !errors.Is(err, gatekeeper.ErrConflict) {
		t.Fatalf("duplicate name should conflict, got %v", err)
	}
	// same name in another tenant is fine
	if _, err := rbac.CreateRole(ctx, "t2", "editor", "", false); err != nil {
		t.Fatalf("other tenant: %v", err)
	}

	updated, err := rbac.UpdateRole(ctx, "t1", role.ID, "edits documents")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Description != "edits documents" {
		t.Fatalf("description not updated")
	}

	if err := rbac.DeleteRole(ctx, "t1", role.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := rbac.DeleteRole(ctx, "t1", role.ID); !errors.Is(err, gatekeeper.ErrNotFound) {
		t.Fatalf("second delete should be not found, got %v", err)
	}
}

func TestSystemRoleProtection(t *testing.T) {
	ctx := context.Background()
	rbac := newRBAC()

	admin, err := rbac.CreateRole(ctx, "t1", "admin", "", true)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := rbac.UpdateRole(ctx, "t1", admin.ID, "changed"); !errors.Is(err, gatekeeper.ErrForbidden) {
		t.Fatalf("system role update should be forbidden, got %v", err)
	}
	if err := rbac.DeleteRole(ctx, "t1", admin.ID); !errors.Is(err, gatekeeper.ErrForbidden) {
		t.Fatalf("system role delete should be forbidden, got %v", err)
	}
}

func TestAssignAndResolveRoles(t *testing.T) {
	ctx := context.Background()
	rbac := newRBAC()

	editor, _ := rbac.CreateRole(ctx, "t1", "editor", "", false)
	viewer, _ := rbac.CreateRole(ctx, "t1", "viewer", "", false)

	if err := rbac.AssignRole(ctx, "t1", "alice", editor.ID, "root", time.Time{}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := rbac.AssignRole(ctx, "t1", "alice", viewer.ID, "root", time.Time{}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	// double assignment is a no-op
	if err := rbac.AssignRole(ctx, "t1", "alice", editor.ID, "root", time.Time{}); err != nil {
		t.Fatalf("re-assign: %v", err)
	}

	names, err := rbac.RolesForPrincipal(ctx, "t1", "alice")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 roles, got %v", names)
	}

	if err := rbac.RevokeRole(ctx, "t1", "alice", viewer.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	names, _ = rbac.RolesForPrincipal(ctx, "t1", "alice")
	if len(names) != 1 || names[0] != "editor" {
		t.Fatalf("expected only editor, got %v", names)
	}

	// unknown principal simply has no roles
	names, err = rbac.RolesForPrincipal(ctx, "t1", "stranger")
	if err != nil || len(names) != 0 {
		t.Fatalf("stranger should resolve to empty, got %v %v", names, err)
	}
}

func TestExpiredAssignmentsIgnored(t *testing.T) {
	ctx := context.Background()
	rbac := newRBAC()

	role, _ := rbac.CreateRole(ctx, "t1", "temp", "", false)
	if err := rbac.AssignRole(ctx, "t1", "alice", role.ID, "root", time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("assign: %v", err)
	}
	names, err := rbac.RolesForPrincipal(ctx, "t1", "alice")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("expired assignment must not grant the role, got %v", names)
	}
}

func TestPermissions(t *testing.T) {
	ctx := context.Background()
	rbac := newRBAC()

	editor, _ := rbac.CreateRole(ctx, "t1", "editor", "", false)
	viewer, _ := rbac.CreateRole(ctx, "t1", "viewer", "", false)

	if err := rbac.GrantPermission(ctx, "t1", editor.ID, "document:write"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := rbac.GrantPermission(ctx, "t1", editor.ID, "document:read"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := rbac.GrantPermission(ctx, "t1", viewer.ID, "document:read"); err != nil {
		t.Fatalf("grant: %v", err)
	}

	rbac.AssignRole(ctx, "t1", "alice", editor.ID, "root", time.Time{})
	rbac.AssignRole(ctx, "t1", "alice", viewer.ID, "root", time.Time{})

	perms, err := rbac.UserPermissions(ctx, "t1", "alice")
	if err != nil {
		t.Fatalf("user permissions: %v", err)
	}
	if len(perms) != 2 {
		t.Fatalf("permissions must be deduplicated across roles, got %v", perms)
	}

	ok, err := rbac.HasPermission(ctx, "t1", "alice", "document:write")
	if err != nil || !ok {
		t.Fatalf("alice should have document:write, got %v %v", ok, err)
	}
	ok, _ = rbac.HasPermission(ctx, "t1", "alice", "document:delete")
	if ok {
		t.Fatalf("alice should not have document:delete")
	}

	if err := rbac.RevokePermission(ctx, "t1", editor.ID, "document:write"); err != nil {
		t.Fatalf("revoke permission: %v", err)
	}
	if ok, _ := rbac.HasPermission(ctx, "t1", "alice", "document:write"); ok {
		t.Fatalf("revoked permission should be gone")
	}
}

func TestRBACBacksEngine(t *testing.T) {
	ctx := context.Background()
	rbac := newRBAC()
	policyStore := stores.NewMemoryPolicyStore()

	editor, _ := rbac.CreateRole(ctx, "t1", "editor", "", false)
	rbac.AssignRole(ctx, "t1", "alice", editor.ID, "root", time.Time{})

	policies := gatekeeper.NewPolicyService(policyStore, nil)
	p := gatekeeper.NewPolicyBuilder().Tenant("t1").Name("editors-write").
		Effect(gatekeeper.EffectAllow).Roles("editor").Actions("write").Resources("doc:*").Build()
	if _, _, err := policies.Create(ctx, p); err != nil {
		t.Fatalf("create policy: %v", err)
	}

	eng := gatekeeper.NewEngine(policyStore, rbac)
	d, err := eng.Evaluate(ctx, "t1", "alice", "write", "doc:1", nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("role-backed evaluation should allow: %s", d.Reason)
	}
	if d, _ := eng.Evaluate(ctx, "t1", "bob", "write", "doc:1", nil); d.Allowed {
		t.Fatalf("bob has no roles")
	}
}
