package gatekeeper

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/oarkflow/gatekeeper/logger"
)

// Role is a tenant-scoped named grant of permissions. System roles are
// seeded by configuration and protected from modification and deletion.
type Role struct {
	ID          string    `json:"id" yaml:"id"`
	TenantID    string    `json:"tenant_id" yaml:"tenant_id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	IsSystem    bool      `json:"is_system" yaml:"is_system"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`
}

// Permission names a single capability, e.g. "document:read".
type Permission struct {
	ID          string    `json:"id" yaml:"id"`
	TenantID    string    `json:"tenant_id" yaml:"tenant_id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// RoleAssignment binds a user to a role within a tenant. A zero ExpiresAt
// means the assignment does not expire.
type RoleAssignment struct {
	UserID     string    `json:"user_id"`
	RoleID     string    `json:"role_id"`
	TenantID   string    `json:"tenant_id"`
	AssignedBy string    `json:"assigned_by,omitempty"`
	AssignedAt time.Time `json:"assigned_at"`
	ExpiresAt  time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the assignment has lapsed as of now.
func (a RoleAssignment) Expired(now time.Time) bool {
	return !a.ExpiresAt.IsZero() && !now.Before(a.ExpiresAt)
}

// RoleStore persists roles.
type RoleStore interface {
	CreateRole(ctx context.Context, role *Role) error
	GetRole(ctx context.Context, tenantID, roleID string) (*Role, error)
	GetRoleByName(ctx context.Context, tenantID, name string) (*Role, error)
	UpdateRole(ctx context.Context, role *Role) error
	DeleteRole(ctx context.Context, tenantID, roleID string) error
	ListRoles(ctx context.Context, tenantID string) ([]*Role, error)
}

// PermissionStore persists permissions and their attachment to roles.
type PermissionStore interface {
	CreatePermission(ctx context.Context, perm *Permission) error
	GetPermissionByName(ctx context.Context, tenantID, name string) (*Permission, error)
	ListPermissions(ctx context.Context, tenantID string) ([]*Permission, error)
	AttachPermission(ctx context.Context, tenantID, roleID, permID string) error
	DetachPermission(ctx context.Context, tenantID, roleID, permID string) error
	RolePermissions(ctx context.Context, tenantID, roleID string) ([]*Permission, error)
}

// AssignmentStore persists user-role bindings.
type AssignmentStore interface {
	Assign(ctx context.Context, assignment *RoleAssignment) error
	Revoke(ctx context.Context, tenantID, userID, roleID string) error
	UserAssignments(ctx context.Context, tenantID, userID string) ([]*RoleAssignment, error)
	RoleAssignees(ctx context.Context, tenantID, roleID string) ([]*RoleAssignment, error)
}

// RBACService manages roles, permissions and assignments for a tenant.
// It implements RoleResolver, so it can back an Engine directly.
type RBACService struct {
	roles       RoleStore
	permissions PermissionStore
	assignments AssignmentStore
	log         logger.Logger
	now         func() time.Time
}

// NewRBACService wires the three stores together.
func NewRBACService(roles RoleStore, permissions PermissionStore, assignments AssignmentStore, log logger.Logger) *RBACService {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &RBACService{
		roles:       roles,
		permissions: permissions,
		assignments: assignments,
		log:         log,
		now:         time.Now,
	}
}

// CreateRole creates a role, rejecting duplicate names within the tenant.
func (s *RBACService) CreateRole(ctx context.Context, tenantID, name, description string, system bool) (*Role, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: role name is required", ErrInvalidRequest)
	}
	if existing, err := s.roles.GetRoleByName(ctx, tenantID, name); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: role %q already exists", ErrConflict, name)
	}
	now := s.now().UTC()
	role := &Role{
		ID:          newID(),
		TenantID:    tenantID,
		Name:        name,
		Description: description,
		IsSystem:    system,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.roles.CreateRole(ctx, role); err != nil {
		return nil, err
	}
	s.log.Info("role created", "tenant", tenantID, "role", name, "id", role.ID)
	return role, nil
}

// UpdateRole changes a role's description. System roles cannot be renamed
// or modified.
func (s *RBACService) UpdateRole(ctx context.Context, tenantID, roleID, description string) (*Role, error) {
	role, err := s.roles.GetRole(ctx, tenantID, roleID)
	if err != nil {
		return nil, err
	}
	if role.IsSystem {
		return nil, fmt.Errorf("%w: system role %q cannot be modified", ErrForbidden, role.Name)
	}
	role.Description = description
	role.UpdatedAt = s.now().UTC()
	if err := s.roles.UpdateRole(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// DeleteRole removes a role. System roles cannot be deleted.
func (s *RBACService) DeleteRole(ctx context.Context, tenantID, roleID string) error {
	role, err := s.roles.GetRole(ctx, tenantID, roleID)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return fmt.Errorf("%w: system role %q cannot be deleted", ErrForbidden, role.Name)
	}
	if err := s.roles.DeleteRole(ctx, tenantID, roleID); err != nil {
		return err
	}
	s.log.Info("role deleted", "tenant", tenantID, "role", role.Name)
	return nil
}

// CreatePermission registers a capability name for the tenant.
func (s *RBACService) CreatePermission(ctx context.Context, tenantID, name, description string) (*Permission, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: permission name is required", ErrInvalidRequest)
	}
	if existing, err := s.permissions.GetPermissionByName(ctx, tenantID, name); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: permission %q already exists", ErrConflict, name)
	}
	perm := &Permission{
		ID:          newID(),
		TenantID:    tenantID,
		Name:        name,
		Description: description,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.permissions.CreatePermission(ctx, perm); err != nil {
		return nil, err
	}
	return perm, nil
}

// GrantPermission attaches a permission to a role by name, creating the
// permission record on first use.
func (s *RBACService) GrantPermission(ctx context.Context, tenantID, roleID, permName string) error {
	if _, err := s.roles.GetRole(ctx, tenantID, roleID); err != nil {
		return err
	}
	perm, err := s.permissions.GetPermissionByName(ctx, tenantID, permName)
	if err != nil {
		perm, err = s.CreatePermission(ctx, tenantID, permName, "")
		if err != nil {
			return err
		}
	}
	return s.permissions.AttachPermission(ctx, tenantID, roleID, perm.ID)
}

// RevokePermission detaches a permission from a role.
func (s *RBACService) RevokePermission(ctx context.Context, tenantID, roleID, permName string) error {
	perm, err := s.permissions.GetPermissionByName(ctx, tenantID, permName)
	if err != nil {
		return err
	}
	return s.permissions.DetachPermission(ctx, tenantID, roleID, perm.ID)
}

// AssignRole binds a user to a role. Assigning a role the user already
// holds is a no-op. A non-zero expiry bounds the assignment in time.
func (s *RBACService) AssignRole(ctx context.Context, tenantID, userID, roleID, assignedBy string, expiresAt time.Time) error {
	if _, err := s.roles.GetRole(ctx, tenantID, roleID); err != nil {
		return err
	}
	existing, err := s.assignments.UserAssignments(ctx, tenantID, userID)
	if err != nil {
		return err
	}
	for _, a := range existing {
		if a.RoleID == roleID && !a.Expired(s.now()) {
			return nil
		}
	}
	assignment := &RoleAssignment{
		UserID:     userID,
		RoleID:     roleID,
		TenantID:   tenantID,
		AssignedBy: assignedBy,
		AssignedAt: s.now().UTC(),
		ExpiresAt:  expiresAt,
	}
	if err := s.assignments.Assign(ctx, assignment); err != nil {
		return err
	}
	s.log.Info("role assigned", "tenant", tenantID, "user", userID, "role", roleID, "by", assignedBy)
	return nil
}

// RevokeRole removes a user's binding to a role.
func (s *RBACService) RevokeRole(ctx context.Context, tenantID, userID, roleID string) error {
	if err := s.assignments.Revoke(ctx, tenantID, userID, roleID); err != nil {
		return err
	}
	s.log.Info("role revoked", "tenant", tenantID, "user", userID, "role", roleID)
	return nil
}

// RolesForPrincipal returns the names of the unexpired roles the user
// holds, satisfying the RoleResolver interface.
func (s *RBACService) RolesForPrincipal(ctx context.Context, tenantID, principalID string) ([]string, error) {
	assignments, err := s.assignments.UserAssignments(ctx, tenantID, principalID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	names := make([]string, 0, len(assignments))
	for _, a := range assignments {
		if a.Expired(now) {
			continue
		}
		role, err := s.roles.GetRole(ctx, tenantID, a.RoleID)
		if err != nil {
			continue // assignment to a since-deleted role
		}
		names = append(names, role.Name)
	}
	return names, nil
}

// UserPermissions returns the distinct permission names granted to the
// user through their unexpired roles.
func (s *RBACService) UserPermissions(ctx context.Context, tenantID, userID string) ([]string, error) {
	assignments, err := s.assignments.UserAssignments(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	seen := make(map[string]struct{})
	names := []string{}
	for _, a := range assignments {
		if a.Expired(now) {
			continue
		}
		perms, err := s.permissions.RolePermissions(ctx, tenantID, a.RoleID)
		if err != nil {
			return nil, err
		}
		for _, p := range perms {
			if _, dup := seen[p.Name]; dup {
				continue
			}
			seen[p.Name] = struct{}{}
			names = append(names, p.Name)
		}
	}
	return names, nil
}

// HasPermission reports whether the user holds the named permission
// through any of their roles.
func (s *RBACService) HasPermission(ctx context.Context, tenantID, userID, permName string) (bool, error) {
	perms, err := s.UserPermissions(ctx, tenantID, userID)
	if err != nil {
		return false, err
	}
	for _, p := range perms {
		if p == permName {
			return true, nil
		}
	}
	return false, nil
}

// newID returns a random 128-bit identifier in hex.
func newID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
