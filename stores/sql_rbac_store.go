package stores

import (
	"context"
	"fmt"
	"time"

	"github.com/oarkflow/gatekeeper"
	"github.com/oarkflow/squealx"
)

// SQLRoleStore persists roles in SQL (squealx)
type SQLRoleStore struct {
	db *squealx.DB
}

func NewSQLRoleStore(db *squealx.DB) *SQLRoleStore {
	return &SQLRoleStore{db: db}
}

func (s *SQLRoleStore) CreateRole(ctx context.Context, role *gatekeeper.Role) error {
	q := `INSERT INTO roles(id, tenant_id, name, description, is_system, created_at, updated_at) VALUES(:id, :tenant_id, :name, :description, :is_system, :created_at, :updated_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":          role.ID,
		"tenant_id":   role.TenantID,
		"name":        role.Name,
		"description": role.Description,
		"is_system":   boolToInt(role.IsSystem),
		"created_at":  role.CreatedAt,
		"updated_at":  role.UpdatedAt,
	})
	return err
}

const roleColumns = `id, tenant_id, name, description, is_system, created_at, updated_at`

func (s *SQLRoleStore) GetRole(ctx context.Context, tenantID, roleID string) (*gatekeeper.Role, error) {
	q := `SELECT ` + roleColumns + ` FROM roles WHERE id = :id AND tenant_id = :tenant_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": roleID, "tenant_id": tenantID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("%w: role %s", gatekeeper.ErrNotFound, roleID)
	}
	return scanRole(r)
}

func (s *SQLRoleStore) GetRoleByName(ctx context.Context, tenantID, name string) (*gatekeeper.Role, error) {
	q := `SELECT ` + roleColumns + ` FROM roles WHERE tenant_id = :tenant_id AND name = :name`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"tenant_id": tenantID, "name": name})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("%w: role %s", gatekeeper.ErrNotFound, name)
	}
	return scanRole(r)
}

func (s *SQLRoleStore) UpdateRole(ctx context.Context, role *gatekeeper.Role) error {
	q := `UPDATE roles SET name=:name, description=:description, updated_at=:updated_at WHERE id=:id AND tenant_id=:tenant_id`
	res, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":          role.ID,
		"tenant_id":   role.TenantID,
		"name":        role.Name,
		"description": role.Description,
		"updated_at":  role.UpdatedAt,
	})
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: role %s", gatekeeper.ErrNotFound, role.ID)
	}
	return nil
}

func (s *SQLRoleStore) DeleteRole(ctx context.Context, tenantID, roleID string) error {
	q := `DELETE FROM roles WHERE id = :id AND tenant_id = :tenant_id`
	res, err := s.db.NamedExecContext(ctx, q, map[string]any{"id": roleID, "tenant_id": tenantID})
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: role %s", gatekeeper.ErrNotFound, roleID)
	}
	return nil
}

func (s *SQLRoleStore) ListRoles(ctx context.Context, tenantID string) ([]*gatekeeper.Role, error) {
	q := `SELECT ` + roleColumns + ` FROM roles WHERE tenant_id = :tenant_id ORDER BY name`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"tenant_id": tenantID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*gatekeeper.Role, 0)
	for r.Next() {
		role, err := scanRole(r)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, nil
}

func scanRole(r rowScanner) (*gatekeeper.Role, error) {
	var id, tenant, name, description string
	var systemInt int
	var createdRaw, updatedRaw any
	if err := r.Scan(&id, &tenant, &name, &description, &systemInt, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	return &gatekeeper.Role{
		ID:          id,
		TenantID:    tenant,
		Name:        name,
		Description: description,
		IsSystem:    systemInt != 0,
		CreatedAt:   scanTime(createdRaw),
		UpdatedAt:   scanTime(updatedRaw),
	}, nil
}

// SQLPermissionStore persists permissions and role links in SQL
type SQLPermissionStore struct {
	db *squealx.DB
}

func NewSQLPermissionStore(db *squealx.DB) *SQLPermissionStore {
	return &SQLPermissionStore{db: db}
}

func (s *SQLPermissionStore) CreatePermission(ctx context.Context, perm *gatekeeper.Permission) error {
	q := `INSERT INTO permissions(id, tenant_id, name, description, created_at) VALUES(:id, :tenant_id, :name, :description, :created_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":          perm.ID,
		"tenant_id":   perm.TenantID,
		"name":        perm.Name,
		"description": perm.Description,
		"created_at":  perm.CreatedAt,
	})
	return err
}

func (s *SQLPermissionStore) GetPermissionByName(ctx context.Context, tenantID, name string) (*gatekeeper.Permission, error) {
	q := `SELECT id, tenant_id, name, description, created_at FROM permissions WHERE tenant_id = :tenant_id AND name = :name`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"tenant_id": tenantID, "name": name})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("%w: permission %s", gatekeeper.ErrNotFound, name)
	}
	return scanPermission(r)
}

func (s *SQLPermissionStore) ListPermissions(ctx context.Context, tenantID string) ([]*gatekeeper.Permission, error) {
	q := `SELECT id, tenant_id, name, description, created_at FROM permissions WHERE tenant_id = :tenant_id ORDER BY name`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"tenant_id": tenantID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*gatekeeper.Permission, 0)
	for r.Next() {
		p, err := scanPermission(r)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *SQLPermissionStore) AttachPermission(ctx context.Context, tenantID, roleID, permID string) error {
	q := `INSERT OR IGNORE INTO role_permissions(tenant_id, role_id, permission_id) VALUES(:tenant_id, :role_id, :permission_id)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"tenant_id": tenantID, "role_id": roleID, "permission_id": permID})
	return err
}

func (s *SQLPermissionStore) DetachPermission(ctx context.Context, tenantID, roleID, permID string) error {
	q := `DELETE FROM role_permissions WHERE role_id = :role_id AND permission_id = :permission_id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"role_id": roleID, "permission_id": permID})
	return err
}

func (s *SQLPermissionStore) RolePermissions(ctx context.Context, tenantID, roleID string) ([]*gatekeeper.Permission, error) {
	q := `SELECT p.id, p.tenant_id, p.name, p.description, p.created_at FROM permissions p JOIN role_permissions rp ON rp.permission_id = p.id WHERE rp.role_id = :role_id AND p.tenant_id = :tenant_id ORDER BY p.name`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"role_id": roleID, "tenant_id": tenantID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*gatekeeper.Permission, 0)
	for r.Next() {
		p, err := scanPermission(r)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func scanPermission(r rowScanner) (*gatekeeper.Permission, error) {
	var id, tenant, name, description string
	var createdRaw any
	if err := r.Scan(&id, &tenant, &name, &description, &createdRaw); err != nil {
		return nil, err
	}
	return &gatekeeper.Permission{
		ID:          id,
		TenantID:    tenant,
		Name:        name,
		Description: description,
		CreatedAt:   scanTime(createdRaw),
	}, nil
}

// SQLAssignmentStore persists user-role bindings in SQL
type SQLAssignmentStore struct {
	db *squealx.DB
}

func NewSQLAssignmentStore(db *squealx.DB) *SQLAssignmentStore {
	return &SQLAssignmentStore{db: db}
}

func (s *SQLAssignmentStore) Assign(ctx context.Context, a *gatekeeper.RoleAssignment) error {
	if a.AssignedAt.IsZero() {
		a.AssignedAt = time.Now().UTC()
	}
	q := `INSERT OR REPLACE INTO user_roles(tenant_id, user_id, role_id, assigned_by, assigned_at, expires_at) VALUES(:tenant_id, :user_id, :role_id, :assigned_by, :assigned_at, :expires_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"tenant_id":   a.TenantID,
		"user_id":     a.UserID,
		"role_id":     a.RoleID,
		"assigned_by": a.AssignedBy,
		"assigned_at": a.AssignedAt,
		"expires_at":  sqlNullTimeOrNil(a.ExpiresAt),
	})
	return err
}

func (s *SQLAssignmentStore) Revoke(ctx context.Context, tenantID, userID, roleID string) error {
	q := `DELETE FROM user_roles WHERE tenant_id = :tenant_id AND user_id = :user_id AND role_id = :role_id`
	res, err := s.db.NamedExecContext(ctx, q, map[string]any{"tenant_id": tenantID, "user_id": userID, "role_id": roleID})
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: assignment %s/%s", gatekeeper.ErrNotFound, userID, roleID)
	}
	return nil
}

func (s *SQLAssignmentStore) UserAssignments(ctx context.Context, tenantID, userID string) ([]*gatekeeper.RoleAssignment, error) {
	q := `SELECT tenant_id, user_id, role_id, assigned_by, assigned_at, expires_at FROM user_roles WHERE tenant_id = :tenant_id AND user_id = :user_id`
	return s.queryAssignments(ctx, q, map[string]any{"tenant_id": tenantID, "user_id": userID})
}

func (s *SQLAssignmentStore) RoleAssignees(ctx context.Context, tenantID, roleID string) ([]*gatekeeper.RoleAssignment, error) {
	q := `SELECT tenant_id, user_id, role_id, assigned_by, assigned_at, expires_at FROM user_roles WHERE tenant_id = :tenant_id AND role_id = :role_id`
	return s.queryAssignments(ctx, q, map[string]any{"tenant_id": tenantID, "role_id": roleID})
}

func (s *SQLAssignmentStore) queryAssignments(ctx context.Context, q string, params map[string]any) ([]*gatekeeper.RoleAssignment, error) {
	r, err := s.db.NamedQueryContext(ctx, q, params)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*gatekeeper.RoleAssignment, 0)
	for r.Next() {
		var tenant, user, role, assignedBy string
		var assignedRaw, expiresRaw any
		if err := r.Scan(&tenant, &user, &role, &assignedBy, &assignedRaw, &expiresRaw); err != nil {
			return nil, err
		}
		out = append(out, &gatekeeper.RoleAssignment{
			TenantID:   tenant,
			UserID:     user,
			RoleID:     role,
			AssignedBy: assignedBy,
			AssignedAt: scanTime(assignedRaw),
			ExpiresAt:  scanTime(expiresRaw),
		})
	}
	return out, nil
}
