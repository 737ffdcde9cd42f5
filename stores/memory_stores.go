package stores

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/oarkflow/gatekeeper"
)

// MemoryPolicyStore keeps policies in-memory for testing/demo
type MemoryPolicyStore struct {
	mu       sync.RWMutex
	policies map[string]*gatekeeper.Policy
}

func NewMemoryPolicyStore() *MemoryPolicyStore {
	return &MemoryPolicyStore{policies: make(map[string]*gatekeeper.Policy)}
}

func (s *MemoryPolicyStore) CreatePolicy(ctx context.Context, p *gatekeeper.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.policies[p.ID]; exists {
		return fmt.Errorf("%w: policy %s", gatekeeper.ErrConflict, p.ID)
	}
	cop := *p
	s.policies[p.ID] = &cop
	return nil
}

func (s *MemoryPolicyStore) GetPolicy(ctx context.Context, tenantID, policyID string) (*gatekeeper.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[policyID]
	if !ok || p.TenantID != tenantID {
		return nil, fmt.Errorf("%w: policy %s", gatekeeper.ErrNotFound, policyID)
	}
	cop := *p
	return &cop, nil
}

func (s *MemoryPolicyStore) UpdatePolicy(ctx context.Context, p *gatekeeper.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.policies[p.ID]
	if !ok || old.TenantID != p.TenantID {
		return fmt.Errorf("%w: policy %s", gatekeeper.ErrNotFound, p.ID)
	}
	cop := *p
	s.policies[p.ID] = &cop
	return nil
}

func (s *MemoryPolicyStore) DeletePolicy(ctx context.Context, tenantID, policyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.policies[policyID]
	if !ok || p.TenantID != tenantID {
		return fmt.Errorf("%w: policy %s", gatekeeper.ErrNotFound, policyID)
	}
	delete(s.policies, policyID)
	return nil
}

func (s *MemoryPolicyStore) ListPolicies(ctx context.Context, tenantID string, activeOnly bool) ([]*gatekeeper.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*gatekeeper.Policy, 0)
	for _, p := range s.policies {
		if p.TenantID != tenantID {
			continue
		}
		if activeOnly && !p.IsActive {
			continue
		}
		cop := *p
		result = append(result, &cop)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *MemoryPolicyStore) SetPolicyActive(ctx context.Context, tenantID, policyID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.policies[policyID]
	if !ok || p.TenantID != tenantID {
		return fmt.Errorf("%w: policy %s", gatekeeper.ErrNotFound, policyID)
	}
	p.IsActive = active
	return nil
}

func (s *MemoryPolicyStore) ActivePolicies(ctx context.Context, tenantID string) ([]*gatekeeper.Policy, error) {
	return s.ListPolicies(ctx, tenantID, true)
}

// MemoryRoleStore keeps roles in-memory
type MemoryRoleStore struct {
	mu    sync.RWMutex
	roles map[string]*gatekeeper.Role
}

func NewMemoryRoleStore() *MemoryRoleStore {
	return &MemoryRoleStore{roles: make(map[string]*gatekeeper.Role)}
}

func (s *MemoryRoleStore) CreateRole(ctx context.Context, role *gatekeeper.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.roles {
		if r.TenantID == role.TenantID && r.Name == role.Name {
			return fmt.Errorf("%w: role %s", gatekeeper.ErrConflict, role.Name)
		}
	}
	cop := *role
	s.roles[role.ID] = &cop
	return nil
}

func (s *MemoryRoleStore) GetRole(ctx context.Context, tenantID, roleID string) (*gatekeeper.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[roleID]
	if !ok || r.TenantID != tenantID {
		return nil, fmt.Errorf("%w: role %s", gatekeeper.ErrNotFound, roleID)
	}
	cop := *r
	return &cop, nil
}

func (s *MemoryRoleStore) GetRoleByName(ctx context.Context, tenantID, name string) (*gatekeeper.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.roles {
		if r.TenantID == tenantID && r.Name == name {
			cop := *r
			return &cop, nil
		}
	}
	return nil, fmt.Errorf("%w: role %s", gatekeeper.ErrNotFound, name)
}

func (s *MemoryRoleStore) UpdateRole(ctx context.Context, role *gatekeeper.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.roles[role.ID]
	if !ok || old.TenantID != role.TenantID {
		return fmt.Errorf("%w: role %s", gatekeeper.ErrNotFound, role.ID)
	}
	cop := *role
	s.roles[role.ID] = &cop
	return nil
}

func (s *MemoryRoleStore) DeleteRole(ctx context.Context, tenantID, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[roleID]
	if !ok || r.TenantID != tenantID {
		return fmt.Errorf("%w: role %s", gatekeeper.ErrNotFound, roleID)
	}
	delete(s.roles, roleID)
	return nil
}

func (s *MemoryRoleStore) ListRoles(ctx context.Context, tenantID string) ([]*gatekeeper.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*gatekeeper.Role, 0)
	for _, r := range s.roles {
		if r.TenantID == tenantID {
			cop := *r
			result = append(result, &cop)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// MemoryPermissionStore keeps permissions and role links in-memory
type MemoryPermissionStore struct {
	mu          sync.RWMutex
	permissions map[string]*gatekeeper.Permission
	rolePerms   map[string]map[string]struct{} // roleID -> permID set
}

func NewMemoryPermissionStore() *MemoryPermissionStore {
	return &MemoryPermissionStore{
		permissions: make(map[string]*gatekeeper.Permission),
		rolePerms:   make(map[string]map[string]struct{}),
	}
}

func (s *MemoryPermissionStore) CreatePermission(ctx context.Context, perm *gatekeeper.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.permissions {
		if p.TenantID == perm.TenantID && p.Name == perm.Name {
			return fmt.Errorf("%w: permission %s", gatekeeper.ErrConflict, perm.Name)
		}
	}
	cop := *perm
	s.permissions[perm.ID] = &cop
	return nil
}

func (s *MemoryPermissionStore) GetPermissionByName(ctx context.Context, tenantID, name string) (*gatekeeper.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.permissions {
		if p.TenantID == tenantID && p.Name == name {
			cop := *p
			return &cop, nil
		}
	}
	return nil, fmt.Errorf("%w: permission %s", gatekeeper.ErrNotFound, name)
}

func (s *MemoryPermissionStore) ListPermissions(ctx context.Context, tenantID string) ([]*gatekeeper.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*gatekeeper.Permission, 0)
	for _, p := range s.permissions {
		if p.TenantID == tenantID {
			cop := *p
			result = append(result, &cop)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *MemoryPermissionStore) AttachPermission(ctx context.Context, tenantID, roleID, permID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rolePerms[roleID] == nil {
		s.rolePerms[roleID] = make(map[string]struct{})
	}
	s.rolePerms[roleID][permID] = struct{}{}
	return nil
}

func (s *MemoryPermissionStore) DetachPermission(ctx context.Context, tenantID, roleID, permID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok := s.rolePerms[roleID]; ok {
		delete(set, permID)
	}
	return nil
}

func (s *MemoryPermissionStore) RolePermissions(ctx context.Context, tenantID, roleID string) ([]*gatekeeper.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*gatekeeper.Permission, 0)
	for permID := range s.rolePerms[roleID] {
		if p, ok := s.permissions[permID]; ok && p.TenantID == tenantID {
			cop := *p
			result = append(result, &cop)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// MemoryAssignmentStore keeps user-role bindings in-memory
type MemoryAssignmentStore struct {
	mu          sync.RWMutex
	assignments []*gatekeeper.RoleAssignment
}

func NewMemoryAssignmentStore() *MemoryAssignmentStore {
	return &MemoryAssignmentStore{assignments: make([]*gatekeeper.RoleAssignment, 0)}
}

func (s *MemoryAssignmentStore) Assign(ctx context.Context, a *gatekeeper.RoleAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cop := *a
	s.assignments = append(s.assignments, &cop)
	return nil
}

func (s *MemoryAssignmentStore) Revoke(ctx context.Context, tenantID, userID, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.assignments[:0]
	removed := false
	for _, a := range s.assignments {
		if a.TenantID == tenantID && a.UserID == userID && a.RoleID == roleID {
			removed = true
			continue
		}
		kept = append(kept, a)
	}
	s.assignments = kept
	if !removed {
		return fmt.Errorf("%w: assignment %s/%s", gatekeeper.ErrNotFound, userID, roleID)
	}
	return nil
}

func (s *MemoryAssignmentStore) UserAssignments(ctx context.Context, tenantID, userID string) ([]*gatekeeper.RoleAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*gatekeeper.RoleAssignment, 0)
	for _, a := range s.assignments {
		if a.TenantID == tenantID && a.UserID == userID {
			cop := *a
			result = append(result, &cop)
		}
	}
	return result, nil
}

func (s *MemoryAssignmentStore) RoleAssignees(ctx context.Context, tenantID, roleID string) ([]*gatekeeper.RoleAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*gatekeeper.RoleAssignment, 0)
	for _, a := range s.assignments {
		if a.TenantID == tenantID && a.RoleID == roleID {
			cop := *a
			result = append(result, &cop)
		}
	}
	return result, nil
}

// MemoryRequestStore keeps access requests in-memory
type MemoryRequestStore struct {
	mu       sync.RWMutex
	requests map[string]*gatekeeper.AccessRequest
	actions  map[string][]*gatekeeper.ApprovalAction
}

func NewMemoryRequestStore() *MemoryRequestStore {
	return &MemoryRequestStore{
		requests: make(map[string]*gatekeeper.AccessRequest),
		actions:  make(map[string][]*gatekeeper.ApprovalAction),
	}
}

func (s *MemoryRequestStore) CreateRequest(ctx context.Context, req *gatekeeper.AccessRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cop := *req
	s.requests[req.ID] = &cop
	return nil
}

func (s *MemoryRequestStore) GetRequest(ctx context.Context, tenantID, requestID string) (*gatekeeper.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[requestID]
	if !ok || r.TenantID != tenantID {
		return nil, fmt.Errorf("%w: request %s", gatekeeper.ErrNotFound, requestID)
	}
	cop := *r
	return &cop, nil
}

func (s *MemoryRequestStore) UpdateRequest(ctx context.Context, req *gatekeeper.AccessRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.requests[req.ID]
	if !ok || old.TenantID != req.TenantID {
		return fmt.Errorf("%w: request %s", gatekeeper.ErrNotFound, req.ID)
	}
	cop := *req
	s.requests[req.ID] = &cop
	return nil
}

func (s *MemoryRequestStore) ListRequests(ctx context.Context, tenantID string, status gatekeeper.RequestStatus) ([]*gatekeeper.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*gatekeeper.AccessRequest, 0)
	for _, r := range s.requests {
		if r.TenantID != tenantID {
			continue
		}
		if status != "" && r.Status != status {
			continue
		}
		cop := *r
		result = append(result, &cop)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *MemoryRequestStore) ListRequestsByUser(ctx context.Context, tenantID, userID string) ([]*gatekeeper.AccessRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*gatekeeper.AccessRequest, 0)
	for _, r := range s.requests {
		if r.TenantID == tenantID && r.RequesterID == userID {
			cop := *r
			result = append(result, &cop)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *MemoryRequestStore) AddAction(ctx context.Context, action *gatekeeper.ApprovalAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cop := *action
	s.actions[action.RequestID] = append(s.actions[action.RequestID], &cop)
	return nil
}

func (s *MemoryRequestStore) RequestActions(ctx context.Context, requestID string) ([]*gatekeeper.ApprovalAction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*gatekeeper.ApprovalAction, 0, len(s.actions[requestID]))
	for _, a := range s.actions[requestID] {
		cop := *a
		result = append(result, &cop)
	}
	return result, nil
}

// MemoryAuditStore keeps decision events in-memory
type MemoryAuditStore struct {
	mu     sync.RWMutex
	events []gatekeeper.AuditEvent
}

func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{events: make([]gatekeeper.AuditEvent, 0)}
}

func (s *MemoryAuditStore) Record(ctx context.Context, event gatekeeper.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *MemoryAuditStore) Query(ctx context.Context, filter gatekeeper.AuditFilter) ([]gatekeeper.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]gatekeeper.AuditEvent, 0)
	for _, e := range s.events {
		if filter.TenantID != "" && e.TenantID != filter.TenantID {
			continue
		}
		if filter.PrincipalID != "" && e.PrincipalID != filter.PrincipalID {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.Resource != "" && e.Resource != filter.Resource {
			continue
		}
		if filter.OnlyDenied && e.Allowed {
			continue
		}
		if !filter.Since.IsZero() && e.OccurredAt.Before(filter.Since) {
			continue
		}
		if !filter.Until.IsZero() && e.OccurredAt.After(filter.Until) {
			continue
		}
		result = append(result, e)
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result, nil
}
