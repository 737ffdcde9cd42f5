package stores

import (
	"context"
	"fmt"

	"github.com/oarkflow/gatekeeper"
	"github.com/oarkflow/squealx"
)

// SQLRequestStore persists access requests and their action trail in SQL
type SQLRequestStore struct {
	db *squealx.DB
}

func NewSQLRequestStore(db *squealx.DB) *SQLRequestStore {
	return &SQLRequestStore{db: db}
}

func (s *SQLRequestStore) CreateRequest(ctx context.Context, req *gatekeeper.AccessRequest) error {
	q := `INSERT INTO access_requests(id, tenant_id, requester_id, role_id, permission, justification, status, duration_hours, resolved_by, resolved_at, expires_at, created_at, updated_at) VALUES(:id, :tenant_id, :requester_id, :role_id, :permission, :justification, :status, :duration_hours, :resolved_by, :resolved_at, :expires_at, :created_at, :updated_at)`
	_, err := s.db.NamedExecContext(ctx, q, requestParams(req))
	return err
}

func (s *SQLRequestStore) UpdateRequest(ctx context.Context, req *gatekeeper.AccessRequest) error {
	q := `UPDATE access_requests SET status=:status, resolved_by=:resolved_by, resolved_at=:resolved_at, expires_at=:expires_at, updated_at=:updated_at WHERE id=:id AND tenant_id=:tenant_id`
	res, err := s.db.NamedExecContext(ctx, q, requestParams(req))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: request %s", gatekeeper.ErrNotFound, req.ID)
	}
	return nil
}

const requestColumns = `id, tenant_id, requester_id, role_id, permission, justification, status, duration_hours, resolved_by, resolved_at, expires_at, created_at, updated_at`

func (s *SQLRequestStore) GetRequest(ctx context.Context, tenantID, requestID string) (*gatekeeper.AccessRequest, error) {
	q := `SELECT ` + requestColumns + ` FROM access_requests WHERE id = :id AND tenant_id = :tenant_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": requestID, "tenant_id": tenantID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("%w: request %s", gatekeeper.ErrNotFound, requestID)
	}
	return scanRequest(r)
}

func (s *SQLRequestStore) ListRequests(ctx context.Context, tenantID string, status gatekeeper.RequestStatus) ([]*gatekeeper.AccessRequest, error) {
	q := `SELECT ` + requestColumns + ` FROM access_requests WHERE tenant_id = :tenant_id`
	params := map[string]any{"tenant_id": tenantID}
	if status != "" {
		q += ` AND status = :status`
		params["status"] = string(status)
	}
	q += ` ORDER BY created_at`
	return s.queryRequests(ctx, q, params)
}

func (s *SQLRequestStore) ListRequestsByUser(ctx context.Context, tenantID, userID string) ([]*gatekeeper.AccessRequest, error) {
	q := `SELECT ` + requestColumns + ` FROM access_requests WHERE tenant_id = :tenant_id AND requester_id = :requester_id ORDER BY created_at`
	return s.queryRequests(ctx, q, map[string]any{"tenant_id": tenantID, "requester_id": userID})
}

func (s *SQLRequestStore) AddAction(ctx context.Context, action *gatekeeper.ApprovalAction) error {
	q := `INSERT INTO approval_actions(id, request_id, actor_id, action, comment, created_at) VALUES(:id, :request_id, :actor_id, :action, :comment, :created_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":         action.ID,
		"request_id": action.RequestID,
		"actor_id":   action.ActorID,
		"action":     action.Action,
		"comment":    action.Comment,
		"created_at": action.CreatedAt,
	})
	return err
}

func (s *SQLRequestStore) RequestActions(ctx context.Context, requestID string) ([]*gatekeeper.ApprovalAction, error) {
	q := `SELECT id, request_id, actor_id, action, comment, created_at FROM approval_actions WHERE request_id = :request_id ORDER BY created_at`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"request_id": requestID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*gatekeeper.ApprovalAction, 0)
	for r.Next() {
		var id, reqID, actor, act, comment string
		var createdRaw any
		if err := r.Scan(&id, &reqID, &actor, &act, &comment, &createdRaw); err != nil {
			return nil, err
		}
		out = append(out, &gatekeeper.ApprovalAction{
			ID:        id,
			RequestID: reqID,
			ActorID:   actor,
			Action:    act,
			Comment:   comment,
			CreatedAt: scanTime(createdRaw),
		})
	}
	return out, nil
}

func (s *SQLRequestStore) queryRequests(ctx context.Context, q string, params map[string]any) ([]*gatekeeper.AccessRequest, error) {
	r, err := s.db.NamedQueryContext(ctx, q, params)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*gatekeeper.AccessRequest, 0)
	for r.Next() {
		req, err := scanRequest(r)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}

func requestParams(req *gatekeeper.AccessRequest) map[string]any {
	return map[string]any{
		"id":             req.ID,
		"tenant_id":      req.TenantID,
		"requester_id":   req.RequesterID,
		"role_id":        req.RoleID,
		"permission":     req.Permission,
		"justification":  req.Justification,
		"status":         string(req.Status),
		"duration_hours": req.DurationHours,
		"resolved_by":    req.ResolvedBy,
		"resolved_at":    sqlNullTimeOrNil(req.ResolvedAt),
		"expires_at":     sqlNullTimeOrNil(req.ExpiresAt),
		"created_at":     req.CreatedAt,
		"updated_at":     req.UpdatedAt,
	}
}

func scanRequest(r rowScanner) (*gatekeeper.AccessRequest, error) {
	var id, tenant, requester, roleID, permission, justification, status, resolvedBy string
	var durationHours int
	var resolvedRaw, expiresRaw, createdRaw, updatedRaw any
	if err := r.Scan(&id, &tenant, &requester, &roleID, &permission, &justification, &status, &durationHours, &resolvedBy, &resolvedRaw, &expiresRaw, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	return &gatekeeper.AccessRequest{
		ID:            id,
		TenantID:      tenant,
		RequesterID:   requester,
		RoleID:        roleID,
		Permission:    permission,
		Justification: justification,
		Status:        gatekeeper.RequestStatus(status),
		DurationHours: durationHours,
		ResolvedBy:    resolvedBy,
		ResolvedAt:    scanTime(resolvedRaw),
		ExpiresAt:     scanTime(expiresRaw),
		CreatedAt:     scanTime(createdRaw),
		UpdatedAt:     scanTime(updatedRaw),
	}, nil
}
