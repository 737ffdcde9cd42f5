package stores

import (
	"context"

	"github.com/oarkflow/gatekeeper"
	"github.com/oarkflow/squealx"
)

// SQLAuditStore persists decision events in SQL
type SQLAuditStore struct {
	db *squealx.DB
}

func NewSQLAuditStore(db *squealx.DB) *SQLAuditStore {
	return &SQLAuditStore{db: db}
}

func (s *SQLAuditStore) Record(ctx context.Context, event gatekeeper.AuditEvent) error {
	q := `INSERT INTO audit_log(id, tenant_id, principal_id, action, resource, allowed, policy_id, reason, occurred_at) VALUES(:id, :tenant_id, :principal_id, :action, :resource, :allowed, :policy_id, :reason, :occurred_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":           event.ID,
		"tenant_id":    event.TenantID,
		"principal_id": event.PrincipalID,
		"action":       event.Action,
		"resource":     event.Resource,
		"allowed":      boolToInt(event.Allowed),
		"policy_id":    event.PolicyID,
		"reason":       event.Reason,
		"occurred_at":  event.OccurredAt,
	})
	return err
}

func (s *SQLAuditStore) Query(ctx context.Context, filter gatekeeper.AuditFilter) ([]gatekeeper.AuditEvent, error) {
	q := `SELECT id, tenant_id, principal_id, action, resource, allowed, policy_id, reason, occurred_at FROM audit_log WHERE 1=1`
	params := map[string]any{}
	if filter.TenantID != "" {
		q += " AND tenant_id = :tenant_id"
		params["tenant_id"] = filter.TenantID
	}
	if filter.PrincipalID != "" {
		q += " AND principal_id = :principal_id"
		params["principal_id"] = filter.PrincipalID
	}
	if filter.Action != "" {
		q += " AND action = :action"
		params["action"] = filter.Action
	}
	if filter.Resource != "" {
		q += " AND resource = :resource"
		params["resource"] = filter.Resource
	}
	if filter.OnlyDenied {
		q += " AND allowed = 0"
	}
	if !filter.Since.IsZero() {
		q += " AND occurred_at >= :since"
		params["since"] = filter.Since
	}
	if !filter.Until.IsZero() {
		q += " AND occurred_at <= :until"
		params["until"] = filter.Until
	}
	q += " ORDER BY occurred_at DESC"
	if filter.Limit > 0 {
		q += " LIMIT :limit"
		params["limit"] = filter.Limit
	}
	r, err := s.db.NamedQueryContext(ctx, q, params)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]gatekeeper.AuditEvent, 0)
	for r.Next() {
		var id, tenant, principal, action, resource, policyID, reason string
		var allowedInt int
		var occurredRaw any
		if err := r.Scan(&id, &tenant, &principal, &action, &resource, &allowedInt, &policyID, &reason, &occurredRaw); err != nil {
			return nil, err
		}
		out = append(out, gatekeeper.AuditEvent{
			ID:          id,
			TenantID:    tenant,
			PrincipalID: principal,
			Action:      action,
			Resource:    resource,
			Allowed:     allowedInt != 0,
			PolicyID:    policyID,
			Reason:      reason,
			OccurredAt:  scanTime(occurredRaw),
		})
	}
	return out, nil
}
