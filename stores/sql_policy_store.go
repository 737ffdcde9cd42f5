package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oarkflow/gatekeeper"
	"github.com/oarkflow/squealx"
)

// SQLPolicyStore persists policies in SQL (squealx)
type SQLPolicyStore struct {
	db *squealx.DB
}

func NewSQLPolicyStore(db *squealx.DB) *SQLPolicyStore {
	return &SQLPolicyStore{db: db}
}

func (s *SQLPolicyStore) CreatePolicy(ctx context.Context, p *gatekeeper.Policy) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	q := `INSERT INTO policies(id, tenant_id, name, description, effect, principals_json, actions_json, resources_json, conditions_json, is_active, priority, created_at, updated_at) VALUES(:id, :tenant_id, :name, :description, :effect, :principals_json, :actions_json, :resources_json, :conditions_json, :is_active, :priority, :created_at, :updated_at)`
	_, err := s.db.NamedExecContext(ctx, q, policyParams(p))
	return err
}

func (s *SQLPolicyStore) UpdatePolicy(ctx context.Context, p *gatekeeper.Policy) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	q := `UPDATE policies SET name=:name, description=:description, effect=:effect, principals_json=:principals_json, actions_json=:actions_json, resources_json=:resources_json, conditions_json=:conditions_json, is_active=:is_active, priority=:priority, updated_at=:updated_at WHERE id=:id AND tenant_id=:tenant_id`
	res, err := s.db.NamedExecContext(ctx, q, policyParams(p))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: policy %s", gatekeeper.ErrNotFound, p.ID)
	}
	return nil
}

func (s *SQLPolicyStore) DeletePolicy(ctx context.Context, tenantID, policyID string) error {
	q := `DELETE FROM policies WHERE id = :id AND tenant_id = :tenant_id`
	res, err := s.db.NamedExecContext(ctx, q, map[string]any{"id": policyID, "tenant_id": tenantID})
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: policy %s", gatekeeper.ErrNotFound, policyID)
	}
	return nil
}

func (s *SQLPolicyStore) SetPolicyActive(ctx context.Context, tenantID, policyID string, active bool) error {
	q := `UPDATE policies SET is_active = :is_active, updated_at = :updated_at WHERE id = :id AND tenant_id = :tenant_id`
	res, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":         policyID,
		"tenant_id":  tenantID,
		"is_active":  boolToInt(active),
		"updated_at": time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: policy %s", gatekeeper.ErrNotFound, policyID)
	}
	return nil
}

const policyColumns = `id, tenant_id, name, description, effect, principals_json, actions_json, resources_json, conditions_json, is_active, priority, created_at, updated_at`

func (s *SQLPolicyStore) GetPolicy(ctx context.Context, tenantID, policyID string) (*gatekeeper.Policy, error) {
	q := `SELECT ` + policyColumns + ` FROM policies WHERE id = :id AND tenant_id = :tenant_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": policyID, "tenant_id": tenantID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("%w: policy %s", gatekeeper.ErrNotFound, policyID)
	}
	return scanPolicy(r)
}

func (s *SQLPolicyStore) ListPolicies(ctx context.Context, tenantID string, activeOnly bool) ([]*gatekeeper.Policy, error) {
	q := `SELECT ` + policyColumns + ` FROM policies WHERE tenant_id = :tenant_id`
	if activeOnly {
		q += ` AND is_active = 1`
	}
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"tenant_id": tenantID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*gatekeeper.Policy, 0)
	for r.Next() {
		p, err := scanPolicy(r)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *SQLPolicyStore) ActivePolicies(ctx context.Context, tenantID string) ([]*gatekeeper.Policy, error) {
	return s.ListPolicies(ctx, tenantID, true)
}

func policyParams(p *gatekeeper.Policy) map[string]any {
	principals, _ := json.Marshal(p.Principals)
	actions, _ := json.Marshal(p.Actions)
	resources, _ := json.Marshal(p.Resources)
	conditions := ""
	if len(p.Conditions) > 0 {
		b, _ := json.Marshal(p.Conditions)
		conditions = string(b)
	}
	return map[string]any{
		"id":              p.ID,
		"tenant_id":       p.TenantID,
		"name":            p.Name,
		"description":     p.Description,
		"effect":          string(p.Effect),
		"principals_json": string(principals),
		"actions_json":    string(actions),
		"resources_json":  string(resources),
		"conditions_json": conditions,
		"is_active":       boolToInt(p.IsActive),
		"priority":        p.Priority,
		"created_at":      p.CreatedAt,
		"updated_at":      p.UpdatedAt,
	}
}

func scanPolicy(r rowScanner) (*gatekeeper.Policy, error) {
	var id, tenant, name, description, effect, principalsJSON, actionsJSON, resourcesJSON, conditionsJSON string
	var activeInt, priority int
	var createdRaw, updatedRaw any
	if err := r.Scan(&id, &tenant, &name, &description, &effect, &principalsJSON, &actionsJSON, &resourcesJSON, &conditionsJSON, &activeInt, &priority, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	p := &gatekeeper.Policy{
		ID:          id,
		TenantID:    tenant,
		Name:        name,
		Description: description,
		Effect:      gatekeeper.Effect(effect),
		IsActive:    activeInt != 0,
		Priority:    priority,
		CreatedAt:   scanTime(createdRaw),
		UpdatedAt:   scanTime(updatedRaw),
	}
	_ = json.Unmarshal([]byte(principalsJSON), &p.Principals)
	_ = json.Unmarshal([]byte(actionsJSON), &p.Actions)
	_ = json.Unmarshal([]byte(resourcesJSON), &p.Resources)
	if conditionsJSON != "" {
		_ = json.Unmarshal([]byte(conditionsJSON), &p.Conditions)
	}
	return p, nil
}
