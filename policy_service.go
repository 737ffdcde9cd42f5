package gatekeeper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oarkflow/gatekeeper/logger"
)

// PolicyStore persists policies. It is a PolicySource, so a store can back
// an Engine directly.
type PolicyStore interface {
	PolicySource
	CreatePolicy(ctx context.Context, policy *Policy) error
	GetPolicy(ctx context.Context, tenantID, policyID string) (*Policy, error)
	UpdatePolicy(ctx context.Context, policy *Policy) error
	DeletePolicy(ctx context.Context, tenantID, policyID string) error
	ListPolicies(ctx context.Context, tenantID string, activeOnly bool) ([]*Policy, error)
	SetPolicyActive(ctx context.Context, tenantID, policyID string, active bool) error
}

// PolicyService manages the policy lifecycle: documents are validated
// before they reach the store, and invalid ones never do.
type PolicyService struct {
	store PolicyStore
	log   logger.Logger
	now   func() time.Time
}

func NewPolicyService(store PolicyStore, log logger.Logger) *PolicyService {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &PolicyService{store: store, log: log, now: time.Now}
}

// Create validates and persists a new policy. The store assigns nothing:
// missing IDs are generated here and timestamps are set on the way in.
func (s *PolicyService) Create(ctx context.Context, policy *Policy) (*Policy, ValidationResult, error) {
	if policy.Name == "" {
		return nil, ValidationResult{}, fmt.Errorf("%w: policy name is required", ErrInvalidRequest)
	}
	result := ValidatePolicy(policy.Document())
	if !result.Valid {
		return nil, result, fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(result.Errors, "; "))
	}
	if policy.ID == "" {
		policy.ID = newID()
	}
	now := s.now().UTC()
	policy.CreatedAt = now
	policy.UpdatedAt = now
	if err := s.store.CreatePolicy(ctx, policy); err != nil {
		return nil, result, err
	}
	s.log.Info("policy created", "tenant", policy.TenantID, "policy", policy.Name, "id", policy.ID, "effect", string(policy.Effect))
	for _, w := range result.Warnings {
		s.log.Info("policy warning", "policy", policy.Name, "warning", w)
	}
	return policy, result, nil
}

// Update validates and replaces an existing policy. Identity and creation
// time are preserved from the stored record.
func (s *PolicyService) Update(ctx context.Context, policy *Policy) (*Policy, ValidationResult, error) {
	existing, err := s.store.GetPolicy(ctx, policy.TenantID, policy.ID)
	if err != nil {
		return nil, ValidationResult{}, err
	}
	result := ValidatePolicy(policy.Document())
	if !result.Valid {
		return nil, result, fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(result.Errors, "; "))
	}
	policy.CreatedAt = existing.CreatedAt
	policy.UpdatedAt = s.now().UTC()
	if err := s.store.UpdatePolicy(ctx, policy); err != nil {
		return nil, result, err
	}
	s.log.Info("policy updated", "tenant", policy.TenantID, "policy", policy.Name, "id", policy.ID)
	return policy, result, nil
}

// Delete removes a policy.
func (s *PolicyService) Delete(ctx context.Context, tenantID, policyID string) error {
	if err := s.store.DeletePolicy(ctx, tenantID, policyID); err != nil {
		return err
	}
	s.log.Info("policy deleted", "tenant", tenantID, "id", policyID)
	return nil
}

// SetActive toggles a policy in or out of evaluation without deleting it.
func (s *PolicyService) SetActive(ctx context.Context, tenantID, policyID string, active bool) error {
	if err := s.store.SetPolicyActive(ctx, tenantID, policyID, active); err != nil {
		return err
	}
	s.log.Info("policy activation changed", "tenant", tenantID, "id", policyID, "active", active)
	return nil
}

// Get fetches one policy.
func (s *PolicyService) Get(ctx context.Context, tenantID, policyID string) (*Policy, error) {
	return s.store.GetPolicy(ctx, tenantID, policyID)
}

// List returns the tenant's policies, optionally only active ones, in
// evaluation order.
func (s *PolicyService) List(ctx context.Context, tenantID string, activeOnly bool) ([]*Policy, error) {
	policies, err := s.store.ListPolicies(ctx, tenantID, activeOnly)
	if err != nil {
		return nil, err
	}
	SortPolicies(policies)
	return policies, nil
}
