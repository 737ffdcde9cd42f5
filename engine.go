package gatekeeper

import (
	"context"
	"fmt"
	"sort"

	"github.com/oarkflow/gatekeeper/logger"
)

// PolicySource supplies the active policy set for a tenant. Implementations
// live in stores/; the engine never caches what they return.
type PolicySource interface {
	ActivePolicies(ctx context.Context, tenantID string) ([]*Policy, error)
}

// RoleResolver resolves the role names a principal holds within a tenant.
type RoleResolver interface {
	RolesForPrincipal(ctx context.Context, tenantID, principalID string) ([]string, error)
}

// RoleResolverFunc adapts a plain function to the RoleResolver interface.
type RoleResolverFunc func(ctx context.Context, tenantID, principalID string) ([]string, error)

func (f RoleResolverFunc) RolesForPrincipal(ctx context.Context, tenantID, principalID string) ([]string, error) {
	return f(ctx, tenantID, principalID)
}

// ReasonImplicitDeny is the reason attached to a decision when no policy
// matched the request.
const ReasonImplicitDeny = "No matching policy found (implicit deny)"

// EvalRequest is one item of a bulk evaluation.
type EvalRequest struct {
	PrincipalID string         `json:"principal_id"`
	Action      string         `json:"action"`
	Resource    string         `json:"resource"`
	Context     map[string]any `json:"context,omitempty"`
}

// Engine evaluates authorization requests against a tenant's policy set.
// It holds no mutable state of its own: identical inputs against identical
// collaborator state always yield identical decisions.
type Engine struct {
	policies PolicySource
	roles    RoleResolver
	log      logger.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger used for evaluation traces.
func WithLogger(l logger.Logger) EngineOption {
	return func(e *Engine) { e.log = l }
}

// NewEngine builds an evaluation engine over the given policy source and
// role resolver.
func NewEngine(policies PolicySource, roles RoleResolver, opts ...EngineOption) *Engine {
	e := &Engine{policies: policies, roles: roles, log: logger.NewNullLogger()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SortPolicies orders policies for evaluation: priority descending, then
// creation time ascending so the oldest policy wins a priority tie. The sort
// is stable, so equal keys keep their incoming order.
func SortPolicies(policies []*Policy) {
	sort.SliceStable(policies, func(i, j int) bool {
		if policies[i].Priority != policies[j].Priority {
			return policies[i].Priority > policies[j].Priority
		}
		return policies[i].CreatedAt.Before(policies[j].CreatedAt)
	})
}

// Evaluate runs a single authorization request through the tenant's policy
// set and returns the decision.
//
// Every active policy is considered. Among matching policies the engine
// tracks the highest-priority deny and the highest-priority allow; a later
// match replaces a tracked one only when its priority is strictly greater,
// so the first policy seen at a given priority holds it. A matching deny
// wins over any allow regardless of priority. If nothing matches the
// request is denied implicitly.
//
// Collaborator failures propagate as errors; the engine never converts a
// failure into an allow.
func (e *Engine) Evaluate(ctx context.Context, tenantID, principalID, action, resource string, reqCtx map[string]any) (*Decision, error) {
	policies, err := e.policies.ActivePolicies(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("fetch policies for tenant %s: %w", tenantID, err)
	}
	roleNames, err := e.roles.RolesForPrincipal(ctx, tenantID, principalID)
	if err != nil {
		return nil, fmt.Errorf("resolve roles for principal %s: %w", principalID, err)
	}

	sorted := make([]*Policy, len(policies))
	copy(sorted, policies)
	SortPolicies(sorted)

	var denyMatched, allowMatched *Policy
	for _, p := range sorted {
		if !p.IsActive {
			continue
		}
		if !MatchPrincipal(p.Principals, roleNames, principalID) {
			continue
		}
		if !MatchPatterns(p.Actions, action) {
			continue
		}
		if !MatchPatterns(p.Resources, resource) {
			continue
		}
		if !EvaluateConditions(p.Conditions, reqCtx) {
			continue
		}
		switch p.Effect {
		case EffectDeny:
			if denyMatched == nil || p.Priority > denyMatched.Priority {
				denyMatched = p
			}
		case EffectAllow:
			if allowMatched == nil || p.Priority > allowMatched.Priority {
				allowMatched = p
			}
		}
	}

	var d *Decision
	switch {
	case denyMatched != nil:
		d = &Decision{
			Allowed:         false,
			MatchedPolicyID: denyMatched.ID,
			Effect:          EffectDeny,
			Reason:          fmt.Sprintf("Denied by policy: %s", denyMatched.Name),
		}
	case allowMatched != nil:
		d = &Decision{
			Allowed:         true,
			MatchedPolicyID: allowMatched.ID,
			Effect:          EffectAllow,
			Reason:          fmt.Sprintf("Allowed by policy: %s", allowMatched.Name),
		}
	default:
		d = &Decision{Allowed: false, Reason: ReasonImplicitDeny}
	}

	e.log.Debug("policy decision",
		"tenant", tenantID,
		"principal", principalID,
		"action", action,
		"resource", resource,
		"allowed", d.Allowed,
		"policy", d.MatchedPolicyID,
	)
	return d, nil
}

// EvaluateBulk evaluates requests in order and returns one decision per
// request at the same index. The first collaborator failure aborts the
// batch.
func (e *Engine) EvaluateBulk(ctx context.Context, tenantID string, requests []EvalRequest) ([]*Decision, error) {
	decisions := make([]*Decision, 0, len(requests))
	for _, r := range requests {
		d, err := e.Evaluate(ctx, tenantID, r.PrincipalID, r.Action, r.Resource, r.Context)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	return decisions, nil
}
