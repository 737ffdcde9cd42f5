package gatekeeper

import (
	"encoding/json"
	"time"
)

// Effect represents the outcome a policy asserts
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Principals selects who a policy applies to. Both sets empty means the
// policy applies to every principal; the literal "*" in either set matches
// any user or any role respectively.
type Principals struct {
	Roles []string `json:"roles" yaml:"roles"`
	Users []string `json:"users" yaml:"users"`
}

// Empty reports whether no principal restriction is present.
func (p Principals) Empty() bool {
	return len(p.Roles) == 0 && len(p.Users) == 0
}

// Conditions maps a context attribute name to a predicate. A predicate is
// either a literal value (implies equality) or an operator map such as
// {"gte": 5} using the operators in conditionOps.
type Conditions map[string]any

// Policy represents a tenant-scoped authorization rule. A policy with empty
// Principals, Actions and Resources is a valid "matches everything" policy.
type Policy struct {
	ID          string     `json:"id" yaml:"id"`
	TenantID    string     `json:"tenant_id" yaml:"tenant_id"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Effect      Effect     `json:"effect" yaml:"effect"`
	Principals  Principals `json:"principals" yaml:"principals"`
	Actions     []string   `json:"actions" yaml:"actions"`     // glob patterns, empty = match-all
	Resources   []string   `json:"resources" yaml:"resources"` // glob patterns, empty = match-all
	Conditions  Conditions `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	IsActive    bool       `json:"is_active" yaml:"is_active"`
	Priority    int        `json:"priority" yaml:"priority"` // higher = evaluated with precedence
	CreatedAt   time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" yaml:"updated_at"`
}

// Document renders the policy as a generic map, the shape the validator
// checks before persistence.
func (p *Policy) Document() map[string]any {
	data, _ := json.Marshal(p)
	doc := make(map[string]any)
	_ = json.Unmarshal(data, &doc)
	return doc
}

// Decision represents the result of a single authorization evaluation.
// It is computed fresh per call and never persisted by the engine itself.
type Decision struct {
	Allowed         bool   `json:"allowed"`
	MatchedPolicyID string `json:"matched_policy_id,omitempty"`
	Effect          Effect `json:"effect,omitempty"`
	Reason          string `json:"reason"`
}

// PolicyBuilder provides a fluent API for constructing policies.
type PolicyBuilder struct {
	p *Policy
}

func NewPolicyBuilder() *PolicyBuilder {
	return &PolicyBuilder{p: &Policy{Actions: []string{}, Resources: []string{}, IsActive: true}}
}

func (b *PolicyBuilder) ID(id string) *PolicyBuilder       { b.p.ID = id; return b }
func (b *PolicyBuilder) Tenant(t string) *PolicyBuilder    { b.p.TenantID = t; return b }
func (b *PolicyBuilder) Name(n string) *PolicyBuilder      { b.p.Name = n; return b }
func (b *PolicyBuilder) Effect(e Effect) *PolicyBuilder    { b.p.Effect = e; return b }
func (b *PolicyBuilder) Priority(prio int) *PolicyBuilder  { b.p.Priority = prio; return b }
func (b *PolicyBuilder) Active(on bool) *PolicyBuilder     { b.p.IsActive = on; return b }
func (b *PolicyBuilder) Roles(r ...string) *PolicyBuilder  { b.p.Principals.Roles = append(b.p.Principals.Roles, r...); return b }
func (b *PolicyBuilder) Users(u ...string) *PolicyBuilder  { b.p.Principals.Users = append(b.p.Principals.Users, u...); return b }
func (b *PolicyBuilder) Actions(a ...string) *PolicyBuilder {
	b.p.Actions = append(b.p.Actions, a...)
	return b
}
func (b *PolicyBuilder) Resources(r ...string) *PolicyBuilder {
	b.p.Resources = append(b.p.Resources, r...)
	return b
}
func (b *PolicyBuilder) Condition(attribute string, predicate any) *PolicyBuilder {
	if b.p.Conditions == nil {
		b.p.Conditions = Conditions{}
	}
	b.p.Conditions[attribute] = predicate
	return b
}
func (b *PolicyBuilder) Build() *Policy { return b.p }
