package gatekeeper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the declarative bootstrap document: tenants with their roles,
// permissions, policies and memberships, loadable from YAML or JSON and
// applied to stores in one pass.
type Config struct {
	Version int            `json:"version" yaml:"version"`
	Tenants []TenantConfig `json:"tenants" yaml:"tenants"`
}

type TenantConfig struct {
	ID          string             `json:"id" yaml:"id"`
	Name        string             `json:"name,omitempty" yaml:"name,omitempty"`
	Roles       []RoleConfig       `json:"roles,omitempty" yaml:"roles,omitempty"`
	Permissions []PermissionConfig `json:"permissions,omitempty" yaml:"permissions,omitempty"`
	Policies    []PolicyConfig     `json:"policies,omitempty" yaml:"policies,omitempty"`
	Memberships []MembershipConfig `json:"memberships,omitempty" yaml:"memberships,omitempty"`
}

// PolicyConfig is the declarative form of a policy. Active defaults to
// true when omitted, unlike the zero value of Policy.IsActive.
type PolicyConfig struct {
	ID          string     `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Effect      Effect     `json:"effect" yaml:"effect"`
	Principals  Principals `json:"principals,omitempty" yaml:"principals,omitempty"`
	Actions     []string   `json:"actions,omitempty" yaml:"actions,omitempty"`
	Resources   []string   `json:"resources,omitempty" yaml:"resources,omitempty"`
	Conditions  Conditions `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Priority    int        `json:"priority,omitempty" yaml:"priority,omitempty"`
	Active      *bool      `json:"is_active,omitempty" yaml:"is_active,omitempty"`
}

// Policy converts the declarative form to a Policy for the given tenant.
func (pc PolicyConfig) Policy(tenantID string) *Policy {
	active := true
	if pc.Active != nil {
		active = *pc.Active
	}
	return &Policy{
		ID:          pc.ID,
		TenantID:    tenantID,
		Name:        pc.Name,
		Description: pc.Description,
		Effect:      pc.Effect,
		Principals:  pc.Principals,
		Actions:     pc.Actions,
		Resources:   pc.Resources,
		Conditions:  pc.Conditions,
		IsActive:    active,
		Priority:    pc.Priority,
	}
}

type RoleConfig struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	System      bool     `json:"system,omitempty" yaml:"system,omitempty"`
	Permissions []string `json:"permissions,omitempty" yaml:"permissions,omitempty"`
}

type PermissionConfig struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

type MembershipConfig struct {
	UserID string `json:"user_id" yaml:"user_id"`
	Role   string `json:"role" yaml:"role"`
}

// LoadConfigYAML parses a YAML config document.
func LoadConfigYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml config: %w", err)
	}
	return &cfg, nil
}

// LoadConfigJSON parses a JSON config document.
func LoadConfigJSON(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse json config: %w", err)
	}
	return &cfg, nil
}

// LoadConfigFile reads path and parses it by extension; anything that is
// not .json is treated as YAML.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if isJSONPath(path) {
		return LoadConfigJSON(data)
	}
	return LoadConfigYAML(data)
}

func isJSONPath(path string) bool {
	return len(path) > 5 && path[len(path)-5:] == ".json"
}

// ToYAML renders the config as YAML.
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// ToJSON renders the config as indented JSON.
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// Validate checks the document: tenant IDs present and unique, role names
// unique per tenant, membership roles defined, and every policy passing
// ValidatePolicy. It returns one combined result; warnings from policy
// validation are carried through.
func (c *Config) Validate() ValidationResult {
	errs := []string{}
	warns := []string{}

	seenTenants := make(map[string]struct{})
	for ti, tenant := range c.Tenants {
		if tenant.ID == "" {
			errs = append(errs, fmt.Sprintf("tenant[%d]: id is required", ti))
			continue
		}
		if _, dup := seenTenants[tenant.ID]; dup {
			errs = append(errs, fmt.Sprintf("duplicate tenant id %q", tenant.ID))
		}
		seenTenants[tenant.ID] = struct{}{}

		roleNames := make(map[string]struct{})
		for _, role := range tenant.Roles {
			if role.Name == "" {
				errs = append(errs, fmt.Sprintf("tenant %q: role with empty name", tenant.ID))
				continue
			}
			if _, dup := roleNames[role.Name]; dup {
				errs = append(errs, fmt.Sprintf("tenant %q: duplicate role %q", tenant.ID, role.Name))
			}
			roleNames[role.Name] = struct{}{}
		}
		for _, m := range tenant.Memberships {
			if _, ok := roleNames[m.Role]; !ok {
				errs = append(errs, fmt.Sprintf("tenant %q: membership for %q references undefined role %q", tenant.ID, m.UserID, m.Role))
			}
		}
		for _, pc := range tenant.Policies {
			p := pc.Policy(tenant.ID)
			result := ValidatePolicy(p.Document())
			for _, e := range result.Errors {
				errs = append(errs, fmt.Sprintf("tenant %q policy %q: %s", tenant.ID, p.Name, e))
			}
			for _, w := range result.Warnings {
				warns = append(warns, fmt.Sprintf("tenant %q policy %q: %s", tenant.ID, p.Name, w))
			}
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs, Warnings: warns}
}

// Stats summarizes a config document for the CLI.
type Stats struct {
	Tenants     int `json:"tenants"`
	Roles       int `json:"roles"`
	Permissions int `json:"permissions"`
	Policies    int `json:"policies"`
	Memberships int `json:"memberships"`
}

func (c *Config) Stats() Stats {
	s := Stats{Tenants: len(c.Tenants)}
	for _, t := range c.Tenants {
		s.Roles += len(t.Roles)
		s.Permissions += len(t.Permissions)
		s.Policies += len(t.Policies)
		s.Memberships += len(t.Memberships)
	}
	return s
}

// Apply materializes the document: roles (with their permissions),
// standalone permissions, memberships and policies per tenant. The
// document must validate first. Existing roles and permissions are reused,
// so Apply is safe to run against a seeded store.
func (c *Config) Apply(ctx context.Context, rbac *RBACService, policies *PolicyService) error {
	if result := c.Validate(); !result.Valid {
		return fmt.Errorf("%w: invalid config: %s", ErrInvalidRequest, result.Errors[0])
	}
	for _, tenant := range c.Tenants {
		for _, pc := range tenant.Permissions {
			if _, err := rbac.permissions.GetPermissionByName(ctx, tenant.ID, pc.Name); err == nil {
				continue
			}
			if _, err := rbac.CreatePermission(ctx, tenant.ID, pc.Name, pc.Description); err != nil {
				return fmt.Errorf("tenant %s: create permission %s: %w", tenant.ID, pc.Name, err)
			}
		}
		for _, rc := range tenant.Roles {
			role, err := rbac.roles.GetRoleByName(ctx, tenant.ID, rc.Name)
			if err != nil {
				role, err = rbac.CreateRole(ctx, tenant.ID, rc.Name, rc.Description, rc.System)
				if err != nil {
					return fmt.Errorf("tenant %s: create role %s: %w", tenant.ID, rc.Name, err)
				}
			}
			for _, perm := range rc.Permissions {
				if err := rbac.GrantPermission(ctx, tenant.ID, role.ID, perm); err != nil {
					return fmt.Errorf("tenant %s: grant %s to role %s: %w", tenant.ID, perm, rc.Name, err)
				}
			}
		}
		for _, m := range tenant.Memberships {
			role, err := rbac.roles.GetRoleByName(ctx, tenant.ID, m.Role)
			if err != nil {
				return fmt.Errorf("tenant %s: membership role %s: %w", tenant.ID, m.Role, err)
			}
			if err := rbac.AssignRole(ctx, tenant.ID, m.UserID, role.ID, "config", time.Time{}); err != nil {
				return fmt.Errorf("tenant %s: assign %s to %s: %w", tenant.ID, m.Role, m.UserID, err)
			}
		}
		existing, err := policies.List(ctx, tenant.ID, false)
		if err != nil {
			return fmt.Errorf("tenant %s: list policies: %w", tenant.ID, err)
		}
		byName := make(map[string]struct{}, len(existing))
		for _, p := range existing {
			byName[p.Name] = struct{}{}
		}
		for _, pc := range tenant.Policies {
			if _, seen := byName[pc.Name]; seen {
				continue
			}
			if _, _, err := policies.Create(ctx, pc.Policy(tenant.ID)); err != nil {
				return fmt.Errorf("tenant %s: create policy %s: %w", tenant.ID, pc.Name, err)
			}
		}
	}
	return nil
}
