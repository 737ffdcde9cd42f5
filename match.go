package gatekeeper

import "github.com/oarkflow/gatekeeper/utils"

// MatchPatterns reports whether candidate matches any of the glob patterns.
// An empty pattern list means "no restriction" and matches everything, as
// does a literal "*" entry.
func MatchPatterns(patterns []string, candidate string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, pattern := range patterns {
		if pattern == "*" {
			return true
		}
		if utils.Glob(candidate, pattern) {
			return true
		}
	}
	return false
}

// MatchPrincipal reports whether a principal, identified by userID and the
// flattened set of role names held in the tenant, falls under the policy's
// principal selector.
func MatchPrincipal(principals Principals, roleNames []string, userID string) bool {
	if principals.Empty() {
		return true
	}
	for _, u := range principals.Users {
		if u == "*" || u == userID {
			return true
		}
	}
	for _, r := range principals.Roles {
		if r == "*" {
			return true
		}
		for _, held := range roleNames {
			if held == r {
				return true
			}
		}
	}
	return false
}
