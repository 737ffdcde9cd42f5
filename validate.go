package gatekeeper

import "fmt"

// ValidationResult reports the outcome of validating a candidate policy
// document. Warnings never affect validity.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// ValidatePolicy checks a candidate policy document for well-formedness
// before persistence. It is pure and synchronous: it inspects shape only,
// never activation state, and reports rather than raises. A document with
// empty principals, actions and resources is valid but earns a warning for
// each, since it matches everything.
func ValidatePolicy(doc map[string]any) ValidationResult {
	errs := []string{}
	warns := []string{}

	effect, _ := doc["effect"].(string)
	if effect != string(EffectAllow) && effect != string(EffectDeny) {
		errs = append(errs, fmt.Sprintf("invalid effect: %q, must be %q or %q", effect, EffectAllow, EffectDeny))
	}

	principals, _ := doc["principals"].(map[string]any)
	roles := principals["roles"]
	users := principals["users"]
	if !hasItems(roles) && !hasItems(users) {
		warns = append(warns, "no principals specified: policy will match all users")
	}
	if hasItems(roles) {
		if msg := checkStringList(roles, "principals.roles", "role"); msg != "" {
			errs = append(errs, msg)
		}
	}
	if hasItems(users) {
		if msg := checkStringList(users, "principals.users", "user"); msg != "" {
			errs = append(errs, msg)
		}
	}

	actions := doc["actions"]
	if !hasItems(actions) {
		warns = append(warns, "no actions specified: policy will match all actions")
	} else if msg := checkStringList(actions, "actions", "action"); msg != "" {
		errs = append(errs, msg)
	}

	resources := doc["resources"]
	if !hasItems(resources) {
		warns = append(warns, "no resources specified: policy will match all resources")
	} else if msg := checkStringList(resources, "resources", "resource"); msg != "" {
		errs = append(errs, msg)
	}

	if conditions, present := doc["conditions"]; present && conditions != nil {
		condMap, ok := asOperatorMap(conditions)
		if !ok {
			errs = append(errs, "conditions must be an object")
		} else {
			for _, predicate := range condMap {
				opMap, ok := asOperatorMap(predicate)
				if !ok {
					continue // literal predicate, implies equality
				}
				for op := range opMap {
					if !KnownOperator(op) {
						errs = append(errs, fmt.Sprintf("unknown condition operator: %q", op))
					}
				}
			}
		}
	}

	if priority, present := doc["priority"]; present {
		if !isInteger(priority) {
			errs = append(errs, "priority must be an integer")
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs, Warnings: warns}
}

// hasItems reports whether v is a non-empty sequence. Scalars count as
// "present" so that a wrongly-typed field still reaches the type check.
func hasItems(v any) bool {
	switch list := v.(type) {
	case nil:
		return false
	case []any:
		return len(list) > 0
	case []string:
		return len(list) > 0
	default:
		return true
	}
}

// checkStringList returns an error message when v is not a sequence of
// strings, empty when it is.
func checkStringList(v any, field, item string) string {
	switch list := v.(type) {
	case []string:
		return ""
	case []any:
		for _, entry := range list {
			if _, ok := entry.(string); !ok {
				return fmt.Sprintf("all %s values must be strings", item)
			}
		}
		return ""
	default:
		return fmt.Sprintf("%s must be a list", field)
	}
}

// isInteger accepts Go integer kinds plus the float64 a JSON decoder
// produces, provided it carries no fractional part.
func isInteger(v any) bool {
	switch n := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return n == float64(int64(n))
	case float32:
		return float64(n) == float64(int64(n))
	default:
		return false
	}
}
