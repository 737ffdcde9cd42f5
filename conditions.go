package gatekeeper

import (
	"reflect"
	"strings"
)

// conditionOp evaluates a single operator against the context value (got)
// and the expected value from the policy document (want). A missing context
// attribute arrives as nil.
type conditionOp func(got, want any) bool

// conditionOps is the single source of truth for known operators; the
// validator checks operator names against the same table the evaluator
// dispatches on.
var conditionOps = map[string]conditionOp{
	"eq":     func(got, want any) bool { return equalValues(got, want) },
	"neq":    func(got, want any) bool { return !equalValues(got, want) },
	"in":     func(got, want any) bool { return memberOf(got, want) },
	"not_in": func(got, want any) bool { return !memberOf(got, want) },
	"gt":     orderedOp(func(c int) bool { return c > 0 }),
	"gte":    orderedOp(func(c int) bool { return c >= 0 }),
	"lt":     orderedOp(func(c int) bool { return c < 0 }),
	"lte":    orderedOp(func(c int) bool { return c <= 0 }),
}

// KnownOperator reports whether name is a supported condition operator.
func KnownOperator(name string) bool {
	_, ok := conditionOps[name]
	return ok
}

// EvaluateConditions checks every (attribute, predicate) pair against the
// request context. A nil or empty condition set is trivially true. A literal
// predicate requires strict equality with the context value; an operator map
// is conjunctive, and all attributes must pass. The first failing predicate
// short-circuits. An operator name the table does not know fails the match
// rather than erroring; validation is expected to have rejected it already.
func EvaluateConditions(conditions Conditions, context map[string]any) bool {
	if len(conditions) == 0 {
		return true
	}
	for attribute, predicate := range conditions {
		got := context[attribute] // nil when absent

		opMap, ok := asOperatorMap(predicate)
		if !ok {
			if !equalValues(got, predicate) {
				return false
			}
			continue
		}
		for name, want := range opMap {
			op, known := conditionOps[name]
			if !known {
				return false
			}
			if !op(got, want) {
				return false
			}
		}
	}
	return true
}

// asOperatorMap normalizes the two map shapes a predicate can decode into.
func asOperatorMap(predicate any) (map[string]any, bool) {
	switch m := predicate.(type) {
	case map[string]any:
		return m, true
	case Conditions:
		return m, true
	default:
		return nil, false
	}
}

// orderedOp builds an operator from an ordered comparison. Absent context
// values and incomparable types fail closed: absence never satisfies an
// ordering predicate.
func orderedOp(pass func(cmp int) bool) conditionOp {
	return func(got, want any) bool {
		cmp, ok := compareValues(got, want)
		return ok && pass(cmp)
	}
}

// equalValues compares two values with numeric coercion so that an int
// written in Go code equals the float64 the same number decodes to from
// JSON. nil only equals nil.
func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		return bok && af == bf
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return reflect.DeepEqual(a, b)
}

// memberOf reports whether got is an element of the expected collection.
func memberOf(got, want any) bool {
	switch coll := want.(type) {
	case []any:
		for _, item := range coll {
			if equalValues(got, item) {
				return true
			}
		}
	case []string:
		for _, item := range coll {
			if equalValues(got, item) {
				return true
			}
		}
	}
	return false
}

// compareValues returns got<=>want as -1/0/1. Numbers compare numerically,
// strings lexicographically; anything else (including nil on either side)
// is incomparable.
func compareValues(got, want any) (int, bool) {
	if got == nil || want == nil {
		return 0, false
	}
	if gf, ok := toFloat(got); ok {
		wf, wok := toFloat(want)
		if !wok {
			return 0, false
		}
		switch {
		case gf < wf:
			return -1, true
		case gf > wf:
			return 1, true
		default:
			return 0, true
		}
	}
	gs, gok := got.(string)
	ws, wok := want.(string)
	if gok && wok {
		return strings.Compare(gs, ws), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
