package gatekeeper

import "testing"

func TestEvaluateConditionsEmpty(t *testing.T) {
	if !EvaluateConditions(nil, map[string]any{"a": 1}) {
		t.Fatalf("nil conditions always pass")
	}
	if !EvaluateConditions(Conditions{}, nil) {
		t.Fatalf("empty conditions always pass")
	}
}

func TestEvaluateConditionsLiteral(t *testing.T) {
	conds := Conditions{"department": "engineering"}
	if !EvaluateConditions(conds, map[string]any{"department": "engineering"}) {
		t.Fatalf("equal literal should pass")
	}
	if EvaluateConditions(conds, map[string]any{"department": "sales"}) {
		t.Fatalf("unequal literal should fail")
	}
	if EvaluateConditions(conds, map[string]any{}) {
		t.Fatalf("missing attribute never equals a non-nil literal")
	}
}

func TestEvaluateConditionsOperators(t *testing.T) {
	cases := []struct {
		name    string
		conds   Conditions
		context map[string]any
		want    bool
	}{
		{"eq pass", Conditions{"level": map[string]any{"eq": 3}}, map[string]any{"level": 3}, true},
		{"eq numeric coercion", Conditions{"level": map[string]any{"eq": 3}}, map[string]any{"level": 3.0}, true},
		{"neq pass", Conditions{"env": map[string]any{"neq": "prod"}}, map[string]any{"env": "dev"}, true},
		{"neq fail", Conditions{"env": map[string]any{"neq": "prod"}}, map[string]any{"env": "prod"}, false},
		{"in pass", Conditions{"region": map[string]any{"in": []any{"us", "eu"}}}, map[string]any{"region": "eu"}, true},
		{"in fail", Conditions{"region": map[string]any{"in": []any{"us", "eu"}}}, map[string]any{"region": "ap"}, false},
		{"not_in pass", Conditions{"region": map[string]any{"not_in": []any{"us"}}}, map[string]any{"region": "eu"}, true},
		{"gt pass", Conditions{"age": map[string]any{"gt": 17}}, map[string]any{"age": 18}, true},
		{"gt equal fails", Conditions{"age": map[string]any{"gt": 18}}, map[string]any{"age": 18}, false},
		{"gte equal passes", Conditions{"age": map[string]any{"gte": 18}}, map[string]any{"age": 18}, true},
		{"lt pass", Conditions{"risk": map[string]any{"lt": 5}}, map[string]any{"risk": 4}, true},
		{"lte equal passes", Conditions{"risk": map[string]any{"lte": 5}}, map[string]any{"risk": 5}, true},
		{"string ordering", Conditions{"tier": map[string]any{"gte": "b"}}, map[string]any{"tier": "c"}, true},
		{"multiple ops conjunctive", Conditions{"age": map[string]any{"gte": 18, "lt": 65}}, map[string]any{"age": 30}, true},
		{"multiple ops one fails", Conditions{"age": map[string]any{"gte": 18, "lt": 65}}, map[string]any{"age": 70}, false},
		{"multiple attributes", Conditions{"a": 1, "b": map[string]any{"gt": 0}}, map[string]any{"a": 1, "b": 2}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := EvaluateConditions(c.conds, c.context); got != c.want {
				t.Fatalf("got %v, want %v", got, c.want)
			}
		})
	}
}

func TestEvaluateConditionsMissingAttribute(t *testing.T) {
	// ordering against an absent attribute fails, it never passes
	conds := Conditions{"age": map[string]any{"gte": 18}}
	if EvaluateConditions(conds, map[string]any{}) {
		t.Fatalf("gte against missing attribute must fail")
	}
	if EvaluateConditions(conds, nil) {
		t.Fatalf("gte against nil context must fail")
	}
	// neq nil vs value: absent attribute is nil, which differs from "prod"
	if !EvaluateConditions(Conditions{"env": map[string]any{"neq": "prod"}}, map[string]any{}) {
		t.Fatalf("neq against missing attribute should pass")
	}
}

func TestEvaluateConditionsUnknownOperator(t *testing.T) {
	conds := Conditions{"a": map[string]any{"matches": "x.*"}}
	if EvaluateConditions(conds, map[string]any{"a": "xyz"}) {
		t.Fatalf("unknown operator must fail the match")
	}
}

func TestEvaluateConditionsIncomparableTypes(t *testing.T) {
	conds := Conditions{"age": map[string]any{"gt": 18}}
	if EvaluateConditions(conds, map[string]any{"age": "young"}) {
		t.Fatalf("string vs number ordering must fail")
	}
}

func TestKnownOperator(t *testing.T) {
	for _, op := range []string{"eq", "neq", "in", "not_in", "gt", "gte", "lt", "lte"} {
		if !KnownOperator(op) {
			t.Errorf("%s should be known", op)
		}
	}
	if KnownOperator("regex") {
		t.Fatalf("regex is not an operator")
	}
}
