package gatekeeper

import "testing"

func TestMatchPatterns(t *testing.T) {
	if !MatchPatterns(nil, "anything") {
		t.Fatalf("empty pattern list matches everything")
	}
	if !MatchPatterns([]string{"*"}, "anything") {
		t.Fatalf("literal * matches everything")
	}
	if !MatchPatterns([]string{"write", "read"}, "read") {
		t.Fatalf("any pattern may match")
	}
	if MatchPatterns([]string{"write", "delete"}, "read") {
		t.Fatalf("no pattern matched")
	}
	if !MatchPatterns([]string{"doc:*"}, "doc:42") {
		t.Fatalf("glob pattern should match")
	}
}

func TestMatchPrincipal(t *testing.T) {
	if !MatchPrincipal(Principals{}, nil, "anyone") {
		t.Fatalf("empty principals match everyone")
	}
	p := Principals{Users: []string{"alice"}}
	if !MatchPrincipal(p, nil, "alice") {
		t.Fatalf("direct user match")
	}
	if MatchPrincipal(p, []string{"admin"}, "bob") {
		t.Fatalf("bob is not listed")
	}
	p = Principals{Users: []string{"*"}}
	if !MatchPrincipal(p, nil, "whoever") {
		t.Fatalf("user wildcard matches any principal")
	}
	p = Principals{Roles: []string{"editor"}}
	if !MatchPrincipal(p, []string{"viewer", "editor"}, "alice") {
		t.Fatalf("role intersection match")
	}
	if MatchPrincipal(p, []string{"viewer"}, "alice") {
		t.Fatalf("no shared role")
	}
	p = Principals{Roles: []string{"*"}}
	if !MatchPrincipal(p, nil, "alice") {
		t.Fatalf("role wildcard matches even with no roles held")
	}
	// users OR roles, either arm suffices
	p = Principals{Roles: []string{"editor"}, Users: []string{"bob"}}
	if !MatchPrincipal(p, nil, "bob") {
		t.Fatalf("user arm should match")
	}
	if !MatchPrincipal(p, []string{"editor"}, "carol") {
		t.Fatalf("role arm should match")
	}
}
