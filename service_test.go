package gatekeeper

import (
	"context"
	"sync"
	"testing"
)

type collectingSink struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (c *collectingSink) Record(ctx context.Context, event AuditEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func TestAuthorizationServiceRecordsDecisions(t *testing.T) {
	policies := staticPolicies{
		NewPolicyBuilder().ID("p1").Tenant("t1").Name("allow-read").
			Effect(EffectAllow).Users("alice").Actions("read").Resources("doc").Build(),
	}
	sink := &collectingSink{}
	svc := NewAuthorizationService(NewEngine(policies, staticRoles{}), WithAuditSink(sink))

	ctx := context.Background()
	d, err := svc.Authorize(ctx, "t1", "alice", "read", "doc", nil)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("expected allow: %s", d.Reason)
	}
	if _, err := svc.Authorize(ctx, "t1", "bob", "read", "doc", nil); err != nil {
		t.Fatalf("authorize: %v", err)
	}

	svc.Close() // flushes the buffer

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.events) != 2 {
		t.Fatalf("expected 2 audit events, got %d", len(sink.events))
	}
	first := sink.events[0]
	if first.TenantID != "t1" || first.PrincipalID != "alice" || !first.Allowed || first.PolicyID != "p1" {
		t.Fatalf("unexpected event: %+v", first)
	}
	second := sink.events[1]
	if second.Allowed || second.Reason != ReasonImplicitDeny {
		t.Fatalf("deny event should carry the implicit deny reason: %+v", second)
	}
	if first.ID == "" || first.ID == second.ID {
		t.Fatalf("events need distinct ids")
	}
}

func TestAuthorizationServiceNoSink(t *testing.T) {
	svc := NewAuthorizationService(NewEngine(staticPolicies{}, staticRoles{}))
	defer svc.Close()
	if _, err := svc.Authorize(context.Background(), "t1", "alice", "read", "doc", nil); err != nil {
		t.Fatalf("authorize without sink: %v", err)
	}
}

func TestAuthorizationServiceBulk(t *testing.T) {
	policies := staticPolicies{
		NewPolicyBuilder().ID("p1").Tenant("t1").Name("allow-read").
			Effect(EffectAllow).Users("alice").Actions("read").Resources("doc").Build(),
	}
	sink := &collectingSink{}
	svc := NewAuthorizationService(NewEngine(policies, staticRoles{}), WithAuditSink(sink))

	decisions, err := svc.AuthorizeBulk(context.Background(), "t1", []EvalRequest{
		{PrincipalID: "alice", Action: "read", Resource: "doc"},
		{PrincipalID: "alice", Action: "write", Resource: "doc"},
	})
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	if len(decisions) != 2 || !decisions[0].Allowed || decisions[1].Allowed {
		t.Fatalf("unexpected decisions: %+v", decisions)
	}

	svc.Close()
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.events) != 2 {
		t.Fatalf("each bulk item is audited, got %d events", len(sink.events))
	}
}

func TestAuthorizationServiceCloseTwice(t *testing.T) {
	svc := NewAuthorizationService(NewEngine(staticPolicies{}, staticRoles{}))
	svc.Close()
	svc.Close() // must not panic
}
