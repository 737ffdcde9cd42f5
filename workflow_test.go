package gatekeeper_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oarkflow/gatekeeper"
	"github.com/oarkflow/gatekeeper/stores"
)

func newWorkflow(t *testing.T) (*gatekeeper.WorkflowService, *gatekeeper.RBACService, *gatekeeper.Role) {
	t.Helper()
	rbac := newRBAC()
	role, err := rbac.CreateRole(context.Background(), "t1", "auditor", "", false)
	if err != nil {
		t.Fatalf("create role: %v", err)
	}
	wf := gatekeeper.NewWorkflowService(stores.NewMemoryRequestStore(), rbac, nil)
	return wf, rbac, role
}

func TestSubmitValidation(t *testing.T) {
	ctx := context.Background()
	wf, _, role := newWorkflow(t)

	if _, err := wf.Submit(ctx, "t1", "alice", gatekeeper.SubmitInput{RoleID: role.ID}); !errors.Is(err, gatekeeper.ErrInvalidRequest) {
		t.Fatalf("missing justification should be rejected, got %v", err)
	}
	if _, err := wf.Submit(ctx, "t1", "alice", gatekeeper.SubmitInput{Justification: "need it"}); !errors.Is(err, gatekeeper.ErrInvalidRequest) {
		t.Fatalf("no target should be rejected, got %v", err)
	}
	if _, err := wf.Submit(ctx, "t1", "alice", gatekeeper.SubmitInput{RoleID: role.ID, Permission: "x", Justification: "need it"}); !errors.Is(err, gatekeeper.ErrInvalidRequest) {
		t.Fatalf("both targets should be rejected, got %v", err)
	}
	if _, err := wf.Submit(ctx, "t1", "alice", gatekeeper.SubmitInput{RoleID: "missing", Justification: "need it"}); !errors.Is(err, gatekeeper.ErrNotFound) {
		t.Fatalf("unknown role should be rejected, got %v", err)
	}
	if _, err := wf.Submit(ctx, "t1", "alice", gatekeeper.SubmitInput{RoleID: role.ID, Justification: "x", DurationHours: -1}); !errors.Is(err, gatekeeper.ErrInvalidRequest) {
		t.Fatalf("negative duration should be rejected, got %v", err)
	}

	req, err := wf.Submit(ctx, "t1", "alice", gatekeeper.SubmitInput{RoleID: role.ID, Justification: "audit season"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if req.Status != gatekeeper.StatusPending {
		t.Fatalf("new requests are pending, got %s", req.Status)
	}

	// duplicate open request for the same role
	if _, err := wf.Submit(ctx, "t1", "alice", gatekeeper.SubmitInput{RoleID: role.ID, Justification: "again"}); !errors.Is(err, gatekeeper.ErrConflict) {
		t.Fatalf("duplicate open request should conflict, got %v", err)
	}
}

func TestApproveGrantsRole(t *testing.T) {
	ctx := context.Background()
	wf, rbac, role := newWorkflow(t)

	req, _ := wf.Submit(ctx, "t1", "alice", gatekeeper.SubmitInput{RoleID: role.ID, Justification: "audit season"})

	if _, err := wf.Approve(ctx, "t1", req.ID, "alice", "lgtm"); !errors.Is(err, gatekeeper.ErrForbidden) {
		t.Fatalf("self-approval must be forbidden, got %v", err)
	}

	approved, err := wf.Approve(ctx, "t1", req.ID, "boss", "ok")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != gatekeeper.StatusApproved || approved.ResolvedBy != "boss" || approved.ResolvedAt.IsZero() {
		t.Fatalf("unexpected resolution: %+v", approved)
	}

	names, _ := rbac.RolesForPrincipal(ctx, "t1", "alice")
	if len(names) != 1 || names[0] != "auditor" {
		t.Fatalf("approval should grant the role, got %v", names)
	}

	// already resolved
	if _, err := wf.Approve(ctx, "t1", req.ID, "boss", ""); !errors.Is(err, gatekeeper.ErrInvalidRequest) {
		t.Fatalf("re-approval should be rejected, got %v", err)
	}

	actions, err := wf.History(ctx, "t1", req.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(actions) != 1 || actions[0].Action != "approve" || actions[0].ActorID != "boss" {
		t.Fatalf("unexpected trail: %+v", actions)
	}
}

func TestApproveWithDurationSetsExpiry(t *testing.T) {
	ctx := context.Background()
	wf, rbac, role := newWorkflow(t)

	req, _ := wf.Submit(ctx, "t1", "alice", gatekeeper.SubmitInput{RoleID: role.ID, Justification: "one day", DurationHours: 24})
	approved, err := wf.Approve(ctx, "t1", req.ID, "boss", "")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.ExpiresAt.IsZero() {
		t.Fatalf("duration_hours must produce an expiry")
	}
	want := approved.ResolvedAt.Add(24 * time.Hour)
	if !approved.ExpiresAt.Equal(want) {
		t.Fatalf("expiry = %v, want %v", approved.ExpiresAt, want)
	}
	// the grant itself carries the expiry and still resolves now
	names, _ := rbac.RolesForPrincipal(ctx, "t1", "alice")
	if len(names) != 1 {
		t.Fatalf("timed grant should be active, got %v", names)
	}
}

func TestDeny(t *testing.T) {
	ctx := context.Background()
	wf, rbac, role := newWorkflow(t)

	req, _ := wf.Submit(ctx, "t1", "alice", gatekeeper.SubmitInput{RoleID: role.ID, Justification: "please"})
	denied, err := wf.Deny(ctx, "t1", req.ID, "boss", "no")
	if err != nil {
		t.Fatalf("deny: %v", err)
	}
	if denied.Status != gatekeeper.StatusDenied {
		t.Fatalf("status = %s", denied.Status)
	}
	names, _ := rbac.RolesForPrincipal(ctx, "t1", "alice")
	if len(names) != 0 {
		t.Fatalf("denied requests grant nothing")
	}
}

func TestInfoRoundTrip(t *testing.T) {
	ctx := context.Background()
	wf, _, role := newWorkflow(t)

	req, _ := wf.Submit(ctx, "t1", "alice", gatekeeper.SubmitInput{RoleID: role.ID, Justification: "vague"})

	parked, err := wf.RequestInfo(ctx, "t1", req.ID, "boss", "why?")
	if err != nil {
		t.Fatalf("request info: %v", err)
	}
	if parked.Status != gatekeeper.StatusInfoRequested {
		t.Fatalf("status = %s", parked.Status)
	}
	// only the requester may answer
	if _, err := wf.ProvideInfo(ctx, "t1", req.ID, "mallory", "because"); !errors.Is(err, gatekeeper.ErrForbidden) {
		t.Fatalf("non-requester answer should be forbidden, got %v", err)
	}
	back, err := wf.ProvideInfo(ctx, "t1", req.ID, "alice", "because reasons")
	if err != nil {
		t.Fatalf("provide info: %v", err)
	}
	if back.Status != gatekeeper.StatusPending {
		t.Fatalf("answered requests go back to pending, got %s", back.Status)
	}
	// info_requested requests can still be approved directly
	parked, _ = wf.RequestInfo(ctx, "t1", req.ID, "boss", "more?")
	if _, err := wf.Approve(ctx, "t1", req.ID, "boss", "fine"); err != nil {
		t.Fatalf("approve from info_requested: %v", err)
	}
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	wf, _, role := newWorkflow(t)

	req, _ := wf.Submit(ctx, "t1", "alice", gatekeeper.SubmitInput{RoleID: role.ID, Justification: "oops"})
	if _, err := wf.Cancel(ctx, "t1", req.ID, "boss"); !errors.Is(err, gatekeeper.ErrForbidden) {
		t.Fatalf("only the requester cancels, got %v", err)
	}
	cancelled, err := wf.Cancel(ctx, "t1", req.ID, "alice")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != gatekeeper.StatusCancelled {
		t.Fatalf("status = %s", cancelled.Status)
	}
	if _, err := wf.Approve(ctx, "t1", req.ID, "boss", ""); !errors.Is(err, gatekeeper.ErrInvalidRequest) {
		t.Fatalf("cancelled requests cannot be approved, got %v", err)
	}
}

func TestPermissionTarget(t *testing.T) {
	ctx := context.Background()
	wf, rbac, _ := newWorkflow(t)

	req, err := wf.Submit(ctx, "t1", "alice", gatekeeper.SubmitInput{Permission: "report:export", Justification: "quarter end"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	approved, err := wf.Approve(ctx, "t1", req.ID, "boss", "")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != gatekeeper.StatusApproved {
		t.Fatalf("status = %s", approved.Status)
	}
	// permission targets do not create role assignments
	names, _ := rbac.RolesForPrincipal(ctx, "t1", "alice")
	if len(names) != 0 {
		t.Fatalf("no role grant expected, got %v", names)
	}
}

func TestPendingAndExpiry(t *testing.T) {
	ctx := context.Background()
	wf, _, role := newWorkflow(t)

	wf.Submit(ctx, "t1", "alice", gatekeeper.SubmitInput{RoleID: role.ID, Justification: "x"})
	b, _ := wf.Submit(ctx, "t1", "bob", gatekeeper.SubmitInput{RoleID: role.ID, Justification: "y"})
	wf.RequestInfo(ctx, "t1", b.ID, "boss", "detail?")

	pending, err := wf.Pending(ctx, "t1")
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending should include info_requested, got %d", len(pending))
	}

	// nothing is stale yet
	n, err := wf.ExpireStale(ctx, "t1", time.Hour)
	if err != nil || n != 0 {
		t.Fatalf("expected no expiries, got %d %v", n, err)
	}
	// everything is stale with a zero cutoff
	n, err = wf.ExpireStale(ctx, "t1", 0)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 expiries, got %d %v", n, err)
	}
	expired, _ := wf.Pending(ctx, "t1")
	if len(expired) != 0 {
		t.Fatalf("expired requests are no longer pending")
	}
}
