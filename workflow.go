package gatekeeper

import (
	"context"
	"fmt"
	"time"

	"github.com/oarkflow/gatekeeper/logger"
)

// RequestStatus tracks an access request through its lifecycle.
type RequestStatus string

const (
	StatusPending       RequestStatus = "pending"
	StatusInfoRequested RequestStatus = "info_requested"
	StatusApproved      RequestStatus = "approved"
	StatusDenied        RequestStatus = "denied"
	StatusCancelled     RequestStatus = "cancelled"
	StatusExpired       RequestStatus = "expired"
)

// AccessRequest is a user's petition for a role within a tenant, resolved
// by an approver. A non-nil ExpiresAt on an approved request bounds the
// resulting role assignment.
type AccessRequest struct {
	ID            string        `json:"id"`
	TenantID      string        `json:"tenant_id"`
	RequesterID   string        `json:"requester_id"`
	RoleID        string        `json:"role_id,omitempty"`
	Permission    string        `json:"permission,omitempty"`
	Justification string        `json:"justification"`
	Status        RequestStatus `json:"status"`
	DurationHours int           `json:"duration_hours,omitempty"` // 0 = permanent
	ResolvedBy    string        `json:"resolved_by,omitempty"`
	ResolvedAt    time.Time     `json:"resolved_at,omitempty"`
	ExpiresAt     time.Time     `json:"expires_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// ApprovalAction records one step an actor took on a request.
type ApprovalAction struct {
	ID        string    `json:"id"`
	RequestID string    `json:"request_id"`
	ActorID   string    `json:"actor_id"`
	Action    string    `json:"action"` // approve, deny, request_info, provide_info, cancel
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RequestStore persists access requests and their action trail.
type RequestStore interface {
	CreateRequest(ctx context.Context, req *AccessRequest) error
	GetRequest(ctx context.Context, tenantID, requestID string) (*AccessRequest, error)
	UpdateRequest(ctx context.Context, req *AccessRequest) error
	ListRequests(ctx context.Context, tenantID string, status RequestStatus) ([]*AccessRequest, error)
	ListRequestsByUser(ctx context.Context, tenantID, userID string) ([]*AccessRequest, error)
	AddAction(ctx context.Context, action *ApprovalAction) error
	RequestActions(ctx context.Context, requestID string) ([]*ApprovalAction, error)
}

// WorkflowService drives the access-request approval flow. Approval grants
// the requested role through the RBAC service.
type WorkflowService struct {
	requests RequestStore
	rbac     *RBACService
	log      logger.Logger
	now      func() time.Time
}

func NewWorkflowService(requests RequestStore, rbac *RBACService, log logger.Logger) *WorkflowService {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &WorkflowService{requests: requests, rbac: rbac, log: log, now: time.Now}
}

// SubmitInput carries a new access request. Exactly one of RoleID and
// Permission must be set; DurationHours of zero asks for a permanent grant.
type SubmitInput struct {
	RoleID        string
	Permission    string
	Justification string
	DurationHours int
}

// Submit opens a pending request for a role or a permission.
func (s *WorkflowService) Submit(ctx context.Context, tenantID, requesterID string, in SubmitInput) (*AccessRequest, error) {
	if in.Justification == "" {
		return nil, fmt.Errorf("%w: justification is required", ErrInvalidRequest)
	}
	if (in.RoleID == "") == (in.Permission == "") {
		return nil, fmt.Errorf("%w: request exactly one of a role or a permission", ErrInvalidRequest)
	}
	if in.DurationHours < 0 {
		return nil, fmt.Errorf("%w: duration must not be negative", ErrInvalidRequest)
	}
	if in.RoleID != "" {
		if _, err := s.rbac.roles.GetRole(ctx, tenantID, in.RoleID); err != nil {
			return nil, err
		}
	}
	open, err := s.requests.ListRequestsByUser(ctx, tenantID, requesterID)
	if err != nil {
		return nil, err
	}
	for _, r := range open {
		if r.Status != StatusPending && r.Status != StatusInfoRequested {
			continue
		}
		if (in.RoleID != "" && r.RoleID == in.RoleID) || (in.Permission != "" && r.Permission == in.Permission) {
			return nil, fmt.Errorf("%w: an open request for this access already exists", ErrConflict)
		}
	}
	now := s.now().UTC()
	req := &AccessRequest{
		ID:            newID(),
		TenantID:      tenantID,
		RequesterID:   requesterID,
		RoleID:        in.RoleID,
		Permission:    in.Permission,
		Justification: in.Justification,
		Status:        StatusPending,
		DurationHours: in.DurationHours,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.requests.CreateRequest(ctx, req); err != nil {
		return nil, err
	}
	s.log.Info("access request submitted", "tenant", tenantID, "requester", requesterID, "request", req.ID)
	return req, nil
}

// Approve resolves a request in the requester's favor and grants the role.
// Only pending or info_requested requests can be approved, and never by
// their own requester.
func (s *WorkflowService) Approve(ctx context.Context, tenantID, requestID, approverID, comment string) (*AccessRequest, error) {
	req, err := s.openRequest(ctx, tenantID, requestID)
	if err != nil {
		return nil, err
	}
	if req.RequesterID == approverID {
		return nil, fmt.Errorf("%w: requester cannot approve their own request", ErrForbidden)
	}
	now := s.now().UTC()
	req.Status = StatusApproved
	req.ResolvedBy = approverID
	req.ResolvedAt = now
	req.UpdatedAt = now
	if req.DurationHours > 0 {
		req.ExpiresAt = now.Add(time.Duration(req.DurationHours) * time.Hour)
	}
	if err := s.requests.UpdateRequest(ctx, req); err != nil {
		return nil, err
	}
	if err := s.addAction(ctx, req.ID, approverID, "approve", comment); err != nil {
		return nil, err
	}
	// Role targets are granted immediately; permission targets are recorded
	// and left to policy to effect. AssignRole is idempotent, so a re-run
	// after a partial failure is safe.
	if req.RoleID != "" {
		if err := s.rbac.AssignRole(ctx, tenantID, req.RequesterID, req.RoleID, approverID, req.ExpiresAt); err != nil {
			return nil, fmt.Errorf("grant role for request %s: %w", req.ID, err)
		}
	}
	s.log.Info("access request approved", "tenant", tenantID, "request", req.ID, "approver", approverID)
	return req, nil
}

// Deny resolves a request against the requester.
func (s *WorkflowService) Deny(ctx context.Context, tenantID, requestID, approverID, comment string) (*AccessRequest, error) {
	req, err := s.openRequest(ctx, tenantID, requestID)
	if err != nil {
		return nil, err
	}
	if req.RequesterID == approverID {
		return nil, fmt.Errorf("%w: requester cannot deny their own request", ErrForbidden)
	}
	now := s.now().UTC()
	req.Status = StatusDenied
	req.ResolvedBy = approverID
	req.ResolvedAt = now
	req.UpdatedAt = now
	if err := s.requests.UpdateRequest(ctx, req); err != nil {
		return nil, err
	}
	if err := s.addAction(ctx, req.ID, approverID, "deny", comment); err != nil {
		return nil, err
	}
	s.log.Info("access request denied", "tenant", tenantID, "request", req.ID, "approver", approverID)
	return req, nil
}

// RequestInfo asks the requester for more detail, parking the request in
// info_requested until they respond.
func (s *WorkflowService) RequestInfo(ctx context.Context, tenantID, requestID, approverID, comment string) (*AccessRequest, error) {
	req, err := s.openRequest(ctx, tenantID, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusPending {
		return nil, fmt.Errorf("%w: request %s is not pending", ErrInvalidRequest, requestID)
	}
	req.Status = StatusInfoRequested
	req.UpdatedAt = s.now().UTC()
	if err := s.requests.UpdateRequest(ctx, req); err != nil {
		return nil, err
	}
	if err := s.addAction(ctx, req.ID, approverID, "request_info", comment); err != nil {
		return nil, err
	}
	return req, nil
}

// ProvideInfo lets the requester answer an information request, moving the
// request back to pending.
func (s *WorkflowService) ProvideInfo(ctx context.Context, tenantID, requestID, requesterID, comment string) (*AccessRequest, error) {
	req, err := s.requests.GetRequest(ctx, tenantID, requestID)
	if err != nil {
		return nil, err
	}
	if req.RequesterID != requesterID {
		return nil, fmt.Errorf("%w: only the requester may provide information", ErrForbidden)
	}
	if req.Status != StatusInfoRequested {
		return nil, fmt.Errorf("%w: request %s is not awaiting information", ErrInvalidRequest, requestID)
	}
	req.Status = StatusPending
	req.UpdatedAt = s.now().UTC()
	if err := s.requests.UpdateRequest(ctx, req); err != nil {
		return nil, err
	}
	if err := s.addAction(ctx, req.ID, requesterID, "provide_info", comment); err != nil {
		return nil, err
	}
	return req, nil
}

// Cancel withdraws an open request. Only the requester may cancel.
func (s *WorkflowService) Cancel(ctx context.Context, tenantID, requestID, requesterID string) (*AccessRequest, error) {
	req, err := s.openRequest(ctx, tenantID, requestID)
	if err != nil {
		return nil, err
	}
	if req.RequesterID != requesterID {
		return nil, fmt.Errorf("%w: only the requester may cancel", ErrForbidden)
	}
	now := s.now().UTC()
	req.Status = StatusCancelled
	req.ResolvedAt = now
	req.UpdatedAt = now
	if err := s.requests.UpdateRequest(ctx, req); err != nil {
		return nil, err
	}
	if err := s.addAction(ctx, req.ID, requesterID, "cancel", ""); err != nil {
		return nil, err
	}
	return req, nil
}

// ExpireStale marks open requests older than maxAge as expired and returns
// how many were touched. Meant to run periodically.
func (s *WorkflowService) ExpireStale(ctx context.Context, tenantID string, maxAge time.Duration) (int, error) {
	expired := 0
	for _, status := range []RequestStatus{StatusPending, StatusInfoRequested} {
		open, err := s.requests.ListRequests(ctx, tenantID, status)
		if err != nil {
			return expired, err
		}
		cutoff := s.now().Add(-maxAge)
		for _, req := range open {
			if req.CreatedAt.After(cutoff) {
				continue
			}
			now := s.now().UTC()
			req.Status = StatusExpired
			req.ResolvedAt = now
			req.UpdatedAt = now
			if err := s.requests.UpdateRequest(ctx, req); err != nil {
				return expired, err
			}
			expired++
		}
	}
	if expired > 0 {
		s.log.Info("stale access requests expired", "tenant", tenantID, "count", expired)
	}
	return expired, nil
}

// Pending lists requests awaiting a decision, including those waiting on
// requester information.
func (s *WorkflowService) Pending(ctx context.Context, tenantID string) ([]*AccessRequest, error) {
	pending, err := s.requests.ListRequests(ctx, tenantID, StatusPending)
	if err != nil {
		return nil, err
	}
	waiting, err := s.requests.ListRequests(ctx, tenantID, StatusInfoRequested)
	if err != nil {
		return nil, err
	}
	return append(pending, waiting...), nil
}

// History returns the action trail for a request.
func (s *WorkflowService) History(ctx context.Context, tenantID, requestID string) ([]*ApprovalAction, error) {
	if _, err := s.requests.GetRequest(ctx, tenantID, requestID); err != nil {
		return nil, err
	}
	return s.requests.RequestActions(ctx, requestID)
}

func (s *WorkflowService) openRequest(ctx context.Context, tenantID, requestID string) (*AccessRequest, error) {
	req, err := s.requests.GetRequest(ctx, tenantID, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusPending && req.Status != StatusInfoRequested {
		return nil, fmt.Errorf("%w: request %s is already %s", ErrInvalidRequest, requestID, req.Status)
	}
	return req, nil
}

func (s *WorkflowService) addAction(ctx context.Context, requestID, actorID, action, comment string) error {
	return s.requests.AddAction(ctx, &ApprovalAction{
		ID:        newID(),
		RequestID: requestID,
		ActorID:   actorID,
		Action:    action,
		Comment:   comment,
		CreatedAt: s.now().UTC(),
	})
}
