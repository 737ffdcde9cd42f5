package gatekeeper

import (
	"context"
	"sync"
	"time"

	"github.com/oarkflow/gatekeeper/logger"
)

// AuthorizationService wraps an Engine with decision logging and
// asynchronous audit recording. The engine itself stays pure; everything
// with side effects lives here.
type AuthorizationService struct {
	engine *Engine
	sink   AuditSink
	log    logger.Logger

	events chan AuditEvent
	done   chan struct{}
	once   sync.Once
}

// ServiceOption configures an AuthorizationService.
type ServiceOption func(*AuthorizationService)

// WithAuditSink attaches a sink that receives one event per decision.
func WithAuditSink(sink AuditSink) ServiceOption {
	return func(s *AuthorizationService) { s.sink = sink }
}

// WithServiceLogger sets the logger for decision lines and drain errors.
func WithServiceLogger(l logger.Logger) ServiceOption {
	return func(s *AuthorizationService) { s.log = l }
}

// NewAuthorizationService builds a service around engine. Call Close when
// done to flush pending audit events.
func NewAuthorizationService(engine *Engine, opts ...ServiceOption) *AuthorizationService {
	s := &AuthorizationService{
		engine: engine,
		log:    logger.NewNullLogger(),
		events: make(chan AuditEvent, 1024),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.drain()
	return s
}

// Authorize evaluates one request, logs the outcome, and queues an audit
// event. Recording never blocks the caller: if the buffer is full the event
// is dropped and counted in the log.
func (s *AuthorizationService) Authorize(ctx context.Context, tenantID, principalID, action, resource string, reqCtx map[string]any) (*Decision, error) {
	d, err := s.engine.Evaluate(ctx, tenantID, principalID, action, resource, reqCtx)
	if err != nil {
		s.log.Error("authorization failed", "tenant", tenantID, "principal", principalID, "error", err)
		return nil, err
	}
	s.log.Info("authorization decision",
		"tenant", tenantID,
		"principal", principalID,
		"action", action,
		"resource", resource,
		"allowed", d.Allowed,
		"reason", d.Reason,
	)
	s.record(tenantID, principalID, action, resource, d)
	return d, nil
}

// AuthorizeBulk evaluates requests in order, recording each decision.
func (s *AuthorizationService) AuthorizeBulk(ctx context.Context, tenantID string, requests []EvalRequest) ([]*Decision, error) {
	decisions := make([]*Decision, 0, len(requests))
	for _, r := range requests {
		d, err := s.Authorize(ctx, tenantID, r.PrincipalID, r.Action, r.Resource, r.Context)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	return decisions, nil
}

func (s *AuthorizationService) record(tenantID, principalID, action, resource string, d *Decision) {
	if s.sink == nil {
		return
	}
	event := AuditEvent{
		ID:          newID(),
		TenantID:    tenantID,
		PrincipalID: principalID,
		Action:      action,
		Resource:    resource,
		Allowed:     d.Allowed,
		PolicyID:    d.MatchedPolicyID,
		Reason:      d.Reason,
		OccurredAt:  time.Now().UTC(),
	}
	select {
	case s.events <- event:
	default:
		s.log.Error("audit buffer full, dropping event", "tenant", tenantID, "principal", principalID)
	}
}

func (s *AuthorizationService) drain() {
	for event := range s.events {
		if err := s.sink.Record(context.Background(), event); err != nil {
			s.log.Error("audit record failed", "event", event.ID, "error", err)
		}
	}
	close(s.done)
}

// Close flushes queued audit events and stops the background writer. Safe
// to call more than once.
func (s *AuthorizationService) Close() {
	s.once.Do(func() {
		close(s.events)
		<-s.done
	})
}
