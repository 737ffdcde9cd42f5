package gatekeeper

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"
)

// AuditEvent records one authorization decision for later inspection.
type AuditEvent struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	PrincipalID string    `json:"principal_id"`
	Action      string    `json:"action"`
	Resource    string    `json:"resource"`
	Allowed     bool      `json:"allowed"`
	PolicyID    string    `json:"policy_id,omitempty"`
	Reason      string    `json:"reason"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// AuditSink receives decision events. Implementations must be safe for
// concurrent use; Record is called from a background goroutine.
type AuditSink interface {
	Record(ctx context.Context, event AuditEvent) error
}

// AuditFilter narrows an audit query. Zero values mean "no restriction".
type AuditFilter struct {
	TenantID    string
	PrincipalID string
	Action      string
	Resource    string
	OnlyDenied  bool
	Since       time.Time
	Until       time.Time
	Limit       int
}

// AuditStore is a sink that can also be queried.
type AuditStore interface {
	AuditSink
	Query(ctx context.Context, filter AuditFilter) ([]AuditEvent, error)
}

// ExportAuditJSON writes events to w as a JSON array.
func ExportAuditJSON(w io.Writer, events []AuditEvent) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(events)
}

// ExportAuditCSV writes events to w with a header row.
func ExportAuditCSV(w io.Writer, events []AuditEvent) error {
	cw := csv.NewWriter(w)
	header := []string{"id", "tenant_id", "principal_id", "action", "resource", "allowed", "policy_id", "reason", "occurred_at"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range events {
		row := []string{
			e.ID,
			e.TenantID,
			e.PrincipalID,
			e.Action,
			e.Resource,
			strconv.FormatBool(e.Allowed),
			e.PolicyID,
			e.Reason,
			e.OccurredAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
