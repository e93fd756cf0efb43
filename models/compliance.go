package models

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// ConsentRecord persists one consent state change. Append-only: every change
// is a new row, never an update, so the full audit trail survives.
type ConsentRecord struct {
	bun.BaseModel `bun:"table:consent_records,alias:cr"`

	ID          string     `json:"id" bun:",pk"`
	UserID      string     `json:"user_id" bun:"user_id,notnull"`
	ConsentType string     `json:"consent_type" bun:"consent_type,notnull"`
	Granted     bool       `json:"granted" bun:",notnull"`
	GrantedAt   *time.Time `json:"granted_at,omitempty" bun:"granted_at,nullzero"`
	WithdrawnAt *time.Time `json:"withdrawn_at,omitempty" bun:"withdrawn_at,nullzero"`
	LegalBasis  string     `json:"legal_basis" bun:"legal_basis,notnull"`
	Purpose     string     `json:"purpose" bun:"purpose"`
	Version     int        `json:"version" bun:",notnull"`
	CreatedAt   time.Time  `json:"created_at" bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

var _ bun.BeforeAppendModelHook = (*ConsentRecord)(nil)

func (r *ConsentRecord) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok && r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	return nil
}

// ActivityLog is the data-level audit trail: one row per cleanup run, erasure,
// or portability export. Never mutated or deleted by this engine.
type ActivityLog struct {
	bun.BaseModel `bun:"table:compliance_activity_log,alias:al"`

	ID            string    `json:"id" bun:",pk"`
	ActivityType  string    `json:"activity_type" bun:"activity_type,notnull"`
	UserID        *string   `json:"user_id,omitempty" bun:"user_id,nullzero"`
	ExecutedAt    time.Time `json:"executed_at" bun:"executed_at,notnull"`
	Summary       string    `json:"summary" bun:"summary"`
	TotalAffected int64     `json:"total_affected" bun:"total_affected"`
}

// AuditRequest is the request-level audit trail written by the facade for
// every inbound compliance request, distinct from the data-level ActivityLog.
type AuditRequest struct {
	bun.BaseModel `bun:"table:compliance_audit_requests,alias:ar"`

	ID         string    `json:"id" bun:",pk"`
	Action     string    `json:"action" bun:"action,notnull"`
	UserID     *string   `json:"user_id,omitempty" bun:"user_id,nullzero"`
	CallerIP   string    `json:"caller_ip" bun:"caller_ip"`
	Outcome    string    `json:"outcome" bun:"outcome,notnull"`
	OccurredAt time.Time `json:"occurred_at" bun:"occurred_at,notnull"`
}
