package compliance

import (
	"time"

	"github.com/GoDataGuard/go-data-guard/models"
)

// Activity types recorded in the data-level audit log.
const (
	ActivityRetentionCleanup  = "retention_cleanup"
	ActivityErasure           = "erasure"
	ActivityPortabilityExport = "portability_export"
	ActivityConsentUpdate     = "consent_update"
)

// TableResult is the per-table outcome of a multi-table operation. Errors
// are captured here instead of aborting the run, so one failing table never
// masks the others' success.
type TableResult struct {
	Table        Table  `json:"table"`
	RowsAffected int64  `json:"rows_affected"`
	Error        string `json:"error,omitempty"`
}

// Failed reports whether this table's step failed.
func (r TableResult) Failed() bool {
	return r.Error != ""
}

// CategoryResult aggregates one retention category's cleanup pass.
type CategoryResult struct {
	Category      string        `json:"category"`
	Critical      bool          `json:"critical"`
	RetentionDays int           `json:"retention_days"`
	Cutoff        time.Time     `json:"cutoff"`
	Tables        []TableResult `json:"tables"`
	TotalDeleted  int64         `json:"total_deleted"`
}

// CleanupResult is the outcome of a full retention cleanup run.
type CleanupResult struct {
	RanAt        time.Time        `json:"ran_at"`
	Categories   []CategoryResult `json:"categories"`
	TotalDeleted int64            `json:"total_deleted"`
}

// ErasureResult reports a right-to-erasure cascade. Success stays true under
// partial per-table failure; it flips only when every table failed or an
// unrecoverable step error occurred. What could not be deleted is documented
// rather than hidden.
type ErasureResult struct {
	UserID          string                 `json:"user_id"`
	Reason          string                 `json:"reason"`
	Success         bool                   `json:"success"`
	SessionOutcomes []models.RevokeOutcome `json:"session_outcomes"`
	Tables          []TableResult          `json:"tables"`
	TotalDeleted    int64                  `json:"total_deleted"`
	CompletedAt     time.Time              `json:"completed_at"`
}

// ExportDocument is the portability export: category → table → rows. A table
// whose query failed carries an error marker instead of rows.
type ExportDocument struct {
	UserID      string                    `json:"user_id"`
	GeneratedAt time.Time                 `json:"generated_at"`
	Categories  map[string]map[string]any `json:"categories"`
}

// ConsentResult wraps the appended consent row. ScheduledErasureAt is set
// when a critical consent type was withdrawn: the erasure is flagged for the
// external job scheduler rather than executed immediately.
type ConsentResult struct {
	Record             *models.ConsentRecord `json:"record"`
	ScheduledErasureAt *time.Time            `json:"scheduled_erasure_at,omitempty"`
}
