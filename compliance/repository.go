package compliance

import (
	"context"
	"time"

	"github.com/GoDataGuard/go-data-guard/models"
)

// Repository is the narrow contract the lifecycle manager needs from the
// externally owned relational store. Every registered table is expected to
// expose a created_at timestamp column and the user-identifying column from
// the registry; nothing else about the schema is assumed.
type Repository interface {
	// DeleteOlderThan removes rows whose created_at precedes the cutoff and
	// reports the number of rows removed.
	DeleteOlderThan(ctx context.Context, table Table, cutoff time.Time) (int64, error)

	// DeleteByUserColumn removes rows whose user-identifying column matches
	// the given user id.
	DeleteByUserColumn(ctx context.Context, table Table, column, userID string) (int64, error)

	// SelectByUserColumn returns all rows whose user-identifying column
	// matches the given user id, as generic column→value maps.
	SelectByUserColumn(ctx context.Context, table Table, column, userID string) ([]map[string]any, error)

	// FindUserIDByEmail resolves an email to a user id through the identity
	// table's indexed email column. Returns "" when no user matches.
	FindUserIDByEmail(ctx context.Context, email string) (string, error)

	// UserExists reports whether the identity table holds the given id.
	UserExists(ctx context.Context, userID string) (bool, error)

	// InsertConsent appends a consent row. Consent history is append-only.
	InsertConsent(ctx context.Context, record *models.ConsentRecord) error

	// CountConsentVersions returns how many consent rows exist for the
	// (userID, consentType) pair.
	CountConsentVersions(ctx context.Context, userID, consentType string) (int, error)

	// InsertActivityLog appends a data-level audit row.
	InsertActivityLog(ctx context.Context, entry *models.ActivityLog) error

	// InsertAuditRequest appends a request-level audit row.
	InsertAuditRequest(ctx context.Context, entry *models.AuditRequest) error
}
