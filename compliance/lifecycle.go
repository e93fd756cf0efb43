package compliance

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/GoDataGuard/go-data-guard/internal/util"
	"github.com/GoDataGuard/go-data-guard/models"
)

// EventErasureCompleted is published after an erasure cascade so the outbound
// notification service can send the confirmation without the cascade blocking
// on it.
const EventErasureCompleted = "compliance.erasure_completed"

// erasureGracePeriod is how far in the future an erasure is flagged when a
// critical consent type is withdrawn. Executing it is the external job
// caller's responsibility.
const erasureGracePeriod = 30 * 24 * time.Hour

// SessionRevoker is the slice of the session manager the lifecycle manager
// needs: erasure starts by killing every session so no in-flight write can
// extend the user's footprint.
type SessionRevoker interface {
	RevokeAllForUser(ctx context.Context, userID string) ([]models.RevokeOutcome, error)
}

// ErasureCompletedEvent is the payload published on EventErasureCompleted.
type ErasureCompletedEvent struct {
	UserID       string    `json:"user_id"`
	Reason       string    `json:"reason"`
	TotalDeleted int64     `json:"total_deleted"`
	CompletedAt  time.Time `json:"completed_at"`
}

// Manager drives the personal-data lifecycle: retention cleanup, erasure
// cascades, portability export and consent bookkeeping. All four operations
// are independently idempotent and collect per-table failures instead of
// propagating them.
type Manager struct {
	repo       Repository
	sessions   SessionRevoker
	eventBus   models.EventBus
	logger     models.Logger
	categories []models.RetentionCategory
}

// ManagerOptions configures a lifecycle Manager.
type ManagerOptions struct {
	// RetentionOverrides adjusts retention days per category name.
	RetentionOverrides map[string]int
}

// NewManager creates a lifecycle Manager. eventBus may be nil; erasure
// notifications are then skipped.
func NewManager(repo Repository, sessions SessionRevoker, eventBus models.EventBus, logger models.Logger, opts ManagerOptions) *Manager {
	return &Manager{
		repo:       repo,
		sessions:   sessions,
		eventBus:   eventBus,
		logger:     logger,
		categories: RetentionCategories(opts.RetentionOverrides),
	}
}

// Categories exposes the loaded retention configuration.
func (m *Manager) Categories() []models.RetentionCategory {
	return m.categories
}

// RunCleanup deletes expired rows for every retention category. Triggered by
// an external scheduled job caller; runs to completion within the call. A
// failure in one table is recorded in that table's result and the run
// continues with the rest.
func (m *Manager) RunCleanup(ctx context.Context) (*CleanupResult, error) {
	now := time.Now()
	result := &CleanupResult{RanAt: now}

	for _, category := range m.categories {
		cutoff := now.AddDate(0, 0, -category.RetentionDays)
		catResult := CategoryResult{
			Category:      category.Name,
			Critical:      category.Critical,
			RetentionDays: category.RetentionDays,
			Cutoff:        cutoff,
		}

		for _, tableName := range category.Tables {
			table := Table(tableName)
			tr := TableResult{Table: table}

			deleted, err := m.repo.DeleteOlderThan(ctx, table, cutoff)
			if err != nil {
				tr.Error = err.Error()
				m.logger.Error("retention cleanup failed for table",
					"category", category.Name,
					"table", table,
					"error", err,
				)
			} else {
				tr.RowsAffected = deleted
				catResult.TotalDeleted += deleted
			}
			catResult.Tables = append(catResult.Tables, tr)
		}

		result.TotalDeleted += catResult.TotalDeleted
		result.Categories = append(result.Categories, catResult)
	}

	m.logActivity(ctx, ActivityRetentionCleanup, nil, result, result.TotalDeleted)

	m.logger.Info("retention cleanup completed",
		"categories", len(result.Categories),
		"total_deleted", result.TotalDeleted,
	)

	return result, nil
}

// Erase performs the right-to-erasure cascade. Each step is independent: a
// failure in one never prevents the rest. There is no cross-table
// transaction; what could not be deleted is documented in the result, which
// is the correct legal posture.
func (m *Manager) Erase(ctx context.Context, userID, reason string) (*ErasureResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID cannot be empty")
	}

	result := &ErasureResult{
		UserID: userID,
		Reason: reason,
	}

	// Step 1: kill every session so no in-flight request keeps writing on
	// the user's behalf while rows are being removed.
	outcomes, err := m.sessions.RevokeAllForUser(ctx, userID)
	if err != nil {
		m.logger.Error("failed to revoke sessions during erasure, continuing with deletes",
			"user_id", userID,
			"error", err,
		)
	}
	result.SessionOutcomes = outcomes

	// Step 2: best-effort cascading delete in fixed registry order.
	failures := 0
	for _, table := range erasureOrder {
		tr := TableResult{Table: table}

		column, err := UserColumn(table)
		if err != nil {
			tr.Error = err.Error()
			failures++
			result.Tables = append(result.Tables, tr)
			continue
		}

		deleted, err := m.repo.DeleteByUserColumn(ctx, table, column, userID)
		if err != nil {
			tr.Error = err.Error()
			failures++
			m.logger.Error("erasure failed for table",
				"user_id", userID,
				"table", table,
				"error", err,
			)
		} else {
			tr.RowsAffected = deleted
			result.TotalDeleted += deleted
		}
		result.Tables = append(result.Tables, tr)
	}

	result.Success = failures < len(erasureOrder)
	result.CompletedAt = time.Now()

	// Step 3: data-level audit trail.
	m.logActivity(ctx, ActivityErasure, &userID, result, result.TotalDeleted)

	// Step 4: trigger, but do not block on, the confirmation notification.
	m.publishErasureCompleted(result)

	m.logger.Info("erasure completed",
		"user_id", userID,
		"total_deleted", result.TotalDeleted,
		"failed_tables", failures,
		"success", result.Success,
	)

	return result, nil
}

// Export assembles the portability document: a pure read grouped by category
// then table. A single table's query failure embeds an error marker for that
// table instead of aborting the export.
func (m *Manager) Export(ctx context.Context, userID string) (*ExportDocument, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID cannot be empty")
	}

	doc := &ExportDocument{
		UserID:      userID,
		GeneratedAt: time.Now(),
		Categories:  make(map[string]map[string]any, len(exportCategories)),
	}

	categoryNames := make([]string, 0, len(exportCategories))
	for _, category := range exportCategories {
		categoryNames = append(categoryNames, category.Name)
		section := make(map[string]any, len(category.Tables))

		for _, table := range category.Tables {
			column, err := UserColumn(table)
			if err != nil {
				section[table.String()] = map[string]any{"error": err.Error()}
				continue
			}

			rows, err := m.repo.SelectByUserColumn(ctx, table, column, userID)
			if err != nil {
				m.logger.Error("export query failed for table",
					"user_id", userID,
					"table", table,
					"error", err,
				)
				section[table.String()] = map[string]any{"error": "query failed"}
				continue
			}
			if rows == nil {
				rows = []map[string]any{}
			}
			section[table.String()] = rows
		}

		doc.Categories[category.Name] = section
	}

	// The audit row records the export's size and shape, not its content:
	// duplicating personal data into the audit trail would defeat erasure.
	size := 0
	if payload, err := json.Marshal(doc); err == nil {
		size = len(payload)
	}
	summary := map[string]any{
		"bytes":      size,
		"categories": categoryNames,
	}
	m.logActivity(ctx, ActivityPortabilityExport, &userID, summary, 0)

	return doc, nil
}

// SetConsent appends a consent state change. History is append-only: N calls
// for the same (user, type) yield N rows. Withdrawing a critical consent
// type does not erase immediately; the result flags a scheduled erasure for
// the external job caller to execute after the grace period.
func (m *Manager) SetConsent(ctx context.Context, userID, consentType string, granted bool, purpose string) (*ConsentResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID cannot be empty")
	}

	basis, err := LegalBasis(consentType)
	if err != nil {
		return nil, err
	}

	version, err := m.repo.CountConsentVersions(ctx, userID, consentType)
	if err != nil {
		return nil, fmt.Errorf("failed to count consent versions: %w", err)
	}

	now := time.Now()
	record := &models.ConsentRecord{
		ID:          uuid.NewString(),
		UserID:      userID,
		ConsentType: consentType,
		Granted:     granted,
		LegalBasis:  basis,
		Purpose:     purpose,
		Version:     version + 1,
	}
	if granted {
		record.GrantedAt = &now
	} else {
		record.WithdrawnAt = &now
	}

	if err := m.repo.InsertConsent(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to append consent record: %w", err)
	}

	result := &ConsentResult{Record: record}

	if !granted && criticalConsentTypes[consentType] {
		scheduled := now.Add(erasureGracePeriod)
		result.ScheduledErasureAt = &scheduled
		m.logger.Warn("critical consent withdrawn, erasure flagged for scheduled execution",
			"user_id", userID,
			"consent_type", consentType,
			"scheduled_erasure_at", scheduled,
		)
	}

	m.logActivity(ctx, ActivityConsentUpdate, &userID, map[string]any{
		"consent_type": consentType,
		"granted":      granted,
		"version":      record.Version,
	}, 0)

	return result, nil
}

// logActivity appends a data-level audit row. Audit failures are logged and
// swallowed: the operation they describe already happened.
func (m *Manager) logActivity(ctx context.Context, activityType string, userID *string, summary any, totalAffected int64) {
	payload, err := json.Marshal(summary)
	if err != nil {
		payload = []byte(fmt.Sprintf("%q", fmt.Sprint(summary)))
	}

	entry := &models.ActivityLog{
		ID:            uuid.NewString(),
		ActivityType:  activityType,
		UserID:        userID,
		ExecutedAt:    time.Now(),
		Summary:       string(payload),
		TotalAffected: totalAffected,
	}

	if err := m.repo.InsertActivityLog(ctx, entry); err != nil {
		m.logger.Error("failed to write activity log entry",
			"activity_type", activityType,
			"error", err,
		)
	}
}

func (m *Manager) publishErasureCompleted(result *ErasureResult) {
	if m.eventBus == nil {
		return
	}

	payload, err := json.Marshal(ErasureCompletedEvent{
		UserID:       result.UserID,
		Reason:       result.Reason,
		TotalDeleted: result.TotalDeleted,
		CompletedAt:  result.CompletedAt,
	})
	if err != nil {
		m.logger.Error("failed to encode erasure event", "error", err)
		return
	}

	util.PublishEventAsync(m.eventBus, m.logger, models.Event{
		Type:      EventErasureCompleted,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
}
