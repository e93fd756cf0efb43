package compliance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/GoDataGuard/go-data-guard/internal/util"
	"github.com/GoDataGuard/go-data-guard/models"
)

// mockRow is one relational row with just enough shape for the lifecycle
// operations: a creation timestamp for retention and a subject id for
// erasure and export.
type mockRow struct {
	userID    string
	createdAt time.Time
	data      map[string]any
}

// mockRepository is an in-memory Repository with per-table error injection.
type mockRepository struct {
	mu sync.Mutex

	rows       map[Table][]mockRow
	users      map[string]bool
	emails     map[string]string
	failTables map[Table]bool
	failLookup bool

	consents      []*models.ConsentRecord
	activityLog   []*models.ActivityLog
	auditRequests []*models.AuditRequest
	failConsent   bool
	failAudit     bool
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		rows:       make(map[Table][]mockRow),
		users:      make(map[string]bool),
		emails:     make(map[string]string),
		failTables: make(map[Table]bool),
	}
}

func (m *mockRepository) addRow(table Table, userID string, createdAt time.Time, data map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[table] = append(m.rows[table], mockRow{userID: userID, createdAt: createdAt, data: data})
}

func (m *mockRepository) rowCount(table Table) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows[table])
}

func (m *mockRepository) DeleteOlderThan(ctx context.Context, table Table, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failTables[table] {
		return 0, fmt.Errorf("table %s unavailable", table)
	}

	var kept []mockRow
	var deleted int64
	for _, row := range m.rows[table] {
		if row.createdAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, row)
	}
	m.rows[table] = kept
	return deleted, nil
}

func (m *mockRepository) DeleteByUserColumn(ctx context.Context, table Table, column, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failTables[table] {
		return 0, fmt.Errorf("table %s unavailable", table)
	}

	var kept []mockRow
	var deleted int64
	for _, row := range m.rows[table] {
		if row.userID == userID {
			deleted++
			continue
		}
		kept = append(kept, row)
	}
	m.rows[table] = kept
	return deleted, nil
}

func (m *mockRepository) SelectByUserColumn(ctx context.Context, table Table, column, userID string) ([]map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failTables[table] {
		return nil, fmt.Errorf("table %s unavailable", table)
	}

	var rows []map[string]any
	for _, row := range m.rows[table] {
		if row.userID == userID {
			rows = append(rows, row.data)
		}
	}
	return rows, nil
}

func (m *mockRepository) FindUserIDByEmail(ctx context.Context, email string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLookup {
		return "", errors.New("lookup unavailable")
	}
	return m.emails[email], nil
}

func (m *mockRepository) UserExists(ctx context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLookup {
		return false, errors.New("lookup unavailable")
	}
	return m.users[userID], nil
}

func (m *mockRepository) InsertConsent(ctx context.Context, record *models.ConsentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failConsent {
		return errors.New("consent store unavailable")
	}
	m.consents = append(m.consents, record)
	return nil
}

func (m *mockRepository) CountConsentVersions(ctx context.Context, userID, consentType string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, record := range m.consents {
		if record.UserID == userID && record.ConsentType == consentType {
			count++
		}
	}
	return count, nil
}

func (m *mockRepository) InsertActivityLog(ctx context.Context, entry *models.ActivityLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAudit {
		return errors.New("audit store unavailable")
	}
	m.activityLog = append(m.activityLog, entry)
	return nil
}

func (m *mockRepository) InsertAuditRequest(ctx context.Context, entry *models.AuditRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAudit {
		return errors.New("audit store unavailable")
	}
	m.auditRequests = append(m.auditRequests, entry)
	return nil
}

// mockRevoker records bulk session revocations.
type mockRevoker struct {
	calls    []string
	outcomes []models.RevokeOutcome
	err      error
}

func (m *mockRevoker) RevokeAllForUser(ctx context.Context, userID string) ([]models.RevokeOutcome, error) {
	m.calls = append(m.calls, userID)
	return m.outcomes, m.err
}

func newTestLifecycle(repo Repository, revoker SessionRevoker, overrides map[string]int) *Manager {
	return NewManager(repo, revoker, nil, util.NewMockLogger(), ManagerOptions{
		RetentionOverrides: overrides,
	})
}

// TestRunCleanupCutoffs ensures only rows older than the category's retention are deleted
func TestRunCleanupCutoffs(t *testing.T) {
	repo := newMockRepository()
	now := time.Now()

	// One chat message just past the 90-day default, one just inside it.
	repo.addRow(TableChatMessages, "user-1", now.AddDate(0, 0, -91), nil)
	repo.addRow(TableChatMessages, "user-1", now.AddDate(0, 0, -89), nil)
	// Analytics rows on both sides of the 180-day default.
	repo.addRow(TableAnalyticsEvents, "user-1", now.AddDate(0, 0, -181), nil)
	repo.addRow(TableAnalyticsEvents, "user-1", now.AddDate(0, 0, -10), nil)

	manager := newTestLifecycle(repo, &mockRevoker{}, nil)

	result, err := manager.RunCleanup(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.TotalDeleted != 2 {
		t.Errorf("expected 2 rows deleted in total, got %d", result.TotalDeleted)
	}
	if repo.rowCount(TableChatMessages) != 1 {
		t.Errorf("one chat message should survive, got %d", repo.rowCount(TableChatMessages))
	}
	if repo.rowCount(TableAnalyticsEvents) != 1 {
		t.Errorf("one analytics event should survive, got %d", repo.rowCount(TableAnalyticsEvents))
	}
	if len(result.Categories) != len(manager.Categories()) {
		t.Errorf("every category should report a result, got %d of %d",
			len(result.Categories), len(manager.Categories()))
	}
	if len(repo.activityLog) != 1 {
		t.Fatalf("cleanup should write one activity log row, got %d", len(repo.activityLog))
	}
	if repo.activityLog[0].ActivityType != ActivityRetentionCleanup {
		t.Errorf("unexpected activity type %s", repo.activityLog[0].ActivityType)
	}
}

// TestRunCleanupRetentionOverride ensures config overrides shift the cutoff
func TestRunCleanupRetentionOverride(t *testing.T) {
	repo := newMockRepository()
	now := time.Now()

	repo.addRow(TableChatMessages, "user-1", now.AddDate(0, 0, -40), nil)

	manager := newTestLifecycle(repo, &mockRevoker{}, map[string]int{"chat_transcripts": 30})

	result, err := manager.RunCleanup(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalDeleted != 1 {
		t.Errorf("row older than the overridden retention should be deleted, got %d", result.TotalDeleted)
	}
}

// TestRunCleanupContinuesPastFailures ensures one failing table does not stop the run
func TestRunCleanupContinuesPastFailures(t *testing.T) {
	repo := newMockRepository()
	now := time.Now()

	repo.failTables[TableChatMessages] = true
	repo.addRow(TableAnalyticsEvents, "user-1", now.AddDate(0, 0, -200), nil)

	manager := newTestLifecycle(repo, &mockRevoker{}, nil)

	result, err := manager.RunCleanup(context.Background())
	if err != nil {
		t.Fatalf("a failing table should not fail the run: %v", err)
	}
	if result.TotalDeleted != 1 {
		t.Errorf("the healthy table should still be cleaned, got %d deletions", result.TotalDeleted)
	}

	var sawError bool
	for _, category := range result.Categories {
		for _, table := range category.Tables {
			if table.Table == TableChatMessages && table.Failed() {
				sawError = true
			}
		}
	}
	if !sawError {
		t.Error("the failing table's error should appear in its result")
	}
}

// TestEraseCascade covers the full erasure path: sessions, deletes, audit, counts
func TestEraseCascade(t *testing.T) {
	repo := newMockRepository()
	now := time.Now()

	repo.addRow(TableUsers, "user-1", now, map[string]any{"id": "user-1"})
	repo.addRow(TableUserProfiles, "user-1", now, nil)
	repo.addRow(TableChatMessages, "user-1", now, nil)
	repo.addRow(TableChatMessages, "user-2", now, nil)

	revoker := &mockRevoker{outcomes: []models.RevokeOutcome{{TokenID: "t1"}}}
	manager := newTestLifecycle(repo, revoker, nil)

	result, err := manager.Erase(context.Background(), "user-1", "user request")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Success {
		t.Error("erasure with no failures should succeed")
	}
	if result.TotalDeleted != 3 {
		t.Errorf("expected 3 rows deleted, got %d", result.TotalDeleted)
	}
	if len(result.Tables) != len(erasureOrder) {
		t.Errorf("every registry table should report a result, got %d", len(result.Tables))
	}
	if len(revoker.calls) != 1 || revoker.calls[0] != "user-1" {
		t.Errorf("sessions should be revoked exactly once for user-1, got %v", revoker.calls)
	}
	if len(result.SessionOutcomes) != 1 {
		t.Errorf("session outcomes should be carried into the result, got %d", len(result.SessionOutcomes))
	}

	// The other user's data is untouched.
	if repo.rowCount(TableChatMessages) != 1 {
		t.Errorf("other user's rows should survive, got %d", repo.rowCount(TableChatMessages))
	}

	if len(repo.activityLog) != 1 || repo.activityLog[0].ActivityType != ActivityErasure {
		t.Error("erasure should write one erasure activity log row")
	}
}

// TestEraseIdempotent ensures a second run deletes nothing and still succeeds
func TestEraseIdempotent(t *testing.T) {
	repo := newMockRepository()
	repo.addRow(TableUsers, "user-1", time.Now(), nil)

	manager := newTestLifecycle(repo, &mockRevoker{}, nil)
	ctx := context.Background()

	if _, err := manager.Erase(ctx, "user-1", "first"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := manager.Erase(ctx, "user-1", "second")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Error("repeated erasure should succeed")
	}
	if result.TotalDeleted != 0 {
		t.Errorf("repeated erasure should delete nothing, got %d", result.TotalDeleted)
	}
}

// TestEraseContinuesPastTableFailure ensures one failing table does not stop the cascade
func TestEraseContinuesPastTableFailure(t *testing.T) {
	repo := newMockRepository()
	now := time.Now()

	repo.failTables[TableChatMessages] = true
	repo.addRow(TableUsers, "user-1", now, nil)

	manager := newTestLifecycle(repo, &mockRevoker{}, nil)

	result, err := manager.Erase(context.Background(), "user-1", "partial")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Error("a single table failure should not flip the cascade to failed")
	}
	if repo.rowCount(TableUsers) != 0 {
		t.Error("the identity row should still be deleted")
	}

	var sawFailure bool
	for _, table := range result.Tables {
		if table.Table == TableChatMessages && table.Failed() {
			sawFailure = true
		}
	}
	if !sawFailure {
		t.Error("the failing table should be documented in the result")
	}
}

// TestEraseAllTablesFailing ensures a total failure is reported as such
func TestEraseAllTablesFailing(t *testing.T) {
	repo := newMockRepository()
	for _, table := range erasureOrder {
		repo.failTables[table] = true
	}

	manager := newTestLifecycle(repo, &mockRevoker{}, nil)

	result, err := manager.Erase(context.Background(), "user-1", "total outage")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Error("erasure should report failure when every table failed")
	}
}

// TestEraseContinuesPastSessionFailure ensures deletes run even when revocation errors
func TestEraseContinuesPastSessionFailure(t *testing.T) {
	repo := newMockRepository()
	repo.addRow(TableUsers, "user-1", time.Now(), nil)

	revoker := &mockRevoker{err: errors.New("store down")}
	manager := newTestLifecycle(repo, revoker, nil)

	result, err := manager.Erase(context.Background(), "user-1", "revocation outage")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalDeleted != 1 {
		t.Errorf("deletes should proceed despite session failure, got %d", result.TotalDeleted)
	}
}

// TestEraseEmptyUserID rejects the empty subject
func TestEraseEmptyUserID(t *testing.T) {
	manager := newTestLifecycle(newMockRepository(), &mockRevoker{}, nil)

	if _, err := manager.Erase(context.Background(), "", "no subject"); err == nil {
		t.Error("empty user id should be rejected")
	}
}

// TestExport assembles the document without mutating anything
func TestExport(t *testing.T) {
	repo := newMockRepository()
	now := time.Now()

	repo.addRow(TableUsers, "user-1", now, map[string]any{"id": "user-1", "email": "a@example.com"})
	repo.addRow(TableChatMessages, "user-1", now, map[string]any{"body": "hi"})
	repo.addRow(TableChatMessages, "user-2", now, map[string]any{"body": "other"})

	manager := newTestLifecycle(repo, &mockRevoker{}, nil)

	doc, err := manager.Export(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.UserID != "user-1" {
		t.Errorf("document should name the subject, got %s", doc.UserID)
	}
	if len(doc.Categories) != len(exportCategories) {
		t.Errorf("every export category should be present, got %d", len(doc.Categories))
	}

	conversations, ok := doc.Categories["conversations"]
	if !ok {
		t.Fatal("conversations category missing")
	}
	messages, ok := conversations[TableChatMessages.String()].([]map[string]any)
	if !ok {
		t.Fatalf("chat messages section has unexpected shape %T", conversations[TableChatMessages.String()])
	}
	if len(messages) != 1 {
		t.Errorf("only the subject's messages belong in the export, got %d", len(messages))
	}

	// Export is a pure read.
	if repo.rowCount(TableChatMessages) != 2 {
		t.Error("export must not delete rows")
	}

	// The audit row must not duplicate the exported content.
	if len(repo.activityLog) != 1 {
		t.Fatalf("export should write one activity log row, got %d", len(repo.activityLog))
	}
	if entry := repo.activityLog[0]; entry.ActivityType != ActivityPortabilityExport {
		t.Errorf("unexpected activity type %s", entry.ActivityType)
	}
}

// TestExportFailingTableEmbedsMarker ensures a failing table yields an error marker
func TestExportFailingTableEmbedsMarker(t *testing.T) {
	repo := newMockRepository()
	repo.failTables[TableChatMessages] = true

	manager := newTestLifecycle(repo, &mockRevoker{}, nil)

	doc, err := manager.Export(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("a failing table should not abort the export: %v", err)
	}

	section, ok := doc.Categories["conversations"][TableChatMessages.String()].(map[string]any)
	if !ok {
		t.Fatalf("failing table should embed a marker map, got %T",
			doc.Categories["conversations"][TableChatMessages.String()])
	}
	if section["error"] != "query failed" {
		t.Errorf("marker should say 'query failed', got %v", section["error"])
	}
}

// TestSetConsentAppendOnly ensures repeated changes produce one row each with increasing versions
func TestSetConsentAppendOnly(t *testing.T) {
	repo := newMockRepository()
	manager := newTestLifecycle(repo, &mockRevoker{}, nil)
	ctx := context.Background()

	for i, granted := range []bool{true, false, true} {
		result, err := manager.SetConsent(ctx, "user-1", ConsentAnalytics, granted, "product analytics")
		if err != nil {
			t.Fatalf("unexpected error at change %d: %v", i+1, err)
		}
		if result.Record.Version != i+1 {
			t.Errorf("change %d should be version %d, got %d", i+1, i+1, result.Record.Version)
		}
	}

	if len(repo.consents) != 3 {
		t.Fatalf("three changes should yield three rows, got %d", len(repo.consents))
	}

	granted := repo.consents[0]
	if granted.GrantedAt == nil || granted.WithdrawnAt != nil {
		t.Error("a grant should set GrantedAt only")
	}
	withdrawn := repo.consents[1]
	if withdrawn.WithdrawnAt == nil || withdrawn.GrantedAt != nil {
		t.Error("a withdrawal should set WithdrawnAt only")
	}
	if granted.LegalBasis != "consent" {
		t.Errorf("analytics consent should record basis 'consent', got %s", granted.LegalBasis)
	}
}

// TestSetConsentUnknownType rejects unregistered consent types
func TestSetConsentUnknownType(t *testing.T) {
	manager := newTestLifecycle(newMockRepository(), &mockRevoker{}, nil)

	if _, err := manager.SetConsent(context.Background(), "user-1", "telepathy", true, ""); err == nil {
		t.Error("unknown consent type should be rejected")
	}
}

// TestSetConsentCriticalWithdrawalFlagsErasure ensures withdrawal of essential consent
// schedules, but does not execute, an erasure
func TestSetConsentCriticalWithdrawalFlagsErasure(t *testing.T) {
	repo := newMockRepository()
	repo.addRow(TableUsers, "user-1", time.Now(), nil)

	revoker := &mockRevoker{}
	manager := newTestLifecycle(repo, revoker, nil)

	result, err := manager.SetConsent(context.Background(), "user-1", ConsentEssential, false, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.ScheduledErasureAt == nil {
		t.Fatal("critical withdrawal should flag a scheduled erasure")
	}
	wantEarliest := time.Now().Add(erasureGracePeriod - time.Minute)
	if result.ScheduledErasureAt.Before(wantEarliest) {
		t.Errorf("scheduled erasure should respect the grace period, got %v", result.ScheduledErasureAt)
	}

	// Nothing is deleted and no sessions are revoked until the scheduled time.
	if repo.rowCount(TableUsers) != 1 {
		t.Error("critical withdrawal must not erase inline")
	}
	if len(revoker.calls) != 0 {
		t.Error("critical withdrawal must not revoke sessions inline")
	}
}

// TestSetConsentNonCriticalWithdrawal ensures ordinary withdrawals carry no erasure flag
func TestSetConsentNonCriticalWithdrawal(t *testing.T) {
	manager := newTestLifecycle(newMockRepository(), &mockRevoker{}, nil)

	result, err := manager.SetConsent(context.Background(), "user-1", ConsentMarketing, false, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ScheduledErasureAt != nil {
		t.Error("non-critical withdrawal should not flag an erasure")
	}
}

// TestAuditFailureDoesNotFailOperation ensures a broken audit store never blocks the work
func TestAuditFailureDoesNotFailOperation(t *testing.T) {
	repo := newMockRepository()
	repo.failAudit = true
	repo.addRow(TableUsers, "user-1", time.Now(), nil)

	manager := newTestLifecycle(repo, &mockRevoker{}, nil)

	result, err := manager.Erase(context.Background(), "user-1", "audit outage")
	if err != nil {
		t.Fatalf("audit failure should not fail the erasure: %v", err)
	}
	if !result.Success {
		t.Error("erasure should succeed despite the audit failure")
	}
}
