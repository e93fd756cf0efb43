package compliance

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/GoDataGuard/go-data-guard/internal/util"
	"github.com/GoDataGuard/go-data-guard/models"
)

// Facade actions recorded in the request-level audit trail.
const (
	ActionErase      = "erase"
	ActionExport     = "export"
	ActionSetConsent = "set_consent"
	ActionRunCleanup = "run_cleanup"
)

// Subject identifies the data subject of a compliance request by user id or
// email; exactly one must be set.
type Subject struct {
	UserID string `json:"user_id" validate:"omitempty,max=128"`
	Email  string `json:"email" validate:"omitempty,email"`
}

// EraseRequest asks for a right-to-erasure cascade.
type EraseRequest struct {
	Subject
	Reason   string `json:"reason" validate:"required,max=512"`
	CallerIP string `json:"-"`
}

// ExportRequest asks for a portability export.
type ExportRequest struct {
	Subject
	CallerIP string `json:"-"`
}

// ConsentRequest records a consent state change.
type ConsentRequest struct {
	UserID      string `json:"user_id" validate:"required,max=128"`
	ConsentType string `json:"consent_type" validate:"required,max=64"`
	Granted     bool   `json:"granted"`
	Purpose     string `json:"purpose" validate:"max=512"`
	CallerIP    string `json:"-"`
}

// CleanupRequest triggers a retention cleanup run.
type CleanupRequest struct {
	CallerIP string `json:"-"`
}

// Result is the single shape the presentation layer branches on. Error
// carries enough for the caller without leaking storage internals.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func failure(msg string) Result {
	return Result{Error: msg}
}

// Facade is the thin contract between the presentation layer and the
// lifecycle manager. It resolves the data subject, dispatches, and writes a
// request-level audit row for every inbound request, independent of the
// manager's own data-level activity log.
type Facade struct {
	manager *Manager
	repo    Repository
	logger  models.Logger
}

func NewFacade(manager *Manager, repo Repository, logger models.Logger) *Facade {
	return &Facade{
		manager: manager,
		repo:    repo,
		logger:  logger,
	}
}

// Erase resolves the subject and runs the erasure cascade.
func (f *Facade) Erase(ctx context.Context, req EraseRequest) Result {
	if err := util.ValidateStruct(req); err != nil {
		return failure("invalid request")
	}

	userID, result := f.resolveSubject(ctx, req.Subject)
	if result != nil {
		f.audit(ctx, ActionErase, nil, req.CallerIP, result.Error)
		return *result
	}

	erasure, err := f.manager.Erase(ctx, userID, req.Reason)
	if err != nil {
		f.logger.Error("erasure request failed", "user_id", userID, "error", err)
		f.audit(ctx, ActionErase, &userID, req.CallerIP, "error")
		return failure("erasure failed")
	}

	outcome := "success"
	if !erasure.Success {
		outcome = "failed"
	}
	f.audit(ctx, ActionErase, &userID, req.CallerIP, outcome)

	return Result{Success: erasure.Success, Data: erasure}
}

// Export resolves the subject and assembles the portability document.
func (f *Facade) Export(ctx context.Context, req ExportRequest) Result {
	if err := util.ValidateStruct(req); err != nil {
		return failure("invalid request")
	}

	userID, result := f.resolveSubject(ctx, req.Subject)
	if result != nil {
		f.audit(ctx, ActionExport, nil, req.CallerIP, result.Error)
		return *result
	}

	doc, err := f.manager.Export(ctx, userID)
	if err != nil {
		f.logger.Error("export request failed", "user_id", userID, "error", err)
		f.audit(ctx, ActionExport, &userID, req.CallerIP, "error")
		return failure("export failed")
	}

	f.audit(ctx, ActionExport, &userID, req.CallerIP, "success")

	return Result{Success: true, Data: doc}
}

// SetConsent appends a consent state change for the user.
func (f *Facade) SetConsent(ctx context.Context, req ConsentRequest) Result {
	if err := util.ValidateStruct(req); err != nil {
		return failure("invalid request")
	}

	consent, err := f.manager.SetConsent(ctx, req.UserID, req.ConsentType, req.Granted, req.Purpose)
	if err != nil {
		f.logger.Error("consent request failed",
			"user_id", req.UserID,
			"consent_type", req.ConsentType,
			"error", err,
		)
		f.audit(ctx, ActionSetConsent, &req.UserID, req.CallerIP, "error")
		return failure("consent update failed")
	}

	f.audit(ctx, ActionSetConsent, &req.UserID, req.CallerIP, "success")

	return Result{Success: true, Data: consent}
}

// RunCleanup triggers a retention cleanup run on behalf of the scheduled job
// caller.
func (f *Facade) RunCleanup(ctx context.Context, req CleanupRequest) Result {
	cleanup, err := f.manager.RunCleanup(ctx)
	if err != nil {
		f.logger.Error("cleanup request failed", "error", err)
		f.audit(ctx, ActionRunCleanup, nil, req.CallerIP, "error")
		return failure("cleanup failed")
	}

	f.audit(ctx, ActionRunCleanup, nil, req.CallerIP, "success")

	return Result{Success: true, Data: cleanup}
}

// resolveSubject turns a Subject into a user id, preferring the explicit id.
// Returns a Result on validation or lookup failure.
func (f *Facade) resolveSubject(ctx context.Context, subject Subject) (string, *Result) {
	if subject.UserID != "" {
		exists, err := f.repo.UserExists(ctx, subject.UserID)
		if err != nil {
			f.logger.Error("user lookup failed", "user_id", subject.UserID, "error", err)
			r := failure("lookup failed")
			return "", &r
		}
		if !exists {
			r := failure("user not found")
			return "", &r
		}
		return subject.UserID, nil
	}

	if subject.Email == "" {
		r := failure("user_id or email is required")
		return "", &r
	}

	userID, err := f.repo.FindUserIDByEmail(ctx, subject.Email)
	if err != nil {
		f.logger.Error("email lookup failed", "error", err)
		r := failure("lookup failed")
		return "", &r
	}
	if userID == "" {
		r := failure("user not found")
		return "", &r
	}
	return userID, nil
}

// audit writes the request-level audit row. Failures are logged and
// swallowed so auditing never blocks the operation's response.
func (f *Facade) audit(ctx context.Context, action string, userID *string, callerIP, outcome string) {
	entry := &models.AuditRequest{
		ID:         uuid.NewString(),
		Action:     action,
		UserID:     userID,
		CallerIP:   callerIP,
		Outcome:    outcome,
		OccurredAt: time.Now(),
	}
	if err := f.repo.InsertAuditRequest(ctx, entry); err != nil {
		f.logger.Error("failed to write request audit entry",
			"action", action,
			"error", err,
		)
	}
}
