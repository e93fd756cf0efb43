package compliance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"github.com/GoDataGuard/go-data-guard/models"
)

// BunRepository implements Repository over the relational store with Bun.
type BunRepository struct {
	db bun.IDB
}

func NewBunRepository(db bun.IDB) Repository {
	return &BunRepository{db: db}
}

func (r *BunRepository) DeleteOlderThan(ctx context.Context, table Table, cutoff time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Table(table.String()).
		Where("created_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *BunRepository) DeleteByUserColumn(ctx context.Context, table Table, column, userID string) (int64, error) {
	res, err := r.db.NewDelete().
		Table(table.String()).
		Where("? = ?", bun.Ident(column), userID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *BunRepository) SelectByUserColumn(ctx context.Context, table Table, column, userID string) ([]map[string]any, error) {
	var rows []map[string]any
	err := r.db.NewSelect().
		Table(table.String()).
		Where("? = ?", bun.Ident(column), userID).
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *BunRepository) FindUserIDByEmail(ctx context.Context, email string) (string, error) {
	var id string
	err := r.db.NewSelect().
		Table(TableUsers.String()).
		Column("id").
		Where("email = ?", email).
		Scan(ctx, &id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *BunRepository) UserExists(ctx context.Context, userID string) (bool, error) {
	exists, err := r.db.NewSelect().
		Table(TableUsers.String()).
		Where("id = ?", userID).
		Exists(ctx)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *BunRepository) InsertConsent(ctx context.Context, record *models.ConsentRecord) error {
	_, err := r.db.NewInsert().Model(record).Exec(ctx)
	return err
}

func (r *BunRepository) CountConsentVersions(ctx context.Context, userID, consentType string) (int, error) {
	count, err := r.db.NewSelect().
		Model((*models.ConsentRecord)(nil)).
		Where("user_id = ?", userID).
		Where("consent_type = ?", consentType).
		Count(ctx)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *BunRepository) InsertActivityLog(ctx context.Context, entry *models.ActivityLog) error {
	_, err := r.db.NewInsert().Model(entry).Exec(ctx)
	return err
}

func (r *BunRepository) InsertAuditRequest(ctx context.Context, entry *models.AuditRequest) error {
	_, err := r.db.NewInsert().Model(entry).Exec(ctx)
	return err
}
