package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/sangmeshafzalpur/minimini/internal/models"
)

const timetableColumns = `id, academic_key, version, status, meta, created_by, created_at, updated_at, published_at`

// TimetableRepository persists versioned timetables.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

func (r *TimetableRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateVersioned inserts a timetable assigning the next version for its academic key.
func (r *TimetableRepository) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, tt *models.Timetable) error {
	if tt == nil {
		return fmt.Errorf("timetable payload is nil")
	}
	if tt.AcademicKey == "" {
		return fmt.Errorf("academic_key is required")
	}
	if tt.ID == "" {
		tt.ID = uuid.NewString()
	}
	if tt.Status == "" {
		tt.Status = models.TimetableStatusDraft
	}
	if len(tt.Meta) == 0 {
		tt.Meta = types.JSONText(`{}`)
	}
	now := time.Now().UTC()
	if tt.CreatedAt.IsZero() {
		tt.CreatedAt = now
	}
	tt.UpdatedAt = now

	target := r.exec(exec)

	const nextVersionQuery = `SELECT COALESCE(MAX(version), 0) + 1 FROM timetables WHERE academic_key = $1`
	if err := sqlx.GetContext(ctx, target, &tt.Version, nextVersionQuery, tt.AcademicKey); err != nil {
		return fmt.Errorf("compute next timetable version: %w", err)
	}

	const insertQuery = `
INSERT INTO timetables (id, academic_key, version, status, meta, created_by, created_at, updated_at, published_at)
VALUES (:id, :academic_key, :version, :status, :meta, :created_by, :created_at, :updated_at, :published_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, tt); err != nil {
		return fmt.Errorf("insert timetable: %w", err)
	}
	return nil
}

// ListByAcademicKey returns every version for the key, newest first.
func (r *TimetableRepository) ListByAcademicKey(ctx context.Context, academicKey string) ([]models.Timetable, error) {
	query := `SELECT ` + timetableColumns + ` FROM timetables WHERE academic_key = $1 ORDER BY version DESC`
	var list []models.Timetable
	if err := r.db.SelectContext(ctx, &list, query, academicKey); err != nil {
		return nil, fmt.Errorf("list timetables: %w", err)
	}
	return list, nil
}

// FindByID loads a timetable by its identifier. A missing row yields sql.ErrNoRows.
func (r *TimetableRepository) FindByID(ctx context.Context, id string) (*models.Timetable, error) {
	query := `SELECT ` + timetableColumns + ` FROM timetables WHERE id = $1`
	var tt models.Timetable
	if err := r.db.GetContext(ctx, &tt, query, id); err != nil {
		return nil, err
	}
	return &tt, nil
}

// Delete removes a stored version.
func (r *TimetableRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	const query = `DELETE FROM timetables WHERE id = $1`
	result, err := r.exec(exec).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete timetable: %w", err)
	}
	return expectAffected(result, "delete timetable")
}

// UpdateStatus moves a version to status; publishedAt is stored when non-nil.
func (r *TimetableRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.TimetableStatus, publishedAt *time.Time) error {
	target := r.exec(exec)
	now := time.Now().UTC()

	var (
		query string
		args  []interface{}
	)
	if publishedAt != nil {
		query = `UPDATE timetables SET status = $1, published_at = $2, updated_at = $3 WHERE id = $4`
		args = []interface{}{status, *publishedAt, now, id}
	} else {
		query = `UPDATE timetables SET status = $1, updated_at = $2 WHERE id = $3`
		args = []interface{}{status, now, id}
	}
	result, err := target.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update timetable status: %w", err)
	}
	return expectAffected(result, "update timetable status")
}

// ArchivePublished archives every published version of the key except keepID.
func (r *TimetableRepository) ArchivePublished(ctx context.Context, exec sqlx.ExtContext, academicKey, keepID string) error {
	const query = `UPDATE timetables SET status = $1, updated_at = $2 WHERE academic_key = $3 AND status = $4 AND id <> $5`
	if _, err := r.exec(exec).ExecContext(ctx, query,
		models.TimetableStatusArchived, time.Now().UTC(), academicKey, models.TimetableStatusPublished, keepID); err != nil {
		return fmt.Errorf("archive published timetables: %w", err)
	}
	return nil
}

func expectAffected(result sql.Result, op string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
