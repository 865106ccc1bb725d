package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sangmeshafzalpur/minimini/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var timetableRowColumns = []string{"id", "academic_key", "version", "status", "meta", "created_by", "created_at", "updated_at", "published_at"}

func TestTimetableRepositoryCreateVersioned(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(version), 0) + 1 FROM timetables WHERE academic_key = $1")).
		WithArgs("2025-26/ODD/3/CSE/2/A").
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(3))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetables")).
		WithArgs(sqlmock.AnyArg(), "2025-26/ODD/3/CSE/2/A", 3, string(models.TimetableStatusDraft), sqlmock.AnyArg(), "user-1", sqlmock.AnyArg(), sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	tt := &models.Timetable{AcademicKey: "2025-26/ODD/3/CSE/2/A", CreatedBy: "user-1"}
	require.NoError(t, repo.CreateVersioned(context.Background(), nil, tt))
	assert.Equal(t, 3, tt.Version)
	assert.NotEmpty(t, tt.ID)
	assert.Equal(t, types.JSONText(`{}`), tt.Meta)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryCreateVersionedRequiresKey(t *testing.T) {
	db, _, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	assert.Error(t, repo.CreateVersioned(context.Background(), nil, &models.Timetable{}))
	assert.Error(t, repo.CreateVersioned(context.Background(), nil, nil))
}

func TestTimetableRepositoryListByAcademicKey(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(timetableRowColumns).
		AddRow("tt-2", "KEY", 2, "PUBLISHED", []byte(`{}`), "user-1", now, now, now).
		AddRow("tt-1", "KEY", 1, "DRAFT", []byte(`{}`), "user-1", now, now, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, academic_key, version, status, meta, created_by, created_at, updated_at, published_at FROM timetables WHERE academic_key = $1 ORDER BY version DESC")).
		WithArgs("KEY").
		WillReturnRows(rows)

	list, err := repo.ListByAcademicKey(context.Background(), "KEY")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, models.TimetableStatusPublished, list[0].Status)
	assert.NotNil(t, list[0].PublishedAt)
	assert.Nil(t, list[1].PublishedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM timetables WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(timetableRowColumns))

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryDeleteNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM timetables WHERE id = $1")).
		WithArgs("tt-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), nil, "tt-1"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryUpdateStatusPublished(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	published := time.Date(2026, time.January, 5, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE timetables SET status = $1, published_at = $2, updated_at = $3 WHERE id = $4")).
		WithArgs(string(models.TimetableStatusPublished), published, sqlmock.AnyArg(), "tt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), nil, "tt-1", models.TimetableStatusPublished, &published))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRepositoryArchivePublishedUsesTx(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE timetables SET status = $1, updated_at = $2 WHERE academic_key = $3 AND status = $4 AND id <> $5")).
		WithArgs(string(models.TimetableStatusArchived), sqlmock.AnyArg(), "KEY", string(models.TimetableStatusPublished), "tt-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.ArchivePublished(context.Background(), tx, "KEY", "tt-2"))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}
