package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geet-h17/canvas-lms/internal/models"
)

func newSettingRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func TestSettingRepositoryListByKeys(t *testing.T) {
	db, mock, cleanup := newSettingRepoMock(t)
	defer cleanup()

	repo := NewSettingRepository(db)
	rows := sqlmock.NewRows([]string{"key", "value", "type", "description", "updated_by", "updated_at"}).
		AddRow("sis_post_enabled", "true", "BOOLEAN", "desc", "admin", time.Now())
	mock.ExpectQuery("SELECT key, value").
		WithArgs("sis_post_enabled").
		WillReturnRows(rows)

	result, err := repo.ListByKeys(context.Background(), []string{"sis_post_enabled"})
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "true", result[0].Value)
}

func TestSettingRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newSettingRepoMock(t)
	defer cleanup()
	repo := NewSettingRepository(db)
	mock.ExpectExec("INSERT INTO settings").
		WithArgs("default_term_id", "term-1", "STRING", sqlmock.AnyArg(), "admin", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	setting := &models.Setting{
		Key:       "default_term_id",
		Value:     "term-1",
		Type:      models.SettingTypeString,
		UpdatedBy: strPtr("admin"),
	}
	require.NoError(t, repo.Upsert(context.Background(), setting))
}

func TestSettingRepositoryBulkUpsert(t *testing.T) {
	db, mock, cleanup := newSettingRepoMock(t)
	defer cleanup()
	repo := NewSettingRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO settings").
		WithArgs("sis_post_enabled", "true", "BOOLEAN", sqlmock.AnyArg(), "admin", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO settings").
		WithArgs("sis_require_due_date", "true", "BOOLEAN", sqlmock.AnyArg(), "admin", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	items := []models.Setting{
		{Key: "sis_post_enabled", Value: "true", Type: models.SettingTypeBoolean, UpdatedBy: strPtr("admin")},
		{Key: "sis_require_due_date", Value: "true", Type: models.SettingTypeBoolean, UpdatedBy: strPtr("admin")},
	}
	require.NoError(t, repo.BulkUpsert(context.Background(), items))
}

func strPtr(value string) *string {
	return &value
}
