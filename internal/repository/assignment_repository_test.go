package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geet-h17/canvas-lms/internal/models"
)

func newAssignmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func assignmentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "course_id", "title", "due_at", "unlock_at", "lock_at", "published", "created_at", "updated_at",
	})
}

func TestAssignmentRepositoryList(t *testing.T) {
	db, mock, cleanup := newAssignmentRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	due := time.Date(2024, 9, 10, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "course_id", "title", "due_at", "unlock_at", "lock_at", "published", "created_at", "updated_at", "override_count",
	}).AddRow("assignment-1", "course-1", "Essay", due, nil, nil, true, time.Now(), time.Now(), 2)

	mock.ExpectQuery("SELECT a.id, a.course_id").
		WithArgs("course-1").
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	assignments, total, err := repo.List(context.Background(), models.AssignmentFilter{CourseID: "course-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, assignments, 1)
	assert.Equal(t, "Essay", assignments[0].Title)
	assert.Equal(t, 2, assignments[0].OverrideCount)
	require.NotNil(t, assignments[0].DueAt)
}

func TestAssignmentRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newAssignmentRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	published := true
	mock.ExpectQuery("SELECT a.id, a.course_id").
		WithArgs("course-1", "%essay%", true).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("course-1", "%essay%", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, total, err := repo.List(context.Background(), models.AssignmentFilter{
		CourseID:  "course-1",
		Search:    "essay",
		Published: &published,
	})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestAssignmentRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newAssignmentRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery("SELECT id, course_id").
		WithArgs("assignment-1").
		WillReturnRows(assignmentRows().AddRow("assignment-1", "course-1", "Essay", nil, nil, nil, false, time.Now(), time.Now()))

	assignment, err := repo.FindByID(context.Background(), "assignment-1")
	require.NoError(t, err)
	assert.Equal(t, "Essay", assignment.Title)
	assert.Nil(t, assignment.DueAt)
}

func TestAssignmentRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newAssignmentRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery("SELECT id, course_id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.Equal(t, sql.ErrNoRows, err)
}

func TestAssignmentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newAssignmentRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectExec("INSERT INTO assignments").
		WithArgs("assignment-1", "course-1", "Essay", sqlmock.AnyArg(), nil, nil, true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	due := time.Date(2024, 9, 10, 12, 0, 0, 0, time.UTC)
	assignment := &models.Assignment{
		ID:        "assignment-1",
		CourseID:  "course-1",
		Title:     "Essay",
		DueAt:     &due,
		Published: true,
	}
	require.NoError(t, repo.Create(context.Background(), assignment))
	assert.False(t, assignment.UpdatedAt.IsZero())
}

func TestAssignmentRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newAssignmentRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectExec("INSERT INTO assignments").
		WillReturnResult(sqlmock.NewResult(1, 1))

	assignment := &models.Assignment{CourseID: "course-1", Title: "Quiz"}
	require.NoError(t, repo.Create(context.Background(), assignment))
	assert.NotEmpty(t, assignment.ID)
}

func TestAssignmentRepositoryUpdateDates(t *testing.T) {
	db, mock, cleanup := newAssignmentRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectExec("UPDATE assignments SET").
		WithArgs(sqlmock.AnyArg(), nil, nil, sqlmock.AnyArg(), "assignment-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	due := time.Date(2024, 9, 12, 12, 0, 0, 0, time.UTC)
	assignment := &models.Assignment{ID: "assignment-1", DueAt: &due}
	require.NoError(t, repo.UpdateDates(context.Background(), assignment))
}

func TestAssignmentRepositoryListByCourse(t *testing.T) {
	db, mock, cleanup := newAssignmentRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectQuery("SELECT id, course_id").
		WithArgs("course-1").
		WillReturnRows(assignmentRows().
			AddRow("assignment-1", "course-1", "Essay", nil, nil, nil, true, time.Now(), time.Now()).
			AddRow("assignment-2", "course-1", "Quiz", nil, nil, nil, false, time.Now(), time.Now()))

	assignments, err := repo.ListByCourse(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, assignments, 2)
	assert.Equal(t, "Quiz", assignments[1].Title)
}
