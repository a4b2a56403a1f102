package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/geet-h17/canvas-lms/internal/datewindow"
	"github.com/geet-h17/canvas-lms/internal/models"
	"github.com/geet-h17/canvas-lms/pkg/export"
	"github.com/geet-h17/canvas-lms/pkg/storage"
)

type exportCourseStub struct{}

func (exportCourseStub) FindByID(ctx context.Context, id string) (*models.Course, error) {
	return &models.Course{ID: id, TermID: "term-1", Name: "Biology 101"}, nil
}

type exportAssignmentsStub struct{}

func (exportAssignmentsStub) ListByCourse(ctx context.Context, courseID string) ([]models.Assignment, error) {
	return []models.Assignment{
		{
			ID:       "assignment-1",
			CourseID: courseID,
			Title:    "Essay",
			DueAt:    ptrTime(time.Date(2024, 9, 10, 12, 0, 0, 0, time.UTC)),
			LockAt:   ptrTime(time.Date(2024, 9, 5, 12, 0, 0, 0, time.UTC)),
		},
		{
			ID:        "assignment-2",
			CourseID:  courseID,
			Title:     "Quiz",
			DueAt:     ptrTime(time.Date(2024, 9, 12, 12, 0, 0, 0, time.UTC)),
			Published: true,
		},
	}, nil
}

type exportOverridesStub struct{}

func (exportOverridesStub) ListByAssignment(ctx context.Context, assignmentID string) ([]models.AssignmentOverride, error) {
	if assignmentID != "assignment-1" {
		return nil, nil
	}
	sectionID := "section-1"
	return []models.AssignmentOverride{
		{
			ID:              "override-1",
			AssignmentID:    assignmentID,
			SetType:         models.OverrideSetSection,
			CourseSectionID: &sectionID,
			Title:           "Section A",
			DueAt:           ptrTime(time.Date(2024, 9, 14, 12, 0, 0, 0, time.UTC)),
		},
	}, nil
}

type exportPolicyStub struct{}

func (exportPolicyStub) ValidatorFor(ctx context.Context, courseID string, role models.UserRole) (*datewindow.Validator, bool, error) {
	validator, err := datewindow.NewValidator(datewindow.PolicyContext{UserIsAdmin: role.IsAdmin()})
	return validator, false, err
}

func ptrTime(t time.Time) *time.Time {
	return &t
}

func newExportServiceForTest(t *testing.T) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	cfg := ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}
	svc := NewExportService(exportCourseStub{}, exportAssignmentsStub{}, exportOverridesStub{}, exportPolicyStub{}, store, signer, cfg, zap.NewNop(), export.NewCSVExporter(), export.NewPDFExporter())
	return svc, store
}

func TestExportServiceGenerateCourseDatesCSV(t *testing.T) {
	svc, store := newExportServiceForTest(t)
	job := &models.ReportJob{
		ID:        "job-1",
		Type:      models.ReportTypeCourseDates,
		Params:    models.ReportJobParams{CourseID: "course-1", Format: models.ReportFormatCSV},
		CreatedBy: "admin",
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	require.NotEmpty(t, result.RelativePath)
	require.Contains(t, result.URL, "/export/")

	payload, err := os.ReadFile(store.Path(result.RelativePath))
	require.NoError(t, err)
	content := string(payload)
	require.Contains(t, content, "Essay")
	require.Contains(t, content, "everyone")
	require.Contains(t, content, "section section-1")
}

func TestExportServiceGenerateValidationCSV(t *testing.T) {
	svc, store := newExportServiceForTest(t)
	job := &models.ReportJob{
		ID:        "job-2",
		Type:      models.ReportTypeValidation,
		Params:    models.ReportJobParams{CourseID: "course-1", Format: models.ReportFormatCSV},
		CreatedBy: "admin",
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	payload, err := os.ReadFile(store.Path(result.RelativePath))
	require.NoError(t, err)
	content := string(payload)
	require.Contains(t, content, datewindow.MsgDueAfterLock)
	require.NotContains(t, content, "Quiz")
}

func TestExportServiceGeneratePDF(t *testing.T) {
	svc, store := newExportServiceForTest(t)
	job := &models.ReportJob{
		ID:        "job-3",
		Type:      models.ReportTypeCourseDates,
		Params:    models.ReportJobParams{CourseID: "course-1", Format: models.ReportFormatPDF},
		CreatedBy: "admin",
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, models.ReportFormatPDF, result.Format)

	path := filepath.Clean(store.Path(result.RelativePath))
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}
