package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/geet-h17/canvas-lms/internal/datewindow"
	"github.com/geet-h17/canvas-lms/internal/dto"
	"github.com/geet-h17/canvas-lms/internal/models"
	appErrors "github.com/geet-h17/canvas-lms/pkg/errors"
)

type overrideRepoStub struct {
	overrides map[string]*models.AssignmentOverride
	created   []*models.AssignmentOverride
	updated   []*models.AssignmentOverride
	deleted   []string
}

func newOverrideRepoStub() *overrideRepoStub {
	return &overrideRepoStub{overrides: map[string]*models.AssignmentOverride{}}
}

func (r *overrideRepoStub) ListByAssignment(ctx context.Context, assignmentID string) ([]models.AssignmentOverride, error) {
	var out []models.AssignmentOverride
	for _, override := range r.overrides {
		if override.AssignmentID == assignmentID {
			out = append(out, *override)
		}
	}
	return out, nil
}

func (r *overrideRepoStub) FindByID(ctx context.Context, id string) (*models.AssignmentOverride, error) {
	override, ok := r.overrides[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *override
	return &copied, nil
}

func (r *overrideRepoStub) ExistsForSection(ctx context.Context, assignmentID, sectionID, excludeID string) (bool, error) {
	for _, override := range r.overrides {
		if override.ID == excludeID || override.AssignmentID != assignmentID || override.SetType != models.OverrideSetSection {
			continue
		}
		if override.CourseSectionID != nil && *override.CourseSectionID == sectionID {
			return true, nil
		}
	}
	return false, nil
}

func (r *overrideRepoStub) Create(ctx context.Context, override *models.AssignmentOverride) error {
	if override.ID == "" {
		override.ID = uuid.NewString()
	}
	copied := *override
	r.overrides[override.ID] = &copied
	r.created = append(r.created, &copied)
	return nil
}

func (r *overrideRepoStub) Update(ctx context.Context, override *models.AssignmentOverride) error {
	copied := *override
	r.overrides[override.ID] = &copied
	r.updated = append(r.updated, &copied)
	return nil
}

func (r *overrideRepoStub) Delete(ctx context.Context, id string) error {
	delete(r.overrides, id)
	r.deleted = append(r.deleted, id)
	return nil
}

func newOverrideServiceForTest(course *models.Course, settings policySettingsStub) (*OverrideService, *overrideRepoStub, *auditLoggerStub) {
	policy := newPolicyFixture(course, policyTestTerm(), nil, settings)
	validation := NewValidationService(policy.service, nil, nil, zap.NewNop())
	repo := newOverrideRepoStub()
	assignments := newAssignmentRepoStub()
	assignments.assignments["assignment-1"] = &models.Assignment{ID: "assignment-1", CourseID: "course-1", Title: "Essay"}
	audit := &auditLoggerStub{}
	svc := NewOverrideService(repo, assignments, validation, audit, nil, zap.NewNop())
	return svc, repo, audit
}

func TestOverrideServiceCreateSection(t *testing.T) {
	svc, repo, audit := newOverrideServiceForTest(policyTestCourse(), policySettingsStub{})

	resp, err := svc.Create(context.Background(), "assignment-1", dto.CreateOverrideRequest{
		SetType:         "SECTION",
		CourseSectionID: strPtr("section-1"),
		Title:           "Section A",
		DueAt:           strPtr("2024-09-12T12:00:00Z"),
	}, teacherClaims())
	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	assert.Equal(t, "SECTION", resp.SetType)
	require.NotNil(t, resp.CourseSectionID)
	assert.Equal(t, "section-1", *resp.CourseSectionID)
	require.NotNil(t, resp.DueAt)
	assert.Equal(t, time.Date(2024, 9, 12, 12, 0, 0, 0, time.UTC), resp.DueAt.UTC())

	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionOverrideCreate, audit.logs[0].Action)
	assert.Equal(t, "assignment_override", audit.logs[0].Resource)
}

func TestOverrideServiceCreateSectionRequiresSectionID(t *testing.T) {
	svc, repo, _ := newOverrideServiceForTest(policyTestCourse(), policySettingsStub{})

	_, err := svc.Create(context.Background(), "assignment-1", dto.CreateOverrideRequest{
		SetType: "SECTION",
	}, teacherClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestOverrideServiceCreateSectionConflict(t *testing.T) {
	svc, repo, _ := newOverrideServiceForTest(policyTestCourse(), policySettingsStub{})
	sectionID := "section-1"
	repo.overrides["override-1"] = &models.AssignmentOverride{
		ID:              "override-1",
		AssignmentID:    "assignment-1",
		SetType:         models.OverrideSetSection,
		CourseSectionID: &sectionID,
	}

	_, err := svc.Create(context.Background(), "assignment-1", dto.CreateOverrideRequest{
		SetType:         "SECTION",
		CourseSectionID: strPtr("section-1"),
	}, teacherClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestOverrideServiceCreateAdhocRequiresStudents(t *testing.T) {
	svc, _, _ := newOverrideServiceForTest(policyTestCourse(), policySettingsStub{})

	_, err := svc.Create(context.Background(), "assignment-1", dto.CreateOverrideRequest{
		SetType: "ADHOC",
	}, teacherClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestOverrideServiceCreateGroupRequiresGroupID(t *testing.T) {
	svc, _, _ := newOverrideServiceForTest(policyTestCourse(), policySettingsStub{})

	_, err := svc.Create(context.Background(), "assignment-1", dto.CreateOverrideRequest{
		SetType: "GROUP",
	}, teacherClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestOverrideServiceCreateValidatesDates(t *testing.T) {
	svc, repo, _ := newOverrideServiceForTest(policyTestCourse(), policySettingsStub{})

	_, err := svc.Create(context.Background(), "assignment-1", dto.CreateOverrideRequest{
		SetType:    "ADHOC",
		StudentIDs: []string{"student-1"},
		DueAt:      strPtr("2024-09-20T12:00:00Z"),
		LockAt:     strPtr("2024-09-15T12:00:00Z"),
	}, teacherClaims())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrDateWindow.Code, appErr.Code)
	assert.Equal(t, datewindow.MsgDueAfterLock, appErr.Fields["dueAt"])
	assert.Empty(t, repo.created)
}

func TestOverrideServiceCreateRequiresDueForSIS(t *testing.T) {
	course := policyTestCourse()
	course.PostToSIS = true
	svc, _, _ := newOverrideServiceForTest(course, policySettingsStub{postEnabled: true, requireDueDate: true})

	_, err := svc.Create(context.Background(), "assignment-1", dto.CreateOverrideRequest{
		SetType:    "ADHOC",
		StudentIDs: []string{"student-1"},
	}, adminClaims())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrDateWindow.Code, appErr.Code)
	assert.Equal(t, datewindow.MsgDueRequiredForSIS, appErr.Fields["dueAt"])
}

func TestOverrideServiceUpdatePatchesDates(t *testing.T) {
	svc, repo, audit := newOverrideServiceForTest(policyTestCourse(), policySettingsStub{})
	sectionID := "section-1"
	repo.overrides["override-1"] = &models.AssignmentOverride{
		ID:              "override-1",
		AssignmentID:    "assignment-1",
		SetType:         models.OverrideSetSection,
		CourseSectionID: &sectionID,
		DueAt:           ptrTime(time.Date(2024, 9, 12, 12, 0, 0, 0, time.UTC)),
		LockAt:          ptrTime(time.Date(2024, 9, 15, 12, 0, 0, 0, time.UTC)),
	}

	resp, err := svc.Update(context.Background(), "override-1", dto.UpdateOverrideRequest{
		DueAt:  strPtr("2024-09-14T12:00:00Z"),
		LockAt: strPtr(""),
	}, teacherClaims())
	require.NoError(t, err)
	require.Len(t, repo.updated, 1)
	require.NotNil(t, resp.DueAt)
	assert.Equal(t, time.Date(2024, 9, 14, 12, 0, 0, 0, time.UTC), resp.DueAt.UTC())
	assert.Nil(t, resp.LockAt, "blank clears the stored date")

	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionOverrideUpdate, audit.logs[0].Action)
	assert.NotEmpty(t, audit.logs[0].OldValues)
}

func TestOverrideServiceUpdateSectionConflict(t *testing.T) {
	svc, repo, _ := newOverrideServiceForTest(policyTestCourse(), policySettingsStub{})
	sectionA := "section-a"
	sectionB := "section-b"
	repo.overrides["override-a"] = &models.AssignmentOverride{
		ID:              "override-a",
		AssignmentID:    "assignment-1",
		SetType:         models.OverrideSetSection,
		CourseSectionID: &sectionA,
	}
	repo.overrides["override-b"] = &models.AssignmentOverride{
		ID:              "override-b",
		AssignmentID:    "assignment-1",
		SetType:         models.OverrideSetSection,
		CourseSectionID: &sectionB,
	}

	_, err := svc.Update(context.Background(), "override-b", dto.UpdateOverrideRequest{
		CourseSectionID: strPtr("section-a"),
	}, teacherClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	resp, err := svc.Update(context.Background(), "override-b", dto.UpdateOverrideRequest{
		CourseSectionID: strPtr("section-c"),
	}, teacherClaims())
	require.NoError(t, err)
	require.NotNil(t, resp.CourseSectionID)
	assert.Equal(t, "section-c", *resp.CourseSectionID)
}

func TestOverrideServiceUpdateNotFound(t *testing.T) {
	svc, _, _ := newOverrideServiceForTest(policyTestCourse(), policySettingsStub{})

	_, err := svc.Update(context.Background(), "missing", dto.UpdateOverrideRequest{}, teacherClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestOverrideServiceDelete(t *testing.T) {
	svc, repo, audit := newOverrideServiceForTest(policyTestCourse(), policySettingsStub{})
	repo.overrides["override-1"] = &models.AssignmentOverride{
		ID:           "override-1",
		AssignmentID: "assignment-1",
		SetType:      models.OverrideSetAdhoc,
		StudentIDs:   []string{"student-1"},
	}

	err := svc.Delete(context.Background(), "override-1", teacherClaims())
	require.NoError(t, err)
	assert.Equal(t, []string{"override-1"}, repo.deleted)
	assert.Empty(t, repo.overrides)

	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionOverrideDelete, audit.logs[0].Action)
	assert.NotEmpty(t, audit.logs[0].OldValues)
}

func TestOverrideServiceListUnknownAssignment(t *testing.T) {
	svc, _, _ := newOverrideServiceForTest(policyTestCourse(), policySettingsStub{})

	_, err := svc.List(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
