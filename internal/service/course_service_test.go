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

	"github.com/geet-h17/canvas-lms/internal/models"
	appErrors "github.com/geet-h17/canvas-lms/pkg/errors"
)

type courseRepoStub struct {
	courses map[string]*models.Course
	created []*models.Course
	updated []*models.Course
}

func newCourseRepoStub() *courseRepoStub {
	return &courseRepoStub{courses: map[string]*models.Course{}}
}

func (r *courseRepoStub) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	var out []models.Course
	for _, course := range r.courses {
		out = append(out, *course)
	}
	return out, len(out), nil
}

func (r *courseRepoStub) FindByID(ctx context.Context, id string) (*models.Course, error) {
	course, ok := r.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *course
	return &copied, nil
}

func (r *courseRepoStub) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	copied := *course
	r.courses[course.ID] = &copied
	r.created = append(r.created, &copied)
	return nil
}

func (r *courseRepoStub) Update(ctx context.Context, course *models.Course) error {
	copied := *course
	r.courses[course.ID] = &copied
	r.updated = append(r.updated, &copied)
	return nil
}

func newCourseServiceForTest(course *models.Course) (*CourseService, *courseRepoStub, *policyFixture) {
	fixture := newPolicyFixture(course, policyTestTerm(), nil, policySettingsStub{})
	repo := newCourseRepoStub()
	if course != nil {
		copied := *course
		repo.courses[course.ID] = &copied
	}
	svc := NewCourseService(repo, fixture.terms, fixture.service, nil, zap.NewNop())
	return svc, repo, fixture
}

func TestCourseServiceCreate(t *testing.T) {
	svc, repo, _ := newCourseServiceForTest(nil)

	course, err := svc.Create(context.Background(), CreateCourseRequest{
		TermID:     "term-1",
		Name:       "Biology 101",
		CourseCode: "BIO-101",
	})
	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	assert.Equal(t, "Biology 101", course.Name)
	assert.NotEmpty(t, course.ID)
}

func TestCourseServiceCreateUnknownTerm(t *testing.T) {
	svc, repo, _ := newCourseServiceForTest(nil)

	_, err := svc.Create(context.Background(), CreateCourseRequest{
		TermID: "term-missing",
		Name:   "Biology 101",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestCourseServiceCreateRejectsInvertedDates(t *testing.T) {
	svc, _, _ := newCourseServiceForTest(nil)

	_, err := svc.Create(context.Background(), CreateCourseRequest{
		TermID:  "term-1",
		Name:    "Biology 101",
		StartAt: ptrTime(time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)),
		EndAt:   ptrTime(time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCourseServiceUpdateDropsCachedPolicy(t *testing.T) {
	svc, repo, fixture := newCourseServiceForTest(policyTestCourse())

	_, _, err := fixture.service.CoursePolicy(context.Background(), "course-1")
	require.NoError(t, err)
	require.Contains(t, fixture.cache.store, "policy:course:course-1")

	course, err := svc.Update(context.Background(), "course-1", UpdateCourseRequest{
		TermID:                "term-1",
		Name:                  "Biology 101",
		RestrictDatesToCourse: true,
		StartAt:               ptrTime(time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)),
		EndAt:                 ptrTime(time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)
	assert.True(t, course.RestrictDatesToCourse)
	require.Len(t, repo.updated, 1)
	assert.NotContains(t, fixture.cache.store, "policy:course:course-1")
}

func TestCourseServiceUpdateUnknownCourse(t *testing.T) {
	svc, _, _ := newCourseServiceForTest(nil)

	_, err := svc.Update(context.Background(), "missing", UpdateCourseRequest{
		TermID: "term-1",
		Name:   "Biology 101",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCourseServiceListPagination(t *testing.T) {
	svc, repo, _ := newCourseServiceForTest(nil)
	repo.courses["course-1"] = policyTestCourse()

	courses, pagination, err := svc.List(context.Background(), models.CourseFilter{Page: 2, PageSize: 5})
	require.NoError(t, err)
	assert.Len(t, courses, 1)
	require.NotNil(t, pagination)
	assert.Equal(t, 2, pagination.Page)
	assert.Equal(t, 5, pagination.PageSize)
}
