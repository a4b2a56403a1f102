package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/geet-h17/canvas-lms/internal/models"
	appErrors "github.com/geet-h17/canvas-lms/pkg/errors"
)

type policyCourseStub struct {
	courses map[string]*models.Course
	calls   int
}

func (c *policyCourseStub) FindByID(ctx context.Context, id string) (*models.Course, error) {
	c.calls++
	course, ok := c.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *course
	return &copied, nil
}

type policyTermStub struct {
	terms map[string]*models.Term
}

func (t *policyTermStub) FindByID(ctx context.Context, id string) (*models.Term, error) {
	term, ok := t.terms[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *term
	return &copied, nil
}

type policyPeriodStub struct {
	periods []models.GradingPeriod
}

func (p *policyPeriodStub) ListByTerm(ctx context.Context, termID string) ([]models.GradingPeriod, error) {
	return p.periods, nil
}

type policySettingsStub struct {
	postEnabled    bool
	requireDueDate bool
}

func (s policySettingsStub) SISDueDatePolicy(ctx context.Context) (bool, bool, error) {
	return s.postEnabled, s.requireDueDate, nil
}

type policyCacheRepoStub struct {
	store map[string][]byte
}

func newPolicyCacheRepoStub() *policyCacheRepoStub {
	return &policyCacheRepoStub{store: map[string][]byte{}}
}

func (c *policyCacheRepoStub) Get(ctx context.Context, key string, dest interface{}) error {
	data, ok := c.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (c *policyCacheRepoStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.store[key] = data
	return nil
}

func (c *policyCacheRepoStub) DeleteByPattern(ctx context.Context, pattern string) error {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		for key := range c.store {
			if strings.HasPrefix(key, prefix) {
				delete(c.store, key)
			}
		}
		return nil
	}
	delete(c.store, pattern)
	return nil
}

type policyFixture struct {
	service *PolicyService
	courses *policyCourseStub
	terms   *policyTermStub
	periods *policyPeriodStub
	cache   *policyCacheRepoStub
}

func newPolicyFixture(course *models.Course, term *models.Term, periods []models.GradingPeriod, settings policySettingsStub) *policyFixture {
	courses := &policyCourseStub{courses: map[string]*models.Course{}}
	if course != nil {
		courses.courses[course.ID] = course
	}
	terms := &policyTermStub{terms: map[string]*models.Term{}}
	if term != nil {
		terms.terms[term.ID] = term
	}
	periodStub := &policyPeriodStub{periods: periods}
	cacheRepo := newPolicyCacheRepoStub()
	cacheSvc := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	service := NewPolicyService(courses, terms, periodStub, settings, cacheSvc, nil, zap.NewNop(), time.Minute)
	return &policyFixture{service: service, courses: courses, terms: terms, periods: periodStub, cache: cacheRepo}
}

func policyTestCourse() *models.Course {
	return &models.Course{ID: "course-1", TermID: "term-1", Name: "Biology 101"}
}

func policyTestTerm() *models.Term {
	return &models.Term{
		ID:      "term-1",
		Name:    "Fall 2024",
		StartAt: ptrTime(time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)),
		EndAt:   ptrTime(time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC)),
	}
}

func TestPolicyServiceCoursePolicyCachesResult(t *testing.T) {
	fixture := newPolicyFixture(policyTestCourse(), policyTestTerm(), nil, policySettingsStub{})

	policy, cached, err := fixture.service.CoursePolicy(context.Background(), "course-1")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "course-1", policy.CourseID)
	assert.Equal(t, "term-1", policy.TermID)

	again, cached, err := fixture.service.CoursePolicy(context.Background(), "course-1")
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, policy.CourseID, again.CourseID)
	assert.Equal(t, 1, fixture.courses.calls)
}

func TestPolicyServiceCourseNotFound(t *testing.T) {
	fixture := newPolicyFixture(nil, policyTestTerm(), nil, policySettingsStub{})

	_, _, err := fixture.service.CoursePolicy(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestPolicyServiceRangeFromTerm(t *testing.T) {
	term := policyTestTerm()
	fixture := newPolicyFixture(policyTestCourse(), term, nil, policySettingsStub{})

	policy, _, err := fixture.service.CoursePolicy(context.Background(), "course-1")
	require.NoError(t, err)
	require.NotNil(t, policy.RangeStart)
	require.NotNil(t, policy.RangeEnd)
	assert.True(t, policy.RangeStart.Equal(*term.StartAt))
	assert.True(t, policy.RangeEnd.Equal(*term.EndAt))
}

func TestPolicyServiceRangeRestrictedToCourse(t *testing.T) {
	course := policyTestCourse()
	course.RestrictDatesToCourse = true
	course.StartAt = ptrTime(time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC))
	term := policyTestTerm()
	fixture := newPolicyFixture(course, term, nil, policySettingsStub{})

	policy, _, err := fixture.service.CoursePolicy(context.Background(), "course-1")
	require.NoError(t, err)
	require.NotNil(t, policy.RangeStart)
	require.NotNil(t, policy.RangeEnd)
	assert.True(t, policy.RangeStart.Equal(*course.StartAt), "restricted side should use the course date")
	assert.True(t, policy.RangeEnd.Equal(*term.EndAt), "unrestricted side should fall back to the term date")
}

func TestPolicyServicePostToSISRequired(t *testing.T) {
	course := policyTestCourse()
	course.PostToSIS = true
	fixture := newPolicyFixture(course, policyTestTerm(), nil, policySettingsStub{postEnabled: true, requireDueDate: true})

	policy, _, err := fixture.service.CoursePolicy(context.Background(), "course-1")
	require.NoError(t, err)
	assert.True(t, policy.PostToSISRequired)

	relaxed := newPolicyFixture(course, policyTestTerm(), nil, policySettingsStub{postEnabled: true, requireDueDate: false})
	policy, _, err = relaxed.service.CoursePolicy(context.Background(), "course-1")
	require.NoError(t, err)
	assert.False(t, policy.PostToSISRequired)
}

func TestPolicyServiceContextAdminExemption(t *testing.T) {
	fixture := newPolicyFixture(policyTestCourse(), policyTestTerm(), nil, policySettingsStub{})

	adminCtx, _, err := fixture.service.Context(context.Background(), "course-1", models.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, adminCtx.UserIsAdmin)

	teacherCtx, _, err := fixture.service.Context(context.Background(), "course-1", models.RoleTeacher)
	require.NoError(t, err)
	assert.False(t, teacherCtx.UserIsAdmin)
}

func TestPolicyServiceValidatorForMisconfiguredPolicy(t *testing.T) {
	periods := []models.GradingPeriod{
		{
			ID:      "gp-2",
			TermID:  "term-1",
			Title:   "Q2",
			StartAt: time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC),
			EndAt:   time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC),
			CloseAt: time.Date(2024, 12, 27, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:      "gp-1",
			TermID:  "term-1",
			Title:   "Q1",
			StartAt: time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC),
			EndAt:   time.Date(2024, 10, 15, 0, 0, 0, 0, time.UTC),
			CloseAt: time.Date(2024, 10, 22, 0, 0, 0, 0, time.UTC),
		},
	}
	fixture := newPolicyFixture(policyTestCourse(), policyTestTerm(), periods, policySettingsStub{})

	_, _, err := fixture.service.ValidatorFor(context.Background(), "course-1", models.RoleTeacher)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPolicyConfig.Code, appErrors.FromError(err).Code)
}

func TestPolicyServiceDescribe(t *testing.T) {
	closeAt := time.Now().UTC().Add(-time.Hour)
	periods := []models.GradingPeriod{
		{
			ID:      "gp-1",
			TermID:  "term-1",
			Title:   "Q1",
			StartAt: closeAt.Add(-60 * 24 * time.Hour),
			EndAt:   closeAt.Add(-7 * 24 * time.Hour),
			CloseAt: closeAt,
		},
	}
	fixture := newPolicyFixture(policyTestCourse(), policyTestTerm(), periods, policySettingsStub{})

	resp, _, err := fixture.service.Describe(context.Background(), "course-1", models.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, resp.UserIsExempt)
	assert.True(t, resp.HasGradingPeriods)
	require.Len(t, resp.GradingPeriods, 1)
	assert.True(t, resp.GradingPeriods[0].Closed)

	resp, _, err = fixture.service.Describe(context.Background(), "course-1", models.RoleTeacher)
	require.NoError(t, err)
	assert.False(t, resp.UserIsExempt)
}

func TestPolicyServiceInvalidateCourse(t *testing.T) {
	fixture := newPolicyFixture(policyTestCourse(), policyTestTerm(), nil, policySettingsStub{})

	_, _, err := fixture.service.CoursePolicy(context.Background(), "course-1")
	require.NoError(t, err)
	require.Equal(t, 1, fixture.courses.calls)

	fixture.service.InvalidateCourse(context.Background(), "course-1")

	_, cached, err := fixture.service.CoursePolicy(context.Background(), "course-1")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 2, fixture.courses.calls)
}
