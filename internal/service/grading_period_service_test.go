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

	"github.com/geet-h17/canvas-lms/internal/dto"
	"github.com/geet-h17/canvas-lms/internal/models"
	appErrors "github.com/geet-h17/canvas-lms/pkg/errors"
)

type gradingPeriodRepoStub struct {
	periods map[string]*models.GradingPeriod
	created []*models.GradingPeriod
	deleted []string
}

func newGradingPeriodRepoStub() *gradingPeriodRepoStub {
	return &gradingPeriodRepoStub{periods: map[string]*models.GradingPeriod{}}
}

func (r *gradingPeriodRepoStub) ListByTerm(ctx context.Context, termID string) ([]models.GradingPeriod, error) {
	var out []models.GradingPeriod
	for _, period := range r.periods {
		if period.TermID == termID {
			out = append(out, *period)
		}
	}
	return out, nil
}

func (r *gradingPeriodRepoStub) FindByID(ctx context.Context, id string) (*models.GradingPeriod, error) {
	period, ok := r.periods[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *period
	return &copied, nil
}

func (r *gradingPeriodRepoStub) Create(ctx context.Context, period *models.GradingPeriod) error {
	if period.ID == "" {
		period.ID = uuid.NewString()
	}
	copied := *period
	r.periods[period.ID] = &copied
	r.created = append(r.created, &copied)
	return nil
}

func (r *gradingPeriodRepoStub) Update(ctx context.Context, period *models.GradingPeriod) error {
	copied := *period
	r.periods[period.ID] = &copied
	return nil
}

func (r *gradingPeriodRepoStub) Delete(ctx context.Context, id string) error {
	delete(r.periods, id)
	r.deleted = append(r.deleted, id)
	return nil
}

func newGradingPeriodServiceForTest() (*GradingPeriodService, *gradingPeriodRepoStub, *policyCacheRepoStub, *auditLoggerStub) {
	repo := newGradingPeriodRepoStub()
	terms := &policyTermStub{terms: map[string]*models.Term{"term-1": policyTestTerm()}}
	cacheRepo := newPolicyCacheRepoStub()
	cacheSvc := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	audit := &auditLoggerStub{}
	svc := NewGradingPeriodService(repo, terms, cacheSvc, audit, nil, zap.NewNop())
	return svc, repo, cacheRepo, audit
}

func seedGradingPeriod(repo *gradingPeriodRepoStub, id, title string, start, end time.Time) {
	repo.periods[id] = &models.GradingPeriod{
		ID:      id,
		TermID:  "term-1",
		Title:   title,
		StartAt: start,
		EndAt:   end,
		CloseAt: end,
	}
}

func TestGradingPeriodServiceCreate(t *testing.T) {
	svc, repo, cacheRepo, audit := newGradingPeriodServiceForTest()
	cacheRepo.store["policy:course:course-1"] = []byte(`{}`)

	resp, err := svc.Create(context.Background(), "term-1", dto.CreateGradingPeriodRequest{
		Title:   "Q1",
		StartAt: "2024-08-01T00:00:00Z",
		EndAt:   "2024-10-15T00:00:00Z",
	}, adminClaims())
	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	assert.Equal(t, "Q1", resp.Title)
	assert.Equal(t, resp.EndAt, resp.CloseAt, "close defaults to the end date")

	assert.Empty(t, cacheRepo.store, "cached policies go stale when the calendar changes")

	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionGradingPeriodCreate, audit.logs[0].Action)
	assert.Equal(t, "grading_period", audit.logs[0].Resource)
}

func TestGradingPeriodServiceCreateRejectsInvertedWindow(t *testing.T) {
	svc, repo, _, _ := newGradingPeriodServiceForTest()

	_, err := svc.Create(context.Background(), "term-1", dto.CreateGradingPeriodRequest{
		Title:   "Q1",
		StartAt: "2024-10-15T00:00:00Z",
		EndAt:   "2024-08-01T00:00:00Z",
	}, adminClaims())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, "startAt must be before endAt", appErr.Message)
	assert.Empty(t, repo.created)
}

func TestGradingPeriodServiceCreateRejectsEarlyClose(t *testing.T) {
	svc, _, _, _ := newGradingPeriodServiceForTest()

	_, err := svc.Create(context.Background(), "term-1", dto.CreateGradingPeriodRequest{
		Title:   "Q1",
		StartAt: "2024-08-01T00:00:00Z",
		EndAt:   "2024-10-15T00:00:00Z",
		CloseAt: strPtr("2024-10-01T00:00:00Z"),
	}, adminClaims())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, "closeAt cannot be before endAt", appErr.Message)
}

func TestGradingPeriodServiceCreateRejectsOverlap(t *testing.T) {
	svc, repo, _, _ := newGradingPeriodServiceForTest()
	seedGradingPeriod(repo, "gp-1", "Q1",
		time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 10, 15, 0, 0, 0, 0, time.UTC))

	_, err := svc.Create(context.Background(), "term-1", dto.CreateGradingPeriodRequest{
		Title:   "Q2",
		StartAt: "2024-10-01T00:00:00Z",
		EndAt:   "2024-12-20T00:00:00Z",
	}, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	// Sharing a boundary instant is not an overlap.
	_, err = svc.Create(context.Background(), "term-1", dto.CreateGradingPeriodRequest{
		Title:   "Q2",
		StartAt: "2024-10-15T00:00:00Z",
		EndAt:   "2024-12-20T00:00:00Z",
	}, adminClaims())
	require.NoError(t, err)
}

func TestGradingPeriodServiceCreateUnknownTerm(t *testing.T) {
	svc, _, _, _ := newGradingPeriodServiceForTest()

	_, err := svc.Create(context.Background(), "term-missing", dto.CreateGradingPeriodRequest{
		Title:   "Q1",
		StartAt: "2024-08-01T00:00:00Z",
		EndAt:   "2024-10-15T00:00:00Z",
	}, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestGradingPeriodServiceUpdate(t *testing.T) {
	svc, repo, cacheRepo, audit := newGradingPeriodServiceForTest()
	seedGradingPeriod(repo, "gp-1", "Q1",
		time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 10, 15, 0, 0, 0, 0, time.UTC))
	cacheRepo.store["policy:course:course-1"] = []byte(`{}`)

	resp, err := svc.Update(context.Background(), "gp-1", dto.UpdateGradingPeriodRequest{
		EndAt:   strPtr("2024-10-31T00:00:00Z"),
		CloseAt: strPtr("2024-11-07T00:00:00Z"),
	}, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 10, 31, 0, 0, 0, 0, time.UTC), resp.EndAt)
	assert.Equal(t, time.Date(2024, 11, 7, 0, 0, 0, 0, time.UTC), resp.CloseAt)

	assert.Empty(t, cacheRepo.store)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionGradingPeriodUpdate, audit.logs[0].Action)
	assert.NotEmpty(t, audit.logs[0].OldValues)
}

func TestGradingPeriodServiceUpdateIgnoresOwnWindow(t *testing.T) {
	svc, repo, _, _ := newGradingPeriodServiceForTest()
	seedGradingPeriod(repo, "gp-1", "Q1",
		time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 10, 15, 0, 0, 0, 0, time.UTC))

	// Shrinking a period overlaps its own stored window, which must not count.
	_, err := svc.Update(context.Background(), "gp-1", dto.UpdateGradingPeriodRequest{
		EndAt:   strPtr("2024-10-01T00:00:00Z"),
		CloseAt: strPtr("2024-10-01T00:00:00Z"),
	}, adminClaims())
	require.NoError(t, err)
}

func TestGradingPeriodServiceDelete(t *testing.T) {
	svc, repo, cacheRepo, audit := newGradingPeriodServiceForTest()
	seedGradingPeriod(repo, "gp-1", "Q1",
		time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 10, 15, 0, 0, 0, 0, time.UTC))
	cacheRepo.store["policy:course:course-1"] = []byte(`{}`)

	err := svc.Delete(context.Background(), "gp-1", adminClaims())
	require.NoError(t, err)
	assert.Equal(t, []string{"gp-1"}, repo.deleted)
	assert.Empty(t, cacheRepo.store)

	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionGradingPeriodDelete, audit.logs[0].Action)
}

func TestGradingPeriodServiceListByTerm(t *testing.T) {
	svc, repo, _, _ := newGradingPeriodServiceForTest()
	seedGradingPeriod(repo, "gp-1", "Q1",
		time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 10, 15, 0, 0, 0, 0, time.UTC))
	seedGradingPeriod(repo, "gp-2", "Q2",
		time.Date(2024, 10, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC))

	periods, err := svc.ListByTerm(context.Background(), "term-1")
	require.NoError(t, err)
	require.Len(t, periods, 2)
	titles := []string{periods[0].Title, periods[1].Title}
	assert.ElementsMatch(t, []string{"Q1", "Q2"}, titles)
}
