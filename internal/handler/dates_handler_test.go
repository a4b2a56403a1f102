package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geet-h17/canvas-lms/internal/datewindow"
	"github.com/geet-h17/canvas-lms/internal/dto"
	"github.com/geet-h17/canvas-lms/internal/middleware"
	"github.com/geet-h17/canvas-lms/internal/models"
)

type datePolicyDescriberMock struct {
	policy   *dto.DatePolicyResponse
	cacheHit bool
	err      error
}

func (m *datePolicyDescriberMock) Describe(ctx context.Context, courseID string, role models.UserRole) (*dto.DatePolicyResponse, bool, error) {
	return m.policy, m.cacheHit, m.err
}

type dateValidatorMock struct {
	result   *dto.DateValidationResponse
	cacheHit bool
	err      error
}

func (m *dateValidatorMock) ValidateBatch(ctx context.Context, courseID string, req dto.DateValidationRequest, role models.UserRole) (*dto.DateValidationResponse, bool, error) {
	return m.result, m.cacheHit, m.err
}

func TestDatesHandlerDatePolicy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDatesHandler(&datePolicyDescriberMock{
		policy:   &dto.DatePolicyResponse{CourseID: "course-1", TermID: "term-1", HasGradingPeriods: true},
		cacheHit: true,
	}, &dateValidatorMock{})

	c, w := newGinContext(http.MethodGet, "/courses/course-1/date-policy", nil)
	c.Params = gin.Params{{Key: "courseId", Value: "course-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})

	handler.DatePolicy(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data dto.DatePolicyResponse `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "course-1", envelope.Data.CourseID)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
}

func TestDatesHandlerDatePolicyUnauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDatesHandler(&datePolicyDescriberMock{}, &dateValidatorMock{})

	c, w := newGinContext(http.MethodGet, "/courses/course-1/date-policy", nil)
	c.Params = gin.Params{{Key: "courseId", Value: "course-1"}}

	handler.DatePolicy(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDatesHandlerValidateDates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDatesHandler(&datePolicyDescriberMock{}, &dateValidatorMock{
		result: &dto.DateValidationResponse{
			Valid: false,
			Results: []dto.CardResult{
				{Key: "base", Valid: false, Errors: map[string]string{"dueAt": datewindow.MsgDueAfterLock}},
			},
		},
	})

	payload, _ := json.Marshal(dto.DateValidationRequest{Cards: []dto.DateValidationCard{
		{Key: "base", DueAt: strPtr("2024-09-20T12:00:00Z"), LockAt: strPtr("2024-09-15T12:00:00Z")},
	}})
	c, w := newGinContext(http.MethodPost, "/courses/course-1/date-validations", payload)
	c.Params = gin.Params{{Key: "courseId", Value: "course-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})

	handler.ValidateDates(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), datewindow.MsgDueAfterLock)
	assert.Contains(t, w.Body.String(), `"valid":false`)
}

func TestDatesHandlerValidateDatesInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDatesHandler(&datePolicyDescriberMock{}, &dateValidatorMock{})

	c, w := newGinContext(http.MethodPost, "/courses/course-1/date-validations", []byte(`invalid`))
	c.Params = gin.Params{{Key: "courseId", Value: "course-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})

	handler.ValidateDates(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func strPtr(s string) *string {
	return &s
}
