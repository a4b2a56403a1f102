package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geet-h17/canvas-lms/internal/dto"
	"github.com/geet-h17/canvas-lms/internal/middleware"
	"github.com/geet-h17/canvas-lms/internal/models"
	"github.com/geet-h17/canvas-lms/pkg/response"
)

type datePolicyDescriber interface {
	Describe(ctx context.Context, courseID string, role models.UserRole) (*dto.DatePolicyResponse, bool, error)
}

type dateValidator interface {
	ValidateBatch(ctx context.Context, courseID string, req dto.DateValidationRequest, role models.UserRole) (*dto.DateValidationResponse, bool, error)
}

// DatesHandler exposes the date policy and dry-run validation endpoints that
// date editors call before and while a user edits assignment dates.
type DatesHandler struct {
	policies  datePolicyDescriber
	validator dateValidator
}

// NewDatesHandler constructs a dates handler.
func NewDatesHandler(policies datePolicyDescriber, validator dateValidator) *DatesHandler {
	return &DatesHandler{policies: policies, validator: validator}
}

// DatePolicy godoc
// @Summary Describe the date policy for a course
// @Description Returns the permitted date range, grading periods with closed flags, the SIS due-date requirement, and whether the actor is exempt from range and period checks.
// @Tags Dates
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{courseId}/date-policy [get]
func (h *DatesHandler) DatePolicy(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	policy, cacheHit, err := h.policies.Describe(c.Request.Context(), c.Param("courseId"), claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, policy, nil, middleware.ExtractMeta(c))
}

// ValidateDates godoc
// @Summary Dry-run validate candidate date windows
// @Description Validates each card against the course date policy and echoes per-card results. Rule violations are data in the 200 response, not an error.
// @Tags Dates
// @Accept json
// @Produce json
// @Param courseId path string true "Course ID"
// @Param payload body dto.DateValidationRequest true "Candidate date windows"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{courseId}/date-validations [post]
func (h *DatesHandler) ValidateDates(c *gin.Context) {
	var req dto.DateValidationRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	result, cacheHit, err := h.validator.ValidateBatch(c.Request.Context(), c.Param("courseId"), req, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}
