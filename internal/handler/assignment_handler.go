package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/geet-h17/canvas-lms/internal/dto"
	"github.com/geet-h17/canvas-lms/internal/models"
	"github.com/geet-h17/canvas-lms/internal/service"
	"github.com/geet-h17/canvas-lms/pkg/response"
)

// AssignmentHandler exposes assignment endpoints.
type AssignmentHandler struct {
	service *service.AssignmentService
}

// NewAssignmentHandler constructs an assignment handler.
func NewAssignmentHandler(svc *service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{service: svc}
}

// List godoc
// @Summary List assignments in a course
// @Tags Assignments
// @Produce json
// @Param courseId path string true "Course ID"
// @Param search query string false "Search by title"
// @Param published query bool false "Filter by published flag"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param sort query string false "Sort column"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{courseId}/assignments [get]
func (h *AssignmentHandler) List(c *gin.Context) {
	filter := models.AssignmentFilter{CourseID: c.Param("courseId")}
	filter.Search = c.Query("search")
	if published := c.Query("published"); published != "" {
		if val, err := strconv.ParseBool(published); err == nil {
			filter.Published = &val
		}
	}
	filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder = listWindow(c)

	assignments, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, pagination)
}

// Get godoc
// @Summary Get an assignment with its overrides
// @Tags Assignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /assignments/{id} [get]
func (h *AssignmentHandler) Get(c *gin.Context) {
	assignment, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// Create godoc
// @Summary Create assignment
// @Description Base dates are validated against the course date policy before saving.
// @Tags Assignments
// @Accept json
// @Produce json
// @Param courseId path string true "Course ID"
// @Param payload body dto.CreateAssignmentRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{courseId}/assignments [post]
func (h *AssignmentHandler) Create(c *gin.Context) {
	var req dto.CreateAssignmentRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	assignment, err := h.service.Create(c.Request.Context(), c.Param("courseId"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// UpdateDates godoc
// @Summary Update the base date window of an assignment
// @Description Absent fields keep the stored date, blank fields clear it. Rule violations return 422 with per-field messages.
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body dto.UpdateAssignmentDatesRequest true "Date window patch"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Security BearerAuth
// @Router /assignments/{id}/dates [patch]
func (h *AssignmentHandler) UpdateDates(c *gin.Context) {
	var req dto.UpdateAssignmentDatesRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	assignment, err := h.service.UpdateDates(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// EffectiveDates godoc
// @Summary Resolve the date window that applies to one audience
// @Description Picks the most specific override tier for the audience, merging within a tier by the most lenient date.
// @Tags Assignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Param sectionId query string false "Course section ID"
// @Param studentId query string false "Student ID"
// @Param groupId query string false "Group ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /assignments/{id}/effective-dates [get]
func (h *AssignmentHandler) EffectiveDates(c *gin.Context) {
	dates, err := h.service.EffectiveDates(c.Request.Context(), c.Param("id"),
		queryPtr(c, "sectionId"), queryPtr(c, "studentId"), queryPtr(c, "groupId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dates, nil)
}

func queryPtr(c *gin.Context, name string) *string {
	if value := c.Query(name); value != "" {
		return &value
	}
	return nil
}
