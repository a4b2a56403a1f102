package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geet-h17/canvas-lms/internal/dto"
	"github.com/geet-h17/canvas-lms/internal/service"
	"github.com/geet-h17/canvas-lms/pkg/response"
)

// GradingPeriodHandler exposes grading period endpoints.
type GradingPeriodHandler struct {
	service *service.GradingPeriodService
}

// NewGradingPeriodHandler constructs a grading period handler.
func NewGradingPeriodHandler(svc *service.GradingPeriodService) *GradingPeriodHandler {
	return &GradingPeriodHandler{service: svc}
}

// ListByTerm godoc
// @Summary List grading periods in a term
// @Tags GradingPeriods
// @Produce json
// @Param termId path string true "Term ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /terms/{termId}/grading-periods [get]
func (h *GradingPeriodHandler) ListByTerm(c *gin.Context) {
	periods, err := h.service.ListByTerm(c.Request.Context(), c.Param("termId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, periods, nil)
}

// Create godoc
// @Summary Create grading period
// @Description Periods in a term must not overlap; closeAt defaults to endAt.
// @Tags GradingPeriods
// @Accept json
// @Produce json
// @Param termId path string true "Term ID"
// @Param payload body dto.CreateGradingPeriodRequest true "Grading period payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /terms/{termId}/grading-periods [post]
func (h *GradingPeriodHandler) Create(c *gin.Context) {
	var req dto.CreateGradingPeriodRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	period, err := h.service.Create(c.Request.Context(), c.Param("termId"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, period)
}

// Update godoc
// @Summary Update grading period
// @Tags GradingPeriods
// @Accept json
// @Produce json
// @Param id path string true "Grading period ID"
// @Param payload body dto.UpdateGradingPeriodRequest true "Grading period payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /grading-periods/{id} [put]
func (h *GradingPeriodHandler) Update(c *gin.Context) {
	var req dto.UpdateGradingPeriodRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	period, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, period, nil)
}

// Delete godoc
// @Summary Delete grading period
// @Tags GradingPeriods
// @Produce json
// @Param id path string true "Grading period ID"
// @Success 204
// @Security BearerAuth
// @Router /grading-periods/{id} [delete]
func (h *GradingPeriodHandler) Delete(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
