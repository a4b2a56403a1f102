package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geet-h17/canvas-lms/internal/dto"
	"github.com/geet-h17/canvas-lms/internal/service"
	"github.com/geet-h17/canvas-lms/pkg/response"
)

// OverrideHandler exposes assignment override endpoints.
type OverrideHandler struct {
	service *service.OverrideService
}

// NewOverrideHandler constructs an override handler.
func NewOverrideHandler(svc *service.OverrideService) *OverrideHandler {
	return &OverrideHandler{service: svc}
}

// List godoc
// @Summary List overrides on an assignment
// @Tags Overrides
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /assignments/{id}/overrides [get]
func (h *OverrideHandler) List(c *gin.Context) {
	overrides, err := h.service.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overrides, nil)
}

// Create godoc
// @Summary Create an override
// @Description Override dates are validated against the course date policy; SECTION overrides must not duplicate an existing section.
// @Tags Overrides
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body dto.CreateOverrideRequest true "Override payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Security BearerAuth
// @Router /assignments/{id}/overrides [post]
func (h *OverrideHandler) Create(c *gin.Context) {
	var req dto.CreateOverrideRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	override, err := h.service.Create(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, override)
}

// Update godoc
// @Summary Update an override
// @Description Absent date fields keep stored values, blank ones clear them.
// @Tags Overrides
// @Accept json
// @Produce json
// @Param id path string true "Override ID"
// @Param payload body dto.UpdateOverrideRequest true "Override patch"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Security BearerAuth
// @Router /overrides/{id} [put]
func (h *OverrideHandler) Update(c *gin.Context) {
	var req dto.UpdateOverrideRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	override, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, override, nil)
}

// Delete godoc
// @Summary Delete an override
// @Tags Overrides
// @Produce json
// @Param id path string true "Override ID"
// @Success 204
// @Security BearerAuth
// @Router /overrides/{id} [delete]
func (h *OverrideHandler) Delete(c *gin.Context) {
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
