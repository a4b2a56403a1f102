package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geet-h17/canvas-lms/internal/dto"
	"github.com/geet-h17/canvas-lms/internal/models"
	appErrors "github.com/geet-h17/canvas-lms/pkg/errors"
	"github.com/geet-h17/canvas-lms/pkg/response"
)

type settingsService interface {
	List(ctx context.Context) ([]dto.SettingItem, error)
	Get(ctx context.Context, key string) (*dto.SettingItem, error)
	Update(ctx context.Context, key, value string, actor *models.JWTClaims) (*dto.SettingItem, error)
	BulkUpdate(ctx context.Context, req dto.BulkUpdateSettingsRequest, actor *models.JWTClaims) ([]dto.SettingItem, error)
}

// SettingsHandler exposes institution-wide setting endpoints.
type SettingsHandler struct {
	service settingsService
}

// NewSettingsHandler builds a new handler.
func NewSettingsHandler(service settingsService) *SettingsHandler {
	return &SettingsHandler{service: service}
}

// List godoc
// @Summary List settings
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /settings [get]
func (h *SettingsHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get setting by key
// @Tags Settings
// @Produce json
// @Param key path string true "Setting key"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /settings/{key} [get]
func (h *SettingsHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Update godoc
// @Summary Update setting
// @Tags Settings
// @Accept json
// @Produce json
// @Param key path string true "Setting key"
// @Param payload body dto.UpdateSettingRequest true "Setting payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /settings/{key} [put]
func (h *SettingsHandler) Update(c *gin.Context) {
	var req dto.UpdateSettingRequest
	if !bindJSON(c, &req, "invalid setting payload") {
		return
	}
	if req.Key == "" {
		req.Key = c.Param("key")
	}
	if req.Key != c.Param("key") {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "key mismatch between path and body"))
		return
	}
	claims := claimsFromContext(c)
	item, err := h.service.Update(c.Request.Context(), req.Key, req.Value, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// BulkUpdate godoc
// @Summary Bulk update settings
// @Tags Settings
// @Accept json
// @Produce json
// @Param payload body dto.BulkUpdateSettingsRequest true "Bulk settings payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /settings [put]
func (h *SettingsHandler) BulkUpdate(c *gin.Context) {
	var req dto.BulkUpdateSettingsRequest
	if !bindJSON(c, &req, "invalid bulk payload") {
		return
	}
	claims := claimsFromContext(c)
	items, err := h.service.BulkUpdate(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}
