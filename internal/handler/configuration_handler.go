package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-billing-api/internal/dto"
	"github.com/noah-isme/course-billing-api/internal/models"
	appErrors "github.com/noah-isme/course-billing-api/pkg/errors"
	"github.com/noah-isme/course-billing-api/pkg/response"
)

type configurationService interface {
	GetCenterSettings(ctx context.Context) (*models.CenterSettings, error)
	UpdateCenterSettings(ctx context.Context, req dto.UpdateCenterSettingsRequest, actor models.Actor) (*models.CenterSettings, error)
}

// ConfigurationHandler exposes center-wide billing settings.
type ConfigurationHandler struct {
	service configurationService
}

// NewConfigurationHandler builds a new handler.
func NewConfigurationHandler(service configurationService) *ConfigurationHandler {
	return &ConfigurationHandler{service: service}
}

// Get godoc
// @Summary Get center settings
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /settings/center [get]
func (h *ConfigurationHandler) Get(c *gin.Context) {
	settings, err := h.service.GetCenterSettings(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

// Update godoc
// @Summary Update center settings
// @Tags Settings
// @Accept json
// @Produce json
// @Param payload body dto.UpdateCenterSettingsRequest true "Settings payload"
// @Success 200 {object} response.Envelope
// @Router /settings/center [put]
func (h *ConfigurationHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateCenterSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid settings payload"))
		return
	}
	settings, err := h.service.UpdateCenterSettings(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}
