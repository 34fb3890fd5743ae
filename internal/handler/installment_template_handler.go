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

type installmentTemplateService interface {
	Get(ctx context.Context, courseID string) (*models.InstallmentTemplate, error)
	Upsert(ctx context.Context, courseID string, req dto.UpsertTemplateRequest, actor models.Actor) (*models.InstallmentTemplate, error)
	Delete(ctx context.Context, courseID string, actor models.Actor) error
}

// InstallmentTemplateHandler manages per-course installment templates.
type InstallmentTemplateHandler struct {
	templates installmentTemplateService
}

// NewInstallmentTemplateHandler constructs the handler.
func NewInstallmentTemplateHandler(templates installmentTemplateService) *InstallmentTemplateHandler {
	return &InstallmentTemplateHandler{templates: templates}
}

// Get godoc
// @Summary Get the installment template of a course
// @Tags Templates
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/installment-template [get]
func (h *InstallmentTemplateHandler) Get(c *gin.Context) {
	tpl, err := h.templates.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tpl, nil)
}

// Upsert godoc
// @Summary Replace the installment template of a course
// @Tags Templates
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.UpsertTemplateRequest true "Template entries"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/installment-template [put]
func (h *InstallmentTemplateHandler) Upsert(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.UpsertTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid template payload"))
		return
	}
	tpl, err := h.templates.Upsert(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tpl, nil)
}

// Delete godoc
// @Summary Remove a course template, falling back to the default schedule
// @Tags Templates
// @Param id path string true "Course ID"
// @Success 204
// @Router /courses/{id}/installment-template [delete]
func (h *InstallmentTemplateHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.templates.Delete(c.Request.Context(), c.Param("id"), actor); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
