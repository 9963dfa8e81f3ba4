package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-timetable-api/internal/dto"
	appErrors "github.com/noah-isme/campus-timetable-api/pkg/errors"
	"github.com/noah-isme/campus-timetable-api/pkg/response"
)

type settingService interface {
	MaxWorkloadSetting(ctx context.Context) (*dto.MaxWorkloadSetting, error)
	SetMaxWorkload(ctx context.Context, req dto.MaxWorkloadSetting, actor string) (*dto.MaxWorkloadSetting, error)
}

// SettingHandler exposes scheduler settings.
type SettingHandler struct {
	service settingService
}

// NewSettingHandler constructs the handler.
func NewSettingHandler(service settingService) *SettingHandler {
	return &SettingHandler{service: service}
}

// GetMaxWorkload godoc
// @Summary Get the lecturer workload cap
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /settings/max-workload [get]
func (h *SettingHandler) GetMaxWorkload(c *gin.Context) {
	setting, err := h.service.MaxWorkloadSetting(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, setting)
}

// SetMaxWorkload godoc
// @Summary Update the lecturer workload cap
// @Tags Settings
// @Accept json
// @Produce json
// @Param payload body dto.MaxWorkloadSetting true "Workload cap"
// @Success 200 {object} response.Envelope
// @Router /settings/max-workload [put]
func (h *SettingHandler) SetMaxWorkload(c *gin.Context) {
	var req dto.MaxWorkloadSetting
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid workload payload"))
		return
	}
	setting, err := h.service.SetMaxWorkload(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, setting)
}
