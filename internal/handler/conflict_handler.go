package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-timetable-api/internal/dto"
	internalmiddleware "github.com/noah-isme/campus-timetable-api/internal/middleware"
	"github.com/noah-isme/campus-timetable-api/internal/models"
	appErrors "github.com/noah-isme/campus-timetable-api/pkg/errors"
	"github.com/noah-isme/campus-timetable-api/pkg/response"
)

type conflictService interface {
	List(ctx context.Context, batch string) ([]models.ConflictRecord, error)
	Resolve(ctx context.Context, req dto.ResolveConflictRequest) (*dto.ResolveConflictResponse, error)
}

// ConflictHandler exposes conflict detection and resolution.
type ConflictHandler struct {
	service conflictService
}

// NewConflictHandler constructs the handler.
func NewConflictHandler(service conflictService) *ConflictHandler {
	return &ConflictHandler{service: service}
}

// List godoc
// @Summary List scheduling conflicts
// @Tags Conflicts
// @Produce json
// @Param batch query string false "Only compare timetables of this batch"
// @Success 200 {object} response.Envelope
// @Router /timetables/conflicts [get]
func (h *ConflictHandler) List(c *gin.Context) {
	batch := c.Query("batch")
	conflicts, err := h.service.List(c.Request.Context(), batch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, conflicts, internalmiddleware.ResponseMeta(c, map[string]interface{}{"count": len(conflicts), "batch": batch}))
}

// Resolve godoc
// @Summary Resolve one conflict
// @Tags Conflicts
// @Accept json
// @Produce json
// @Param payload body dto.ResolveConflictRequest true "Resolution"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetables/conflicts/resolve [post]
func (h *ConflictHandler) Resolve(c *gin.Context) {
	var req dto.ResolveConflictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid resolution payload"))
		return
	}
	result, err := h.service.Resolve(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}
