package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-timetable-api/internal/dto"
	"github.com/noah-isme/campus-timetable-api/internal/models"
	appErrors "github.com/noah-isme/campus-timetable-api/pkg/errors"
	"github.com/noah-isme/campus-timetable-api/pkg/response"
)

type timetableService interface {
	List(ctx context.Context, query dto.TimetableQuery) ([]models.Timetable, error)
	Get(ctx context.Context, id string) (*models.Timetable, error)
	Create(ctx context.Context, req dto.CreateTimetableRequest) (*models.Timetable, error)
	UpdateSubject(ctx context.Context, timetableID, subjectID string, req dto.UpdateTimetableSubjectRequest) (*models.TimetableSubject, error)
	Delete(ctx context.Context, id string) error
	DeleteByBatch(ctx context.Context, batch string) (*dto.BulkDeleteResponse, error)
	Export(ctx context.Context, query dto.TimetableQuery) ([]byte, string, error)
	Availability(ctx context.Context, batch string) (*dto.AvailabilityResponse, error)
}

// TimetableHandler exposes timetable CRUD, export and availability endpoints.
type TimetableHandler struct {
	service timetableService
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(service timetableService) *TimetableHandler {
	return &TimetableHandler{service: service}
}

// List godoc
// @Summary List timetables
// @Tags Timetables
// @Produce json
// @Param batch query string false "Batch filter"
// @Success 200 {object} response.Envelope
// @Router /timetables [get]
func (h *TimetableHandler) List(c *gin.Context) {
	var query dto.TimetableQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	items, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items)
}

// Get godoc
// @Summary Get a timetable
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/{id} [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item)
}

// Create godoc
// @Summary Record a manual session
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.CreateTimetableRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetables [post]
func (h *TimetableHandler) Create(c *gin.Context) {
	var req dto.CreateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid timetable payload"))
		return
	}
	item, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// UpdateSubject godoc
// @Summary Edit one session of a timetable
// @Tags Timetables
// @Accept json
// @Produce json
// @Param id path string true "Timetable ID"
// @Param subjectId path string true "Session ID"
// @Param payload body dto.UpdateTimetableSubjectRequest true "Session payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetables/{id}/subjects/{subjectId} [put]
func (h *TimetableHandler) UpdateSubject(c *gin.Context) {
	var req dto.UpdateTimetableSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid session payload"))
		return
	}
	item, err := h.service.UpdateSubject(c.Request.Context(), c.Param("id"), c.Param("subjectId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item)
}

// Delete godoc
// @Summary Delete a timetable
// @Tags Timetables
// @Param id path string true "Timetable ID"
// @Success 204
// @Router /timetables/{id} [delete]
func (h *TimetableHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DeleteByBatch godoc
// @Summary Delete every timetable of a batch
// @Tags Timetables
// @Produce json
// @Param batch query string true "Batch"
// @Success 200 {object} response.Envelope
// @Router /timetables [delete]
func (h *TimetableHandler) DeleteByBatch(c *gin.Context) {
	result, err := h.service.DeleteByBatch(c.Request.Context(), c.Query("batch"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Export godoc
// @Summary Export timetables as CSV
// @Tags Timetables
// @Produce text/csv
// @Param batch query string false "Batch filter"
// @Success 200 {file} binary
// @Router /timetables/export [get]
func (h *TimetableHandler) Export(c *gin.Context) {
	var query dto.TimetableQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	content, contentType, err := h.service.Export(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	name := "timetables"
	if query.Batch != "" {
		name = query.Batch
	}
	response.Attachment(c, fmt.Sprintf("%s-%s.csv", name, time.Now().UTC().Format("20060102")), contentType, content)
}

// Availability godoc
// @Summary Weekly availability grid for a batch
// @Tags Timetables
// @Produce json
// @Param batch query string true "Batch"
// @Success 200 {object} response.Envelope
// @Router /timetables/availability [get]
func (h *TimetableHandler) Availability(c *gin.Context) {
	grid, err := h.service.Availability(c.Request.Context(), c.Query("batch"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grid)
}
