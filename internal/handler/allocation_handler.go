package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-timetable-api/internal/dto"
	"github.com/noah-isme/campus-timetable-api/internal/models"
	appErrors "github.com/noah-isme/campus-timetable-api/pkg/errors"
	"github.com/noah-isme/campus-timetable-api/pkg/response"
)

type allocationService interface {
	List(ctx context.Context) ([]models.Allocation, error)
	Get(ctx context.Context, id string) (*models.Allocation, error)
	Create(ctx context.Context, req dto.AllocationRequest) (*models.Allocation, error)
	Update(ctx context.Context, id string, req dto.AllocationRequest) (*models.Allocation, error)
	Delete(ctx context.Context, id string) error
	AcceptSubstitute(ctx context.Context, req dto.AcceptSubstituteRequest) (*models.Allocation, error)
}

type substituteSearches interface {
	Submit(ctx context.Context, req dto.SubstituteSearchRequest) (*dto.SubstituteSearch, error)
	Get(ctx context.Context, id string) (*dto.SubstituteSearch, error)
	Cancel(ctx context.Context, id string) (*dto.SubstituteSearch, error)
}

// AllocationHandler exposes allocation management and the substitute workflow.
type AllocationHandler struct {
	service  allocationService
	searches substituteSearches
}

// NewAllocationHandler constructs the handler.
func NewAllocationHandler(service allocationService, searches substituteSearches) *AllocationHandler {
	return &AllocationHandler{service: service, searches: searches}
}

// List godoc
// @Summary List allocations
// @Tags Allocations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /allocations [get]
func (h *AllocationHandler) List(c *gin.Context) {
	items, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items)
}

// Get godoc
// @Summary Get an allocation
// @Tags Allocations
// @Produce json
// @Param id path string true "Allocation ID"
// @Success 200 {object} response.Envelope
// @Router /allocations/{id} [get]
func (h *AllocationHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item)
}

// Create godoc
// @Summary Create an allocation
// @Description Rejected with WORKLOAD_EXCEEDED when a lecturer already teaches the configured maximum.
// @Tags Allocations
// @Accept json
// @Produce json
// @Param payload body dto.AllocationRequest true "Allocation payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /allocations [post]
func (h *AllocationHandler) Create(c *gin.Context) {
	var req dto.AllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid allocation payload"))
		return
	}
	item, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Update an allocation
// @Tags Allocations
// @Accept json
// @Produce json
// @Param id path string true "Allocation ID"
// @Param payload body dto.AllocationRequest true "Allocation payload"
// @Success 200 {object} response.Envelope
// @Router /allocations/{id} [put]
func (h *AllocationHandler) Update(c *gin.Context) {
	var req dto.AllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid allocation payload"))
		return
	}
	item, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item)
}

// Delete godoc
// @Summary Delete an allocation
// @Tags Allocations
// @Param id path string true "Allocation ID"
// @Success 204
// @Router /allocations/{id} [delete]
func (h *AllocationHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SearchSubstitute godoc
// @Summary Start a substitute lecturer search
// @Tags Allocations
// @Accept json
// @Produce json
// @Param payload body dto.SubstituteSearchRequest true "Search request"
// @Success 202 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /allocations/substitutes [post]
func (h *AllocationHandler) SearchSubstitute(c *gin.Context) {
	var req dto.SubstituteSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid substitute search payload"))
		return
	}
	search, err := h.searches.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Location", c.FullPath()+"/"+search.SearchID)
	response.Accepted(c, search)
}

// GetSubstituteSearch godoc
// @Summary Poll a substitute search
// @Tags Allocations
// @Produce json
// @Param id path string true "Search ID"
// @Success 200 {object} response.Envelope
// @Router /allocations/substitutes/{id} [get]
func (h *AllocationHandler) GetSubstituteSearch(c *gin.Context) {
	search, err := h.searches.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, search)
}

// CancelSubstituteSearch godoc
// @Summary Cancel a pending substitute search
// @Tags Allocations
// @Produce json
// @Param id path string true "Search ID"
// @Success 200 {object} response.Envelope
// @Router /allocations/substitutes/{id} [delete]
func (h *AllocationHandler) CancelSubstituteSearch(c *gin.Context) {
	search, err := h.searches.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, search)
}

// AcceptSubstitute godoc
// @Summary Accept a substitute and save the allocation
// @Tags Allocations
// @Accept json
// @Produce json
// @Param payload body dto.AcceptSubstituteRequest true "Substitution"
// @Success 200 {object} response.Envelope
// @Router /allocations/substitutes/accept [post]
func (h *AllocationHandler) AcceptSubstitute(c *gin.Context) {
	var req dto.AcceptSubstituteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid substitution payload"))
		return
	}
	item, err := h.service.AcceptSubstitute(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item)
}
