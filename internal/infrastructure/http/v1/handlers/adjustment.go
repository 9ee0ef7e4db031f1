package handlers

import (
	"github.com/gin-gonic/gin"

	"stockcore/internal/domain/adjustment"
	"stockcore/internal/domain/reconcile"
	"stockcore/internal/infrastructure/http/v1/dto"
)

// AdjustmentHandler handles HTTP requests for stock adjustments.
type AdjustmentHandler struct {
	*BaseHandler
	facade  *reconcile.Facade
	service *adjustment.Service
}

// NewAdjustmentHandler creates a new adjustment handler.
func NewAdjustmentHandler(base *BaseHandler, facade *reconcile.Facade, service *adjustment.Service) *AdjustmentHandler {
	return &AdjustmentHandler{
		BaseHandler: base,
		facade:      facade,
		service:     service,
	}
}

// Create creates a draft adjustment.
// POST /adjustments
func (h *AdjustmentHandler) Create(c *gin.Context) {
	var req dto.CreateAdjustmentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	serviceReq, err := req.ToServiceRequest()
	if err != nil {
		h.Error(c, err)
		return
	}

	adj, err := h.facade.RequestAdjustment(c.Request.Context(), serviceReq, h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, adj)
}

// Get returns one adjustment with lines.
// GET /adjustments/:id
func (h *AdjustmentHandler) Get(c *gin.Context) {
	adjustmentID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	adj, err := h.service.GetByID(c.Request.Context(), adjustmentID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, adj)
}

// List returns adjustments matching the filter.
// GET /adjustments
func (h *AdjustmentHandler) List(c *gin.Context) {
	var req dto.ListAdjustmentsRequest
	if !h.BindQuery(c, &req) {
		return
	}
	filter, err := req.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	adjustments, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{Items: adjustments, Limit: filter.Limit, Offset: filter.Offset})
}

// Update edits a draft adjustment.
// PUT /adjustments/:id
func (h *AdjustmentHandler) Update(c *gin.Context) {
	adjustmentID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateAdjustmentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	serviceReq, err := req.ToServiceRequest(adjustmentID)
	if err != nil {
		h.Error(c, err)
		return
	}

	adj, err := h.service.Update(c.Request.Context(), serviceReq, h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, adj)
}

// Delete removes a draft adjustment.
// DELETE /adjustments/:id
func (h *AdjustmentHandler) Delete(c *gin.Context) {
	adjustmentID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), adjustmentID, h.GetUserID(c)); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Approve applies the adjustment to stock and closes it.
// POST /adjustments/:id/approve
func (h *AdjustmentHandler) Approve(c *gin.Context) {
	adjustmentID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	decision, err := h.facade.Approve(c.Request.Context(), reconcile.KindAdjustment, adjustmentID, h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, decision)
}

// Reject closes the adjustment without touching stock.
// POST /adjustments/:id/reject
func (h *AdjustmentHandler) Reject(c *gin.Context) {
	adjustmentID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	decision, err := h.facade.Reject(c.Request.Context(), reconcile.KindAdjustment, adjustmentID, h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, decision)
}
