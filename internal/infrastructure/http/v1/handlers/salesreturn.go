package handlers

import (
	"github.com/gin-gonic/gin"

	"stockcore/internal/domain/reconcile"
	"stockcore/internal/domain/salesreturn"
	"stockcore/internal/infrastructure/http/v1/dto"
)

// ReturnHandler handles HTTP requests for sales returns.
type ReturnHandler struct {
	*BaseHandler
	facade  *reconcile.Facade
	service *salesreturn.Service
}

// NewReturnHandler creates a new sales return handler.
func NewReturnHandler(base *BaseHandler, facade *reconcile.Facade, service *salesreturn.Service) *ReturnHandler {
	return &ReturnHandler{
		BaseHandler: base,
		facade:      facade,
		service:     service,
	}
}

// Create creates a pending return against a sales transaction.
// POST /returns
func (h *ReturnHandler) Create(c *gin.Context) {
	var req dto.CreateReturnRequest
	if !h.BindJSON(c, &req) {
		return
	}
	serviceReq, err := req.ToServiceRequest()
	if err != nil {
		h.Error(c, err)
		return
	}

	ret, err := h.facade.RequestReturn(c.Request.Context(), serviceReq, h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, ret)
}

// Get returns one sales return with lines.
// GET /returns/:id
func (h *ReturnHandler) Get(c *gin.Context) {
	returnID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	ret, err := h.service.GetByID(c.Request.Context(), returnID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, ret)
}

// List returns sales returns matching the filter.
// GET /returns
func (h *ReturnHandler) List(c *gin.Context) {
	var req dto.ListReturnsRequest
	if !h.BindQuery(c, &req) {
		return
	}
	filter, err := req.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	returns, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{Items: returns, Limit: filter.Limit, Offset: filter.Offset})
}

// Update edits a pending return.
// PUT /returns/:id
func (h *ReturnHandler) Update(c *gin.Context) {
	returnID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateReturnRequest
	if !h.BindJSON(c, &req) {
		return
	}
	serviceReq, err := req.ToServiceRequest(returnID)
	if err != nil {
		h.Error(c, err)
		return
	}

	ret, err := h.service.Update(c.Request.Context(), serviceReq, h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, ret)
}

// Approve restocks eligible lines and closes the return.
// POST /returns/:id/approve
func (h *ReturnHandler) Approve(c *gin.Context) {
	returnID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	decision, err := h.facade.Approve(c.Request.Context(), reconcile.KindReturn, returnID, h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, decision)
}

// Reject closes the return and releases its eligibility reservation.
// POST /returns/:id/reject
func (h *ReturnHandler) Reject(c *gin.Context) {
	returnID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	decision, err := h.facade.Reject(c.Request.Context(), reconcile.KindReturn, returnID, h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, decision)
}

// Eligibility returns the remaining returnable quantity for one sold line.
// GET /returns/eligibility/:salesLineId
func (h *ReturnHandler) Eligibility(c *gin.Context) {
	salesLineID, ok := h.ParseIDParam(c, "salesLineId")
	if !ok {
		return
	}

	eligible, err := h.facade.EligibleQuantity(c.Request.Context(), salesLineID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.EligibilityResponse{
		SalesLineID:      salesLineID.String(),
		EligibleQuantity: eligible.Float64(),
	})
}
