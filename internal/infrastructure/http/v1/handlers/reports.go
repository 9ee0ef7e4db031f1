package handlers

import (
	"github.com/gin-gonic/gin"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/domain/reports"
	"stockcore/internal/infrastructure/http/v1/dto"
)

// ReportsHandler exposes read-only reporting queries.
type ReportsHandler struct {
	*BaseHandler
	service *reports.Service
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(base *BaseHandler, service *reports.Service) *ReportsHandler {
	return &ReportsHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Valuation returns current positions with stock value.
// GET /reports/valuation
func (h *ReportsHandler) Valuation(c *gin.Context) {
	var query dto.ListPositionsQuery
	if !h.BindQuery(c, &query) {
		return
	}
	filter, err := query.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	rows, err := h.service.StockValuation(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{Items: rows, Limit: filter.Limit, Offset: filter.Offset})
}

// LowStock returns positions below their minimum threshold.
// GET /reports/low-stock?storeId=
func (h *ReportsHandler) LowStock(c *gin.Context) {
	storeID, err := h.optionalStoreID(c)
	if err != nil {
		h.Error(c, err)
		return
	}

	rows, err := h.service.LowStock(c.Request.Context(), storeID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"items": rows})
}

// Movements returns movement history matching the filter.
// GET /reports/movements
func (h *ReportsHandler) Movements(c *gin.Context) {
	var query dto.MovementsQuery
	if !h.BindQuery(c, &query) {
		return
	}
	filter, err := query.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	movements, err := h.service.MovementHistory(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{Items: movements, Limit: filter.Limit, Offset: filter.Offset})
}

// Consistency verifies materialized quantities against the movement log.
// GET /reports/consistency?storeId=
func (h *ReportsHandler) Consistency(c *gin.Context) {
	storeID, err := h.optionalStoreID(c)
	if err != nil {
		h.Error(c, err)
		return
	}

	drifts, err := h.service.Consistency(c.Request.Context(), storeID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"drifts": drifts, "consistent": len(drifts) == 0})
}

func (h *ReportsHandler) optionalStoreID(c *gin.Context) (id.ID, error) {
	raw := c.Query("storeId")
	if raw == "" {
		return id.Nil(), nil
	}
	storeID, err := id.Parse(raw)
	if err != nil {
		return id.Nil(), apperror.NewValidation("invalid storeId")
	}
	return storeID, nil
}
