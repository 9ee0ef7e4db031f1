package handlers

import (
	"github.com/gin-gonic/gin"

	"stockcore/internal/core/types"
	"stockcore/internal/domain/ledger"
	"stockcore/internal/domain/reconcile"
	"stockcore/internal/infrastructure/http/v1/dto"
)

// StockHandler exposes current positions and the sale posting hook.
type StockHandler struct {
	*BaseHandler
	facade *reconcile.Facade
	ledger *ledger.Service
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(base *BaseHandler, facade *reconcile.Facade, ledgerSvc *ledger.Service) *StockHandler {
	return &StockHandler{
		BaseHandler: base,
		facade:      facade,
		ledger:      ledgerSvc,
	}
}

// GetPosition returns the current position for one (product, store) pair.
// GET /stock/position?productId=&storeId=
func (h *StockHandler) GetPosition(c *gin.Context) {
	var query dto.PositionQuery
	if !h.BindQuery(c, &query) {
		return
	}
	productID, storeID, err := query.Parse()
	if err != nil {
		h.Error(c, err)
		return
	}

	pos, err := h.facade.CurrentStock(c.Request.Context(), productID, storeID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, pos)
}

// ListPositions returns positions matching the filter.
// GET /stock/positions
func (h *StockHandler) ListPositions(c *gin.Context) {
	var query dto.ListPositionsQuery
	if !h.BindQuery(c, &query) {
		return
	}
	filter, err := query.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	positions, err := h.ledger.ListPositions(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ListResponse{Items: positions, Limit: filter.Limit, Offset: filter.Offset})
}

// SetThreshold sets the informational low-stock threshold.
// PUT /stock/threshold
func (h *StockHandler) SetThreshold(c *gin.Context) {
	var req dto.SetThresholdRequest
	if !h.BindJSON(c, &req) {
		return
	}

	query := dto.PositionQuery{ProductID: req.ProductID, StoreID: req.StoreID}
	productID, storeID, err := query.Parse()
	if err != nil {
		h.Error(c, err)
		return
	}

	err = h.ledger.SetMinimumThreshold(c.Request.Context(), productID, storeID,
		types.NewQuantityFromFloat64(req.Threshold))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "threshold updated")
}

// RecordSale posts the stock effect of a committed sale.
// POST /stock/sales
func (h *StockHandler) RecordSale(c *gin.Context) {
	var req dto.RecordSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}
	input, err := req.ToSaleInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	movements, err := h.facade.RecordSale(c.Request.Context(), input)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, gin.H{"movements": movements})
}
