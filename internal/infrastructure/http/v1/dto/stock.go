package dto

import (
	"time"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/ledger"
	"stockcore/internal/domain/reconcile"
)

// --- Queries ---

type PositionQuery struct {
	ProductID string `form:"productId" binding:"required"`
	StoreID   string `form:"storeId" binding:"required"`
}

// Parse validates and parses the query IDs.
func (q *PositionQuery) Parse() (productID, storeID id.ID, err error) {
	productID, err = id.Parse(q.ProductID)
	if err != nil {
		return id.Nil(), id.Nil(), apperror.NewValidation("invalid productId")
	}
	storeID, err = id.Parse(q.StoreID)
	if err != nil {
		return id.Nil(), id.Nil(), apperror.NewValidation("invalid storeId")
	}
	return productID, storeID, nil
}

type ListPositionsQuery struct {
	StoreID        string `form:"storeId"`
	BelowThreshold bool   `form:"belowThreshold"`
	Limit          int    `form:"limit,default=100" binding:"min=1,max=1000"`
	Offset         int    `form:"offset" binding:"min=0"`
}

// ToFilter converts query params to a domain filter.
func (q *ListPositionsQuery) ToFilter() (ledger.PositionFilter, error) {
	filter := ledger.PositionFilter{
		BelowThreshold: q.BelowThreshold,
		Limit:          q.Limit,
		Offset:         q.Offset,
	}
	if q.StoreID != "" {
		storeID, err := id.Parse(q.StoreID)
		if err != nil {
			return filter, apperror.NewValidation("invalid storeId")
		}
		filter.StoreID = storeID
	}
	return filter, nil
}

type MovementsQuery struct {
	ProductID string     `form:"productId"`
	StoreID   string     `form:"storeId"`
	Kind      string     `form:"kind"`
	From      *time.Time `form:"from"`
	To        *time.Time `form:"to"`
	Limit     int        `form:"limit,default=100" binding:"min=1,max=1000"`
	Offset    int        `form:"offset" binding:"min=0"`
}

// ToFilter converts query params to a domain filter.
func (q *MovementsQuery) ToFilter() (ledger.MovementFilter, error) {
	filter := ledger.MovementFilter{
		Kind:   ledger.MovementKind(q.Kind),
		Limit:  q.Limit,
		Offset: q.Offset,
	}
	if q.ProductID != "" {
		productID, err := id.Parse(q.ProductID)
		if err != nil {
			return filter, apperror.NewValidation("invalid productId")
		}
		filter.ProductID = productID
	}
	if q.StoreID != "" {
		storeID, err := id.Parse(q.StoreID)
		if err != nil {
			return filter, apperror.NewValidation("invalid storeId")
		}
		filter.StoreID = storeID
	}
	if q.From != nil {
		filter.From = *q.From
	}
	if q.To != nil {
		filter.To = *q.To
	}
	return filter, nil
}

// --- Thresholds ---

type SetThresholdRequest struct {
	ProductID string  `json:"productId" binding:"required"`
	StoreID   string  `json:"storeId" binding:"required"`
	Threshold float64 `json:"threshold" binding:"gte=0"`
}

// --- Sale posting ---

type SaleLineRequest struct {
	ProductID string  `json:"productId" binding:"required"`
	Quantity  float64 `json:"quantity" binding:"required,gt=0"`
}

type RecordSaleRequest struct {
	TransactionID string            `json:"transactionId" binding:"required"`
	StoreID       string            `json:"storeId" binding:"required"`
	SoldAt        *time.Time        `json:"soldAt,omitempty"`
	Lines         []SaleLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// ToSaleInput converts the DTO to a facade sale input.
func (r *RecordSaleRequest) ToSaleInput() (reconcile.SaleInput, error) {
	txnID, err := id.Parse(r.TransactionID)
	if err != nil {
		return reconcile.SaleInput{}, apperror.NewValidation("invalid transactionId")
	}
	storeID, err := id.Parse(r.StoreID)
	if err != nil {
		return reconcile.SaleInput{}, apperror.NewValidation("invalid storeId")
	}

	input := reconcile.SaleInput{
		TransactionID: txnID,
		StoreID:       storeID,
	}
	if r.SoldAt != nil {
		input.SoldAt = *r.SoldAt
	}
	for _, line := range r.Lines {
		productID, err := id.Parse(line.ProductID)
		if err != nil {
			return reconcile.SaleInput{}, apperror.NewValidation("invalid productId").
				WithDetail("product_id", line.ProductID)
		}
		input.Lines = append(input.Lines, reconcile.SaleLineInput{
			ProductID: productID,
			Quantity:  types.NewQuantityFromFloat64(line.Quantity),
		})
	}
	return input, nil
}
