package dto

import (
	"time"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/adjustment"
)

// --- Request DTOs ---

type AdjustmentLineRequest struct {
	ProductID string  `json:"productId" binding:"required"`
	Quantity  float64 `json:"quantity" binding:"required,gt=0"`
	UnitCost  float64 `json:"unitCost,omitempty" binding:"gte=0"`
}

type CreateAdjustmentRequest struct {
	StoreID string                  `json:"storeId" binding:"required"`
	Type    string                  `json:"type" binding:"required"`
	Reason  string                  `json:"reason" binding:"required"`
	Date    *time.Time              `json:"date,omitempty"`
	Comment string                  `json:"comment,omitempty"`
	Lines   []AdjustmentLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// ToServiceRequest converts the DTO to a domain create request.
func (r *CreateAdjustmentRequest) ToServiceRequest() (adjustment.CreateRequest, error) {
	storeID, err := id.Parse(r.StoreID)
	if err != nil {
		return adjustment.CreateRequest{}, apperror.NewValidation("invalid storeId")
	}

	lines, err := toAdjustmentLineInputs(r.Lines)
	if err != nil {
		return adjustment.CreateRequest{}, err
	}

	req := adjustment.CreateRequest{
		StoreID: storeID,
		Type:    adjustment.Type(r.Type),
		Reason:  adjustment.Reason(r.Reason),
		Comment: r.Comment,
		Lines:   lines,
	}
	if r.Date != nil {
		req.Date = *r.Date
	}
	return req, nil
}

type UpdateAdjustmentRequest struct {
	Version int                     `json:"version" binding:"required,min=1"`
	Reason  string                  `json:"reason" binding:"required"`
	Date    *time.Time              `json:"date,omitempty"`
	Comment string                  `json:"comment,omitempty"`
	Lines   []AdjustmentLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// ToServiceRequest converts the DTO to a domain update request.
func (r *UpdateAdjustmentRequest) ToServiceRequest(adjustmentID id.ID) (adjustment.UpdateRequest, error) {
	lines, err := toAdjustmentLineInputs(r.Lines)
	if err != nil {
		return adjustment.UpdateRequest{}, err
	}

	req := adjustment.UpdateRequest{
		ID:      adjustmentID,
		Version: r.Version,
		Reason:  adjustment.Reason(r.Reason),
		Comment: r.Comment,
		Lines:   lines,
	}
	if r.Date != nil {
		req.Date = *r.Date
	}
	return req, nil
}

func toAdjustmentLineInputs(lines []AdjustmentLineRequest) ([]adjustment.LineInput, error) {
	inputs := make([]adjustment.LineInput, 0, len(lines))
	for _, line := range lines {
		productID, err := id.Parse(line.ProductID)
		if err != nil {
			return nil, apperror.NewValidation("invalid productId").
				WithDetail("product_id", line.ProductID)
		}
		inputs = append(inputs, adjustment.LineInput{
			ProductID: productID,
			Quantity:  types.NewQuantityFromFloat64(line.Quantity),
			UnitCost:  types.NewMoney(line.UnitCost),
		})
	}
	return inputs, nil
}

type ListAdjustmentsRequest struct {
	StoreID  string     `form:"storeId"`
	Status   string     `form:"status"`
	Type     string     `form:"type"`
	DateFrom *time.Time `form:"dateFrom"`
	DateTo   *time.Time `form:"dateTo"`
	Limit    int        `form:"limit,default=50" binding:"min=1,max=500"`
	Offset   int        `form:"offset" binding:"min=0"`
}

// ToFilter converts query params to a domain filter.
func (r *ListAdjustmentsRequest) ToFilter() (adjustment.Filter, error) {
	filter := adjustment.Filter{
		Status: adjustment.Status(r.Status),
		Type:   adjustment.Type(r.Type),
		Limit:  r.Limit,
		Offset: r.Offset,
	}
	if r.StoreID != "" {
		storeID, err := id.Parse(r.StoreID)
		if err != nil {
			return filter, apperror.NewValidation("invalid storeId")
		}
		filter.StoreID = storeID
	}
	if r.DateFrom != nil {
		filter.DateFrom = *r.DateFrom
	}
	if r.DateTo != nil {
		filter.DateTo = *r.DateTo
	}
	return filter, nil
}
