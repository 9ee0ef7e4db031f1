package dto

import (
	"time"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/salesreturn"
)

// --- Request DTOs ---

type ReturnLineRequest struct {
	SalesLineID string  `json:"salesLineId" binding:"required"`
	Quantity    float64 `json:"quantity" binding:"required,gt=0"`
	Condition   string  `json:"condition" binding:"required"`
}

type CreateReturnRequest struct {
	SalesTransactionID string              `json:"salesTransactionId" binding:"required"`
	Reason             string              `json:"reason" binding:"required"`
	Comment            string              `json:"comment,omitempty"`
	Lines              []ReturnLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// ToServiceRequest converts the DTO to a domain create request.
func (r *CreateReturnRequest) ToServiceRequest() (salesreturn.CreateRequest, error) {
	txnID, err := id.Parse(r.SalesTransactionID)
	if err != nil {
		return salesreturn.CreateRequest{}, apperror.NewValidation("invalid salesTransactionId")
	}

	lines, err := toReturnLineInputs(r.Lines)
	if err != nil {
		return salesreturn.CreateRequest{}, err
	}

	return salesreturn.CreateRequest{
		SalesTransactionID: txnID,
		Reason:             salesreturn.Reason(r.Reason),
		Comment:            r.Comment,
		Lines:              lines,
	}, nil
}

type UpdateReturnRequest struct {
	Version int                 `json:"version" binding:"required,min=1"`
	Reason  string              `json:"reason" binding:"required"`
	Comment string              `json:"comment,omitempty"`
	Lines   []ReturnLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// ToServiceRequest converts the DTO to a domain update request.
func (r *UpdateReturnRequest) ToServiceRequest(returnID id.ID) (salesreturn.UpdateRequest, error) {
	lines, err := toReturnLineInputs(r.Lines)
	if err != nil {
		return salesreturn.UpdateRequest{}, err
	}

	return salesreturn.UpdateRequest{
		ID:      returnID,
		Version: r.Version,
		Reason:  salesreturn.Reason(r.Reason),
		Comment: r.Comment,
		Lines:   lines,
	}, nil
}

func toReturnLineInputs(lines []ReturnLineRequest) ([]salesreturn.LineInput, error) {
	inputs := make([]salesreturn.LineInput, 0, len(lines))
	for _, line := range lines {
		salesLineID, err := id.Parse(line.SalesLineID)
		if err != nil {
			return nil, apperror.NewValidation("invalid salesLineId").
				WithDetail("sales_line_id", line.SalesLineID)
		}
		inputs = append(inputs, salesreturn.LineInput{
			SalesLineID: salesLineID,
			Quantity:    types.NewQuantityFromFloat64(line.Quantity),
			Condition:   salesreturn.Condition(line.Condition),
		})
	}
	return inputs, nil
}

type ListReturnsRequest struct {
	StoreID            string     `form:"storeId"`
	SalesTransactionID string     `form:"salesTransactionId"`
	Status             string     `form:"status"`
	DateFrom           *time.Time `form:"dateFrom"`
	DateTo             *time.Time `form:"dateTo"`
	Limit              int        `form:"limit,default=50" binding:"min=1,max=500"`
	Offset             int        `form:"offset" binding:"min=0"`
}

// ToFilter converts query params to a domain filter.
func (r *ListReturnsRequest) ToFilter() (salesreturn.Filter, error) {
	filter := salesreturn.Filter{
		Status: salesreturn.Status(r.Status),
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
	if r.SalesTransactionID != "" {
		txnID, err := id.Parse(r.SalesTransactionID)
		if err != nil {
			return filter, apperror.NewValidation("invalid salesTransactionId")
		}
		filter.SalesTransactionID = txnID
	}
	if r.DateFrom != nil {
		filter.DateFrom = *r.DateFrom
	}
	if r.DateTo != nil {
		filter.DateTo = *r.DateTo
	}
	return filter, nil
}

// --- Eligibility ---

// EligibilityResponse reports the remaining returnable quantity for one
// sold line.
type EligibilityResponse struct {
	SalesLineID      string  `json:"salesLineId"`
	EligibleQuantity float64 `json:"eligibleQuantity"`
}
