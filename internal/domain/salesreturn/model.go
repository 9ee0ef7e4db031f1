// Package salesreturn implements the customer return workflow: pending
// documents that reserve eligibility on creation and restock non-defective
// items on approval.
package salesreturn

import (
	"context"
	"time"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/entity"
	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
)

// DocumentType identifies returns in movement references and audit entries.
const DocumentType = "sales_return"

// Status is the return lifecycle state.
// pending -> approved | rejected; approved and rejected are terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Terminal reports whether the status permits no further change.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Active reports whether the return's lines count against eligibility.
// Rejected returns release their reservation.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusApproved
}

// Condition is the assessed state of a returned item. Only good items are
// restocked; damaged and defective items are recorded but never re-enter
// stock.
type Condition string

const (
	ConditionGood      Condition = "good"
	ConditionDamaged   Condition = "damaged"
	ConditionDefective Condition = "defective"
)

func (c Condition) Valid() bool {
	return c == ConditionGood || c == ConditionDamaged || c == ConditionDefective
}

// Restockable reports whether an approved line of this condition posts a
// restock movement.
func (c Condition) Restockable() bool {
	return c == ConditionGood
}

// Reason is the enumerated cause of the return.
type Reason string

const (
	ReasonUnwanted    Reason = "unwanted"
	ReasonWrongItem   Reason = "wrong_item"
	ReasonDamaged     Reason = "damaged"
	ReasonDefective   Reason = "defective"
	ReasonNotAsListed Reason = "not_as_listed"
	ReasonOther       Reason = "other"
)

func (r Reason) Valid() bool {
	switch r {
	case ReasonUnwanted, ReasonWrongItem, ReasonDamaged, ReasonDefective, ReasonNotAsListed, ReasonOther:
		return true
	}
	return false
}

// SalesReturn is a customer return document against one committed sale.
type SalesReturn struct {
	entity.Document

	SalesTransactionID id.ID  `db:"sales_transaction_id" json:"salesTransactionId"`
	Status             Status `db:"status" json:"status"`
	Reason             Reason `db:"reason" json:"reason"`

	// RefundTotal is finalized on approval: the sum of line refunds,
	// restocked or not.
	RefundTotal types.Money `db:"refund_total" json:"refundTotal"`

	ProcessedBy string     `db:"processed_by" json:"processedBy,omitempty"`
	ProcessedAt *time.Time `db:"processed_at" json:"processedAt,omitempty"`

	Lines []*ReturnLine `db:"-" json:"lines"`
}

// ReturnLine is one returned item group. ProductID and UnitPriceNet are
// copied from the sold line; RefundAmount is quantity × unitPriceNet,
// server-computed and never taken from the caller.
type ReturnLine struct {
	ID          id.ID `db:"id" json:"id"`
	ReturnID    id.ID `db:"return_id" json:"returnId"`
	SalesLineID id.ID `db:"sales_line_id" json:"salesLineId"`
	ProductID   id.ID `db:"product_id" json:"productId"`

	Quantity     types.Quantity `db:"quantity" json:"quantity"`
	Condition    Condition      `db:"condition" json:"condition"`
	UnitPriceNet types.Money    `db:"unit_price_net" json:"unitPriceNet"`
	RefundAmount types.Money    `db:"refund_amount" json:"refundAmount"`
}

// ComputedRefundTotal sums line refunds.
func (r *SalesReturn) ComputedRefundTotal() types.Money {
	total := types.ZeroMoney()
	for _, l := range r.Lines {
		total = total.Add(l.RefundAmount)
	}
	return total
}

// Validate implements entity.Validatable.
func (r *SalesReturn) Validate(ctx context.Context) error {
	if err := r.Document.Validate(ctx); err != nil {
		return err
	}
	if id.IsNil(r.SalesTransactionID) {
		return apperror.NewValidation("sales transaction is required")
	}
	if !r.Reason.Valid() {
		return apperror.NewValidation("unknown return reason: " + string(r.Reason))
	}
	if len(r.Lines) == 0 {
		return apperror.NewValidation("return requires at least one line")
	}
	for i, line := range r.Lines {
		if id.IsNil(line.SalesLineID) {
			return apperror.NewValidation("line sales line is required").
				WithDetail("line", i)
		}
		if !line.Quantity.IsPositive() {
			return apperror.NewValidation("line quantity must be positive").
				WithDetail("line", i)
		}
		if !line.Condition.Valid() {
			return apperror.NewValidation("unknown item condition: " + string(line.Condition)).
				WithDetail("line", i)
		}
	}
	return nil
}
