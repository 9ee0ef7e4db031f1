// Package adjustment implements the manual stock correction workflow:
// draft documents that post ledger movements on approval.
package adjustment

import (
	"context"
	"time"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/entity"
	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
)

// DocumentType identifies adjustments in movement references and audit entries.
const DocumentType = "adjustment"

// Status is the adjustment lifecycle state.
// draft -> approved | rejected; approved and rejected are terminal.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Terminal reports whether the status permits no further change.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Type is the direction of the correction. Line quantities are normalized to
// this direction; the caller's sign is never trusted.
type Type string

const (
	TypeIncrease Type = "increase"
	TypeDecrease Type = "decrease"
)

func (t Type) Valid() bool {
	return t == TypeIncrease || t == TypeDecrease
}

// Reason is the enumerated cause of the correction.
type Reason string

const (
	ReasonRecount    Reason = "recount"
	ReasonDamage     Reason = "damage"
	ReasonTheft      Reason = "theft"
	ReasonFound      Reason = "found"
	ReasonExpiry     Reason = "expiry"
	ReasonCorrection Reason = "correction"
	ReasonOther      Reason = "other"
)

func (r Reason) Valid() bool {
	switch r {
	case ReasonRecount, ReasonDamage, ReasonTheft, ReasonFound, ReasonExpiry, ReasonCorrection, ReasonOther:
		return true
	}
	return false
}

// StockAdjustment is a manual correction document.
type StockAdjustment struct {
	entity.Document

	Type   Type   `db:"type" json:"type"`
	Reason Reason `db:"reason" json:"reason"`
	Status Status `db:"status" json:"status"`

	ApprovedBy string     `db:"approved_by" json:"approvedBy,omitempty"`
	ApprovedAt *time.Time `db:"approved_at" json:"approvedAt,omitempty"`

	Lines []*AdjustmentLine `db:"-" json:"lines"`
}

// AdjustmentLine is one corrected product. Snapshot fields are
// server-computed from the ledger at create/edit time and shown to the
// approver; they are projections, never approval inputs.
type AdjustmentLine struct {
	ID           id.ID `db:"id" json:"id"`
	AdjustmentID id.ID `db:"adjustment_id" json:"adjustmentId"`
	ProductID    id.ID `db:"product_id" json:"productId"`

	// AdjustedQuantity is signed: positive for increase documents, negative
	// for decrease documents. Never zero.
	AdjustedQuantity types.Quantity `db:"adjusted_quantity" json:"adjustedQuantity"`

	CurrentQuantitySnapshot types.Quantity `db:"current_quantity_snapshot" json:"currentQuantitySnapshot"`
	UnitCostSnapshot        types.Money    `db:"unit_cost_snapshot" json:"unitCostSnapshot"`
}

// ProjectedQuantity returns the quantity the approver would land on.
func (l *AdjustmentLine) ProjectedQuantity() types.Quantity {
	return l.CurrentQuantitySnapshot + l.AdjustedQuantity
}

// Validate implements entity.Validatable.
func (a *StockAdjustment) Validate(ctx context.Context) error {
	if err := a.Document.Validate(ctx); err != nil {
		return err
	}
	if !a.Type.Valid() {
		return apperror.NewValidation("unknown adjustment type: " + string(a.Type))
	}
	if !a.Reason.Valid() {
		return apperror.NewValidation("unknown adjustment reason: " + string(a.Reason))
	}
	if len(a.Lines) == 0 {
		return apperror.NewValidation("adjustment requires at least one line")
	}
	for i, line := range a.Lines {
		if id.IsNil(line.ProductID) {
			return apperror.NewValidation("line product is required").
				WithDetail("line", i)
		}
		if line.AdjustedQuantity.IsZero() {
			return apperror.NewValidation("line quantity must be non-zero").
				WithDetail("line", i)
		}
		if a.Type == TypeIncrease && !line.AdjustedQuantity.IsPositive() {
			return apperror.NewValidation("increase line must carry a positive quantity").
				WithDetail("line", i)
		}
		if a.Type == TypeDecrease && !line.AdjustedQuantity.IsNegative() {
			return apperror.NewValidation("decrease line must carry a negative quantity").
				WithDetail("line", i)
		}
	}
	return nil
}
