// Package reconcile is the single entry point other subsystems use to read
// stock or request a mutation. All writes go through the two workflows; the
// only direct ledger path is sale posting, which has no approval step.
package reconcile

import (
	"context"
	"time"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/adjustment"
	"stockcore/internal/domain/ledger"
	"stockcore/internal/domain/salesreturn"
)

// Kind selects which workflow an approve/reject call targets.
type Kind string

const (
	KindAdjustment Kind = "adjustment"
	KindReturn     Kind = "sales_return"
)

// Decision summarizes a resolved approve/reject call.
type Decision struct {
	Kind        Kind      `json:"kind"`
	DocumentID  id.ID     `json:"documentId"`
	Number      string    `json:"number"`
	Status      string    `json:"status"`
	ProcessedBy string    `json:"processedBy"`
	ProcessedAt time.Time `json:"processedAt"`

	// RefundTotal is set for approved returns only.
	RefundTotal types.Money `json:"refundTotal,omitempty"`
}

// SaleLineInput is one sold line to post against the ledger.
type SaleLineInput struct {
	ProductID id.ID          `json:"productId"`
	Quantity  types.Quantity `json:"quantity"`
}

// SaleInput is the stock effect of one committed sales transaction.
type SaleInput struct {
	TransactionID id.ID           `json:"transactionId"`
	StoreID       id.ID           `json:"storeId"`
	SoldAt        time.Time       `json:"soldAt"`
	Lines         []SaleLineInput `json:"lines"`
}

// Facade coordinates the ledger and the two workflows.
type Facade struct {
	ledger      *ledger.Service
	adjustments *adjustment.Service
	returns     *salesreturn.Service
}

func NewFacade(ledgerSvc *ledger.Service, adjustments *adjustment.Service, returns *salesreturn.Service) *Facade {
	return &Facade{ledger: ledgerSvc, adjustments: adjustments, returns: returns}
}

// CurrentStock returns the latest committed position.
func (f *Facade) CurrentStock(ctx context.Context, productID, storeID id.ID) (*ledger.StockPosition, error) {
	return f.ledger.GetPosition(ctx, productID, storeID)
}

// RequestAdjustment creates a draft adjustment.
func (f *Facade) RequestAdjustment(ctx context.Context, req adjustment.CreateRequest, actorID string) (*adjustment.StockAdjustment, error) {
	return f.adjustments.Create(ctx, req, actorID)
}

// RequestReturn creates a pending return.
func (f *Facade) RequestReturn(ctx context.Context, req salesreturn.CreateRequest, actorID string) (*salesreturn.SalesReturn, error) {
	return f.returns.Create(ctx, req, actorID)
}

// Approve resolves a draft adjustment or pending return. The workflow posts
// any resulting movements atomically with the status transition.
func (f *Facade) Approve(ctx context.Context, kind Kind, documentID id.ID, actorID string) (*Decision, error) {
	switch kind {
	case KindAdjustment:
		adj, err := f.adjustments.Approve(ctx, documentID, actorID)
		if err != nil {
			return nil, err
		}
		return adjustmentDecision(adj), nil
	case KindReturn:
		ret, err := f.returns.Approve(ctx, documentID, actorID)
		if err != nil {
			return nil, err
		}
		return returnDecision(ret), nil
	default:
		return nil, apperror.NewValidation("unknown document kind: " + string(kind))
	}
}

// Reject resolves a draft adjustment or pending return with no ledger effect.
func (f *Facade) Reject(ctx context.Context, kind Kind, documentID id.ID, actorID string) (*Decision, error) {
	switch kind {
	case KindAdjustment:
		adj, err := f.adjustments.Reject(ctx, documentID, actorID)
		if err != nil {
			return nil, err
		}
		return adjustmentDecision(adj), nil
	case KindReturn:
		ret, err := f.returns.Reject(ctx, documentID, actorID)
		if err != nil {
			return nil, err
		}
		return returnDecision(ret), nil
	default:
		return nil, apperror.NewValidation("unknown document kind: " + string(kind))
	}
}

// RecordSale posts the outbound movements of a committed sale. Called by the
// sales subsystem once per transaction, after its own commit decision;
// failing with INSUFFICIENT_STOCK here means the sale oversold the position.
func (f *Facade) RecordSale(ctx context.Context, sale SaleInput) ([]*ledger.StockMovement, error) {
	if id.IsNil(sale.TransactionID) {
		return nil, apperror.NewValidation("sale transaction is required")
	}
	if len(sale.Lines) == 0 {
		return nil, apperror.NewValidation("sale requires at least one line")
	}

	movements := make([]ledger.Movement, 0, len(sale.Lines))
	for i, line := range sale.Lines {
		if !line.Quantity.IsPositive() {
			return nil, apperror.NewValidation("sale line quantity must be positive").
				WithDetail("line", i)
		}
		movements = append(movements, ledger.Movement{
			ProductID:     line.ProductID,
			StoreID:       sale.StoreID,
			Delta:         line.Quantity.Neg(),
			Kind:          ledger.KindSale,
			ReferenceType: "sales_transaction",
			ReferenceID:   sale.TransactionID,
			OccurredAt:    sale.SoldAt,
		})
	}
	return f.ledger.ApplyAll(ctx, movements)
}

// EligibleQuantity is a read-only eligibility hint for UI rendering. The
// authoritative check happens inside RequestReturn.
func (f *Facade) EligibleQuantity(ctx context.Context, salesLineID id.ID) (types.Quantity, error) {
	return f.returns.Eligibility().EligibleQuantity(ctx, salesLineID)
}

func adjustmentDecision(adj *adjustment.StockAdjustment) *Decision {
	d := &Decision{
		Kind:        KindAdjustment,
		DocumentID:  adj.ID,
		Number:      adj.Number,
		Status:      string(adj.Status),
		ProcessedBy: adj.ApprovedBy,
	}
	if adj.ApprovedAt != nil {
		d.ProcessedAt = *adj.ApprovedAt
	}
	return d
}

func returnDecision(ret *salesreturn.SalesReturn) *Decision {
	d := &Decision{
		Kind:        KindReturn,
		DocumentID:  ret.ID,
		Number:      ret.Number,
		Status:      string(ret.Status),
		ProcessedBy: ret.ProcessedBy,
		RefundTotal: ret.RefundTotal,
	}
	if ret.ProcessedAt != nil {
		d.ProcessedAt = *ret.ProcessedAt
	}
	return d
}
