package salesreturn

import (
	"context"

	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/sales"
)

// Tracker answers the one derived question the return workflow depends on:
// how much of a sold line is still returnable. The sum counts pending and
// approved returns; rejected returns release their reservation.
//
// Eligibility reads are only authoritative inside the same transaction that
// holds the sales transaction row lock. Callers outside the workflow (UI
// rendering "max returnable" hints) get a best-effort snapshot.
type Tracker struct {
	sales   sales.Repository
	returns Repository
}

func NewTracker(salesRepo sales.Repository, returnRepo Repository) *Tracker {
	return &Tracker{sales: salesRepo, returns: returnRepo}
}

// EligibleQuantity returns quantitySold minus all active returned quantity
// for one sold line.
func (t *Tracker) EligibleQuantity(ctx context.Context, salesLineID id.ID) (types.Quantity, error) {
	line, err := t.sales.GetLine(ctx, salesLineID)
	if err != nil {
		return 0, err
	}
	returned, err := t.returns.SumActiveQuantities(ctx, line.SalesTransactionID, id.Nil())
	if err != nil {
		return 0, err
	}
	return remaining(line.Quantity, returned[line.ID]), nil
}

// EligibleQuantities returns the remaining returnable quantity for every line
// of a loaded transaction, excluding one return's own reservation when
// excludeReturnID is set.
func (t *Tracker) EligibleQuantities(ctx context.Context, txn *sales.SalesTransaction, excludeReturnID id.ID) (map[id.ID]types.Quantity, error) {
	returned, err := t.returns.SumActiveQuantities(ctx, txn.ID, excludeReturnID)
	if err != nil {
		return nil, err
	}
	eligible := make(map[id.ID]types.Quantity, len(txn.Lines))
	for _, line := range txn.Lines {
		eligible[line.ID] = remaining(line.Quantity, returned[line.ID])
	}
	return eligible, nil
}

// TransactionHasOpenReturn reports whether the transaction has a pending
// return, and which one.
func (t *Tracker) TransactionHasOpenReturn(ctx context.Context, salesTransactionID id.ID) (bool, *SalesReturn, error) {
	open, err := t.returns.FindOpenReturn(ctx, salesTransactionID)
	if err != nil {
		return false, nil, err
	}
	return open != nil, open, nil
}

// remaining clamps at zero; historical data may over-count if imported from
// a system without this engine's invariant.
func remaining(sold, returned types.Quantity) types.Quantity {
	left := sold - returned
	if left.IsNegative() {
		return 0
	}
	return left
}
