// Package ledgertest provides an in-memory ledger.Repository for workflow
// tests. Not safe for concurrent use; it fakes storage, not locking.
package ledgertest

import (
	"context"

	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/ledger"
)

type key struct {
	ProductID id.ID
	StoreID   id.ID
}

// MemoryRepo implements ledger.Repository on maps.
type MemoryRepo struct {
	Positions map[key]*ledger.StockPosition
	Movements []*ledger.StockMovement
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{Positions: make(map[key]*ledger.StockPosition)}
}

// Seed installs a position directly, bypassing movement application.
func (r *MemoryRepo) Seed(productID, storeID id.ID, qty types.Quantity, cost types.Money) {
	r.Positions[key{productID, storeID}] = &ledger.StockPosition{
		ProductID:      productID,
		StoreID:        storeID,
		QuantityOnHand: qty,
		AverageCost:    cost,
	}
}

// Quantity returns the current quantity for assertions.
func (r *MemoryRepo) Quantity(productID, storeID id.ID) types.Quantity {
	if pos, ok := r.Positions[key{productID, storeID}]; ok {
		return pos.QuantityOnHand
	}
	return 0
}

func (r *MemoryRepo) GetPosition(_ context.Context, productID, storeID id.ID) (*ledger.StockPosition, error) {
	if pos, ok := r.Positions[key{productID, storeID}]; ok {
		cp := *pos
		return &cp, nil
	}
	return &ledger.StockPosition{
		ProductID:   productID,
		StoreID:     storeID,
		AverageCost: types.ZeroMoney(),
	}, nil
}

func (r *MemoryRepo) GetPositionForUpdate(ctx context.Context, productID, storeID id.ID) (*ledger.StockPosition, error) {
	return r.GetPosition(ctx, productID, storeID)
}

func (r *MemoryRepo) SavePosition(_ context.Context, pos *ledger.StockPosition) error {
	cp := *pos
	r.Positions[key{pos.ProductID, pos.StoreID}] = &cp
	return nil
}

func (r *MemoryRepo) SetMinimumThreshold(_ context.Context, productID, storeID id.ID, threshold types.Quantity) error {
	k := key{productID, storeID}
	if pos, ok := r.Positions[k]; ok {
		pos.MinimumThreshold = threshold
		return nil
	}
	r.Positions[k] = &ledger.StockPosition{ProductID: productID, StoreID: storeID, MinimumThreshold: threshold}
	return nil
}

func (r *MemoryRepo) InsertMovements(_ context.Context, movements []*ledger.StockMovement) error {
	r.Movements = append(r.Movements, movements...)
	return nil
}

func (r *MemoryRepo) GetMovements(_ context.Context, filter ledger.MovementFilter) ([]*ledger.StockMovement, error) {
	var out []*ledger.StockMovement
	for _, m := range r.Movements {
		if !id.IsNil(filter.ProductID) && m.ProductID != filter.ProductID {
			continue
		}
		if !id.IsNil(filter.StoreID) && m.StoreID != filter.StoreID {
			continue
		}
		if filter.Kind != "" && m.Kind != filter.Kind {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *MemoryRepo) GetMovementsByReference(_ context.Context, refType string, refID id.ID) ([]*ledger.StockMovement, error) {
	var out []*ledger.StockMovement
	for _, m := range r.Movements {
		if m.ReferenceType == refType && m.ReferenceID == refID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *MemoryRepo) SumDeltas(_ context.Context, productID, storeID id.ID) (types.Quantity, error) {
	var sum types.Quantity
	for _, m := range r.Movements {
		if m.ProductID == productID && m.StoreID == storeID {
			sum += m.Delta
		}
	}
	return sum, nil
}

func (r *MemoryRepo) ListPositions(_ context.Context, filter ledger.PositionFilter) ([]*ledger.StockPosition, error) {
	var out []*ledger.StockPosition
	for _, pos := range r.Positions {
		if !id.IsNil(filter.StoreID) && pos.StoreID != filter.StoreID {
			continue
		}
		if filter.BelowThreshold && !pos.BelowThreshold() {
			continue
		}
		cp := *pos
		out = append(out, &cp)
	}
	return out, nil
}

// TxManager runs functions directly, with no transactional semantics.
type TxManager struct{}

func (TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
