// Package reports exposes read-only views over the ledger for reporting
// screens. Reports never write.
package reports

import (
	"context"

	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/ledger"
)

// ValuationRow is one position with its computed value.
type ValuationRow struct {
	ProductID      id.ID          `json:"productId"`
	StoreID        id.ID          `json:"storeId"`
	QuantityOnHand types.Quantity `json:"quantityOnHand"`
	AverageCost    types.Money    `json:"averageCost"`
	Value          types.Money    `json:"value"`
}

// LowStockRow is one position under its minimum threshold.
type LowStockRow struct {
	ProductID        id.ID          `json:"productId"`
	StoreID          id.ID          `json:"storeId"`
	QuantityOnHand   types.Quantity `json:"quantityOnHand"`
	MinimumThreshold types.Quantity `json:"minimumThreshold"`
	Shortfall        types.Quantity `json:"shortfall"`
}

// Drift is a position whose materialized quantity disagrees with its
// movement log. An empty consistency report is the expected steady state.
type Drift struct {
	ProductID    id.ID          `json:"productId"`
	StoreID      id.ID          `json:"storeId"`
	Materialized types.Quantity `json:"materialized"`
	LogSum       types.Quantity `json:"logSum"`
}

// Service computes report views from ledger reads.
type Service struct {
	ledger *ledger.Service
}

func NewService(ledgerSvc *ledger.Service) *Service {
	return &Service{ledger: ledgerSvc}
}

// StockValuation returns positions with value = quantity × average cost.
func (s *Service) StockValuation(ctx context.Context, filter ledger.PositionFilter) ([]*ValuationRow, error) {
	positions, err := s.ledger.ListPositions(ctx, filter)
	if err != nil {
		return nil, err
	}
	rows := make([]*ValuationRow, 0, len(positions))
	for _, pos := range positions {
		rows = append(rows, &ValuationRow{
			ProductID:      pos.ProductID,
			StoreID:        pos.StoreID,
			QuantityOnHand: pos.QuantityOnHand,
			AverageCost:    pos.AverageCost,
			Value:          pos.Value(),
		})
	}
	return rows, nil
}

// LowStock returns positions under their informational threshold. Thresholds
// never gate approvals; this list is the only place they surface.
func (s *Service) LowStock(ctx context.Context, storeID id.ID) ([]*LowStockRow, error) {
	positions, err := s.ledger.ListPositions(ctx, ledger.PositionFilter{
		StoreID:        storeID,
		BelowThreshold: true,
	})
	if err != nil {
		return nil, err
	}
	rows := make([]*LowStockRow, 0, len(positions))
	for _, pos := range positions {
		rows = append(rows, &LowStockRow{
			ProductID:        pos.ProductID,
			StoreID:          pos.StoreID,
			QuantityOnHand:   pos.QuantityOnHand,
			MinimumThreshold: pos.MinimumThreshold,
			Shortfall:        pos.MinimumThreshold - pos.QuantityOnHand,
		})
	}
	return rows, nil
}

// MovementHistory returns the movement log for audit tables, newest first.
func (s *Service) MovementHistory(ctx context.Context, filter ledger.MovementFilter) ([]*ledger.StockMovement, error) {
	return s.ledger.GetMovements(ctx, filter)
}

// Consistency replays the movement log for every position in the store and
// reports any drift from the materialized quantity.
func (s *Service) Consistency(ctx context.Context, storeID id.ID) ([]*Drift, error) {
	positions, err := s.ledger.ListPositions(ctx, ledger.PositionFilter{StoreID: storeID})
	if err != nil {
		return nil, err
	}
	var drifts []*Drift
	for _, pos := range positions {
		ok, err := s.ledger.VerifyPosition(ctx, pos.ProductID, pos.StoreID)
		if err != nil {
			return nil, err
		}
		if ok {
			continue
		}
		sum, err := s.ledger.SumDeltas(ctx, pos.ProductID, pos.StoreID)
		if err != nil {
			return nil, err
		}
		drifts = append(drifts, &Drift{
			ProductID:    pos.ProductID,
			StoreID:      pos.StoreID,
			Materialized: pos.QuantityOnHand,
			LogSum:       sum,
		})
	}
	return drifts, nil
}
