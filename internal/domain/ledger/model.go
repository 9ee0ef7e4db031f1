// Package ledger provides the authoritative stock ledger: per-(product, store)
// positions plus an append-only movement log. Everything else in the engine
// posts here; nothing else writes stock.
package ledger

import (
	"time"

	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
)

// MovementKind classifies the cause of a stock movement.
type MovementKind string

const (
	// KindSale records the stock effect of a committed sales transaction.
	KindSale MovementKind = "sale"
	// KindAdjustmentIncrease records an approved positive manual correction.
	KindAdjustmentIncrease MovementKind = "adjustment_increase"
	// KindAdjustmentDecrease records an approved negative manual correction.
	KindAdjustmentDecrease MovementKind = "adjustment_decrease"
	// KindReturnRestock records restocking of a non-defective returned item.
	KindReturnRestock MovementKind = "return_restock"
)

// Valid reports whether the kind is one of the known movement kinds.
func (k MovementKind) Valid() bool {
	switch k {
	case KindSale, KindAdjustmentIncrease, KindAdjustmentDecrease, KindReturnRestock:
		return true
	}
	return false
}

// StockPosition is the current quantity/cost record for one product at one store.
// Mutated exclusively by movement application; never written directly by
// handlers or report code.
type StockPosition struct {
	ProductID id.ID `db:"product_id" json:"productId"`
	StoreID   id.ID `db:"store_id" json:"storeId"`

	// QuantityOnHand never goes negative; ApplyMovement enforces it.
	QuantityOnHand types.Quantity `db:"quantity_on_hand" json:"quantityOnHand"`

	// AverageCost is maintained by movement-weighted average on inbound deltas.
	AverageCost types.Money `db:"average_cost" json:"averageCost"`

	// MinimumThreshold is informational only (low-stock reports); it never
	// gates approvals.
	MinimumThreshold types.Quantity `db:"minimum_threshold" json:"minimumThreshold"`

	LastMovementAt time.Time `db:"last_movement_at" json:"lastMovementAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// Value returns quantityOnHand × averageCost for valuation reports.
func (p StockPosition) Value() types.Money {
	return p.QuantityOnHand.Decimal().Mul(p.AverageCost)
}

// BelowThreshold reports whether the position is under its minimum threshold.
func (p StockPosition) BelowThreshold() bool {
	return p.MinimumThreshold.IsPositive() && p.QuantityOnHand < p.MinimumThreshold
}

// StockMovement is an immutable fact: one quantity change and its cause.
// Movements are append-only; they are never updated or deleted.
type StockMovement struct {
	ID        id.ID `db:"id" json:"id"`
	ProductID id.ID `db:"product_id" json:"productId"`
	StoreID   id.ID `db:"store_id" json:"storeId"`

	// Delta is signed; QuantityBefore + Delta == QuantityAfter always holds.
	Delta          types.Quantity `db:"delta" json:"delta"`
	QuantityBefore types.Quantity `db:"quantity_before" json:"quantityBefore"`
	QuantityAfter  types.Quantity `db:"quantity_after" json:"quantityAfter"`

	// UnitCost is the cost carried by inbound movements, used for the
	// weighted-average recomputation. Zero for outbound movements.
	UnitCost types.Money `db:"unit_cost" json:"unitCost"`

	Kind MovementKind `db:"kind" json:"kind"`

	// ReferenceType/ReferenceID point at the adjustment, return, or sales
	// transaction that caused this movement.
	ReferenceType string `db:"reference_type" json:"referenceType"`
	ReferenceID   id.ID  `db:"reference_id" json:"referenceId"`

	OccurredAt time.Time `db:"occurred_at" json:"occurredAt"`
}
