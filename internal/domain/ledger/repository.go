package ledger

import (
	"context"
	"time"

	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
)

// MovementFilter narrows movement history queries. Zero-value fields are
// ignored.
type MovementFilter struct {
	ProductID id.ID
	StoreID   id.ID
	Kind      MovementKind
	From      time.Time
	To        time.Time
	Limit     int
	Offset    int
}

// PositionFilter narrows position listings.
type PositionFilter struct {
	StoreID        id.ID
	ProductIDs     []id.ID
	BelowThreshold bool
	Limit          int
	Offset         int
}

// Repository is the persistence contract for positions and movements.
type Repository interface {
	// GetPosition returns the current position, or a zero-quantity position
	// for the given keys when no movement has ever touched it.
	GetPosition(ctx context.Context, productID, storeID id.ID) (*StockPosition, error)

	// GetPositionForUpdate acquires the per-(product, store) row lock that
	// serializes movement application. The position row is created with zero
	// quantity if it does not exist yet, so first movements lock like any
	// other. Must be called inside a transaction.
	GetPositionForUpdate(ctx context.Context, productID, storeID id.ID) (*StockPosition, error)

	// SavePosition writes the recomputed position. Must be called inside the
	// same transaction that holds the row lock.
	SavePosition(ctx context.Context, pos *StockPosition) error

	// SetMinimumThreshold updates the informational low-stock threshold.
	SetMinimumThreshold(ctx context.Context, productID, storeID id.ID, threshold types.Quantity) error

	// InsertMovements appends movements to the log. Implementations are free
	// to use bulk copy for multi-row inserts.
	InsertMovements(ctx context.Context, movements []*StockMovement) error

	// GetMovements returns movement history ordered by occurred_at descending.
	GetMovements(ctx context.Context, filter MovementFilter) ([]*StockMovement, error)

	// GetMovementsByReference returns every movement caused by one document.
	GetMovementsByReference(ctx context.Context, referenceType string, referenceID id.ID) ([]*StockMovement, error)

	// SumDeltas replays the log for one position. Used to verify that the
	// materialized quantity matches the movement history.
	SumDeltas(ctx context.Context, productID, storeID id.ID) (types.Quantity, error)

	// ListPositions returns current positions matching the filter.
	ListPositions(ctx context.Context, filter PositionFilter) ([]*StockPosition, error)
}
