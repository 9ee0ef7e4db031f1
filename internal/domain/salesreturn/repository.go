package salesreturn

import (
	"context"
	"time"

	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
)

// Filter narrows return listings. Zero-value fields are ignored.
type Filter struct {
	StoreID            id.ID
	SalesTransactionID id.ID
	Status             Status
	DateFrom           time.Time
	DateTo             time.Time
	Limit              int
	Offset             int
}

// Repository is the persistence contract for sales returns.
type Repository interface {
	// Create inserts the document and its lines.
	Create(ctx context.Context, ret *SalesReturn) error

	// Update persists header and lines. Fails with CONCURRENT_MODIFICATION
	// when the stored version differs from ret's version.
	Update(ctx context.Context, ret *SalesReturn) error

	// GetByID returns the document with lines, or NOT_FOUND.
	GetByID(ctx context.Context, returnID id.ID) (*SalesReturn, error)

	// GetByIDForUpdate loads the document with lines while holding a row lock
	// on the header. Must be called inside a transaction.
	GetByIDForUpdate(ctx context.Context, returnID id.ID) (*SalesReturn, error)

	// FindOpenReturn returns the pending return against the transaction, or
	// nil when none is open.
	FindOpenReturn(ctx context.Context, salesTransactionID id.ID) (*SalesReturn, error)

	// SumActiveQuantities returns, per sales line, the total quantity
	// reserved or consumed by pending and approved returns against the
	// transaction. excludeReturnID omits one return's own lines (used when
	// re-validating an edit); pass id.Nil() to exclude nothing.
	SumActiveQuantities(ctx context.Context, salesTransactionID, excludeReturnID id.ID) (map[id.ID]types.Quantity, error)

	// List returns documents (without lines) matching the filter, newest first.
	List(ctx context.Context, filter Filter) ([]*SalesReturn, error)
}
