package adjustment

import (
	"context"
	"time"

	"stockcore/internal/core/id"
)

// Filter narrows adjustment listings. Zero-value fields are ignored.
type Filter struct {
	StoreID  id.ID
	Status   Status
	Type     Type
	DateFrom time.Time
	DateTo   time.Time
	Limit    int
	Offset   int
}

// Repository is the persistence contract for adjustments.
type Repository interface {
	// Create inserts the document and its lines.
	Create(ctx context.Context, adj *StockAdjustment) error

	// Update persists header and lines. Fails with CONCURRENT_MODIFICATION
	// when the stored version differs from adj's version.
	Update(ctx context.Context, adj *StockAdjustment) error

	// Delete removes the document and its lines.
	Delete(ctx context.Context, adjustmentID id.ID) error

	// GetByID returns the document with lines, or NOT_FOUND.
	GetByID(ctx context.Context, adjustmentID id.ID) (*StockAdjustment, error)

	// GetByIDForUpdate loads the document with lines while holding a row lock
	// on the header, serializing concurrent approve/reject/edit calls. Must
	// be called inside a transaction.
	GetByIDForUpdate(ctx context.Context, adjustmentID id.ID) (*StockAdjustment, error)

	// List returns documents (without lines) matching the filter, newest first.
	List(ctx context.Context, filter Filter) ([]*StockAdjustment, error)
}
