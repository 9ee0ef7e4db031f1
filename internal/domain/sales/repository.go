package sales

import (
	"context"

	"stockcore/internal/core/id"
)

// Repository reads committed sales transactions.
type Repository interface {
	// GetTransaction returns the transaction with its lines.
	GetTransaction(ctx context.Context, transactionID id.ID) (*SalesTransaction, error)

	// GetTransactionForUpdate loads the transaction with its lines while
	// holding a row lock on the transaction header. The return workflow uses
	// this lock to serialize concurrent return creation against the same
	// sale. Must be called inside a transaction.
	GetTransactionForUpdate(ctx context.Context, transactionID id.ID) (*SalesTransaction, error)

	// GetLine returns a single sold line, or NOT_FOUND.
	GetLine(ctx context.Context, lineID id.ID) (*SalesLine, error)
}
