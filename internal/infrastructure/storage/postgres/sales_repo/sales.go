// Package sales_repo provides the PostgreSQL implementation of the sales
// transaction reader. The engine never writes these tables; the sales
// subsystem owns them.
package sales_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/domain/sales"
	"stockcore/internal/infrastructure/storage/postgres"
)

const (
	salesTransactionsTable = "sales_transactions"
	salesLinesTable        = "sales_lines"
)

var (
	transactionCols = []string{"id", "number", "store_id", "sold_at"}
	lineCols        = []string{"id", "sales_transaction_id", "product_id", "quantity", "unit_price_net"}
)

// SalesRepo implements sales.Repository.
type SalesRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var _ sales.Repository = (*SalesRepo)(nil)

// NewSalesRepo creates a new sales transaction repository.
func NewSalesRepo(txm *postgres.TxManager) *SalesRepo {
	return &SalesRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *SalesRepo) GetTransaction(ctx context.Context, transactionID id.ID) (*sales.SalesTransaction, error) {
	return r.getTransaction(ctx, transactionID, false)
}

// GetTransactionForUpdate locks the transaction header row. The return
// workflow relies on this lock to serialize concurrent return creation
// against the same sale.
func (r *SalesRepo) GetTransactionForUpdate(ctx context.Context, transactionID id.ID) (*sales.SalesTransaction, error) {
	if r.txm.GetTx(ctx) == nil {
		return nil, fmt.Errorf("GetTransactionForUpdate requires transaction context")
	}
	return r.getTransaction(ctx, transactionID, true)
}

func (r *SalesRepo) GetLine(ctx context.Context, lineID id.ID) (*sales.SalesLine, error) {
	sql, args, err := r.builder.
		Select(lineCols...).
		From(salesLinesTable).
		Where(squirrel.Eq{"id": lineID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var line sales.SalesLine
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &line, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(salesLinesTable, lineID.String())
		}
		return nil, fmt.Errorf("get sales line: %w", err)
	}
	return &line, nil
}

func (r *SalesRepo) getTransaction(ctx context.Context, transactionID id.ID, forUpdate bool) (*sales.SalesTransaction, error) {
	q := r.builder.
		Select(transactionCols...).
		From(salesTransactionsTable).
		Where(squirrel.Eq{"id": transactionID})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	var txn sales.SalesTransaction
	if err := pgxscan.Get(ctx, querier, &txn, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(salesTransactionsTable, transactionID.String())
		}
		return nil, fmt.Errorf("get sales transaction: %w", err)
	}

	linesSQL, linesArgs, err := r.builder.
		Select(lineCols...).
		From(salesLinesTable).
		Where(squirrel.Eq{"sales_transaction_id": transactionID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lines query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &txn.Lines, linesSQL, linesArgs...); err != nil {
		return nil, fmt.Errorf("get sales lines: %w", err)
	}
	return &txn, nil
}
