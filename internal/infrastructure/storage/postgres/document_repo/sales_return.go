package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/salesreturn"
	"stockcore/internal/infrastructure/storage/postgres"
)

const (
	salesReturnsTable     = "doc_sales_returns"
	salesReturnLinesTable = "doc_sales_return_lines"
)

var salesReturnLineCols = []string{
	"id", "return_id", "sales_line_id", "product_id",
	"quantity", "condition", "unit_price_net", "refund_amount",
}

// SalesReturnRepo implements salesreturn.Repository.
type SalesReturnRepo struct {
	*BaseDocumentRepo[*salesreturn.SalesReturn]
}

var _ salesreturn.Repository = (*SalesReturnRepo)(nil)

// NewSalesReturnRepo creates a new sales return repository.
func NewSalesReturnRepo(txm *postgres.TxManager) *SalesReturnRepo {
	return &SalesReturnRepo{
		BaseDocumentRepo: NewBaseDocumentRepo[*salesreturn.SalesReturn](
			txm,
			salesReturnsTable,
			postgres.ExtractDBColumns[salesreturn.SalesReturn](),
			func() *salesreturn.SalesReturn { return &salesreturn.SalesReturn{} },
		),
	}
}

func (r *SalesReturnRepo) Create(ctx context.Context, ret *salesreturn.SalesReturn) error {
	if err := r.CreateHeader(ctx, ret); err != nil {
		return err
	}
	return r.saveLines(ctx, ret.ID, ret.Lines)
}

func (r *SalesReturnRepo) Update(ctx context.Context, ret *salesreturn.SalesReturn) error {
	if err := r.UpdateHeader(ctx, ret); err != nil {
		return err
	}
	return r.saveLines(ctx, ret.ID, ret.Lines)
}

func (r *SalesReturnRepo) GetByID(ctx context.Context, returnID id.ID) (*salesreturn.SalesReturn, error) {
	ret, err := r.GetHeaderByID(ctx, returnID)
	if err != nil {
		return nil, err
	}
	ret.Lines, err = r.getLines(ctx, returnID)
	if err != nil {
		return nil, err
	}
	return ret, nil
}

func (r *SalesReturnRepo) GetByIDForUpdate(ctx context.Context, returnID id.ID) (*salesreturn.SalesReturn, error) {
	ret, err := r.GetHeaderByIDForUpdate(ctx, returnID)
	if err != nil {
		return nil, err
	}
	ret.Lines, err = r.getLines(ctx, returnID)
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// FindOpenReturn looks for a pending return against the transaction. Callers
// hold the sales transaction row lock, so the result cannot change underneath
// them.
func (r *SalesReturnRepo) FindOpenReturn(ctx context.Context, salesTransactionID id.ID) (*salesreturn.SalesReturn, error) {
	sql, args, err := r.baseSelect().
		Where(squirrel.Eq{
			"sales_transaction_id": salesTransactionID,
			"status":               salesreturn.StatusPending,
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var ret salesreturn.SalesReturn
	if err := pgxscan.Get(ctx, r.querier(ctx), &ret, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find open return: %w", err)
	}

	ret.Lines, err = r.getLines(ctx, ret.ID)
	if err != nil {
		return nil, err
	}
	return &ret, nil
}

func (r *SalesReturnRepo) SumActiveQuantities(ctx context.Context, salesTransactionID, excludeReturnID id.ID) (map[id.ID]types.Quantity, error) {
	q := r.Builder().
		Select("l.sales_line_id", "COALESCE(SUM(l.quantity), 0) AS total").
		From(salesReturnLinesTable + " l").
		Join(salesReturnsTable + " h ON h.id = l.return_id").
		Where(squirrel.Eq{"h.sales_transaction_id": salesTransactionID}).
		Where(squirrel.Eq{"h.status": []salesreturn.Status{
			salesreturn.StatusPending, salesreturn.StatusApproved,
		}}).
		GroupBy("l.sales_line_id")

	if !id.IsNil(excludeReturnID) {
		q = q.Where(squirrel.NotEq{"h.id": excludeReturnID})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	type row struct {
		SalesLineID id.ID          `db:"sales_line_id"`
		Total       types.Quantity `db:"total"`
	}
	var rows []row
	if err := pgxscan.Select(ctx, r.querier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("sum active quantities: %w", err)
	}

	sums := make(map[id.ID]types.Quantity, len(rows))
	for _, rw := range rows {
		sums[rw.SalesLineID] = rw.Total
	}
	return sums, nil
}

func (r *SalesReturnRepo) List(ctx context.Context, filter salesreturn.Filter) ([]*salesreturn.SalesReturn, error) {
	q := r.baseSelect().OrderBy("date DESC", "number DESC")

	if !id.IsNil(filter.StoreID) {
		q = q.Where(squirrel.Eq{"store_id": filter.StoreID})
	}
	if !id.IsNil(filter.SalesTransactionID) {
		q = q.Where(squirrel.Eq{"sales_transaction_id": filter.SalesTransactionID})
	}
	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"status": filter.Status})
	}
	if !filter.DateFrom.IsZero() {
		q = q.Where(squirrel.GtOrEq{"date": filter.DateFrom})
	}
	if !filter.DateTo.IsZero() {
		q = q.Where(squirrel.LtOrEq{"date": filter.DateTo})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	var returns []*salesreturn.SalesReturn
	if err := r.selectHeaders(ctx, q, &returns); err != nil {
		return nil, err
	}
	return returns, nil
}

func (r *SalesReturnRepo) getLines(ctx context.Context, returnID id.ID) ([]*salesreturn.ReturnLine, error) {
	sql, args, err := r.Builder().
		Select(salesReturnLineCols...).
		From(salesReturnLinesTable).
		Where(squirrel.Eq{"return_id": returnID}).
		OrderBy("sales_line_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []*salesreturn.ReturnLine
	if err := pgxscan.Select(ctx, r.querier(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	return lines, nil
}

func (r *SalesReturnRepo) saveLines(ctx context.Context, returnID id.ID, lines []*salesreturn.ReturnLine) error {
	querier := r.querier(ctx)

	deleteSQL := "DELETE FROM " + salesReturnLinesTable + " WHERE return_id = $1"
	if _, err := querier.Exec(ctx, deleteSQL, returnID); err != nil {
		return fmt.Errorf("delete existing lines: %w", err)
	}

	if len(lines) == 0 {
		return nil
	}

	q := r.Builder().
		Insert(salesReturnLinesTable).
		Columns(salesReturnLineCols...)

	for _, line := range lines {
		q = q.Values(
			line.ID, returnID, line.SalesLineID, line.ProductID,
			line.Quantity, line.Condition, line.UnitPriceNet, line.RefundAmount,
		)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert lines: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert lines: %w", err)
	}
	return nil
}
