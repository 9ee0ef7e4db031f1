package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockcore/internal/core/id"
	"stockcore/internal/domain/adjustment"
	"stockcore/internal/infrastructure/storage/postgres"
)

const (
	adjustmentsTable     = "doc_stock_adjustments"
	adjustmentLinesTable = "doc_stock_adjustment_lines"
)

var adjustmentLineCols = []string{
	"id", "adjustment_id", "product_id", "adjusted_quantity",
	"current_quantity_snapshot", "unit_cost_snapshot",
}

// AdjustmentRepo implements adjustment.Repository.
type AdjustmentRepo struct {
	*BaseDocumentRepo[*adjustment.StockAdjustment]
}

var _ adjustment.Repository = (*AdjustmentRepo)(nil)

// NewAdjustmentRepo creates a new stock adjustment repository.
func NewAdjustmentRepo(txm *postgres.TxManager) *AdjustmentRepo {
	return &AdjustmentRepo{
		BaseDocumentRepo: NewBaseDocumentRepo[*adjustment.StockAdjustment](
			txm,
			adjustmentsTable,
			postgres.ExtractDBColumns[adjustment.StockAdjustment](),
			func() *adjustment.StockAdjustment { return &adjustment.StockAdjustment{} },
		),
	}
}

func (r *AdjustmentRepo) Create(ctx context.Context, adj *adjustment.StockAdjustment) error {
	if err := r.CreateHeader(ctx, adj); err != nil {
		return err
	}
	return r.saveLines(ctx, adj.ID, adj.Lines)
}

func (r *AdjustmentRepo) Update(ctx context.Context, adj *adjustment.StockAdjustment) error {
	if err := r.UpdateHeader(ctx, adj); err != nil {
		return err
	}
	return r.saveLines(ctx, adj.ID, adj.Lines)
}

func (r *AdjustmentRepo) Delete(ctx context.Context, adjustmentID id.ID) error {
	querier := r.querier(ctx)
	deleteSQL := "DELETE FROM " + adjustmentLinesTable + " WHERE adjustment_id = $1"
	if _, err := querier.Exec(ctx, deleteSQL, adjustmentID); err != nil {
		return fmt.Errorf("delete lines: %w", err)
	}
	return r.DeleteHeader(ctx, adjustmentID)
}

func (r *AdjustmentRepo) GetByID(ctx context.Context, adjustmentID id.ID) (*adjustment.StockAdjustment, error) {
	adj, err := r.GetHeaderByID(ctx, adjustmentID)
	if err != nil {
		return nil, err
	}
	adj.Lines, err = r.getLines(ctx, adjustmentID)
	if err != nil {
		return nil, err
	}
	return adj, nil
}

func (r *AdjustmentRepo) GetByIDForUpdate(ctx context.Context, adjustmentID id.ID) (*adjustment.StockAdjustment, error) {
	adj, err := r.GetHeaderByIDForUpdate(ctx, adjustmentID)
	if err != nil {
		return nil, err
	}
	adj.Lines, err = r.getLines(ctx, adjustmentID)
	if err != nil {
		return nil, err
	}
	return adj, nil
}

func (r *AdjustmentRepo) List(ctx context.Context, filter adjustment.Filter) ([]*adjustment.StockAdjustment, error) {
	q := r.baseSelect().OrderBy("date DESC", "number DESC")

	if !id.IsNil(filter.StoreID) {
		q = q.Where(squirrel.Eq{"store_id": filter.StoreID})
	}
	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"status": filter.Status})
	}
	if filter.Type != "" {
		q = q.Where(squirrel.Eq{"type": filter.Type})
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

	var adjustments []*adjustment.StockAdjustment
	if err := r.selectHeaders(ctx, q, &adjustments); err != nil {
		return nil, err
	}
	return adjustments, nil
}

func (r *AdjustmentRepo) getLines(ctx context.Context, adjustmentID id.ID) ([]*adjustment.AdjustmentLine, error) {
	sql, args, err := r.Builder().
		Select(adjustmentLineCols...).
		From(adjustmentLinesTable).
		Where(squirrel.Eq{"adjustment_id": adjustmentID}).
		OrderBy("product_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []*adjustment.AdjustmentLine
	if err := pgxscan.Select(ctx, r.querier(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	return lines, nil
}

func (r *AdjustmentRepo) saveLines(ctx context.Context, adjustmentID id.ID, lines []*adjustment.AdjustmentLine) error {
	querier := r.querier(ctx)

	deleteSQL := "DELETE FROM " + adjustmentLinesTable + " WHERE adjustment_id = $1"
	if _, err := querier.Exec(ctx, deleteSQL, adjustmentID); err != nil {
		return fmt.Errorf("delete existing lines: %w", err)
	}

	if len(lines) == 0 {
		return nil
	}

	q := r.Builder().
		Insert(adjustmentLinesTable).
		Columns(adjustmentLineCols...)

	for _, line := range lines {
		q = q.Values(
			line.ID, adjustmentID, line.ProductID, line.AdjustedQuantity,
			line.CurrentQuantitySnapshot, line.UnitCostSnapshot,
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
