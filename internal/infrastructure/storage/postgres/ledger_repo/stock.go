// Package ledger_repo provides the PostgreSQL implementation of the stock
// ledger repository: materialized positions plus the append-only movement log.
package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/ledger"
	"stockcore/internal/infrastructure/storage/postgres"
)

const (
	positionsTable = "stock_positions"
	movementsTable = "stock_movements"
)

var positionCols = []string{
	"product_id", "store_id", "quantity_on_hand", "average_cost",
	"minimum_threshold", "last_movement_at", "updated_at",
}

var movementCols = []string{
	"id", "product_id", "store_id", "delta", "quantity_before",
	"quantity_after", "unit_cost", "kind", "reference_type",
	"reference_id", "occurred_at",
}

// StockRepo implements ledger.Repository.
type StockRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var _ ledger.Repository = (*StockRepo)(nil)

// NewStockRepo creates a new stock ledger repository.
func NewStockRepo(txm *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetPosition returns the current position, or a zero-quantity position when
// no movement has ever touched the (product, store) pair.
func (r *StockRepo) GetPosition(ctx context.Context, productID, storeID id.ID) (*ledger.StockPosition, error) {
	sql, args, err := r.builder.
		Select(positionCols...).
		From(positionsTable).
		Where(squirrel.Eq{"product_id": productID, "store_id": storeID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var pos ledger.StockPosition
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &pos, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return &ledger.StockPosition{
				ProductID:   productID,
				StoreID:     storeID,
				AverageCost: types.ZeroMoney(),
			}, nil
		}
		return nil, fmt.Errorf("get position: %w", err)
	}
	return &pos, nil
}

// GetPositionForUpdate upserts the position row if missing, then locks it.
// The upsert makes first movements lock like any other. Must run inside a
// transaction.
func (r *StockRepo) GetPositionForUpdate(ctx context.Context, productID, storeID id.ID) (*ledger.StockPosition, error) {
	if r.txm.GetTx(ctx) == nil {
		return nil, fmt.Errorf("GetPositionForUpdate requires transaction context")
	}

	querier := r.txm.GetQuerier(ctx)

	insertSQL, insertArgs, err := r.builder.
		Insert(positionsTable).
		Columns("product_id", "store_id", "quantity_on_hand", "average_cost", "minimum_threshold", "last_movement_at", "updated_at").
		Values(productID, storeID, 0, types.ZeroMoney(), 0, squirrel.Expr("NOW()"), squirrel.Expr("NOW()")).
		Suffix("ON CONFLICT (product_id, store_id) DO NOTHING").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build upsert: %w", err)
	}
	if _, err := querier.Exec(ctx, insertSQL, insertArgs...); err != nil {
		return nil, fmt.Errorf("upsert position: %w", err)
	}

	sql, args, err := r.builder.
		Select(positionCols...).
		From(positionsTable).
		Where(squirrel.Eq{"product_id": productID, "store_id": storeID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var pos ledger.StockPosition
	if err := pgxscan.Get(ctx, querier, &pos, sql, args...); err != nil {
		return nil, fmt.Errorf("lock position: %w", err)
	}
	return &pos, nil
}

// SavePosition writes the recomputed position. The row exists because
// GetPositionForUpdate upserted it.
func (r *StockRepo) SavePosition(ctx context.Context, pos *ledger.StockPosition) error {
	sql, args, err := r.builder.
		Update(positionsTable).
		Set("quantity_on_hand", pos.QuantityOnHand).
		Set("average_cost", pos.AverageCost).
		Set("last_movement_at", pos.LastMovementAt).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"product_id": pos.ProductID, "store_id": pos.StoreID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("save position: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("position %s/%s not found", pos.ProductID, pos.StoreID)
	}
	return nil
}

// SetMinimumThreshold upserts the informational low-stock threshold.
func (r *StockRepo) SetMinimumThreshold(ctx context.Context, productID, storeID id.ID, threshold types.Quantity) error {
	sql, args, err := r.builder.
		Insert(positionsTable).
		Columns("product_id", "store_id", "quantity_on_hand", "average_cost", "minimum_threshold", "last_movement_at", "updated_at").
		Values(productID, storeID, 0, types.ZeroMoney(), threshold, squirrel.Expr("NOW()"), squirrel.Expr("NOW()")).
		Suffix("ON CONFLICT (product_id, store_id) DO UPDATE SET minimum_threshold = EXCLUDED.minimum_threshold, updated_at = NOW()").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("set threshold: %w", err)
	}
	return nil
}

// InsertMovements appends movements to the log. Uses COPY when inside a
// transaction, which is the normal path for workflow approvals.
func (r *StockRepo) InsertMovements(ctx context.Context, movements []*ledger.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}

	if tx := r.txm.GetTx(ctx); tx != nil {
		inserter := postgres.NewBatchInserter(r.txm)
		rows := make([][]any, 0, len(movements))
		for _, m := range movements {
			rows = append(rows, []any{
				m.ID, m.ProductID, m.StoreID, m.Delta, m.QuantityBefore,
				m.QuantityAfter, m.UnitCost, m.Kind, m.ReferenceType,
				m.ReferenceID, m.OccurredAt,
			})
		}
		if _, err := inserter.CopyFromSlice(ctx, movementsTable, movementCols, rows); err != nil {
			return fmt.Errorf("copy movements: %w", err)
		}
		return nil
	}

	q := r.builder.Insert(movementsTable).Columns(movementCols...)
	for _, m := range movements {
		q = q.Values(
			m.ID, m.ProductID, m.StoreID, m.Delta, m.QuantityBefore,
			m.QuantityAfter, m.UnitCost, m.Kind, m.ReferenceType,
			m.ReferenceID, m.OccurredAt,
		)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert movements: %w", err)
	}
	return nil
}

// GetMovements returns movement history ordered by occurred_at descending.
func (r *StockRepo) GetMovements(ctx context.Context, filter ledger.MovementFilter) ([]*ledger.StockMovement, error) {
	q := r.builder.
		Select(movementCols...).
		From(movementsTable).
		OrderBy("occurred_at DESC")

	if !id.IsNil(filter.ProductID) {
		q = q.Where(squirrel.Eq{"product_id": filter.ProductID})
	}
	if !id.IsNil(filter.StoreID) {
		q = q.Where(squirrel.Eq{"store_id": filter.StoreID})
	}
	if filter.Kind != "" {
		q = q.Where(squirrel.Eq{"kind": filter.Kind})
	}
	if !filter.From.IsZero() {
		q = q.Where(squirrel.GtOrEq{"occurred_at": filter.From})
	}
	if !filter.To.IsZero() {
		q = q.Where(squirrel.Lt{"occurred_at": filter.To})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []*ledger.StockMovement
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements: %w", err)
	}
	return movements, nil
}

// GetMovementsByReference returns every movement caused by one document.
func (r *StockRepo) GetMovementsByReference(ctx context.Context, referenceType string, referenceID id.ID) ([]*ledger.StockMovement, error) {
	sql, args, err := r.builder.
		Select(movementCols...).
		From(movementsTable).
		Where(squirrel.Eq{"reference_type": referenceType, "reference_id": referenceID}).
		OrderBy("occurred_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []*ledger.StockMovement
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("select movements by reference: %w", err)
	}
	return movements, nil
}

// SumDeltas replays the movement log for one position.
func (r *StockRepo) SumDeltas(ctx context.Context, productID, storeID id.ID) (types.Quantity, error) {
	sql, args, err := r.builder.
		Select("COALESCE(SUM(delta), 0)").
		From(movementsTable).
		Where(squirrel.Eq{"product_id": productID, "store_id": storeID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var sum types.Quantity
	row := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...)
	if err := row.Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum deltas: %w", err)
	}
	return sum, nil
}

// ListPositions returns current positions matching the filter.
func (r *StockRepo) ListPositions(ctx context.Context, filter ledger.PositionFilter) ([]*ledger.StockPosition, error) {
	q := r.builder.
		Select(positionCols...).
		From(positionsTable).
		OrderBy("product_id", "store_id")

	if !id.IsNil(filter.StoreID) {
		q = q.Where(squirrel.Eq{"store_id": filter.StoreID})
	}
	if len(filter.ProductIDs) > 0 {
		q = q.Where(squirrel.Eq{"product_id": filter.ProductIDs})
	}
	if filter.BelowThreshold {
		q = q.Where(squirrel.Expr("minimum_threshold > 0 AND quantity_on_hand < minimum_threshold"))
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var positions []*ledger.StockPosition
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &positions, sql, args...); err != nil {
		return nil, fmt.Errorf("select positions: %w", err)
	}
	return positions, nil
}
