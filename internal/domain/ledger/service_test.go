package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
)

// fakeTxManager runs the function directly; repository fakes below are not
// transactional, so tests assert on returned errors rather than rollback.
type fakeTxManager struct{}

func (fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeRepo struct {
	positions map[positionKey]*StockPosition
	movements []*StockMovement
	saves     int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{positions: make(map[positionKey]*StockPosition)}
}

func (r *fakeRepo) seed(productID, storeID id.ID, qty types.Quantity, cost types.Money) {
	r.positions[positionKey{productID, storeID}] = &StockPosition{
		ProductID:      productID,
		StoreID:        storeID,
		QuantityOnHand: qty,
		AverageCost:    cost,
	}
}

func (r *fakeRepo) GetPosition(_ context.Context, productID, storeID id.ID) (*StockPosition, error) {
	if pos, ok := r.positions[positionKey{productID, storeID}]; ok {
		cp := *pos
		return &cp, nil
	}
	return &StockPosition{ProductID: productID, StoreID: storeID, AverageCost: types.ZeroMoney()}, nil
}

func (r *fakeRepo) GetPositionForUpdate(ctx context.Context, productID, storeID id.ID) (*StockPosition, error) {
	return r.GetPosition(ctx, productID, storeID)
}

func (r *fakeRepo) SavePosition(_ context.Context, pos *StockPosition) error {
	cp := *pos
	r.positions[positionKey{pos.ProductID, pos.StoreID}] = &cp
	r.saves++
	return nil
}

func (r *fakeRepo) SetMinimumThreshold(_ context.Context, productID, storeID id.ID, threshold types.Quantity) error {
	key := positionKey{productID, storeID}
	if pos, ok := r.positions[key]; ok {
		pos.MinimumThreshold = threshold
		return nil
	}
	r.positions[key] = &StockPosition{ProductID: productID, StoreID: storeID, MinimumThreshold: threshold}
	return nil
}

func (r *fakeRepo) InsertMovements(_ context.Context, movements []*StockMovement) error {
	r.movements = append(r.movements, movements...)
	return nil
}

func (r *fakeRepo) GetMovements(_ context.Context, _ MovementFilter) ([]*StockMovement, error) {
	return r.movements, nil
}

func (r *fakeRepo) GetMovementsByReference(_ context.Context, refType string, refID id.ID) ([]*StockMovement, error) {
	var out []*StockMovement
	for _, m := range r.movements {
		if m.ReferenceType == refType && m.ReferenceID == refID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeRepo) SumDeltas(_ context.Context, productID, storeID id.ID) (types.Quantity, error) {
	var sum types.Quantity
	for _, m := range r.movements {
		if m.ProductID == productID && m.StoreID == storeID {
			sum += m.Delta
		}
	}
	return sum, nil
}

func (r *fakeRepo) ListPositions(_ context.Context, filter PositionFilter) ([]*StockPosition, error) {
	var out []*StockPosition
	for _, pos := range r.positions {
		if !id.IsNil(filter.StoreID) && pos.StoreID != filter.StoreID {
			continue
		}
		if filter.BelowThreshold && !pos.BelowThreshold() {
			continue
		}
		cp := *pos
		out = append(out, &cp)
	}
	return out, nil
}

func newTestService(repo *fakeRepo) *Service {
	return NewService(repo, fakeTxManager{})
}

func TestApplyIncreaseCreatesPosition(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	productID, storeID := id.New(), id.New()
	mv, err := svc.Apply(context.Background(), Movement{
		ProductID:     productID,
		StoreID:       storeID,
		Delta:         types.NewQuantityFromInt(10),
		Kind:          KindAdjustmentIncrease,
		ReferenceType: "adjustment",
		ReferenceID:   id.New(),
		UnitCost:      types.MustMoney("12.50"),
	})
	require.NoError(t, err)

	assert.Equal(t, types.NewQuantityFromInt(0), mv.QuantityBefore)
	assert.Equal(t, types.NewQuantityFromInt(10), mv.QuantityAfter)
	assert.False(t, mv.OccurredAt.IsZero())

	pos, err := svc.GetPosition(context.Background(), productID, storeID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt(10), pos.QuantityOnHand)
	assert.True(t, pos.AverageCost.Equal(types.MustMoney("12.50")))
}

func TestApplyRejectsNegativeResult(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	productID, storeID := id.New(), id.New()
	repo.seed(productID, storeID, types.NewQuantityFromInt(3), types.MustMoney("5"))

	_, err := svc.Apply(context.Background(), Movement{
		ProductID:     productID,
		StoreID:       storeID,
		Delta:         types.NewQuantityFromInt(-5),
		Kind:          KindSale,
		ReferenceType: "sales_transaction",
		ReferenceID:   id.New(),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 5.0, appErr.Details["requested"])
	assert.Equal(t, 3.0, appErr.Details["available"])

	// Nothing recorded; the shortfall was detected before any write.
	assert.Empty(t, repo.movements)
	assert.Zero(t, repo.saves)
}

func TestApplyAllFailsWholeBatchOnShortfall(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	okProduct, shortProduct, storeID := id.New(), id.New(), id.New()
	repo.seed(okProduct, storeID, types.NewQuantityFromInt(100), types.MustMoney("1"))
	repo.seed(shortProduct, storeID, types.NewQuantityFromInt(1), types.MustMoney("1"))

	refID := id.New()
	_, err := svc.ApplyAll(context.Background(), []Movement{
		{
			ProductID: okProduct, StoreID: storeID,
			Delta: types.NewQuantityFromInt(-10),
			Kind:  KindAdjustmentDecrease, ReferenceType: "adjustment", ReferenceID: refID,
		},
		{
			ProductID: shortProduct, StoreID: storeID,
			Delta: types.NewQuantityFromInt(-2),
			Kind:  KindAdjustmentDecrease, ReferenceType: "adjustment", ReferenceID: refID,
		},
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))
	assert.Empty(t, repo.movements)
}

func TestApplyWeightedAverageCost(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	productID, storeID := id.New(), id.New()
	repo.seed(productID, storeID, types.NewQuantityFromInt(5), types.MustMoney("10"))

	// (5×10 + 5×20) / 10 = 15
	_, err := svc.Apply(context.Background(), Movement{
		ProductID:     productID,
		StoreID:       storeID,
		Delta:         types.NewQuantityFromInt(5),
		Kind:          KindAdjustmentIncrease,
		ReferenceType: "adjustment",
		ReferenceID:   id.New(),
		UnitCost:      types.MustMoney("20"),
	})
	require.NoError(t, err)

	pos, err := svc.GetPosition(context.Background(), productID, storeID)
	require.NoError(t, err)
	assert.True(t, pos.AverageCost.Equal(types.MustMoney("15")), "got %s", pos.AverageCost)
}

func TestApplyOutboundKeepsAverageCost(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	productID, storeID := id.New(), id.New()
	repo.seed(productID, storeID, types.NewQuantityFromInt(10), types.MustMoney("7.25"))

	_, err := svc.Apply(context.Background(), Movement{
		ProductID:     productID,
		StoreID:       storeID,
		Delta:         types.NewQuantityFromInt(-4),
		Kind:          KindSale,
		ReferenceType: "sales_transaction",
		ReferenceID:   id.New(),
	})
	require.NoError(t, err)

	pos, err := svc.GetPosition(context.Background(), productID, storeID)
	require.NoError(t, err)
	assert.True(t, pos.AverageCost.Equal(types.MustMoney("7.25")))
	assert.Equal(t, types.NewQuantityFromInt(6), pos.QuantityOnHand)
}

func TestApplyZeroCostInboundDilutesAverage(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	productID, storeID := id.New(), id.New()
	repo.seed(productID, storeID, types.NewQuantityFromInt(5), types.MustMoney("10"))

	// (5×10 + 5×0) / 10 = 5
	_, err := svc.Apply(context.Background(), Movement{
		ProductID:     productID,
		StoreID:       storeID,
		Delta:         types.NewQuantityFromInt(5),
		Kind:          KindAdjustmentIncrease,
		ReferenceType: "adjustment",
		ReferenceID:   id.New(),
		UnitCost:      types.ZeroMoney(),
	})
	require.NoError(t, err)

	pos, err := svc.GetPosition(context.Background(), productID, storeID)
	require.NoError(t, err)
	assert.True(t, pos.AverageCost.Equal(types.MustMoney("5")))
}

func TestApplyValidation(t *testing.T) {
	svc := newTestService(newFakeRepo())

	_, err := svc.Apply(context.Background(), Movement{
		ProductID:     id.New(),
		StoreID:       id.New(),
		Delta:         0,
		Kind:          KindSale,
		ReferenceType: "sales_transaction",
		ReferenceID:   id.New(),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	_, err = svc.Apply(context.Background(), Movement{
		ProductID:     id.New(),
		StoreID:       id.New(),
		Delta:         types.NewQuantityFromInt(1),
		Kind:          MovementKind("transfer"),
		ReferenceType: "adjustment",
		ReferenceID:   id.New(),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestApplyPreservesOccurredAt(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	occurred := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mv, err := svc.Apply(context.Background(), Movement{
		ProductID:     id.New(),
		StoreID:       id.New(),
		Delta:         types.NewQuantityFromInt(1),
		Kind:          KindReturnRestock,
		ReferenceType: "sales_return",
		ReferenceID:   id.New(),
		UnitCost:      types.MustMoney("2"),
		OccurredAt:    occurred,
	})
	require.NoError(t, err)
	assert.Equal(t, occurred, mv.OccurredAt)
}

func TestVerifyPosition(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	productID, storeID := id.New(), id.New()
	refID := id.New()
	for _, delta := range []int64{10, -3, 5} {
		kind := KindAdjustmentIncrease
		if delta < 0 {
			kind = KindAdjustmentDecrease
		}
		_, err := svc.Apply(context.Background(), Movement{
			ProductID:     productID,
			StoreID:       storeID,
			Delta:         types.NewQuantityFromInt(delta),
			Kind:          kind,
			ReferenceType: "adjustment",
			ReferenceID:   refID,
			UnitCost:      types.MustMoney("1"),
		})
		require.NoError(t, err)
	}

	ok, err := svc.VerifyPosition(context.Background(), productID, storeID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBelowThreshold(t *testing.T) {
	pos := StockPosition{
		QuantityOnHand:   types.NewQuantityFromInt(2),
		MinimumThreshold: types.NewQuantityFromInt(5),
	}
	assert.True(t, pos.BelowThreshold())

	pos.MinimumThreshold = 0
	assert.False(t, pos.BelowThreshold())
}
