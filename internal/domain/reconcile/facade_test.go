package reconcile_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockcore/internal/core/apperror"
	"stockcore/internal/core/id"
	"stockcore/internal/core/security"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/adjustment"
	"stockcore/internal/domain/audit"
	"stockcore/internal/domain/ledger"
	"stockcore/internal/domain/ledger/ledgertest"
	"stockcore/internal/domain/reconcile"
	"stockcore/internal/domain/sales"
	"stockcore/internal/domain/salesreturn"
)

// In-memory repos: enough storage behavior to drive both workflows through
// the facade.

type memAdjRepo struct {
	docs map[id.ID]*adjustment.StockAdjustment
}

func (r *memAdjRepo) Create(_ context.Context, adj *adjustment.StockAdjustment) error {
	r.docs[adj.ID] = adj
	return nil
}

func (r *memAdjRepo) Update(_ context.Context, adj *adjustment.StockAdjustment) error {
	r.docs[adj.ID] = adj
	return nil
}

func (r *memAdjRepo) Delete(_ context.Context, adjustmentID id.ID) error {
	delete(r.docs, adjustmentID)
	return nil
}

func (r *memAdjRepo) GetByID(_ context.Context, adjustmentID id.ID) (*adjustment.StockAdjustment, error) {
	if adj, ok := r.docs[adjustmentID]; ok {
		cp := *adj
		return &cp, nil
	}
	return nil, apperror.NewNotFound("adjustment", adjustmentID)
}

func (r *memAdjRepo) GetByIDForUpdate(ctx context.Context, adjustmentID id.ID) (*adjustment.StockAdjustment, error) {
	return r.GetByID(ctx, adjustmentID)
}

func (r *memAdjRepo) List(_ context.Context, _ adjustment.Filter) ([]*adjustment.StockAdjustment, error) {
	return nil, nil
}

type memReturnRepo struct {
	docs map[id.ID]*salesreturn.SalesReturn
}

func (r *memReturnRepo) Create(_ context.Context, ret *salesreturn.SalesReturn) error {
	r.docs[ret.ID] = ret
	return nil
}

func (r *memReturnRepo) Update(_ context.Context, ret *salesreturn.SalesReturn) error {
	r.docs[ret.ID] = ret
	return nil
}

func (r *memReturnRepo) GetByID(_ context.Context, returnID id.ID) (*salesreturn.SalesReturn, error) {
	if ret, ok := r.docs[returnID]; ok {
		cp := *ret
		return &cp, nil
	}
	return nil, apperror.NewNotFound("sales return", returnID)
}

func (r *memReturnRepo) GetByIDForUpdate(ctx context.Context, returnID id.ID) (*salesreturn.SalesReturn, error) {
	return r.GetByID(ctx, returnID)
}

func (r *memReturnRepo) FindOpenReturn(_ context.Context, salesTransactionID id.ID) (*salesreturn.SalesReturn, error) {
	for _, ret := range r.docs {
		if ret.SalesTransactionID == salesTransactionID && ret.Status == salesreturn.StatusPending {
			return ret, nil
		}
	}
	return nil, nil
}

func (r *memReturnRepo) SumActiveQuantities(_ context.Context, salesTransactionID, excludeReturnID id.ID) (map[id.ID]types.Quantity, error) {
	sums := make(map[id.ID]types.Quantity)
	for _, ret := range r.docs {
		if ret.SalesTransactionID != salesTransactionID || !ret.Status.Active() || ret.ID == excludeReturnID {
			continue
		}
		for _, line := range ret.Lines {
			sums[line.SalesLineID] += line.Quantity
		}
	}
	return sums, nil
}

func (r *memReturnRepo) List(_ context.Context, _ salesreturn.Filter) ([]*salesreturn.SalesReturn, error) {
	return nil, nil
}

type memSalesRepo struct {
	txns map[id.ID]*sales.SalesTransaction
}

func (r *memSalesRepo) GetTransaction(_ context.Context, transactionID id.ID) (*sales.SalesTransaction, error) {
	if txn, ok := r.txns[transactionID]; ok {
		return txn, nil
	}
	return nil, apperror.NewNotFound("sales transaction", transactionID)
}

func (r *memSalesRepo) GetTransactionForUpdate(ctx context.Context, transactionID id.ID) (*sales.SalesTransaction, error) {
	return r.GetTransaction(ctx, transactionID)
}

func (r *memSalesRepo) GetLine(_ context.Context, lineID id.ID) (*sales.SalesLine, error) {
	for _, txn := range r.txns {
		if line := txn.Line(lineID); line != nil {
			return line, nil
		}
	}
	return nil, apperror.NewNotFound("sales line", lineID)
}

type seqNumbers struct{ n int }

func (s *seqNumbers) Next(_ context.Context, documentType string) (string, error) {
	s.n++
	return fmt.Sprintf("%s-%06d", documentType, s.n), nil
}

type fixture struct {
	facade  *reconcile.Facade
	stock   *ledgertest.MemoryRepo
	salesR  *memSalesRepo
	storeID id.ID
}

func newFixture() *fixture {
	stock := ledgertest.NewMemoryRepo()
	txm := ledgertest.TxManager{}
	ledgerSvc := ledger.NewService(stock, txm)
	numbers := &seqNumbers{}
	policy := security.AllowAll{}

	adjSvc := adjustment.NewService(
		&memAdjRepo{docs: make(map[id.ID]*adjustment.StockAdjustment)},
		ledgerSvc, txm, numbers, policy, audit.Nop{},
	)

	salesRepo := &memSalesRepo{txns: make(map[id.ID]*sales.SalesTransaction)}
	returnRepo := &memReturnRepo{docs: make(map[id.ID]*salesreturn.SalesReturn)}
	tracker := salesreturn.NewTracker(salesRepo, returnRepo)
	retSvc := salesreturn.NewService(
		returnRepo, salesRepo, tracker, ledgerSvc, txm, numbers, policy, audit.Nop{},
	)

	return &fixture{
		facade:  reconcile.NewFacade(ledgerSvc, adjSvc, retSvc),
		stock:   stock,
		salesR:  salesRepo,
		storeID: id.New(),
	}
}

func TestRecordSaleDecrementsStock(t *testing.T) {
	f := newFixture()
	productID := id.New()
	f.stock.Seed(productID, f.storeID, types.NewQuantityFromInt(10), types.MustMoney("3"))

	movements, err := f.facade.RecordSale(context.Background(), reconcile.SaleInput{
		TransactionID: id.New(),
		StoreID:       f.storeID,
		SoldAt:        time.Now().UTC(),
		Lines: []reconcile.SaleLineInput{
			{ProductID: productID, Quantity: types.NewQuantityFromInt(4)},
		},
	})
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, ledger.KindSale, movements[0].Kind)
	assert.Equal(t, types.NewQuantityFromInt(-4), movements[0].Delta)
	assert.Equal(t, types.NewQuantityFromInt(6), f.stock.Quantity(productID, f.storeID))
}

func TestRecordSaleOversellFails(t *testing.T) {
	f := newFixture()
	productID := id.New()
	f.stock.Seed(productID, f.storeID, types.NewQuantityFromInt(2), types.MustMoney("3"))

	_, err := f.facade.RecordSale(context.Background(), reconcile.SaleInput{
		TransactionID: id.New(),
		StoreID:       f.storeID,
		Lines: []reconcile.SaleLineInput{
			{ProductID: productID, Quantity: types.NewQuantityFromInt(3)},
		},
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))
	assert.Equal(t, types.NewQuantityFromInt(2), f.stock.Quantity(productID, f.storeID))
}

func TestAdjustmentRoundTripThroughFacade(t *testing.T) {
	f := newFixture()
	productID := id.New()
	f.stock.Seed(productID, f.storeID, types.NewQuantityFromInt(10), types.MustMoney("3"))

	adj, err := f.facade.RequestAdjustment(context.Background(), adjustment.CreateRequest{
		StoreID: f.storeID,
		Type:    adjustment.TypeIncrease,
		Reason:  adjustment.ReasonFound,
		Lines: []adjustment.LineInput{
			{ProductID: productID, Quantity: types.NewQuantityFromInt(5)},
		},
	}, "alice")
	require.NoError(t, err)

	decision, err := f.facade.Approve(context.Background(), reconcile.KindAdjustment, adj.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, string(adjustment.StatusApproved), decision.Status)
	assert.Equal(t, "bob", decision.ProcessedBy)
	assert.Equal(t, types.NewQuantityFromInt(15), f.stock.Quantity(productID, f.storeID))

	pos, err := f.facade.CurrentStock(context.Background(), productID, f.storeID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt(15), pos.QuantityOnHand)
}

func TestReturnRoundTripThroughFacade(t *testing.T) {
	f := newFixture()
	productID := id.New()
	f.stock.Seed(productID, f.storeID, types.NewQuantityFromInt(5), types.MustMoney("3"))

	txn := &sales.SalesTransaction{ID: id.New(), Number: "S-1", StoreID: f.storeID, SoldAt: time.Now().UTC()}
	line := &sales.SalesLine{
		ID:                 id.New(),
		SalesTransactionID: txn.ID,
		ProductID:          productID,
		Quantity:           types.NewQuantityFromInt(3),
		UnitPriceNet:       types.MustMoney("20"),
	}
	txn.Lines = []*sales.SalesLine{line}
	f.salesR.txns[txn.ID] = txn

	ret, err := f.facade.RequestReturn(context.Background(), salesreturn.CreateRequest{
		SalesTransactionID: txn.ID,
		Reason:             salesreturn.ReasonUnwanted,
		Lines: []salesreturn.LineInput{
			{SalesLineID: line.ID, Quantity: types.NewQuantityFromInt(2), Condition: salesreturn.ConditionGood},
		},
	}, "alice")
	require.NoError(t, err)

	eligible, err := f.facade.EligibleQuantity(context.Background(), line.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt(1), eligible)

	decision, err := f.facade.Approve(context.Background(), reconcile.KindReturn, ret.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, string(salesreturn.StatusApproved), decision.Status)
	assert.True(t, decision.RefundTotal.Equal(types.MustMoney("40")))
	assert.Equal(t, types.NewQuantityFromInt(7), f.stock.Quantity(productID, f.storeID))
}

func TestRejectThroughFacade(t *testing.T) {
	f := newFixture()
	productID := id.New()
	f.stock.Seed(productID, f.storeID, types.NewQuantityFromInt(10), types.MustMoney("3"))

	adj, err := f.facade.RequestAdjustment(context.Background(), adjustment.CreateRequest{
		StoreID: f.storeID,
		Type:    adjustment.TypeDecrease,
		Reason:  adjustment.ReasonDamage,
		Lines: []adjustment.LineInput{
			{ProductID: productID, Quantity: types.NewQuantityFromInt(5)},
		},
	}, "alice")
	require.NoError(t, err)

	decision, err := f.facade.Reject(context.Background(), reconcile.KindAdjustment, adj.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, string(adjustment.StatusRejected), decision.Status)
	assert.Equal(t, types.NewQuantityFromInt(10), f.stock.Quantity(productID, f.storeID))
	assert.Empty(t, f.stock.Movements)
}

func TestApproveUnknownKind(t *testing.T) {
	f := newFixture()
	_, err := f.facade.Approve(context.Background(), reconcile.Kind("transfer"), id.New(), "bob")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}
