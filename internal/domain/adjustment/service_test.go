package adjustment_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockcore/internal/core/apperror"
	appctx "stockcore/internal/core/context"
	"stockcore/internal/core/id"
	"stockcore/internal/core/security"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/adjustment"
	"stockcore/internal/domain/audit"
	"stockcore/internal/domain/ledger"
	"stockcore/internal/domain/ledger/ledgertest"
)

type memRepo struct {
	docs map[id.ID]*adjustment.StockAdjustment
}

func newMemRepo() *memRepo {
	return &memRepo{docs: make(map[id.ID]*adjustment.StockAdjustment)}
}

func clone(adj *adjustment.StockAdjustment) *adjustment.StockAdjustment {
	cp := *adj
	cp.Lines = make([]*adjustment.AdjustmentLine, len(adj.Lines))
	for i, l := range adj.Lines {
		lc := *l
		cp.Lines[i] = &lc
	}
	return &cp
}

func (r *memRepo) Create(_ context.Context, adj *adjustment.StockAdjustment) error {
	r.docs[adj.ID] = clone(adj)
	return nil
}

func (r *memRepo) Update(_ context.Context, adj *adjustment.StockAdjustment) error {
	stored, ok := r.docs[adj.ID]
	if !ok {
		return apperror.NewNotFound("adjustment", adj.ID)
	}
	if stored.Version != adj.Version-1 {
		return apperror.NewConcurrentModification("adjustment", adj.ID)
	}
	r.docs[adj.ID] = clone(adj)
	return nil
}

func (r *memRepo) Delete(_ context.Context, adjustmentID id.ID) error {
	delete(r.docs, adjustmentID)
	return nil
}

func (r *memRepo) GetByID(_ context.Context, adjustmentID id.ID) (*adjustment.StockAdjustment, error) {
	if adj, ok := r.docs[adjustmentID]; ok {
		return clone(adj), nil
	}
	return nil, apperror.NewNotFound("adjustment", adjustmentID)
}

func (r *memRepo) GetByIDForUpdate(ctx context.Context, adjustmentID id.ID) (*adjustment.StockAdjustment, error) {
	return r.GetByID(ctx, adjustmentID)
}

func (r *memRepo) List(_ context.Context, _ adjustment.Filter) ([]*adjustment.StockAdjustment, error) {
	var out []*adjustment.StockAdjustment
	for _, adj := range r.docs {
		out = append(out, clone(adj))
	}
	return out, nil
}

type seqNumbers struct{ n int }

func (s *seqNumbers) Next(_ context.Context, documentType string) (string, error) {
	s.n++
	return fmt.Sprintf("ADJ-%06d", s.n), nil
}

type fixture struct {
	svc    *adjustment.Service
	repo   *memRepo
	stock  *ledgertest.MemoryRepo
	ledger *ledger.Service
}

func newFixture(policy security.ApprovalPolicy) *fixture {
	stock := ledgertest.NewMemoryRepo()
	ledgerSvc := ledger.NewService(stock, ledgertest.TxManager{})
	repo := newMemRepo()
	svc := adjustment.NewService(repo, ledgerSvc, ledgertest.TxManager{}, &seqNumbers{}, policy, audit.Nop{})
	return &fixture{svc: svc, repo: repo, stock: stock, ledger: ledgerSvc}
}

func createDraft(t *testing.T, f *fixture, storeID id.ID, typ adjustment.Type, lines []adjustment.LineInput) *adjustment.StockAdjustment {
	t.Helper()
	adj, err := f.svc.Create(context.Background(), adjustment.CreateRequest{
		StoreID: storeID,
		Type:    typ,
		Reason:  adjustment.ReasonRecount,
		Lines:   lines,
	}, "alice")
	require.NoError(t, err)
	return adj
}

func TestCreateNormalizesLineSigns(t *testing.T) {
	f := newFixture(security.AllowAll{})
	productID, storeID := id.New(), id.New()
	f.stock.Seed(productID, storeID, types.NewQuantityFromInt(10), types.MustMoney("4"))

	adj := createDraft(t, f, storeID, adjustment.TypeDecrease, []adjustment.LineInput{
		{ProductID: productID, Quantity: types.NewQuantityFromInt(3)},
	})

	require.Len(t, adj.Lines, 1)
	assert.Equal(t, adjustment.StatusDraft, adj.Status)
	assert.Equal(t, "ADJ-000001", adj.Number)
	assert.Equal(t, types.NewQuantityFromInt(-3), adj.Lines[0].AdjustedQuantity)
	assert.Equal(t, types.NewQuantityFromInt(10), adj.Lines[0].CurrentQuantitySnapshot)
	assert.True(t, adj.Lines[0].UnitCostSnapshot.Equal(types.MustMoney("4")))
	assert.Equal(t, types.NewQuantityFromInt(7), adj.Lines[0].ProjectedQuantity())
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	f := newFixture(security.AllowAll{})
	storeID := id.New()

	_, err := f.svc.Create(context.Background(), adjustment.CreateRequest{
		StoreID: storeID,
		Type:    adjustment.TypeIncrease,
		Reason:  adjustment.ReasonRecount,
	}, "alice")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	_, err = f.svc.Create(context.Background(), adjustment.CreateRequest{
		StoreID: storeID,
		Type:    adjustment.TypeIncrease,
		Reason:  adjustment.ReasonRecount,
		Lines:   []adjustment.LineInput{{ProductID: id.New(), Quantity: 0}},
	}, "alice")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestApproveIncreasePostsMovement(t *testing.T) {
	f := newFixture(security.AllowAll{})
	productID, storeID := id.New(), id.New()
	f.stock.Seed(productID, storeID, types.NewQuantityFromInt(10), types.MustMoney("2"))

	adj := createDraft(t, f, storeID, adjustment.TypeIncrease, []adjustment.LineInput{
		{ProductID: productID, Quantity: types.NewQuantityFromInt(5)},
	})

	approved, err := f.svc.Approve(context.Background(), adj.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, adjustment.StatusApproved, approved.Status)
	assert.Equal(t, "bob", approved.ApprovedBy)
	require.NotNil(t, approved.ApprovedAt)

	assert.Equal(t, types.NewQuantityFromInt(15), f.stock.Quantity(productID, storeID))

	movements, err := f.ledger.GetMovementsByReference(context.Background(), adjustment.DocumentType, adj.ID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, ledger.KindAdjustmentIncrease, movements[0].Kind)
	assert.Equal(t, types.NewQuantityFromInt(5), movements[0].Delta)
	assert.Equal(t, types.NewQuantityFromInt(10), movements[0].QuantityBefore)
	assert.Equal(t, types.NewQuantityFromInt(15), movements[0].QuantityAfter)
}

func TestApproveDecreaseBeyondStockFails(t *testing.T) {
	f := newFixture(security.AllowAll{})
	productID, storeID := id.New(), id.New()
	f.stock.Seed(productID, storeID, types.NewQuantityFromInt(10), types.MustMoney("2"))

	adj := createDraft(t, f, storeID, adjustment.TypeDecrease, []adjustment.LineInput{
		{ProductID: productID, Quantity: types.NewQuantityFromInt(15)},
	})

	_, err := f.svc.Approve(context.Background(), adj.ID, "bob")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))

	// Quantity untouched, no movements, document still draft.
	assert.Equal(t, types.NewQuantityFromInt(10), f.stock.Quantity(productID, storeID))
	assert.Empty(t, f.stock.Movements)

	reloaded, err := f.svc.GetByID(context.Background(), adj.ID)
	require.NoError(t, err)
	assert.Equal(t, adjustment.StatusDraft, reloaded.Status)
}

func TestApproveMultiLineIsAllOrNothing(t *testing.T) {
	f := newFixture(security.AllowAll{})
	okProduct, shortProduct, storeID := id.New(), id.New(), id.New()
	f.stock.Seed(okProduct, storeID, types.NewQuantityFromInt(100), types.MustMoney("1"))
	f.stock.Seed(shortProduct, storeID, types.NewQuantityFromInt(1), types.MustMoney("1"))

	adj := createDraft(t, f, storeID, adjustment.TypeDecrease, []adjustment.LineInput{
		{ProductID: okProduct, Quantity: types.NewQuantityFromInt(10)},
		{ProductID: shortProduct, Quantity: types.NewQuantityFromInt(2)},
	})

	_, err := f.svc.Approve(context.Background(), adj.ID, "bob")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))
	assert.Empty(t, f.stock.Movements)
}

func TestApproveTwiceReturnsInvalidState(t *testing.T) {
	f := newFixture(security.AllowAll{})
	productID, storeID := id.New(), id.New()
	f.stock.Seed(productID, storeID, types.NewQuantityFromInt(10), types.MustMoney("2"))

	adj := createDraft(t, f, storeID, adjustment.TypeIncrease, []adjustment.LineInput{
		{ProductID: productID, Quantity: types.NewQuantityFromInt(5)},
	})

	_, err := f.svc.Approve(context.Background(), adj.ID, "bob")
	require.NoError(t, err)

	_, err = f.svc.Approve(context.Background(), adj.ID, "bob")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidState))

	// No second movement.
	movements, err := f.ledger.GetMovementsByReference(context.Background(), adjustment.DocumentType, adj.ID)
	require.NoError(t, err)
	assert.Len(t, movements, 1)
	assert.Equal(t, types.NewQuantityFromInt(15), f.stock.Quantity(productID, storeID))
}

func TestRejectHasNoLedgerEffect(t *testing.T) {
	f := newFixture(security.AllowAll{})
	productID, storeID := id.New(), id.New()
	f.stock.Seed(productID, storeID, types.NewQuantityFromInt(10), types.MustMoney("2"))

	adj := createDraft(t, f, storeID, adjustment.TypeIncrease, []adjustment.LineInput{
		{ProductID: productID, Quantity: types.NewQuantityFromInt(5)},
	})

	rejected, err := f.svc.Reject(context.Background(), adj.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, adjustment.StatusRejected, rejected.Status)
	assert.Empty(t, f.stock.Movements)
	assert.Equal(t, types.NewQuantityFromInt(10), f.stock.Quantity(productID, storeID))

	// Terminal: neither approve nor a second reject is possible.
	_, err = f.svc.Approve(context.Background(), adj.ID, "bob")
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidState))
}

func TestEditAfterApprovalIsImmutable(t *testing.T) {
	f := newFixture(security.AllowAll{})
	productID, storeID := id.New(), id.New()
	f.stock.Seed(productID, storeID, types.NewQuantityFromInt(10), types.MustMoney("2"))

	adj := createDraft(t, f, storeID, adjustment.TypeIncrease, []adjustment.LineInput{
		{ProductID: productID, Quantity: types.NewQuantityFromInt(5)},
	})
	approved, err := f.svc.Approve(context.Background(), adj.ID, "bob")
	require.NoError(t, err)

	_, err = f.svc.Update(context.Background(), adjustment.UpdateRequest{
		ID:      approved.ID,
		Version: approved.Version,
		Reason:  adjustment.ReasonDamage,
		Lines:   []adjustment.LineInput{{ProductID: productID, Quantity: types.NewQuantityFromInt(1)}},
	}, "alice")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeImmutableState))

	err = f.svc.Delete(context.Background(), approved.ID, "alice")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeImmutableState))
}

func TestUpdateDetectsStaleVersion(t *testing.T) {
	f := newFixture(security.AllowAll{})
	productID, storeID := id.New(), id.New()
	f.stock.Seed(productID, storeID, types.NewQuantityFromInt(10), types.MustMoney("2"))

	adj := createDraft(t, f, storeID, adjustment.TypeIncrease, []adjustment.LineInput{
		{ProductID: productID, Quantity: types.NewQuantityFromInt(5)},
	})

	_, err := f.svc.Update(context.Background(), adjustment.UpdateRequest{
		ID:      adj.ID,
		Version: adj.Version + 7,
		Reason:  adjustment.ReasonDamage,
		Lines:   []adjustment.LineInput{{ProductID: productID, Quantity: types.NewQuantityFromInt(1)}},
	}, "alice")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeConcurrentModification))
}

func TestUpdateRefreshesSnapshots(t *testing.T) {
	f := newFixture(security.AllowAll{})
	productID, storeID := id.New(), id.New()
	f.stock.Seed(productID, storeID, types.NewQuantityFromInt(10), types.MustMoney("2"))

	adj := createDraft(t, f, storeID, adjustment.TypeDecrease, []adjustment.LineInput{
		{ProductID: productID, Quantity: types.NewQuantityFromInt(3)},
	})

	// Stock moved since the draft was created.
	f.stock.Seed(productID, storeID, types.NewQuantityFromInt(6), types.MustMoney("2"))

	updated, err := f.svc.Update(context.Background(), adjustment.UpdateRequest{
		ID:      adj.ID,
		Version: adj.Version,
		Reason:  adjustment.ReasonRecount,
		Lines:   []adjustment.LineInput{{ProductID: productID, Quantity: types.NewQuantityFromInt(3)}},
	}, "alice")
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromInt(6), updated.Lines[0].CurrentQuantitySnapshot)
}

func TestCreatorMayNotApproveUnderDefaultPolicy(t *testing.T) {
	f := newFixture(security.DefaultApprovalPolicy())
	productID, storeID := id.New(), id.New()
	f.stock.Seed(productID, storeID, types.NewQuantityFromInt(10), types.MustMoney("2"))

	adj := createDraft(t, f, storeID, adjustment.TypeIncrease, []adjustment.LineInput{
		{ProductID: productID, Quantity: types.NewQuantityFromInt(5)},
	})

	_, err := f.svc.Approve(context.Background(), adj.ID, "alice")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeForbidden))

	_, err = f.svc.Approve(context.Background(), adj.ID, "bob")
	require.NoError(t, err)
}

func TestApprovePolicySeesCallerPermissions(t *testing.T) {
	f := newFixture(security.MustCELPolicy(`'inventory.adjust.approve' in permissions`))
	productID, storeID := id.New(), id.New()
	f.stock.Seed(productID, storeID, types.NewQuantityFromInt(10), types.MustMoney("2"))

	adj := createDraft(t, f, storeID, adjustment.TypeIncrease, []adjustment.LineInput{
		{ProductID: productID, Quantity: types.NewQuantityFromInt(5)},
	})

	// No user in context: the policy evaluates against an empty permission set.
	_, err := f.svc.Approve(context.Background(), adj.ID, "bob")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeForbidden))

	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID:      "bob",
		Permissions: []string{"inventory.adjust.approve"},
	})
	_, err = f.svc.Approve(ctx, adj.ID, "bob")
	require.NoError(t, err)
}
