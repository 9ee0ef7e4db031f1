package reports_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/ledger"
	"stockcore/internal/domain/ledger/ledgertest"
	"stockcore/internal/domain/reports"
)

func TestStockValuation(t *testing.T) {
	stock := ledgertest.NewMemoryRepo()
	ledgerSvc := ledger.NewService(stock, ledgertest.TxManager{})
	svc := reports.NewService(ledgerSvc)

	productID, storeID := id.New(), id.New()
	stock.Seed(productID, storeID, types.NewQuantityFromInt(4), types.MustMoney("2.50"))

	rows, err := svc.StockValuation(context.Background(), ledger.PositionFilter{StoreID: storeID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Value.Equal(types.MustMoney("10")))
}

func TestLowStock(t *testing.T) {
	stock := ledgertest.NewMemoryRepo()
	ledgerSvc := ledger.NewService(stock, ledgertest.TxManager{})
	svc := reports.NewService(ledgerSvc)

	storeID := id.New()
	lowProduct, okProduct := id.New(), id.New()
	stock.Seed(lowProduct, storeID, types.NewQuantityFromInt(2), types.MustMoney("1"))
	stock.Seed(okProduct, storeID, types.NewQuantityFromInt(50), types.MustMoney("1"))
	require.NoError(t, ledgerSvc.SetMinimumThreshold(context.Background(), lowProduct, storeID, types.NewQuantityFromInt(5)))
	require.NoError(t, ledgerSvc.SetMinimumThreshold(context.Background(), okProduct, storeID, types.NewQuantityFromInt(5)))

	rows, err := svc.LowStock(context.Background(), storeID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, lowProduct, rows[0].ProductID)
	assert.Equal(t, types.NewQuantityFromInt(3), rows[0].Shortfall)
}

func TestConsistencyDetectsDrift(t *testing.T) {
	stock := ledgertest.NewMemoryRepo()
	ledgerSvc := ledger.NewService(stock, ledgertest.TxManager{})
	svc := reports.NewService(ledgerSvc)

	productID, storeID := id.New(), id.New()
	_, err := ledgerSvc.Apply(context.Background(), ledger.Movement{
		ProductID:     productID,
		StoreID:       storeID,
		Delta:         types.NewQuantityFromInt(8),
		Kind:          ledger.KindAdjustmentIncrease,
		ReferenceType: "adjustment",
		ReferenceID:   id.New(),
		UnitCost:      types.MustMoney("1"),
	})
	require.NoError(t, err)

	drifts, err := svc.Consistency(context.Background(), storeID)
	require.NoError(t, err)
	assert.Empty(t, drifts)

	// Corrupt the materialized quantity behind the ledger's back.
	stock.Seed(productID, storeID, types.NewQuantityFromInt(99), types.MustMoney("1"))

	drifts, err = svc.Consistency(context.Background(), storeID)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, types.NewQuantityFromInt(99), drifts[0].Materialized)
	assert.Equal(t, types.NewQuantityFromInt(8), drifts[0].LogSum)
}
