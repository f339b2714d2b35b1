package service

import (
	"context"
	"errors"
	"testing"

	"ice-inventory/internal/models"
	"ice-inventory/internal/redisclient"
	"ice-inventory/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAvailability struct {
	entries []models.Availability
	err     error
}

func (s *stubAvailability) ListAvailability(context.Context) ([]models.Availability, error) {
	return s.entries, s.err
}

func TestAdjustStockAddFromEmpty(t *testing.T) {
	f := newFixture(t, oversell)
	item := f.addStock(t, "large", 0, "45.00")
	assert.Equal(t, models.StockStatusOutOfStock, item.Status)

	got, err := f.stock.AdjustStock(context.Background(), item.ID, &AdjustStockRequest{
		Operation: StockOperationAdd,
		Quantity:  intPtr(4),
		Price:     decPtr("50.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, 4, got.Quantity)
	assert.Equal(t, models.StockStatusCritical, got.Status)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("50")))
}

func TestAdjustStockSubtractBeyondStockChangesNothing(t *testing.T) {
	f := newFixture(t, oversell)
	ctx := context.Background()
	item := f.addStock(t, "small", 5, "25.00")

	_, err := f.stock.AdjustStock(ctx, item.ID, &AdjustStockRequest{
		Operation: StockOperationSubtract,
		Quantity:  intPtr(6),
		Price:     decPtr("99.00"),
	})
	var ise *InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, 6, ise.Required)
	assert.Equal(t, 5, ise.Available)

	got, err := f.stock.GetStockItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Quantity)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("25")))

	movements, err := f.stock.ListMovements(ctx, item.ID, 10)
	require.NoError(t, err)
	assert.Len(t, movements, 1)
}

func TestAdjustStockSubtractToZero(t *testing.T) {
	f := newFixture(t, oversell)
	item := f.addStock(t, "small", 12, "25.00")

	got, err := f.stock.AdjustStock(context.Background(), item.ID, &AdjustStockRequest{
		Operation: StockOperationSubtract,
		Quantity:  intPtr(12),
		Price:     decPtr("25.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quantity)
	assert.Equal(t, models.StockStatusOutOfStock, got.Status)
}

func TestAdjustStockPriceOnly(t *testing.T) {
	f := newFixture(t, oversell)
	ctx := context.Background()
	item := f.addStock(t, "small", 12, "25.00")

	got, err := f.stock.AdjustStock(ctx, item.ID, &AdjustStockRequest{
		Operation: StockOperationAdd,
		Price:     decPtr("30.50"),
	})
	require.NoError(t, err)
	assert.Equal(t, 12, got.Quantity)
	assert.Equal(t, "30.5", got.Price.String())

	movements, err := f.stock.ListMovements(ctx, item.ID, 0)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, models.ReasonPriceChange, movements[0].Reason)
	assert.Equal(t, 0, movements[0].Delta)
}

func TestAdjustStockValidation(t *testing.T) {
	f := newFixture(t, oversell)
	item := f.addStock(t, "small", 12, "25.00")

	tests := []struct {
		name  string
		req   AdjustStockRequest
		field string
	}{
		{"unknown operation", AdjustStockRequest{Operation: "multiply", Quantity: intPtr(1), Price: decPtr("1")}, "operation"},
		{"zero quantity", AdjustStockRequest{Operation: StockOperationAdd, Quantity: intPtr(0), Price: decPtr("1")}, "quantity"},
		{"negative price", AdjustStockRequest{Operation: StockOperationAdd, Quantity: intPtr(1), Price: decPtr("-1")}, "price"},
		{"missing price", AdjustStockRequest{Operation: StockOperationAdd, Quantity: intPtr(1)}, "price"},
		{"quantity too large", AdjustStockRequest{Operation: StockOperationAdd, Quantity: intPtr(models.MaxQuantity + 1), Price: decPtr("1")}, "quantity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := f.stock.AdjustStock(context.Background(), item.ID, &req)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
	assert.Equal(t, 12, f.quantity(t, item.ID))
}

func TestAdjustStockRejectsOverflow(t *testing.T) {
	f := newFixture(t, oversell)
	item := f.addStock(t, "small", 10, "25.00")

	_, err := f.stock.AdjustStock(context.Background(), item.ID, &AdjustStockRequest{
		Operation: StockOperationAdd,
		Quantity:  intPtr(models.MaxQuantity - 5),
		Price:     decPtr("25.00"),
	})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "quantity", ve.Field)
	assert.Equal(t, 10, f.quantity(t, item.ID))
}

func TestAvailabilityFallsBackWhenCacheIncomplete(t *testing.T) {
	f := newFixture(t, oversell)
	f.addStock(t, "small", 12, "25.00")
	f.addStock(t, "large", 31, "40.00")
	cache := &stubAvailability{err: redisclient.ErrIncompleteAvailability}
	svc := NewStockService(f.store, NewLedger(), f.publisher, cache)

	got, err := svc.Availability(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "small", got[0].Size)
	assert.Equal(t, "large", got[1].Size)
}

func TestAdjustStockUnknownItem(t *testing.T) {
	f := newFixture(t, oversell)
	_, err := f.stock.AdjustStock(context.Background(), 42, &AdjustStockRequest{
		Operation: StockOperationAdd,
		Quantity:  intPtr(1),
		Price:     decPtr("1"),
	})
	assert.ErrorIs(t, err, ErrStockItemNotFound)
}

func TestCreateStockItemRejectsDuplicateSize(t *testing.T) {
	f := newFixture(t, oversell)
	f.addStock(t, "small", 1, "25.00")

	q := 3
	_, err := f.stock.CreateStockItem(context.Background(), &CreateStockItemRequest{
		ProductName: "Crushed Ice",
		Size:        " SMALL",
		Price:       decPtr("10"),
		Quantity:    &q,
	})
	var dup *DuplicateSizeError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "small", dup.Size)
}

func TestCreateStockItemValidation(t *testing.T) {
	f := newFixture(t, oversell)

	tests := []struct {
		name  string
		req   CreateStockItemRequest
		field string
	}{
		{"missing product", CreateStockItemRequest{Size: "s", Price: decPtr("1"), Quantity: intPtr(1)}, "product_name"},
		{"missing size", CreateStockItemRequest{ProductName: "p", Price: decPtr("1"), Quantity: intPtr(1)}, "size"},
		{"negative price", CreateStockItemRequest{ProductName: "p", Size: "s", Price: decPtr("-0.01"), Quantity: intPtr(1)}, "price"},
		{"negative quantity", CreateStockItemRequest{ProductName: "p", Size: "s", Price: decPtr("1"), Quantity: intPtr(-1)}, "quantity"},
		{"missing quantity", CreateStockItemRequest{ProductName: "p", Size: "s", Price: decPtr("1")}, "quantity"},
		{"quantity too large", CreateStockItemRequest{ProductName: "p", Size: "s", Price: decPtr("1"), Quantity: intPtr(models.MaxQuantity + 1)}, "quantity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := f.stock.CreateStockItem(context.Background(), &req)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestStockStatusAtThresholdBoundaries(t *testing.T) {
	f := newFixture(t, oversell)
	assert.Equal(t, models.StockStatusCritical, f.addStock(t, "a", 10, "1").Status)
	assert.Equal(t, models.StockStatusAvailable, f.addStock(t, "b", 11, "1").Status)
	assert.Equal(t, models.StockStatusCritical, f.addStock(t, "c", 1, "1").Status)
	assert.Equal(t, models.StockStatusOutOfStock, f.addStock(t, "d", 0, "1").Status)
}

func TestListMovementsUnknownItem(t *testing.T) {
	f := newFixture(t, oversell)
	_, err := f.stock.ListMovements(context.Background(), 7, 10)
	assert.ErrorIs(t, err, ErrStockItemNotFound)
}

func TestAvailabilityPrefersCache(t *testing.T) {
	f := newFixture(t, oversell)
	f.addStock(t, "small", 12, "25.00")
	cache := &stubAvailability{entries: []models.Availability{{Size: "small", Quantity: 11, Version: 9}}}
	svc := NewStockService(f.store, NewLedger(), f.publisher, cache)

	got, err := svc.Availability(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(9), got[0].Version)
}

func TestAvailabilityFallsBackToLedger(t *testing.T) {
	f := newFixture(t, oversell)
	f.addStock(t, "small", 12, "25.00")
	f.addStock(t, "large", 0, "40.00")

	for _, cache := range []*stubAvailability{{}, {err: errors.New("redis down")}} {
		svc := NewStockService(f.store, NewLedger(), f.publisher, cache)
		got, err := svc.Availability(context.Background())
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "small", got[0].Size)
		assert.Equal(t, 12, got[0].Quantity)
		assert.Equal(t, models.StockStatusOutOfStock, got[1].Status)
	}
}

func TestLedgerMutateBySizePicksLowestID(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	ledger := NewLedger()

	var change *StockChange
	err := st.WithTx(ctx, func(tx store.Tx) error {
		first := &models.StockItem{ProductName: "Tube Ice", Size: "small", Quantity: 5}
		if _, err := ledger.Create(ctx, tx, first); err != nil {
			return err
		}
		var err error
		change, err = ledger.MutateBySize(ctx, tx, "small", Mutation{Delta: -2, Reason: models.ReasonManualSubtract})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), change.Item.ID)
	assert.Equal(t, 3, change.Item.Quantity)
	assert.Equal(t, 3, change.Movement.QuantityAfter)
	assert.Equal(t, models.StockStatusCritical, change.Movement.StatusAfter)

	event := change.Event()
	assert.Equal(t, models.EventTypeStockChanged, event.EventType)
	assert.Equal(t, change.Movement.ID, event.Version)
	assert.NotEmpty(t, event.EventID)
}

func TestLedgerRejectionRollsBack(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	ledger := NewLedger()

	err := st.WithTx(ctx, func(tx store.Tx) error {
		_, err := ledger.Create(ctx, tx, &models.StockItem{ProductName: "Tube Ice", Size: "small", Quantity: 1})
		return err
	})
	require.NoError(t, err)

	err = st.WithTx(ctx, func(tx store.Tx) error {
		if _, err := ledger.MutateByID(ctx, tx, 1, Mutation{Delta: 1, Reason: models.ReasonManualAdd}); err != nil {
			return err
		}
		_, err := ledger.MutateByID(ctx, tx, 1, Mutation{Delta: -5, Reason: models.ReasonManualSubtract})
		return err
	})
	var ise *InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, 2, ise.Available)

	item, err := st.GetStockItemByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, item.Quantity)
}
