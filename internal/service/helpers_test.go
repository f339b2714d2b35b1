package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"ice-inventory/internal/models"
	"ice-inventory/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *mockPublisher) PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *mockPublisher) PublishStockChanged(ctx context.Context, event *models.StockChangedEvent) error {
	return m.Called(ctx, event).Error(0)
}

// newMockPublisher accepts every event
func newMockPublisher() *mockPublisher {
	p := &mockPublisher{}
	p.On("PublishOrderCreated", mock.Anything, mock.Anything).Return(nil).Maybe()
	p.On("PublishOrderStatusChanged", mock.Anything, mock.Anything).Return(nil).Maybe()
	p.On("PublishStockChanged", mock.Anything, mock.Anything).Return(nil).Maybe()
	return p
}

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]string
	err      error
	calls    int
	released []string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: map[string]string{}}
}

func (l *fakeLocker) AcquireLock(_ context.Context, key string, _ time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.err != nil {
		return "", l.err
	}
	if _, ok := l.held[key]; ok {
		return "", nil
	}
	token := fmt.Sprintf("token-%d", l.calls)
	l.held[key] = token
	return token, nil
}

func (l *fakeLocker) ReleaseLock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	l.released = append(l.released, token)
	return nil
}

type fixture struct {
	store     *store.MemoryStore
	publisher *mockPublisher
	orders    *OrderService
	stock     *StockService
}

func newFixture(t *testing.T, cfg OrderServiceConfig) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	pub := newMockPublisher()
	ledger := NewLedger()
	return &fixture{
		store:     st,
		publisher: pub,
		orders:    NewOrderService(st, ledger, pub, nil, cfg),
		stock:     NewStockService(st, ledger, pub, nil),
	}
}

func (f *fixture) addStock(t *testing.T, size string, qty int, price string) *models.StockItem {
	t.Helper()
	p := decimal.RequireFromString(price)
	item, err := f.stock.CreateStockItem(context.Background(), &CreateStockItemRequest{
		ProductName: "Tube Ice",
		Size:        size,
		Price:       &p,
		Quantity:    &qty,
	})
	require.NoError(t, err)
	return item
}

func (f *fixture) placeOrder(t *testing.T, size string, qty int) *CreateOrderResponse {
	t.Helper()
	resp, err := f.orders.CreateOrder(context.Background(), &CreateOrderRequest{
		CustomerName: "Dela Cruz",
		Size:         size,
		Quantity:     qty,
		DeliveryMode: string(models.DeliveryModePickUp),
	})
	require.NoError(t, err)
	return resp
}

func (f *fixture) quantity(t *testing.T, id int64) int {
	t.Helper()
	item, err := f.store.GetStockItemByID(context.Background(), id)
	require.NoError(t, err)
	return item.Quantity
}

func intPtr(v int) *int { return &v }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
