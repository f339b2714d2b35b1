package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ice-inventory/internal/models"
)

// MemoryStore keeps the ledger and orders in process memory.
// Transactions are serialized; a failed transaction leaves no trace.
// Each transaction copies the stock and order maps, so a write costs
// O(items + orders). Movements are append-only and are not copied.
type MemoryStore struct {
	mu    sync.Mutex
	state memState
}

type memState struct {
	stock          map[int64]models.StockItem
	orders         map[int64]models.Order
	movements      []models.StockMovement
	nextStockID    int64
	nextOrderID    int64
	nextMovementID int64
}

func (s memState) clone() memState {
	c := s
	c.stock = make(map[int64]models.StockItem, len(s.stock))
	for k, v := range s.stock {
		c.stock[k] = v
	}
	c.orders = make(map[int64]models.Order, len(s.orders))
	for k, v := range s.orders {
		c.orders[k] = v
	}
	return c
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: memState{
			stock:  map[int64]models.StockItem{},
			orders: map[int64]models.Order{},
		},
	}
}

// WithTx runs fn against a private copy of the state and publishes the copy
// only when fn succeeds.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{state: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	tx.state.movements = append(s.state.movements, tx.added...)
	s.state = tx.state
	return nil
}

// GetStockItemByID retrieves a stock item by ID
func (s *MemoryStore) GetStockItemByID(_ context.Context, id int64) (*models.StockItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.state.stock[id]
	if !ok {
		return nil, fmt.Errorf("stock item %d: %w", id, ErrNotFound)
	}
	return &item, nil
}

// ListStockItems retrieves all stock items
func (s *MemoryStore) ListStockItems(_ context.Context) ([]models.StockItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]models.StockItem, 0, len(s.state.stock))
	for _, item := range s.state.stock {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

// ListMovements retrieves the most recent movements of a stock item
func (s *MemoryStore) ListMovements(_ context.Context, stockItemID int64, limit int) ([]models.StockMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.StockMovement{}
	for i := len(s.state.movements) - 1; i >= 0 && len(out) < limit; i-- {
		if s.state.movements[i].StockItemID == stockItemID {
			out = append(out, s.state.movements[i])
		}
	}
	return out, nil
}

// GetOrderByID retrieves an order by ID
func (s *MemoryStore) GetOrderByID(_ context.Context, id int64) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.state.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	return &order, nil
}

// GetOrderByIdempotencyKey retrieves an order by idempotency key
func (s *MemoryStore) GetOrderByIdempotencyKey(_ context.Context, key string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, order := range s.state.orders {
		if order.IdempotencyKey == key {
			o := order
			return &o, nil
		}
	}
	return nil, nil
}

// ListOrders retrieves orders matching filter, newest first
func (s *MemoryStore) ListOrders(_ context.Context, filter OrderFilter) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders := []models.Order{}
	for _, order := range s.state.orders {
		if filter.Status != nil && order.Status != *filter.Status {
			continue
		}
		if filter.Archived != nil && order.Archived != *filter.Archived {
			continue
		}
		if filter.Size != "" && order.Size != filter.Size {
			continue
		}
		orders = append(orders, order)
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID > orders[j].ID })
	return orders, nil
}

type memTx struct {
	state memState
	added []models.StockMovement
}

func (t *memTx) GetStockItemForUpdate(_ context.Context, id int64) (*models.StockItem, error) {
	item, ok := t.state.stock[id]
	if !ok {
		return nil, fmt.Errorf("stock item %d: %w", id, ErrNotFound)
	}
	return &item, nil
}

func (t *memTx) GetStockItemBySizeForUpdate(_ context.Context, size string) (*models.StockItem, error) {
	var found *models.StockItem
	for _, item := range t.state.stock {
		if item.Size != size {
			continue
		}
		if found == nil || item.ID < found.ID {
			it := item
			found = &it
		}
	}
	if found == nil {
		return nil, fmt.Errorf("stock item for size %q: %w", size, ErrNotFound)
	}
	return found, nil
}

func (t *memTx) StockSizeExists(_ context.Context, size string) (bool, error) {
	for _, item := range t.state.stock {
		if item.Size == size {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) InsertStockItem(ctx context.Context, item *models.StockItem) error {
	if exists, _ := t.StockSizeExists(ctx, item.Size); exists {
		return fmt.Errorf("stock item for size %q: %w", item.Size, ErrDuplicate)
	}
	t.state.nextStockID++
	now := time.Now()
	item.ID = t.state.nextStockID
	item.DateCreated = now
	item.UpdatedAt = now
	t.state.stock[item.ID] = *item
	return nil
}

func (t *memTx) UpdateStockItem(_ context.Context, item *models.StockItem) error {
	current, ok := t.state.stock[item.ID]
	if !ok {
		return fmt.Errorf("stock item %d: %w", item.ID, ErrNotFound)
	}
	current.Quantity = item.Quantity
	current.Price = item.Price
	current.Status = item.Status
	current.UpdatedAt = time.Now()
	item.UpdatedAt = current.UpdatedAt
	t.state.stock[item.ID] = current
	return nil
}

func (t *memTx) InsertMovement(_ context.Context, m *models.StockMovement) error {
	t.state.nextMovementID++
	m.ID = t.state.nextMovementID
	m.CreatedAt = time.Now()
	t.added = append(t.added, *m)
	return nil
}

func (t *memTx) InsertOrder(_ context.Context, order *models.Order) error {
	for _, existing := range t.state.orders {
		if existing.IdempotencyKey == order.IdempotencyKey {
			return fmt.Errorf("order with idempotency key %q: %w", order.IdempotencyKey, ErrDuplicate)
		}
	}
	t.state.nextOrderID++
	now := time.Now()
	order.ID = t.state.nextOrderID
	order.CreatedAt = now
	order.UpdatedAt = now
	t.state.orders[order.ID] = *order
	return nil
}

func (t *memTx) GetOrderForUpdate(_ context.Context, id int64) (*models.Order, error) {
	order, ok := t.state.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	return &order, nil
}

func (t *memTx) UpdateOrderStatus(_ context.Context, id int64, status models.OrderStatus) error {
	order, ok := t.state.orders[id]
	if !ok {
		return fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	order.Status = status
	order.UpdatedAt = time.Now()
	t.state.orders[id] = order
	return nil
}

func (t *memTx) SetOrderArchived(_ context.Context, id int64, archived bool) error {
	order, ok := t.state.orders[id]
	if !ok {
		return fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	order.Archived = archived
	order.UpdatedAt = time.Now()
	t.state.orders[id] = order
	return nil
}
