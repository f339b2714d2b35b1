package service

import (
	"context"
	"time"

	"ice-inventory/internal/models"
	"ice-inventory/internal/store"
)

// Store is the persistence the services need. Implemented by *store.Store
// and *store.MemoryStore.
type Store interface {
	WithTx(ctx context.Context, fn func(store.Tx) error) error

	GetStockItemByID(ctx context.Context, id int64) (*models.StockItem, error)
	ListStockItems(ctx context.Context) ([]models.StockItem, error)
	ListMovements(ctx context.Context, stockItemID int64, limit int) ([]models.StockMovement, error)

	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	ListOrders(ctx context.Context, filter store.OrderFilter) ([]models.Order, error)
}

// EventPublisher emits committed changes to the message bus
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
	PublishStockChanged(ctx context.Context, event *models.StockChangedEvent) error
}

// Locker guards idempotent order submission across instances.
// AcquireLock returns an empty token when the lock is held elsewhere.
type Locker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (string, error)
	ReleaseLock(ctx context.Context, lockKey, token string) error
}

// AvailabilityReader serves the cached per-size ledger view
type AvailabilityReader interface {
	ListAvailability(ctx context.Context) ([]models.Availability, error)
}
