package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderCreated       = "ORDER_CREATED"
	EventTypeOrderStatusChanged = "ORDER_STATUS_CHANGED"
	EventTypeStockChanged       = "STOCK_CHANGED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when an order is accepted
type OrderCreatedEvent struct {
	BaseEvent
	OrderID       int64        `json:"order_id"`
	Size          string       `json:"size"`
	Quantity      int          `json:"quantity"`
	DeliveryMode  DeliveryMode `json:"delivery_mode"`
	StockDeducted bool         `json:"stock_deducted"`
}

// OrderStatusChangedEvent published after a committed status transition
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID   int64       `json:"order_id"`
	Size      string      `json:"size"`
	Quantity  int         `json:"quantity"`
	OldStatus OrderStatus `json:"old_status"`
	NewStatus OrderStatus `json:"new_status"`
}

// StockChangedEvent published after every committed ledger mutation.
// Version is the id of the movement that produced this state.
type StockChangedEvent struct {
	BaseEvent
	StockItemID int64           `json:"stock_item_id"`
	Size        string          `json:"size"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Status      StockStatus     `json:"status"`
	Reason      MovementReason  `json:"reason"`
	Version     int64           `json:"version"`
}

// Availability is the cached per-size view of the ledger
type Availability struct {
	Size     string          `json:"size"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Status   StockStatus     `json:"status"`
	Version  int64           `json:"version"`
}
