package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// StockItem is one row of the per-size stock ledger
type StockItem struct {
	ID          int64           `db:"id" json:"id"`
	ProductName string          `db:"product_name" json:"product_name"`
	Size        string          `db:"size" json:"size"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Quantity    int             `db:"quantity" json:"quantity"`
	Status      StockStatus     `db:"status" json:"status"`
	DateCreated time.Time       `db:"date_created" json:"date_created"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// Order represents a customer order for one ice size
type Order struct {
	ID             int64        `db:"id" json:"id"`
	CustomerName   string       `db:"customer_name" json:"customer_name"`
	ContactNumber  string       `db:"contact_number" json:"contact_number"`
	Address        string       `db:"address" json:"address"`
	Size           string       `db:"size" json:"size"`
	Quantity       int          `db:"quantity" json:"quantity"`
	Status         OrderStatus  `db:"status" json:"status"`
	DeliveryMode   DeliveryMode `db:"delivery_mode" json:"delivery_mode"`
	Rider          string       `db:"rider" json:"rider,omitempty"`
	Archived       bool         `db:"archived" json:"archived"`
	IdempotencyKey string       `db:"idempotency_key" json:"idempotency_key,omitempty"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updated_at"`
}

// StockMovement records a single ledger mutation
type StockMovement struct {
	ID            int64          `db:"id" json:"id"`
	StockItemID   int64          `db:"stock_item_id" json:"stock_item_id"`
	OrderID       *int64         `db:"order_id" json:"order_id,omitempty"`
	Delta         int            `db:"delta" json:"delta"`
	QuantityAfter int            `db:"quantity_after" json:"quantity_after"`
	StatusAfter   StockStatus    `db:"status_after" json:"status_after"`
	Reason        MovementReason `db:"reason" json:"reason"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}

// OrderStatus is the fulfillment lifecycle of an order
type OrderStatus string

// Order statuses
const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusCompleted      OrderStatus = "completed"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// ParseOrderStatus validates a raw status value
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(strings.TrimSpace(s)); st {
	case OrderStatusPending, OrderStatusOutForDelivery, OrderStatusCompleted, OrderStatusCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("unknown order status %q", s)
	}
}

// IsCancelled reports whether the order no longer reserves stock
func (s OrderStatus) IsCancelled() bool {
	return s == OrderStatusCancelled
}

// DeliveryMode is how the order reaches the customer
type DeliveryMode string

// Delivery modes
const (
	DeliveryModePickUp  DeliveryMode = "pick_up"
	DeliveryModeDeliver DeliveryMode = "deliver"
)

// ParseDeliveryMode validates a raw delivery mode value
func ParseDeliveryMode(s string) (DeliveryMode, error) {
	switch m := DeliveryMode(strings.TrimSpace(s)); m {
	case DeliveryModePickUp, DeliveryModeDeliver:
		return m, nil
	default:
		return "", fmt.Errorf("unknown delivery mode %q", s)
	}
}

// MovementReason explains why the ledger changed
type MovementReason string

// Movement reasons
const (
	ReasonStockCreated     MovementReason = "stock_created"
	ReasonOrderCreated     MovementReason = "order_created"
	ReasonOrderCancelled   MovementReason = "order_cancelled"
	ReasonOrderReactivated MovementReason = "order_reactivated"
	ReasonManualAdd        MovementReason = "manual_add"
	ReasonManualSubtract   MovementReason = "manual_subtract"
	ReasonPriceChange      MovementReason = "price_change"
)

// NormalizeSize canonicalizes a size label. Sizes compare case-insensitively
// and ignore surrounding whitespace.
func NormalizeSize(size string) string {
	return strings.ToLower(strings.TrimSpace(size))
}
