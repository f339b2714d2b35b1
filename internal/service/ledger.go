package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ice-inventory/internal/models"
	"ice-inventory/internal/store"
	"ice-inventory/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Mutation describes one change to a stock item
type Mutation struct {
	Delta   int
	Price   *decimal.Decimal // nil keeps the current price
	Reason  models.MovementReason
	OrderID *int64
}

// StockChange is the committed result of a mutation
type StockChange struct {
	Item     models.StockItem
	Movement models.StockMovement
}

// Ledger is the only writer of stock quantities. Every mutation locks the
// row, applies the delta, re-derives the status and appends a movement
// within the caller's transaction.
type Ledger struct{}

// NewLedger creates a new stock ledger
func NewLedger() *Ledger {
	return &Ledger{}
}

// Create inserts a new stock item with its derived status
func (l *Ledger) Create(ctx context.Context, tx store.Tx, item *models.StockItem) (*StockChange, error) {
	item.Status = models.DeriveStatus(item.Quantity)

	if err := tx.InsertStockItem(ctx, item); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, &DuplicateSizeError{Size: item.Size}
		}
		return nil, fmt.Errorf("failed to create stock item: %w", err)
	}

	movement := models.StockMovement{
		StockItemID:   item.ID,
		Delta:         item.Quantity,
		QuantityAfter: item.Quantity,
		StatusAfter:   item.Status,
		Reason:        models.ReasonStockCreated,
	}
	if err := tx.InsertMovement(ctx, &movement); err != nil {
		return nil, fmt.Errorf("failed to record stock movement: %w", err)
	}

	return &StockChange{Item: *item, Movement: movement}, nil
}

// MutateByID applies m to the stock item with the given id
func (l *Ledger) MutateByID(ctx context.Context, tx store.Tx, id int64, m Mutation) (*StockChange, error) {
	item, err := tx.GetStockItemForUpdate(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrStockItemNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return l.apply(ctx, tx, item, m)
}

// MutateBySize applies m to the first stock item carrying size.
// Orders reference stock by size only, so two products sharing a size
// would share one ledger row; stock item creation keeps sizes unique.
func (l *Ledger) MutateBySize(ctx context.Context, tx store.Tx, size string, m Mutation) (*StockChange, error) {
	item, err := tx.GetStockItemBySizeForUpdate(ctx, size)
	if errors.Is(err, store.ErrNotFound) {
		return nil, stockNotFoundForSize(size)
	}
	if err != nil {
		return nil, err
	}
	return l.apply(ctx, tx, item, m)
}

func (l *Ledger) apply(ctx context.Context, tx store.Tx, item *models.StockItem, m Mutation) (*StockChange, error) {
	start := time.Now()
	defer func() {
		util.StockMutationLatency.Observe(time.Since(start).Seconds())
	}()

	next := item.Quantity + m.Delta
	if next < 0 {
		return nil, &InsufficientStockError{Size: item.Size, Required: -m.Delta, Available: item.Quantity}
	}
	if next > models.MaxQuantity {
		return nil, invalid("quantity", "stock for size %s would exceed %d", item.Size, models.MaxQuantity)
	}

	item.Quantity = next
	if m.Price != nil {
		item.Price = *m.Price
	}
	item.Status = models.DeriveStatus(next)

	if err := tx.UpdateStockItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to update stock item: %w", err)
	}

	movement := models.StockMovement{
		StockItemID:   item.ID,
		OrderID:       m.OrderID,
		Delta:         m.Delta,
		QuantityAfter: item.Quantity,
		StatusAfter:   item.Status,
		Reason:        m.Reason,
	}
	if err := tx.InsertMovement(ctx, &movement); err != nil {
		return nil, fmt.Errorf("failed to record stock movement: %w", err)
	}

	return &StockChange{Item: *item, Movement: movement}, nil
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

// Event builds the StockChanged event for a committed change
func (c *StockChange) Event() *models.StockChangedEvent {
	return &models.StockChangedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeStockChanged),
		StockItemID: c.Item.ID,
		Size:        c.Item.Size,
		Quantity:    c.Item.Quantity,
		Price:       c.Item.Price,
		Status:      c.Item.Status,
		Reason:      c.Movement.Reason,
		Version:     c.Movement.ID,
	}
}
