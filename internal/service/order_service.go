package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ice-inventory/internal/models"
	"ice-inventory/internal/store"
	"ice-inventory/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// OrderServiceConfig holds the order policy knobs
type OrderServiceConfig struct {
	// AllowOversellOnCreate accepts orders whose size is missing from the
	// ledger or short on stock, skipping the deduction.
	AllowOversellOnCreate bool
	IdempotencyLockTTL    time.Duration
}

// OrderService drives the order lifecycle and its stock side effects
type OrderService struct {
	store          Store
	ledger         *Ledger
	eventPublisher EventPublisher
	locker         Locker
	cfg            OrderServiceConfig
	logger         *zap.Logger
}

// NewOrderService creates a new order service. locker may be nil.
func NewOrderService(
	store Store,
	ledger *Ledger,
	eventPublisher EventPublisher,
	locker Locker,
	cfg OrderServiceConfig,
) *OrderService {
	if cfg.IdempotencyLockTTL <= 0 {
		cfg.IdempotencyLockTTL = 10 * time.Second
	}
	return &OrderService{
		store:          store,
		ledger:         ledger,
		eventPublisher: eventPublisher,
		locker:         locker,
		cfg:            cfg,
		logger:         util.GetLogger(),
	}
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	CustomerName   string `json:"customer_name" binding:"required"`
	ContactNumber  string `json:"contact_number"`
	Address        string `json:"address"`
	Size           string `json:"size" binding:"required"`
	Quantity       int    `json:"quantity" binding:"required,min=1"`
	DeliveryMode   string `json:"delivery_mode" binding:"required"`
	Rider          string `json:"rider"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// CreateOrderResponse represents the response after creating an order
type CreateOrderResponse struct {
	Order         models.Order `json:"order"`
	StockDeducted bool         `json:"stock_deducted"`
	SkipReason    string       `json:"skip_reason,omitempty"`
	Duplicate     bool         `json:"duplicate,omitempty"`
}

func (r *CreateOrderRequest) toOrder() (*models.Order, error) {
	if strings.TrimSpace(r.CustomerName) == "" {
		return nil, invalid("customer_name", "is required")
	}
	size := models.NormalizeSize(r.Size)
	if size == "" {
		return nil, invalid("size", "is required")
	}
	if r.Quantity < 1 || r.Quantity > models.MaxQuantity {
		return nil, invalid("quantity", "must be between 1 and %d, got %d", models.MaxQuantity, r.Quantity)
	}
	mode, err := models.ParseDeliveryMode(r.DeliveryMode)
	if err != nil {
		return nil, invalid("delivery_mode", "%v", err)
	}
	rider := strings.TrimSpace(r.Rider)
	switch mode {
	case models.DeliveryModeDeliver:
		if rider == "" {
			return nil, invalid("rider", "is required for delivery orders")
		}
	case models.DeliveryModePickUp:
		// pick-up orders have no rider
		rider = ""
	}

	return &models.Order{
		CustomerName:  strings.TrimSpace(r.CustomerName),
		ContactNumber: strings.TrimSpace(r.ContactNumber),
		Address:       strings.TrimSpace(r.Address),
		Size:          size,
		Quantity:      r.Quantity,
		Status:        models.OrderStatusPending,
		DeliveryMode:  mode,
		Rider:         rider,
	}, nil
}

// CreateOrder persists a pending order and deducts its quantity from the
// matching stock item. A missing or short stock item does not block the
// order unless AllowOversellOnCreate is off.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer span.End()

	order, err := req.toOrder()
	if err != nil {
		util.OrdersRejectedTotal.WithLabelValues("invalid").Inc()
		return nil, util.FailSpan(span, err)
	}

	key := req.IdempotencyKey
	if key == "" {
		key = uuid.New().String()
	}
	order.IdempotencyKey = key

	if s.locker != nil {
		lockKey := "order:" + key
		token, err := s.locker.AcquireLock(ctx, lockKey, s.cfg.IdempotencyLockTTL)
		switch {
		case err != nil:
			s.logger.Warn("Idempotency lock unavailable, continuing without it", zap.Error(err))
		case token == "":
			return nil, util.FailSpan(span, ErrOrderInFlight)
		default:
			defer func() {
				if err := s.locker.ReleaseLock(context.Background(), lockKey, token); err != nil {
					s.logger.Warn("Failed to release idempotency lock", zap.String("key", lockKey), zap.Error(err))
				}
			}()
		}
	}

	existing, err := s.store.GetOrderByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, util.FailSpan(span, fmt.Errorf("failed to check idempotency: %w", err))
	}
	if existing != nil {
		return s.replay(span, existing, order)
	}

	var (
		change  *StockChange
		skipErr error
	)
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.InsertOrder(ctx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		orderID := order.ID
		c, err := s.ledger.MutateBySize(ctx, tx, order.Size, Mutation{
			Delta:   -order.Quantity,
			Reason:  models.ReasonOrderCreated,
			OrderID: &orderID,
		})
		switch {
		case err == nil:
			change = c
			return nil
		case isStockShortfall(err) && s.cfg.AllowOversellOnCreate:
			skipErr = err
			return nil
		default:
			return err
		}
	})
	if errors.Is(err, store.ErrDuplicate) {
		// lost a race on the idempotency key without holding the lock
		if existing, getErr := s.store.GetOrderByIdempotencyKey(ctx, key); getErr == nil && existing != nil {
			return s.replay(span, existing, order)
		}
	}
	if err != nil {
		util.OrdersRejectedTotal.WithLabelValues(rejectReason(err)).Inc()
		return nil, util.FailSpan(span, err)
	}

	util.OrdersCreatedTotal.Inc()
	var skipReason string
	if change == nil {
		skipReason = skipErr.Error()
		util.StockDeductionsSkippedTotal.WithLabelValues(rejectReason(skipErr)).Inc()
		s.logger.Warn("Order accepted without stock deduction",
			zap.Int64("order_id", order.ID),
			zap.String("size", order.Size),
			zap.String("reason", skipReason))
	} else {
		s.logger.Info("Order created",
			zap.Int64("order_id", order.ID),
			zap.String("size", order.Size),
			zap.Int("stock_after", change.Item.Quantity))
	}

	s.publishOrderCreated(ctx, order, change != nil)
	s.publishStockChange(ctx, change)

	return &CreateOrderResponse{
		Order:         *order,
		StockDeducted: change != nil,
		SkipReason:    skipReason,
	}, nil
}

// replay answers a repeated submission with the order first created under
// its key. A different order under the same key is rejected.
func (s *OrderService) replay(span trace.Span, existing, requested *models.Order) (*CreateOrderResponse, error) {
	if !sameOrder(existing, requested) {
		s.logger.Warn("Idempotency key reused for a different order",
			zap.String("idempotency_key", requested.IdempotencyKey),
			zap.Int64("order_id", existing.ID))
		util.OrdersRejectedTotal.WithLabelValues("key_reused").Inc()
		return nil, util.FailSpan(span, ErrIdempotencyKeyReused)
	}

	s.logger.Info("Duplicate order request detected",
		zap.String("idempotency_key", requested.IdempotencyKey),
		zap.Int64("order_id", existing.ID))
	return &CreateOrderResponse{Order: *existing, Duplicate: true}, nil
}

func sameOrder(a, b *models.Order) bool {
	return a.CustomerName == b.CustomerName &&
		a.Size == b.Size &&
		a.Quantity == b.Quantity &&
		a.DeliveryMode == b.DeliveryMode &&
		a.Rider == b.Rider
}

// UpdateOrderStatus moves an order to a new status. Cancelling restores the
// order's stock; leaving cancelled reserves it again and fails with a
// *ReactivationError if the ledger cannot cover it, leaving the order as is.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID int64, rawStatus string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateOrderStatus")
	defer span.End()

	newStatus, err := models.ParseOrderStatus(rawStatus)
	if err != nil {
		return nil, util.FailSpan(span, invalid("status", "%v", err))
	}

	var (
		order     models.Order
		oldStatus models.OrderStatus
		change    *StockChange
	)
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %d", ErrOrderNotFound, orderID)
		}
		if err != nil {
			return err
		}
		oldStatus = o.Status
		order = *o
		if oldStatus == newStatus {
			return nil
		}

		switch effectOf(oldStatus, newStatus) {
		case effectRestore:
			c, err := s.ledger.MutateBySize(ctx, tx, o.Size, Mutation{
				Delta:   o.Quantity,
				Reason:  models.ReasonOrderCancelled,
				OrderID: &o.ID,
			})
			switch {
			case errors.Is(err, ErrStockItemNotFound):
				s.logger.Warn("No stock item to restore on cancel",
					zap.Int64("order_id", o.ID),
					zap.String("size", o.Size))
			case err != nil:
				return err
			default:
				change = c
			}

		case effectReserve:
			c, err := s.ledger.MutateBySize(ctx, tx, o.Size, Mutation{
				Delta:   -o.Quantity,
				Reason:  models.ReasonOrderReactivated,
				OrderID: &o.ID,
			})
			if err != nil {
				return reactivationError(o, err)
			}
			change = c
		}

		if err := tx.UpdateOrderStatus(ctx, o.ID, newStatus); err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}
		order.Status = newStatus
		return nil
	})
	if err != nil {
		var re *ReactivationError
		if errors.As(err, &re) {
			reason := "insufficient_stock"
			if errors.Is(re, ErrStockItemNotFound) {
				reason = "item_not_found"
			}
			util.ReactivationsRejectedTotal.WithLabelValues(reason).Inc()
			s.logger.Warn("Order reactivation rejected",
				zap.Int64("order_id", orderID),
				zap.String("requested_status", string(newStatus)),
				zap.Error(err))
		}
		return nil, util.FailSpan(span, err)
	}

	if oldStatus == newStatus {
		return &order, nil
	}

	util.OrderTransitionsTotal.WithLabelValues(string(oldStatus), string(newStatus)).Inc()
	switch effectOf(oldStatus, newStatus) {
	case effectRestore:
		util.OrdersCancelledTotal.Inc()
	case effectReserve:
		util.OrdersReactivatedTotal.Inc()
	}

	s.logger.Info("Order status updated",
		zap.Int64("order_id", order.ID),
		zap.String("from", string(oldStatus)),
		zap.String("to", string(newStatus)),
		zap.Stringer("stock_effect", effectOf(oldStatus, newStatus)))

	event := &models.OrderStatusChangedEvent{
		BaseEvent: newBaseEvent(models.EventTypeOrderStatusChanged),
		OrderID:   order.ID,
		Size:      order.Size,
		Quantity:  order.Quantity,
		OldStatus: oldStatus,
		NewStatus: newStatus,
	}
	if err := s.eventPublisher.PublishOrderStatusChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderStatusChanged event", zap.Error(err))
	}
	s.publishStockChange(ctx, change)

	return &order, nil
}

func reactivationError(o *models.Order, err error) error {
	var ise *InsufficientStockError
	switch {
	case errors.Is(err, ErrStockItemNotFound):
		return &ReactivationError{OrderID: o.ID, Size: o.Size, Required: o.Quantity, Err: ErrStockItemNotFound}
	case errors.As(err, &ise):
		return &ReactivationError{
			OrderID:   o.ID,
			Size:      o.Size,
			Required:  ise.Required,
			Available: ise.Available,
			Err:       ise,
		}
	default:
		return err
	}
}

// SetArchived flags an order as archived or restores it. Stock is untouched.
func (s *OrderService) SetArchived(ctx context.Context, orderID int64, archived bool) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.SetArchived")
	defer span.End()

	var order models.Order
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %d", ErrOrderNotFound, orderID)
		}
		if err != nil {
			return err
		}
		if err := tx.SetOrderArchived(ctx, orderID, archived); err != nil {
			return fmt.Errorf("failed to archive order: %w", err)
		}
		o.Archived = archived
		order = *o
		return nil
	})
	if err != nil {
		return nil, util.FailSpan(span, err)
	}

	s.logger.Info("Order archive flag updated", zap.Int64("order_id", orderID), zap.Bool("archived", archived))
	return &order, nil
}

// GetOrder retrieves an order by ID
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, orderID)
	}
	return order, err
}

// ListOrdersParams filters ListOrders. Empty fields match everything.
type ListOrdersParams struct {
	Status   string
	Archived *bool
	Size     string
}

// ListOrders retrieves orders, newest first
func (s *OrderService) ListOrders(ctx context.Context, params ListOrdersParams) ([]models.Order, error) {
	filter := store.OrderFilter{
		Archived: params.Archived,
		Size:     models.NormalizeSize(params.Size),
	}
	if params.Status != "" {
		st, err := models.ParseOrderStatus(params.Status)
		if err != nil {
			return nil, invalid("status", "%v", err)
		}
		filter.Status = &st
	}
	return s.store.ListOrders(ctx, filter)
}

func (s *OrderService) publishOrderCreated(ctx context.Context, order *models.Order, deducted bool) {
	event := &models.OrderCreatedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeOrderCreated),
		OrderID:       order.ID,
		Size:          order.Size,
		Quantity:      order.Quantity,
		DeliveryMode:  order.DeliveryMode,
		StockDeducted: deducted,
	}
	if err := s.eventPublisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}
}

func (s *OrderService) publishStockChange(ctx context.Context, change *StockChange) {
	publishStockChange(ctx, s.eventPublisher, s.logger, change)
}

// publishStockChange reports a committed ledger change. Publishing is best
// effort: the ledger row is already the source of truth.
func publishStockChange(ctx context.Context, publisher EventPublisher, logger *zap.Logger, change *StockChange) {
	if change == nil {
		return
	}
	util.StockQuantity.WithLabelValues(change.Item.Size).Set(float64(change.Item.Quantity))
	if err := publisher.PublishStockChanged(ctx, change.Event()); err != nil {
		logger.Error("Failed to publish StockChanged event",
			zap.Int64("stock_item_id", change.Item.ID),
			zap.Error(err))
	}
}

func rejectReason(err error) string {
	var ise *InsufficientStockError
	switch {
	case errors.Is(err, ErrStockItemNotFound):
		return "item_not_found"
	case errors.As(err, &ise):
		return "insufficient_stock"
	default:
		return "db_error"
	}
}
