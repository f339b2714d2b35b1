package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ice-inventory/internal/models"
	"ice-inventory/internal/store"
	"ice-inventory/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultMovementLimit = 50
	maxMovementLimit     = 500
)

// StockOperation is the direction of a manual adjustment
type StockOperation string

// Stock operations
const (
	StockOperationAdd      StockOperation = "add"
	StockOperationSubtract StockOperation = "subtract"
)

// StockService handles staff-driven stock edits, independent of orders
type StockService struct {
	store          Store
	ledger         *Ledger
	eventPublisher EventPublisher
	cache          AvailabilityReader
	logger         *zap.Logger
}

// NewStockService creates a new stock service. cache may be nil.
func NewStockService(store Store, ledger *Ledger, eventPublisher EventPublisher, cache AvailabilityReader) *StockService {
	return &StockService{
		store:          store,
		ledger:         ledger,
		eventPublisher: eventPublisher,
		cache:          cache,
		logger:         util.GetLogger(),
	}
}

// CreateStockItemRequest represents a request to add a size to the ledger
type CreateStockItemRequest struct {
	ProductName string           `json:"product_name" binding:"required"`
	Size        string           `json:"size" binding:"required"`
	Price       *decimal.Decimal `json:"price" binding:"required"`
	Quantity    *int             `json:"quantity" binding:"required,min=0"`
}

// AdjustStockRequest represents a manual stock edit. Price is always
// applied; Quantity is optional.
type AdjustStockRequest struct {
	Operation StockOperation   `json:"operation" binding:"required"`
	Quantity  *int             `json:"quantity,omitempty"`
	Price     *decimal.Decimal `json:"price" binding:"required"`
}

// CreateStockItem adds a new stock item. Sizes are unique across products.
func (s *StockService) CreateStockItem(ctx context.Context, req *CreateStockItemRequest) (*models.StockItem, error) {
	ctx, span := util.StartSpan(ctx, "StockService.CreateStockItem")
	defer span.End()

	productName := strings.TrimSpace(req.ProductName)
	size := models.NormalizeSize(req.Size)
	switch {
	case productName == "":
		return nil, util.FailSpan(span, invalid("product_name", "is required"))
	case size == "":
		return nil, util.FailSpan(span, invalid("size", "is required"))
	case req.Price == nil || req.Price.IsNegative():
		return nil, util.FailSpan(span, invalid("price", "must be zero or more"))
	case req.Quantity == nil || *req.Quantity < 0 || *req.Quantity > models.MaxQuantity:
		return nil, util.FailSpan(span, invalid("quantity", "must be between 0 and %d", models.MaxQuantity))
	}

	item := &models.StockItem{
		ProductName: productName,
		Size:        size,
		Price:       *req.Price,
		Quantity:    *req.Quantity,
	}

	var change *StockChange
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		exists, err := tx.StockSizeExists(ctx, size)
		if err != nil {
			return fmt.Errorf("failed to check size: %w", err)
		}
		if exists {
			return &DuplicateSizeError{Size: size}
		}
		change, err = s.ledger.Create(ctx, tx, item)
		return err
	})
	if err != nil {
		return nil, util.FailSpan(span, err)
	}

	s.logger.Info("Stock item created",
		zap.Int64("stock_item_id", change.Item.ID),
		zap.String("size", size),
		zap.Int("quantity", change.Item.Quantity),
		zap.String("status", string(change.Item.Status)))

	publishStockChange(ctx, s.eventPublisher, s.logger, change)
	return &change.Item, nil
}

// AdjustStock applies a manual add or subtract together with a new price.
// A subtract larger than the stock fails and changes nothing.
func (s *StockService) AdjustStock(ctx context.Context, itemID int64, req *AdjustStockRequest) (*models.StockItem, error) {
	ctx, span := util.StartSpan(ctx, "StockService.AdjustStock")
	defer span.End()

	m, err := req.mutation()
	if err != nil {
		return nil, util.FailSpan(span, err)
	}

	var change *StockChange
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		change, err = s.ledger.MutateByID(ctx, tx, itemID, m)
		return err
	})
	if err != nil {
		util.StockAdjustmentsTotal.WithLabelValues(string(req.Operation), "rejected").Inc()
		var ise *InsufficientStockError
		if errors.As(err, &ise) {
			s.logger.Warn("Stock subtraction rejected",
				zap.Int64("stock_item_id", itemID),
				zap.Int("requested", ise.Required),
				zap.Int("available", ise.Available))
		}
		return nil, util.FailSpan(span, err)
	}

	util.StockAdjustmentsTotal.WithLabelValues(string(req.Operation), "applied").Inc()
	s.logger.Info("Stock adjusted",
		zap.Int64("stock_item_id", itemID),
		zap.String("operation", string(req.Operation)),
		zap.Int("delta", m.Delta),
		zap.Int("quantity", change.Item.Quantity),
		zap.String("price", change.Item.Price.String()))

	publishStockChange(ctx, s.eventPublisher, s.logger, change)
	return &change.Item, nil
}

func (r *AdjustStockRequest) mutation() (Mutation, error) {
	if r.Price == nil {
		return Mutation{}, invalid("price", "is required")
	}
	if r.Price.IsNegative() {
		return Mutation{}, invalid("price", "must be zero or more")
	}
	if r.Quantity != nil && (*r.Quantity < 1 || *r.Quantity > models.MaxQuantity) {
		return Mutation{}, invalid("quantity", "must be between 1 and %d, got %d", models.MaxQuantity, *r.Quantity)
	}

	m := Mutation{Price: r.Price, Reason: models.ReasonPriceChange}
	switch r.Operation {
	case StockOperationAdd:
		if r.Quantity != nil {
			m.Delta = *r.Quantity
			m.Reason = models.ReasonManualAdd
		}
	case StockOperationSubtract:
		if r.Quantity != nil {
			m.Delta = -*r.Quantity
			m.Reason = models.ReasonManualSubtract
		}
	default:
		return Mutation{}, invalid("operation", "must be %q or %q", StockOperationAdd, StockOperationSubtract)
	}
	return m, nil
}

// GetStockItem retrieves a stock item by ID
func (s *StockService) GetStockItem(ctx context.Context, id int64) (*models.StockItem, error) {
	item, err := s.store.GetStockItemByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrStockItemNotFound, id)
	}
	return item, err
}

// ListStockItems retrieves every stock item
func (s *StockService) ListStockItems(ctx context.Context) ([]models.StockItem, error) {
	return s.store.ListStockItems(ctx)
}

// ListMovements retrieves the latest ledger movements of a stock item
func (s *StockService) ListMovements(ctx context.Context, id int64, limit int) ([]models.StockMovement, error) {
	if _, err := s.GetStockItem(ctx, id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultMovementLimit
	}
	if limit > maxMovementLimit {
		limit = maxMovementLimit
	}
	return s.store.ListMovements(ctx, id, limit)
}

// Availability returns the per-size view. The cache answers only when it
// holds every known size; otherwise the ledger is read.
func (s *StockService) Availability(ctx context.Context) ([]models.Availability, error) {
	ctx, span := util.StartSpan(ctx, "StockService.Availability")
	defer span.End()

	if s.cache != nil {
		cached, err := s.cache.ListAvailability(ctx)
		if err == nil && len(cached) > 0 {
			return cached, nil
		}
		if err != nil {
			s.logger.Warn("Availability cache unusable, reading ledger", zap.Error(err))
		}
	}

	items, err := s.store.ListStockItems(ctx)
	if err != nil {
		return nil, util.FailSpan(span, err)
	}
	out := make([]models.Availability, 0, len(items))
	for _, item := range items {
		out = append(out, models.Availability{
			Size:     item.Size,
			Quantity: item.Quantity,
			Price:    item.Price,
			Status:   item.Status,
		})
	}
	return out, nil
}
