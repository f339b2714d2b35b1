package worker

import (
	"context"
	"fmt"

	"ice-inventory/internal/broker"
	"ice-inventory/internal/models"
	"ice-inventory/internal/util"

	"go.uber.org/zap"
)

// AvailabilityWriter stores the latest per-size availability.
// SetAvailability reports false when a newer version is already stored.
type AvailabilityWriter interface {
	SetAvailability(ctx context.Context, a models.Availability) (bool, error)
}

// LedgerReader lists the ledger for cache warm-up
type LedgerReader interface {
	ListStockItems(ctx context.Context) ([]models.StockItem, error)
	ListMovements(ctx context.Context, stockItemID int64, limit int) ([]models.StockMovement, error)
}

// AvailabilityProjector keeps the availability cache in step with the
// ledger by consuming StockChanged events
type AvailabilityProjector struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	cache        AvailabilityWriter
	ledger       LedgerReader
	logger       *zap.Logger
}

// NewAvailabilityProjector creates a new projector. consumer may be nil
// when only Project and Warm are used.
func NewAvailabilityProjector(consumer *broker.Consumer, cache AvailabilityWriter, ledger LedgerReader) *AvailabilityProjector {
	p := &AvailabilityProjector{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		cache:        cache,
		ledger:       ledger,
		logger:       util.GetLogger(),
	}
	p.eventHandler.OnStockChanged(p.Project)
	return p
}

// Handler returns the message router used by Start
func (p *AvailabilityProjector) Handler() *broker.EventHandler {
	return p.eventHandler
}

// Start blocks consuming events until ctx is cancelled
func (p *AvailabilityProjector) Start(ctx context.Context) error {
	p.logger.Info("Starting availability projector")
	return p.consumer.StartConsuming(ctx, p.eventHandler.HandleMessage)
}

// Stop stops the projector
func (p *AvailabilityProjector) Stop() error {
	p.logger.Info("Stopping availability projector")
	if p.consumer == nil {
		return nil
	}
	return p.consumer.Close()
}

// Project writes one StockChanged event to the cache. Out-of-order
// events are dropped by the version check.
func (p *AvailabilityProjector) Project(ctx context.Context, event *models.StockChangedEvent) error {
	ctx, span := util.StartSpan(ctx, "AvailabilityProjector.Project")
	defer span.End()

	written, err := p.cache.SetAvailability(ctx, models.Availability{
		Size:     event.Size,
		Quantity: event.Quantity,
		Price:    event.Price,
		Status:   event.Status,
		Version:  event.Version,
	})
	if err != nil {
		util.AvailabilityCacheWritesTotal.WithLabelValues("error").Inc()
		return util.FailSpan(span, fmt.Errorf("failed to project availability for %s: %w", event.Size, err))
	}
	if !written {
		util.AvailabilityCacheWritesTotal.WithLabelValues("stale").Inc()
		p.logger.Debug("Skipped stale availability event",
			zap.String("size", event.Size),
			zap.Int64("version", event.Version))
		return nil
	}

	util.AvailabilityCacheWritesTotal.WithLabelValues("written").Inc()
	return nil
}

// Warm projects every ledger row, versioned by its latest movement, so the
// cache is complete before the first event arrives.
func (p *AvailabilityProjector) Warm(ctx context.Context) error {
	items, err := p.ledger.ListStockItems(ctx)
	if err != nil {
		return fmt.Errorf("failed to list stock items: %w", err)
	}

	for _, item := range items {
		movements, err := p.ledger.ListMovements(ctx, item.ID, 1)
		if err != nil {
			return fmt.Errorf("failed to read latest movement for %s: %w", item.Size, err)
		}
		var version int64
		if len(movements) > 0 {
			version = movements[0].ID
		}
		if err := p.Project(ctx, &models.StockChangedEvent{
			StockItemID: item.ID,
			Size:        item.Size,
			Quantity:    item.Quantity,
			Price:       item.Price,
			Status:      item.Status,
			Version:     version,
		}); err != nil {
			return err
		}
	}

	p.logger.Info("Availability cache warmed", zap.Int("sizes", len(items)))
	return nil
}
