package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ice-inventory/internal/models"
)

const stockColumns = "id, product_name, size, price, quantity, status, date_created, updated_at"

// GetStockItemByID retrieves a stock item by ID
func (s *Store) GetStockItemByID(ctx context.Context, id int64) (*models.StockItem, error) {
	var item models.StockItem
	err := s.db.GetContext(ctx, &item, "SELECT "+stockColumns+" FROM stock_items WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("stock item %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListStockItems retrieves all stock items
func (s *Store) ListStockItems(ctx context.Context) ([]models.StockItem, error) {
	items := []models.StockItem{}
	err := s.db.SelectContext(ctx, &items, "SELECT "+stockColumns+" FROM stock_items ORDER BY id")
	return items, err
}

// ListMovements retrieves the most recent movements of a stock item
func (s *Store) ListMovements(ctx context.Context, stockItemID int64, limit int) ([]models.StockMovement, error) {
	movements := []models.StockMovement{}
	err := s.db.SelectContext(ctx, &movements, `
		SELECT id, stock_item_id, order_id, delta, quantity_after, status_after, reason, created_at
		FROM stock_movements
		WHERE stock_item_id = $1
		ORDER BY id DESC
		LIMIT $2`, stockItemID, limit)
	return movements, err
}

// GetStockItemForUpdate locks a stock item row by ID
func (t *sqlTx) GetStockItemForUpdate(ctx context.Context, id int64) (*models.StockItem, error) {
	var item models.StockItem
	err := t.tx.GetContext(ctx, &item,
		"SELECT "+stockColumns+" FROM stock_items WHERE id = $1 FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("stock item %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock stock item: %w", err)
	}
	return &item, nil
}

// GetStockItemBySizeForUpdate locks the first stock item carrying size
func (t *sqlTx) GetStockItemBySizeForUpdate(ctx context.Context, size string) (*models.StockItem, error) {
	var item models.StockItem
	err := t.tx.GetContext(ctx, &item,
		"SELECT "+stockColumns+" FROM stock_items WHERE size = $1 ORDER BY id LIMIT 1 FOR UPDATE", size)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("stock item for size %q: %w", size, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock stock item: %w", err)
	}
	return &item, nil
}

// StockSizeExists checks whether any stock item carries size
func (t *sqlTx) StockSizeExists(ctx context.Context, size string) (bool, error) {
	var exists bool
	err := t.tx.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM stock_items WHERE size = $1)", size)
	return exists, err
}

// InsertStockItem creates a new stock item
func (t *sqlTx) InsertStockItem(ctx context.Context, item *models.StockItem) error {
	query := `
		INSERT INTO stock_items (product_name, size, price, quantity, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, date_created, updated_at`

	err := t.tx.QueryRowxContext(ctx, query,
		item.ProductName, item.Size, item.Price, item.Quantity, item.Status,
	).Scan(&item.ID, &item.DateCreated, &item.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("stock item for size %q: %w", item.Size, ErrDuplicate)
	}
	return err
}

// UpdateStockItem writes quantity, price and status in one statement
func (t *sqlTx) UpdateStockItem(ctx context.Context, item *models.StockItem) error {
	err := t.tx.QueryRowxContext(ctx, `
		UPDATE stock_items
		SET quantity = $1, price = $2, status = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING updated_at`,
		item.Quantity, item.Price, item.Status, item.ID,
	).Scan(&item.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("stock item %d: %w", item.ID, ErrNotFound)
	}
	return err
}

// InsertMovement appends a ledger movement
func (t *sqlTx) InsertMovement(ctx context.Context, m *models.StockMovement) error {
	query := `
		INSERT INTO stock_movements (stock_item_id, order_id, delta, quantity_after, status_after, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	return t.tx.QueryRowxContext(ctx, query,
		m.StockItemID, m.OrderID, m.Delta, m.QuantityAfter, m.StatusAfter, m.Reason,
	).Scan(&m.ID, &m.CreatedAt)
}
