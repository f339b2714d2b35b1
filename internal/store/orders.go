package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"ice-inventory/internal/models"
)

const orderColumns = `id, customer_name, contact_number, address, size, quantity, status,
	delivery_mode, rider, archived, idempotency_key, created_at, updated_at`

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByIdempotencyKey retrieves an order by idempotency key
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE idempotency_key = $1", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders retrieves orders matching filter, newest first
func (s *Store) ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Archived != nil {
		args = append(args, *filter.Archived)
		conds = append(conds, fmt.Sprintf("archived = $%d", len(args)))
	}
	if filter.Size != "" {
		args = append(args, filter.Size)
		conds = append(conds, fmt.Sprintf("size = $%d", len(args)))
	}

	query := "SELECT " + orderColumns + " FROM orders"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders, query, args...)
	return orders, err
}

// InsertOrder creates a new order
func (t *sqlTx) InsertOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (customer_name, contact_number, address, size, quantity, status,
			delivery_mode, rider, archived, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`

	err := t.tx.QueryRowxContext(ctx, query,
		order.CustomerName, order.ContactNumber, order.Address, order.Size, order.Quantity,
		order.Status, order.DeliveryMode, order.Rider, order.Archived, order.IdempotencyKey,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("order with idempotency key %q: %w", order.IdempotencyKey, ErrDuplicate)
	}
	return err
}

// GetOrderForUpdate locks an order row by ID
func (t *sqlTx) GetOrderForUpdate(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := t.tx.GetContext(ctx, &order,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}
	return &order, nil
}

// UpdateOrderStatus updates order status
func (t *sqlTx) UpdateOrderStatus(ctx context.Context, id int64, status models.OrderStatus) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		status, id)
	if err != nil {
		return err
	}
	return requireOneRow(res, "order", id)
}

// SetOrderArchived sets the archived flag of an order
func (t *sqlTx) SetOrderArchived(ctx context.Context, id int64, archived bool) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE orders SET archived = $1, updated_at = NOW() WHERE id = $2",
		archived, id)
	if err != nil {
		return err
	}
	return requireOneRow(res, "order", id)
}

func requireOneRow(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
	}
	return nil
}
