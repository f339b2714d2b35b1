package service

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrStockItemNotFound = errors.New("inventory item not found")
	// ErrOrderInFlight is returned while another request holds the same idempotency key
	ErrOrderInFlight = errors.New("order with this idempotency key is already being processed")
	// ErrIdempotencyKeyReused is returned when a key is replayed with a different order
	ErrIdempotencyKeyReused = errors.New("idempotency key was already used for a different order")
)

// ValidationError reports malformed input. Nothing was written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// InsufficientStockError is returned when a deduction would drive a stock
// item below zero.
type InsufficientStockError struct {
	Size      string
	Required  int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for size %s: required %d, available %d", e.Size, e.Required, e.Available)
}

// DuplicateSizeError is returned when a stock item for the size already exists
type DuplicateSizeError struct {
	Size string
}

func (e *DuplicateSizeError) Error() string {
	return fmt.Sprintf("inventory item for size %q already exists", e.Size)
}

// ReactivationError explains why a cancelled order could not leave the
// cancelled state. Err is ErrStockItemNotFound or *InsufficientStockError.
type ReactivationError struct {
	OrderID   int64
	Size      string
	Required  int
	Available int
	Err       error
}

func (e *ReactivationError) Error() string {
	if errors.Is(e.Err, ErrStockItemNotFound) {
		return fmt.Sprintf("inventory item not found for size %s", e.Size)
	}
	return fmt.Sprintf("insufficient inventory to reactivate order %d: required %d, available %d",
		e.OrderID, e.Required, e.Available)
}

func (e *ReactivationError) Unwrap() error {
	return e.Err
}

func stockNotFoundForSize(size string) error {
	return fmt.Errorf("%w for size %s", ErrStockItemNotFound, size)
}

// isStockShortfall reports whether err means the ledger cannot cover a deduction
func isStockShortfall(err error) bool {
	var ise *InsufficientStockError
	return errors.Is(err, ErrStockItemNotFound) || errors.As(err, &ise)
}
