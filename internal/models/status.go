package models

import "math"

// StockStatus is the availability of a stock item, derived from its quantity
type StockStatus string

// Stock statuses
const (
	StockStatusAvailable  StockStatus = "available"
	StockStatusCritical   StockStatus = "critical"
	StockStatusOutOfStock StockStatus = "out_of_stock"
)

const (
	// CriticalStockThreshold is the highest quantity still reported as critical
	CriticalStockThreshold = 10
	// MaxQuantity is the largest quantity a stock item or order can hold.
	// Quantities are stored as INTEGER columns.
	MaxQuantity = math.MaxInt32
)

// DeriveStatus maps a quantity to its availability status.
// Quantities below one are out of stock.
func DeriveStatus(quantity int) StockStatus {
	switch {
	case quantity <= 0:
		return StockStatusOutOfStock
	case quantity <= CriticalStockThreshold:
		return StockStatusCritical
	default:
		return StockStatusAvailable
	}
}
