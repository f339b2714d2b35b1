package service

import "ice-inventory/internal/models"

// stockEffect is what a status transition does to the ledger
type stockEffect int

const (
	effectNone    stockEffect = iota
	effectRestore             // order stops reserving stock
	effectReserve             // cancelled order reserves stock again; may fail
)

func (e stockEffect) String() string {
	switch e {
	case effectRestore:
		return "restore"
	case effectReserve:
		return "reserve"
	default:
		return "none"
	}
}

// effectOf keys only on whether each endpoint is cancelled. The two
// cancelled edges are the only ones that touch stock.
func effectOf(from, to models.OrderStatus) stockEffect {
	switch [2]bool{from.IsCancelled(), to.IsCancelled()} {
	case [2]bool{false, true}:
		return effectRestore
	case [2]bool{true, false}:
		return effectReserve
	default:
		return effectNone
	}
}
