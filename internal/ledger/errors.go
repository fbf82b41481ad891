package ledger

import (
	"errors"
	"fmt"
)

// Closed set of domain errors. Callers branch on these structurally with
// errors.Is/errors.As; no string matching.
var (
	// ErrProductNotFound indicates the product does not exist.
	ErrProductNotFound = errors.New("ledger: product not found")
	// ErrLocationNotFound indicates the location does not exist.
	ErrLocationNotFound = errors.New("ledger: location not found")
	// ErrProductInactive indicates the product is disabled.
	ErrProductInactive = errors.New("ledger: product is inactive")
	// ErrLocationInactive indicates the location is disabled.
	ErrLocationInactive = errors.New("ledger: location is inactive")
	// ErrWarehouseMismatch indicates product or location belongs to a
	// different warehouse than the operation targets.
	ErrWarehouseMismatch = errors.New("ledger: warehouse ownership mismatch")
	// ErrZeroQuantity indicates a movement with no effect was requested.
	ErrZeroQuantity = errors.New("ledger: quantity must be non zero")
	// ErrNonPositiveQuantity rejects receive/deliver/transfer amounts <= 0.
	ErrNonPositiveQuantity = errors.New("ledger: quantity must be positive")
	// ErrNoOpAdjustment rejects adjustments whose target equals the current quantity.
	ErrNoOpAdjustment = errors.New("ledger: adjustment target equals current quantity")
	// ErrSameLocation rejects transfers whose source and destination match.
	ErrSameLocation = errors.New("ledger: source and destination location must differ")
	// ErrStockLevelNotFound indicates a missing stock level row; the engine
	// treats it as quantity zero.
	ErrStockLevelNotFound = errors.New("ledger: stock level not found")
)

// InsufficientStockError is returned when a movement would drive a stock
// level negative. It reports the on-hand quantity and the requested
// outbound magnitude.
type InsufficientStockError struct {
	ProductID  int64
	LocationID int64
	Current    int64
	Requested  int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("ledger: insufficient stock for product %d at location %d: current %d, requested %d",
		e.ProductID, e.LocationID, e.Current, e.Requested)
}
