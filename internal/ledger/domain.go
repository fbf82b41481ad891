package ledger

import (
	"time"
)

// MovementType enumerates the supported kinds of stock movements.
type MovementType string

const (
	// MovementReceipt represents inbound stock from a receipt document.
	MovementReceipt MovementType = "RECEIPT"
	// MovementDelivery represents outbound stock from a delivery document.
	MovementDelivery MovementType = "DELIVERY"
	// MovementAdjustment represents a manual correction to an absolute target.
	MovementAdjustment MovementType = "ADJUSTMENT"
	// MovementTransferIn is the credit leg of a location transfer.
	MovementTransferIn MovementType = "TRANSFER_IN"
	// MovementTransferOut is the debit leg of a location transfer.
	MovementTransferOut MovementType = "TRANSFER_OUT"
)

// StockLevel is the current on-hand quantity for a product at one warehouse
// location. Rows are created lazily on first movement and mutated only by
// the ledger engine.
type StockLevel struct {
	ProductID   int64     `json:"product_id"`
	WarehouseID int64     `json:"warehouse_id"`
	LocationID  int64     `json:"location_id"`
	Quantity    int64     `json:"quantity"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Movement is one immutable ledger entry. Quantity is signed: positive for
// inbound, negative for outbound.
type Movement struct {
	ID          int64        `json:"id"`
	ProductID   int64        `json:"product_id"`
	WarehouseID int64        `json:"warehouse_id"`
	LocationID  int64        `json:"location_id"`
	ActorID     int64        `json:"actor_id"`
	Type        MovementType `json:"type"`
	Quantity    int64        `json:"quantity"`
	Reference   string       `json:"reference,omitempty"`
	RefID       string       `json:"ref_id,omitempty"`
	Notes       string       `json:"notes,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Product is read-only reference data consumed during validation.
type Product struct {
	ID          int64
	WarehouseID int64
	SKU         string
	Name        string
	Active      bool
}

// Location is read-only reference data consumed during validation.
type Location struct {
	ID          int64
	WarehouseID int64
	Code        string
	Name        string
	Active      bool
}

// ChangeInput describes one quantity delta to apply through the engine.
type ChangeInput struct {
	ProductID   int64
	WarehouseID int64
	LocationID  int64
	Quantity    int64
	Type        MovementType
	ActorID     int64
	Reference   string
	RefID       string
	Notes       string
}

// TransferInput describes a location-to-location transfer. The warehouse is
// derived from the two locations, never supplied by the caller.
type TransferInput struct {
	ProductID      int64
	FromLocationID int64
	ToLocationID   int64
	Quantity       int64
	ActorID        int64
	Reference      string
	Notes          string
}

// TransferResult carries both legs of a completed transfer.
type TransferResult struct {
	Out  Movement   `json:"out"`
	In   Movement   `json:"in"`
	From StockLevel `json:"from_location"`
	To   StockLevel `json:"to_location"`
}

// AdjustmentInput sets stock to an absolute target quantity.
type AdjustmentInput struct {
	ProductID      int64
	LocationID     int64
	TargetQuantity int64
	ActorID        int64
	Reason         string
	Notes          string
}

// StockLevelFilter narrows stock level listings.
type StockLevelFilter struct {
	WarehouseID int64
	ProductID   int64
	LocationID  int64
}

// MovementFilter narrows movement listings.
type MovementFilter struct {
	WarehouseID int64
	ProductID   int64
	LocationID  int64
	Type        MovementType
	From        time.Time
	To          time.Time
	Page        int
	PerPage     int
}
