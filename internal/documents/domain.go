package documents

import (
	"errors"
	"fmt"
	"time"
)

// Kind distinguishes inbound receipts from outbound deliveries.
type Kind string

const (
	// KindReceipt is an inbound document (goods received).
	KindReceipt Kind = "RECEIPT"
	// KindDelivery is an outbound document (goods issued).
	KindDelivery Kind = "DELIVERY"
)

// Status is the document lifecycle state. Transitions only advance:
// DRAFT -> READY -> DONE, and DONE is terminal.
type Status string

const (
	StatusDraft Status = "DRAFT"
	StatusReady Status = "READY"
	StatusDone  Status = "DONE"
)

// Document is a receipt or delivery header with its line items. Completing
// the document (READY -> DONE) is the only event that produces movements.
type Document struct {
	ID              int64      `json:"id"`
	ReferenceNumber string     `json:"reference_number"`
	Kind            Kind       `json:"kind"`
	CounterpartyID  int64      `json:"counterparty_id"`
	WarehouseID     int64      `json:"warehouse_id"`
	Status          Status     `json:"status"`
	Notes           string     `json:"notes,omitempty"`
	CreatedBy       int64      `json:"created_by"`
	UpdatedBy       int64      `json:"updated_by"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	Lines           []LineItem `json:"lines"`
}

// LineItem is one product/location/quantity entry on a document.
type LineItem struct {
	ID                int64 `json:"id"`
	DocumentID        int64 `json:"document_id"`
	ProductID         int64 `json:"product_id"`
	LocationID        int64 `json:"location_id"`
	QuantityOrdered   int64 `json:"quantity_ordered"`
	QuantityFulfilled int64 `json:"quantity_fulfilled"`
}

// IntendedQuantity is the amount a completed line moves: the fulfilled
// quantity when set, the ordered quantity otherwise.
func (l LineItem) IntendedQuantity() int64 {
	if l.QuantityFulfilled > 0 {
		return l.QuantityFulfilled
	}
	return l.QuantityOrdered
}

// ListFilter narrows document listings.
type ListFilter struct {
	Kind        Kind
	Status      Status
	WarehouseID int64
	Page        int
	PerPage     int
}

var (
	// ErrNotFound indicates the document does not exist.
	ErrNotFound = errors.New("documents: not found")
	// ErrNoLines rejects a READY transition on a document without lines.
	ErrNoLines = errors.New("documents: at least one line item is required")
	// ErrLineLocationMissing rejects a READY transition when a line has no location.
	ErrLineLocationMissing = errors.New("documents: every line item needs a location")
	// ErrInvalidLine indicates a line with a missing product or non-positive quantity.
	ErrInvalidLine = errors.New("documents: line requires product and positive quantity")
	// ErrNotEditable rejects edits and deletion once a document left DRAFT.
	ErrNotEditable = errors.New("documents: document is no longer editable")
	// ErrInvalidKind indicates an unknown document kind.
	ErrInvalidKind = errors.New("documents: invalid document kind")
	// ErrReferenceConflict signals a reference number collision on insert.
	ErrReferenceConflict = errors.New("documents: reference number already taken")
)

// InvalidTransitionError reports a rejected status change and names the
// source state the transition requires.
type InvalidTransitionError struct {
	From     Status
	To       Status
	Required Status
}

func (e *InvalidTransitionError) Error() string {
	if e.Required == "" {
		return fmt.Sprintf("documents: no transition leads to status %q", e.To)
	}
	return fmt.Sprintf("documents: cannot transition %s -> %s, requires status %s", e.From, e.To, e.Required)
}
