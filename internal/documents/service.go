package documents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/meridian-wms/meridian-wms/internal/ledger"
	"github.com/meridian-wms/meridian-wms/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Document, error)
	List(ctx context.Context, filter ListFilter) ([]Document, int, error)
	CountByReferencePrefix(ctx context.Context, prefix string) (int, error)
}

// TxRepository embeds the ledger operations so document completion and the
// ledger writes it triggers share a single transaction scope.
type TxRepository interface {
	ledger.TxRepository
	InsertDocument(ctx context.Context, doc Document) (int64, error)
	InsertLines(ctx context.Context, documentID int64, lines []LineItem) error
	DeleteLines(ctx context.Context, documentID int64) error
	GetDocumentForUpdate(ctx context.Context, id int64) (Document, error)
	UpdateLineFulfilled(ctx context.Context, lineID, quantity int64) error
	UpdateStatus(ctx context.Context, documentID int64, status Status, actorID int64) error
	UpdateNotes(ctx context.Context, documentID int64, notes string, actorID int64) error
	DeleteDocument(ctx context.Context, documentID int64) error
}

// LedgerPort is the narrow contract into the ledger engine.
type LedgerPort interface {
	ApplyTx(ctx context.Context, tx ledger.TxRepository, input ledger.ChangeInput) (ledger.StockLevel, ledger.Movement, error)
	RecordCompletion(ctx context.Context, warehouseID, actorID int64, movements []ledger.Movement)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service drives the document workflow: DRAFT documents are freely editable,
// READY documents are validated, and the READY -> DONE transition posts one
// ledger movement per line.
type Service struct {
	repo   RepositoryPort
	ledger LedgerPort
	refs   *ReferenceGenerator
	audit  AuditPort
	logger *slog.Logger
}

// NewService constructs the documents service.
func NewService(repo RepositoryPort, ledgerPort LedgerPort, refs *ReferenceGenerator, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: ledgerPort, refs: refs, audit: audit, logger: logger}
}

// CreateInput describes a new document.
type CreateInput struct {
	Kind           Kind
	CounterpartyID int64
	WarehouseID    int64
	Notes          string
	ActorID        int64
	Lines          []LineInput
}

// LineInput describes one requested line item.
type LineInput struct {
	ProductID       int64
	LocationID      int64
	QuantityOrdered int64
}

const referenceRetries = 3

// Create persists a DRAFT document with its lines. Reference numbers are
// count-based per day; on a collision the insert is retried with a fresh
// sequence before the conflict surfaces.
func (s *Service) Create(ctx context.Context, input CreateInput) (Document, error) {
	if _, err := kindPrefix(input.Kind); err != nil {
		return Document{}, err
	}
	if input.WarehouseID <= 0 {
		return Document{}, fmt.Errorf("documents: warehouse required")
	}
	lines, err := buildLines(input.Lines)
	if err != nil {
		return Document{}, err
	}

	var created Document
	for attempt := 0; attempt < referenceRetries; attempt++ {
		ref, err := s.refs.Next(ctx, input.Kind)
		if err != nil {
			return Document{}, err
		}
		doc := Document{
			ReferenceNumber: ref,
			Kind:            input.Kind,
			CounterpartyID:  input.CounterpartyID,
			WarehouseID:     input.WarehouseID,
			Status:          StatusDraft,
			Notes:           input.Notes,
			CreatedBy:       input.ActorID,
			UpdatedBy:       input.ActorID,
		}
		err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			id, err := tx.InsertDocument(ctx, doc)
			if err != nil {
				return err
			}
			if err := tx.InsertLines(ctx, id, lines); err != nil {
				return err
			}
			doc.ID = id
			return nil
		})
		if errors.Is(err, ErrReferenceConflict) {
			continue
		}
		if err != nil {
			return Document{}, err
		}
		created = doc
		created.Lines = lines
		s.recordAudit(ctx, input.ActorID, "create", created.ID, map[string]any{"reference": created.ReferenceNumber, "kind": created.Kind})
		return created, nil
	}
	return Document{}, ErrReferenceConflict
}

// Get loads a document with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Document, error) {
	return s.repo.Get(ctx, id)
}

// List returns documents matching the filter with the total count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Document, int, error) {
	if filter.PerPage <= 0 {
		filter.PerPage = 20
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	return s.repo.List(ctx, filter)
}

// ReplaceLines swaps the full line set of a DRAFT document.
func (s *Service) ReplaceLines(ctx context.Context, id int64, inputs []LineInput, actorID int64) (Document, error) {
	lines, err := buildLines(inputs)
	if err != nil {
		return Document{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		doc, err := tx.GetDocumentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if doc.Status != StatusDraft {
			return ErrNotEditable
		}
		if err := tx.DeleteLines(ctx, id); err != nil {
			return err
		}
		if err := tx.InsertLines(ctx, id, lines); err != nil {
			return err
		}
		return tx.UpdateNotes(ctx, id, doc.Notes, actorID)
	})
	if err != nil {
		return Document{}, err
	}
	return s.repo.Get(ctx, id)
}

// UpdateNotes changes the notes of a DRAFT document.
func (s *Service) UpdateNotes(ctx context.Context, id int64, notes string, actorID int64) (Document, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		doc, err := tx.GetDocumentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if doc.Status != StatusDraft {
			return ErrNotEditable
		}
		return tx.UpdateNotes(ctx, id, notes, actorID)
	})
	if err != nil {
		return Document{}, err
	}
	return s.repo.Get(ctx, id)
}

// Delete removes a DRAFT document and its lines.
func (s *Service) Delete(ctx context.Context, id int64, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		doc, err := tx.GetDocumentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if doc.Status != StatusDraft {
			return ErrNotEditable
		}
		if err := tx.DeleteLines(ctx, id); err != nil {
			return err
		}
		return tx.DeleteDocument(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "delete", id, nil)
	return nil
}

// Transition advances a document to the target status. DRAFT -> READY
// validates the document without moving stock; READY -> DONE posts one
// movement per line inside a single transaction, so a failure on any line
// rolls the whole document back.
func (s *Service) Transition(ctx context.Context, id int64, target Status, actorID int64) (Document, error) {
	switch target {
	case StatusReady:
		return s.makeReady(ctx, id, actorID)
	case StatusDone:
		return s.complete(ctx, id, actorID)
	default:
		return Document{}, &InvalidTransitionError{To: target}
	}
}

func (s *Service) makeReady(ctx context.Context, id int64, actorID int64) (Document, error) {
	var doc Document
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		doc, err = tx.GetDocumentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if doc.Status != StatusDraft {
			return &InvalidTransitionError{From: doc.Status, To: StatusReady, Required: StatusDraft}
		}
		if len(doc.Lines) == 0 {
			return ErrNoLines
		}
		for _, line := range doc.Lines {
			if line.LocationID == 0 {
				return ErrLineLocationMissing
			}
		}
		if doc.Kind == KindDelivery {
			for _, line := range doc.Lines {
				level, err := tx.GetStockLevelForUpdate(ctx, line.ProductID, doc.WarehouseID, line.LocationID)
				if err != nil && !errors.Is(err, ledger.ErrStockLevelNotFound) {
					return err
				}
				if intended := line.IntendedQuantity(); level.Quantity < intended {
					return &ledger.InsufficientStockError{
						ProductID:  line.ProductID,
						LocationID: line.LocationID,
						Current:    level.Quantity,
						Requested:  intended,
					}
				}
			}
		}
		return tx.UpdateStatus(ctx, id, StatusReady, actorID)
	})
	if err != nil {
		return Document{}, err
	}
	doc.Status = StatusReady
	doc.UpdatedBy = actorID
	s.recordAudit(ctx, actorID, "ready", id, map[string]any{"reference": doc.ReferenceNumber})
	return doc, nil
}

func (s *Service) complete(ctx context.Context, id int64, actorID int64) (Document, error) {
	var (
		doc       Document
		movements []ledger.Movement
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		doc, err = tx.GetDocumentForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if doc.Status != StatusReady {
			return &InvalidTransitionError{From: doc.Status, To: StatusDone, Required: StatusReady}
		}
		refID := uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("document:%d", doc.ID))).String()
		for i, line := range doc.Lines {
			quantity := line.IntendedQuantity()
			change := ledger.ChangeInput{
				ProductID:   line.ProductID,
				WarehouseID: doc.WarehouseID,
				LocationID:  line.LocationID,
				Quantity:    quantity,
				Type:        ledger.MovementReceipt,
				ActorID:     actorID,
				Reference:   doc.ReferenceNumber,
				RefID:       refID,
			}
			if doc.Kind == KindDelivery {
				change.Quantity = -quantity
				change.Type = ledger.MovementDelivery
			}
			_, movement, err := s.ledger.ApplyTx(ctx, tx, change)
			if err != nil {
				return err
			}
			movements = append(movements, movement)
			if err := tx.UpdateLineFulfilled(ctx, line.ID, quantity); err != nil {
				return err
			}
			doc.Lines[i].QuantityFulfilled = quantity
		}
		return tx.UpdateStatus(ctx, id, StatusDone, actorID)
	})
	if err != nil {
		return Document{}, err
	}
	doc.Status = StatusDone
	doc.UpdatedBy = actorID
	s.ledger.RecordCompletion(ctx, doc.WarehouseID, actorID, movements)
	s.recordAudit(ctx, actorID, "done", id, map[string]any{"reference": doc.ReferenceNumber, "lines": len(doc.Lines)})
	return doc, nil
}

func buildLines(inputs []LineInput) ([]LineItem, error) {
	lines := make([]LineItem, 0, len(inputs))
	for _, in := range inputs {
		if in.ProductID <= 0 || in.QuantityOrdered <= 0 {
			return nil, ErrInvalidLine
		}
		lines = append(lines, LineItem{
			ProductID:       in.ProductID,
			LocationID:      in.LocationID,
			QuantityOrdered: in.QuantityOrdered,
		})
	}
	return lines, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   fmt.Sprintf("documents:%s", action),
		Entity:   "document",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
	})
}
