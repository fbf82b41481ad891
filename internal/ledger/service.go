package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-wms/meridian-wms/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	StockLevels(ctx context.Context, filter StockLevelFilter) ([]StockLevel, error)
	Movements(ctx context.Context, filter MovementFilter) ([]Movement, int, error)
}

// TxRepository exposes the transactional operations the engine runs inside a
// single unit of work. Reference-data reads happen here too so validation,
// the quantity read and both writes share one isolation scope.
type TxRepository interface {
	GetProduct(ctx context.Context, id int64) (Product, error)
	GetLocation(ctx context.Context, id int64) (Location, error)
	GetStockLevelForUpdate(ctx context.Context, productID, warehouseID, locationID int64) (StockLevel, error)
	UpsertStockLevel(ctx context.Context, level StockLevel) error
	InsertMovement(ctx context.Context, movement Movement) (Movement, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service is the ledger engine: the only component permitted to mutate a
// stock level. All higher-level operations are defined in terms of Apply.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	cache  *Cache
	logger *slog.Logger
}

// NewService builds a Service.
func NewService(repo RepositoryPort, audit AuditPort, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, cache: cache, logger: logger}
}

// Apply validates and atomically applies one quantity delta: it updates the
// stock level and appends exactly one movement, or does neither.
func (s *Service) Apply(ctx context.Context, input ChangeInput) (StockLevel, Movement, error) {
	var (
		level    StockLevel
		movement Movement
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		level, movement, err = s.ApplyTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return StockLevel{}, Movement{}, err
	}
	s.afterMutation(ctx, input.WarehouseID, input.ActorID, movement)
	return level, movement, nil
}

// ApplyTx is the engine primitive running inside an existing unit of work.
// Composite operations (transfers, document completion) call it directly so
// their whole scope commits or rolls back as one.
func (s *Service) ApplyTx(ctx context.Context, tx TxRepository, input ChangeInput) (StockLevel, Movement, error) {
	if input.Quantity == 0 {
		return StockLevel{}, Movement{}, ErrZeroQuantity
	}
	if input.RefID != "" {
		if _, err := uuid.Parse(input.RefID); err != nil {
			return StockLevel{}, Movement{}, fmt.Errorf("ledger: invalid ref id: %w", err)
		}
	}

	product, err := tx.GetProduct(ctx, input.ProductID)
	if err != nil {
		return StockLevel{}, Movement{}, err
	}
	if !product.Active {
		return StockLevel{}, Movement{}, ErrProductInactive
	}
	if product.WarehouseID != input.WarehouseID {
		return StockLevel{}, Movement{}, ErrWarehouseMismatch
	}

	location, err := tx.GetLocation(ctx, input.LocationID)
	if err != nil {
		return StockLevel{}, Movement{}, err
	}
	if !location.Active {
		return StockLevel{}, Movement{}, ErrLocationInactive
	}
	if location.WarehouseID != input.WarehouseID {
		return StockLevel{}, Movement{}, ErrWarehouseMismatch
	}

	level, err := tx.GetStockLevelForUpdate(ctx, input.ProductID, input.WarehouseID, input.LocationID)
	if err != nil && !errors.Is(err, ErrStockLevelNotFound) {
		return StockLevel{}, Movement{}, err
	}
	if errors.Is(err, ErrStockLevelNotFound) {
		level = StockLevel{ProductID: input.ProductID, WarehouseID: input.WarehouseID, LocationID: input.LocationID}
	}

	newQuantity := level.Quantity + input.Quantity
	if newQuantity < 0 {
		return StockLevel{}, Movement{}, &InsufficientStockError{
			ProductID:  input.ProductID,
			LocationID: input.LocationID,
			Current:    level.Quantity,
			Requested:  -input.Quantity,
		}
	}

	level.Quantity = newQuantity
	level.UpdatedAt = time.Now().UTC()
	if err := tx.UpsertStockLevel(ctx, level); err != nil {
		return StockLevel{}, Movement{}, err
	}

	movement := Movement{
		ProductID:   input.ProductID,
		WarehouseID: input.WarehouseID,
		LocationID:  input.LocationID,
		ActorID:     input.ActorID,
		Type:        input.Type,
		Quantity:    input.Quantity,
		Reference:   input.Reference,
		RefID:       input.RefID,
		Notes:       input.Notes,
		CreatedAt:   level.UpdatedAt,
	}
	movement, err = tx.InsertMovement(ctx, movement)
	if err != nil {
		return StockLevel{}, Movement{}, err
	}
	return level, movement, nil
}

// Receive applies a positive delta with type RECEIPT.
func (s *Service) Receive(ctx context.Context, input ChangeInput) (StockLevel, Movement, error) {
	if input.Quantity <= 0 {
		return StockLevel{}, Movement{}, ErrNonPositiveQuantity
	}
	input.Type = MovementReceipt
	return s.Apply(ctx, input)
}

// Deliver applies the negated quantity with type DELIVERY.
func (s *Service) Deliver(ctx context.Context, input ChangeInput) (StockLevel, Movement, error) {
	if input.Quantity <= 0 {
		return StockLevel{}, Movement{}, ErrNonPositiveQuantity
	}
	input.Type = MovementDelivery
	input.Quantity = -input.Quantity
	return s.Apply(ctx, input)
}

// Transfer moves stock between two locations of the same warehouse as one
// atomic unit: a failure on either leg leaves neither applied.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (TransferResult, error) {
	if input.Quantity <= 0 {
		return TransferResult{}, ErrNonPositiveQuantity
	}
	if input.FromLocationID == input.ToLocationID {
		return TransferResult{}, ErrSameLocation
	}

	var result TransferResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		from, err := tx.GetLocation(ctx, input.FromLocationID)
		if err != nil {
			return err
		}
		to, err := tx.GetLocation(ctx, input.ToLocationID)
		if err != nil {
			return err
		}
		if !from.Active || !to.Active {
			return ErrLocationInactive
		}
		if from.WarehouseID != to.WarehouseID {
			return ErrWarehouseMismatch
		}
		warehouseID := from.WarehouseID

		result.From, result.Out, err = s.ApplyTx(ctx, tx, ChangeInput{
			ProductID:   input.ProductID,
			WarehouseID: warehouseID,
			LocationID:  input.FromLocationID,
			Quantity:    -input.Quantity,
			Type:        MovementTransferOut,
			ActorID:     input.ActorID,
			Reference:   input.Reference,
			Notes:       input.Notes,
		})
		if err != nil {
			return err
		}
		result.To, result.In, err = s.ApplyTx(ctx, tx, ChangeInput{
			ProductID:   input.ProductID,
			WarehouseID: warehouseID,
			LocationID:  input.ToLocationID,
			Quantity:    input.Quantity,
			Type:        MovementTransferIn,
			ActorID:     input.ActorID,
			Reference:   input.Reference,
			Notes:       input.Notes,
		})
		return err
	})
	if err != nil {
		return TransferResult{}, err
	}
	s.afterMutation(ctx, result.Out.WarehouseID, input.ActorID, result.Out, result.In)
	return result, nil
}

// Adjust sets stock to an absolute target by computing the implied delta and
// delegating to the engine, so never-negative and the audit trail apply to
// corrections as well.
func (s *Service) Adjust(ctx context.Context, input AdjustmentInput) (StockLevel, Movement, error) {
	var (
		level    StockLevel
		movement Movement
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		location, err := tx.GetLocation(ctx, input.LocationID)
		if err != nil {
			return err
		}
		current, err := tx.GetStockLevelForUpdate(ctx, input.ProductID, location.WarehouseID, input.LocationID)
		if err != nil && !errors.Is(err, ErrStockLevelNotFound) {
			return err
		}
		delta := input.TargetQuantity - current.Quantity
		if delta == 0 {
			return ErrNoOpAdjustment
		}
		notes := input.Notes
		if input.Reason != "" && notes == "" {
			notes = input.Reason
		}
		level, movement, err = s.ApplyTx(ctx, tx, ChangeInput{
			ProductID:   input.ProductID,
			WarehouseID: location.WarehouseID,
			LocationID:  input.LocationID,
			Quantity:    delta,
			Type:        MovementAdjustment,
			ActorID:     input.ActorID,
			Reference:   input.Reason,
			Notes:       notes,
		})
		return err
	})
	if err != nil {
		return StockLevel{}, Movement{}, err
	}
	s.afterMutation(ctx, movement.WarehouseID, input.ActorID, movement)
	return level, movement, nil
}

// StockLevels lists current stock levels, served from the cache when one is
// configured.
func (s *Service) StockLevels(ctx context.Context, filter StockLevelFilter) ([]StockLevel, error) {
	if filter.WarehouseID == 0 {
		return nil, ErrWarehouseMismatch
	}
	if s.cache == nil {
		return s.repo.StockLevels(ctx, filter)
	}
	return s.cache.Levels(ctx, filter, func(ctx context.Context) ([]StockLevel, error) {
		return s.repo.StockLevels(ctx, filter)
	})
}

// Movements lists ledger entries matching the filter with total count.
func (s *Service) Movements(ctx context.Context, filter MovementFilter) ([]Movement, int, error) {
	if filter.PerPage <= 0 {
		filter.PerPage = 50
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	return s.repo.Movements(ctx, filter)
}

func (s *Service) afterMutation(ctx context.Context, warehouseID, actorID int64, movements ...Movement) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, warehouseID); err != nil {
			s.logger.Warn("stock cache invalidate", slog.Int64("warehouse_id", warehouseID), slog.Any("error", err))
		}
	}
	if s.audit == nil {
		return
	}
	for _, m := range movements {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   fmt.Sprintf("ledger:%s", m.Type),
			Entity:   "movement",
			EntityID: fmt.Sprintf("%d", m.ID),
			Meta: map[string]any{
				"product_id":   m.ProductID,
				"warehouse_id": m.WarehouseID,
				"location_id":  m.LocationID,
				"quantity":     m.Quantity,
				"reference":    m.Reference,
			},
		})
	}
}

// RecordCompletion lets the documents module reuse the ledger's audit sink
// after a document-scoped transaction commits.
func (s *Service) RecordCompletion(ctx context.Context, warehouseID, actorID int64, movements []Movement) {
	s.afterMutation(ctx, warehouseID, actorID, movements...)
}
