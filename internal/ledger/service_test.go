package ledger

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	products  map[int64]Product
	locations map[int64]Location
	levels    map[string]StockLevel
	movements []Movement
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		products:  make(map[int64]Product),
		locations: make(map[int64]Location),
		levels:    make(map[string]StockLevel),
	}
}

func levelKey(productID, warehouseID, locationID int64) string {
	return fmt.Sprintf("%d:%d:%d", productID, warehouseID, locationID)
}

// memoryTx stages writes and only merges them back on success, mirroring the
// rollback behaviour of the real transaction.
type memoryTx struct {
	repo      *memoryRepo
	levels    map[string]StockLevel
	movements []Movement
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryTx{repo: r, levels: make(map[string]StockLevel)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for k, v := range tx.levels {
		r.levels[k] = v
	}
	r.movements = append(r.movements, tx.movements...)
	return nil
}

func (r *memoryRepo) StockLevels(ctx context.Context, filter StockLevelFilter) ([]StockLevel, error) {
	var out []StockLevel
	for _, level := range r.levels {
		if level.WarehouseID != filter.WarehouseID {
			continue
		}
		if filter.ProductID != 0 && level.ProductID != filter.ProductID {
			continue
		}
		if filter.LocationID != 0 && level.LocationID != filter.LocationID {
			continue
		}
		out = append(out, level)
	}
	return out, nil
}

func (r *memoryRepo) Movements(ctx context.Context, filter MovementFilter) ([]Movement, int, error) {
	var out []Movement
	for _, m := range r.movements {
		if filter.ProductID != 0 && m.ProductID != filter.ProductID {
			continue
		}
		if filter.Type != "" && m.Type != filter.Type {
			continue
		}
		out = append(out, m)
	}
	return out, len(out), nil
}

func (tx *memoryTx) GetProduct(ctx context.Context, id int64) (Product, error) {
	p, ok := tx.repo.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (tx *memoryTx) GetLocation(ctx context.Context, id int64) (Location, error) {
	l, ok := tx.repo.locations[id]
	if !ok {
		return Location{}, ErrLocationNotFound
	}
	return l, nil
}

func (tx *memoryTx) GetStockLevelForUpdate(ctx context.Context, productID, warehouseID, locationID int64) (StockLevel, error) {
	key := levelKey(productID, warehouseID, locationID)
	if level, ok := tx.levels[key]; ok {
		return level, nil
	}
	if level, ok := tx.repo.levels[key]; ok {
		return level, nil
	}
	return StockLevel{}, ErrStockLevelNotFound
}

func (tx *memoryTx) UpsertStockLevel(ctx context.Context, level StockLevel) error {
	tx.levels[levelKey(level.ProductID, level.WarehouseID, level.LocationID)] = level
	return nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, m Movement) (Movement, error) {
	tx.repo.nextID++
	m.ID = tx.repo.nextID
	tx.movements = append(tx.movements, m)
	return m, nil
}

func seededRepo() *memoryRepo {
	repo := newMemoryRepo()
	repo.products[1] = Product{ID: 1, WarehouseID: 1, SKU: "SKU-1", Name: "Widget", Active: true}
	repo.products[2] = Product{ID: 2, WarehouseID: 2, SKU: "SKU-2", Name: "Elsewhere", Active: true}
	repo.products[3] = Product{ID: 3, WarehouseID: 1, SKU: "SKU-3", Name: "Retired", Active: false}
	repo.locations[10] = Location{ID: 10, WarehouseID: 1, Code: "A-01", Active: true}
	repo.locations[11] = Location{ID: 11, WarehouseID: 1, Code: "A-02", Active: true}
	repo.locations[12] = Location{ID: 12, WarehouseID: 1, Code: "A-03", Active: false}
	repo.locations[20] = Location{ID: 20, WarehouseID: 2, Code: "B-01", Active: true}
	return repo
}

func TestReceiveIntoNewLocation(t *testing.T) {
	repo := seededRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	level, movement, err := svc.Receive(ctx, ChangeInput{ProductID: 1, WarehouseID: 1, LocationID: 10, Quantity: 10, ActorID: 7})
	require.NoError(t, err)
	require.EqualValues(t, 10, level.Quantity)
	require.Equal(t, MovementReceipt, movement.Type)
	require.EqualValues(t, 10, movement.Quantity)
	require.EqualValues(t, 7, movement.ActorID)
	require.Len(t, repo.movements, 1)
}

func TestDeliverAndInsufficientStock(t *testing.T) {
	repo := seededRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, _, err := svc.Receive(ctx, ChangeInput{ProductID: 1, WarehouseID: 1, LocationID: 10, Quantity: 10})
	require.NoError(t, err)

	level, movement, err := svc.Deliver(ctx, ChangeInput{ProductID: 1, WarehouseID: 1, LocationID: 10, Quantity: 4})
	require.NoError(t, err)
	require.EqualValues(t, 6, level.Quantity)
	require.Equal(t, MovementDelivery, movement.Type)
	require.EqualValues(t, -4, movement.Quantity)

	_, _, err = svc.Deliver(ctx, ChangeInput{ProductID: 1, WarehouseID: 1, LocationID: 10, Quantity: 20})
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.EqualValues(t, 6, insufficient.Current)
	require.EqualValues(t, 20, insufficient.Requested)

	// state unchanged after the rejection
	require.EqualValues(t, 6, repo.levels[levelKey(1, 1, 10)].Quantity)
	require.Len(t, repo.movements, 2)
}

func TestTransferBetweenLocations(t *testing.T) {
	repo := seededRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, _, err := svc.Receive(ctx, ChangeInput{ProductID: 1, WarehouseID: 1, LocationID: 10, Quantity: 6})
	require.NoError(t, err)

	result, err := svc.Transfer(ctx, TransferInput{ProductID: 1, FromLocationID: 10, ToLocationID: 11, Quantity: 3})
	require.NoError(t, err)
	require.EqualValues(t, 3, result.From.Quantity)
	require.EqualValues(t, 3, result.To.Quantity)
	require.Equal(t, MovementTransferOut, result.Out.Type)
	require.Equal(t, MovementTransferIn, result.In.Type)
	require.EqualValues(t, -3, result.Out.Quantity)
	require.EqualValues(t, 3, result.In.Quantity)
}

func TestTransferFailureLeavesNothingApplied(t *testing.T) {
	repo := seededRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, _, err := svc.Receive(ctx, ChangeInput{ProductID: 1, WarehouseID: 1, LocationID: 10, Quantity: 2})
	require.NoError(t, err)
	movementsBefore := len(repo.movements)

	_, err = svc.Transfer(ctx, TransferInput{ProductID: 1, FromLocationID: 10, ToLocationID: 11, Quantity: 5})
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)

	require.EqualValues(t, 2, repo.levels[levelKey(1, 1, 10)].Quantity)
	_, exists := repo.levels[levelKey(1, 1, 11)]
	require.False(t, exists)
	require.Len(t, repo.movements, movementsBefore)
}

func TestTransferValidation(t *testing.T) {
	repo := seededRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Transfer(ctx, TransferInput{ProductID: 1, FromLocationID: 10, ToLocationID: 10, Quantity: 1})
	require.ErrorIs(t, err, ErrSameLocation)

	_, err = svc.Transfer(ctx, TransferInput{ProductID: 1, FromLocationID: 10, ToLocationID: 20, Quantity: 1})
	require.ErrorIs(t, err, ErrWarehouseMismatch)

	_, err = svc.Transfer(ctx, TransferInput{ProductID: 1, FromLocationID: 10, ToLocationID: 12, Quantity: 1})
	require.ErrorIs(t, err, ErrLocationInactive)
}

func TestAdjustToTarget(t *testing.T) {
	repo := seededRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, _, err := svc.Receive(ctx, ChangeInput{ProductID: 1, WarehouseID: 1, LocationID: 10, Quantity: 6})
	require.NoError(t, err)

	level, movement, err := svc.Adjust(ctx, AdjustmentInput{ProductID: 1, LocationID: 10, TargetQuantity: 50, Reason: "cycle count"})
	require.NoError(t, err)
	require.EqualValues(t, 50, level.Quantity)
	require.Equal(t, MovementAdjustment, movement.Type)
	require.EqualValues(t, 44, movement.Quantity)

	_, _, err = svc.Adjust(ctx, AdjustmentInput{ProductID: 1, LocationID: 10, TargetQuantity: 50})
	require.ErrorIs(t, err, ErrNoOpAdjustment)
}

func TestApplyValidationOrder(t *testing.T) {
	repo := seededRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, _, err := svc.Apply(ctx, ChangeInput{ProductID: 99, WarehouseID: 1, LocationID: 10, Quantity: 1, Type: MovementReceipt})
	require.ErrorIs(t, err, ErrProductNotFound)

	_, _, err = svc.Apply(ctx, ChangeInput{ProductID: 3, WarehouseID: 1, LocationID: 10, Quantity: 1, Type: MovementReceipt})
	require.ErrorIs(t, err, ErrProductInactive)

	_, _, err = svc.Apply(ctx, ChangeInput{ProductID: 2, WarehouseID: 1, LocationID: 10, Quantity: 1, Type: MovementReceipt})
	require.ErrorIs(t, err, ErrWarehouseMismatch)

	_, _, err = svc.Apply(ctx, ChangeInput{ProductID: 1, WarehouseID: 1, LocationID: 12, Quantity: 1, Type: MovementReceipt})
	require.ErrorIs(t, err, ErrLocationInactive)

	_, _, err = svc.Apply(ctx, ChangeInput{ProductID: 1, WarehouseID: 1, LocationID: 10, Quantity: 0, Type: MovementReceipt})
	require.ErrorIs(t, err, ErrZeroQuantity)
}

func TestLedgerReconciliation(t *testing.T) {
	repo := seededRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, _, err := svc.Receive(ctx, ChangeInput{ProductID: 1, WarehouseID: 1, LocationID: 10, Quantity: 25})
	require.NoError(t, err)
	_, _, err = svc.Deliver(ctx, ChangeInput{ProductID: 1, WarehouseID: 1, LocationID: 10, Quantity: 9})
	require.NoError(t, err)
	_, err = svc.Transfer(ctx, TransferInput{ProductID: 1, FromLocationID: 10, ToLocationID: 11, Quantity: 5})
	require.NoError(t, err)
	_, _, err = svc.Adjust(ctx, AdjustmentInput{ProductID: 1, LocationID: 11, TargetQuantity: 2})
	require.NoError(t, err)

	sums := make(map[string]int64)
	for _, m := range repo.movements {
		sums[levelKey(m.ProductID, m.WarehouseID, m.LocationID)] += m.Quantity
	}
	for key, level := range repo.levels {
		require.Equal(t, sums[key], level.Quantity, "level %s out of sync with ledger", key)
		require.GreaterOrEqual(t, level.Quantity, int64(0))
	}
}
