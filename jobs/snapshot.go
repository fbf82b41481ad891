package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SnapshotStore persists point-in-time stock level copies.
type SnapshotStore interface {
	Capture(ctx context.Context, warehouseID int64, takenAt time.Time) (int, error)
}

// Snapshotter handles stock snapshot tasks.
type Snapshotter struct {
	store  SnapshotStore
	logger *slog.Logger
}

// NewSnapshotter constructs a Snapshotter.
func NewSnapshotter(store SnapshotStore, logger *slog.Logger) *Snapshotter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Snapshotter{store: store, logger: logger}
}

// Handle processes TaskStockSnapshot tasks.
func (s *Snapshotter) Handle(ctx context.Context, t *asynq.Task) error {
	var payload StockSnapshotPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	takenAt := payload.ScheduledFor
	if takenAt.IsZero() {
		takenAt = time.Now().UTC()
	}
	rows, err := s.store.Capture(ctx, payload.WarehouseID, takenAt)
	if err != nil {
		return err
	}
	s.logger.Info("stock snapshot",
		slog.Int64("warehouse_id", payload.WarehouseID),
		slog.Int("rows", rows),
		slog.Time("taken_at", takenAt))
	return nil
}

// PgSnapshotStore writes snapshots into Postgres.
type PgSnapshotStore struct {
	pool *pgxpool.Pool
}

// NewPgSnapshotStore constructs a PgSnapshotStore.
func NewPgSnapshotStore(pool *pgxpool.Pool) *PgSnapshotStore {
	return &PgSnapshotStore{pool: pool}
}

// Capture copies the current stock levels into stock_snapshots.
func (s *PgSnapshotStore) Capture(ctx context.Context, warehouseID int64, takenAt time.Time) (int, error) {
	query := `
		INSERT INTO stock_snapshots (product_id, warehouse_id, location_id, quantity, taken_at)
		SELECT product_id, warehouse_id, location_id, quantity, $1
		FROM stock_levels
		WHERE ($2 = 0 OR warehouse_id = $2)`
	tag, err := s.pool.Exec(ctx, query, takenAt, warehouseID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
