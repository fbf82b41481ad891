package ledger

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-wms/meridian-wms/internal/platform/db"
)

// Repository persists ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

// NewTxRepository wraps an open transaction with the ledger operations. The
// documents repository composes this over its own transaction so document
// completion and ledger writes share one scope.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetProduct(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.tx.QueryRow(ctx, `SELECT id, warehouse_id, sku, name, active FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.WarehouseID, &p.SKU, &p.Name, &p.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, err
	}
	return p, nil
}

func (r *txRepository) GetLocation(ctx context.Context, id int64) (Location, error) {
	var l Location
	err := r.tx.QueryRow(ctx, `SELECT id, warehouse_id, code, name, active FROM locations WHERE id=$1`, id).
		Scan(&l.ID, &l.WarehouseID, &l.Code, &l.Name, &l.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Location{}, ErrLocationNotFound
		}
		return Location{}, err
	}
	return l, nil
}

func (r *txRepository) GetStockLevelForUpdate(ctx context.Context, productID, warehouseID, locationID int64) (StockLevel, error) {
	var level StockLevel
	err := r.tx.QueryRow(ctx, `SELECT product_id, warehouse_id, location_id, quantity, updated_at
FROM stock_levels WHERE product_id=$1 AND warehouse_id=$2 AND location_id=$3 FOR UPDATE`,
		productID, warehouseID, locationID).
		Scan(&level.ProductID, &level.WarehouseID, &level.LocationID, &level.Quantity, &level.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockLevel{}, ErrStockLevelNotFound
		}
		return StockLevel{}, err
	}
	return level, nil
}

func (r *txRepository) UpsertStockLevel(ctx context.Context, level StockLevel) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_levels (product_id, warehouse_id, location_id, quantity, updated_at)
VALUES ($1,$2,$3,$4,NOW())
ON CONFLICT (product_id, warehouse_id, location_id) DO UPDATE SET quantity=EXCLUDED.quantity, updated_at=NOW()`,
		level.ProductID, level.WarehouseID, level.LocationID, level.Quantity)
	return err
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) (Movement, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO movements (product_id, warehouse_id, location_id, actor_id, movement_type, quantity, reference, ref_id, notes, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW()) RETURNING id, created_at`,
		m.ProductID, m.WarehouseID, m.LocationID, nullInt(m.ActorID), string(m.Type), m.Quantity, m.Reference, nullString(m.RefID), m.Notes).
		Scan(&m.ID, &m.CreatedAt)
	return m, err
}

// StockLevels lists current levels filtered by warehouse and optionally
// product/location.
func (r *Repository) StockLevels(ctx context.Context, filter StockLevelFilter) ([]StockLevel, error) {
	query := `SELECT product_id, warehouse_id, location_id, quantity, updated_at FROM stock_levels WHERE warehouse_id=$1`
	args := []any{filter.WarehouseID}
	if filter.ProductID != 0 {
		args = append(args, filter.ProductID)
		query += ` AND product_id=$` + strconv.Itoa(len(args))
	}
	if filter.LocationID != 0 {
		args = append(args, filter.LocationID)
		query += ` AND location_id=$` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY product_id, location_id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	levels := []StockLevel{}
	for rows.Next() {
		var level StockLevel
		if err := rows.Scan(&level.ProductID, &level.WarehouseID, &level.LocationID, &level.Quantity, &level.UpdatedAt); err != nil {
			return nil, err
		}
		levels = append(levels, level)
	}
	return levels, rows.Err()
}

// Movements lists ledger entries matching the filter, newest first, with the
// total match count for pagination.
func (r *Repository) Movements(ctx context.Context, filter MovementFilter) ([]Movement, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filter.WarehouseID != 0 {
		args = append(args, filter.WarehouseID)
		where += ` AND warehouse_id=$` + strconv.Itoa(len(args))
	}
	if filter.ProductID != 0 {
		args = append(args, filter.ProductID)
		where += ` AND product_id=$` + strconv.Itoa(len(args))
	}
	if filter.LocationID != 0 {
		args = append(args, filter.LocationID)
		where += ` AND location_id=$` + strconv.Itoa(len(args))
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		where += ` AND movement_type=$` + strconv.Itoa(len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		where += ` AND created_at >= $` + strconv.Itoa(len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		where += ` AND created_at <= $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM movements`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, product_id, warehouse_id, location_id, COALESCE(actor_id, 0), movement_type, quantity, reference, COALESCE(ref_id::text, ''), notes, created_at FROM movements` + where
	query += ` ORDER BY created_at DESC, id DESC`
	args = append(args, filter.PerPage)
	query += ` LIMIT $` + strconv.Itoa(len(args))
	args = append(args, (filter.Page-1)*filter.PerPage)
	query += ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	movements := []Movement{}
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.WarehouseID, &m.LocationID, &m.ActorID, &m.Type, &m.Quantity, &m.Reference, &m.RefID, &m.Notes, &m.CreatedAt); err != nil {
			return nil, 0, err
		}
		movements = append(movements, m)
	}
	return movements, total, rows.Err()
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
