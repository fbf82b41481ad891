package documents

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-wms/meridian-wms/internal/ledger"
	"github.com/meridian-wms/meridian-wms/internal/platform/db"
)

const uniqueViolation = "23505"

// Repository persists documents in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// txRepository composes the ledger tx operations over the same pgx.Tx, which
// is what keeps document completion and its ledger writes in one scope.
type txRepository struct {
	ledger.TxRepository
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("documents repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{TxRepository: ledger.NewTxRepository(tx), tx: tx})
	})
}

// Get loads a document header and its lines.
func (r *Repository) Get(ctx context.Context, id int64) (Document, error) {
	return scanDocument(ctx, r.pool, id, "")
}

// CountByReferencePrefix counts documents created under the day prefix.
func (r *Repository) CountByReferencePrefix(ctx context.Context, prefix string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents WHERE reference_number LIKE $1 || '%'`, prefix).Scan(&count)
	return count, err
}

// List returns document headers matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Document, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		where += ` AND kind=$` + strconv.Itoa(len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where += ` AND status=$` + strconv.Itoa(len(args))
	}
	if filter.WarehouseID != 0 {
		args = append(args, filter.WarehouseID)
		where += ` AND warehouse_id=$` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, reference_number, kind, counterparty_id, warehouse_id, status, notes, created_by, updated_by, created_at, updated_at
FROM documents` + where + ` ORDER BY created_at DESC, id DESC`
	args = append(args, filter.PerPage)
	query += ` LIMIT $` + strconv.Itoa(len(args))
	args = append(args, (filter.Page-1)*filter.PerPage)
	query += ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.ReferenceNumber, &d.Kind, &d.CounterpartyID, &d.WarehouseID, &d.Status, &d.Notes, &d.CreatedBy, &d.UpdatedBy, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, 0, err
		}
		docs = append(docs, d)
	}
	return docs, total, rows.Err()
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanDocument(ctx context.Context, q queryer, id int64, lock string) (Document, error) {
	var d Document
	err := q.QueryRow(ctx, `SELECT id, reference_number, kind, counterparty_id, warehouse_id, status, notes, created_by, updated_by, created_at, updated_at
FROM documents WHERE id=$1`+lock, id).
		Scan(&d.ID, &d.ReferenceNumber, &d.Kind, &d.CounterpartyID, &d.WarehouseID, &d.Status, &d.Notes, &d.CreatedBy, &d.UpdatedBy, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}

	rows, err := q.Query(ctx, `SELECT id, document_id, product_id, COALESCE(location_id, 0), quantity_ordered, quantity_fulfilled
FROM document_lines WHERE document_id=$1 ORDER BY id`, id)
	if err != nil {
		return Document{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line LineItem
		if err := rows.Scan(&line.ID, &line.DocumentID, &line.ProductID, &line.LocationID, &line.QuantityOrdered, &line.QuantityFulfilled); err != nil {
			return Document{}, err
		}
		d.Lines = append(d.Lines, line)
	}
	return d, rows.Err()
}

func (r *txRepository) InsertDocument(ctx context.Context, doc Document) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO documents (reference_number, kind, counterparty_id, warehouse_id, status, notes, created_by, updated_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW(),NOW()) RETURNING id`,
		doc.ReferenceNumber, string(doc.Kind), doc.CounterpartyID, doc.WarehouseID, string(doc.Status), doc.Notes, doc.CreatedBy, doc.UpdatedBy).
		Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, ErrReferenceConflict
		}
		return 0, err
	}
	return id, nil
}

func (r *txRepository) InsertLines(ctx context.Context, documentID int64, lines []LineItem) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO document_lines (document_id, product_id, location_id, quantity_ordered, quantity_fulfilled)
VALUES ($1,$2,$3,$4,$5)`, documentID, line.ProductID, nullLocation(line.LocationID), line.QuantityOrdered, line.QuantityFulfilled); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) DeleteLines(ctx context.Context, documentID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM document_lines WHERE document_id=$1`, documentID)
	return err
}

func (r *txRepository) GetDocumentForUpdate(ctx context.Context, id int64) (Document, error) {
	return scanDocument(ctx, r.tx, id, ` FOR UPDATE`)
}

func (r *txRepository) UpdateLineFulfilled(ctx context.Context, lineID, quantity int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE document_lines SET quantity_fulfilled=$1 WHERE id=$2`, quantity, lineID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) UpdateStatus(ctx context.Context, documentID int64, status Status, actorID int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE documents SET status=$1, updated_by=$2, updated_at=NOW() WHERE id=$3`, string(status), actorID, documentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) UpdateNotes(ctx context.Context, documentID int64, notes string, actorID int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE documents SET notes=$1, updated_by=$2, updated_at=NOW() WHERE id=$3`, notes, actorID, documentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) DeleteDocument(ctx context.Context, documentID int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM documents WHERE id=$1`, documentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Lines without an assigned location are stored as NULL so the READY gate
// can distinguish "unassigned" from a real location id.
func nullLocation(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
