package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agfood/agfood/internal/platform/db"
	"github.com/agfood/agfood/internal/shared"
)

// Repository persists ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	CurrentStockForUpdate(ctx context.Context, productID int64) (int64, error)
	SetCurrentStock(ctx context.Context, productID, qty int64) error
	InsertMovement(ctx context.Context, m Movement) (int64, error)
	LocationStock(ctx context.Context, productID, locationID int64) (int64, error)
	SumMovements(ctx context.Context, productID int64) (int64, error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a serializable transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

func (r *txRepo) CurrentStockForUpdate(ctx context.Context, productID int64) (int64, error) {
	return CurrentStockForUpdate(ctx, r.tx, productID)
}

func (r *txRepo) SetCurrentStock(ctx context.Context, productID, qty int64) error {
	return SetCurrentStock(ctx, r.tx, productID, qty)
}

func (r *txRepo) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	return InsertMovement(ctx, r.tx, m)
}

func (r *txRepo) LocationStock(ctx context.Context, productID, locationID int64) (int64, error) {
	return LocationStock(ctx, r.tx, productID, locationID)
}

func (r *txRepo) SumMovements(ctx context.Context, productID int64) (int64, error) {
	return SumMovements(ctx, r.tx, productID)
}

// CurrentStockForUpdate reads the cached quantity with a row lock.
func CurrentStockForUpdate(ctx context.Context, q db.DBTX, productID int64) (int64, error) {
	var qty int64
	err := q.QueryRow(ctx, `SELECT current_stock_quantity FROM products WHERE id = $1 FOR UPDATE`, productID).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, shared.ErrNotFound
		}
		return 0, err
	}
	return qty, nil
}

// SetCurrentStock persists the cached quantity.
func SetCurrentStock(ctx context.Context, q db.DBTX, productID, qty int64) error {
	tag, err := q.Exec(ctx, `UPDATE products SET current_stock_quantity = $1, updated_at = NOW() WHERE id = $2`, qty, productID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// InsertMovement appends one ledger entry.
func InsertMovement(ctx context.Context, q db.DBTX, m Movement) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `INSERT INTO stock_movements
	(product_id, quantity, movement_type, reason, reference_id, location_id, batch_id, unit, unit_qty, cost_per_unit, acting_user, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW()) RETURNING id`,
		m.ProductID, m.Quantity, string(m.Type), m.Reason, m.ReferenceID, m.LocationID, m.BatchID,
		m.Unit, m.UnitQty, m.CostPerUnit, m.ActingUser).Scan(&id)
	if err != nil {
		return 0, db.MapError(err)
	}
	return id, nil
}

// LocationStock recomputes the per-location total from movements. Not
// cached anywhere; always derived.
func LocationStock(ctx context.Context, q db.DBTX, productID, locationID int64) (int64, error) {
	var total int64
	err := q.QueryRow(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM stock_movements WHERE product_id = $1 AND location_id = $2`,
		productID, locationID).Scan(&total)
	return total, err
}

// SumMovements totals every movement for one product.
func SumMovements(ctx context.Context, q db.DBTX, productID int64) (int64, error) {
	var total int64
	err := q.QueryRow(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM stock_movements WHERE product_id = $1`,
		productID).Scan(&total)
	return total, err
}

// GetCurrentStock returns the cached global quantity.
func (r *Repository) GetCurrentStock(ctx context.Context, productID int64) (int64, error) {
	var qty int64
	err := r.pool.QueryRow(ctx, `SELECT current_stock_quantity FROM products WHERE id = $1`, productID).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, shared.ErrNotFound
		}
		return 0, err
	}
	return qty, nil
}

// GetLocationStock returns the derived per-location quantity.
func (r *Repository) GetLocationStock(ctx context.Context, productID, locationID int64) (int64, error) {
	return LocationStock(ctx, r.pool, productID, locationID)
}

// GetLowStock lists products strictly below their reorder point.
func (r *Repository) GetLowStock(ctx context.Context) ([]LowStockProduct, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, current_stock_quantity, reorder_point FROM products
		 WHERE current_stock_quantity < reorder_point ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LowStockProduct
	for rows.Next() {
		var p LowStockProduct
		if err := rows.Scan(&p.ProductID, &p.Name, &p.CurrentQty, &p.ReorderPoint); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// EarliestExpiry returns the minimum expiry among unblocked dated batches,
// or nil when the product has none.
func (r *Repository) EarliestExpiry(ctx context.Context, productID int64) (*time.Time, error) {
	var date *time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT MIN(expiry_date) FROM batches WHERE product_id = $1 AND blocked = FALSE AND expiry_date IS NOT NULL`,
		productID).Scan(&date)
	if err != nil {
		return nil, err
	}
	return date, nil
}

// ListMovements returns the most recent movements for a product, newest first.
func (r *Repository) ListMovements(ctx context.Context, productID int64, limit int) ([]Movement, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, quantity, movement_type, COALESCE(reason, ''), reference_id, location_id, batch_id,
		COALESCE(unit, ''), COALESCE(unit_qty, 0), COALESCE(cost_per_unit, 0), acting_user, created_at
		FROM stock_movements WHERE product_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Movement
	for rows.Next() {
		var m Movement
		var typ string
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Quantity, &typ, &m.Reason, &m.ReferenceID, &m.LocationID, &m.BatchID, &m.Unit, &m.UnitQty, &m.CostPerUnit, &m.ActingUser, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Type = MovementType(typ)
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListBatches returns all batches for a product.
func (r *Repository) ListBatches(ctx context.Context, productID int64) ([]Batch, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, product_id, batch_no, expiry_date, blocked, created_at FROM batches WHERE product_id = $1 ORDER BY expiry_date NULLS LAST, batch_no`,
		productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Batch
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ID, &b.ProductID, &b.BatchNo, &b.ExpiryDate, &b.Blocked, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// AddBatch inserts a batch. Batch number is unique per product.
func (r *Repository) AddBatch(ctx context.Context, b Batch) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO batches (product_id, batch_no, expiry_date, blocked, created_at) VALUES ($1, $2, $3, $4, NOW()) RETURNING id`,
		b.ProductID, b.BatchNo, b.ExpiryDate, b.Blocked).Scan(&id)
	if err != nil {
		return 0, db.MapError(err)
	}
	return id, nil
}

// SetBatchBlocked toggles the blocked flag.
func (r *Repository) SetBatchBlocked(ctx context.Context, batchID int64, blocked bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE batches SET blocked = $1 WHERE id = $2`, blocked, batchID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
