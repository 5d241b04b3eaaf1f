package products

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agfood/agfood/internal/ledger"
	"github.com/agfood/agfood/internal/platform/db"
	"github.com/agfood/agfood/internal/shared"
)

type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Product, int, error)
	Get(ctx context.Context, id int64) (Product, error)
	GetByBarcode(ctx context.Context, barcode string) (Product, error)
	Create(ctx context.Context, product Product, initialQty int64, actor string) (Product, error)
	Update(ctx context.Context, id int64, product Product) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const productColumns = `id, COALESCE(barcode, ''), COALESCE(sku, ''), name, COALESCE(description, ''), COALESCE(category, ''), COALESCE(uom, ''), reorder_point, price, supplier_id, current_stock_quantity, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Barcode, &p.SKU, &p.Name, &p.Description, &p.Category, &p.UOM,
		&p.ReorderPoint, &p.Price, &p.SupplierID, &p.CurrentStock, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM products WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		clause := ` AND (name ILIKE $` + strconv.Itoa(argCount) +
			` OR description ILIKE $` + strconv.Itoa(argCount) +
			` OR barcode ILIKE $` + strconv.Itoa(argCount) +
			` OR sku ILIKE $` + strconv.Itoa(argCount) +
			` OR category ILIKE $` + strconv.Itoa(argCount) + `)`
		query += clause
		countQuery += clause
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.Category != "" {
		argCount++
		clause := ` AND category = $` + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, filters.Category)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY name`
	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		offset := (filters.Page - 1) * filters.Limit
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// Per-location quantities are never cached; resolve them from the
	// movement log when a location scope is requested.
	if filters.LocationID != nil {
		for i := range out {
			qty, err := ledger.LocationStock(ctx, r.pool, out[i].ID, *filters.LocationID)
			if err != nil {
				return nil, 0, err
			}
			out[i].CurrentStock = qty
		}
	}
	return out, total, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, shared.ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

func (r *repository) GetByBarcode(ctx context.Context, barcode string) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE barcode = $1`, barcode))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, shared.ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

// Create inserts the product and, when opening stock is nonzero, logs the
// Initial movement in the same transaction so the cache and the log can
// never disagree about a new product.
func (r *repository) Create(ctx context.Context, product Product, initialQty int64, actor string) (Product, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `INSERT INTO products
			(barcode, sku, name, description, category, uom, reorder_point, price, supplier_id, current_stock_quantity, created_at, updated_at)
			VALUES (NULLIF($1, ''), NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW()) RETURNING id, created_at, updated_at`,
			product.Barcode, product.SKU, product.Name, product.Description, product.Category, product.UOM,
			product.ReorderPoint, product.Price, product.SupplierID, initialQty).
			Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
		if err != nil {
			return db.MapError(err)
		}
		product.CurrentStock = initialQty
		if initialQty != 0 {
			_, err = ledger.InsertMovement(ctx, tx, ledger.Movement{
				ProductID:  product.ID,
				Quantity:   initialQty,
				Type:       ledger.MovementInitial,
				Reason:     "Initial stock",
				ActingUser: actor,
			})
		}
		return err
	})
	if err != nil {
		return Product{}, err
	}
	return product, nil
}

func (r *repository) Update(ctx context.Context, id int64, product Product) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products SET
		barcode = NULLIF($1, ''), sku = NULLIF($2, ''), name = $3, description = $4,
		category = $5, uom = $6, reorder_point = $7, price = $8, supplier_id = $9, updated_at = NOW()
		WHERE id = $10`,
		product.Barcode, product.SKU, product.Name, product.Description, product.Category,
		product.UOM, product.ReorderPoint, product.Price, product.SupplierID, id)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes the product; movements and batches cascade at the
// schema level.
func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
