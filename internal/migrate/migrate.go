// Package migrate verifies and upgrades the database schema at startup.
// All statements are additive and idempotent; existing data is never
// dropped or rewritten destructively.
package migrate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

var tables = []struct {
	name string
	ddl  string
}{
	{"suppliers", `CREATE TABLE IF NOT EXISTS suppliers (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		contact_person TEXT,
		phone TEXT,
		email TEXT,
		address TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`},
	{"locations", `CREATE TABLE IF NOT EXISTS locations (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL DEFAULT 'warehouse',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`},
	{"products", `CREATE TABLE IF NOT EXISTS products (
		id BIGSERIAL PRIMARY KEY,
		barcode TEXT UNIQUE,
		sku TEXT UNIQUE,
		name TEXT NOT NULL UNIQUE,
		description TEXT,
		category TEXT,
		uom TEXT,
		reorder_point BIGINT NOT NULL DEFAULT 0,
		price DOUBLE PRECISION NOT NULL DEFAULT 0,
		supplier_id BIGINT REFERENCES suppliers(id) ON DELETE SET NULL,
		current_stock_quantity BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`},
	{"batches", `CREATE TABLE IF NOT EXISTS batches (
		id BIGSERIAL PRIMARY KEY,
		product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		batch_no TEXT NOT NULL,
		expiry_date DATE,
		blocked BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (product_id, batch_no)
	)`},
	{"stock_movements", `CREATE TABLE IF NOT EXISTS stock_movements (
		id BIGSERIAL PRIMARY KEY,
		product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		quantity BIGINT NOT NULL,
		movement_type TEXT NOT NULL,
		reason TEXT,
		reference_id BIGINT,
		location_id BIGINT REFERENCES locations(id),
		batch_id BIGINT REFERENCES batches(id),
		unit TEXT,
		unit_qty BIGINT,
		cost_per_unit DOUBLE PRECISION,
		acting_user TEXT NOT NULL DEFAULT 'system',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`},
	{"clients", `CREATE TABLE IF NOT EXISTS clients (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT,
		email TEXT,
		address TEXT,
		city TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`},
	{"invoices", `CREATE TABLE IF NOT EXISTS invoices (
		id BIGSERIAL PRIMARY KEY,
		number TEXT NOT NULL UNIQUE,
		client_id BIGINT REFERENCES clients(id),
		client_name TEXT,
		invoice_date DATE NOT NULL DEFAULT CURRENT_DATE,
		total_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
		items TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`},
	{"client_payments", `CREATE TABLE IF NOT EXISTS client_payments (
		id BIGSERIAL PRIMARY KEY,
		client_id BIGINT NOT NULL REFERENCES clients(id),
		amount DOUBLE PRECISION NOT NULL,
		method TEXT,
		reference TEXT,
		invoice_id BIGINT REFERENCES invoices(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`},
	{"business_info", `CREATE TABLE IF NOT EXISTS business_info (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT,
		phone TEXT,
		email TEXT,
		tax_id TEXT,
		footer TEXT,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`},
	{"users", `CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'staff',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`},
	{"audit_logs", `CREATE TABLE IF NOT EXISTS audit_logs (
		id BIGSERIAL PRIMARY KEY,
		actor TEXT NOT NULL,
		action TEXT NOT NULL,
		entity TEXT NOT NULL,
		entity_id TEXT,
		meta TEXT,
		occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`},
}

// Columns added after the first release. Each is checked against
// information_schema and added with a safe default when missing, so
// databases created by any earlier version converge on the same shape.
var addedColumns = []struct {
	table  string
	column string
	ddl    string
}{
	{"products", "barcode", `ALTER TABLE products ADD COLUMN barcode TEXT UNIQUE`},
	{"products", "sku", `ALTER TABLE products ADD COLUMN sku TEXT UNIQUE`},
	{"products", "uom", `ALTER TABLE products ADD COLUMN uom TEXT`},
	{"products", "supplier_id", `ALTER TABLE products ADD COLUMN supplier_id BIGINT REFERENCES suppliers(id) ON DELETE SET NULL`},
	{"products", "current_stock_quantity", `ALTER TABLE products ADD COLUMN current_stock_quantity BIGINT NOT NULL DEFAULT 0`},
	{"stock_movements", "location_id", `ALTER TABLE stock_movements ADD COLUMN location_id BIGINT REFERENCES locations(id)`},
	{"stock_movements", "batch_id", `ALTER TABLE stock_movements ADD COLUMN batch_id BIGINT REFERENCES batches(id)`},
	{"stock_movements", "unit", `ALTER TABLE stock_movements ADD COLUMN unit TEXT`},
	{"stock_movements", "unit_qty", `ALTER TABLE stock_movements ADD COLUMN unit_qty BIGINT`},
	{"stock_movements", "cost_per_unit", `ALTER TABLE stock_movements ADD COLUMN cost_per_unit DOUBLE PRECISION`},
	{"stock_movements", "acting_user", `ALTER TABLE stock_movements ADD COLUMN acting_user TEXT NOT NULL DEFAULT 'system'`},
	{"invoices", "client_id", `ALTER TABLE invoices ADD COLUMN client_id BIGINT REFERENCES clients(id)`},
	{"clients", "city", `ALTER TABLE clients ADD COLUMN city TEXT`},
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_stock_movements_product ON stock_movements (product_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_movements_location ON stock_movements (location_id) WHERE location_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_number ON invoices (number)`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_client ON invoices (client_id) WHERE client_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_client_payments_client ON client_payments (client_id)`,
	`CREATE INDEX IF NOT EXISTS idx_batches_product ON batches (product_id)`,
}

// Run brings the schema up to date. Any error aborts startup so the
// server never serves against an unverified schema.
func Run(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	for _, t := range tables {
		if _, err := pool.Exec(ctx, t.ddl); err != nil {
			return fmt.Errorf("create table %s: %w", t.name, err)
		}
	}

	for _, c := range addedColumns {
		exists, err := columnExists(ctx, pool, c.table, c.column)
		if err != nil {
			return fmt.Errorf("check column %s.%s: %w", c.table, c.column, err)
		}
		if exists {
			continue
		}
		if _, err := pool.Exec(ctx, c.ddl); err != nil {
			return fmt.Errorf("add column %s.%s: %w", c.table, c.column, err)
		}
		logger.Info("added column", slog.String("table", c.table), slog.String("column", c.column))
		if c.table == "products" && c.column == "current_stock_quantity" {
			if err := backfillStockCache(ctx, pool, logger); err != nil {
				return err
			}
		}
	}

	for _, ddl := range indexes {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}

	logger.Info("schema verified", slog.Int("tables", len(tables)))
	return nil
}

func columnExists(ctx context.Context, pool *pgxpool.Pool, table, column string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_name = $1 AND column_name = $2
		)`, table, column).Scan(&exists)
	return exists, err
}

// backfillStockCache seeds the freshly added cache column. The legacy
// stock_quantity column wins when present; otherwise the cache is
// rebuilt from the movement ledger.
func backfillStockCache(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	hasLegacy, err := columnExists(ctx, pool, "products", "stock_quantity")
	if err != nil {
		return fmt.Errorf("check legacy stock column: %w", err)
	}
	if hasLegacy {
		tag, err := pool.Exec(ctx,
			`UPDATE products SET current_stock_quantity = COALESCE(stock_quantity, 0)`)
		if err != nil {
			return fmt.Errorf("backfill stock cache from legacy column: %w", err)
		}
		logger.Info("backfilled stock cache from legacy column", slog.Int64("rows", tag.RowsAffected()))
		return nil
	}
	tag, err := pool.Exec(ctx,
		`UPDATE products p SET current_stock_quantity = COALESCE(
			(SELECT SUM(m.quantity) FROM stock_movements m WHERE m.product_id = p.id), 0)`)
	if err != nil {
		return fmt.Errorf("backfill stock cache from ledger: %w", err)
	}
	logger.Info("backfilled stock cache from ledger", slog.Int64("rows", tag.RowsAffected()))
	return nil
}
